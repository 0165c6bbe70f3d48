package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/reconciliation"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/syncjob"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	var entryErr *timesheet.EntryValidationError
	if errors.As(err, &entryErr) {
		if entryErr.NeedsConfirmation() {
			EntryRejected(w, "CONFIRMATION_REQUIRED", "Entry has warnings that must be confirmed", nil, entryErr.Warnings)
			return
		}
		EntryRejected(w, "VALIDATION_ERROR", "Entry validation failed", entryErr.Errors, entryErr.Warnings)
		return
	}

	var transitionErr *timesheet.StateTransitionError
	if errors.As(err, &transitionErr) {
		ConflictWithCode(w, "INVALID_STATE_TRANSITION", transitionErr.Error())
		return
	}

	var conflictErr *reconciliation.ConflictError
	if errors.As(err, &conflictErr) {
		ConflictWithCode(w, "RECONCILIATION_CONFLICT", conflictErr.Error())
		return
	}

	var activeJobErr *syncjob.ActiveJobError
	if errors.As(err, &activeJobErr) {
		ConflictWithCode(w, "JOB_ALREADY_RUNNING", fmt.Sprintf("A %s job is already pending or running (id %s)", activeJobErr.Kind, activeJobErr.JobID))
		return
	}

	var externalErr *attendance.ExternalServiceError
	if errors.As(err, &externalErr) {
		BadGateway(w, externalErr.Error())
		return
	}

	// Malformed request bodies
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		BadRequest(w, "Invalid request body", nil)
		return
	}

	switch {
	// Auth errors
	case errors.Is(err, jwt.ErrMissingClaims), errors.Is(err, jwt.ErrInvalidClaims):
		Unauthorized(w, "Invalid or missing token")

	// Timesheet domain errors
	case errors.Is(err, timesheet.ErrTimesheetNotFound):
		NotFound(w, "Timesheet not found")
	case errors.Is(err, timesheet.ErrEntryNotFound):
		NotFound(w, "Entry not found")
	case errors.Is(err, timesheet.ErrTimesheetExists):
		Conflict(w, "Timesheet already exists for this week")
	case errors.Is(err, timesheet.ErrEmptyTimesheet):
		ConflictWithCode(w, "EMPTY_TIMESHEET", "Timesheet has no entries to submit")
	case errors.Is(err, timesheet.ErrNotOwner):
		Forbidden(w, "Only the owning employee can perform this action")
	case errors.Is(err, timesheet.ErrAdminRequired):
		Forbidden(w, "Admin privilege required")
	case errors.Is(err, timesheet.ErrTimesheetReadOnly):
		Forbidden(w, "Timesheet is not open; entries are read-only")
	case errors.Is(err, timesheet.ErrEmployeeContextMissing):
		Forbidden(w, "Token is not linked to an employee")
	case errors.Is(err, timesheet.ErrInvalidWeekStart):
		BadRequest(w, "week_starting must be a Monday", nil)

	// Employee domain errors
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")
	case errors.Is(err, employee.ErrEmployeeInactive):
		Conflict(w, "Employee is not active")

	// Sync job domain errors
	case errors.Is(err, syncjob.ErrJobNotFound):
		NotFound(w, "Sync job not found")
	case errors.Is(err, syncjob.ErrJobAlreadyRunning):
		ConflictWithCode(w, "JOB_ALREADY_RUNNING", "A job of this kind is already pending or running")
	case errors.Is(err, syncjob.ErrJobTerminal):
		Conflict(w, "Sync job is already finished")
	case errors.Is(err, syncjob.ErrUnknownKind):
		BadRequest(w, "Unknown sync job kind", nil)
	case errors.Is(err, syncjob.ErrNoRunner):
		BadRequest(w, "This job kind is not available on this server", nil)

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
