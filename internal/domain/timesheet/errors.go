package timesheet

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTimesheetNotFound      = errors.New("timesheet not found")
	ErrTimesheetExists        = errors.New("timesheet already exists for this week")
	ErrEntryNotFound          = errors.New("entry not found")
	ErrEmptyTimesheet         = errors.New("timesheet has no entries to submit")
	ErrNotOwner               = errors.New("only the owning employee can perform this action")
	ErrAdminRequired          = errors.New("admin privilege required")
	ErrTimesheetReadOnly      = errors.New("timesheet is not open; entries are read-only")
	ErrInvalidWeekStart       = errors.New("week_starting must be a Monday")
	ErrEmployeeContextMissing = errors.New("employee_id claim is missing or invalid")
)

// StateTransitionError is returned when the requested action has no edge
// from the timesheet's current status.
type StateTransitionError struct {
	Current Status
	Action  Action
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a timesheet in status %s", e.Action, e.Current)
}

// EntryValidationError carries the outcome of a rejected entry. Warnings
// alone only block the write until the caller confirms them.
type EntryValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *EntryValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "confirmation required: " + strings.Join(e.Warnings, "; ")
	}
	return "entry validation failed: " + strings.Join(e.Errors, "; ")
}

// NeedsConfirmation is true when nothing blocks the write except
// unconfirmed warnings.
func (e *EntryValidationError) NeedsConfirmation() bool {
	return len(e.Errors) == 0 && len(e.Warnings) > 0
}
