package timesheet

import (
	"context"
)

// TimesheetService owns the timesheet lifecycle. Every transition cascades
// to the timesheet's entries in the same transaction.
type TimesheetService interface {
	CreateTimesheet(ctx context.Context, req CreateTimesheetRequest) (TimesheetResponse, error)
	GetTimesheet(ctx context.Context, id string) (TimesheetResponse, error)
	ListTimesheets(ctx context.Context, filter TimesheetFilter) (ListTimesheetResponse, error)

	// AutoCreateTimesheets ensures the current and next week exist for the employee.
	AutoCreateTimesheets(ctx context.Context, employeeID string) (AutoCreateResponse, error)

	SubmitTimesheet(ctx context.Context, id string) (TimesheetResponse, error)
	ApproveTimesheet(ctx context.Context, id string) (TimesheetResponse, error)
	LockTimesheet(ctx context.Context, id string) (TimesheetResponse, error)
	UnlockTimesheet(ctx context.Context, id string) (TimesheetResponse, error)
	DeleteTimesheet(ctx context.Context, id string) error
}

// EntryService gates entry mutations by timesheet status and validates
// them before they are written.
type EntryService interface {
	ValidateEntry(ctx context.Context, req ValidateEntryRequest) (ValidationResult, error)
	CreateEntry(ctx context.Context, req CreateEntryRequest) (EntryMutationResponse, error)
	UpdateEntry(ctx context.Context, req UpdateEntryRequest) (EntryMutationResponse, error)
	DeleteEntry(ctx context.Context, id string) error
	ListEntries(ctx context.Context, timesheetID string) ([]EntryResponse, error)
}
