package timesheet

import (
	"context"
	"time"
)

// TimesheetRepository defines data access for timesheets. There is no
// storage-level uniqueness on (employee, week): writers take LockWeek, and
// duplicates from other sources are repaired by reconciliation.
type TimesheetRepository interface {
	Create(ctx context.Context, ts Timesheet) (Timesheet, error)

	// CreateIfNotExists inserts ts unless a timesheet already exists for the
	// same employee and week. It returns the stored timesheet and whether it
	// was created by this call.
	CreateIfNotExists(ctx context.Context, ts Timesheet) (Timesheet, bool, error)

	// LockWeek serializes timesheet creation for the employee and week until
	// the enclosing transaction ends.
	LockWeek(ctx context.Context, employeeID string, weekStarting time.Time) error

	GetByID(ctx context.Context, id string) (Timesheet, error)

	// GetByIDForUpdate locks the row for the rest of the enclosing transaction.
	GetByIDForUpdate(ctx context.Context, id string) (Timesheet, error)

	// GetByEmployeeAndWeek returns the canonical timesheet for the week, or nil.
	GetByEmployeeAndWeek(ctx context.Context, employeeID string, weekStarting time.Time) (*Timesheet, error)

	List(ctx context.Context, filter TimesheetFilter) ([]Timesheet, int64, error)

	// ListAll returns every timesheet ordered by employee, week, created_at, id.
	ListAll(ctx context.Context) ([]Timesheet, error)

	UpdateStatus(ctx context.Context, id string, status Status) error
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// EntryRepository defines data access for entries. Entries returned by
// every read carry the EmployeeID of their timesheet.
type EntryRepository interface {
	Create(ctx context.Context, entry Entry) (Entry, error)
	Update(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Entry, error)

	ListByTimesheet(ctx context.Context, timesheetID string) ([]Entry, error)

	// ListByEmployeeAndDate spans all of the employee's timesheets.
	ListByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) ([]Entry, error)

	// ListBySource returns entries ordered by created_at, id.
	ListBySource(ctx context.Context, source Source) ([]Entry, error)

	DeleteMany(ctx context.Context, ids []string) (int64, error)
	MarkVerified(ctx context.Context, ids []string) (int64, error)

	// SyncStatusWithTimesheet sets every entry of the timesheet whose status
	// differs from status and returns how many rows changed.
	SyncStatusWithTimesheet(ctx context.Context, timesheetID string, status Status) (int64, error)

	// MoveToTimesheet reassigns all entries of from to to, giving them status.
	MoveToTimesheet(ctx context.Context, from, to string, status Status) (int64, error)

	CountByTimesheet(ctx context.Context, timesheetID string) (int, error)
}
