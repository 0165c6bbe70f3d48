package reconciliation

import (
	"context"
)

// ReconciliationService repairs integrity problems across the whole store.
// Every operation is idempotent and never deletes LOCAL entries.
type ReconciliationService interface {
	CleanupDuplicates(ctx context.Context) (CleanupSummary, error)
	MergeDuplicateTimesheets(ctx context.Context) (MergeSummary, error)
	RepairStatusInconsistencies(ctx context.Context) (RepairSummary, error)
	RemoveWeekendEntries(ctx context.Context) (WeekendSummary, error)
	AutoCreateTimesheets(ctx context.Context, employeeID string) (AutoCreateSummary, error)
	AutoCreateForActiveEmployees(ctx context.Context) (BatchAutoCreateSummary, error)
}
