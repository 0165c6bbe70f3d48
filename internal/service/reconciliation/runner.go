package reconciliation

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/syncjob"
)

// Runners exposes each whole-store operation as a job kind.
func (s *ReconciliationServiceImpl) Runners() map[syncjob.Kind]syncjob.Runner {
	return map[syncjob.Kind]syncjob.Runner{
		syncjob.KindCleanupDuplicates:           syncjob.RunnerFunc(s.runCleanupDuplicates),
		syncjob.KindMergeDuplicateTimesheets:    syncjob.RunnerFunc(s.runMergeDuplicateTimesheets),
		syncjob.KindRepairStatusInconsistencies: syncjob.RunnerFunc(s.runRepairStatusInconsistencies),
		syncjob.KindRemoveWeekendEntries:        syncjob.RunnerFunc(s.runRemoveWeekendEntries),
	}
}

func (s *ReconciliationServiceImpl) runCleanupDuplicates(ctx context.Context, _ syncjob.Params, progress syncjob.ProgressFunc) (any, error) {
	progress(ctx, "Scanning external entries for duplicates")
	summary, err := s.CleanupDuplicates(ctx)
	if err != nil {
		return nil, err
	}
	progress(ctx, fmt.Sprintf("Removed %d duplicate entries", summary.DuplicatesRemoved))
	progress(ctx, fmt.Sprintf("Verified %d local entries", summary.EntriesVerified))
	return summary, nil
}

func (s *ReconciliationServiceImpl) runMergeDuplicateTimesheets(ctx context.Context, _ syncjob.Params, progress syncjob.ProgressFunc) (any, error) {
	progress(ctx, "Scanning timesheets for duplicate weeks")
	summary, err := s.MergeDuplicateTimesheets(ctx)
	if err != nil {
		return nil, err
	}
	progress(ctx, fmt.Sprintf("Merged %d duplicate timesheets", summary.TimesheetsMerged))
	progress(ctx, fmt.Sprintf("Moved %d entries", summary.EntriesMoved))
	return summary, nil
}

func (s *ReconciliationServiceImpl) runRepairStatusInconsistencies(ctx context.Context, _ syncjob.Params, progress syncjob.ProgressFunc) (any, error) {
	progress(ctx, "Checking entry statuses against their timesheets")
	summary, err := s.RepairStatusInconsistencies(ctx)
	if err != nil {
		return nil, err
	}
	progress(ctx, fmt.Sprintf("Checked %d timesheets", summary.TimesheetsChecked))
	progress(ctx, fmt.Sprintf("Fixed %d timesheets (%d entries updated)", summary.TimesheetsFixed, summary.EntriesUpdated))
	return summary, nil
}

func (s *ReconciliationServiceImpl) runRemoveWeekendEntries(ctx context.Context, _ syncjob.Params, progress syncjob.ProgressFunc) (any, error) {
	progress(ctx, "Scanning external entries for weekend dates")
	summary, err := s.RemoveWeekendEntries(ctx)
	if err != nil {
		return nil, err
	}
	progress(ctx, fmt.Sprintf("Removed %d weekend entries", summary.WeekendEntriesRemoved))
	return summary, nil
}
