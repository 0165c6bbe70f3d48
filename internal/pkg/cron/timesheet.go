package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/reconciliation"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/syncjob"
)

type TimesheetJobs struct {
	reconciliationService reconciliation.ReconciliationService
	syncJobService        syncjob.SyncJobService
}

func NewTimesheetJobs(reconciliationService reconciliation.ReconciliationService, syncJobService syncjob.SyncJobService) *TimesheetJobs {
	return &TimesheetJobs{
		reconciliationService: reconciliationService,
		syncJobService:        syncJobService,
	}
}

// RegisterJobs wires the periodic jobs. A zero interval leaves a job off.
func (j *TimesheetJobs) RegisterJobs(scheduler *Scheduler, autoCreateInterval, externalSyncInterval time.Duration) {
	scheduler.AddJob("auto_create_timesheets", autoCreateInterval, j.AutoCreateTimesheets)
	scheduler.AddDelayedJob("external_sync", externalSyncInterval, j.StartExternalSync)
}

func (j *TimesheetJobs) AutoCreateTimesheets(ctx context.Context) error {
	summary, err := j.reconciliationService.AutoCreateForActiveEmployees(ctx)
	if err != nil {
		return err
	}
	slog.Info("Cron: auto-create timesheets finished",
		"employees_checked", summary.EmployeesChecked,
		"timesheets_created", summary.TimesheetsCreated,
		"failures", len(summary.Failures),
	)
	return nil
}

// StartExternalSync enqueues an external-sync job and returns without
// waiting for it. A sync that is still in flight is left alone.
func (j *TimesheetJobs) StartExternalSync(ctx context.Context) error {
	job, err := j.syncJobService.StartJob(ctx, syncjob.StartJobRequest{Kind: string(syncjob.KindExternalSync)})
	if errors.Is(err, syncjob.ErrJobAlreadyRunning) {
		slog.Info("Cron: external sync skipped, previous run still active")
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("Cron: external sync started", "job_id", job.ID)
	return nil
}
