package externalsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/reconciliation"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/syncjob"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/database"
)

// Service imports provider records as EXTERNAL entries and then runs
// duplicate cleanup and timesheet merging over the whole store.
type Service struct {
	tx       database.Transactor
	provider attendance.Provider
	timesheet.TimesheetRepository
	timesheet.EntryRepository
	employee.EmployeeRepository
	reconciliationService reconciliation.ReconciliationService
	lookbackDays          int
	now                   func() time.Time
}

func NewService(
	tx database.Transactor,
	provider attendance.Provider,
	timesheetRepo timesheet.TimesheetRepository,
	entryRepo timesheet.EntryRepository,
	employeeRepo employee.EmployeeRepository,
	reconciliationService reconciliation.ReconciliationService,
	lookbackDays int,
) *Service {
	return &Service{
		tx:                    tx,
		provider:              provider,
		TimesheetRepository:   timesheetRepo,
		EntryRepository:       entryRepo,
		EmployeeRepository:    employeeRepo,
		reconciliationService: reconciliationService,
		lookbackDays:          lookbackDays,
		now:                   time.Now,
	}
}

// Window returns the import range: params when given, otherwise the
// lookback period through the end of the current week.
func (s *Service) Window(params syncjob.Params) (time.Time, time.Time) {
	today := timesheet.TruncateDate(s.now())
	from := today.AddDate(0, 0, -s.lookbackDays)
	to := timesheet.WeekEnd(timesheet.WeekStart(today))
	if params.From != nil {
		from = timesheet.TruncateDate(*params.From)
	}
	if params.To != nil {
		to = timesheet.TruncateDate(*params.To)
	}
	return from, to
}

// Run implements syncjob.Runner. A provider failure aborts the run;
// records already saved stay saved.
func (s *Service) Run(ctx context.Context, params syncjob.Params, progress syncjob.ProgressFunc) (any, error) {
	if s.provider == nil {
		return nil, attendance.ErrProviderNotConfigured
	}
	from, to := s.Window(params)

	result := attendance.SyncResult{
		Provider: s.provider.Name(),
		From:     from.Format(timesheet.DateLayout),
		To:       to.Format(timesheet.DateLayout),
		Steps:    make([]attendance.SyncStep, 0, 6),
	}
	step := func(name string, count int, message string) {
		result.Steps = append(result.Steps, attendance.SyncStep{Name: name, Count: count, Message: message})
		progress(ctx, message)
	}

	progress(ctx, fmt.Sprintf("Fetching records from %s for %s to %s", result.Provider, result.From, result.To))
	records, err := s.provider.Fetch(ctx, from, to)
	if err != nil {
		return nil, err
	}
	result.Fetched = len(records)
	step("fetch", len(records), fmt.Sprintf("Fetched %d records", len(records)))

	employees := make(map[string]employee.Employee)
	for _, rec := range records {
		saved, created, err := s.importRecord(ctx, rec, employees)
		switch {
		case err != nil:
			result.Failed++
			result.Failures = append(result.Failures, attendance.RecordFailure{Record: rec.Key(), Reason: err.Error()})
			slog.Warn("External record rejected", "record", rec.Key(), "error", err)
		case saved:
			result.Saved++
		default:
			result.Skipped++
		}
		if created {
			result.TimesheetsCreated++
		}
	}

	step("save", result.Saved, fmt.Sprintf("Saved %d entries", result.Saved))
	step("skip", result.Skipped, fmt.Sprintf("Skipped %d duplicates", result.Skipped))
	if result.Failed > 0 {
		step("fail", result.Failed, fmt.Sprintf("Failed %d records", result.Failed))
	}
	if result.TimesheetsCreated > 0 {
		step("timesheets", result.TimesheetsCreated, fmt.Sprintf("Created %d timesheets", result.TimesheetsCreated))
	}

	result.Cleanup, err = s.reconciliationService.CleanupDuplicates(ctx)
	if err != nil {
		return nil, fmt.Errorf("cleanup after import: %w", err)
	}
	step("cleanup", result.Cleanup.DuplicatesRemoved, fmt.Sprintf(
		"Removed %d duplicate entries, verified %d local entries",
		result.Cleanup.DuplicatesRemoved, result.Cleanup.EntriesVerified,
	))

	result.Merge, err = s.reconciliationService.MergeDuplicateTimesheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("merge after import: %w", err)
	}
	step("merge", result.Merge.TimesheetsMerged, fmt.Sprintf(
		"Merged %d duplicate timesheets (%d entries moved)",
		result.Merge.TimesheetsMerged, result.Merge.EntriesMoved,
	))

	return result, nil
}

// importRecord stores one record. It reports whether an entry was saved
// and whether a timesheet had to be created for it.
func (s *Service) importRecord(ctx context.Context, rec attendance.Record, cache map[string]employee.Employee) (saved bool, createdTimesheet bool, err error) {
	if err := rec.CheckInterval(); err != nil {
		return false, false, err
	}

	emp, ok := cache[rec.EmployeeCode]
	if !ok {
		emp, err = s.EmployeeRepository.GetByEmployeeCode(ctx, rec.EmployeeCode)
		if err != nil {
			if errors.Is(err, employee.ErrEmployeeNotFound) {
				return false, false, fmt.Errorf("unknown employee code %q", rec.EmployeeCode)
			}
			return false, false, err
		}
		cache[rec.EmployeeCode] = emp
	}

	date := timesheet.TruncateDate(rec.Date)
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		week := timesheet.WeekStart(date)
		ts, created, err := s.TimesheetRepository.CreateIfNotExists(txCtx, timesheet.Timesheet{
			EmployeeID:   emp.ID,
			WeekStarting: week,
			WeekEnding:   timesheet.WeekEnd(week),
			Status:       timesheet.StatusOpen,
			AutoCreated:  true,
		})
		if err != nil {
			return err
		}
		createdTimesheet = created

		candidate := timesheet.Entry{
			TimesheetID: ts.ID,
			EmployeeID:  emp.ID,
			Date:        date,
			StartTime:   rec.StartTime,
			EndTime:     rec.EndTime,
			EntryType:   rec.EntryType,
			Status:      ts.Status,
			Source:      timesheet.SourceExternal,
			CompanyID:   rec.CompanyID,
			CompanyName: rec.CompanyName,
		}

		existing, err := s.EntryRepository.ListByEmployeeAndDate(txCtx, emp.ID, date)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.Source == timesheet.SourceExternal && e.Signature() == candidate.Signature() {
				return nil
			}
		}

		if _, err := s.EntryRepository.Create(txCtx, candidate); err != nil {
			return err
		}
		saved = true
		return s.TimesheetRepository.Touch(txCtx, ts.ID)
	})
	if err != nil {
		return false, false, err
	}

	return saved, createdTimesheet, nil
}
