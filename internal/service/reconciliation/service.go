package reconciliation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/reconciliation"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/database"
)

type ReconciliationServiceImpl struct {
	tx database.Transactor
	timesheet.TimesheetRepository
	timesheet.EntryRepository
	employee.EmployeeRepository
	now func() time.Time
}

func NewReconciliationService(
	tx database.Transactor,
	timesheetRepo timesheet.TimesheetRepository,
	entryRepo timesheet.EntryRepository,
	employeeRepo employee.EmployeeRepository,
) *ReconciliationServiceImpl {
	return &ReconciliationServiceImpl{
		tx:                  tx,
		TimesheetRepository: timesheetRepo,
		EntryRepository:     entryRepo,
		EmployeeRepository:  employeeRepo,
		now:                 time.Now,
	}
}

// CleanupDuplicates implements reconciliation.ReconciliationService.
//
// External entries sharing a signature collapse onto the earliest created
// one (ties go to the lowest id). Local entries matching a surviving
// external signature are marked verified; neither side's enrichment
// fields are touched.
func (s *ReconciliationServiceImpl) CleanupDuplicates(ctx context.Context) (reconciliation.CleanupSummary, error) {
	var summary reconciliation.CleanupSummary

	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		externals, err := s.EntryRepository.ListBySource(txCtx, timesheet.SourceExternal)
		if err != nil {
			return err
		}

		groups, order := groupEntries(externals)
		summary.GroupsScanned = len(order)

		var remove []string
		for _, sig := range order {
			group := groups[sig]
			if len(group) < 2 {
				continue
			}
			if err := sortByCreation(group, "cleanupDuplicates", signatureKey(sig)); err != nil {
				return err
			}
			for _, dup := range group[1:] {
				remove = append(remove, dup.ID)
			}
			slog.Warn("Duplicate external entries resolved",
				"signature", signatureKey(sig),
				"kept", group[0].ID,
				"removed", len(group)-1,
			)
		}

		removed, err := s.EntryRepository.DeleteMany(txCtx, remove)
		if err != nil {
			return err
		}
		summary.DuplicatesRemoved = int(removed)

		locals, err := s.EntryRepository.ListBySource(txCtx, timesheet.SourceLocal)
		if err != nil {
			return err
		}
		var verify []string
		for _, local := range locals {
			if local.Verified {
				continue
			}
			if _, ok := groups[local.Signature()]; ok {
				verify = append(verify, local.ID)
			}
		}
		verified, err := s.EntryRepository.MarkVerified(txCtx, verify)
		if err != nil {
			return err
		}
		summary.EntriesVerified = int(verified)
		return nil
	})
	if err != nil {
		return reconciliation.CleanupSummary{}, err
	}

	slog.Info("Duplicate cleanup finished",
		"groups_scanned", summary.GroupsScanned,
		"duplicates_removed", summary.DuplicatesRemoved,
		"entries_verified", summary.EntriesVerified,
	)
	return summary, nil
}

// MergeDuplicateTimesheets implements reconciliation.ReconciliationService.
//
// The canonical timesheet of a (employee, week) group is the earliest
// created one, ties broken by lowest id. Moved entries take the canonical
// timesheet's status.
func (s *ReconciliationServiceImpl) MergeDuplicateTimesheets(ctx context.Context) (reconciliation.MergeSummary, error) {
	var summary reconciliation.MergeSummary

	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		all, err := s.TimesheetRepository.ListAll(txCtx)
		if err != nil {
			return err
		}

		type weekKey struct {
			employeeID string
			week       string
		}
		groups := make(map[weekKey][]timesheet.Timesheet)
		var order []weekKey
		for _, ts := range all {
			key := weekKey{employeeID: ts.EmployeeID, week: ts.WeekStarting.Format(timesheet.DateLayout)}
			if _, seen := groups[key]; !seen {
				order = append(order, key)
			}
			groups[key] = append(groups[key], ts)
		}
		summary.GroupsScanned = len(order)

		for _, key := range order {
			group := groups[key]
			if len(group) < 2 {
				continue
			}
			groupKey := key.employeeID + "/" + key.week
			if err := sortTimesheetsByCreation(group, groupKey); err != nil {
				return err
			}

			canonical := group[0]
			for _, dup := range group[1:] {
				moved, err := s.EntryRepository.MoveToTimesheet(txCtx, dup.ID, canonical.ID, canonical.Status)
				if err != nil {
					return err
				}
				if err := s.TimesheetRepository.Delete(txCtx, dup.ID); err != nil {
					return err
				}
				summary.TimesheetsMerged++
				summary.EntriesMoved += int(moved)
			}
			if err := s.TimesheetRepository.Touch(txCtx, canonical.ID); err != nil {
				return err
			}

			slog.Warn("Duplicate timesheets merged",
				"employee_id", key.employeeID,
				"week_starting", key.week,
				"canonical", canonical.ID,
				"merged", len(group)-1,
			)
		}
		return nil
	})
	if err != nil {
		return reconciliation.MergeSummary{}, err
	}

	slog.Info("Timesheet merge finished",
		"groups_scanned", summary.GroupsScanned,
		"timesheets_merged", summary.TimesheetsMerged,
		"entries_moved", summary.EntriesMoved,
	)
	return summary, nil
}

// RepairStatusInconsistencies implements reconciliation.ReconciliationService.
func (s *ReconciliationServiceImpl) RepairStatusInconsistencies(ctx context.Context) (reconciliation.RepairSummary, error) {
	var summary reconciliation.RepairSummary

	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		all, err := s.TimesheetRepository.ListAll(txCtx)
		if err != nil {
			return err
		}

		for _, ts := range all {
			if ts.Status == timesheet.StatusOpen {
				continue
			}
			summary.TimesheetsChecked++

			updated, err := s.EntryRepository.SyncStatusWithTimesheet(txCtx, ts.ID, ts.Status)
			if err != nil {
				return err
			}
			if updated > 0 {
				summary.TimesheetsFixed++
				summary.EntriesUpdated += int(updated)
				slog.Warn("Entry statuses repaired", "timesheet_id", ts.ID, "status", string(ts.Status), "entries_updated", updated)
			}
		}
		return nil
	})
	if err != nil {
		return reconciliation.RepairSummary{}, err
	}

	slog.Info("Status repair finished",
		"timesheets_checked", summary.TimesheetsChecked,
		"timesheets_fixed", summary.TimesheetsFixed,
		"entries_updated", summary.EntriesUpdated,
	)
	return summary, nil
}

// RemoveWeekendEntries implements reconciliation.ReconciliationService.
// Only external entries are removed.
func (s *ReconciliationServiceImpl) RemoveWeekendEntries(ctx context.Context) (reconciliation.WeekendSummary, error) {
	var summary reconciliation.WeekendSummary

	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		externals, err := s.EntryRepository.ListBySource(txCtx, timesheet.SourceExternal)
		if err != nil {
			return err
		}

		var remove []string
		affected := make(map[string]struct{})
		var affectedOrder []string
		for _, e := range externals {
			if !timesheet.IsWeekend(e.Date) {
				continue
			}
			remove = append(remove, e.ID)
			if _, ok := affected[e.TimesheetID]; !ok {
				affected[e.TimesheetID] = struct{}{}
				affectedOrder = append(affectedOrder, e.TimesheetID)
			}
		}

		removed, err := s.EntryRepository.DeleteMany(txCtx, remove)
		if err != nil {
			return err
		}
		summary.WeekendEntriesRemoved = int(removed)

		for _, id := range affectedOrder {
			if err := s.TimesheetRepository.Touch(txCtx, id); err != nil {
				return err
			}
		}
		summary.TimesheetsTouched = len(affectedOrder)
		return nil
	})
	if err != nil {
		return reconciliation.WeekendSummary{}, err
	}

	slog.Info("Weekend entry removal finished",
		"weekend_entries_removed", summary.WeekendEntriesRemoved,
		"timesheets_touched", summary.TimesheetsTouched,
	)
	return summary, nil
}

// AutoCreateTimesheets implements reconciliation.ReconciliationService.
// It ensures the current and next Monday-aligned weeks exist.
func (s *ReconciliationServiceImpl) AutoCreateTimesheets(ctx context.Context, employeeID string) (reconciliation.AutoCreateSummary, error) {
	summary := reconciliation.AutoCreateSummary{EmployeeID: employeeID, Created: make([]string, 0, 2)}

	emp, err := s.EmployeeRepository.GetByID(ctx, employeeID)
	if err != nil {
		return reconciliation.AutoCreateSummary{}, err
	}
	if emp.EmploymentStatus != "" && emp.EmploymentStatus != employee.EmploymentStatusActive {
		return reconciliation.AutoCreateSummary{}, employee.ErrEmployeeInactive
	}

	current := timesheet.WeekStart(s.now())
	for _, week := range []time.Time{current, current.AddDate(0, 0, 7)} {
		ts, created, err := s.TimesheetRepository.CreateIfNotExists(ctx, timesheet.Timesheet{
			EmployeeID:   employeeID,
			WeekStarting: week,
			WeekEnding:   timesheet.WeekEnd(week),
			Status:       timesheet.StatusOpen,
			AutoCreated:  true,
		})
		if err != nil {
			return reconciliation.AutoCreateSummary{}, err
		}
		if created {
			summary.Created = append(summary.Created, ts.ID)
			slog.Info("Timesheet auto-created", "timesheet_id", ts.ID, "employee_id", employeeID, "week_starting", week.Format(timesheet.DateLayout))
		} else {
			summary.AlreadyExist++
		}
	}

	return summary, nil
}

// AutoCreateForActiveEmployees implements reconciliation.ReconciliationService.
// A failure for one employee does not stop the others.
func (s *ReconciliationServiceImpl) AutoCreateForActiveEmployees(ctx context.Context) (reconciliation.BatchAutoCreateSummary, error) {
	var summary reconciliation.BatchAutoCreateSummary

	ids, err := s.EmployeeRepository.ListActiveIDs(ctx)
	if err != nil {
		return summary, err
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.EmployeesChecked++
		result, err := s.AutoCreateTimesheets(ctx, id)
		if err != nil {
			slog.Error("Auto-create timesheets failed", "employee_id", id, "error", err)
			summary.Failures = append(summary.Failures, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		summary.TimesheetsCreated += len(result.Created)
	}

	return summary, nil
}

func groupEntries(entries []timesheet.Entry) (map[timesheet.Signature][]timesheet.Entry, []timesheet.Signature) {
	groups := make(map[timesheet.Signature][]timesheet.Entry)
	var order []timesheet.Signature
	for _, e := range entries {
		sig := e.Signature()
		if _, seen := groups[sig]; !seen {
			order = append(order, sig)
		}
		groups[sig] = append(groups[sig], e)
	}
	return groups, order
}

func signatureKey(sig timesheet.Signature) string {
	return fmt.Sprintf("%s/%s/%s/%s", sig.EmployeeID, sig.Date, timesheet.FormatRange(sig.Start, sig.End), sig.CompanyID)
}

// sortByCreation orders a duplicate group by created_at then id. A member
// without either cannot be ordered.
func sortByCreation(group []timesheet.Entry, operation, key string) error {
	for _, e := range group {
		if e.ID == "" || e.CreatedAt.IsZero() {
			return &reconciliation.ConflictError{Operation: operation, GroupKey: key, Reason: "member without id or creation time"}
		}
	}
	sort.SliceStable(group, func(i, j int) bool {
		if !group[i].CreatedAt.Equal(group[j].CreatedAt) {
			return group[i].CreatedAt.Before(group[j].CreatedAt)
		}
		return group[i].ID < group[j].ID
	})
	return nil
}

func sortTimesheetsByCreation(group []timesheet.Timesheet, key string) error {
	for _, ts := range group {
		if ts.ID == "" || ts.CreatedAt.IsZero() {
			return &reconciliation.ConflictError{Operation: "mergeDuplicateTimesheets", GroupKey: key, Reason: "member without id or creation time"}
		}
	}
	sort.SliceStable(group, func(i, j int) bool {
		if !group[i].CreatedAt.Equal(group[j].CreatedAt) {
			return group[i].CreatedAt.Before(group[j].CreatedAt)
		}
		return group[i].ID < group[j].ID
	})
	return nil
}
