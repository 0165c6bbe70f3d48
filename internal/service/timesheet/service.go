package timesheet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/reconciliation"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/jwt"
)

type TimesheetServiceImpl struct {
	tx database.Transactor
	timesheet.TimesheetRepository
	timesheet.EntryRepository
	employee.EmployeeRepository
	reconciliationService reconciliation.ReconciliationService
	now                   func() time.Time
}

func NewTimesheetService(
	tx database.Transactor,
	timesheetRepo timesheet.TimesheetRepository,
	entryRepo timesheet.EntryRepository,
	employeeRepo employee.EmployeeRepository,
	reconciliationService reconciliation.ReconciliationService,
) timesheet.TimesheetService {
	return &TimesheetServiceImpl{
		tx:                    tx,
		TimesheetRepository:   timesheetRepo,
		EntryRepository:       entryRepo,
		EmployeeRepository:    employeeRepo,
		reconciliationService: reconciliationService,
		now:                   time.Now,
	}
}

// CreateTimesheet implements timesheet.TimesheetService.
func (s *TimesheetServiceImpl) CreateTimesheet(ctx context.Context, req timesheet.CreateTimesheetRequest) (timesheet.TimesheetResponse, error) {
	if err := req.Validate(); err != nil {
		return timesheet.TimesheetResponse{}, err
	}
	actor, err := jwt.ActorFromContext(ctx)
	if err != nil {
		return timesheet.TimesheetResponse{}, fmt.Errorf("failed to extract claims from context: %w", err)
	}

	employeeID, err := targetEmployee(actor, req.EmployeeID)
	if err != nil {
		return timesheet.TimesheetResponse{}, err
	}
	if _, err := s.EmployeeRepository.GetByID(ctx, employeeID); err != nil {
		return timesheet.TimesheetResponse{}, err
	}

	weekStarting, _ := timesheet.ParseDate(req.WeekStarting)

	var created timesheet.Timesheet
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.TimesheetRepository.LockWeek(txCtx, employeeID, weekStarting); err != nil {
			return err
		}
		existing, err := s.TimesheetRepository.GetByEmployeeAndWeek(txCtx, employeeID, weekStarting)
		if err != nil {
			return err
		}
		if existing != nil {
			return timesheet.ErrTimesheetExists
		}

		created, err = s.TimesheetRepository.Create(txCtx, timesheet.Timesheet{
			EmployeeID:   employeeID,
			WeekStarting: weekStarting,
			WeekEnding:   timesheet.WeekEnd(weekStarting),
			Status:       timesheet.StatusOpen,
		})
		return err
	})
	if err != nil {
		return timesheet.TimesheetResponse{}, err
	}

	slog.Info("Timesheet created", "timesheet_id", created.ID, "employee_id", employeeID, "week_starting", req.WeekStarting)
	return newTimesheetResponse(created, nil, false), nil
}

// GetTimesheet implements timesheet.TimesheetService.
func (s *TimesheetServiceImpl) GetTimesheet(ctx context.Context, id string) (timesheet.TimesheetResponse, error) {
	actor, err := jwt.ActorFromContext(ctx)
	if err != nil {
		return timesheet.TimesheetResponse{}, fmt.Errorf("failed to extract claims from context: %w", err)
	}

	ts, err := s.TimesheetRepository.GetByID(ctx, id)
	if err != nil {
		return timesheet.TimesheetResponse{}, err
	}
	if err := authorizeRead(actor, ts); err != nil {
		return timesheet.TimesheetResponse{}, err
	}

	entries, err := s.EntryRepository.ListByTimesheet(ctx, ts.ID)
	if err != nil {
		return timesheet.TimesheetResponse{}, err
	}

	return newTimesheetResponse(ts, entries, true), nil
}

// ListTimesheets implements timesheet.TimesheetService. Employees only see
// their own timesheets.
func (s *TimesheetServiceImpl) ListTimesheets(ctx context.Context, filter timesheet.TimesheetFilter) (timesheet.ListTimesheetResponse, error) {
	if err := filter.Validate(); err != nil {
		return timesheet.ListTimesheetResponse{}, err
	}
	actor, err := jwt.ActorFromContext(ctx)
	if err != nil {
		return timesheet.ListTimesheetResponse{}, fmt.Errorf("failed to extract claims from context: %w", err)
	}
	if !actor.IsAdmin {
		if actor.EmployeeID == "" {
			return timesheet.ListTimesheetResponse{}, timesheet.ErrEmployeeContextMissing
		}
		own := actor.EmployeeID
		filter.EmployeeID = &own
	}

	items, total, err := s.TimesheetRepository.List(ctx, filter)
	if err != nil {
		return timesheet.ListTimesheetResponse{}, err
	}

	resp := timesheet.ListTimesheetResponse{
		Timesheets: make([]timesheet.TimesheetResponse, 0, len(items)),
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}
	for _, ts := range items {
		entries, err := s.EntryRepository.ListByTimesheet(ctx, ts.ID)
		if err != nil {
			return timesheet.ListTimesheetResponse{}, err
		}
		resp.Timesheets = append(resp.Timesheets, newTimesheetResponse(ts, entries, false))
	}

	return resp, nil
}

// AutoCreateTimesheets implements timesheet.TimesheetService.
func (s *TimesheetServiceImpl) AutoCreateTimesheets(ctx context.Context, employeeID string) (timesheet.AutoCreateResponse, error) {
	actor, err := jwt.ActorFromContext(ctx)
	if err != nil {
		return timesheet.AutoCreateResponse{}, fmt.Errorf("failed to extract claims from context: %w", err)
	}
	employeeID, err = targetEmployee(actor, employeeID)
	if err != nil {
		return timesheet.AutoCreateResponse{}, err
	}

	summary, err := s.reconciliationService.AutoCreateTimesheets(ctx, employeeID)
	if err != nil {
		return timesheet.AutoCreateResponse{}, err
	}

	resp := timesheet.AutoCreateResponse{
		EmployeeID: employeeID,
		Created:    make([]timesheet.TimesheetResponse, 0, len(summary.Created)),
		Existing:   summary.AlreadyExist,
	}
	for _, id := range summary.Created {
		ts, err := s.TimesheetRepository.GetByID(ctx, id)
		if err != nil {
			return timesheet.AutoCreateResponse{}, err
		}
		resp.Created = append(resp.Created, newTimesheetResponse(ts, nil, false))
	}

	return resp, nil
}

// SubmitTimesheet implements timesheet.TimesheetService.
func (s *TimesheetServiceImpl) SubmitTimesheet(ctx context.Context, id string) (timesheet.TimesheetResponse, error) {
	return s.transition(ctx, id, timesheet.ActionSubmit)
}

// ApproveTimesheet implements timesheet.TimesheetService.
func (s *TimesheetServiceImpl) ApproveTimesheet(ctx context.Context, id string) (timesheet.TimesheetResponse, error) {
	return s.transition(ctx, id, timesheet.ActionApprove)
}

// LockTimesheet implements timesheet.TimesheetService.
func (s *TimesheetServiceImpl) LockTimesheet(ctx context.Context, id string) (timesheet.TimesheetResponse, error) {
	return s.transition(ctx, id, timesheet.ActionLock)
}

// UnlockTimesheet implements timesheet.TimesheetService.
func (s *TimesheetServiceImpl) UnlockTimesheet(ctx context.Context, id string) (timesheet.TimesheetResponse, error) {
	return s.transition(ctx, id, timesheet.ActionUnlock)
}

// transition moves the timesheet along one edge and brings every entry to
// the new status in the same transaction.
func (s *TimesheetServiceImpl) transition(ctx context.Context, id string, action timesheet.Action) (timesheet.TimesheetResponse, error) {
	actor, err := jwt.ActorFromContext(ctx)
	if err != nil {
		return timesheet.TimesheetResponse{}, fmt.Errorf("failed to extract claims from context: %w", err)
	}
	if timesheet.RequiresAdmin(action) && !actor.IsAdmin {
		return timesheet.TimesheetResponse{}, timesheet.ErrAdminRequired
	}

	var (
		updated  timesheet.Timesheet
		previous timesheet.Status
		cascaded int64
	)
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		ts, err := s.TimesheetRepository.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if action == timesheet.ActionSubmit && (actor.EmployeeID == "" || ts.EmployeeID != actor.EmployeeID) {
			return timesheet.ErrNotOwner
		}

		next, err := timesheet.Next(ts.Status, action)
		if err != nil {
			return err
		}

		if action == timesheet.ActionSubmit {
			count, err := s.EntryRepository.CountByTimesheet(txCtx, ts.ID)
			if err != nil {
				return err
			}
			if count == 0 {
				return timesheet.ErrEmptyTimesheet
			}
		}

		if err := s.TimesheetRepository.UpdateStatus(txCtx, ts.ID, next); err != nil {
			return err
		}
		cascaded, err = s.EntryRepository.SyncStatusWithTimesheet(txCtx, ts.ID, next)
		if err != nil {
			return err
		}

		previous = ts.Status
		updated = ts
		updated.Status = next
		updated.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return timesheet.TimesheetResponse{}, err
	}

	slog.Info("Timesheet status changed",
		"timesheet_id", id,
		"action", string(action),
		"from", string(previous),
		"to", string(updated.Status),
		"entries_updated", cascaded,
		"user_id", actor.UserID,
	)

	entries, err := s.EntryRepository.ListByTimesheet(ctx, id)
	if err != nil {
		return timesheet.TimesheetResponse{}, err
	}
	return newTimesheetResponse(updated, entries, true), nil
}

// DeleteTimesheet implements timesheet.TimesheetService. Entries are
// removed with the timesheet.
func (s *TimesheetServiceImpl) DeleteTimesheet(ctx context.Context, id string) error {
	actor, err := jwt.ActorFromContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to extract claims from context: %w", err)
	}
	if !actor.IsAdmin {
		return timesheet.ErrAdminRequired
	}

	var removed int
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		ts, err := s.TimesheetRepository.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if _, err := timesheet.Next(ts.Status, timesheet.ActionDelete); err != nil {
			return err
		}
		removed, err = s.EntryRepository.CountByTimesheet(txCtx, ts.ID)
		if err != nil {
			return err
		}
		return s.TimesheetRepository.Delete(txCtx, ts.ID)
	})
	if err != nil {
		return err
	}

	slog.Info("Timesheet deleted", "timesheet_id", id, "entries_removed", removed, "user_id", actor.UserID)
	return nil
}

// targetEmployee resolves whose data a request acts on. Admins may name any
// employee; everyone else acts on themselves.
func targetEmployee(actor jwt.Actor, requested string) (string, error) {
	if requested == "" || requested == actor.EmployeeID {
		if actor.EmployeeID == "" {
			return "", timesheet.ErrEmployeeContextMissing
		}
		return actor.EmployeeID, nil
	}
	if !actor.IsAdmin {
		return "", timesheet.ErrNotOwner
	}
	return requested, nil
}

func authorizeRead(actor jwt.Actor, ts timesheet.Timesheet) error {
	if actor.IsAdmin || (actor.EmployeeID != "" && actor.EmployeeID == ts.EmployeeID) {
		return nil
	}
	return timesheet.ErrNotOwner
}

// authorizeEntryWrite gates entry mutations: admins in any state, owners
// only while the timesheet is open.
func authorizeEntryWrite(actor jwt.Actor, ts timesheet.Timesheet) error {
	if actor.IsAdmin {
		return nil
	}
	if actor.EmployeeID == "" || actor.EmployeeID != ts.EmployeeID {
		return timesheet.ErrNotOwner
	}
	if !timesheet.EntriesMutable(ts.Status) {
		return timesheet.ErrTimesheetReadOnly
	}
	return nil
}
