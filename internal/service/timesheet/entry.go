package timesheet

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/jwt"
)

type EntryServiceImpl struct {
	tx database.Transactor
	timesheet.TimesheetRepository
	timesheet.EntryRepository
	employee.EmployeeRepository
	validator       EntryValidator
	defaultDailyCap float64
}

func NewEntryService(
	tx database.Transactor,
	timesheetRepo timesheet.TimesheetRepository,
	entryRepo timesheet.EntryRepository,
	employeeRepo employee.EmployeeRepository,
	defaultDailyCap float64,
) timesheet.EntryService {
	return &EntryServiceImpl{
		tx:                  tx,
		TimesheetRepository: timesheetRepo,
		EntryRepository:     entryRepo,
		EmployeeRepository:  employeeRepo,
		validator:           NewEntryValidator(),
		defaultDailyCap:     defaultDailyCap,
	}
}

// ValidateEntry implements timesheet.EntryService. Nothing is written.
func (s *EntryServiceImpl) ValidateEntry(ctx context.Context, req timesheet.ValidateEntryRequest) (timesheet.ValidationResult, error) {
	if err := req.Validate(); err != nil {
		return timesheet.ValidationResult{}, err
	}
	actor, err := jwt.ActorFromContext(ctx)
	if err != nil {
		return timesheet.ValidationResult{}, fmt.Errorf("failed to extract claims from context: %w", err)
	}

	ts, err := s.TimesheetRepository.GetByID(ctx, req.TimesheetID)
	if err != nil {
		return timesheet.ValidationResult{}, err
	}
	if err := authorizeRead(actor, ts); err != nil {
		return timesheet.ValidationResult{}, err
	}

	date, _ := timesheet.ParseDate(req.Date)
	candidate := timesheet.Candidate{
		Date:        date,
		StartTime:   parseOptionalClock(req.StartTime),
		EndTime:     parseOptionalClock(req.EndTime),
		CompanyID:   req.CompanyID,
		CompanyName: req.CompanyName,
	}

	exclude := ""
	if req.EntryID != nil {
		exclude = *req.EntryID
	}
	return s.check(ctx, ts, candidate, exclude)
}

// CreateEntry implements timesheet.EntryService.
func (s *EntryServiceImpl) CreateEntry(ctx context.Context, req timesheet.CreateEntryRequest) (timesheet.EntryMutationResponse, error) {
	if err := req.Validate(); err != nil {
		return timesheet.EntryMutationResponse{}, err
	}
	actor, err := jwt.ActorFromContext(ctx)
	if err != nil {
		return timesheet.EntryMutationResponse{}, fmt.Errorf("failed to extract claims from context: %w", err)
	}

	date, _ := timesheet.ParseDate(req.Date)
	candidate := timesheet.Candidate{
		Date:        date,
		StartTime:   parseOptionalClock(req.StartTime),
		EndTime:     parseOptionalClock(req.EndTime),
		CompanyID:   req.CompanyID,
		CompanyName: req.CompanyName,
	}

	var (
		created  timesheet.Entry
		warnings []string
	)
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		ts, err := s.TimesheetRepository.GetByIDForUpdate(txCtx, req.TimesheetID)
		if err != nil {
			return err
		}
		if err := authorizeEntryWrite(actor, ts); err != nil {
			return err
		}

		if req.DefaultWindow != "" && (candidate.StartTime == nil || candidate.EndTime == nil) {
			emp, err := s.EmployeeRepository.GetByID(txCtx, ts.EmployeeID)
			if err != nil {
				return err
			}
			window, _ := emp.Window(req.DefaultWindow)
			if candidate.StartTime == nil {
				start := window.Start
				candidate.StartTime = &start
			}
			if candidate.EndTime == nil {
				end := window.End
				candidate.EndTime = &end
			}
		}

		result, err := s.check(txCtx, ts, candidate, "")
		if err != nil {
			return err
		}
		if err := result.Err(req.ConfirmWarnings); err != nil {
			return err
		}
		warnings = result.Warnings

		created, err = s.EntryRepository.Create(txCtx, timesheet.Entry{
			TimesheetID: ts.ID,
			EmployeeID:  ts.EmployeeID,
			Date:        date,
			StartTime:   *candidate.StartTime,
			EndTime:     *candidate.EndTime,
			EntryType:   timesheet.OtherEntryType(req.EntryType),
			Status:      ts.Status,
			Source:      timesheet.SourceLocal,
			CompanyID:   req.CompanyID,
			CompanyName: req.CompanyName,
			Notes:       req.Notes,
			Location:    req.Location,
		})
		if err != nil {
			return err
		}
		return s.TimesheetRepository.Touch(txCtx, ts.ID)
	})
	if err != nil {
		return timesheet.EntryMutationResponse{}, err
	}

	slog.Info("Timesheet entry created", "entry_id", created.ID, "timesheet_id", created.TimesheetID, "user_id", actor.UserID)
	return timesheet.EntryMutationResponse{Entry: newEntryResponse(created), Warnings: warnings}, nil
}

// UpdateEntry implements timesheet.EntryService.
func (s *EntryServiceImpl) UpdateEntry(ctx context.Context, req timesheet.UpdateEntryRequest) (timesheet.EntryMutationResponse, error) {
	if err := req.Validate(); err != nil {
		return timesheet.EntryMutationResponse{}, err
	}
	actor, err := jwt.ActorFromContext(ctx)
	if err != nil {
		return timesheet.EntryMutationResponse{}, fmt.Errorf("failed to extract claims from context: %w", err)
	}

	var (
		updated  timesheet.Entry
		warnings []string
	)
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		entry, err := s.EntryRepository.GetByID(txCtx, req.ID)
		if err != nil {
			return err
		}
		ts, err := s.TimesheetRepository.GetByIDForUpdate(txCtx, entry.TimesheetID)
		if err != nil {
			return err
		}
		if err := authorizeEntryWrite(actor, ts); err != nil {
			return err
		}

		applyEntryUpdate(&entry, req)
		start, end := entry.StartTime, entry.EndTime
		result, err := s.check(txCtx, ts, timesheet.Candidate{
			Date:        entry.Date,
			StartTime:   &start,
			EndTime:     &end,
			CompanyID:   entry.CompanyID,
			CompanyName: entry.CompanyName,
		}, entry.ID)
		if err != nil {
			return err
		}
		if err := result.Err(req.ConfirmWarnings); err != nil {
			return err
		}
		warnings = result.Warnings

		entry.Status = ts.Status
		if err := s.EntryRepository.Update(txCtx, entry); err != nil {
			return err
		}
		updated, err = s.EntryRepository.GetByID(txCtx, entry.ID)
		if err != nil {
			return err
		}
		return s.TimesheetRepository.Touch(txCtx, ts.ID)
	})
	if err != nil {
		return timesheet.EntryMutationResponse{}, err
	}

	slog.Info("Timesheet entry updated", "entry_id", updated.ID, "timesheet_id", updated.TimesheetID, "user_id", actor.UserID)
	return timesheet.EntryMutationResponse{Entry: newEntryResponse(updated), Warnings: warnings}, nil
}

// DeleteEntry implements timesheet.EntryService.
func (s *EntryServiceImpl) DeleteEntry(ctx context.Context, id string) error {
	actor, err := jwt.ActorFromContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to extract claims from context: %w", err)
	}

	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		entry, err := s.EntryRepository.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		ts, err := s.TimesheetRepository.GetByIDForUpdate(txCtx, entry.TimesheetID)
		if err != nil {
			return err
		}
		if err := authorizeEntryWrite(actor, ts); err != nil {
			return err
		}
		if err := s.EntryRepository.Delete(txCtx, entry.ID); err != nil {
			return err
		}
		return s.TimesheetRepository.Touch(txCtx, ts.ID)
	})
	if err != nil {
		return err
	}

	slog.Info("Timesheet entry deleted", "entry_id", id, "user_id", actor.UserID)
	return nil
}

// ListEntries implements timesheet.EntryService.
func (s *EntryServiceImpl) ListEntries(ctx context.Context, timesheetID string) ([]timesheet.EntryResponse, error) {
	actor, err := jwt.ActorFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to extract claims from context: %w", err)
	}

	ts, err := s.TimesheetRepository.GetByID(ctx, timesheetID)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(actor, ts); err != nil {
		return nil, err
	}

	entries, err := s.EntryRepository.ListByTimesheet(ctx, ts.ID)
	if err != nil {
		return nil, err
	}

	resp := make([]timesheet.EntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, newEntryResponse(e))
	}
	return resp, nil
}

// check loads the context the rules need and runs them.
func (s *EntryServiceImpl) check(ctx context.Context, ts timesheet.Timesheet, candidate timesheet.Candidate, excludeEntryID string) (timesheet.ValidationResult, error) {
	emp, err := s.EmployeeRepository.GetByID(ctx, ts.EmployeeID)
	if err != nil {
		return timesheet.ValidationResult{}, err
	}
	siblings, err := s.EntryRepository.ListByEmployeeAndDate(ctx, ts.EmployeeID, candidate.Date)
	if err != nil {
		return timesheet.ValidationResult{}, err
	}

	return s.validator.Validate(candidate, siblings, ts.Window(), emp.DailyCap(s.defaultDailyCap), excludeEntryID), nil
}

func applyEntryUpdate(entry *timesheet.Entry, req timesheet.UpdateEntryRequest) {
	if req.Date != nil {
		entry.Date, _ = timesheet.ParseDate(*req.Date)
	}
	if start := parseOptionalClock(req.StartTime); start != nil {
		entry.StartTime = *start
	}
	if end := parseOptionalClock(req.EndTime); end != nil {
		entry.EndTime = *end
	}
	if req.EntryType != nil {
		entry.EntryType = timesheet.OtherEntryType(*req.EntryType)
	}
	if req.CompanyID != nil {
		entry.CompanyID = *req.CompanyID
	}
	if req.CompanyName != nil {
		entry.CompanyName = *req.CompanyName
	}
	if req.Notes != nil {
		entry.Notes = req.Notes
	}
	if req.Location != nil {
		entry.Location = req.Location
	}
}

func parseOptionalClock(s *string) *timesheet.ClockTime {
	if s == nil {
		return nil
	}
	c, err := timesheet.ParseClockTime(*s)
	if err != nil {
		return nil
	}
	return &c
}
