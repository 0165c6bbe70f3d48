package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/validator"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const timesheetColumns = `id, employee_id, week_starting, week_ending, status, auto_created, created_at, updated_at`

type timesheetRepository struct {
	db *database.DB
}

func NewTimesheetRepository(db *database.DB) timesheet.TimesheetRepository {
	return &timesheetRepository{db: db}
}

func scanTimesheet(row pgx.Row) (timesheet.Timesheet, error) {
	var ts timesheet.Timesheet
	var status string
	err := row.Scan(
		&ts.ID, &ts.EmployeeID, &ts.WeekStarting, &ts.WeekEnding,
		&status, &ts.AutoCreated, &ts.CreatedAt, &ts.UpdatedAt,
	)
	ts.Status = timesheet.Status(status)
	return ts, err
}

func collectTimesheets(rows pgx.Rows) ([]timesheet.Timesheet, error) {
	defer rows.Close()

	var result []timesheet.Timesheet
	for rows.Next() {
		ts, err := scanTimesheet(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ts)
	}
	return result, rows.Err()
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return id.String(), nil
}

// Create implements timesheet.TimesheetRepository.
func (r *timesheetRepository) Create(ctx context.Context, ts timesheet.Timesheet) (timesheet.Timesheet, error) {
	q := GetQuerier(ctx, r.db)

	if ts.ID == "" {
		id, err := newID()
		if err != nil {
			return timesheet.Timesheet{}, err
		}
		ts.ID = id
	}

	query := `
		INSERT INTO timesheets (id, employee_id, week_starting, week_ending, status, auto_created)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := q.QueryRow(ctx, query,
		ts.ID, ts.EmployeeID, ts.WeekStarting, ts.WeekEnding, string(ts.Status), ts.AutoCreated,
	).Scan(&ts.CreatedAt, &ts.UpdatedAt)
	if err != nil {
		return timesheet.Timesheet{}, fmt.Errorf("failed to create timesheet: %w", err)
	}

	return ts, nil
}

// LockWeek implements timesheet.TimesheetRepository.
func (r *timesheetRepository) LockWeek(ctx context.Context, employeeID string, weekStarting time.Time) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text || '/' || $2::date::text))`, employeeID, weekStarting)
	if err != nil {
		return fmt.Errorf("failed to lock timesheet week: %w", err)
	}

	return nil
}

// CreateIfNotExists implements timesheet.TimesheetRepository. It runs in
// its own transaction when ctx carries none so the week lock covers the
// insert.
func (r *timesheetRepository) CreateIfNotExists(ctx context.Context, ts timesheet.Timesheet) (timesheet.Timesheet, bool, error) {
	var (
		stored  timesheet.Timesheet
		created bool
	)
	err := NewTransactor(r.db).WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := r.LockWeek(txCtx, ts.EmployeeID, ts.WeekStarting); err != nil {
			return err
		}
		var err error
		stored, created, err = r.createIfNotExists(txCtx, ts)
		return err
	})
	if err != nil {
		return timesheet.Timesheet{}, false, err
	}
	return stored, created, nil
}

func (r *timesheetRepository) createIfNotExists(ctx context.Context, ts timesheet.Timesheet) (timesheet.Timesheet, bool, error) {
	q := GetQuerier(ctx, r.db)

	if ts.ID == "" {
		id, err := newID()
		if err != nil {
			return timesheet.Timesheet{}, false, err
		}
		ts.ID = id
	}

	query := `
		WITH existing AS (
			SELECT ` + timesheetColumns + `
			FROM timesheets
			WHERE employee_id = $2 AND week_starting = $3
			ORDER BY created_at, id
			LIMIT 1
		), inserted AS (
			INSERT INTO timesheets (id, employee_id, week_starting, week_ending, status, auto_created)
			SELECT $1, $2, $3, $4, $5, $6
			WHERE NOT EXISTS (SELECT 1 FROM existing)
			RETURNING ` + timesheetColumns + `
		)
		SELECT ` + timesheetColumns + `, TRUE FROM inserted
		UNION ALL
		SELECT ` + timesheetColumns + `, FALSE FROM existing
	`

	var stored timesheet.Timesheet
	var status string
	var created bool
	err := q.QueryRow(ctx, query,
		ts.ID, ts.EmployeeID, ts.WeekStarting, ts.WeekEnding, string(ts.Status), ts.AutoCreated,
	).Scan(
		&stored.ID, &stored.EmployeeID, &stored.WeekStarting, &stored.WeekEnding,
		&status, &stored.AutoCreated, &stored.CreatedAt, &stored.UpdatedAt, &created,
	)
	if err != nil {
		return timesheet.Timesheet{}, false, fmt.Errorf("failed to ensure timesheet: %w", err)
	}
	stored.Status = timesheet.Status(status)

	return stored, created, nil
}

// GetByID implements timesheet.TimesheetRepository.
func (r *timesheetRepository) GetByID(ctx context.Context, id string) (timesheet.Timesheet, error) {
	return r.getByID(ctx, id, "")
}

// GetByIDForUpdate implements timesheet.TimesheetRepository.
func (r *timesheetRepository) GetByIDForUpdate(ctx context.Context, id string) (timesheet.Timesheet, error) {
	return r.getByID(ctx, id, "FOR UPDATE")
}

func (r *timesheetRepository) getByID(ctx context.Context, id string, lock string) (timesheet.Timesheet, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + timesheetColumns + ` FROM timesheets WHERE id = $1 ` + lock

	ts, err := scanTimesheet(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return timesheet.Timesheet{}, timesheet.ErrTimesheetNotFound
		}
		return timesheet.Timesheet{}, fmt.Errorf("failed to get timesheet: %w", err)
	}

	return ts, nil
}

// GetByEmployeeAndWeek implements timesheet.TimesheetRepository.
func (r *timesheetRepository) GetByEmployeeAndWeek(ctx context.Context, employeeID string, weekStarting time.Time) (*timesheet.Timesheet, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + timesheetColumns + `
		FROM timesheets
		WHERE employee_id = $1 AND week_starting = $2
		ORDER BY created_at, id
		LIMIT 1
	`

	ts, err := scanTimesheet(q.QueryRow(ctx, query, employeeID, weekStarting))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get timesheet by employee and week: %w", err)
	}

	return &ts, nil
}

// List implements timesheet.TimesheetRepository.
func (r *timesheetRepository) List(ctx context.Context, filter timesheet.TimesheetFilter) ([]timesheet.Timesheet, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseWhere := "TRUE"
	args := []interface{}{}
	argIdx := 1

	if filter.EmployeeID != nil && *filter.EmployeeID != "" {
		if !validator.IsValidUUID(*filter.EmployeeID) {
			return nil, 0, nil
		}
		baseWhere += fmt.Sprintf(" AND employee_id = $%d", argIdx)
		args = append(args, *filter.EmployeeID)
		argIdx++
	}
	if filter.Status != nil && *filter.Status != "" {
		baseWhere += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, strings.ToUpper(*filter.Status))
		argIdx++
	}
	if filter.WeekFrom != nil && *filter.WeekFrom != "" {
		baseWhere += fmt.Sprintf(" AND week_starting >= $%d", argIdx)
		args = append(args, *filter.WeekFrom)
		argIdx++
	}
	if filter.WeekTo != nil && *filter.WeekTo != "" {
		baseWhere += fmt.Sprintf(" AND week_starting <= $%d", argIdx)
		args = append(args, *filter.WeekTo)
		argIdx++
	}

	var total int64
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM timesheets WHERE `+baseWhere, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count timesheets: %w", err)
	}

	limit := filter.Limit
	if limit == 0 {
		limit = 20
	}
	page := filter.Page
	if page == 0 {
		page = 1
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM timesheets
		WHERE %s
		ORDER BY week_starting DESC, created_at, id
		LIMIT $%d OFFSET $%d
	`, timesheetColumns, baseWhere, argIdx, argIdx+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list timesheets: %w", err)
	}
	result, err := collectTimesheets(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan timesheets: %w", err)
	}

	return result, total, nil
}

// ListAll implements timesheet.TimesheetRepository.
func (r *timesheetRepository) ListAll(ctx context.Context) ([]timesheet.Timesheet, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT `+timesheetColumns+`
		FROM timesheets
		ORDER BY employee_id, week_starting, created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list all timesheets: %w", err)
	}
	result, err := collectTimesheets(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan timesheets: %w", err)
	}

	return result, nil
}

// UpdateStatus implements timesheet.TimesheetRepository.
func (r *timesheetRepository) UpdateStatus(ctx context.Context, id string, status timesheet.Status) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `UPDATE timesheets SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update timesheet status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return timesheet.ErrTimesheetNotFound
	}

	return nil
}

// Touch implements timesheet.TimesheetRepository.
func (r *timesheetRepository) Touch(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, `UPDATE timesheets SET updated_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to touch timesheet: %w", err)
	}

	return nil
}

// Delete implements timesheet.TimesheetRepository. Entries go with it.
func (r *timesheetRepository) Delete(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM timesheets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete timesheet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return timesheet.ErrTimesheetNotFound
	}

	return nil
}
