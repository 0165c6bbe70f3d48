package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const entrySelect = `
	SELECT e.id, e.timesheet_id, t.employee_id, e.entry_date, e.start_minute, e.end_minute,
		   e.entry_type, e.entry_type_label, e.status, e.source, e.verified,
		   e.company_id, e.company_name, e.notes, e.location, e.created_at, e.updated_at
	FROM timesheet_entries e
	JOIN timesheets t ON t.id = e.timesheet_id
`

type entryRepository struct {
	db *database.DB
}

func NewEntryRepository(db *database.DB) timesheet.EntryRepository {
	return &entryRepository{db: db}
}

func scanEntry(row pgx.Row) (timesheet.Entry, error) {
	var e timesheet.Entry
	var start, end int
	var entryType, status, source string
	var label *string
	err := row.Scan(
		&e.ID, &e.TimesheetID, &e.EmployeeID, &e.Date, &start, &end,
		&entryType, &label, &status, &source, &e.Verified,
		&e.CompanyID, &e.CompanyName, &e.Notes, &e.Location, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return timesheet.Entry{}, err
	}
	e.StartTime = timesheet.ClockTime(start)
	e.EndTime = timesheet.ClockTime(end)
	e.EntryType = timesheet.ParseEntryType(entryType, label)
	e.Status = timesheet.Status(status)
	e.Source = timesheet.Source(source)
	return e, nil
}

func collectEntries(rows pgx.Rows) ([]timesheet.Entry, error) {
	defer rows.Close()

	var result []timesheet.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *entryRepository) query(ctx context.Context, op string, sql string, args ...interface{}) ([]timesheet.Entry, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	result, err := collectEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan entries: %w", err)
	}
	return result, nil
}

// Create implements timesheet.EntryRepository.
func (r *entryRepository) Create(ctx context.Context, entry timesheet.Entry) (timesheet.Entry, error) {
	q := GetQuerier(ctx, r.db)

	if entry.ID == "" {
		id, err := newID()
		if err != nil {
			return timesheet.Entry{}, err
		}
		entry.ID = id
	}

	query := `
		INSERT INTO timesheet_entries (
			id, timesheet_id, entry_date, start_minute, end_minute,
			entry_type, entry_type_label, status, source, verified,
			company_id, company_name, notes, location
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		) RETURNING created_at, updated_at
	`
	err := q.QueryRow(ctx, query,
		entry.ID,
		entry.TimesheetID,
		entry.Date,
		entry.StartTime.Minutes(),
		entry.EndTime.Minutes(),
		entry.EntryType.Code(),
		entry.EntryType.Label(),
		string(entry.Status),
		string(entry.Source),
		entry.Verified,
		entry.CompanyID,
		entry.CompanyName,
		entry.Notes,
		entry.Location,
	).Scan(&entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return timesheet.Entry{}, fmt.Errorf("failed to create entry: %w", err)
	}

	return entry, nil
}

// Update implements timesheet.EntryRepository.
func (r *entryRepository) Update(ctx context.Context, entry timesheet.Entry) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE timesheet_entries SET
			entry_date = $2, start_minute = $3, end_minute = $4,
			entry_type = $5, entry_type_label = $6, status = $7, verified = $8,
			company_id = $9, company_name = $10, notes = $11, location = $12,
			updated_at = NOW()
		WHERE id = $1
	`
	tag, err := q.Exec(ctx, query,
		entry.ID,
		entry.Date,
		entry.StartTime.Minutes(),
		entry.EndTime.Minutes(),
		entry.EntryType.Code(),
		entry.EntryType.Label(),
		string(entry.Status),
		entry.Verified,
		entry.CompanyID,
		entry.CompanyName,
		entry.Notes,
		entry.Location,
	)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return timesheet.ErrEntryNotFound
	}

	return nil
}

// Delete implements timesheet.EntryRepository.
func (r *entryRepository) Delete(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM timesheet_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return timesheet.ErrEntryNotFound
	}

	return nil
}

// GetByID implements timesheet.EntryRepository.
func (r *entryRepository) GetByID(ctx context.Context, id string) (timesheet.Entry, error) {
	q := GetQuerier(ctx, r.db)

	e, err := scanEntry(q.QueryRow(ctx, entrySelect+` WHERE e.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return timesheet.Entry{}, timesheet.ErrEntryNotFound
		}
		return timesheet.Entry{}, fmt.Errorf("failed to get entry: %w", err)
	}

	return e, nil
}

// ListByTimesheet implements timesheet.EntryRepository.
func (r *entryRepository) ListByTimesheet(ctx context.Context, timesheetID string) ([]timesheet.Entry, error) {
	return r.query(ctx, "list entries by timesheet",
		entrySelect+` WHERE e.timesheet_id = $1 ORDER BY e.entry_date, e.start_minute, e.created_at, e.id`,
		timesheetID,
	)
}

// ListByEmployeeAndDate implements timesheet.EntryRepository.
func (r *entryRepository) ListByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) ([]timesheet.Entry, error) {
	return r.query(ctx, "list entries by employee and date",
		entrySelect+` WHERE t.employee_id = $1 AND e.entry_date = $2 ORDER BY e.start_minute, e.created_at, e.id`,
		employeeID, timesheet.TruncateDate(date),
	)
}

// ListBySource implements timesheet.EntryRepository.
func (r *entryRepository) ListBySource(ctx context.Context, source timesheet.Source) ([]timesheet.Entry, error) {
	return r.query(ctx, "list entries by source",
		entrySelect+` WHERE e.source = $1 ORDER BY e.created_at, e.id`,
		string(source),
	)
}

// DeleteMany implements timesheet.EntryRepository.
func (r *entryRepository) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM timesheet_entries WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete entries: %w", err)
	}

	return tag.RowsAffected(), nil
}

// MarkVerified implements timesheet.EntryRepository. Already verified rows
// are not counted.
func (r *entryRepository) MarkVerified(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `
		UPDATE timesheet_entries SET verified = TRUE, updated_at = NOW()
		WHERE id = ANY($1) AND verified = FALSE
	`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to mark entries verified: %w", err)
	}

	return tag.RowsAffected(), nil
}

// SyncStatusWithTimesheet implements timesheet.EntryRepository.
func (r *entryRepository) SyncStatusWithTimesheet(ctx context.Context, timesheetID string, status timesheet.Status) (int64, error) {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `
		UPDATE timesheet_entries SET status = $2, updated_at = NOW()
		WHERE timesheet_id = $1 AND status <> $2
	`, timesheetID, string(status))
	if err != nil {
		return 0, fmt.Errorf("failed to cascade entry status: %w", err)
	}

	return tag.RowsAffected(), nil
}

// MoveToTimesheet implements timesheet.EntryRepository.
func (r *entryRepository) MoveToTimesheet(ctx context.Context, from, to string, status timesheet.Status) (int64, error) {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `
		UPDATE timesheet_entries SET timesheet_id = $2, status = $3, updated_at = NOW()
		WHERE timesheet_id = $1
	`, from, to, string(status))
	if err != nil {
		return 0, fmt.Errorf("failed to move entries: %w", err)
	}

	return tag.RowsAffected(), nil
}

// CountByTimesheet implements timesheet.EntryRepository.
func (r *entryRepository) CountByTimesheet(ctx context.Context, timesheetID string) (int, error) {
	q := GetQuerier(ctx, r.db)

	var count int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM timesheet_entries WHERE timesheet_id = $1`, timesheetID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}

	return count, nil
}
