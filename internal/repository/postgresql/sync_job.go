package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/syncjob"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const syncJobColumns = `id, kind, status, params, result, error_message, requested_by, created_at, started_at, finished_at`

type syncJobRepository struct {
	db *database.DB
}

func NewSyncJobRepository(db *database.DB) syncjob.SyncJobRepository {
	return &syncJobRepository{db: db}
}

func scanSyncJob(row pgx.Row) (syncjob.SyncJob, error) {
	var job syncjob.SyncJob
	var kind, status string
	var params, result []byte
	err := row.Scan(
		&job.ID, &kind, &status, &params, &result, &job.ErrorMessage, &job.RequestedBy,
		&job.CreatedAt, &job.StartedAt, &job.FinishedAt,
	)
	if err != nil {
		return syncjob.SyncJob{}, err
	}
	job.Kind = syncjob.Kind(kind)
	job.Status = syncjob.Status(status)
	if len(params) > 0 {
		if err := json.Unmarshal(params, &job.Params); err != nil {
			return syncjob.SyncJob{}, fmt.Errorf("decode job params: %w", err)
		}
	}
	if len(result) > 0 {
		job.Result = json.RawMessage(result)
	}
	return job, nil
}

// Create implements syncjob.SyncJobRepository.
func (r *syncJobRepository) Create(ctx context.Context, job syncjob.SyncJob) (syncjob.SyncJob, error) {
	q := GetQuerier(ctx, r.db)

	if job.ID == "" {
		id, err := newID()
		if err != nil {
			return syncjob.SyncJob{}, err
		}
		job.ID = id
	}
	params, err := json.Marshal(job.Params)
	if err != nil {
		return syncjob.SyncJob{}, fmt.Errorf("encode job params: %w", err)
	}

	err = q.QueryRow(ctx, `
		INSERT INTO sync_jobs (id, kind, status, params, requested_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, job.ID, string(job.Kind), string(job.Status), params, job.RequestedBy).Scan(&job.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation on uq_sync_jobs_active_kind
			return syncjob.SyncJob{}, syncjob.ErrJobAlreadyRunning
		}
		return syncjob.SyncJob{}, fmt.Errorf("failed to create sync job: %w", err)
	}

	return job, nil
}

// GetByID implements syncjob.SyncJobRepository. The progress log is loaded
// in append order.
func (r *syncJobRepository) GetByID(ctx context.Context, id string) (syncjob.SyncJob, error) {
	q := GetQuerier(ctx, r.db)

	job, err := scanSyncJob(q.QueryRow(ctx, `SELECT `+syncJobColumns+` FROM sync_jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return syncjob.SyncJob{}, syncjob.ErrJobNotFound
		}
		return syncjob.SyncJob{}, fmt.Errorf("failed to get sync job: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT seq, created_at, message
		FROM sync_job_progress
		WHERE job_id = $1
		ORDER BY seq
	`, id)
	if err != nil {
		return syncjob.SyncJob{}, fmt.Errorf("failed to get sync job progress: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p syncjob.ProgressEntry
		if err := rows.Scan(&p.Seq, &p.At, &p.Message); err != nil {
			return syncjob.SyncJob{}, fmt.Errorf("failed to scan sync job progress: %w", err)
		}
		job.Progress = append(job.Progress, p)
	}
	if err := rows.Err(); err != nil {
		return syncjob.SyncJob{}, fmt.Errorf("failed to read sync job progress: %w", err)
	}

	return job, nil
}

// List implements syncjob.SyncJobRepository. Progress is not loaded.
func (r *syncJobRepository) List(ctx context.Context, filter syncjob.JobFilter) ([]syncjob.SyncJob, error) {
	q := GetQuerier(ctx, r.db)

	limit := filter.Limit
	if limit == 0 {
		limit = 20
	}

	var kind *string
	if filter.Kind != nil && *filter.Kind != "" {
		kind = filter.Kind
	}

	rows, err := q.Query(ctx, `
		SELECT `+syncJobColumns+`
		FROM sync_jobs
		WHERE ($1::text IS NULL OR kind = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync jobs: %w", err)
	}
	defer rows.Close()

	var result []syncjob.SyncJob
	for rows.Next() {
		job, err := scanSyncJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync job: %w", err)
		}
		result = append(result, job)
	}

	return result, rows.Err()
}

// FindActiveByKind implements syncjob.SyncJobRepository.
func (r *syncJobRepository) FindActiveByKind(ctx context.Context, kind syncjob.Kind) (*syncjob.SyncJob, error) {
	q := GetQuerier(ctx, r.db)

	job, err := scanSyncJob(q.QueryRow(ctx, `
		SELECT `+syncJobColumns+`
		FROM sync_jobs
		WHERE kind = $1 AND status IN ('PENDING', 'RUNNING')
		LIMIT 1
	`, string(kind)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active sync job: %w", err)
	}

	return &job, nil
}

// MarkRunning implements syncjob.SyncJobRepository.
func (r *syncJobRepository) MarkRunning(ctx context.Context, id string, at time.Time) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `
		UPDATE sync_jobs SET status = 'RUNNING', started_at = $2
		WHERE id = $1 AND status = 'PENDING'
	`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark sync job running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return syncjob.ErrJobTerminal
	}

	return nil
}

// AppendProgress implements syncjob.SyncJobRepository.
func (r *syncJobRepository) AppendProgress(ctx context.Context, id string, message string, at time.Time) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `
		INSERT INTO sync_job_progress (job_id, seq, message, created_at)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3
		FROM sync_job_progress
		WHERE job_id = $1
	`, id, message, at)
	if err != nil {
		return fmt.Errorf("failed to append sync job progress: %w", err)
	}

	return nil
}

// Complete implements syncjob.SyncJobRepository.
func (r *syncJobRepository) Complete(ctx context.Context, id string, result json.RawMessage, at time.Time) error {
	return r.finish(ctx, id, syncjob.StatusCompleted, []byte(result), nil, at)
}

// Fail implements syncjob.SyncJobRepository.
func (r *syncJobRepository) Fail(ctx context.Context, id string, message string, at time.Time) error {
	return r.finish(ctx, id, syncjob.StatusFailed, nil, &message, at)
}

func (r *syncJobRepository) finish(ctx context.Context, id string, status syncjob.Status, result []byte, message *string, at time.Time) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `
		UPDATE sync_jobs SET status = $2, result = $3, error_message = $4, finished_at = $5
		WHERE id = $1 AND status IN ('PENDING', 'RUNNING')
	`, id, string(status), result, message, at)
	if err != nil {
		return fmt.Errorf("failed to finish sync job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return syncjob.ErrJobTerminal
	}

	return nil
}

// FailInterrupted implements syncjob.SyncJobRepository.
func (r *syncJobRepository) FailInterrupted(ctx context.Context, message string, at time.Time) (int64, error) {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `
		UPDATE sync_jobs SET status = 'FAILED', error_message = $1, finished_at = $2
		WHERE status IN ('PENDING', 'RUNNING')
	`, message, at)
	if err != nil {
		return 0, fmt.Errorf("failed to fail interrupted sync jobs: %w", err)
	}

	return tag.RowsAffected(), nil
}
