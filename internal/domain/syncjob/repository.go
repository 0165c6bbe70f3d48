package syncjob

import (
	"context"
	"encoding/json"
	"time"
)

// SyncJobRepository persists jobs. Create fails with ErrJobAlreadyRunning
// while another job of the same kind is PENDING or RUNNING. Complete and
// Fail return ErrJobTerminal for a job that already finished.
type SyncJobRepository interface {
	Create(ctx context.Context, job SyncJob) (SyncJob, error)
	GetByID(ctx context.Context, id string) (SyncJob, error)
	List(ctx context.Context, filter JobFilter) ([]SyncJob, error)
	FindActiveByKind(ctx context.Context, kind Kind) (*SyncJob, error)

	MarkRunning(ctx context.Context, id string, at time.Time) error
	AppendProgress(ctx context.Context, id string, message string, at time.Time) error
	Complete(ctx context.Context, id string, result json.RawMessage, at time.Time) error
	Fail(ctx context.Context, id string, message string, at time.Time) error

	// FailInterrupted fails every PENDING or RUNNING job and returns how many.
	FailInterrupted(ctx context.Context, message string, at time.Time) (int64, error)
}
