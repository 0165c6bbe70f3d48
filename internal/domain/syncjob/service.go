package syncjob

import (
	"context"
)

// ProgressFunc appends a line to the running job's progress log.
type ProgressFunc func(ctx context.Context, message string)

// Runner executes the work behind one job kind. The returned value is
// stored as the job's JSON result.
type Runner interface {
	Run(ctx context.Context, params Params, progress ProgressFunc) (any, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, params Params, progress ProgressFunc) (any, error)

func (f RunnerFunc) Run(ctx context.Context, params Params, progress ProgressFunc) (any, error) {
	return f(ctx, params, progress)
}

type SyncJobService interface {
	// StartJob records a PENDING job and runs it in the background.
	StartJob(ctx context.Context, req StartJobRequest) (JobResponse, error)
	GetJob(ctx context.Context, id string) (JobResponse, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]JobResponse, error)
}

// StatusGetter is the read side a poller needs.
type StatusGetter interface {
	GetJob(ctx context.Context, id string) (JobResponse, error)
}
