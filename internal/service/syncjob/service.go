package syncjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/syncjob"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/jwt"
)

const (
	interruptedMessage = "interrupted by restart"
	failAttempts       = 2
)

// SyncJobServiceImpl records jobs and runs them in the background. At most
// one job per kind is in flight; the repository enforces the same rule
// across processes.
type SyncJobServiceImpl struct {
	syncjob.SyncJobRepository
	runners map[syncjob.Kind]syncjob.Runner

	mu     sync.Mutex
	active map[syncjob.Kind]string
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewSyncJobService(repo syncjob.SyncJobRepository, runners map[syncjob.Kind]syncjob.Runner) *SyncJobServiceImpl {
	return &SyncJobServiceImpl{
		SyncJobRepository: repo,
		runners:           runners,
		active:            make(map[syncjob.Kind]string),
		now:               time.Now,
	}
}

// StartJob implements syncjob.SyncJobService.
func (s *SyncJobServiceImpl) StartJob(ctx context.Context, req syncjob.StartJobRequest) (syncjob.JobResponse, error) {
	if err := req.Validate(); err != nil {
		return syncjob.JobResponse{}, err
	}
	kind, _ := syncjob.ParseKind(req.Kind)
	runner, ok := s.runners[kind]
	if !ok {
		return syncjob.JobResponse{}, syncjob.ErrNoRunner
	}

	var requestedBy *string
	if actor, err := jwt.ActorFromContext(ctx); err == nil {
		requestedBy = &actor.UserID
	}

	s.mu.Lock()
	if activeID, busy := s.active[kind]; busy {
		s.mu.Unlock()
		return syncjob.JobResponse{}, &syncjob.ActiveJobError{Kind: kind, JobID: activeID}
	}
	job, err := s.SyncJobRepository.Create(ctx, syncjob.SyncJob{
		Kind:        kind,
		Status:      syncjob.StatusPending,
		Params:      req.Params(),
		RequestedBy: requestedBy,
	})
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, syncjob.ErrJobAlreadyRunning) {
			return syncjob.JobResponse{}, s.activeJobError(ctx, kind, err)
		}
		return syncjob.JobResponse{}, err
	}
	s.active[kind] = job.ID
	s.mu.Unlock()

	slog.Info("Sync job queued", "job_id", job.ID, "kind", string(kind))

	s.wg.Add(1)
	go s.run(context.WithoutCancel(ctx), job, runner)

	return syncjob.NewJobResponse(job), nil
}

// activeJobError looks up the job holding kind, which may belong to
// another process. It falls back to err when none is found.
func (s *SyncJobServiceImpl) activeJobError(ctx context.Context, kind syncjob.Kind, err error) error {
	active, findErr := s.SyncJobRepository.FindActiveByKind(ctx, kind)
	if findErr != nil {
		slog.Warn("Active sync job lookup failed", "kind", string(kind), "error", findErr)
		return err
	}
	if active == nil {
		return err
	}
	return &syncjob.ActiveJobError{Kind: kind, JobID: active.ID}
}

func (s *SyncJobServiceImpl) run(ctx context.Context, job syncjob.SyncJob, runner syncjob.Runner) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.active, job.Kind)
		s.mu.Unlock()
	}()

	start := s.now()
	if err := s.SyncJobRepository.MarkRunning(ctx, job.ID, start); err != nil {
		slog.Error("Sync job could not start", "job_id", job.ID, "kind", string(job.Kind), "error", err)
		s.fail(ctx, job.ID, fmt.Errorf("job could not start: %w", err))
		return
	}
	slog.Info("Sync job started", "job_id", job.ID, "kind", string(job.Kind))

	progress := func(ctx context.Context, message string) {
		if err := s.SyncJobRepository.AppendProgress(ctx, job.ID, message, s.now()); err != nil {
			slog.Error("Sync job progress not recorded", "job_id", job.ID, "error", err)
		}
	}

	result, err := execute(ctx, runner, job.Params, progress)
	if err == nil {
		var payload []byte
		payload, err = json.Marshal(result)
		if err == nil {
			err = s.SyncJobRepository.Complete(ctx, job.ID, payload, s.now())
			if err == nil {
				slog.Info("Sync job completed", "job_id", job.ID, "kind", string(job.Kind), "duration", s.now().Sub(start))
				return
			}
		}
	}

	s.fail(ctx, job.ID, err)
	slog.Error("Sync job failed", "job_id", job.ID, "kind", string(job.Kind), "error", err, "duration", s.now().Sub(start))
}

// fail records err on the job, retrying once if the store write fails.
func (s *SyncJobServiceImpl) fail(ctx context.Context, id string, err error) {
	for attempt := 1; attempt <= failAttempts; attempt++ {
		failErr := s.SyncJobRepository.Fail(ctx, id, err.Error(), s.now())
		if failErr == nil || errors.Is(failErr, syncjob.ErrJobTerminal) {
			return
		}
		slog.Error("Sync job failure not recorded", "job_id", id, "attempt", attempt, "error", failErr)
	}
}

// execute turns a panic in the runner into an error so the job still
// reaches a terminal state.
func execute(ctx context.Context, runner syncjob.Runner, params syncjob.Params, progress syncjob.ProgressFunc) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return runner.Run(ctx, params, progress)
}

// GetJob implements syncjob.SyncJobService.
func (s *SyncJobServiceImpl) GetJob(ctx context.Context, id string) (syncjob.JobResponse, error) {
	job, err := s.SyncJobRepository.GetByID(ctx, id)
	if err != nil {
		return syncjob.JobResponse{}, err
	}
	return syncjob.NewJobResponse(job), nil
}

// ListJobs implements syncjob.SyncJobService.
func (s *SyncJobServiceImpl) ListJobs(ctx context.Context, filter syncjob.JobFilter) ([]syncjob.JobResponse, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	jobs, err := s.SyncJobRepository.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := make([]syncjob.JobResponse, 0, len(jobs))
	for _, job := range jobs {
		resp = append(resp, syncjob.NewJobResponse(job))
	}
	return resp, nil
}

// RecoverInterrupted fails jobs a previous process left in flight. Call it
// once at startup before accepting requests.
func (s *SyncJobServiceImpl) RecoverInterrupted(ctx context.Context) error {
	n, err := s.SyncJobRepository.FailInterrupted(ctx, interruptedMessage, s.now())
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Warn("Interrupted sync jobs marked failed", "count", n)
	}
	return nil
}

// Wait blocks until every background job has finished or ctx is done.
func (s *SyncJobServiceImpl) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
