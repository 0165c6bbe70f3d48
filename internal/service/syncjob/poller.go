package syncjob

import (
	"context"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/syncjob"
)

// Poller asks for a job's status at a fixed interval until the job is
// terminal or the attempt budget runs out.
type Poller struct {
	source syncjob.StatusGetter
	policy syncjob.PollPolicy
	onPoll func(job syncjob.JobResponse, attempt int)
}

func NewPoller(source syncjob.StatusGetter, policy syncjob.PollPolicy) *Poller {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = syncjob.DefaultPollPolicy.MaxAttempts
	}
	if policy.Interval < 0 {
		policy.Interval = syncjob.DefaultPollPolicy.Interval
	}
	return &Poller{source: source, policy: policy}
}

// OnPoll registers a callback invoked after every observation.
func (p *Poller) OnPoll(fn func(job syncjob.JobResponse, attempt int)) *Poller {
	p.onPoll = fn
	return p
}

// Poll returns the first terminal observation. Running out of attempts is
// reported through PollResult.StillRunning, not as an error.
func (p *Poller) Poll(ctx context.Context, id string) (syncjob.PollResult, error) {
	var last syncjob.JobResponse
	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		job, err := p.source.GetJob(ctx, id)
		if err != nil {
			return syncjob.PollResult{}, err
		}
		last = job
		if p.onPoll != nil {
			p.onPoll(job, attempt)
		}
		if job.IsTerminal() {
			return syncjob.PollResult{Job: job, Attempts: attempt}, nil
		}
		if attempt == p.policy.MaxAttempts {
			break
		}

		timer := time.NewTimer(p.policy.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return syncjob.PollResult{}, ctx.Err()
		case <-timer.C:
		}
	}

	return syncjob.PollResult{Job: last, Attempts: p.policy.MaxAttempts, StillRunning: true}, nil
}
