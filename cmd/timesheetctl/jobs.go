package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/syncjob"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/jobclient"
	syncJobService "github.com/cmlabs-hris/timesheet-backend-go/internal/service/syncjob"
	"github.com/spf13/cobra"
)

type waitOptions struct {
	Wait        bool
	Interval    time.Duration
	MaxAttempts int
}

func (o *waitOptions) register(cmd *cobra.Command) {
	defaults := pollPolicyFromEnv()
	cmd.Flags().BoolVar(&o.Wait, "wait", false, "poll until the job finishes")
	cmd.Flags().DurationVar(&o.Interval, "interval", defaults.Interval, "time between polls")
	cmd.Flags().IntVar(&o.MaxAttempts, "max-attempts", defaults.MaxAttempts, "polls before giving up")
}

// pollPolicyFromEnv reads SYNC_POLL_INTERVAL and SYNC_POLL_MAX_ATTEMPTS,
// ignoring unset or invalid values.
func pollPolicyFromEnv() syncjob.PollPolicy {
	policy := syncjob.DefaultPollPolicy
	if d, err := time.ParseDuration(os.Getenv("SYNC_POLL_INTERVAL")); err == nil && d > 0 {
		policy.Interval = d
	}
	if n, err := strconv.Atoi(os.Getenv("SYNC_POLL_MAX_ATTEMPTS")); err == nil && n > 0 {
		policy.MaxAttempts = n
	}
	return policy
}

func NewJobsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage reconciliation and sync jobs",
	}

	cmd.AddCommand(newJobsStartCommand(opts))
	cmd.AddCommand(newJobsStatusCommand(opts))
	cmd.AddCommand(newJobsListCommand(opts))
	return cmd
}

func newJobsStartCommand(opts *RootOptions) *cobra.Command {
	var (
		from, to string
		wait     waitOptions
	)

	cmd := &cobra.Command{
		Use:   "start <kind>",
		Short: "Start a job",
		Long: "Start a job of the given kind. Kinds: cleanup-duplicates, merge-duplicate-timesheets, " +
			"repair-status-inconsistencies, remove-weekend-entries, external-sync.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := jobclient.New(opts.Server, opts.Token)

			req := syncjob.StartJobRequest{Kind: args[0]}
			if from != "" {
				req.From = &from
			}
			if to != "" {
				req.To = &to
			}

			job, err := client.StartJob(ctx, req)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "starting job", Err: err}
			}
			slog.Debug("Job started", "id", job.ID, "kind", job.Kind)

			if !wait.Wait {
				return renderJob(cmd.OutOrStdout(), opts.Format, job)
			}
			return waitAndRender(ctx, cmd, opts, client, job.ID, wait)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day to import (YYYY-MM-DD, external-sync only)")
	cmd.Flags().StringVar(&to, "to", "", "last day to import (YYYY-MM-DD, external-sync only)")
	wait.register(cmd)
	return cmd
}

func newJobsStatusCommand(opts *RootOptions) *cobra.Command {
	var wait waitOptions

	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Show a job's status and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := jobclient.New(opts.Server, opts.Token)

			if wait.Wait {
				return waitAndRender(ctx, cmd, opts, client, args[0], wait)
			}

			job, err := client.GetJob(ctx, args[0])
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "fetching job", Err: err}
			}
			if err := renderJob(cmd.OutOrStdout(), opts.Format, job); err != nil {
				return err
			}
			return jobExitError(job)
		},
	}

	wait.register(cmd)
	return cmd
}

func newJobsListCommand(opts *RootOptions) *cobra.Command {
	var (
		kind  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := jobclient.New(opts.Server, opts.Token)

			filter := syncjob.JobFilter{Limit: limit}
			if kind != "" {
				filter.Kind = &kind
			}
			jobs, err := client.ListJobs(cmd.Context(), filter)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "listing jobs", Err: err}
			}
			return renderJobs(cmd.OutOrStdout(), opts.Format, jobs)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "only jobs of this kind")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of jobs")
	return cmd
}

// waitAndRender polls until the job is terminal. Running out of attempts
// is not an error: the job keeps running on the server.
func waitAndRender(ctx context.Context, cmd *cobra.Command, opts *RootOptions, client *jobclient.Client, id string, wait waitOptions) error {
	poller := syncJobService.NewPoller(client, syncjob.PollPolicy{
		Interval:    wait.Interval,
		MaxAttempts: wait.MaxAttempts,
	}).OnPoll(func(job syncjob.JobResponse, attempt int) {
		last := ""
		if n := len(job.Progress); n > 0 {
			last = job.Progress[n-1].Message
		}
		slog.Debug("Polled job", "id", job.ID, "attempt", attempt, "status", job.Status, "progress", last)
	})

	result, err := poller.Poll(ctx, id)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "polling job", Err: err}
	}
	if err := renderPoll(cmd.OutOrStdout(), opts.Format, result); err != nil {
		return err
	}
	if result.StillRunning {
		return nil
	}
	return jobExitError(result.Job)
}

func jobExitError(job syncjob.JobResponse) error {
	if syncjob.Status(job.Status) != syncjob.StatusFailed {
		return nil
	}
	msg := "job failed"
	if job.ErrorMessage != nil {
		msg = fmt.Sprintf("job failed: %s", *job.ErrorMessage)
	}
	return &ExitError{Code: ExitFailure, Message: msg}
}
