package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Rishet11/LeadPilot/internal/core"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
)

// WorkerOptions groups dependencies for Worker.
type WorkerOptions struct {
	Jobs         core.JobRepository // Required: queue polling
	Runner       *Runner            // Required: per-job processing
	Reaper       *Reaper            // Required: stale-job sweep each cycle
	PollInterval time.Duration      // Required: idle sleep between cycles

	Logger *slog.Logger // Optional: structured logger
}

// Worker is the poll loop driving the job queue. Each cycle sweeps stale
// running jobs, picks the oldest eligible pending job, and runs it through
// one attempt. Jobs run one at a time; fairness comes from creation order
// and retry spacing from next_retry_at.
type Worker struct {
	jobs         core.JobRepository
	runner       *Runner
	reaper       *Reaper
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewWorker constructs a new Worker.
func NewWorker(opts WorkerOptions) (*Worker, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Runner == nil {
		return nil, errors.New("Runner is required")
	}
	if opts.Reaper == nil {
		return nil, errors.New("Reaper is required")
	}
	if opts.PollInterval <= 0 {
		return nil, errors.New("PollInterval must be positive")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		jobs:         opts.Jobs,
		runner:       opts.Runner,
		reaper:       opts.Reaper,
		pollInterval: opts.PollInterval,
		logger:       logger.With("component", "worker"),
	}, nil
}

// MustNewWorker constructs a new Worker and panics on error.
func MustNewWorker(opts WorkerOptions) *Worker {
	w, err := NewWorker(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create Worker: %v", err))
	}
	return w
}

// Run polls until the context is canceled; cancellation is a graceful stop
// and returns nil. Store errors from the sweep or the eligibility read stop
// the loop so a supervisor restarts the process loudly; an error processing
// a single job is logged and the loop moves on. If the store is really down
// the next sweep stops the loop anyway.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "worker started",
		"poll_interval", w.pollInterval.String(),
		"max_attempts", w.runner.policy.MaxAttempts(),
		"backoff_base", w.runner.policy.BaseBackoff().String(),
		"stuck_timeout", w.reaper.stuckTimeout.String(),
	)

	for ctx.Err() == nil {
		if _, err := w.reaper.Sweep(ctx); err != nil {
			if isContextCancellation(err) {
				return nil
			}
			return err
		}

		jobID, err := w.jobs.NextEligibleID(ctx)
		switch {
		case err == nil:
			if procErr := w.runner.Process(ctx, jobID); procErr != nil {
				if isContextCancellation(procErr) {
					return nil
				}
				w.logger.ErrorContext(ctx, "process job error", "job_id", jobID, "error", procErr)
			}
		case errors.Is(err, model.ErrNoEligibleJobs):
			if !w.sleep(ctx) {
				return nil
			}
		case isContextCancellation(err):
			return nil
		default:
			return fmt.Errorf("poll next job: %w", err)
		}
	}
	return nil
}

// sleep waits one poll interval; false means the context ended first.
func (w *Worker) sleep(ctx context.Context) bool {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
