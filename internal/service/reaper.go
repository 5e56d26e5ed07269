package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Rishet11/LeadPilot/internal/core"
	"github.com/Rishet11/LeadPilot/internal/data"
	domainjob "github.com/Rishet11/LeadPilot/internal/domain/job"
	"github.com/Rishet11/LeadPilot/internal/observability/metrics"
	"github.com/Rishet11/LeadPilot/internal/observability/statsd"
)

// ReaperOptions groups dependencies for Reaper.
type ReaperOptions struct {
	Repo         core.ReaperRepository  // Required: stale-job recovery port
	RetryPolicy  *domainjob.RetryPolicy // Required: attempt budget for the fail-vs-requeue split
	StuckTimeout time.Duration          // Required: how long a running job may age before it is stale

	Logger  *slog.Logger // Optional: structured logger
	Metrics statsd.Sink  // Optional: sweep metrics
	Time    data.Clock   // Optional: clock override for tests
}

// Reaper recovers jobs wedged in running status, typically left behind by a
// worker that crashed between claiming and finalizing. Stale jobs with
// attempts remaining go back to the queue; exhausted ones are failed for
// good.
type Reaper struct {
	repo         core.ReaperRepository
	policy       *domainjob.RetryPolicy
	stuckTimeout time.Duration
	logger       *slog.Logger
	metrics      statsd.Sink
	time         data.Clock
}

// NewReaper constructs a new Reaper.
func NewReaper(opts ReaperOptions) (*Reaper, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReaperRepository is required")
	}
	if opts.RetryPolicy == nil {
		return nil, errors.New("RetryPolicy is required")
	}
	if opts.StuckTimeout <= 0 {
		return nil, errors.New("StuckTimeout must be positive")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := opts.Time
	if clk == nil {
		clk = data.SystemClock{}
	}

	return &Reaper{
		repo:         opts.Repo,
		policy:       opts.RetryPolicy,
		stuckTimeout: opts.StuckTimeout,
		logger:       logger.With("component", "job_reaper"),
		metrics:      opts.Metrics,
		time:         clk,
	}, nil
}

// MustNewReaper constructs a new Reaper and panics on error.
func MustNewReaper(opts ReaperOptions) *Reaper {
	r, err := NewReaper(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create Reaper: %v", err))
	}
	return r
}

// Sweep recovers every running job that started before now minus the stuck
// timeout, and reports what it did so callers can log or print it.
func (s *Reaper) Sweep(ctx context.Context) (core.ReapStaleResult, error) {
	threshold := s.time.Now().UTC().Add(-s.stuckTimeout)

	result, err := s.repo.ReapStale(ctx, core.ReapStaleParams{
		Threshold:   threshold,
		MaxAttempts: s.policy.MaxAttempts(),
	})
	if err != nil {
		return core.ReapStaleResult{}, fmt.Errorf("reap stale jobs: %w", err)
	}

	if result.Total() > 0 {
		s.logger.WarnContext(ctx, "recovered stale running jobs",
			"requeued", result.Requeued,
			"failed", result.Failed,
			"stuck_timeout", s.stuckTimeout.String(),
		)
	}
	metrics.EmitReapSweep(s.metrics, result.Requeued, result.Failed)

	return result, nil
}
