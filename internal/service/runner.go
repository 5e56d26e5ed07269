package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Rishet11/LeadPilot/internal/core"
	"github.com/Rishet11/LeadPilot/internal/data"
	domainjob "github.com/Rishet11/LeadPilot/internal/domain/job"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
	obserrors "github.com/Rishet11/LeadPilot/internal/observability/errors"
	"github.com/Rishet11/LeadPilot/internal/observability/metrics"
	"github.com/Rishet11/LeadPilot/internal/observability/notify"
	"github.com/Rishet11/LeadPilot/internal/observability/statsd"
	"github.com/Rishet11/LeadPilot/internal/service/failurenotifier"
	"github.com/Rishet11/LeadPilot/internal/util"
)

const (
	// retryErrorLimit bounds the error detail embedded in a retry message;
	// failErrorLimit bounds it in the terminal message. The retry message
	// also carries the delay suffix, so its detail budget is smaller.
	retryErrorLimit = 320
	failErrorLimit  = 480

	// summaryErrorLimit bounds the whole partial-failure summary stored on a
	// completed_with_errors job.
	summaryErrorLimit = 480

	// previewErrorCount is how many per-target errors a job summary quotes.
	previewErrorCount = 3

	// unknownWorkerError stands in when a failure produced no readable text.
	unknownWorkerError = "Unknown worker error"
)

// RunnerOptions groups dependencies for Runner.
type RunnerOptions struct {
	Jobs        core.JobRepository                     // Required: job repository
	Executors   map[model.JobType]core.TargetExecutor // Required: at least one executor
	RetryPolicy *domainjob.RetryPolicy                 // Required: attempt budget and backoff

	Usage           *UsageService            // Optional: post-completion lead counters
	Logger          *slog.Logger             // Optional: structured logger
	Metrics         statsd.Sink              // Optional: lifecycle metrics
	FailureNotifier *failurenotifier.Service // Optional: terminal-failure fan-out
	Time            data.Clock               // Optional: clock override for tests
}

// Runner drives one job through a single execution attempt: claim, execute,
// and finalize into completed, completed_with_errors, pending (retry), or
// failed. The claim commits before any scrape work so a crash mid-run leaves
// a running row for the reaper rather than a lost job.
type Runner struct {
	jobs            core.JobRepository
	executors       map[model.JobType]core.TargetExecutor
	policy          *domainjob.RetryPolicy
	usage           *UsageService
	logger          *slog.Logger
	metrics         statsd.Sink
	failureNotifier *failurenotifier.Service
	time            data.Clock
}

// NewRunner constructs a new Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if len(opts.Executors) == 0 {
		return nil, errors.New("at least one target executor is required")
	}
	if opts.RetryPolicy == nil {
		return nil, errors.New("RetryPolicy is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := opts.Time
	if clk == nil {
		clk = data.SystemClock{}
	}

	return &Runner{
		jobs:            opts.Jobs,
		executors:       opts.Executors,
		policy:          opts.RetryPolicy,
		usage:           opts.Usage,
		logger:          logger.With("component", "job_runner"),
		metrics:         opts.Metrics,
		failureNotifier: opts.FailureNotifier,
		time:            clk,
	}, nil
}

// MustNewRunner constructs a new Runner and panics on error.
func MustNewRunner(opts RunnerOptions) *Runner {
	r, err := NewRunner(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create Runner: %v", err))
	}
	return r
}

// Process claims the job and runs one attempt to its next state. Jobs that
// vanished or turned terminal between poll and claim are skipped quietly.
// Execution failures are absorbed into job state; only claim errors and
// failures to persist a transition propagate, and for those the reaper
// backstops the running row.
func (r *Runner) Process(ctx context.Context, jobID string) error {
	start := r.time.Now()

	claimed, err := r.jobs.ClaimForRun(ctx, jobID)
	switch {
	case errors.Is(err, data.ErrJobNotFound):
		r.logger.DebugContext(ctx, "job missing at claim time", "job_id", jobID)
		return nil
	case errors.Is(err, data.ErrJobNotClaimable):
		r.logger.DebugContext(ctx, "job no longer claimable", "job_id", jobID)
		return nil
	case err != nil:
		return fmt.Errorf("claim job %s: %w", jobID, err)
	}

	logger := r.logger.With("job_id", claimed.ID, "job_type", string(claimed.Type))
	logger.InfoContext(ctx, "processing job",
		"attempt", claimed.AttemptCount,
		"max_attempts", r.policy.MaxAttempts(),
	)
	r.emit(claimed, metrics.TransitionClaim, metrics.ResultSuccess, start, nil)

	var targets []json.RawMessage
	if err := json.Unmarshal(claimed.Targets, &targets); err != nil {
		return r.finishFailure(ctx, logger, claimed, start, fmt.Errorf("decode targets: %w", err))
	}

	executor, ok := r.executors[claimed.Type]
	if !ok {
		return r.finishFailure(ctx, logger, claimed, start,
			domainjob.NonRetryable(fmt.Errorf("unknown job type: %s", claimed.Type)))
	}

	outcome, execErr := executor.Execute(ctx, core.ExecuteParams{
		JobID:    claimed.ID,
		TenantID: claimed.TenantID,
		Targets:  targets,
	})
	if execErr != nil {
		return r.finishFailure(ctx, logger, claimed, start, execErr)
	}

	if outcome.FailedTargets > 0 && outcome.LeadsProduced == 0 {
		return r.finishFailure(ctx, logger, claimed, start, totalFailureError(outcome))
	}

	return r.finishSuccess(ctx, logger, claimed, start, outcome, len(targets))
}

// totalFailureError synthesizes the attempt error when every lead-producing
// path came up empty and at least one target failed.
func totalFailureError(outcome *model.ExecutionOutcome) error {
	preview := util.JoinFirst(outcome.TargetErrors, previewErrorCount, "; ")
	return errors.New(strings.TrimSpace(
		fmt.Sprintf("All %d target(s) failed. %s", outcome.FailedTargets, preview)))
}

func (r *Runner) finishSuccess(
	ctx context.Context,
	logger *slog.Logger,
	claimed *model.Job,
	start time.Time,
	outcome *model.ExecutionOutcome,
	totalTargets int,
) error {
	// State writes survive a shutdown signal received mid-run.
	writeCtx := context.WithoutCancel(ctx)

	status := model.JobStatusCompleted
	transition := metrics.TransitionComplete
	var errMsg *string
	if outcome.FailedTargets > 0 {
		status = model.JobStatusCompletedWithErrors
		transition = metrics.TransitionCompleteWithErrors
		preview := util.JoinFirst(outcome.TargetErrors, previewErrorCount, "; ")
		summary := util.Truncate(strings.TrimSpace(
			fmt.Sprintf("%d/%d target(s) failed. %s", outcome.FailedTargets, totalTargets, preview)),
			summaryErrorLimit)
		errMsg = &summary
	}

	applied, err := r.jobs.FinalizeSuccess(writeCtx, core.FinalizeSuccessParams{
		ID:           claimed.ID,
		Status:       status,
		LeadsFound:   outcome.LeadsProduced,
		ErrorMessage: errMsg,
	})
	if err != nil {
		r.emit(claimed, transition, metrics.ResultError, start, err)
		return fmt.Errorf("finalize job %s: %w", claimed.ID, err)
	}
	if !applied {
		logger.WarnContext(writeCtx, "job state changed underneath; completion not recorded",
			"status", string(status))
		r.emit(claimed, transition, metrics.ResultNoop, start, nil)
		return nil
	}

	logger.InfoContext(writeCtx, "job finished",
		"status", string(status),
		"leads_found", outcome.LeadsProduced,
		"failed_targets", outcome.FailedTargets,
	)
	r.emit(claimed, transition, metrics.ResultSuccess, start, nil)
	if outcome.LeadsProduced > 0 {
		metrics.EmitLeadsFound(r.metrics, string(claimed.Type), outcome.LeadsProduced)
	}

	// Usage counters move only after the job row committed, and never retry:
	// an under-count beats a scrape charged twice.
	r.recordLeadUsage(writeCtx, logger, claimed, outcome.LeadsProduced)
	return nil
}

func (r *Runner) recordLeadUsage(ctx context.Context, logger *slog.Logger, claimed *model.Job, leads int) {
	if r.usage == nil || leads <= 0 || claimed.TenantID == nil || *claimed.TenantID == "" {
		return
	}
	if err := r.usage.RecordLeads(ctx, *claimed.TenantID, leads); err != nil {
		logger.ErrorContext(ctx, "record lead usage failed",
			"tenant_id", *claimed.TenantID,
			"leads", leads,
			"error", err,
		)
	}
}

func (r *Runner) finishFailure(
	ctx context.Context,
	logger *slog.Logger,
	claimed *model.Job,
	start time.Time,
	execErr error,
) error {
	writeCtx := context.WithoutCancel(ctx)

	// Re-fetch: the claim snapshot is stale by now and attempt_count on the
	// row is authoritative for the retry decision.
	job, err := r.jobs.GetByID(writeCtx, claimed.ID)
	if err != nil {
		r.emit(claimed, metrics.TransitionFail, metrics.ResultError, start, err)
		return fmt.Errorf("load job %s for failure handling: %w", claimed.ID, err)
	}

	errText := strings.TrimSpace(execErr.Error())
	if errText == "" {
		errText = unknownWorkerError
	}

	attempt := job.AttemptCount
	maxAttempts := r.policy.MaxAttempts()

	if domainjob.IsNonRetryable(execErr) || r.policy.Exhausted(attempt) {
		msg := fmt.Sprintf("Attempt %d/%d failed: %s",
			attempt, maxAttempts, util.Truncate(errText, failErrorLimit))
		applied, err := r.jobs.MarkFailed(writeCtx, job.ID, msg)
		if err != nil {
			r.emit(claimed, metrics.TransitionFail, metrics.ResultError, start, err)
			return fmt.Errorf("mark job %s failed: %w", job.ID, err)
		}
		if !applied {
			logger.WarnContext(writeCtx, "job state changed underneath; terminal failure not recorded")
			r.emit(claimed, metrics.TransitionFail, metrics.ResultNoop, start, nil)
			return nil
		}
		logger.ErrorContext(writeCtx, "job failed permanently",
			"attempts", attempt,
			"error", util.Truncate(errText, failErrorLimit),
		)
		r.emit(claimed, metrics.TransitionFail, metrics.ResultError, start, execErr)
		r.notifyFailure(writeCtx, job, execErr, errText)
		return nil
	}

	delay := r.policy.Delay(attempt)
	retryAt := r.time.Now().UTC().Add(delay)
	msg := fmt.Sprintf("Attempt %d/%d failed: %s. Retrying in %ds.",
		attempt, maxAttempts, util.Truncate(errText, retryErrorLimit), int(delay.Seconds()))

	applied, err := r.jobs.ScheduleRetry(writeCtx, core.ScheduleRetryParams{
		ID:           job.ID,
		NextRetryAt:  retryAt,
		ErrorMessage: msg,
	})
	if err != nil {
		r.emit(claimed, metrics.TransitionRetry, metrics.ResultError, start, err)
		return fmt.Errorf("schedule retry for job %s: %w", job.ID, err)
	}
	if !applied {
		logger.WarnContext(writeCtx, "job state changed underneath; retry not recorded")
		r.emit(claimed, metrics.TransitionRetry, metrics.ResultNoop, start, nil)
		return nil
	}
	logger.WarnContext(writeCtx, "job attempt failed; retry scheduled",
		"attempt", attempt,
		"max_attempts", maxAttempts,
		"retry_at", retryAt,
		"error", util.Truncate(errText, retryErrorLimit),
	)
	r.emit(claimed, metrics.TransitionRetry, metrics.ResultError, start, execErr)
	return nil
}

func (r *Runner) notifyFailure(ctx context.Context, job *model.Job, execErr error, errText string) {
	if r.failureNotifier == nil || !r.failureNotifier.Enabled() {
		return
	}
	tenantID := ""
	if job.TenantID != nil {
		tenantID = *job.TenantID
	}
	r.failureNotifier.NotifyJobFailure(ctx, notify.JobFailurePayload{
		JobID:        job.ID,
		JobType:      string(job.Type),
		TenantID:     tenantID,
		AttemptCount: job.AttemptCount,
		MaxAttempts:  r.policy.MaxAttempts(),
		Error:        util.Truncate(errText, failErrorLimit),
		ErrorClass:   obserrors.Classify(execErr),
		OccurredAt:   r.time.Now().UTC(),
	})
}

func (r *Runner) emit(job *model.Job, transition, result string, start time.Time, err error) {
	metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
		JobType:    string(job.Type),
		Transition: transition,
		Result:     result,
		Duration:   r.time.Now().Sub(start),
		Err:        err,
	})
}
