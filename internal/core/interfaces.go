package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Rishet11/LeadPilot/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// JobRepository defines the interface for scrape-job data operations.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)

	// NextEligibleID returns the oldest pending job whose retry time has
	// passed. Returns model.ErrNoEligibleJobs when the queue is idle. The
	// read takes no locks; claiming is a separate atomic step.
	NextEligibleID(ctx context.Context) (string, error)

	// ClaimForRun atomically moves a pending or running job to running and
	// increments attempt_count. Returns data-layer sentinels when the job is
	// missing or already terminal.
	ClaimForRun(ctx context.Context, id string) (*model.Job, error)

	// FinalizeSuccess, ScheduleRetry, and MarkFailed are guarded writes: they
	// apply only while the row is still running and report false otherwise,
	// so a reaper that got there first is never clobbered.
	FinalizeSuccess(ctx context.Context, params FinalizeSuccessParams) (bool, error)
	ScheduleRetry(ctx context.Context, params ScheduleRetryParams) (bool, error)
	MarkFailed(ctx context.Context, id, errMsg string) (bool, error)

	CountActiveByTenant(ctx context.Context, tenantID string) (int, error)
	List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error)
	Stats(ctx context.Context) (*model.JobStats, error)
}

// FinalizeSuccessParams groups parameters for FinalizeSuccess to keep param count ≤3.
type FinalizeSuccessParams struct {
	ID         string
	Status     model.JobStatus
	LeadsFound int
	// ErrorMessage carries the partial-failure summary for
	// completed_with_errors; nil for a clean completion.
	ErrorMessage *string
}

// ScheduleRetryParams groups parameters for ScheduleRetry to keep param count ≤3.
type ScheduleRetryParams struct {
	ID           string
	NextRetryAt  time.Time
	ErrorMessage string
}

// ReapStaleParams groups parameters for ReapStale.
type ReapStaleParams struct {
	// Threshold is the cutoff: running jobs started before it are stale.
	Threshold time.Time
	// MaxAttempts decides whether a stale job is requeued or failed for good.
	MaxAttempts int
}

// ReapStaleResult reports what a stale sweep did.
type ReapStaleResult struct {
	Requeued int64
	Failed   int64
}

// Total returns the number of rows the sweep touched.
func (r ReapStaleResult) Total() int64 {
	return r.Requeued + r.Failed
}

// ReaperRepository defines the interface for stale-job recovery operations.
type ReaperRepository interface {
	// ReapStale requeues stale running jobs that still have attempts left and
	// fails the rest. All rows commit in one batch.
	ReapStale(ctx context.Context, params ReapStaleParams) (ReapStaleResult, error)
}

// LeadRepository defines the interface for lead persistence.
type LeadRepository interface {
	// CreateBatch inserts one target's leads in a single transaction,
	// skipping rows whose dedupe key already exists. Returns the number of
	// rows actually inserted.
	CreateBatch(ctx context.Context, leads []*model.CreateLeadRequest) (int, error)
	CountByJob(ctx context.Context, jobID string) (int, error)
	ListByJob(ctx context.Context, jobID string, limit int) ([]*model.Lead, error)
}

// TenantRepository defines the interface for tenant data operations.
type TenantRepository interface {
	Create(ctx context.Context, req *model.CreateTenantRequest) (*model.Tenant, error)
	GetByID(ctx context.Context, id string) (*model.Tenant, error)
}

// IncrementUsageParams groups parameters for UsageRepository.Increment.
type IncrementUsageParams struct {
	TenantID   string
	MonthStart time.Time
	LeadsDelta int
	JobsDelta  int
}

// UsageRepository defines the interface for monthly usage counters.
type UsageRepository interface {
	// Increment upserts the month row and adds the deltas. Negative deltas
	// are clamped to zero; counters never decrease.
	Increment(ctx context.Context, params IncrementUsageParams) error
	GetMonth(ctx context.Context, tenantID string, monthStart time.Time) (*model.MonthlyUsage, error)
}

// DedupeCache is a best-effort negative cache in front of the leads table's
// unique index. Keys are marked seen only after a durable insert, so a cache
// miss never loses a lead; a cache outage just costs extra insert attempts.
type DedupeCache interface {
	Seen(ctx context.Context, key string) (bool, error)
	MarkSeen(ctx context.Context, key string, ttl time.Duration) error
}

// RunActorParams groups parameters for ScrapeProvider.RunActor.
type RunActorParams struct {
	// Actor is the provider-side actor slug, e.g. "compass~crawler-google-places".
	Actor string
	// Input is the actor's run input, marshaled to JSON as-is.
	Input any
}

// ScrapeProvider runs a provider actor synchronously and returns its dataset items.
type ScrapeProvider interface {
	RunActor(ctx context.Context, params RunActorParams) ([]map[string]any, error)
}

// ExecuteParams groups the inputs for one execution attempt.
type ExecuteParams struct {
	JobID    string
	TenantID *string
	// Targets is the job's opaque target list in creation order; each
	// executor decodes its own shape.
	Targets []json.RawMessage
}

// TargetExecutor performs the scrape work for one job type. Implementations
// must attempt every target even when earlier ones fail, persist each
// target's leads before moving to the next, and report per-target failures
// in the outcome instead of returning an error. A returned error aborts the
// whole attempt and routes the job to the retry path.
type TargetExecutor interface {
	Execute(ctx context.Context, params ExecuteParams) (*model.ExecutionOutcome, error)
}
