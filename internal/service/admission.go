package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Rishet11/LeadPilot/internal/core"
	"github.com/Rishet11/LeadPilot/internal/data"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
	apperrors "github.com/Rishet11/LeadPilot/internal/errors"
)

// Admission gate sentinels. Each carries the quota error code; callers can
// match the specific gate with errors.Is.
var (
	// ErrInstagramNotInPlan rejects instagram jobs on plans without the feature.
	ErrInstagramNotInPlan = apperrors.Quota("Instagram scraping is not available on your current plan")
	// ErrTooManyActiveJobs rejects new jobs while the plan's concurrency cap is full.
	ErrTooManyActiveJobs = apperrors.Quota("too many active jobs for your plan")
	// ErrCreditsExhausted rejects jobs whose requested lead budget exceeds the
	// month's remaining credits.
	ErrCreditsExhausted = apperrors.Quota("monthly lead credits exceeded")
)

// Target list bounds per job type. The default limits must match what the
// target executors assume for targets that omit one.
const (
	maxGoogleTargets         = 50
	maxGoogleTargetLimit     = 200
	defaultGoogleTargetLimit = 50

	maxInstagramTargets         = 30
	maxInstagramTargetLimit     = 100
	defaultInstagramTargetLimit = 30
)

// AdmissionOptions groups dependencies for AdmissionService.
type AdmissionOptions struct {
	Jobs    core.JobRepository    // Required: job persistence and active counts
	Tenants core.TenantRepository // Required: entitlement lookup
	Usage   *UsageService         // Required: credit balance and job counters

	Logger *slog.Logger // Optional: structured logger
}

// AdmissionService is the front door for new scrape jobs: it validates the
// target list, enforces plan entitlements for tenant-owned jobs, and inserts
// the pending row. Jobs without a tenant skip every plan gate.
type AdmissionService struct {
	jobs    core.JobRepository
	tenants core.TenantRepository
	usage   *UsageService
	logger  *slog.Logger
}

// NewAdmissionService constructs a new AdmissionService.
func NewAdmissionService(opts AdmissionOptions) (*AdmissionService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Tenants == nil {
		return nil, errors.New("TenantRepository is required")
	}
	if opts.Usage == nil {
		return nil, errors.New("UsageService is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AdmissionService{
		jobs:    opts.Jobs,
		tenants: opts.Tenants,
		usage:   opts.Usage,
		logger:  logger.With("component", "admission_service"),
	}, nil
}

// MustNewAdmissionService constructs a new AdmissionService and panics on error.
func MustNewAdmissionService(opts AdmissionOptions) *AdmissionService {
	svc, err := NewAdmissionService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create AdmissionService: %v", err))
	}
	return svc
}

// CreateScrapeJob validates the request, enforces the tenant's plan gates,
// and enqueues a pending job. The month's job counter is bumped after the
// insert; a counter failure is logged and never unwinds the job.
func (s *AdmissionService) CreateScrapeJob(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, apperrors.Validation("request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid job request")
	}

	targetCount, requested, err := validateTargets(req.Type, req.Targets)
	if err != nil {
		return nil, err
	}

	tenantID := ""
	if req.TenantID != nil {
		tenantID = *req.TenantID
	}
	if tenantID != "" {
		if err := s.enforcePlanGates(ctx, tenantID, req.Type, requested); err != nil {
			return nil, err
		}
	}

	job, err := s.jobs.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if tenantID != "" {
		if err := s.usage.RecordJobCreated(ctx, tenantID); err != nil {
			s.logger.ErrorContext(ctx, "record job created failed",
				"job_id", job.ID,
				"tenant_id", tenantID,
				"error", err,
			)
		}
	}

	s.logger.InfoContext(ctx, "job queued",
		"job_id", job.ID,
		"job_type", string(job.Type),
		"targets", targetCount,
		"requested_leads", requested,
	)
	return job, nil
}

// enforcePlanGates applies the tenant's entitlements in order: instagram
// availability, concurrent-job cap, then the month's credit balance.
func (s *AdmissionService) enforcePlanGates(
	ctx context.Context,
	tenantID string,
	jobType model.JobType,
	requested int,
) error {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, data.ErrTenantNotFound) {
			return apperrors.NotFoundf("tenant %s not found", tenantID)
		}
		return fmt.Errorf("load tenant %s: %w", tenantID, err)
	}

	plan := model.PlanFor(model.InferPlanTier(tenant.PlanTier, tenant.SubscriptionStatus))

	if jobType == model.JobTypeInstagram && !plan.InstagramEnabled {
		return ErrInstagramNotInPlan
	}

	active, err := s.jobs.CountActiveByTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("count active jobs for tenant %s: %w", tenantID, err)
	}
	if active >= plan.MaxConcurrentJobs {
		return fmt.Errorf("%w (%d/%d); upgrade to increase concurrency",
			ErrTooManyActiveJobs, active, plan.MaxConcurrentJobs)
	}

	remaining, err := s.usage.RemainingCredits(ctx, tenant)
	if err != nil {
		return fmt.Errorf("remaining credits for tenant %s: %w", tenantID, err)
	}
	if remaining != nil && requested > *remaining {
		return fmt.Errorf("%w: requested %d, remaining %d",
			ErrCreditsExhausted, requested, *remaining)
	}

	return nil
}

// validateTargets checks the type-specific target shape and returns the
// target count plus the requested lead budget (the sum of per-target limits,
// defaults applied).
func validateTargets(jobType model.JobType, raw json.RawMessage) (int, int, error) {
	switch jobType {
	case model.JobTypeGoogleMaps:
		return validateGoogleTargets(raw)
	case model.JobTypeInstagram:
		return validateInstagramTargets(raw)
	default:
		return 0, 0, apperrors.Validationf("unsupported job type: %s", jobType)
	}
}

type googleTargetRequest struct {
	City     string `json:"city"`
	Category string `json:"category"`
	Niche    string `json:"niche"`
	Limit    int    `json:"limit"`
}

func validateGoogleTargets(raw json.RawMessage) (int, int, error) {
	var targets []googleTargetRequest
	if err := json.Unmarshal(raw, &targets); err != nil {
		return 0, 0, apperrors.Validation("targets must be a JSON array of objects")
	}
	if len(targets) == 0 {
		return 0, 0, apperrors.Validation("at least one target is required")
	}
	if len(targets) > maxGoogleTargets {
		return 0, 0, apperrors.Validationf("too many targets: %d (max %d)", len(targets), maxGoogleTargets)
	}

	budget := 0
	for i, t := range targets {
		category := strings.TrimSpace(t.Category)
		if category == "" {
			category = strings.TrimSpace(t.Niche)
		}
		if strings.TrimSpace(t.City) == "" || category == "" {
			return 0, 0, apperrors.ValidationField(
				fmt.Sprintf("targets[%d]", i), "city and category are required")
		}
		limit, err := targetLimit(t.Limit, defaultGoogleTargetLimit, maxGoogleTargetLimit, i)
		if err != nil {
			return 0, 0, err
		}
		budget += limit
	}
	return len(targets), budget, nil
}

type instagramTargetRequest struct {
	Keyword string `json:"keyword"`
	Hashtag string `json:"hashtag"`
	Limit   int    `json:"limit"`
}

func validateInstagramTargets(raw json.RawMessage) (int, int, error) {
	var targets []instagramTargetRequest
	if err := json.Unmarshal(raw, &targets); err != nil {
		return 0, 0, apperrors.Validation("targets must be a JSON array of objects")
	}
	if len(targets) == 0 {
		return 0, 0, apperrors.Validation("at least one target is required")
	}
	if len(targets) > maxInstagramTargets {
		return 0, 0, apperrors.Validationf("too many targets: %d (max %d)", len(targets), maxInstagramTargets)
	}

	budget := 0
	for i, t := range targets {
		keyword := strings.TrimSpace(t.Keyword)
		if keyword == "" {
			keyword = strings.TrimSpace(t.Hashtag)
		}
		if keyword == "" {
			return 0, 0, apperrors.ValidationField(
				fmt.Sprintf("targets[%d]", i), "keyword is required")
		}
		limit, err := targetLimit(t.Limit, defaultInstagramTargetLimit, maxInstagramTargetLimit, i)
		if err != nil {
			return 0, 0, err
		}
		budget += limit
	}
	return len(targets), budget, nil
}

// targetLimit applies the per-type default and cap to one target's limit.
func targetLimit(limit, def, ceiling, index int) (int, error) {
	if limit < 0 {
		return 0, apperrors.ValidationField(
			fmt.Sprintf("targets[%d]", index), "limit must be positive")
	}
	if limit == 0 {
		return def, nil
	}
	if limit > ceiling {
		return 0, apperrors.ValidationField(
			fmt.Sprintf("targets[%d]", index), fmt.Sprintf("limit must be at most %d", ceiling))
	}
	return limit, nil
}
