package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Rishet11/LeadPilot/internal/core"
	"github.com/Rishet11/LeadPilot/internal/data"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
)

// UsageServiceOptions groups dependencies for UsageService.
type UsageServiceOptions struct {
	Repo   core.UsageRepository // Required: usage repository
	Logger *slog.Logger         // Optional: structured logger
	Time   data.Clock           // Optional: clock override for tests
}

// UsageService maintains per-tenant monthly counters and answers quota
// questions for job admission. Counters are advisory: they gate new work but
// are never a reason to undo work already done.
type UsageService struct {
	repo   core.UsageRepository
	logger *slog.Logger
	time   data.Clock
}

// NewUsageService constructs a new UsageService.
func NewUsageService(opts UsageServiceOptions) (*UsageService, error) {
	if opts.Repo == nil {
		return nil, errors.New("UsageRepository is required")
	}

	clk := opts.Time
	if clk == nil {
		clk = data.SystemClock{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "usage_service")
	}

	return &UsageService{
		repo:   opts.Repo,
		logger: logger,
		time:   clk,
	}, nil
}

// MustNewUsageService constructs a new UsageService and panics on error.
func MustNewUsageService(opts UsageServiceOptions) *UsageService {
	svc, err := NewUsageService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create UsageService: %v", err))
	}
	return svc
}

// RecordLeads adds produced leads to the tenant's current month. Zero or
// negative counts and blank tenants are no-ops.
func (s *UsageService) RecordLeads(ctx context.Context, tenantID string, leads int) error {
	if tenantID == "" || leads <= 0 {
		return nil
	}
	err := s.repo.Increment(ctx, core.IncrementUsageParams{
		TenantID:   tenantID,
		MonthStart: model.MonthStart(s.time.Now()),
		LeadsDelta: leads,
	})
	if err != nil {
		return fmt.Errorf("record leads: %w", err)
	}
	return nil
}

// RecordJobCreated bumps the tenant's job counter for the current month.
func (s *UsageService) RecordJobCreated(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return nil
	}
	err := s.repo.Increment(ctx, core.IncrementUsageParams{
		TenantID:   tenantID,
		MonthStart: model.MonthStart(s.time.Now()),
		JobsDelta:  1,
	})
	if err != nil {
		return fmt.Errorf("record job created: %w", err)
	}
	return nil
}

// RemainingCredits returns how many leads the tenant may still generate this
// month. A nil result means the plan is effectively unlimited.
func (s *UsageService) RemainingCredits(ctx context.Context, tenant *model.Tenant) (*int, error) {
	if tenant == nil {
		return nil, errors.New("tenant is required")
	}

	plan := model.PlanFor(model.InferPlanTier(tenant.PlanTier, tenant.SubscriptionStatus))
	if plan.Unlimited() {
		return nil, nil
	}

	usage, err := s.repo.GetMonth(ctx, tenant.ID, model.MonthStart(s.time.Now()))
	if err != nil {
		return nil, fmt.Errorf("load monthly usage: %w", err)
	}

	remaining := plan.MonthlyLeadQuota - usage.LeadsGenerated
	if remaining < 0 {
		remaining = 0
	}
	if s.logger != nil {
		s.logger.DebugContext(ctx, "remaining credits computed",
			"tenant_id", tenant.ID,
			"plan", plan.Tier,
			"quota", plan.MonthlyLeadQuota,
			"used", usage.LeadsGenerated,
			"remaining", remaining,
		)
	}
	return &remaining, nil
}
