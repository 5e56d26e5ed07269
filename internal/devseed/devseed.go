package devseed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Rishet11/LeadPilot/internal/data"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
	"github.com/Rishet11/LeadPilot/internal/service"
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB        *sql.DB
	tenants   *data.TenantRepo
	jobs      *data.JobRepo
	admission *service.AdmissionService
}

// NewServices constructs all required services for seeding using the provided DB.
func NewServices(db *sql.DB) Services {
	tenantRepo := data.NewTenantRepo(db)
	jobRepo := data.NewJobRepo(db, data.RepoConfig{})
	usageRepo := data.NewUsageRepo(db)

	usage := service.MustNewUsageService(service.UsageServiceOptions{
		Repo: usageRepo,
	})
	admission := service.MustNewAdmissionService(service.AdmissionOptions{
		Jobs:    jobRepo,
		Tenants: tenantRepo,
		Usage:   usage,
	})

	return Services{
		DB:        db,
		tenants:   tenantRepo,
		jobs:      jobRepo,
		admission: admission,
	}
}

// Run executes the full development seeding workflow against the provided DB.
// Seeded jobs go through the same admission gates as real ones, so the demo
// tenants end up with plan-consistent state.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	failures := 0
	tenantIDs, tenantFailures := seedTenants(ctx, svcs, logger)
	failures += tenantFailures
	failures += seedJobs(ctx, svcs, tenantIDs, logger)
	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func demoTenants() []model.CreateTenantRequest {
	return []model.CreateTenantRequest{
		{Name: "Bright Smile Dental (demo)", PlanTier: string(model.PlanTierFree)},
		{Name: "Studio Growth Co (demo)", PlanTier: string(model.PlanTierLaunch)},
		{Name: "Summit Lead Agency (demo)", PlanTier: string(model.PlanTierStarter)},
	}
}

type demoJob struct {
	tenant  string
	jobType model.JobType
	targets json.RawMessage
}

func demoJobs() []demoJob {
	return []demoJob{
		{
			tenant:  "Bright Smile Dental (demo)",
			jobType: model.JobTypeGoogleMaps,
			targets: json.RawMessage(`[{"city":"Austin","category":"dentist","limit":25}]`),
		},
		{
			tenant:  "Studio Growth Co (demo)",
			jobType: model.JobTypeInstagram,
			targets: json.RawMessage(`[{"hashtag":"fitnessstudio","limit":20}]`),
		},
		{
			tenant:  "Summit Lead Agency (demo)",
			jobType: model.JobTypeGoogleMaps,
			targets: json.RawMessage(`[{"city":"Denver","category":"real estate agent","limit":40},{"city":"Phoenix","category":"real estate agent","limit":40}]`),
		},
	}
}

// seedTenants ensures each demo tenant exists and returns their ids keyed by
// name so the job pass can attach work to them.
func seedTenants(ctx context.Context, svcs Services, logger *slog.Logger) (map[string]string, int) {
	failures := 0
	ids := make(map[string]string, len(demoTenants()))

	for _, req := range demoTenants() {
		id, created, err := ensureTenant(ctx, svcs, req)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed tenant", "name", req.Name, "error", err)
			}
			failures++
			continue
		}
		ids[req.Name] = id
		if logger != nil {
			msg := "tenant already exists"
			if created {
				msg = "created tenant"
			}
			logger.InfoContext(ctx, msg, "name", req.Name, "plan", req.PlanTier, "tenant_id", id)
		}
	}

	return ids, failures
}

// ensureTenant looks the tenant up by name before creating it. Tenant names
// carry no unique constraint, so the lookup keeps reruns from piling up
// duplicate demo rows.
func ensureTenant(ctx context.Context, svcs Services, req model.CreateTenantRequest) (string, bool, error) {
	var id string
	err := svcs.DB.QueryRowContext(ctx,
		`SELECT id FROM tenants WHERE name = $1 ORDER BY created_at ASC LIMIT 1`,
		req.Name,
	).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("look up tenant %q: %w", req.Name, err)
	}

	tenant, err := svcs.tenants.Create(ctx, &req)
	if err != nil {
		return "", false, fmt.Errorf("create tenant %q: %w", req.Name, err)
	}
	return tenant.ID, true, nil
}

// seedJobs queues one demo job per tenant through the admission service.
// Tenants that already own jobs are left alone.
func seedJobs(ctx context.Context, svcs Services, tenantIDs map[string]string, logger *slog.Logger) int {
	failures := 0

	for _, spec := range demoJobs() {
		tenantID, ok := tenantIDs[spec.tenant]
		if !ok {
			// Tenant seeding already logged the failure.
			continue
		}

		existing, err := svcs.jobs.List(ctx, model.JobListOptions{TenantID: &tenantID, Limit: 1})
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to check existing jobs", "tenant", spec.tenant, "error", err)
			}
			failures++
			continue
		}
		if len(existing) > 0 {
			if logger != nil {
				logger.InfoContext(ctx, "jobs already seeded for tenant", "tenant", spec.tenant)
			}
			continue
		}

		job, err := svcs.admission.CreateScrapeJob(ctx, &model.CreateJobRequest{
			Type:     spec.jobType,
			TenantID: &tenantID,
			Targets:  spec.targets,
		})
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed job",
					"tenant", spec.tenant,
					"job_type", string(spec.jobType),
					"error", err,
				)
			}
			failures++
			continue
		}
		if logger != nil {
			logger.InfoContext(ctx, "queued demo job",
				"tenant", spec.tenant,
				"job_id", job.ID,
				"job_type", string(job.Type),
			)
		}
	}

	return failures
}
