package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Rishet11/LeadPilot/internal/bootstrap"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
	"github.com/Rishet11/LeadPilot/internal/util"
)

type jobCreateOptions struct {
	Type        string
	TenantID    string
	Targets     string
	TargetsFile string
}

func parseJobCreateFlags(args []string) (jobCreateOptions, error) {
	fs := flag.NewFlagSet("job-create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := jobCreateOptions{}
	fs.StringVar(&opts.Type, "type", "", "Job type: google_maps or instagram (required)")
	fs.StringVar(&opts.TenantID, "tenant", "", "Tenant UUID; omit for an untenanted job that skips plan gates")
	fs.StringVar(&opts.Targets, "targets", "", `Target list as a JSON array, e.g. '[{"city":"Mumbai","category":"Gym","limit":25}]'`)
	fs.StringVar(&opts.TargetsFile, "targets-file", "", "Path to a file holding the target JSON array")

	if err := fs.Parse(args); err != nil {
		return jobCreateOptions{}, fmt.Errorf("parse job-create flags: %w", err)
	}
	if strings.TrimSpace(opts.Type) == "" {
		return jobCreateOptions{}, errors.New("job-create requires -type")
	}
	if opts.Targets == "" && opts.TargetsFile == "" {
		return jobCreateOptions{}, errors.New("job-create requires -targets or -targets-file")
	}
	if opts.Targets != "" && opts.TargetsFile != "" {
		return jobCreateOptions{}, errors.New("job-create accepts -targets or -targets-file, not both")
	}
	return opts, nil
}

func (o *jobCreateOptions) targetsJSON() ([]byte, error) {
	if o.TargetsFile != "" {
		raw, err := os.ReadFile(o.TargetsFile)
		if err != nil {
			return nil, fmt.Errorf("read targets file: %w", err)
		}
		return raw, nil
	}
	return []byte(o.Targets), nil
}

func runJobCreate(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobCreateFlags(args)
	if err != nil {
		return err
	}

	targets, err := opts.targetsJSON()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	services := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config: &cmdCtx.Config,
		DB:     db,
		Logger: cmdCtx.Logger,
	})

	req := &model.CreateJobRequest{
		Type:    model.JobType(strings.TrimSpace(opts.Type)),
		Targets: json.RawMessage(targets),
	}
	if tenantID := strings.TrimSpace(opts.TenantID); tenantID != "" {
		req.TenantID = &tenantID
	}

	job, err := services.Admission.CreateScrapeJob(ctx, req)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	return printJob(job)
}

type jobShowOptions struct {
	ID    string
	Leads int
}

func parseJobShowFlags(args []string) (jobShowOptions, error) {
	fs := flag.NewFlagSet("job-show", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := jobShowOptions{}
	fs.StringVar(&opts.ID, "id", "", "Job UUID (required)")
	fs.IntVar(&opts.Leads, "leads", 5, "How many of the job's leads to print")

	if err := fs.Parse(args); err != nil {
		return jobShowOptions{}, fmt.Errorf("parse job-show flags: %w", err)
	}
	if strings.TrimSpace(opts.ID) == "" {
		return jobShowOptions{}, errors.New("job-show requires -id")
	}
	if opts.Leads < 0 {
		return jobShowOptions{}, errors.New("job-show -leads must not be negative")
	}
	return opts, nil
}

func runJobShow(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobShowFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	services := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config: &cmdCtx.Config,
		DB:     db,
		Logger: cmdCtx.Logger,
	})

	job, err := services.JobRepo.GetByID(ctx, strings.TrimSpace(opts.ID))
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}

	if err := printJob(job); err != nil {
		return err
	}

	if opts.Leads == 0 {
		return nil
	}

	leads, err := services.LeadRepo.ListByJob(ctx, job.ID, opts.Leads)
	if err != nil {
		return fmt.Errorf("list job leads: %w", err)
	}
	return printLeads(leads)
}

type jobListOptions struct {
	Status   string
	TenantID string
	Limit    int
}

func parseJobListFlags(args []string) (jobListOptions, error) {
	fs := flag.NewFlagSet("job-list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := jobListOptions{}
	fs.StringVar(&opts.Status, "status", "", "Filter by status: pending, running, completed, completed_with_errors, or failed")
	fs.StringVar(&opts.TenantID, "tenant", "", "Filter by tenant UUID")
	fs.IntVar(&opts.Limit, "limit", 20, "Maximum number of jobs to list")

	if err := fs.Parse(args); err != nil {
		return jobListOptions{}, fmt.Errorf("parse job-list flags: %w", err)
	}
	if opts.Status != "" && !model.JobStatus(opts.Status).Valid() {
		return jobListOptions{}, fmt.Errorf("unknown job status %q", opts.Status)
	}
	if opts.Limit <= 0 {
		return jobListOptions{}, errors.New("job-list -limit must be positive")
	}
	return opts, nil
}

func runJobList(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobListFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	services := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config: &cmdCtx.Config,
		DB:     db,
		Logger: cmdCtx.Logger,
	})

	listOpts := model.JobListOptions{
		Status: model.JobStatus(opts.Status),
		Limit:  opts.Limit,
	}
	if tenantID := strings.TrimSpace(opts.TenantID); tenantID != "" {
		listOpts.TenantID = &tenantID
	}

	jobs, err := services.JobRepo.List(ctx, listOpts)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	return printJobRows(jobs)
}

type statsOptions struct {
	TenantID string
}

func parseStatsFlags(args []string) (statsOptions, error) {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := statsOptions{}
	fs.StringVar(&opts.TenantID, "tenant", "", "Also show this tenant's current-month usage")

	if err := fs.Parse(args); err != nil {
		return statsOptions{}, fmt.Errorf("parse stats flags: %w", err)
	}
	return opts, nil
}

func runStats(cmdCtx *commandContext, args []string) error {
	opts, err := parseStatsFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	services := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config: &cmdCtx.Config,
		DB:     db,
		Logger: cmdCtx.Logger,
	})

	var (
		stats     *model.JobStats
		tenant    *model.Tenant
		usage     *model.MonthlyUsage
		remaining *int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, statsErr := services.JobRepo.Stats(gctx)
		if statsErr != nil {
			return fmt.Errorf("load job stats: %w", statsErr)
		}
		stats = s
		return nil
	})

	if tenantID := strings.TrimSpace(opts.TenantID); tenantID != "" {
		g.Go(func() error {
			t, tenantErr := services.TenantRepo.GetByID(gctx, tenantID)
			if tenantErr != nil {
				return fmt.Errorf("load tenant: %w", tenantErr)
			}
			tenant = t

			u, usageErr := services.UsageRepo.GetMonth(gctx, tenantID, model.MonthStart(time.Now()))
			if usageErr != nil {
				return fmt.Errorf("load monthly usage: %w", usageErr)
			}
			usage = u

			r, remErr := services.Usage.RemainingCredits(gctx, t)
			if remErr != nil {
				return fmt.Errorf("compute remaining credits: %w", remErr)
			}
			remaining = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if err := printStats(stats); err != nil {
		return err
	}
	if tenant == nil {
		return nil
	}
	return printTenantUsage(tenant, usage, remaining)
}

func runReap(cmdCtx *commandContext, _ []string) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	reaper, err := bootstrap.BuildReaper(db, cmdCtx.Config.Worker, cmdCtx.Logger, nil)
	if err != nil {
		return err
	}

	result, err := reaper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep stale jobs: %w", err)
	}

	if err := writef(os.Stdout, "Requeued: %d\nFailed: %d\nTotal: %d\n",
		result.Requeued, result.Failed, result.Total()); err != nil {
		return fmt.Errorf("print sweep result: %w", err)
	}
	return nil
}

func printJob(job *model.Job) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writef(w, "ID\t%s\n", job.ID); err != nil {
		return fmt.Errorf("write job id: %w", err)
	}
	if err := writef(w, "Tenant\t%s\n", orDash(job.TenantID)); err != nil {
		return fmt.Errorf("write job tenant: %w", err)
	}
	if err := writef(w, "Type\t%s\n", job.Type); err != nil {
		return fmt.Errorf("write job type: %w", err)
	}
	if err := writef(w, "Status\t%s\n", job.Status); err != nil {
		return fmt.Errorf("write job status: %w", err)
	}
	if err := writef(w, "Attempts\t%d\n", job.AttemptCount); err != nil {
		return fmt.Errorf("write job attempts: %w", err)
	}
	if err := writef(w, "Leads Found\t%d\n", job.LeadsFound); err != nil {
		return fmt.Errorf("write job leads: %w", err)
	}
	if err := writef(w, "Next Retry\t%s\n", orDashTime(job.NextRetryAt)); err != nil {
		return fmt.Errorf("write job next retry: %w", err)
	}
	errText := "-"
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		errText = util.Truncate(*job.ErrorMessage, 120)
	}
	if err := writef(w, "Error\t%s\n", errText); err != nil {
		return fmt.Errorf("write job error: %w", err)
	}
	if err := writef(w, "Started\t%s\n", orDashTime(job.StartedAt)); err != nil {
		return fmt.Errorf("write job started: %w", err)
	}
	if err := writef(w, "Completed\t%s\n", orDashTime(job.CompletedAt)); err != nil {
		return fmt.Errorf("write job completed: %w", err)
	}
	if err := writef(w, "Created\t%s\n", job.CreatedAt.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("write job created: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush job output: %w", err)
	}
	return nil
}

func printJobRows(jobs []*model.Job) error {
	if len(jobs) == 0 {
		return writeln(os.Stdout, "(no jobs found)")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "ID\tTYPE\tSTATUS\tATTEMPTS\tLEADS\tTENANT\tCREATED"); err != nil {
		return fmt.Errorf("write job list header: %w", err)
	}
	for _, job := range jobs {
		if err := writef(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			job.ID,
			job.Type,
			job.Status,
			job.AttemptCount,
			job.LeadsFound,
			orDash(job.TenantID),
			job.CreatedAt.Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("write job row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush job list output: %w", err)
	}
	return nil
}

func printLeads(leads []*model.Lead) error {
	if err := writeln(os.Stdout); err != nil {
		return fmt.Errorf("write leads spacer: %w", err)
	}
	if len(leads) == 0 {
		return writeln(os.Stdout, "(no leads recorded)")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "NAME\tPHONE\tWEBSITE\tINSTAGRAM\tCITY\tSCORE"); err != nil {
		return fmt.Errorf("write leads header: %w", err)
	}
	for _, lead := range leads {
		score := "-"
		if lead.LeadScore != nil {
			score = fmt.Sprintf("%d", *lead.LeadScore)
		}
		if err := writef(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			util.Truncate(lead.Name, 40),
			orDash(lead.Phone),
			orDash(lead.Website),
			orDash(lead.InstagramHandle),
			orDash(lead.City),
			score,
		); err != nil {
			return fmt.Errorf("write lead row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush leads output: %w", err)
	}
	return nil
}

func printStats(stats *model.JobStats) error {
	if stats == nil {
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Status\tJobs"); err != nil {
		return fmt.Errorf("write stats header: %w", err)
	}
	if err := writef(w, "Pending\t%d\n", stats.Pending); err != nil {
		return fmt.Errorf("write pending count: %w", err)
	}
	if err := writef(w, "Running\t%d\n", stats.Running); err != nil {
		return fmt.Errorf("write running count: %w", err)
	}
	if err := writef(w, "Completed\t%d\n", stats.Completed); err != nil {
		return fmt.Errorf("write completed count: %w", err)
	}
	if err := writef(w, "Completed With Errors\t%d\n", stats.CompletedWithErrors); err != nil {
		return fmt.Errorf("write completed-with-errors count: %w", err)
	}
	if err := writef(w, "Failed\t%d\n", stats.Failed); err != nil {
		return fmt.Errorf("write failed count: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush stats output: %w", err)
	}
	return nil
}

func printTenantUsage(tenant *model.Tenant, usage *model.MonthlyUsage, remaining *int) error {
	if err := writeln(os.Stdout); err != nil {
		return fmt.Errorf("write usage spacer: %w", err)
	}

	plan := model.PlanFor(model.InferPlanTier(tenant.PlanTier, tenant.SubscriptionStatus))
	remainingText := "unlimited"
	if remaining != nil {
		remainingText = fmt.Sprintf("%d", *remaining)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writef(w, "Tenant\t%s (%s)\n", tenant.Name, tenant.ID); err != nil {
		return fmt.Errorf("write usage tenant: %w", err)
	}
	if err := writef(w, "Plan\t%s\n", plan.Tier); err != nil {
		return fmt.Errorf("write usage plan: %w", err)
	}
	if usage != nil {
		if err := writef(w, "Month\t%s\n", usage.MonthStart.Format("2006-01")); err != nil {
			return fmt.Errorf("write usage month: %w", err)
		}
		if err := writef(w, "Leads Generated\t%d\n", usage.LeadsGenerated); err != nil {
			return fmt.Errorf("write usage leads: %w", err)
		}
		if err := writef(w, "Scrape Jobs\t%d\n", usage.ScrapeJobs); err != nil {
			return fmt.Errorf("write usage jobs: %w", err)
		}
	}
	if err := writef(w, "Remaining Credits\t%s\n", remainingText); err != nil {
		return fmt.Errorf("write usage remaining: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush usage output: %w", err)
	}
	return nil
}

func orDash(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return "-"
	}
	return *s
}

func orDashTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}
