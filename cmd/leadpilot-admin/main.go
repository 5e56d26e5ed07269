package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Rishet11/LeadPilot/config"
	"github.com/Rishet11/LeadPilot/internal/bootstrap"
	"github.com/Rishet11/LeadPilot/internal/devseed"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 2 * time.Minute
)

func main() {
	logger := bootstrap.InitLogger(false)

	if len(os.Args) < 2 {
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
		"tenant-create": {
			name:        "tenant-create",
			description: "Create a tenant on a given plan tier",
			run:         runTenantCreate,
		},
		"job-create": {
			name:        "job-create",
			description: "Admit a new scrape job through plan gates",
			run:         runJobCreate,
		},
		"job-show": {
			name:        "job-show",
			description: "Show one job with a sample of its leads",
			run:         runJobShow,
		},
		"job-list": {
			name:        "job-list",
			description: "List jobs filtered by status or tenant",
			run:         runJobList,
		},
		"stats": {
			name:        "stats",
			description: "Show queue counts and optionally tenant usage",
			run:         runStats,
		},
		"reap": {
			name:        "reap",
			description: "Run one stale-job sweep outside the worker loop",
			run:         runReap,
		},
		"seed": {
			name:        "seed",
			description: "Seed demo tenants and jobs for local development",
			run:         runSeed,
		},
		"infra": {
			name:        "infra",
			description: "Check connectivity to Postgres and Redis",
			run:         runInfraStatus,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: leadpilot-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}
	for _, c := range commands() {
		if err := writef(os.Stdout, "  %-16s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

type migrateOptions struct {
	Timeout time.Duration
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{
		Timeout: defaultMigrationTimeout,
	}

	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete",
	)

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, fmt.Errorf("parse migrate flags: %w", err)
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("migrate timeout must be positive")
	}
	return opts, nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	cmdCtx.Logger.Info("running database migrations")

	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return fmt.Errorf("run migrations: %w", migrateErr)
	}

	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

type tenantCreateOptions struct {
	Name string
	Plan string
}

func parseTenantCreateFlags(args []string) (tenantCreateOptions, error) {
	fs := flag.NewFlagSet("tenant-create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := tenantCreateOptions{}
	fs.StringVar(&opts.Name, "name", "", "Tenant name (required)")
	fs.StringVar(&opts.Plan, "plan", "free", "Plan tier: free, launch, or starter")

	if err := fs.Parse(args); err != nil {
		return tenantCreateOptions{}, fmt.Errorf("parse tenant-create flags: %w", err)
	}
	if strings.TrimSpace(opts.Name) == "" {
		return tenantCreateOptions{}, errors.New("tenant-create requires -name")
	}
	return opts, nil
}

func runTenantCreate(cmdCtx *commandContext, args []string) error {
	opts, err := parseTenantCreateFlags(args)
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

	tenant, err := services.TenantRepo.Create(ctx, &model.CreateTenantRequest{
		Name:     opts.Name,
		PlanTier: opts.Plan,
	})
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}

	return printTenant(tenant)
}

func runSeed(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse seed flags: %w", err)
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

	cmdCtx.Logger.Info("ensuring database migrations are current")
	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return fmt.Errorf("run migrations: %w", migrateErr)
	}

	cmdCtx.Logger.Info("seeding development data")
	if seedErr := devseed.Run(ctx, devseed.NewServices(db), cmdCtx.Logger); seedErr != nil {
		return fmt.Errorf("seed data: %w", seedErr)
	}

	cmdCtx.Logger.Info("database seeding completed successfully")
	return nil
}

func printTenant(tenant *model.Tenant) error {
	plan := model.PlanFor(model.InferPlanTier(tenant.PlanTier, tenant.SubscriptionStatus))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writef(w, "ID\t%s\n", tenant.ID); err != nil {
		return fmt.Errorf("write tenant id: %w", err)
	}
	if err := writef(w, "Name\t%s\n", tenant.Name); err != nil {
		return fmt.Errorf("write tenant name: %w", err)
	}
	if err := writef(w, "Plan\t%s\n", plan.Tier); err != nil {
		return fmt.Errorf("write tenant plan: %w", err)
	}
	if err := writef(w, "Monthly Lead Quota\t%d\n", plan.MonthlyLeadQuota); err != nil {
		return fmt.Errorf("write tenant quota: %w", err)
	}
	if err := writef(w, "Instagram Enabled\t%t\n", plan.InstagramEnabled); err != nil {
		return fmt.Errorf("write tenant instagram flag: %w", err)
	}
	if err := writef(w, "Max Concurrent Jobs\t%d\n", plan.MaxConcurrentJobs); err != nil {
		return fmt.Errorf("write tenant concurrency: %w", err)
	}
	if err := writef(w, "Created\t%s\n", tenant.CreatedAt.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("write tenant created: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush tenant output: %w", err)
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	if len(args) == 0 {
		_, err := fmt.Fprintln(w)
		return err
	}
	_, err := fmt.Fprintln(w, args...)
	return err
}
