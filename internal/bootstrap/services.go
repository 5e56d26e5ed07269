package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Rishet11/LeadPilot/config"
	"github.com/Rishet11/LeadPilot/internal/data"
	"github.com/Rishet11/LeadPilot/internal/observability/notify/pagerduty"
	"github.com/Rishet11/LeadPilot/internal/observability/notify/slack"
	"github.com/Rishet11/LeadPilot/internal/observability/statsd"
	"github.com/Rishet11/LeadPilot/internal/service"
	"github.com/Rishet11/LeadPilot/internal/service/failurenotifier"
)

// ServiceContainer holds application services and the repositories behind
// them, for use by the worker entrypoint and the admin CLI.
type ServiceContainer struct {
	Admission *service.AdmissionService
	Usage     *service.UsageService

	JobRepo    *data.JobRepo
	LeadRepo   *data.LeadRepo
	TenantRepo *data.TenantRepo
	UsageRepo  *data.UsageRepo

	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
}

// ServiceDeps groups dependencies for service initialization. The Redis
// client is deliberately absent: only the worker's dedupe cache needs it, and
// BuildWorker wires that from the orchestration config.
type ServiceDeps struct {
	Config *config.AppConfig
	DB     *sql.DB
	Logger *slog.Logger
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "leadpilot",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: buildFailureNotifier(obsLogger, cfg.Notifications),
		NotifierConfig:  cfg.Notifications,
	}
}

// NewServices wires repositories and domain services from shared
// connections. The worker itself is assembled separately by BuildWorker so
// job execution can be left out of processes that only admit or inspect
// jobs.
func NewServices(deps *ServiceDeps) ServiceContainer {
	if deps == nil {
		return ServiceContainer{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var obsCfg config.ObservabilityConfig
	if deps.Config != nil {
		obsCfg = deps.Config.Observability
	}
	observability := buildObservability(logger, obsCfg)

	jobRepo := data.NewJobRepo(deps.DB, data.RepoConfig{Logger: logger})
	leadRepo := data.NewLeadRepo(deps.DB)
	tenantRepo := data.NewTenantRepo(deps.DB)
	usageRepo := data.NewUsageRepo(deps.DB)

	usage := service.MustNewUsageService(service.UsageServiceOptions{
		Repo:   usageRepo,
		Logger: logger,
	})
	admission := service.MustNewAdmissionService(service.AdmissionOptions{
		Jobs:    jobRepo,
		Tenants: tenantRepo,
		Usage:   usage,
		Logger:  logger,
	})

	return ServiceContainer{
		Admission:     admission,
		Usage:         usage,
		JobRepo:       jobRepo,
		LeadRepo:      leadRepo,
		TenantRepo:    tenantRepo,
		UsageRepo:     usageRepo,
		Observability: observability,
	}
}

// buildFailureNotifier assembles the fan-out service for job failure alerts.
// Sinks that fail to construct are logged and left out rather than blocking
// startup.
func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	if logger == nil {
		logger = slog.Default()
	}

	var sinks []failurenotifier.SinkRegistration
	if cfg.Enabled {
		if cfg.Slack.Enabled {
			if client, err := slack.NewClient(slackClientConfig(cfg)); err != nil {
				logger.Error("failed to initialise slack notifier", "error", err)
			} else {
				sinks = append(sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
			}
		}
		if cfg.PagerDuty.Enabled {
			if client, err := pagerduty.NewClient(pagerdutyClientConfig(cfg)); err != nil {
				logger.Error("failed to initialise pagerduty notifier", "error", err)
			} else {
				sinks = append(sinks, failurenotifier.SinkRegistration{Name: "pagerduty", Sink: client})
			}
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: logger.With("component", "failure_notifier"),
		Sinks:  sinks,
	})
}

func slackClientConfig(cfg config.ObservabilityNotificationsConfig) slack.Config {
	return slack.Config{
		WebhookURL:   cfg.Slack.WebhookURL,
		Channel:      cfg.Slack.Channel,
		Username:     cfg.Slack.Username,
		Timeout:      cfg.Timeout,
		RetryLimit:   cfg.RetryLimit,
		JobURLPrefix: cfg.Slack.JobURLPrefix,
	}
}

func pagerdutyClientConfig(cfg config.ObservabilityNotificationsConfig) pagerduty.Config {
	return pagerduty.Config{
		RoutingKey: cfg.PagerDuty.RoutingKey,
		Source:     cfg.PagerDuty.Source,
		Component:  cfg.PagerDuty.Component,
		Timeout:    cfg.Timeout,
		RetryLimit: cfg.RetryLimit,
	}
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// shutdownWaitTimeout is the grace period services get to wind down after a
// stop is requested.
const shutdownWaitTimeout = 15 * time.Second

// runnable describes a background component the orchestrator can launch.
type runnable struct {
	mode config.ServiceMode
	name string
	run  func(context.Context) error
}

// workerRunnable adapts RunWorker to the orchestrator.
func workerRunnable(cfg *ServiceOrchestrationConfig, logger *slog.Logger) runnable {
	return runnable{
		mode: config.ServiceModeWorker,
		name: "job worker",
		run: func(ctx context.Context) error {
			var (
				workerCfg config.WorkerConfig
				scrapeCfg config.ScrapeConfig
				cacheCfg  config.CacheConfig
			)
			if cfg.Config != nil {
				workerCfg = cfg.Config.Worker
				scrapeCfg = cfg.Config.Scrape
				cacheCfg = cfg.Config.Cache
			}
			return RunWorker(ctx, WorkerServiceConfig{
				DB:              cfg.DB,
				RedisClient:     cfg.RedisClient,
				Logger:          logger,
				Worker:          workerCfg,
				Scrape:          scrapeCfg,
				Cache:           cacheCfg,
				Metrics:         cfg.Services.Observability.MetricsSink,
				FailureNotifier: cfg.Services.Observability.FailureNotifier,
			})
		},
	}
}

// enabledRunnables filters candidates down to the modes switched on in the
// config.
func enabledRunnables(candidates []runnable, enabled map[config.ServiceMode]bool) []runnable {
	out := make([]runnable, 0, len(candidates))
	for _, r := range candidates {
		if enabled[r.mode] {
			out = append(out, r)
		}
	}
	return out
}

// RunServicesWithShutdown launches every enabled service and blocks until a
// shutdown signal arrives or one of them fails. A signal-driven stop returns
// nil; the first service error is returned after the rest get a grace period
// to wind down.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	for _, svc := range enabledRunnables([]runnable{workerRunnable(cfg, logger)}, enabled) {
		logger.Info("background service started", "service", svc.name, "mode", svc.mode)
		group.Go(func() error {
			if runErr := svc.run(groupCtx); runErr != nil {
				return fmt.Errorf("%s failed: %w", svc.name, runErr)
			}
			logger.Info(svc.name + " stopped")
			return nil
		})
	}

	// Done fires on the first service error as well as on a signal.
	<-groupCtx.Done()
	stop()
	logger.Info("shutting down services...")

	return awaitServices(group, logger)
}

// awaitServices waits for the group to drain, giving up after the shutdown
// grace period.
func awaitServices(group *errgroup.Group, logger *slog.Logger) error {
	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("service error", "error", err)
		}
		return err
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for services to stop")
		return nil
	}
}
