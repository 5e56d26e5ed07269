package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Rishet11/LeadPilot/config"
	"github.com/Rishet11/LeadPilot/internal/adapters/googlemaps"
	"github.com/Rishet11/LeadPilot/internal/adapters/instagram"
	"github.com/Rishet11/LeadPilot/internal/adapters/scrapeprovider"
	"github.com/Rishet11/LeadPilot/internal/core"
	"github.com/Rishet11/LeadPilot/internal/data"
	domainjob "github.com/Rishet11/LeadPilot/internal/domain/job"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
	"github.com/Rishet11/LeadPilot/internal/observability/statsd"
	"github.com/Rishet11/LeadPilot/internal/service"
	"github.com/Rishet11/LeadPilot/internal/service/failurenotifier"
)

// WorkerServiceConfig contains configuration for the job worker service.
type WorkerServiceConfig struct {
	DB              *sql.DB
	RedisClient     redis.UniversalClient
	Logger          *slog.Logger
	Worker          config.WorkerConfig
	Scrape          config.ScrapeConfig
	Cache           config.CacheConfig
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// RunWorker starts the job worker service and blocks until the context is
// canceled or the poll loop hits a store error.
func RunWorker(ctx context.Context, cfg WorkerServiceConfig) error {
	worker, err := BuildWorker(cfg)
	if err != nil {
		return fmt.Errorf("create worker: %w", err)
	}

	if runErr := worker.Run(ctx); runErr != nil {
		return fmt.Errorf("run worker: %w", runErr)
	}
	return nil
}

// BuildWorker assembles the poll loop and everything underneath it: the job
// repository, the scrape pipelines, the per-type executors, the runner, and
// the reaper.
func BuildWorker(cfg WorkerServiceConfig) (*service.Worker, error) {
	policy, err := domainjob.NewRetryPolicy(cfg.Worker.MaxAttempts, cfg.Worker.BaseBackoff)
	if err != nil {
		return nil, fmt.Errorf("build retry policy: %w", err)
	}

	jobs := data.NewJobRepo(cfg.DB, data.RepoConfig{Logger: cfg.Logger})

	usage, err := service.NewUsageService(service.UsageServiceOptions{
		Repo:   data.NewUsageRepo(cfg.DB),
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build usage service: %w", err)
	}

	executors, err := buildTargetExecutors(cfg)
	if err != nil {
		return nil, err
	}

	runner, err := service.NewRunner(service.RunnerOptions{
		Jobs:            jobs,
		Executors:       executors,
		RetryPolicy:     policy,
		Usage:           usage,
		Logger:          cfg.Logger,
		Metrics:         cfg.Metrics,
		FailureNotifier: cfg.FailureNotifier,
	})
	if err != nil {
		return nil, fmt.Errorf("build runner: %w", err)
	}

	reaper, err := service.NewReaper(service.ReaperOptions{
		Repo:         jobs,
		RetryPolicy:  policy,
		StuckTimeout: cfg.Worker.StuckTimeout,
		Logger:       cfg.Logger,
		Metrics:      cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build reaper: %w", err)
	}

	worker, err := service.NewWorker(service.WorkerOptions{
		Jobs:         jobs,
		Runner:       runner,
		Reaper:       reaper,
		PollInterval: cfg.Worker.PollInterval,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build worker: %w", err)
	}

	return worker, nil
}

// BuildReaper assembles a standalone reaper for one-off sweeps outside the
// poll loop, such as the admin CLI.
func BuildReaper(db *sql.DB, cfg config.WorkerConfig, logger *slog.Logger, metrics statsd.Sink) (*service.Reaper, error) {
	policy, err := domainjob.NewRetryPolicy(cfg.MaxAttempts, cfg.BaseBackoff)
	if err != nil {
		return nil, fmt.Errorf("build retry policy: %w", err)
	}

	reaper, err := service.NewReaper(service.ReaperOptions{
		Repo:         data.NewJobRepo(db, data.RepoConfig{Logger: logger}),
		RetryPolicy:  policy,
		StuckTimeout: cfg.StuckTimeout,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build reaper: %w", err)
	}
	return reaper, nil
}

// buildTargetExecutors wires one scrape pipeline per job type on top of a
// shared provider client and dedupe cache.
func buildTargetExecutors(cfg WorkerServiceConfig) (map[model.JobType]core.TargetExecutor, error) {
	provider, err := scrapeprovider.NewClient(scrapeprovider.Options{
		BaseURL:      cfg.Scrape.BaseURL,
		Token:        cfg.Scrape.Token,
		Timeout:      cfg.Scrape.Timeout,
		MaxBodyBytes: cfg.Scrape.MaxBodyBytes,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build scrape provider client: %w", err)
	}

	leads := data.NewLeadRepo(cfg.DB)

	// Dedupe is optional; without Redis the leads table's unique index
	// still rejects duplicates, just with more provider traffic.
	var dedupe core.DedupeCache
	if cfg.RedisClient != nil {
		dedupe = data.NewRedisDedupeCache(cfg.RedisClient)
	}

	googlePipeline, err := scrapeprovider.NewPipeline(scrapeprovider.PipelineOptions{
		Provider:  provider,
		Leads:     leads,
		Mapper:    scrapeprovider.MustNewItemMapper(scrapeprovider.GoogleMapsMapping()),
		Dedupe:    dedupe,
		DedupeTTL: cfg.Cache.DedupeTTL,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build google maps pipeline: %w", err)
	}

	googleExecutor, err := googlemaps.NewExecutor(googlemaps.Options{
		Pipeline: googlePipeline,
		Actor:    cfg.Scrape.GoogleMapsActor,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build google maps executor: %w", err)
	}

	instagramPipeline, err := scrapeprovider.NewPipeline(scrapeprovider.PipelineOptions{
		Provider:  provider,
		Leads:     leads,
		Mapper:    scrapeprovider.MustNewItemMapper(scrapeprovider.InstagramMapping()),
		Dedupe:    dedupe,
		DedupeTTL: cfg.Cache.DedupeTTL,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build instagram pipeline: %w", err)
	}

	instagramExecutor, err := instagram.NewExecutor(instagram.Options{
		Pipeline: instagramPipeline,
		Actor:    cfg.Scrape.InstagramActor,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build instagram executor: %w", err)
	}

	return map[model.JobType]core.TargetExecutor{
		model.JobTypeGoogleMaps: googleExecutor,
		model.JobTypeInstagram:  instagramExecutor,
	}, nil
}
