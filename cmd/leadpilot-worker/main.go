package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/Rishet11/LeadPilot/config"
	"github.com/Rishet11/LeadPilot/internal/bootstrap"
)

func main() {
	ctx := context.Background()

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).ErrorContext(ctx, "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}

	logger := bootstrap.InitLogger(cfg.IsDev)
	if err := run(ctx, &cfg, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	logger.InfoContext(ctx, "starting leadpilot worker",
		"db_host", cfg.Postgres.Host,
		"db_port", cfg.Postgres.Port,
		"db_name", cfg.Postgres.Name,
		"enabled_services", bootstrap.GetEnabledServices(cfg))

	if err := bootstrap.ValidateServiceConfig(cfg); err != nil {
		return err
	}

	inf, err := openInfra(cfg, logger)
	if err != nil {
		return err
	}
	defer inf.close(ctx)

	if cfg.Postgres.RunMigrationsOnStart {
		if err := bootstrap.RunMigrations(ctx, inf.db, logger); err != nil {
			return err
		}
	} else {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
	}

	services := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config: cfg,
		DB:     inf.db,
		Logger: logger,
	})

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:      cfg,
		Services:    services,
		DB:          inf.db,
		RedisClient: inf.redis,
		Logger:      logger,
	})
}

// infra bundles the process-wide connections the worker runs on.
type infra struct {
	db     *sql.DB
	redis  redis.UniversalClient
	logger *slog.Logger
}

func openInfra(cfg *config.AppConfig, logger *slog.Logger) (*infra, error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cfg.Postgres,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	redisClient, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
		RedisConfig: cfg.Redis,
		Logger:      logger,
	})
	if err != nil {
		err = fmt.Errorf("connect redis: %w", err)
		if cerr := db.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close database: %w", cerr))
		}
		return nil, err
	}

	return &infra{db: db, redis: redisClient, logger: logger}, nil
}

// close releases connections in reverse order of acquisition.
func (i *infra) close(ctx context.Context) {
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			i.logger.ErrorContext(ctx, "close redis failed", "error", err)
		}
	}
	if err := i.db.Close(); err != nil {
		i.logger.ErrorContext(ctx, "close database failed", "error", err)
	}
}
