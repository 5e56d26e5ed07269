package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/Rishet11/LeadPilot/config"
)

// InitLogger initializes the process-wide structured logger. Development
// mode switches to human-readable text output at debug level; everything
// else logs JSON at info.
func InitLogger(isDev bool) *slog.Logger {
	var handler slog.Handler
	if isDev {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from the environment, reading a .env file
// first when one exists in the working directory.
func LoadConfig() (config.AppConfig, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig checks that the SERVICES selection parses and names
// at least one service.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}
	if len(services) == 0 {
		return errors.New("no services enabled")
	}
	return nil
}

// GetEnabledServices returns the enabled service names in sorted order.
func GetEnabledServices(cfg *config.AppConfig) []string {
	if cfg == nil {
		return []string{}
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		// ValidateServiceConfig reports the parse failure; this path only
		// renders names for logging.
		return []string{}
	}

	names := make([]string, 0, len(services))
	for svc := range services {
		names = append(names, string(svc))
	}
	slices.Sort(names)
	return names
}
