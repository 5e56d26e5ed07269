package config

import (
	"os"
	"strings"
)

// AppConfig composes the worker's configuration from the domain-specific
// files in this package. Values load from environment variables via
// github.com/caarlos0/env; see the individual files for the knobs each
// section exposes:
//   - database.go: Postgres, Redis, and dedupe cache settings
//   - services.go: service modes and worker tuning
//   - scrape.go: scrape provider credentials and actors
//   - observability.go: metrics and failure notifications
type AppConfig struct {
	// IsDev controls development mode behavior (verbose logging, relaxed guards).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Cache    CacheConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"worker"`

	// Worker configuration (retry policy, polling, stale-job recovery)
	Worker WorkerConfig `envPrefix:"LEADPILOT_WORKER_"`

	// Scrape provider configuration
	Scrape ScrapeConfig `envPrefix:"SCRAPE_"`

	// Observability configuration
	Observability ObservabilityConfig `envPrefix:"OBSERVABILITY_"`
}

// Sanitize applies guardrails after env parsing has populated the struct.
func (c *AppConfig) Sanitize() {
	c.Worker.Sanitize()
	c.Scrape.Sanitize()
	c.Cache.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// detectDevMode honours NODE_ENV as a fallback for the DEV flag, since the
// dashboard's tooling sets NODE_ENV rather than DEV.
func (c *AppConfig) detectDevMode() {
	if c.IsDev {
		return
	}
	switch strings.ToLower(os.Getenv("NODE_ENV")) {
	case "development", "dev":
		c.IsDev = true
	}
}

// GetEnabledServices parses the Services list into a mode set.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsWorkerEnabled reports whether the job worker mode is switched on.
func (c *AppConfig) IsWorkerEnabled() bool {
	modes, err := c.GetEnabledServices()
	return err == nil && modes[ServiceModeWorker]
}
