package config

import "time"

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"leadpilot"`
	Password string `env:"PASSWORD"                envDefault:"leadpilot"`
	Name     string `env:"NAME"                    envDefault:"leadpilot"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// CacheConfig contains lead dedupe cache configuration. The cache shares the
// main Redis connection; entries only accelerate duplicate skipping, the
// leads table's unique index stays authoritative.
type CacheConfig struct {
	// DedupeTTL is how long an inserted lead's dedupe key stays reserved.
	DedupeTTL time.Duration `env:"CACHE_DEDUPE_TTL" envDefault:"720h"`
}

// Sanitize applies guardrails to cache configuration values.
func (c *CacheConfig) Sanitize() {
	if c.DedupeTTL < time.Hour {
		c.DedupeTTL = time.Hour
	}
}
