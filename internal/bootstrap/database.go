package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rishet11/LeadPilot/config"
	"github.com/Rishet11/LeadPilot/internal/migrate"
)

const (
	dbMaxOpenConns    = 25
	dbMaxIdleConns    = 5
	dbConnMaxLifetime = 5 * time.Minute
	connectTimeout    = 5 * time.Second
)

// DatabaseConfig carries the connection settings shared by ConnectDB and
// ConnectRedis.
type DatabaseConfig struct {
	DBConfig    config.DBConfig
	RedisConfig config.RedisConfig
	Logger      *slog.Logger
}

// postgresDSN builds the connection URL, encoding credentials so special
// characters survive.
func postgresDSN(cfg config.DBConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

// ConnectDB opens the PostgreSQL pool and verifies it responds.
func ConnectDB(cfg DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", postgresDSN(cfg.DBConfig))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxLifetime(dbConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close database connection: %w", closeErr))
		}
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("database connected",
			"host", cfg.DBConfig.Host,
			"port", cfg.DBConfig.Port,
			"database", cfg.DBConfig.Name,
		)
	}
	return db, nil
}

// ConnectRedis builds the Redis client backing the lead dedupe cache and
// verifies it responds. Cluster and sentinel topologies are selected through
// RedisConfig flags; the default is a single node addressed by URI.
//
//nolint:ireturn // redis.UniversalClient covers single, sentinel, and cluster clients.
func ConnectRedis(cfg DatabaseConfig) (redis.UniversalClient, error) {
	client, desc, err := buildRedisClient(cfg.RedisConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("redis connected", "addr", redactRedisAddr(desc))
	}
	return client, nil
}

//nolint:ireturn // redis.UniversalClient covers single, sentinel, and cluster clients.
func buildRedisClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	switch {
	case cfg.UseCluster:
		return newClusterClient(cfg)
	case cfg.UseSentinel:
		return newSentinelClient(cfg)
	default:
		return newDirectClient(cfg)
	}
}

// redactRedisAddr strips credentials from an address before logging it.
func redactRedisAddr(desc string) string {
	if u, err := url.Parse(desc); err == nil && u.User != nil {
		u.User = url.User("*")
		return u.Redacted()
	}
	if i := strings.LastIndex(desc, "@"); i >= 0 {
		return desc[i+1:]
	}
	return desc
}

//nolint:ireturn // redis.UniversalClient covers single, sentinel, and cluster clients.
func newClusterClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	var addrs []string
	for _, node := range cfg.ClusterNodes {
		if trimmed := strings.TrimSpace(node); trimmed != "" {
			addrs = append(addrs, trimmed)
		}
	}
	if len(addrs) == 0 {
		return nil, "", errors.New("redis cluster configuration requires at least one cluster node")
	}

	client := redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:    addrs,
		Password: cfg.Password,
	})
	return client, "cluster:" + strings.Join(addrs, ","), nil
}

//nolint:ireturn // redis.UniversalClient covers single, sentinel, and cluster clients.
func newSentinelClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	if len(cfg.SentinelNodes) == 0 {
		return nil, "", errors.New("redis sentinel configuration requires at least one sentinel node")
	}

	client := redis.NewFailoverClient(&redis.FailoverOptions{
		MasterName:       cfg.SentinelMasterName,
		SentinelAddrs:    cfg.SentinelNodes,
		Password:         cfg.Password,
		SentinelPassword: cfg.SentinelPassword,
	})
	return client, "sentinel:" + cfg.SentinelMasterName, nil
}

//nolint:ireturn // redis.UniversalClient covers single, sentinel, and cluster clients.
func newDirectClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	uri := strings.TrimSpace(cfg.URI)
	switch {
	case uri == "":
		return nil, "", errors.New("redis direct configuration requires a URI")
	case strings.HasPrefix(uri, "redis://"), strings.HasPrefix(uri, "rediss://"):
		opt, err := redis.ParseURL(uri)
		if err != nil {
			return nil, "", fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), opt.Addr, nil
	default:
		return redis.NewClient(&redis.Options{Addr: uri, Password: cfg.Password}), uri, nil
	}
}

// RunMigrations applies any pending schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if err := migrate.Run(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if logger != nil {
		logger.InfoContext(ctx, "database migrations completed")
	}
	return nil
}
