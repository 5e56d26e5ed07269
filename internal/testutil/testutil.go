package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	// Register the pgx stdlib driver for database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/Rishet11/LeadPilot/internal/migrate"
)

// TestingTB is the subset of testing.TB these helpers need. Both *testing.T
// and *testing.B satisfy it.
type TestingTB interface {
	Helper()
	Cleanup(func())
	Skip(args ...any)
	Skipf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Logf(format string, args ...any)
}

// TestTime returns the fixed instant fixtures are stamped with.
func TestTime() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

// envOr returns the value of key, or fallback when unset or blank.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envBool accepts the usual truthy spellings: 1, true, yes, y.
func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

// requireDB and requireRedis promote "infrastructure missing" from a skip to
// a failure, so CI with the full compose stack cannot silently lose coverage.
func requireDB() bool    { return envBool("TEST_REQUIRE_DB") || envBool("TEST_REQUIRE_INFRA") }
func requireRedis() bool { return envBool("TEST_REQUIRE_REDIS") || envBool("TEST_REQUIRE_INFRA") }

func closeQuietly(t TestingTB, what string, c io.Closer) {
	if err := c.Close(); err != nil {
		t.Logf("warning: close %s: %v", what, err)
	}
}

// TestDBConfig describes how to reach the Postgres instance tests run against.
type TestDBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// DefaultTestDBConfig reads TEST_DB_* overrides and falls back to the local
// docker-compose test profile on port 55432. CI sets TEST_DB_PORT=5432.
func DefaultTestDBConfig() TestDBConfig {
	return TestDBConfig{
		Host:     envOr("TEST_DB_HOST", "localhost"),
		Port:     envOr("TEST_DB_PORT", "55432"),
		User:     envOr("TEST_DB_USER", "leadpilot"),
		Password: envOr("TEST_DB_PASSWORD", "leadpilot"),
		DBName:   envOr("TEST_DB_NAME", "leadpilot"),
	}
}

// dsn renders the config as a connection URL. A non-empty searchPath pins the
// session to an ephemeral schema ahead of public.
func (c TestDBConfig) dsn(searchPath string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/" + c.DBName,
	}
	q := url.Values{}
	q.Set("sslmode", envOr("DB_SSL_MODE", "disable"))
	if searchPath != "" {
		q.Set("search_path", searchPath+",public")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// openTestDB opens dsn and verifies connectivity within timeout.
func openTestDB(dsn string, timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// SkipIfNoTestDB skips the test when the configured Postgres is unreachable.
// TEST_REQUIRE_DB or TEST_REQUIRE_INFRA turns the skip into a failure.
func SkipIfNoTestDB(t TestingTB) {
	t.Helper()

	db, err := openTestDB(DefaultTestDBConfig().dsn(""), 2*time.Second)
	if err != nil {
		if requireDB() {
			t.Fatal("Test database not available:", err)
		}
		t.Skip("Test database not available:", err)
	}
	closeQuietly(t, "probe connection", db)
}

// WithAutoDB hands fn a migrated database and owns its lifecycle. With
// TEST_DB_EPHEMERAL set, each test gets a private schema that is dropped on
// cleanup; otherwise tests share the configured database and the tables are
// wiped before and after fn runs.
func WithAutoDB(t TestingTB, fn func(*sql.DB)) {
	t.Helper()
	if envBool("TEST_DB_EPHEMERAL") {
		fn(ephemeralSchemaDB(t))
		return
	}

	db := sharedTestDB(t)
	defer func() {
		wipeTestTables(t, db)
		closeQuietly(t, "test database", db)
	}()
	fn(db)
}

// sharedTestDB connects to the shared test database, applies migrations, and
// clears rows left behind by earlier runs.
func sharedTestDB(t TestingTB) *sql.DB {
	t.Helper()
	SkipIfNoTestDB(t)

	db, err := openTestDB(DefaultTestDBConfig().dsn(""), 5*time.Second)
	if err != nil {
		t.Fatal("Failed to connect to test database. Make sure PostgreSQL is running (docker-compose up -d):", err)
	}
	migrateTestDB(t, db)
	wipeTestTables(t, db)
	return db
}

func migrateTestDB(t TestingTB, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := migrate.Run(ctx, db); err != nil {
		closeQuietly(t, "test database", db)
		t.Fatal("Failed to run migrations:", err)
	}
}

// testTables lists every table the suite writes, ordered so deletes never trip
// foreign keys: leads reference jobs and tenants, usage and jobs reference
// tenants, so tenants go last.
var testTables = []string{"leads", "usage_monthly", "jobs", "tenants"}

func wipeTestTables(t TestingTB, db *sql.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, table := range testTables {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("Failed to clean up table %s: %v", table, err)
		}
	}
}

// ephemeralSchemaDB provisions a throwaway schema, points a fresh connection's
// search_path at it, and migrates it. The schema and both connections are
// released via t.Cleanup, registered before migrations run so resources are
// freed even when migrating fails.
func ephemeralSchemaDB(t TestingTB) *sql.DB {
	t.Helper()
	SkipIfNoTestDB(t)

	cfg := DefaultTestDBConfig()
	admin, err := openTestDB(cfg.dsn(""), 5*time.Second)
	if err != nil {
		t.Fatal("Failed to open admin connection:", err)
	}

	schema := ephemeralSchemaName()
	if err := execDDL(admin, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
		closeQuietly(t, "admin connection", admin)
		t.Fatalf("Failed to create schema %s: %v", schema, err)
	}

	db, err := openTestDB(cfg.dsn(schema), 10*time.Second)
	if err != nil {
		closeQuietly(t, "admin connection", admin)
		t.Fatalf("Failed to connect to schema %s: %v", schema, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	t.Logf("Using ephemeral schema: %s", schema)
	t.Cleanup(func() {
		closeQuietly(t, "schema connection", db)
		if err := execDDL(admin, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("Warning: failed to drop schema %s: %v", schema, err)
		}
		closeQuietly(t, "admin connection", admin)
	})

	migrateTestDB(t, db)
	return db
}

func execDDL(db *sql.DB, stmt string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := db.ExecContext(ctx, stmt)
	return err
}

// ephemeralSchemaName returns t_<8 hex chars>, falling back to a nanosecond
// suffix when the random source fails.
func ephemeralSchemaName() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("t_%d", time.Now().UnixNano())
	}
	return "t_" + hex.EncodeToString(b[:])
}

// redisCandidates returns the addresses to probe, most specific first. The
// last entry is the local docker-compose test profile port.
func redisCandidates() []string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return []string{addr}
	}
	return []string{
		"redis:6379",     // compose service name in CI
		"localhost:6379", // plain local install
		"localhost:56379",
	}
}

func resolveRedisAddr(t TestingTB) (string, bool) {
	t.Helper()

	candidates := redisCandidates()
	for _, addr := range candidates[:len(candidates)-1] {
		if redisReachable(t, addr) {
			return addr, true
		}
	}
	last := candidates[len(candidates)-1]
	return last, redisReachable(t, last)
}

func redisReachable(t TestingTB, addr string) bool {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer closeQuietly(t, "redis probe", client)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Logf("Redis not available at %s: %v", addr, err)
		return false
	}
	return true
}

// reserveRedisDB picks the Redis logical database tests will flush. An
// explicit TEST_REDIS_DB wins; otherwise indexes 1-15 are claimed through
// lock keys held in DB 0, so FlushDB on the claimed database cannot erase
// the reservation and parallel packages never flush each other.
func reserveRedisDB(t TestingTB, addr string) int {
	t.Helper()

	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
		t.Logf("Invalid TEST_REDIS_DB=%q, falling back to auto-select", v)
	}

	meta := redis.NewClient(&redis.Options{Addr: addr, DB: 0})
	defer closeQuietly(t, "redis meta client", meta)

	token := fmt.Sprintf("%d:%d", os.Getpid(), time.Now().UnixNano())
	for i := 1; i <= 15; i++ {
		key := fmt.Sprintf("leadpilot:testutil:db_lock:%d", i)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		claimed, err := meta.SetNX(ctx, key, token, 30*time.Minute).Result()
		cancel()
		if err != nil || !claimed {
			continue
		}

		releaseLockOnCleanup(t, addr, key)
		t.Logf("Using Redis DB=%d for tests at %s", i, addr)
		return i
	}

	t.Logf("Falling back to Redis DB=1 for tests at %s", addr)
	return 1
}

func releaseLockOnCleanup(t TestingTB, addr, key string) {
	t.Cleanup(func() {
		c := redis.NewClient(&redis.Options{Addr: addr, DB: 0})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.Del(ctx, key).Err(); err != nil {
			t.Logf("warning: failed to release redis db lock %s: %v", key, err)
		}
		closeQuietly(t, "redis cleanup client", c)
	})
}

// SetupTestRedis returns a client bound to a reserved, freshly flushed Redis
// database. Tests skip when no Redis answers, unless TEST_REQUIRE_REDIS or
// TEST_REQUIRE_INFRA promotes that to a failure.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()

	addr, ok := resolveRedisAddr(t)
	if !ok {
		if requireRedis() {
			t.Fatal("Redis not available for testing")
		}
		t.Skip("Redis not available for testing")
	}

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   reserveRedisDB(t, addr),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		closeQuietly(t, "redis client", client)
		if requireRedis() {
			t.Fatalf("Redis not available for testing at %s: %v", addr, err)
		}
		t.Skipf("Redis not available for testing at %s: %v", addr, err)
	}

	client.FlushDB(ctx)
	return client
}

// TestClock is a controllable clock that satisfies the data layer's Clock
// so tests can steer retry and staleness windows.
type TestClock struct {
	current time.Time
}

// NewTestClock returns a clock stopped at start.
func NewTestClock(start time.Time) *TestClock {
	return &TestClock{current: start}
}

// Now returns the clock's current instant.
func (c *TestClock) Now() time.Time {
	return c.current
}

// Advance moves the clock forward by d.
func (c *TestClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

// ConcurrentTestRunner coordinates goroutines that race against the same
// database, collecting one error slot per function.
type ConcurrentTestRunner struct {
	t  TestingTB
	db *sql.DB
}

// NewConcurrentTestRunner builds a runner bound to t and db.
func NewConcurrentTestRunner(t TestingTB, db *sql.DB) *ConcurrentTestRunner {
	return &ConcurrentTestRunner{t: t, db: db}
}

// RunConcurrent starts every function at once and blocks until all return.
// The result slice is index-aligned with funcs.
func (r *ConcurrentTestRunner) RunConcurrent(funcs ...func() error) []error {
	r.t.Helper()

	errs := make([]error, len(funcs))
	var wg sync.WaitGroup
	for i, fn := range funcs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = fn()
		}()
	}
	wg.Wait()
	return errs
}

// AssertNoErrors fails the test on the first non-nil entry.
func (r *ConcurrentTestRunner) AssertNoErrors(errs []error) {
	r.t.Helper()

	for i, err := range errs {
		if err != nil {
			r.t.Fatalf("Concurrent operation %d failed: %v", i, err)
		}
	}
}

// StringPtr returns a pointer to the given string value.
func StringPtr(s string) *string {
	return &s
}
