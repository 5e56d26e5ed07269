package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rishet11/LeadPilot/internal/core"
)

// dedupeKeyPrefix namespaces dedupe entries so the cache can share a Redis
// database with other tooling.
const dedupeKeyPrefix = "leadpilot:dedupe:"

// RedisDedupeCache implements the DedupeCache interface using Redis. Entries
// are written only after the corresponding lead row is durably inserted, so
// the cache can only ever skip work, never lose a lead; the leads table's
// unique index stays authoritative.
type RedisDedupeCache struct {
	client redis.UniversalClient
}

// NewRedisDedupeCache creates a new RedisDedupeCache with the given Redis client.
func NewRedisDedupeCache(client redis.UniversalClient) *RedisDedupeCache {
	return &RedisDedupeCache{client: client}
}

// Seen reports whether a dedupe key has been recorded.
func (r *RedisDedupeCache) Seen(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("key cannot be empty")
	}

	result, err := r.client.Exists(ctx, dedupeKeyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return result > 0, nil
}

// MarkSeen records a dedupe key with the given TTL.
func (r *RedisDedupeCache) MarkSeen(ctx context.Context, key string, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	actualTTL := ttl
	if ttl <= 0 {
		actualTTL = time.Second
	}

	if err := r.client.Set(ctx, dedupeKeyPrefix+key, "1", actualTTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Health checks the health of the Redis connection.
func (r *RedisDedupeCache) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

var _ core.DedupeCache = (*RedisDedupeCache)(nil)
