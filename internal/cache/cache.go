// Package cache provides a best-effort read-through cache on Redis.
// A miss or a Redis outage never fails a request; callers fall back to
// the store and pay the extra latency.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ni30kp/lula-Task/pkg/logger"
	"github.com/ni30kp/lula-Task/pkg/metrics"
)

// Cache wraps a Redis client.
type Cache struct {
	rdb    *redis.Client
	logger *logger.Logger
}

// New connects to Redis. Connectivity is verified lazily; an unreachable
// Redis degrades reads to store lookups instead of failing startup.
func New(addr, password string, log *logger.Logger) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return &Cache{rdb: rdb, logger: log}
}

// Ping checks Redis connectivity, used by the readiness probe.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// GetJSON loads and decodes a cached value. Returns false on miss or on
// any cache error.
func (c *Cache) GetJSON(ctx context.Context, keyspace, key string, dest any) bool {
	data, err := c.rdb.Get(ctx, keyspace+":"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCache(keyspace, "miss")
		return false
	}
	if err != nil {
		metrics.RecordCache(keyspace, "error")
		c.logger.Warn("cache read failed", zap.String("keyspace", keyspace), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		metrics.RecordCache(keyspace, "error")
		return false
	}
	metrics.RecordCache(keyspace, "hit")
	return true
}

// SetJSON encodes and stores a value with a TTL, best effort.
func (c *Cache) SetJSON(ctx context.Context, keyspace, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, keyspace+":"+key, data, ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("keyspace", keyspace), zap.Error(err))
	}
}

// Delete drops a cached entry, best effort.
func (c *Cache) Delete(ctx context.Context, keyspace, key string) {
	if err := c.rdb.Del(ctx, keyspace+":"+key).Err(); err != nil {
		c.logger.Warn("cache delete failed", zap.String("keyspace", keyspace), zap.Error(err))
	}
}
