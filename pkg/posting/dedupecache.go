package posting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "posting:dedupe:"

// RedisDedupeCache is the Redis hot path in front of
// Store.ExistsByContentHash (§4.9 gate 3): a cache hit skips the database
// round-trip entirely, a miss or error falls through to the DB check.
type RedisDedupeCache struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewRedisDedupeCache builds a RedisDedupeCache.
func NewRedisDedupeCache(rdb *redis.Client, logger *slog.Logger) *RedisDedupeCache {
	return &RedisDedupeCache{rdb: rdb, logger: logger}
}

func redisDedupeKey(agentID int64, hash string) string {
	return fmt.Sprintf("%s%d:%s", redisKeyPrefix, agentID, hash)
}

// Seen reports whether (agentID, hash) was already published, per the
// cache. A Redis error is treated as a miss — the caller falls back to the
// database, never to a false negative.
func (c *RedisDedupeCache) Seen(ctx context.Context, agentID int64, hash string) (bool, error) {
	_, err := c.rdb.Get(ctx, redisDedupeKey(agentID, hash)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.logger.Warn("dedupe cache lookup failed, falling back to database", "error", err)
		return false, err
	}
	return true, nil
}

// MarkSeen warms the cache after a successful publish so the next claim
// batch's dedupe check for the same content is a cache hit.
func (c *RedisDedupeCache) MarkSeen(ctx context.Context, agentID int64, hash string, ttl time.Duration) {
	if err := c.rdb.Set(ctx, redisDedupeKey(agentID, hash), "1", ttl).Err(); err != nil {
		c.logger.Warn("dedupe cache warm failed", "error", err)
	}
}
