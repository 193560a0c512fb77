// Package cache holds the Redis-backed report cache. It remembers the last
// state payload successfully reported per message so the dispatch pipeline
// can skip PATCHes that would repeat what the server already knows.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisReportCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisReportCache(rdb *redis.Client, ttl time.Duration) *RedisReportCache {
	return &RedisReportCache{rdb: rdb, ttl: ttl}
}

func key(messageID string) string {
	return "report:" + messageID
}

// LastReported returns the payload last stored for the message, or "" when
// none is known.
func (c *RedisReportCache) LastReported(ctx context.Context, messageID string) (string, error) {
	val, err := c.rdb.Get(ctx, key(messageID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (c *RedisReportCache) StoreReported(ctx context.Context, messageID, payload string) error {
	return c.rdb.Set(ctx, key(messageID), payload, c.ttl).Err()
}
