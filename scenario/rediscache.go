package scenario

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/liamcoop/dewater/dewater"
	"github.com/liamcoop/dewater/internal/logger"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "dewater:result:"

// RedisResultCache implements ResultCache on Redis so that replicas share
// computed grids. Backend failures are logged and treated as misses.
type RedisResultCache struct {
	client *redis.Client
	config CacheConfig
}

// NewRedisResultCache wraps an existing client
func NewRedisResultCache(client *redis.Client, config CacheConfig) *RedisResultCache {
	return &RedisResultCache{client: client, config: config}
}

// Get retrieves and decodes a cached result
func (c *RedisResultCache) Get(ctx context.Context, key string) (*dewater.Result, bool) {
	b, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.ErrorCache("get", err)
		return nil, false
	}

	var res dewater.Result
	if err := json.Unmarshal(b, &res); err != nil {
		logger.ErrorCache("decode", err)
		return nil, false
	}
	return &res, true
}

// Set encodes and stores a result with the configured TTL
func (c *RedisResultCache) Set(ctx context.Context, key string, res *dewater.Result) {
	b, err := json.Marshal(res)
	if err != nil {
		logger.ErrorCache("encode", err)
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, b, c.config.TTL).Err(); err != nil {
		logger.ErrorCache("set", err)
	}
}

// Invalidate deletes one entry
func (c *RedisResultCache) Invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		logger.ErrorCache("invalidate", err)
	}
}

// Ping checks the Redis connection
func (c *RedisResultCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
