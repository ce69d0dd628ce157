package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache interface {
	Get(ctx context.Context, key string) (Result, bool, error)
	Set(ctx context.Context, key string, r Result, ttl time.Duration) error
}

type RedisCache struct {
	RDB *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{RDB: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Result, bool, error) {
	b, err := c.RDB.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var r Result
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, false, err
	}
	return r, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, r Result, ttl time.Duration) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.RDB.Set(ctx, key, b, ttl).Err()
}

func cacheKey(digest string) string {
	return "analysis:" + digest
}
