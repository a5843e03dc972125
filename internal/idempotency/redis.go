package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const cachePrefix = "idempotency:"

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Record, error) {
	data, err := c.client.Get(ctx, cachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("Get: decode: %w", err)
	}
	return &rec, nil
}

// Set expires the cached copy together with the durable record.
func (c *RedisCache) Set(ctx context.Context, rec *Record) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("Set: encode: %w", err)
	}
	if err := c.client.Set(ctx, cachePrefix+rec.Key, data, ttl).Err(); err != nil {
		return fmt.Errorf("Set: %w", err)
	}
	return nil
}

// Ping lets readiness report the cache without exposing the client.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
