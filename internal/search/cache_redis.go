package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"locations-server/internal/location"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "locations:search:"

const redisClearBatch = 500

// RedisCache keeps JSON encoded results in Redis under redisKeyPrefix.
// Clear only removes keys with that prefix.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Name() string { return "redis" }

func (c *RedisCache) Get(ctx context.Context, key string) ([]location.Place, bool, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var places []location.Place
	if err := json.Unmarshal(data, &places); err != nil {
		return nil, false, fmt.Errorf("decode cached places: %w", err)
	}
	for i := range places {
		places[i].RestoreIDs()
	}
	return places, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, places []location.Place) error {
	data, err := json.Marshal(places)
	if err != nil {
		return fmt.Errorf("encode places: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", redisClearBatch).Iterator()

	keys := make([]string, 0, redisClearBatch)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == redisClearBatch {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}
