package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ClientConstructor builds a Redis client from options.
type ClientConstructor func(opt *redis.Options) *redis.Client

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// ConnectRedis connects to addr and verifies the connection with a ping.
// newClient defaults to redis.NewClient.
func ConnectRedis(ctx context.Context, addr string, ttl time.Duration, newClient ClientConstructor, logger *zap.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if newClient == nil {
		newClient = redis.NewClient
	}

	client := newClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("redis ping failed",
			zap.String("op", "cache.ConnectRedis"),
			zap.String("addr", addr),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	logger.Info("connected to redis",
		zap.String("op", "cache.ConnectRedis"),
		zap.String("addr", addr),
	)
	return NewRedisCache(client, ttl, logger), nil
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the value stored under key. Misses and errors both report
// false; errors other than a miss are logged.
func (r *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("redis get failed",
				zap.String("op", "cache.RedisCache.Get"),
				zap.String("key", key),
				zap.Error(err),
			)
		}
		return "", false
	}
	return val, true
}

// Set stores value under key with the cache TTL.
func (r *RedisCache) Set(ctx context.Context, key string, value string) error {
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
