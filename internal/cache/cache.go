// Package cache stores serialized unit lists keyed by company. Redis is used
// when an address is configured; otherwise entries live in process memory.
package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Cache is a string key/value store with per-entry expiry.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}

// New returns a Redis cache when redisAddr is set and an in-memory cache
// otherwise. Entries expire after ttl; zero keeps them until deleted.
func New(ctx context.Context, redisAddr string, ttl time.Duration, logger *zap.Logger) (Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if redisAddr == "" {
		logger.Debug("using in-memory cache",
			zap.String("op", "cache.New"),
			zap.Duration("ttl", ttl),
		)
		return NewMemoryCache(ttl), nil
	}
	rc, err := ConnectRedis(ctx, redisAddr, ttl, nil, logger)
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// UnitsKey is the cache key of a company's unit list.
func UnitsKey(companyID string) string {
	return "top-planner:units:" + companyID
}
