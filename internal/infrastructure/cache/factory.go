package cache

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	billingapp "github.com/squill/backend/internal/application/billing"
	"github.com/squill/backend/internal/infrastructure/config"
)

// UsageCache is a billing usage cache owning resources that must be released
type UsageCache interface {
	billingapp.UsageCache
	io.Closer
	// Ping reports whether the backing store is reachable
	Ping(ctx context.Context) error
	// Backend names the store, "redis" or "memory"
	Backend() string
}

// UsageCacheFactory chooses between Redis and the in-memory cache
type UsageCacheFactory struct {
	redisConfig           config.RedisConfig
	ttl                   time.Duration
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// UsageCacheFactoryOption configures the factory
type UsageCacheFactoryOption func(*UsageCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) UsageCacheFactoryOption {
	return func(f *UsageCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// the in-memory cache. Defaults to true.
func WithInMemoryFallback(allow bool) UsageCacheFactoryOption {
	return func(f *UsageCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewUsageCacheFactory creates a new factory
func NewUsageCacheFactory(cfg config.RedisConfig, ttl time.Duration, opts ...UsageCacheFactoryOption) *UsageCacheFactory {
	f := &UsageCacheFactory{
		redisConfig:           cfg,
		ttl:                   ttl,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateCache returns a Redis cache when Redis is enabled and reachable,
// otherwise the in-memory cache if fallback is allowed
func (f *UsageCacheFactory) CreateCache(ctx context.Context) (UsageCache, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory usage cache")
		return NewInMemoryUsageCache(f.ttl), nil
	}

	client, err := NewRedisClient(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis usage cache", zap.String("addr", f.redisConfig.Addr()))
		return NewRedisUsageCache(client, f.ttl), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for usage cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory usage cache. "+
		"Invalidations will not reach other instances.",
		zap.Error(err),
	)
	return NewInMemoryUsageCache(f.ttl), nil
}
