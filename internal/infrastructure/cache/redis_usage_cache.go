package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	billingapp "github.com/squill/backend/internal/application/billing"
	"github.com/squill/backend/internal/domain/billing"
)

const scanBatch = 100

// RedisUsageCache implements billingapp.UsageCache on Redis so every
// instance sees the same aggregations and invalidations.
// A nil client turns every call into a no-op miss.
type RedisUsageCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisUsageCache creates a cache whose entries expire after ttl
func NewRedisUsageCache(client *redis.Client, ttl time.Duration) *RedisUsageCache {
	return &RedisUsageCache{client: client, ttl: ttl}
}

// Get returns (nil, nil) on a miss
func (c *RedisUsageCache) Get(ctx context.Context, key billingapp.UsageCacheKey) (*billing.AggregatedUsage, error) {
	if c.client == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, usageKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read usage cache: %w", err)
	}

	var usage billing.AggregatedUsage
	if err := json.Unmarshal(data, &usage); err != nil {
		return nil, fmt.Errorf("failed to decode cached usage: %w", err)
	}
	return &usage, nil
}

// Set stores usage under key with the configured TTL
func (c *RedisUsageCache) Set(ctx context.Context, key billingapp.UsageCacheKey, usage *billing.AggregatedUsage) error {
	if c.client == nil || usage == nil {
		return nil
	}

	data, err := json.Marshal(usage)
	if err != nil {
		return fmt.Errorf("failed to encode usage: %w", err)
	}
	if err := c.client.Set(ctx, usageKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write usage cache: %w", err)
	}
	return nil
}

// InvalidateCustomer drops every cached window of a customer.
// SCAN keeps Redis responsive where KEYS would block it.
func (c *RedisUsageCache) InvalidateCustomer(ctx context.Context, customerID string) error {
	if c.client == nil {
		return nil
	}

	iter := c.client.Scan(ctx, 0, customerPattern(customerID), scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("failed to invalidate usage cache: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan usage cache: %w", err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("failed to invalidate usage cache: %w", err)
		}
	}
	return nil
}

// Ping checks the Redis connection
func (c *RedisUsageCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return errors.New("redis client not configured")
	}
	return c.client.Ping(ctx).Err()
}

// Backend returns "redis"
func (c *RedisUsageCache) Backend() string { return "redis" }

// Close closes the Redis client
func (c *RedisUsageCache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

var _ billingapp.UsageCache = (*RedisUsageCache)(nil)
