package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	billingapp "github.com/squill/backend/internal/application/billing"
	"github.com/squill/backend/internal/domain/billing"
	"github.com/squill/backend/internal/infrastructure/config"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return s, client
}

func sampleUsage() *billing.AggregatedUsage {
	return &billing.AggregatedUsage{
		Totals: billing.MetricMapOf(
			billing.Entry(billing.MetricAPICall, decimal.NewFromInt(125)),
			billing.Entry(billing.MetricStorageGB, decimal.RequireFromString("1.5")),
		),
		EventCount: 3,
	}
}

func TestUsageKey(t *testing.T) {
	assert.Equal(t, "squill:usage:cust-1:-:-:false", usageKey(billingapp.UsageCacheKey{CustomerID: "cust-1"}))
	assert.Equal(t,
		"squill:usage:cust-1:2024-01-01T00:00:00:2024-01-31T23:59:59.999999:true",
		usageKey(billingapp.UsageCacheKey{
			CustomerID: "cust-1",
			Start:      "2024-01-01T00:00:00",
			End:        "2024-01-31T23:59:59.999999",
			Daily:      true,
		}))
	assert.Equal(t, `squill:usage:a\*b:*`, customerPattern("a*b"))
}

func TestRedisUsageCache(t *testing.T) {
	ctx := context.Background()
	key := billingapp.UsageCacheKey{CustomerID: "cust-1", Start: "2024-01-01T00:00:00", End: "2024-01-31T23:59:59.999999"}

	t.Run("miss returns nil without error", func(t *testing.T) {
		_, client := newTestRedis(t)
		c := NewRedisUsageCache(client, time.Minute)

		got, err := c.Get(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("set then get round trips totals in order", func(t *testing.T) {
		_, client := newTestRedis(t)
		c := NewRedisUsageCache(client, time.Minute)

		require.NoError(t, c.Set(ctx, key, sampleUsage()))

		got, err := c.Get(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 3, got.EventCount)
		assert.Equal(t, []billing.Metric{billing.MetricAPICall, billing.MetricStorageGB}, got.Totals.Keys())
		assert.True(t, got.Total(billing.MetricStorageGB).Equal(decimal.RequireFromString("1.5")))
	})

	t.Run("entries expire after ttl", func(t *testing.T) {
		s, client := newTestRedis(t)
		c := NewRedisUsageCache(client, time.Minute)

		require.NoError(t, c.Set(ctx, key, sampleUsage()))
		assert.Equal(t, time.Minute, s.TTL(usageKey(key)))

		s.FastForward(2 * time.Minute)
		got, err := c.Get(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("invalidate removes only that customer", func(t *testing.T) {
		s, client := newTestRedis(t)
		c := NewRedisUsageCache(client, time.Minute)

		for i := 0; i < scanBatch+5; i++ {
			k := billingapp.UsageCacheKey{CustomerID: "cust-1", Start: fmt.Sprintf("2024-01-%03d", i)}
			require.NoError(t, c.Set(ctx, k, sampleUsage()))
		}
		other := billingapp.UsageCacheKey{CustomerID: "cust-10"}
		require.NoError(t, c.Set(ctx, other, sampleUsage()))

		require.NoError(t, c.InvalidateCustomer(ctx, "cust-1"))

		assert.Len(t, s.Keys(), 1)
		assert.True(t, s.Exists(usageKey(other)))
	})

	t.Run("corrupt entry is an error", func(t *testing.T) {
		s, client := newTestRedis(t)
		c := NewRedisUsageCache(client, time.Minute)
		require.NoError(t, s.Set(usageKey(key), "not json"))

		_, err := c.Get(ctx, key)
		assert.ErrorContains(t, err, "failed to decode cached usage")
	})

	t.Run("unreachable redis surfaces errors", func(t *testing.T) {
		s, client := newTestRedis(t)
		c := NewRedisUsageCache(client, time.Minute)
		s.Close()

		_, err := c.Get(ctx, key)
		assert.Error(t, err)
		assert.Error(t, c.InvalidateCustomer(ctx, "cust-1"))
	})

	t.Run("nil client is a no-op", func(t *testing.T) {
		c := NewRedisUsageCache(nil, time.Minute)

		got, err := c.Get(ctx, key)
		assert.NoError(t, err)
		assert.Nil(t, got)
		assert.NoError(t, c.Set(ctx, key, sampleUsage()))
		assert.NoError(t, c.InvalidateCustomer(ctx, "cust-1"))
		assert.Error(t, c.Ping(ctx))
		assert.NoError(t, c.Close())
	})
}

func TestUsageCacheFactory(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled redis uses memory", func(t *testing.T) {
		f := NewUsageCacheFactory(config.RedisConfig{Enabled: false}, time.Minute, WithLogger(zap.NewNop()))
		c, err := f.CreateCache(ctx)
		require.NoError(t, err)
		defer c.Close()
		assert.IsType(t, &InMemoryUsageCache{}, c)
		assert.Equal(t, "memory", c.Backend())
		assert.NoError(t, c.Ping(ctx))
	})

	t.Run("reachable redis", func(t *testing.T) {
		s := miniredis.RunT(t)
		var port int
		_, err := fmt.Sscanf(s.Port(), "%d", &port)
		require.NoError(t, err)

		f := NewUsageCacheFactory(config.RedisConfig{Enabled: true, Host: s.Host(), Port: port}, time.Minute)
		c, err := f.CreateCache(ctx)
		require.NoError(t, err)
		defer c.Close()
		assert.IsType(t, &RedisUsageCache{}, c)
		assert.Equal(t, "redis", c.Backend())
		assert.NoError(t, c.Ping(ctx))

		s.Close()
		assert.Error(t, c.Ping(ctx))
	})

	t.Run("unreachable redis", func(t *testing.T) {
		s := miniredis.RunT(t)
		var port int
		_, err := fmt.Sscanf(s.Port(), "%d", &port)
		require.NoError(t, err)
		s.Close()
		cfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: port}

		c, err := NewUsageCacheFactory(cfg, time.Minute).CreateCache(ctx)
		require.NoError(t, err)
		defer c.Close()
		assert.IsType(t, &InMemoryUsageCache{}, c)

		_, err = NewUsageCacheFactory(cfg, time.Minute, WithInMemoryFallback(false)).CreateCache(ctx)
		assert.ErrorContains(t, err, "redis required")
	})
}
