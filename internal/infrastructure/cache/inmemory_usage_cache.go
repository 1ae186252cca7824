package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	billingapp "github.com/squill/backend/internal/application/billing"
	"github.com/squill/backend/internal/domain/billing"
)

const cleanupInterval = time.Minute

type usageEntry struct {
	usage     billing.AggregatedUsage
	expiresAt time.Time
}

// InMemoryUsageCache implements billingapp.UsageCache with a local map.
// Invalidation only reaches the current process, so it suits single
// instance deployments and development.
type InMemoryUsageCache struct {
	mu        sync.RWMutex
	entries   map[string]usageEntry
	ttl       time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryUsageCache creates a cache and starts its expiry loop
func NewInMemoryUsageCache(ttl time.Duration) *InMemoryUsageCache {
	c := &InMemoryUsageCache{
		entries:  make(map[string]usageEntry),
		ttl:      ttl,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	c.wg.Add(1)
	go c.cleanupLoop()

	return c
}

// Get returns (nil, nil) on a miss or an expired entry
func (c *InMemoryUsageCache) Get(_ context.Context, key billingapp.UsageCacheKey) (*billing.AggregatedUsage, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[usageKey(key)]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, nil
	}
	usage := e.usage
	return &usage, nil
}

// Set stores a copy of usage
func (c *InMemoryUsageCache) Set(_ context.Context, key billingapp.UsageCacheKey, usage *billing.AggregatedUsage) error {
	if usage == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[usageKey(key)] = usageEntry{usage: *usage, expiresAt: c.now().Add(c.ttl)}
	return nil
}

// InvalidateCustomer drops every cached window of a customer
func (c *InMemoryUsageCache) InvalidateCustomer(_ context.Context, customerID string) error {
	prefix := customerPrefix(customerID)

	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

// Close stops the expiry loop. Safe to call multiple times.
func (c *InMemoryUsageCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

// Ping always succeeds
func (c *InMemoryUsageCache) Ping(context.Context) error { return nil }

// Backend returns "memory"
func (c *InMemoryUsageCache) Backend() string { return "memory" }

// Size returns the number of stored entries, expired ones included
func (c *InMemoryUsageCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *InMemoryUsageCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *InMemoryUsageCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

var _ billingapp.UsageCache = (*InMemoryUsageCache)(nil)
