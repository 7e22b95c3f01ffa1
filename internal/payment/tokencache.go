package payment

import (
	"context"
	"sync"
	"time"
)

// TokenCache holds a provider client token with its expiry and a refresh
// function. It is injected into adapters rather than held as package state,
// so tests control time and nothing leaks between instances.
type TokenCache struct {
	mu      sync.Mutex
	value   string
	expiry  time.Time
	refresh func(ctx context.Context) (string, time.Duration, error)
	now     func() time.Time
}

// NewTokenCache creates a token cache around a refresh function
func NewTokenCache(refresh func(ctx context.Context) (string, time.Duration, error)) *TokenCache {
	return &TokenCache{
		refresh: refresh,
		now:     time.Now,
	}
}

// WithClock overrides the cache's clock; tests use this to force expiry
func (c *TokenCache) WithClock(now func() time.Time) *TokenCache {
	c.now = now
	return c
}

// Get returns the cached token, refreshing it when absent or expired. A
// 30-second margin keeps a token from expiring mid-request.
func (c *TokenCache) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.value != "" && c.now().Add(30*time.Second).Before(c.expiry) {
		return c.value, nil
	}

	value, ttl, err := c.refresh(ctx)
	if err != nil {
		return "", err
	}
	c.value = value
	c.expiry = c.now().Add(ttl)
	return c.value, nil
}

// Invalidate drops the cached value so the next Get refreshes
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = ""
	c.expiry = time.Time{}
}
