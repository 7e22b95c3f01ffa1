package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCacheReusesUnexpiredToken(t *testing.T) {
	var refreshes int
	cache := NewTokenCache(func(ctx context.Context) (string, time.Duration, error) {
		refreshes++
		return fmt.Sprintf("token-%d", refreshes), time.Hour, nil
	})

	first, err := cache.Get(context.Background())
	require.NoError(t, err)
	second, err := cache.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "token-1", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, refreshes)
}

func TestTokenCacheRefreshesAfterExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var refreshes int
	cache := NewTokenCache(func(ctx context.Context) (string, time.Duration, error) {
		refreshes++
		return fmt.Sprintf("token-%d", refreshes), time.Minute, nil
	}).WithClock(func() time.Time { return now })

	first, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", first)

	// Move past expiry
	now = now.Add(2 * time.Minute)
	second, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", second)
	assert.Equal(t, 2, refreshes)
}

func TestTokenCacheRefreshesInsideExpiryMargin(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var refreshes int
	cache := NewTokenCache(func(ctx context.Context) (string, time.Duration, error) {
		refreshes++
		return fmt.Sprintf("token-%d", refreshes), time.Minute, nil
	}).WithClock(func() time.Time { return now })

	_, err := cache.Get(context.Background())
	require.NoError(t, err)

	// 40s in: 20s of life left, under the 30s margin
	now = now.Add(40 * time.Second)
	token, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)
}

func TestTokenCacheInvalidate(t *testing.T) {
	var refreshes int
	cache := NewTokenCache(func(ctx context.Context) (string, time.Duration, error) {
		refreshes++
		return fmt.Sprintf("token-%d", refreshes), time.Hour, nil
	})

	_, err := cache.Get(context.Background())
	require.NoError(t, err)

	cache.Invalidate()

	token, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)
}

func TestTokenCachePropagatesRefreshError(t *testing.T) {
	cache := NewTokenCache(func(ctx context.Context) (string, time.Duration, error) {
		return "", 0, errors.New("auth failed")
	})

	_, err := cache.Get(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth failed")
}
