package cache_test

import (
	"context"
	"testing"
	"time"

	"rail-reservation/internal/cache"
	"rail-reservation/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (cache.AvailabilityCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewRedisAvailabilityCache(client, time.Minute), mr
}

var key = model.NewLedgerKey(12951, time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC), model.QuotaTatkal, "2A")

func TestAvailabilityCache_PutGet(t *testing.T) {
	ctx := context.Background()
	c, _ := setupCache(t)

	_, err := c.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	stored, err := c.Put(ctx, key, &model.LedgerRow{Key: key, TotalSeats: 15, AvailableSeats: 12, WaitingCount: 0, Version: 4})
	require.NoError(t, err)
	assert.True(t, stored)

	av, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 15, av.Total)
	assert.Equal(t, 12, av.Available)
	assert.Equal(t, int64(4), av.Version)
	assert.Equal(t, "2026-11-02", av.JourneyDate)
	assert.Equal(t, model.QuotaTatkal, av.Quota)
}

func TestAvailabilityCache_StaleWriteIgnored(t *testing.T) {
	ctx := context.Background()
	c, _ := setupCache(t)

	_, err := c.Put(ctx, key, &model.LedgerRow{Key: key, TotalSeats: 15, AvailableSeats: 3, Version: 9})
	require.NoError(t, err)

	stored, err := c.Put(ctx, key, &model.LedgerRow{Key: key, TotalSeats: 15, AvailableSeats: 10, Version: 7})
	require.NoError(t, err)
	assert.False(t, stored)

	av, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 3, av.Available)
}

func TestAvailabilityCache_TTLAndInvalidate(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)

	_, err := c.Put(ctx, key, &model.LedgerRow{Key: key, TotalSeats: 15, AvailableSeats: 3, Version: 1})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	_, err = c.Put(ctx, key, &model.LedgerRow{Key: key, TotalSeats: 15, AvailableSeats: 3, Version: 2})
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, key))
	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}
