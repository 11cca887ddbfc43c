package ratelimiter_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/kiosk/pkg/ratelimiter"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newBucket(t *testing.T, cfg ratelimiter.Config) (*ratelimiter.Bucket, *clock) {
	t.Helper()

	clk := &clock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := ratelimiter.NewMemoryStore(
		ratelimiter.WithCleanupInterval(0),
		ratelimiter.WithClock(clk.Now),
	)
	t.Cleanup(store.Close)

	b, err := ratelimiter.NewBucket(store, cfg, ratelimiter.WithBucketClock(clk.Now))
	require.NoError(t, err)
	return b, clk
}

func TestNewBucket_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  ratelimiter.Config
		msg  string
	}{
		{"zero capacity", ratelimiter.Config{Capacity: 0, RefillRate: 1, RefillInterval: time.Second}, "capacity must be positive"},
		{"zero refill rate", ratelimiter.Config{Capacity: 1, RefillRate: 0, RefillInterval: time.Second}, "refill rate must be positive"},
		{"zero interval", ratelimiter.Config{Capacity: 1, RefillRate: 1}, "refill interval must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0)), tt.cfg)
			require.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestBucket_FailuresLockOut(t *testing.T) {
	t.Parallel()

	cfg := ratelimiter.Config{Capacity: 3, RefillRate: 1, RefillInterval: 30 * time.Second}
	b, clk := newBucket(t, cfg)
	ctx := context.Background()

	for want := 2; want >= 0; want-- {
		res, err := b.Allow(ctx, "front-desk")
		require.NoError(t, err)
		assert.True(t, res.Allowed())
		assert.Equal(t, want, res.Remaining)
		assert.Equal(t, 3, res.Limit)
	}

	status, err := b.Status(ctx, "front-desk")
	require.NoError(t, err)
	assert.False(t, status.Allowed())
	assert.Equal(t, 30*time.Second, status.RetryAfter())

	denied, err := b.Allow(ctx, "front-desk")
	require.NoError(t, err)
	assert.False(t, denied.Allowed())

	t.Run("other keys are independent", func(t *testing.T) {
		res, err := b.Status(ctx, "side-door")
		require.NoError(t, err)
		assert.True(t, res.Allowed())
		assert.Equal(t, 3, res.Remaining)
	})

	clk.Advance(31 * time.Second)
	status, err = b.Status(ctx, "front-desk")
	require.NoError(t, err)
	assert.True(t, status.Allowed())
	assert.Equal(t, 1, status.Remaining)
	assert.Zero(t, status.RetryAfter())
}

func TestBucket_RefillIsCapped(t *testing.T) {
	t.Parallel()

	b, clk := newBucket(t, ratelimiter.Config{Capacity: 2, RefillRate: 1, RefillInterval: time.Second})
	ctx := context.Background()

	_, err := b.AllowN(ctx, "k", 2)
	require.NoError(t, err)

	clk.Advance(24 * time.Hour)
	res, err := b.Status(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)
}

func TestBucket_DeniedTakeKeepsTokens(t *testing.T) {
	t.Parallel()

	b, _ := newBucket(t, ratelimiter.Config{Capacity: 2, RefillRate: 1, RefillInterval: time.Minute})
	ctx := context.Background()

	res, err := b.AllowN(ctx, "k", 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed())

	res, err = b.Status(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)
}

func TestBucket_Reset(t *testing.T) {
	t.Parallel()

	b, _ := newBucket(t, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour})
	ctx := context.Background()

	_, err := b.Allow(ctx, "k")
	require.NoError(t, err)
	res, err := b.Status(ctx, "k")
	require.NoError(t, err)
	require.False(t, res.Allowed())

	require.NoError(t, b.Reset(ctx, "k"))
	res, err = b.Status(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
}

func TestBucket_InvalidTokenCount(t *testing.T) {
	t.Parallel()

	b, _ := newBucket(t, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour})
	_, err := b.AllowN(context.Background(), "k", 0)
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidTokenCount)
}

type brokenStore struct{}

func (brokenStore) ConsumeTokens(context.Context, string, int, ratelimiter.Config) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("connection refused")
}

func (brokenStore) Reset(context.Context, string) error { return errors.New("connection refused") }

func TestBucket_StoreErrors(t *testing.T) {
	t.Parallel()

	b, err := ratelimiter.NewBucket(brokenStore{}, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Second})
	require.NoError(t, err)

	_, err = b.Allow(context.Background(), "k")
	assert.ErrorIs(t, err, ratelimiter.ErrStoreUnavailable)
	_, err = b.Status(context.Background(), "k")
	assert.ErrorIs(t, err, ratelimiter.ErrStoreUnavailable)
	assert.ErrorIs(t, b.Reset(context.Background(), "k"), ratelimiter.ErrStoreUnavailable)
}

func TestBucket_Concurrent(t *testing.T) {
	t.Parallel()

	b, _ := newBucket(t, ratelimiter.Config{Capacity: 50, RefillRate: 1, RefillInterval: time.Hour})
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := b.Allow(ctx, "k")
			if err == nil && res.Allowed() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}
