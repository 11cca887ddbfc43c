package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store keeps bucket state. ConsumeTokens refills the bucket for the time
// elapsed, then takes tokens only when enough are left. The returned
// remaining is negative when the take was refused; the state is unchanged
// in that case. Consuming zero tokens reports the state.
type Store interface {
	ConsumeTokens(ctx context.Context, key string, tokens int, cfg Config) (remaining int, resetAt time.Time, err error)
	Reset(ctx context.Context, key string) error
}

// Bucket is a token bucket limiter keyed by an arbitrary string.
type Bucket struct {
	store Store
	cfg   Config
	now   func() time.Time
}

type BucketOption func(*Bucket)

// WithBucketClock overrides time.Now for RetryAfter.
func WithBucketClock(now func() time.Time) BucketOption {
	return func(b *Bucket) {
		if now != nil {
			b.now = now
		}
	}
}

func NewBucket(store Store, cfg Config, opts ...BucketOption) (*Bucket, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	b := &Bucket{store: store, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Config returns the bucket configuration.
func (b *Bucket) Config() Config { return b.cfg }

// Allow takes one token for key.
func (b *Bucket) Allow(ctx context.Context, key string) (*Result, error) {
	return b.AllowN(ctx, key, 1)
}

func (b *Bucket) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: must be positive, got %d", ErrInvalidTokenCount, n)
	}
	return b.consume(ctx, key, n)
}

// Status reports the bucket without taking a token. The result is denied
// when the bucket is empty, so a caller can refuse before doing any work.
func (b *Bucket) Status(ctx context.Context, key string) (*Result, error) {
	res, err := b.consume(ctx, key, 0)
	if err != nil {
		return nil, err
	}
	if res.Remaining == 0 {
		res.Remaining = -1
	}
	return res, nil
}

func (b *Bucket) Reset(ctx context.Context, key string) error {
	if err := b.store.Reset(ctx, key); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (b *Bucket) consume(ctx context.Context, key string, n int) (*Result, error) {
	remaining, resetAt, err := b.store.ConsumeTokens(ctx, key, n, b.cfg)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return &Result{
		Limit:     b.cfg.Capacity,
		Remaining: remaining,
		ResetAt:   resetAt,
		now:       b.now(),
	}, nil
}
