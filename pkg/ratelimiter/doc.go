// Package ratelimiter throttles repeated failed check-ins.
//
// A kiosk terminal that keeps submitting unknown or malformed codes is
// either misconfigured or being used to guess codes. Each failure takes a
// token from the terminal's bucket; while the bucket is empty the terminal
// is refused before the ledger is consulted. Tokens refill at a fixed rate.
//
// # Architecture
//
// Bucket implements the token bucket arithmetic on top of a Store. Two
// stores are provided: MemoryStore for a single kiosk process and
// RedisStore, a Lua script that shares buckets between kiosks pointing at
// one Redis.
//
// # Usage
//
//	limiter, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), cfg)
//	if err != nil {
//		return err
//	}
//	if res, _ := limiter.Status(ctx, terminal); !res.Allowed() {
//		// refuse, Retry-After: res.RetryAfter()
//	}
//	// after a rejected code:
//	_, _ = limiter.Allow(ctx, terminal)
package ratelimiter
