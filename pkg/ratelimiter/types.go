package ratelimiter

import (
	"fmt"
	"time"
)

// Config of the token bucket. The defaults allow ten failures in a burst
// and one more every thirty seconds.
type Config struct {
	Capacity       int           `env:"RATELIMIT_FAILED_ATTEMPTS" envDefault:"10"`
	RefillRate     int           `env:"RATELIMIT_REFILL_RATE" envDefault:"1"`
	RefillInterval time.Duration `env:"RATELIMIT_REFILL_INTERVAL" envDefault:"30s"`
}

func (c Config) validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.RefillRate <= 0 {
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, c.RefillRate)
	}
	if c.RefillInterval <= 0 {
		return fmt.Errorf("%w: refill interval must be positive, got %v", ErrInvalidConfig, c.RefillInterval)
	}
	return nil
}

// Result of a bucket operation.
type Result struct {
	Limit     int       // bucket capacity
	Remaining int       // tokens left; negative when the request was denied
	ResetAt   time.Time // next refill
	now       time.Time
}

// Allowed reports whether the request may proceed. Status results are
// allowed while at least one token is left.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter is how long to wait before the next refill, or zero when the
// request was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	if d := r.ResetAt.Sub(r.now); d > 0 {
		return d
	}
	return 0
}
