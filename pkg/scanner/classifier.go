package scanner

import (
	"sync"
	"time"
)

// Classifier decides whether a run of key presses came from a scanner.
// It is safe for concurrent use; Feed never waits on anything but its own
// short critical section.
type Classifier struct {
	cfg       Config
	onDecoded func(string)
	validate  func(string) bool
	observe   Observer
	afterFunc TimerFunc
	now       func() time.Time

	mu     sync.Mutex
	chars  []rune
	stamps []time.Time
	timer  Timer
	epoch  uint64
	closed bool
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithConfig sets the timing thresholds. Invalid configs are ignored and
// the defaults are kept; call Config.Validate first to surface the error.
func WithConfig(cfg Config) ClassifierOption {
	return func(c *Classifier) {
		if cfg.Validate() == nil {
			c.cfg = cfg
		}
	}
}

// WithValidator adds an acceptance check on the decoded string.
func WithValidator(fn func(string) bool) ClassifierOption {
	return func(c *Classifier) {
		c.validate = fn
	}
}

// WithObserver reports every decision to fn.
func WithObserver(fn Observer) ClassifierOption {
	return func(c *Classifier) {
		c.observe = fn
	}
}

// WithTimerFunc replaces time.AfterFunc for the inactivity timer.
func WithTimerFunc(fn TimerFunc) ClassifierOption {
	return func(c *Classifier) {
		if fn != nil {
			c.afterFunc = fn
		}
	}
}

// WithClock sets the clock used to stamp events that arrive without a time.
func WithClock(now func() time.Time) ClassifierOption {
	return func(c *Classifier) {
		if now != nil {
			c.now = now
		}
	}
}

// New returns a Classifier that calls onDecoded for each accepted burst.
// onDecoded runs on the goroutine that fed the terminator (or never, for
// rejected input) and should hand the code off rather than do slow work.
func New(onDecoded func(string), opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		cfg:       DefaultConfig(),
		onDecoded: onDecoded,
		afterFunc: func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the thresholds in use.
func (c *Classifier) Config() Config {
	return c.cfg
}

// Feed processes one key press. Enter terminates the burst whatever
// modifiers are held; other modified keys are ignored.
func (c *Classifier) Feed(ev KeystrokeEvent) {
	if ev.Time.IsZero() {
		ev.Time = c.now()
	}

	switch {
	case ev.Terminator:
		c.terminate(ev.Time)
	case ev.Printable():
		c.append(ev)
	}
}

func (c *Classifier) append(ev KeystrokeEvent) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	abandoned := c.staleLocked(ev.Time)
	if abandoned {
		c.clearLocked()
	}

	c.chars = append(c.chars, ev.Char)
	c.stamps = append(c.stamps, ev.Time)
	c.armLocked()
	c.mu.Unlock()

	if abandoned {
		c.report(Abandoned)
	}
}

func (c *Classifier) terminate(at time.Time) {
	c.mu.Lock()
	if c.closed || len(c.chars) == 0 {
		c.mu.Unlock()
		return
	}

	if c.staleLocked(at) {
		c.clearLocked()
		c.mu.Unlock()
		c.report(Abandoned)
		return
	}

	code := string(c.chars)
	decision := c.evaluateLocked(code)
	c.clearLocked()
	c.mu.Unlock()

	c.report(decision)
	if decision == Decoded && c.onDecoded != nil {
		c.onDecoded(code)
	}
}

// evaluateLocked applies the burst rules to the current buffer.
func (c *Classifier) evaluateLocked(code string) Decision {
	if len(c.chars) < c.cfg.MinLength {
		return RejectedShort
	}
	for i := 1; i < len(c.stamps); i++ {
		if c.stamps[i].Sub(c.stamps[i-1]) > c.cfg.MaxGap {
			return RejectedGap
		}
	}
	if c.stamps[len(c.stamps)-1].Sub(c.stamps[0]) >= c.cfg.MaxBurst {
		return RejectedBurst
	}
	if c.validate != nil && !c.validate(code) {
		return RejectedInvalid
	}
	return Decoded
}

// staleLocked reports whether the buffer should have expired by at.
func (c *Classifier) staleLocked(at time.Time) bool {
	n := len(c.stamps)
	return n > 0 && at.Sub(c.stamps[n-1]) > c.cfg.Inactivity
}

func (c *Classifier) armLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.epoch++
	epoch := c.epoch
	c.timer = c.afterFunc(c.cfg.Inactivity, func() { c.expire(epoch) })
}

func (c *Classifier) expire(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch || len(c.chars) == 0 {
		c.mu.Unlock()
		return
	}
	c.clearLocked()
	c.mu.Unlock()

	c.report(Abandoned)
}

// clearLocked empties the buffer and invalidates any pending timer callback.
func (c *Classifier) clearLocked() {
	c.chars = c.chars[:0]
	c.stamps = c.stamps[:0]
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.epoch++
}

func (c *Classifier) report(d Decision) {
	if c.observe != nil {
		c.observe(d)
	}
}

// Buffered returns the number of characters waiting for a terminator.
func (c *Classifier) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.chars)
}

// Reset drops any buffered input without reporting a decision.
func (c *Classifier) Reset() {
	c.mu.Lock()
	c.clearLocked()
	c.mu.Unlock()
}

// Close stops the inactivity timer. Events fed after Close are ignored.
func (c *Classifier) Close() {
	c.mu.Lock()
	c.closed = true
	c.clearLocked()
	c.mu.Unlock()
}
