package scanner_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/kiosk/pkg/scanner"
	"github.com/dmitrymomot/kiosk/pkg/subcode"
)

var t0 = time.Date(2025, 3, 10, 7, 30, 0, 0, time.UTC)

// fakeTimers records scheduled callbacks so tests decide when they fire.
type fakeTimers struct {
	mu      sync.Mutex
	pending []*fakeTimer
}

type fakeTimer struct {
	owner   *fakeTimers
	f       func()
	stopped bool
}

func (ft *fakeTimer) Stop() bool {
	ft.owner.mu.Lock()
	defer ft.owner.mu.Unlock()
	was := !ft.stopped
	ft.stopped = true
	return was
}

func (f *fakeTimers) AfterFunc(_ time.Duration, fn func()) scanner.Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	ft := &fakeTimer{owner: f, f: fn}
	f.pending = append(f.pending, ft)
	return ft
}

// fire runs every timer that has not been stopped.
func (f *fakeTimers) fire() {
	f.mu.Lock()
	var due []func()
	for _, ft := range f.pending {
		if !ft.stopped {
			ft.stopped = true
			due = append(due, ft.f)
		}
	}
	f.pending = nil
	f.mu.Unlock()

	for _, fn := range due {
		fn()
	}
}

type recorder struct {
	mu        sync.Mutex
	decoded   []string
	decisions []scanner.Decision
}

func (r *recorder) onDecoded(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoded = append(r.decoded, code)
}

func (r *recorder) observe(d scanner.Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, d)
}

func (r *recorder) codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.decoded...)
}

func (r *recorder) seen() []scanner.Decision {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]scanner.Decision(nil), r.decisions...)
}

func newClassifier(t *testing.T, opts ...scanner.ClassifierOption) (*scanner.Classifier, *recorder, *fakeTimers) {
	t.Helper()

	rec := &recorder{}
	timers := &fakeTimers{}
	all := append([]scanner.ClassifierOption{
		scanner.WithTimerFunc(timers.AfterFunc),
		scanner.WithObserver(rec.observe),
	}, opts...)

	c := scanner.New(rec.onDecoded, all...)
	t.Cleanup(c.Close)
	return c, rec, timers
}

// typed returns s as key presses step apart starting at start, followed by
// Enter one step after the last character.
func typed(start time.Time, s string, step time.Duration) []scanner.KeystrokeEvent {
	events := make([]scanner.KeystrokeEvent, 0, len(s)+1)
	at := start
	for _, r := range s {
		events = append(events, scanner.KeystrokeEvent{Char: r, Time: at})
		at = at.Add(step)
	}
	return append(events, scanner.KeystrokeEvent{Terminator: true, Time: at})
}

func feedAll(c *scanner.Classifier, events []scanner.KeystrokeEvent) {
	for _, ev := range events {
		c.Feed(ev)
	}
}

func TestClassifier_Bursts(t *testing.T) {
	t.Parallel()

	t.Run("scanner paced burst is decoded once", func(t *testing.T) {
		t.Parallel()

		c, rec, _ := newClassifier(t)
		feedAll(c, typed(t0, "AB12CD34EF56", 10*time.Millisecond))

		assert.Equal(t, []string{"AB12CD34EF56"}, rec.codes())
		assert.Equal(t, []scanner.Decision{scanner.Decoded}, rec.seen())
		assert.Equal(t, 0, c.Buffered())
	})

	t.Run("human typing is ignored", func(t *testing.T) {
		t.Parallel()

		c, rec, _ := newClassifier(t)
		feedAll(c, typed(t0, "AB12CD34EF56", 300*time.Millisecond))

		assert.Empty(t, rec.codes())
		assert.Equal(t, []scanner.Decision{scanner.RejectedGap}, rec.seen())
	})

	t.Run("short burst is ignored", func(t *testing.T) {
		t.Parallel()

		c, rec, _ := newClassifier(t)
		feedAll(c, typed(t0, "AB12", 10*time.Millisecond))

		assert.Empty(t, rec.codes())
		assert.Equal(t, []scanner.Decision{scanner.RejectedShort}, rec.seen())
	})

	t.Run("evenly paced but too long burst is ignored", func(t *testing.T) {
		t.Parallel()

		c, rec, _ := newClassifier(t)
		feedAll(c, typed(t0, "AB12CD34EF56", 100*time.Millisecond))

		assert.Empty(t, rec.codes())
		assert.Equal(t, []scanner.Decision{scanner.RejectedBurst}, rec.seen())
	})

	t.Run("span ends at the last character not the terminator", func(t *testing.T) {
		t.Parallel()

		c, rec, _ := newClassifier(t)
		events := typed(t0, "AB12CD34EF56", 70*time.Millisecond) // 770ms of characters
		events[len(events)-1].Time = events[len(events)-2].Time.Add(300 * time.Millisecond)
		feedAll(c, events)

		assert.Equal(t, []string{"AB12CD34EF56"}, rec.codes())
	})

	t.Run("validator rejects a fast burst that is not a code", func(t *testing.T) {
		t.Parallel()

		c, rec, _ := newClassifier(t, scanner.WithValidator(subcode.ValidateFormat))
		feedAll(c, typed(t0, "AB12CD34EF56", 10*time.Millisecond))

		assert.Empty(t, rec.codes())
		assert.Equal(t, []scanner.Decision{scanner.RejectedInvalid}, rec.seen())
	})

	t.Run("validator accepts a scanned subscription code", func(t *testing.T) {
		t.Parallel()

		code, err := subcode.Generate()
		require.NoError(t, err)

		c, rec, _ := newClassifier(t, scanner.WithValidator(subcode.ValidateFormat))
		feedAll(c, typed(t0, code, 10*time.Millisecond))

		assert.Equal(t, []string{code}, rec.codes())
	})

	t.Run("consecutive bursts are decoded independently", func(t *testing.T) {
		t.Parallel()

		c, rec, _ := newClassifier(t)
		feedAll(c, typed(t0, "FIRST0001", 10*time.Millisecond))
		feedAll(c, typed(t0.Add(time.Second), "SECOND002", 10*time.Millisecond))

		assert.Equal(t, []string{"FIRST0001", "SECOND002"}, rec.codes())
	})

	t.Run("thresholds come from config", func(t *testing.T) {
		t.Parallel()

		cfg := scanner.DefaultConfig()
		cfg.MaxGap = 400 * time.Millisecond
		cfg.MaxBurst = 5 * time.Second
		cfg.Inactivity = time.Second

		c, rec, _ := newClassifier(t, scanner.WithConfig(cfg))
		feedAll(c, typed(t0, "AB12CD34EF56", 300*time.Millisecond))

		assert.Equal(t, []string{"AB12CD34EF56"}, rec.codes())
	})
}

func TestClassifier_IgnoredKeys(t *testing.T) {
	t.Parallel()

	t.Run("modifier combinations and non printable keys do not reset", func(t *testing.T) {
		t.Parallel()

		c, rec, _ := newClassifier(t)
		step := 10 * time.Millisecond
		at := t0
		for i, r := range "AB12CD34EF56" {
			c.Feed(scanner.KeystrokeEvent{Char: r, Time: at})
			if i == 3 {
				c.Feed(scanner.KeystrokeEvent{Char: 'c', Ctrl: true, Time: at})
				c.Feed(scanner.KeystrokeEvent{Time: at}) // shift
				c.Feed(scanner.KeystrokeEvent{Char: '\t', Time: at})
				c.Feed(scanner.KeystrokeEvent{Char: 'x', Meta: true, Time: at})
			}
			at = at.Add(step)
		}
		assert.Equal(t, 12, c.Buffered())

		c.Feed(scanner.KeystrokeEvent{Terminator: true, Time: at})
		assert.Equal(t, []string{"AB12CD34EF56"}, rec.codes())
	})

	t.Run("modified enter still terminates", func(t *testing.T) {
		t.Parallel()

		for _, term := range []scanner.KeystrokeEvent{
			{Terminator: true, Ctrl: true},
			{Terminator: true, Alt: true},
			{Terminator: true, Meta: true},
		} {
			c, rec, _ := newClassifier(t)
			at := t0
			for _, r := range "AB12CD34EF56" {
				c.Feed(scanner.KeystrokeEvent{Char: r, Time: at})
				at = at.Add(10 * time.Millisecond)
			}
			term.Time = at
			c.Feed(term)

			assert.Equal(t, []string{"AB12CD34EF56"}, rec.codes(), "%+v", term)
			assert.Zero(t, c.Buffered())
		}
	})

	t.Run("terminator on empty buffer emits nothing", func(t *testing.T) {
		t.Parallel()

		c, rec, _ := newClassifier(t)
		c.Feed(scanner.KeystrokeEvent{Terminator: true, Time: t0})
		c.Feed(scanner.KeystrokeEvent{Terminator: true, Time: t0.Add(time.Millisecond)})

		assert.Empty(t, rec.codes())
		assert.Empty(t, rec.seen())
	})

	t.Run("events without a time use the clock", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		now := t0
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(5 * time.Millisecond)
			return now
		}

		c, rec, _ := newClassifier(t, scanner.WithClock(clock))
		for _, r := range "SCAN123456" {
			c.Feed(scanner.KeystrokeEvent{Char: r})
		}
		c.Feed(scanner.KeystrokeEvent{Terminator: true})

		assert.Equal(t, []string{"SCAN123456"}, rec.codes())
	})
}

func TestClassifier_Inactivity(t *testing.T) {
	t.Parallel()

	t.Run("timer expiry discards the buffer", func(t *testing.T) {
		t.Parallel()

		c, rec, timers := newClassifier(t)
		events := typed(t0, "AB12CD34EF56", 10*time.Millisecond)
		feedAll(c, events[:len(events)-1])
		require.Equal(t, 12, c.Buffered())

		timers.fire()
		assert.Equal(t, 0, c.Buffered())

		c.Feed(events[len(events)-1])
		assert.Empty(t, rec.codes())
		assert.Equal(t, []scanner.Decision{scanner.Abandoned}, rec.seen())
	})

	t.Run("stopped timers from earlier keys do not fire", func(t *testing.T) {
		t.Parallel()

		c, rec, timers := newClassifier(t)
		feedAll(c, typed(t0, "AB12CD34EF56", 10*time.Millisecond))
		timers.fire()

		assert.Equal(t, []string{"AB12CD34EF56"}, rec.codes())
		assert.Equal(t, []scanner.Decision{scanner.Decoded}, rec.seen())
	})

	t.Run("long pause between keys starts a new buffer", func(t *testing.T) {
		t.Parallel()

		c, rec, _ := newClassifier(t)
		feedAll(c, typed(t0, "xyz", 10*time.Millisecond)[:3])
		feedAll(c, typed(t0.Add(2*time.Second), "AB12CD34", 10*time.Millisecond))

		assert.Equal(t, []string{"AB12CD34"}, rec.codes())
		assert.Equal(t, []scanner.Decision{scanner.Abandoned, scanner.Decoded}, rec.seen())
	})

	t.Run("late terminator after inactivity emits nothing", func(t *testing.T) {
		t.Parallel()

		c, rec, _ := newClassifier(t)
		events := typed(t0, "AB12CD34EF56", 10*time.Millisecond)
		feedAll(c, events[:len(events)-1])
		c.Feed(scanner.KeystrokeEvent{Terminator: true, Time: t0.Add(2 * time.Second)})

		assert.Empty(t, rec.codes())
		assert.Equal(t, []scanner.Decision{scanner.Abandoned}, rec.seen())
	})

	t.Run("real timer clears buffer", func(t *testing.T) {
		t.Parallel()

		cfg := scanner.DefaultConfig()
		cfg.Inactivity = 20 * time.Millisecond

		abandoned := make(chan struct{}, 1)
		c := scanner.New(nil,
			scanner.WithConfig(cfg),
			scanner.WithObserver(func(d scanner.Decision) {
				if d == scanner.Abandoned {
					abandoned <- struct{}{}
				}
			}),
		)
		defer c.Close()

		c.Feed(scanner.KeystrokeEvent{Char: 'A'})

		select {
		case <-abandoned:
		case <-time.After(2 * time.Second):
			t.Fatal("inactivity timer did not fire")
		}
		assert.Equal(t, 0, c.Buffered())
	})
}

func TestClassifier_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("reset drops input silently", func(t *testing.T) {
		t.Parallel()

		c, rec, _ := newClassifier(t)
		events := typed(t0, "AB12CD34EF56", 10*time.Millisecond)
		feedAll(c, events[:5])
		c.Reset()
		c.Feed(events[len(events)-1])

		assert.Empty(t, rec.codes())
		assert.Empty(t, rec.seen())
	})

	t.Run("closed classifier ignores input", func(t *testing.T) {
		t.Parallel()

		c, rec, _ := newClassifier(t)
		c.Close()
		feedAll(c, typed(t0, "AB12CD34EF56", 10*time.Millisecond))

		assert.Empty(t, rec.codes())
		assert.Equal(t, 0, c.Buffered())
	})

	t.Run("invalid config keeps defaults", func(t *testing.T) {
		t.Parallel()

		c := scanner.New(nil, scanner.WithConfig(scanner.Config{MinLength: -1}))
		defer c.Close()
		assert.Equal(t, scanner.DefaultConfig(), c.Config())
	})

	t.Run("concurrent terminals do not interfere", func(t *testing.T) {
		t.Parallel()

		var wg sync.WaitGroup
		results := make([][]string, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				c, rec, _ := newClassifier(t)
				code := strings.Repeat(string(rune('A'+i)), 10)
				feedAll(c, typed(t0, code, 10*time.Millisecond))
				results[i] = rec.codes()
			}(i)
		}
		wg.Wait()

		for i, got := range results {
			assert.Equal(t, []string{strings.Repeat(string(rune('A'+i)), 10)}, got)
		}
	})
}

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("drains source until closed", func(t *testing.T) {
		t.Parallel()

		c, rec, _ := newClassifier(t)
		src := make(scanner.ChanSource)

		done := make(chan error, 1)
		go func() { done <- scanner.Run(context.Background(), src, c) }()

		for _, ev := range typed(t0, "SCANNED123", 10*time.Millisecond) {
			src <- ev
		}
		close(src)

		require.NoError(t, <-done)
		assert.Equal(t, []string{"SCANNED123"}, rec.codes())
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		t.Parallel()

		c, _, _ := newClassifier(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := scanner.Run(ctx, make(scanner.ChanSource), c)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
