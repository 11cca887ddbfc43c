package scanner

import (
	"fmt"
	"time"
	"unicode"
)

// KeystrokeEvent is a single key press as seen by the terminal.
type KeystrokeEvent struct {
	// Char is the character the key produced, zero for keys without one.
	Char rune
	// Time is when the key was pressed. A zero value is replaced with the
	// classifier clock on Feed.
	Time time.Time
	// Terminator is set for Enter.
	Terminator bool

	Ctrl bool
	Alt  bool
	Meta bool
}

// Modified reports whether a Ctrl, Alt or Meta modifier was held.
func (e KeystrokeEvent) Modified() bool {
	return e.Ctrl || e.Alt || e.Meta
}

// Printable reports whether the event carries a single printable character
// that belongs in a scanned code.
func (e KeystrokeEvent) Printable() bool {
	if e.Terminator || e.Modified() || e.Char == 0 {
		return false
	}
	return unicode.IsPrint(e.Char)
}

// Config holds the timing thresholds of the classifier.
type Config struct {
	// MinLength is the minimum number of characters in a burst.
	MinLength int `env:"SCANNER_MIN_LENGTH" envDefault:"6" yaml:"min_length"`
	// MaxGap is the largest allowed pause between two consecutive characters.
	MaxGap time.Duration `env:"SCANNER_MAX_GAP" envDefault:"150ms" yaml:"max_gap"`
	// MaxBurst is the exclusive upper bound for first-to-last character time.
	MaxBurst time.Duration `env:"SCANNER_MAX_BURST" envDefault:"800ms" yaml:"max_burst"`
	// Inactivity discards a buffer that has not grown for this long.
	Inactivity time.Duration `env:"SCANNER_INACTIVITY" envDefault:"500ms" yaml:"inactivity"`
}

// DefaultConfig returns thresholds that suit common keyboard-wedge scanners.
func DefaultConfig() Config {
	return Config{
		MinLength:  6,
		MaxGap:     150 * time.Millisecond,
		MaxBurst:   800 * time.Millisecond,
		Inactivity: 500 * time.Millisecond,
	}
}

// Validate checks that every threshold is positive.
func (c Config) Validate() error {
	switch {
	case c.MinLength <= 0:
		return fmt.Errorf("%w: min length must be positive, got %d", ErrInvalidConfig, c.MinLength)
	case c.MaxGap <= 0:
		return fmt.Errorf("%w: max gap must be positive, got %s", ErrInvalidConfig, c.MaxGap)
	case c.MaxBurst <= 0:
		return fmt.Errorf("%w: max burst must be positive, got %s", ErrInvalidConfig, c.MaxBurst)
	case c.Inactivity <= 0:
		return fmt.Errorf("%w: inactivity must be positive, got %s", ErrInvalidConfig, c.Inactivity)
	}
	return nil
}

// Decision is the outcome of a classified burst.
type Decision int

const (
	Decoded Decision = iota
	RejectedShort
	RejectedGap
	RejectedBurst
	RejectedInvalid
	Abandoned
)

func (d Decision) String() string {
	switch d {
	case Decoded:
		return "decoded"
	case RejectedShort:
		return "rejected_short"
	case RejectedGap:
		return "rejected_gap"
	case RejectedBurst:
		return "rejected_burst"
	case RejectedInvalid:
		return "rejected_invalid"
	case Abandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Observer is told about every decision the classifier makes.
// It is called without the classifier lock held and must not block.
type Observer func(d Decision)

// Timer is the part of *time.Timer the classifier needs.
type Timer interface {
	Stop() bool
}

// TimerFunc schedules f after d. time.AfterFunc is the default.
type TimerFunc func(d time.Duration, f func()) Timer
