package subcode

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
)

const (
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	numerals = "0123456789"

	// DefaultMaxAttempts bounds GenerateUnique.
	DefaultMaxAttempts = 10
)

// ExistsFunc reports whether a code is already taken.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Generator produces subscription codes. It is safe for concurrent use as
// long as its entropy source is.
type Generator struct {
	entropy     io.Reader
	maxAttempts int
	logger      *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithEntropy replaces the random source. Only tests should need this; the
// default is crypto/rand.Reader.
func WithEntropy(r io.Reader) Option {
	return func(g *Generator) {
		if r != nil {
			g.entropy = r
		}
	}
}

// WithMaxAttempts sets how many codes GenerateUnique tries before failing.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithLogger reports collisions and exhausted retries to l.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGenerator returns a Generator backed by crypto/rand unless overridden.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		entropy:     rand.Reader,
		maxAttempts: DefaultMaxAttempts,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a fresh code satisfying ValidateFormat.
func (g *Generator) Generate() (string, error) {
	letterBytes, err := g.read(MinLetters)
	if err != nil {
		return "", err
	}
	digitBytes, err := g.read(MinDigits)
	if err != nil {
		return "", err
	}
	shuffleBytes, err := g.read(Length)
	if err != nil {
		return "", err
	}

	code := make([]byte, 0, Length)
	for _, b := range letterBytes {
		code = append(code, alphabet[int(b)%len(alphabet)])
	}
	for _, b := range digitBytes {
		code = append(code, numerals[int(b)%len(numerals)])
	}

	// Fisher–Yates, one dedicated byte per position.
	for i := len(code) - 1; i > 0; i-- {
		j := int(shuffleBytes[i]) % (i + 1)
		code[i], code[j] = code[j], code[i]
	}

	return string(code), nil
}

// GenerateUnique generates codes until exists reports one as free, up to the
// configured attempt bound.
func (g *Generator) GenerateUnique(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code, err := g.Generate()
		if err != nil {
			return "", err
		}

		taken, err := exists(ctx, code)
		if err != nil {
			return "", errors.Join(ErrExistsCheckFailed, err)
		}
		if !taken {
			return code, nil
		}

		g.logger.WarnContext(ctx, "subscription code collision",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", g.maxAttempts),
		)
	}

	g.logger.ErrorContext(ctx, "could not generate a unique subscription code",
		slog.Int("attempts", g.maxAttempts),
	)
	return "", ErrExhaustedRetries
}

func (g *Generator) read(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(g.entropy, buf); err != nil {
		return nil, errors.Join(ErrEntropy, err)
	}
	return buf, nil
}

var defaultGenerator = NewGenerator()

// Generate returns a fresh code from the default crypto/rand backed generator.
func Generate() (string, error) {
	return defaultGenerator.Generate()
}

// GenerateUnique is Generator.GenerateUnique on the default generator.
func GenerateUnique(ctx context.Context, exists ExistsFunc) (string, error) {
	return defaultGenerator.GenerateUnique(ctx, exists)
}
