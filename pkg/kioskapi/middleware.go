package kioskapi

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/dmitrymomot/kiosk/pkg/logger"
)

// TerminalHeader identifies the kiosk terminal sending a request.
const TerminalHeader = "X-Terminal-ID"

var terminalPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

type terminalKey struct{}

// WithTerminal stores a terminal id in ctx.
func WithTerminal(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, terminalKey{}, id)
}

// TerminalFromContext returns the terminal id stored in ctx, or "".
func TerminalFromContext(ctx context.Context) string {
	id, _ := ctx.Value(terminalKey{}).(string)
	return id
}

// TerminalExtractor adds "terminal" to log records whose context has one.
func TerminalExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id := TerminalFromContext(ctx); id != "" {
			return logger.Terminal(id), true
		}
		return slog.Attr{}, false
	}
}

func validTerminal(id string) bool {
	return terminalPattern.MatchString(id)
}

// terminalMiddleware puts a valid X-Terminal-ID header on the context.
// Invalid values are dropped.
func terminalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(TerminalHeader); validTerminal(id) {
			r = r.WithContext(WithTerminal(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
