package logger

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/dmitrymomot/kiosk/pkg/subcode"
)

// Group nests attrs under name.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error records err under "error". Nil errors produce an empty attribute.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups the non-nil errs under "errors" keyed by position.
func Errors(errs ...error) slog.Attr {
	attrs := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			attrs = append(attrs, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(attrs) == 0 {
		return slog.Attr{}
	}
	return Group("errors", attrs...)
}

// Code records a subscription code under "code" in masked form.
func Code(code string) slog.Attr {
	return slog.String("code", subcode.Mask(code))
}

// Outcome records a check-in outcome or error kind under "outcome".
func Outcome(outcome string) slog.Attr {
	return slog.String("outcome", outcome)
}

// Terminal records the kiosk terminal id under "terminal".
func Terminal(id string) slog.Attr {
	return slog.String("terminal", id)
}

// Remaining records a post check-in balance under "sessions_remaining".
func Remaining(n int) slog.Attr {
	return slog.Int("sessions_remaining", n)
}

// RequestID records id under "request_id".
func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

// Attempt records a retry attempt number under "attempt".
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// Duration records d under "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
