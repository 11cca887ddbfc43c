package checkin

import (
	"context"
	"time"
)

// Hook observes ledger outcomes. Hooks run synchronously on the calling
// goroutine after the outcome is final and must not block.
type Hook interface {
	OnCheckIn(ctx context.Context, res Result, elapsed time.Duration)
	OnRejected(ctx context.Context, code string, kind Kind, elapsed time.Duration)
}

// HookFuncs adapts plain functions to Hook. Nil fields are skipped.
type HookFuncs struct {
	CheckIn  func(ctx context.Context, res Result, elapsed time.Duration)
	Rejected func(ctx context.Context, code string, kind Kind, elapsed time.Duration)
}

func (h HookFuncs) OnCheckIn(ctx context.Context, res Result, elapsed time.Duration) {
	if h.CheckIn != nil {
		h.CheckIn(ctx, res, elapsed)
	}
}

func (h HookFuncs) OnRejected(ctx context.Context, code string, kind Kind, elapsed time.Duration) {
	if h.Rejected != nil {
		h.Rejected(ctx, code, kind, elapsed)
	}
}
