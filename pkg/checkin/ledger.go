package checkin

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/kiosk/pkg/logger"
	"github.com/dmitrymomot/kiosk/pkg/requestid"
	"github.com/dmitrymomot/kiosk/pkg/subcode"
)

// DefaultAttribution is recorded as AttendedBy when the caller gives none.
const DefaultAttribution = "self-check-in"

const (
	defaultAppendRetries = 4
	defaultAppendBackoff = 50 * time.Millisecond
)

// Ledger turns a presented code into exactly one consumed session.
type Ledger struct {
	store         Store
	logger        *slog.Logger
	now           func() time.Time
	newID         func() string
	hooks         []Hook
	appendRetries uint64
	appendBackoff time.Duration
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger for check-in outcomes. Nil keeps the discard
// logger.
func WithLogger(l *slog.Logger) Option {
	return func(led *Ledger) {
		if l != nil {
			led.logger = l
		}
	}
}

// WithClock sets the clock used for SessionRecord.OccurredAt.
func WithClock(now func() time.Time) Option {
	return func(led *Ledger) {
		if now != nil {
			led.now = now
		}
	}
}

// WithHooks appends outcome hooks.
func WithHooks(hooks ...Hook) Option {
	return func(led *Ledger) {
		for _, h := range hooks {
			if h != nil {
				led.hooks = append(led.hooks, h)
			}
		}
	}
}

// WithAppendRetry sets how often a failed record append is retried after the
// decrement has committed, and the base of the exponential backoff.
func WithAppendRetry(retries uint64, base time.Duration) Option {
	return func(led *Ledger) {
		led.appendRetries = retries
		if base > 0 {
			led.appendBackoff = base
		}
	}
}

// WithIDGenerator replaces uuid.NewString for session record ids.
func WithIDGenerator(fn func() string) Option {
	return func(led *Ledger) {
		if fn != nil {
			led.newID = fn
		}
	}
}

// NewLedger returns a Ledger over store.
func NewLedger(store Store, opts ...Option) *Ledger {
	led := &Ledger{
		store:         store,
		logger:        logger.Discard(),
		now:           time.Now,
		newID:         uuid.NewString,
		appendRetries: defaultAppendRetries,
		appendBackoff: defaultAppendBackoff,
	}
	for _, opt := range opts {
		opt(led)
	}
	return led
}

type checkInParams struct {
	attribution string
	requestID   string
}

// CheckInOption tunes a single CheckIn call.
type CheckInOption func(*checkInParams)

// WithAttribution records who attended the session. Empty values keep the
// default.
func WithAttribution(by string) CheckInOption {
	return func(p *checkInParams) {
		if by != "" {
			p.attribution = by
		}
	}
}

// WithRequestID sets the idempotency key of the session record.
func WithRequestID(id string) CheckInOption {
	return func(p *checkInParams) {
		if id != "" {
			p.requestID = id
		}
	}
}

// CheckIn consumes one session of the subscription identified by code and
// returns the balance left after it.
//
// The request id (WithRequestID, else the context's, else a fresh one) makes
// the call safe to retry: a code consumes at most one session per request id,
// and a repeated call returns the original result with Replayed set.
//
// Every error is an *Error. A session is consumed only when the result is
// non-nil, or when the error is StoreUnavailable with a Snapshot attached
// (the decrement committed but the record could not be written; retrying
// with the same request id writes it).
func (l *Ledger) CheckIn(ctx context.Context, code string, opts ...CheckInOption) (*Result, error) {
	start := time.Now()

	p := checkInParams{attribution: DefaultAttribution}
	for _, opt := range opts {
		opt(&p)
	}
	if p.requestID == "" {
		p.requestID = requestid.FromContext(ctx)
	}
	if p.requestID == "" {
		p.requestID = uuid.NewString()
	}

	code = subcode.Normalize(code)
	if !subcode.WellFormed(code) {
		return nil, l.reject(ctx, code, start, newError(KindMalformedCode, nil, nil))
	}

	sub, err := l.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, l.reject(ctx, code, start, newError(KindUnknownCode, nil, err))
		}
		return nil, l.reject(ctx, code, start, newError(KindStoreUnavailable, nil, err))
	}
	snapshot := sub.Summary()

	// A replay must be answered before the zero-balance fast path: the
	// original request may have taken the last session.
	prior, replayed, err := l.store.FindConsumption(ctx, code, p.requestID)
	if err != nil {
		return nil, l.reject(ctx, code, start, newError(KindStoreUnavailable, nil, err))
	}

	remaining := prior
	if !replayed {
		if sub.SessionsRemaining <= 0 {
			return nil, l.reject(ctx, code, start, newError(KindSessionsExhausted, &snapshot, nil))
		}

		var outcome DecrementOutcome
		remaining, outcome, err = l.store.ConditionalDecrement(ctx, code, p.requestID)
		if err != nil {
			return nil, l.reject(ctx, code, start, newError(KindStoreUnavailable, nil, err))
		}
		switch outcome {
		case DecrementRefused:
			// Someone else took the last session between the read and the write.
			exhausted := snapshot.withRemaining(0)
			return nil, l.reject(ctx, code, start, newError(KindSessionsExhausted, &exhausted, nil))
		case DecrementReplayed:
			// A concurrent call with the same request id won.
			replayed = true
		}
	}

	// The session is consumed. From here on the caller going away must not
	// stop the record from being written.
	ctx = context.WithoutCancel(ctx)
	rec := SessionRecord{
		ID:               l.newID(),
		SubscriptionCode: code,
		OccurredAt:       l.now().UTC(),
		AttendedBy:       p.attribution,
		RequestID:        p.requestID,
	}
	res := Result{
		Summary:  snapshot.withRemaining(remaining),
		Replayed: replayed,
	}

	stored, err := l.appendRecord(ctx, rec)
	if err != nil {
		l.logger.ErrorContext(ctx, "session consumed but record append failed",
			logger.Code(code),
			logger.RequestID(p.requestID),
			logger.Remaining(remaining),
			logger.Error(err),
		)
		e := newError(KindStoreUnavailable, &res.Summary, err)
		l.notifyRejected(ctx, code, start, e.Kind)
		return nil, e
	}
	res.Record = stored

	if replayed {
		l.logger.InfoContext(ctx, "check-in replayed",
			logger.Code(code),
			logger.RequestID(p.requestID),
			logger.Remaining(remaining),
		)
	} else {
		l.logger.InfoContext(ctx, "session checked in",
			logger.Code(code),
			slog.String("service", string(res.Summary.Service)),
			slog.String("attended_by", p.attribution),
			logger.Remaining(remaining),
		)
	}

	// Hooks see each record once, including one first written by a replay
	// after an earlier append failure.
	if stored.ID == rec.ID {
		elapsed := time.Since(start)
		for _, h := range l.hooks {
			h.OnCheckIn(ctx, res, elapsed)
		}
	}
	return &res, nil
}

func (l *Ledger) appendRecord(ctx context.Context, rec SessionRecord) (SessionRecord, error) {
	var stored SessionRecord
	attempt := 0
	backoff := retry.WithMaxRetries(l.appendRetries, retry.NewExponential(l.appendBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		var err error
		stored, err = l.store.AppendSessionRecord(ctx, rec)
		if err == nil {
			return nil
		}
		l.logger.WarnContext(ctx, "session record append failed",
			logger.Code(rec.SubscriptionCode),
			logger.Attempt(attempt),
			logger.Error(err),
		)
		return retry.RetryableError(err)
	})
	return stored, err
}

// Peek returns the current summary without consuming anything. It never
// stands in for the conditional decrement: a positive balance seen here may
// be gone by the time CheckIn runs.
func (l *Ledger) Peek(ctx context.Context, code string) (*Summary, error) {
	code = subcode.Normalize(code)
	if !subcode.WellFormed(code) {
		return nil, newError(KindMalformedCode, nil, nil)
	}

	sub, err := l.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(KindUnknownCode, nil, err)
		}
		l.logger.ErrorContext(ctx, "subscription lookup failed", logger.Code(code), logger.Error(err))
		return nil, newError(KindStoreUnavailable, nil, err)
	}

	summary := sub.Summary()
	return &summary, nil
}

// reject logs and reports a failed check-in and returns e for chaining.
func (l *Ledger) reject(ctx context.Context, code string, start time.Time, e *Error) *Error {
	attrs := []any{logger.Code(code), logger.Outcome(e.Kind.String())}
	switch e.Kind {
	case KindStoreUnavailable:
		l.logger.ErrorContext(ctx, "check-in failed", append(attrs, logger.Error(e.Err))...)
	case KindMalformedCode:
		l.logger.DebugContext(ctx, "check-in rejected", attrs...)
	default:
		l.logger.WarnContext(ctx, "check-in rejected", attrs...)
	}
	l.notifyRejected(ctx, code, start, e.Kind)
	return e
}

func (l *Ledger) notifyRejected(ctx context.Context, code string, start time.Time, kind Kind) {
	elapsed := time.Since(start)
	for _, h := range l.hooks {
		h.OnRejected(ctx, code, kind, elapsed)
	}
}
