package checkin

import (
	"errors"
)

// Sentinels for errors.Is. Every error returned by Ledger is an *Error whose
// Is method matches exactly one of the first four.
var (
	ErrMalformedCode     = errors.New("checkin: malformed code")
	ErrUnknownCode       = errors.New("checkin: unknown code")
	ErrSessionsExhausted = errors.New("checkin: sessions exhausted")
	ErrStoreUnavailable  = errors.New("checkin: store unavailable")

	// ErrNotFound is returned by Store.FindByCode when no subscription has the code.
	ErrNotFound = errors.New("checkin: subscription not found")
	// ErrDuplicateCode is returned by IssuerStore.CreateSubscription when the code is taken.
	ErrDuplicateCode = errors.New("checkin: duplicate subscription code")
	// ErrInvalidSubscription is returned by Issuer for bad issue parameters.
	ErrInvalidSubscription = errors.New("checkin: invalid subscription")
)

// Kind classifies ledger failures.
type Kind int

const (
	// KindNone is what KindOf reports for nil or foreign errors.
	KindNone Kind = iota
	KindMalformedCode
	KindUnknownCode
	KindSessionsExhausted
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindMalformedCode:
		return "malformed_code"
	case KindUnknownCode:
		return "unknown_code"
	case KindSessionsExhausted:
		return "sessions_exhausted"
	case KindStoreUnavailable:
		return "store_unavailable"
	default:
		return "none"
	}
}

// Message is the text shown to the member at the kiosk.
func (k Kind) Message() string {
	switch k {
	case KindMalformedCode:
		return "This does not look like a subscription code. Please scan again or check the code you typed."
	case KindUnknownCode:
		return "We could not find a subscription with this code. Please ask at the front desk."
	case KindSessionsExhausted:
		return "All sessions on this subscription have been used. Please renew at the front desk."
	case KindStoreUnavailable:
		return "Check-in is temporarily unavailable. Please try again in a moment."
	default:
		return ""
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindMalformedCode:
		return ErrMalformedCode
	case KindUnknownCode:
		return ErrUnknownCode
	case KindSessionsExhausted:
		return ErrSessionsExhausted
	case KindStoreUnavailable:
		return ErrStoreUnavailable
	default:
		return nil
	}
}

// Error is the error type returned by Ledger.
type Error struct {
	Kind Kind
	// Snapshot is set for SessionsExhausted and for a StoreUnavailable that
	// happened after the session was already consumed.
	Snapshot *Summary
	Err      error
}

func (e *Error) Error() string {
	msg := "checkin: " + e.Kind.String()
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func newError(kind Kind, snapshot *Summary, cause error) *Error {
	return &Error{Kind: kind, Snapshot: snapshot, Err: cause}
}

// KindOf returns the Kind of err, or KindNone if err is not a ledger error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}

// SnapshotOf returns the subscription snapshot attached to err, if any.
func SnapshotOf(err error) (*Summary, bool) {
	var e *Error
	if errors.As(err, &e) && e.Snapshot != nil {
		return e.Snapshot, true
	}
	return nil, false
}

// IsRetryable reports whether the same check-in may succeed if tried again.
func IsRetryable(err error) bool {
	return KindOf(err) == KindStoreUnavailable
}
