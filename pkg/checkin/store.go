package checkin

import "context"

// DecrementOutcome is what ConditionalDecrement did.
type DecrementOutcome int

const (
	// DecrementRefused means the guard failed or no subscription matched.
	DecrementRefused DecrementOutcome = iota
	// DecrementApplied means this call consumed one session.
	DecrementApplied
	// DecrementReplayed means the request id had already consumed a session
	// of this code; the balance is unchanged.
	DecrementReplayed
)

// Store is what the ledger needs from persistence. All balance mutation goes
// through ConditionalDecrement.
//
// A session is consumed on behalf of a request id. The pair (code, request
// id) consumes at most one session, and that pair is also the key of the
// session record, so a retried request finishes the original check-in
// instead of starting a new one.
type Store interface {
	// FindByCode returns ErrNotFound when no subscription has code.
	FindByCode(ctx context.Context, code string) (*Subscription, error)

	// FindConsumption reports whether requestID already consumed a session
	// of code, and the balance that consumption left.
	FindConsumption(ctx context.Context, code, requestID string) (remaining int, found bool, err error)

	// ConditionalDecrement lowers the balance by one and remembers requestID
	// as the consumer, in a single atomic step guarded by remaining > 0 at
	// write time. remaining is the balance after the decrement, or after the
	// earlier one for DecrementReplayed.
	ConditionalDecrement(ctx context.Context, code, requestID string) (remaining int, outcome DecrementOutcome, err error)

	// AppendSessionRecord stores rec and returns the stored record. When a
	// record for (rec.SubscriptionCode, rec.RequestID) exists it is returned
	// unchanged and rec is dropped.
	AppendSessionRecord(ctx context.Context, rec SessionRecord) (SessionRecord, error)
}

// IssuerStore is what the Issuer needs to create subscriptions.
type IssuerStore interface {
	Exists(ctx context.Context, code string) (bool, error)
	// CreateSubscription stores sub, filling in Number and timestamps.
	// It returns ErrDuplicateCode when the code is taken.
	CreateSubscription(ctx context.Context, sub *Subscription) error
}
