// Package checkin is the session ledger behind the kiosk: it turns a scanned
// or typed subscription code into exactly one consumed session.
//
// # Architecture
//
// Ledger.CheckIn runs a fixed protocol against a Store:
//
//  1. normalise the input and reject anything that is not 32 ASCII letters
//     or digits (KindMalformedCode)
//  2. look the subscription up (KindUnknownCode when absent)
//  3. answer a replay: when the request id already consumed a session of
//     this code, skip to step 6 with the balance that consumption left
//  4. refuse early when the balance is already zero (KindSessionsExhausted)
//  5. consume one session with Store.ConditionalDecrement, a single atomic
//     write guarded by "remaining > 0" that also claims the (code, request
//     id) pair; a failed guard is also KindSessionsExhausted
//  6. append a SessionRecord, retried with backoff on a context detached
//     from the caller, idempotent on (code, request id)
//  7. return the display snapshot with the exact post-decrement balance
//
// Step 4 is only a fast path. Correctness under concurrency comes from step
// 5 alone: of two simultaneous requests for the last session exactly one
// decrement succeeds, and of two simultaneous requests carrying the same
// request id exactly one consumes. Stores must never implement the
// decrement as a read followed by a write.
//
// A retried request therefore never consumes twice. If the first attempt
// committed the decrement but lost the record, the retry writes it.
//
// Errors returned by the ledger are *Error values with a closed Kind. Use
// errors.Is with the Err* sentinels, KindOf for switches and IsRetryable to
// decide whether to offer "try again". Kind.Message holds the text shown to
// members, distinct for unknown and exhausted codes.
//
// Issuer creates subscriptions with codes from package subcode, checking for
// collisions through IssuerStore.Exists.
//
// MemoryStore is the in-process Store. Database backed stores live in the
// pgstore, redisstore and mongostore sub-packages.
//
// # Usage
//
//	ledger := checkin.NewLedger(store,
//		checkin.WithLogger(log),
//		checkin.WithHooks(metrics.LedgerHook()),
//	)
//
//	res, err := ledger.CheckIn(ctx, code)
//	switch checkin.KindOf(err) {
//	case checkin.KindNone:
//		fmt.Printf("welcome, %d sessions left\n", res.Summary.SessionsRemaining)
//	case checkin.KindSessionsExhausted:
//		snap, _ := checkin.SnapshotOf(err)
//		fmt.Printf("all %d sessions used\n", snap.SessionsPurchased)
//	default:
//		fmt.Println(checkin.KindOf(err).Message())
//	}
package checkin
