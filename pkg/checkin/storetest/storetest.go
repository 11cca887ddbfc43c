// Package storetest is a conformance suite for checkin.Store
// implementations. Every backend runs the same cases, including the
// concurrent last-session race.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/kiosk/pkg/checkin"
	"github.com/dmitrymomot/kiosk/pkg/requestid"
)

// Backend is a store under test.
type Backend interface {
	checkin.Store
	checkin.IssuerStore
}

// Harness gives the suite access to a fresh, empty backend.
type Harness struct {
	Store Backend
	// Records lists the session records stored for code.
	Records func(t *testing.T, code string) []checkin.SessionRecord
}

// Run executes the suite. newHarness is called once per case.
func Run(t *testing.T, newHarness func(t *testing.T) Harness) {
	t.Run("find unknown code", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.Store.FindByCode(context.Background(), strings.Repeat("0", 32))
		assert.ErrorIs(t, err, checkin.ErrNotFound)
	})

	t.Run("create and find", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()

		sub := issue(t, h.Store, checkin.ServicePhysiotherapy, 6)
		assert.Equal(t, int64(1), sub.Number)
		assert.Equal(t, 6, sub.SessionsRemaining)

		got, err := h.Store.FindByCode(ctx, sub.Code)
		require.NoError(t, err)
		assert.Equal(t, sub.Code, got.Code)
		assert.Equal(t, checkin.ServicePhysiotherapy, got.Service)
		assert.Equal(t, "Alex Kim", got.ClientName)
		assert.Equal(t, "Dr. Okafor", got.ProviderName)
		assert.Equal(t, 6, got.SessionsPurchased)
		assert.Equal(t, 6, got.SessionsRemaining)
		assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)

		exists, err := h.Store.Exists(ctx, sub.Code)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = h.Store.Exists(ctx, strings.Repeat("x", 32))
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("duplicate code", func(t *testing.T) {
		h := newHarness(t)
		sub := issue(t, h.Store, checkin.ServiceNutrition, 1)

		err := h.Store.CreateSubscription(context.Background(), &checkin.Subscription{
			Code:              sub.Code,
			Service:           checkin.ServiceNutrition,
			ClientName:        "Someone Else",
			SessionsPurchased: 1,
			SessionsRemaining: 1,
		})
		assert.ErrorIs(t, err, checkin.ErrDuplicateCode)
	})

	t.Run("numbers per service", func(t *testing.T) {
		h := newHarness(t)
		a := issue(t, h.Store, checkin.ServiceGroupClass, 1)
		b := issue(t, h.Store, checkin.ServiceGroupClass, 1)
		c := issue(t, h.Store, checkin.ServiceNutrition, 1)

		assert.Equal(t, int64(1), a.Number)
		assert.Equal(t, int64(2), b.Number)
		assert.Equal(t, int64(1), c.Number)
	})

	t.Run("decrement is guarded and keyed by request id", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		sub := issue(t, h.Store, checkin.ServicePersonalTraining, 2)

		for i, want := range []int{1, 0} {
			remaining, outcome, err := h.Store.ConditionalDecrement(ctx, sub.Code, fmt.Sprintf("req-%d", i))
			require.NoError(t, err)
			require.Equal(t, checkin.DecrementApplied, outcome)
			assert.Equal(t, want, remaining)
		}

		_, outcome, err := h.Store.ConditionalDecrement(ctx, sub.Code, "req-2")
		require.NoError(t, err)
		assert.Equal(t, checkin.DecrementRefused, outcome)

		remaining, outcome, err := h.Store.ConditionalDecrement(ctx, sub.Code, "req-0")
		require.NoError(t, err)
		assert.Equal(t, checkin.DecrementReplayed, outcome)
		assert.Equal(t, 1, remaining)

		got, err := h.Store.FindByCode(ctx, sub.Code)
		require.NoError(t, err)
		assert.Equal(t, 0, got.SessionsRemaining)

		remaining, found, err := h.Store.FindConsumption(ctx, sub.Code, "req-1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, 0, remaining)

		_, found, err = h.Store.FindConsumption(ctx, sub.Code, "req-2")
		require.NoError(t, err)
		assert.False(t, found)

		_, outcome, err = h.Store.ConditionalDecrement(ctx, strings.Repeat("0", 32), "req-0")
		require.NoError(t, err)
		assert.Equal(t, checkin.DecrementRefused, outcome)
	})

	t.Run("request id is scoped to the code", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		a := issue(t, h.Store, checkin.ServicePersonalTraining, 2)
		b := issue(t, h.Store, checkin.ServicePersonalTraining, 2)

		_, outcome, err := h.Store.ConditionalDecrement(ctx, a.Code, "shared")
		require.NoError(t, err)
		require.Equal(t, checkin.DecrementApplied, outcome)

		_, found, err := h.Store.FindConsumption(ctx, b.Code, "shared")
		require.NoError(t, err)
		assert.False(t, found)

		remaining, outcome, err := h.Store.ConditionalDecrement(ctx, b.Code, "shared")
		require.NoError(t, err)
		assert.Equal(t, checkin.DecrementApplied, outcome)
		assert.Equal(t, 1, remaining)
	})

	t.Run("append is idempotent per code and request id", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		sub := issue(t, h.Store, checkin.ServicePersonalTraining, 3)
		other := issue(t, h.Store, checkin.ServicePersonalTraining, 3)

		rec := checkin.SessionRecord{
			ID:               uuid.NewString(),
			SubscriptionCode: sub.Code,
			OccurredAt:       time.Now().UTC().Truncate(time.Millisecond),
			AttendedBy:       checkin.DefaultAttribution,
			RequestID:        "req-" + uuid.NewString(),
		}
		stored, err := h.Store.AppendSessionRecord(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, stored.ID)

		retry := rec
		retry.ID = uuid.NewString()
		retry.AttendedBy = "Front desk"
		stored, err = h.Store.AppendSessionRecord(ctx, retry)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, stored.ID)
		assert.Equal(t, rec.AttendedBy, stored.AttendedBy)
		assert.True(t, rec.OccurredAt.Equal(stored.OccurredAt))

		records := h.Records(t, sub.Code)
		require.Len(t, records, 1)
		assert.Equal(t, rec.ID, records[0].ID)
		assert.Equal(t, rec.RequestID, records[0].RequestID)
		assert.Equal(t, rec.AttendedBy, records[0].AttendedBy)
		assert.True(t, rec.OccurredAt.Equal(records[0].OccurredAt))

		elsewhere := rec
		elsewhere.ID = uuid.NewString()
		elsewhere.SubscriptionCode = other.Code
		stored, err = h.Store.AppendSessionRecord(ctx, elsewhere)
		require.NoError(t, err)
		assert.Equal(t, elsewhere.ID, stored.ID)
		assert.Len(t, h.Records(t, other.Code), 1)
	})

	t.Run("ledger counts down", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		sub := issue(t, h.Store, checkin.ServicePersonalTraining, 3)
		ledger := checkin.NewLedger(h.Store)

		for _, want := range []int{2, 1, 0} {
			res, err := ledger.CheckIn(ctx, sub.Code)
			require.NoError(t, err)
			assert.Equal(t, want, res.Summary.SessionsRemaining)
		}
		_, err := ledger.CheckIn(ctx, sub.Code)
		assert.ErrorIs(t, err, checkin.ErrSessionsExhausted)

		assert.Len(t, h.Records(t, sub.Code), 3)
	})

	t.Run("repeated request id consumes once", func(t *testing.T) {
		h := newHarness(t)
		ctx := requestid.WithContext(context.Background(), "retry-1")
		sub := issue(t, h.Store, checkin.ServicePersonalTraining, 3)
		other := issue(t, h.Store, checkin.ServiceNutrition, 3)
		ledger := checkin.NewLedger(h.Store)

		first, err := ledger.CheckIn(ctx, sub.Code)
		require.NoError(t, err)
		assert.False(t, first.Replayed)

		again, err := ledger.CheckIn(ctx, sub.Code)
		require.NoError(t, err)
		assert.True(t, again.Replayed)
		assert.Equal(t, 2, again.Summary.SessionsRemaining)
		assert.Equal(t, first.Record.ID, again.Record.ID)
		assertBalanced(t, h, sub.Code, 1)

		// The same id on another code is a different check-in.
		res, err := ledger.CheckIn(ctx, other.Code)
		require.NoError(t, err)
		assert.False(t, res.Replayed)
		assertBalanced(t, h, other.Code, 1)
		assertBalanced(t, h, sub.Code, 1)
	})

	t.Run("replay of the last session is not exhausted", func(t *testing.T) {
		h := newHarness(t)
		sub := issue(t, h.Store, checkin.ServiceGroupClass, 1)
		ledger := checkin.NewLedger(h.Store)
		opt := checkin.WithRequestID("last-" + uuid.NewString())

		_, err := ledger.CheckIn(context.Background(), sub.Code, opt)
		require.NoError(t, err)

		res, err := ledger.CheckIn(context.Background(), sub.Code, opt)
		require.NoError(t, err)
		assert.True(t, res.Replayed)
		assert.Equal(t, 0, res.Summary.SessionsRemaining)
		assertBalanced(t, h, sub.Code, 1)
	})

	t.Run("replay writes a record the first attempt lost", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		sub := issue(t, h.Store, checkin.ServicePhysiotherapy, 2)

		// the decrement committed but the caller never got to append
		_, outcome, err := h.Store.ConditionalDecrement(ctx, sub.Code, "interrupted")
		require.NoError(t, err)
		require.Equal(t, checkin.DecrementApplied, outcome)

		res, err := checkin.NewLedger(h.Store).CheckIn(ctx, sub.Code, checkin.WithRequestID("interrupted"))
		require.NoError(t, err)
		assert.True(t, res.Replayed)
		assert.Equal(t, 1, res.Summary.SessionsRemaining)
		assertBalanced(t, h, sub.Code, 1)
	})

	t.Run("concurrent repeats of one request consume once", func(t *testing.T) {
		h := newHarness(t)
		sub := issue(t, h.Store, checkin.ServicePersonalTraining, 3)
		ledger := checkin.NewLedger(h.Store)
		opt := checkin.WithRequestID("dup-" + uuid.NewString())

		var wg sync.WaitGroup
		var fresh atomic.Int32
		ids := make([]string, 12)
		start := make(chan struct{})
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				res, err := ledger.CheckIn(context.Background(), sub.Code, opt)
				if !assert.NoError(t, err) {
					return
				}
				if !res.Replayed {
					fresh.Add(1)
				}
				assert.Equal(t, 2, res.Summary.SessionsRemaining)
				ids[i] = res.Record.ID
			}(i)
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), fresh.Load())
		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
		assertBalanced(t, h, sub.Code, 1)
	})

	t.Run("concurrent check-ins never overspend", func(t *testing.T) {
		h := newHarness(t)
		const purchased, callers = 5, 24
		sub := issue(t, h.Store, checkin.ServiceGroupClass, purchased)
		ledger := checkin.NewLedger(h.Store)

		var wg sync.WaitGroup
		var wins, exhausted atomic.Int32
		start := make(chan struct{})
		for i := range callers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, err := ledger.CheckIn(context.Background(), sub.Code,
					checkin.WithRequestID(fmt.Sprintf("race-%d", i)))
				switch checkin.KindOf(err) {
				case checkin.KindNone:
					wins.Add(1)
				case checkin.KindSessionsExhausted:
					exhausted.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(purchased), wins.Load())
		assert.Equal(t, int32(callers-purchased), exhausted.Load())

		got, err := h.Store.FindByCode(context.Background(), sub.Code)
		require.NoError(t, err)
		records := h.Records(t, sub.Code)
		assert.Equal(t, 0, got.SessionsRemaining)
		assert.Equal(t, got.SessionsPurchased-len(records), got.SessionsRemaining)
	})
}

// assertBalanced checks that code has consumed sessions and that every
// consumed session has exactly one record.
func assertBalanced(t *testing.T, h Harness, code string, consumed int) {
	t.Helper()

	got, err := h.Store.FindByCode(context.Background(), code)
	require.NoError(t, err)
	records := h.Records(t, code)
	assert.Len(t, records, consumed)
	assert.Equal(t, got.SessionsPurchased-consumed, got.SessionsRemaining)
	assert.Equal(t, got.SessionsPurchased-len(records), got.SessionsRemaining)
}

func issue(t *testing.T, store Backend, service checkin.Service, sessions int) *checkin.Subscription {
	t.Helper()

	sub, err := checkin.NewIssuer(store, nil, nil).Issue(context.Background(), checkin.IssueParams{
		Service:      service,
		ClientName:   "Alex Kim",
		ProviderName: "Dr. Okafor",
		Sessions:     sessions,
	})
	require.NoError(t, err)
	return sub
}
