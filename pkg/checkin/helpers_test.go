package checkin_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/kiosk/pkg/checkin"
)

// faultyStore wraps a MemoryStore with injectable failures.
type faultyStore struct {
	*checkin.MemoryStore

	findErr        error
	consumptionErr error
	decrementErr   error
	appendErr      error
	// appendFailures is how many appends fail before they start succeeding.
	// Negative means every append fails.
	appendFailures atomic.Int32
	appendCalls    atomic.Int32
	staleFind      bool

	mu          sync.Mutex
	onDecrement func(ctx context.Context)
	appendCtxs  []error
}

func newFaultyStore() *faultyStore {
	return &faultyStore{MemoryStore: checkin.NewMemoryStore()}
}

func (s *faultyStore) FindByCode(ctx context.Context, code string) (*checkin.Subscription, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	sub, err := s.MemoryStore.FindByCode(ctx, code)
	if err == nil && s.staleFind {
		sub.SessionsRemaining = 1
	}
	return sub, err
}

func (s *faultyStore) FindConsumption(ctx context.Context, code, requestID string) (int, bool, error) {
	if s.consumptionErr != nil {
		return 0, false, s.consumptionErr
	}
	return s.MemoryStore.FindConsumption(ctx, code, requestID)
}

func (s *faultyStore) ConditionalDecrement(ctx context.Context, code, requestID string) (int, checkin.DecrementOutcome, error) {
	s.mu.Lock()
	hook := s.onDecrement
	s.mu.Unlock()
	if hook != nil {
		hook(ctx)
	}
	if s.decrementErr != nil {
		return 0, checkin.DecrementRefused, s.decrementErr
	}
	return s.MemoryStore.ConditionalDecrement(ctx, code, requestID)
}

func (s *faultyStore) AppendSessionRecord(ctx context.Context, rec checkin.SessionRecord) (checkin.SessionRecord, error) {
	s.appendCalls.Add(1)
	s.mu.Lock()
	s.appendCtxs = append(s.appendCtxs, ctx.Err())
	s.mu.Unlock()

	if n := s.appendFailures.Load(); n != 0 {
		if n > 0 {
			s.appendFailures.Add(-1)
		}
		return checkin.SessionRecord{}, s.appendErr
	}
	return s.MemoryStore.AppendSessionRecord(ctx, rec)
}

func issue(t *testing.T, store checkin.IssuerStore, sessions int) *checkin.Subscription {
	t.Helper()

	sub, err := checkin.NewIssuer(store, nil, nil).Issue(context.Background(), checkin.IssueParams{
		Service:      checkin.ServicePersonalTraining,
		ClientName:   "Maria Lopez",
		ProviderName: "Coach Dana",
		Sessions:     sessions,
	})
	require.NoError(t, err)
	return sub
}
