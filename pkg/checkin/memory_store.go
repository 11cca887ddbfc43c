package checkin

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps subscriptions and session records in process memory.
// It implements Store and IssuerStore and suits tests and single-terminal
// deployments.
type MemoryStore struct {
	mu       sync.Mutex
	subs     map[string]*Subscription
	records  map[string][]SessionRecord
	recorded map[consumptionKey]int // index into records[code]
	consumed map[consumptionKey]int // balance left by the consumption
	numbers  map[Service]int64
	now      func() time.Time
}

type consumptionKey struct {
	code      string
	requestID string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs:     make(map[string]*Subscription),
		records:  make(map[string][]SessionRecord),
		recorded: make(map[consumptionKey]int),
		consumed: make(map[consumptionKey]int),
		numbers:  make(map[Service]int64),
		now:      time.Now,
	}
}

func (s *MemoryStore) FindByCode(_ context.Context, code string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[code]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *MemoryStore) FindConsumption(_ context.Context, code, requestID string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining, ok := s.consumed[consumptionKey{code, requestID}]
	return remaining, ok, nil
}

func (s *MemoryStore) ConditionalDecrement(_ context.Context, code, requestID string) (int, DecrementOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := consumptionKey{code, requestID}
	if remaining, ok := s.consumed[key]; ok {
		return remaining, DecrementReplayed, nil
	}

	sub, ok := s.subs[code]
	if !ok || sub.SessionsRemaining <= 0 {
		return 0, DecrementRefused, nil
	}
	sub.SessionsRemaining--
	sub.UpdatedAt = s.now().UTC()
	s.consumed[key] = sub.SessionsRemaining
	return sub.SessionsRemaining, DecrementApplied, nil
}

func (s *MemoryStore) AppendSessionRecord(_ context.Context, rec SessionRecord) (SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := consumptionKey{rec.SubscriptionCode, rec.RequestID}
	if i, dup := s.recorded[key]; dup {
		return s.records[rec.SubscriptionCode][i], nil
	}
	s.recorded[key] = len(s.records[rec.SubscriptionCode])
	s.records[rec.SubscriptionCode] = append(s.records[rec.SubscriptionCode], rec)
	return rec, nil
}

func (s *MemoryStore) Exists(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.subs[code]
	return ok, nil
}

func (s *MemoryStore) CreateSubscription(_ context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub.Code]; ok {
		return ErrDuplicateCode
	}

	s.numbers[sub.Service]++
	sub.Number = s.numbers[sub.Service]
	now := s.now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	cp := *sub
	s.subs[sub.Code] = &cp
	return nil
}

// Records returns the session records stored for code, oldest first.
func (s *MemoryStore) Records(code string) []SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SessionRecord(nil), s.records[code]...)
}
