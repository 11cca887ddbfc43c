package checkin_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/kiosk/pkg/checkin"
	"github.com/dmitrymomot/kiosk/pkg/subcode"
)

type racingStore struct {
	*checkin.MemoryStore
	duplicates atomic.Int32
	existsErr  error
	alwaysUsed bool
}

func (s *racingStore) Exists(ctx context.Context, code string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	if s.alwaysUsed {
		return true, nil
	}
	return s.MemoryStore.Exists(ctx, code)
}

func (s *racingStore) CreateSubscription(ctx context.Context, sub *checkin.Subscription) error {
	if s.duplicates.Load() > 0 {
		s.duplicates.Add(-1)
		return checkin.ErrDuplicateCode
	}
	return s.MemoryStore.CreateSubscription(ctx, sub)
}

func TestIssuer_Issue(t *testing.T) {
	t.Parallel()

	t.Run("new subscription has a full balance and a valid code", func(t *testing.T) {
		t.Parallel()

		store := checkin.NewMemoryStore()
		sub, err := checkin.NewIssuer(store, nil, nil).Issue(context.Background(), checkin.IssueParams{
			Service:      checkin.ServiceNutrition,
			ClientName:   "  Ana Ruiz ",
			ProviderName: "Dr. Patel",
			Sessions:     8,
		})
		require.NoError(t, err)

		assert.True(t, subcode.ValidateFormat(sub.Code))
		assert.Equal(t, 8, sub.SessionsPurchased)
		assert.Equal(t, 8, sub.SessionsRemaining)
		assert.Equal(t, "Ana Ruiz", sub.ClientName)
		assert.Equal(t, int64(1), sub.Number)
		assert.False(t, sub.CreatedAt.IsZero())

		stored, err := store.FindByCode(context.Background(), sub.Code)
		require.NoError(t, err)
		assert.Equal(t, *sub, *stored)
	})

	t.Run("numbers are sequential per service", func(t *testing.T) {
		t.Parallel()

		store := checkin.NewMemoryStore()
		issuer := checkin.NewIssuer(store, nil, nil)
		ctx := context.Background()

		params := func(s checkin.Service) checkin.IssueParams {
			return checkin.IssueParams{Service: s, ClientName: "Lee", Sessions: 4}
		}

		a, err := issuer.Issue(ctx, params(checkin.ServiceGroupClass))
		require.NoError(t, err)
		b, err := issuer.Issue(ctx, params(checkin.ServiceGroupClass))
		require.NoError(t, err)
		c, err := issuer.Issue(ctx, params(checkin.ServicePhysiotherapy))
		require.NoError(t, err)

		assert.Equal(t, int64(1), a.Number)
		assert.Equal(t, int64(2), b.Number)
		assert.Equal(t, int64(1), c.Number)
		assert.NotEqual(t, a.Code, b.Code)
	})

	t.Run("names are normalised", func(t *testing.T) {
		t.Parallel()

		store := checkin.NewMemoryStore()
		sub, err := checkin.NewIssuer(store, nil, nil).Issue(context.Background(), checkin.IssueParams{
			Service:      checkin.ServiceNutrition,
			ClientName:   "Jose\u0301   Mari\u0301a",
			ProviderName: "\tDr.  Ng ",
			Sessions:     1,
		})
		require.NoError(t, err)
		assert.Equal(t, "Jos\u00e9 Mar\u00eda", sub.ClientName)
		assert.Equal(t, "Dr. Ng", sub.ProviderName)
	})

	t.Run("invalid parameters", func(t *testing.T) {
		t.Parallel()

		issuer := checkin.NewIssuer(checkin.NewMemoryStore(), nil, nil)
		for name, p := range map[string]checkin.IssueParams{
			"unknown service":   {Service: "yoga", ClientName: "x", Sessions: 1},
			"missing client":    {Service: checkin.ServiceNutrition, ClientName: " ", Sessions: 1},
			"negative sessions": {Service: checkin.ServiceNutrition, ClientName: "x", Sessions: -1},
		} {
			_, err := issuer.Issue(context.Background(), p)
			assert.ErrorIs(t, err, checkin.ErrInvalidSubscription, name)
		}
	})

	t.Run("retries when the code is taken at insert", func(t *testing.T) {
		t.Parallel()

		store := &racingStore{MemoryStore: checkin.NewMemoryStore()}
		store.duplicates.Store(2)

		sub, err := checkin.NewIssuer(store, nil, nil).Issue(context.Background(), checkin.IssueParams{
			Service: checkin.ServiceGroupClass, ClientName: "Kim", Sessions: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, int32(0), store.duplicates.Load())
		assert.NotEmpty(t, sub.Code)
	})

	t.Run("gives up after repeated insert conflicts", func(t *testing.T) {
		t.Parallel()

		store := &racingStore{MemoryStore: checkin.NewMemoryStore()}
		store.duplicates.Store(100)

		_, err := checkin.NewIssuer(store, nil, nil).Issue(context.Background(), checkin.IssueParams{
			Service: checkin.ServiceGroupClass, ClientName: "Kim", Sessions: 10,
		})
		assert.ErrorIs(t, err, checkin.ErrDuplicateCode)
	})

	t.Run("exhausted code generation", func(t *testing.T) {
		t.Parallel()

		store := &racingStore{MemoryStore: checkin.NewMemoryStore(), alwaysUsed: true}
		gen := subcode.NewGenerator(subcode.WithMaxAttempts(2))

		_, err := checkin.NewIssuer(store, gen, nil).Issue(context.Background(), checkin.IssueParams{
			Service: checkin.ServiceNutrition, ClientName: "Kim", Sessions: 1,
		})
		assert.ErrorIs(t, err, subcode.ErrExhaustedRetries)
	})

	t.Run("existence check failure", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("db down")
		store := &racingStore{MemoryStore: checkin.NewMemoryStore(), existsErr: boom}

		_, err := checkin.NewIssuer(store, nil, nil).Issue(context.Background(), checkin.IssueParams{
			Service: checkin.ServiceNutrition, ClientName: "Kim", Sessions: 1,
		})
		assert.ErrorIs(t, err, subcode.ErrExistsCheckFailed)
		assert.ErrorIs(t, err, boom)
	})
}
