// Package pgstore is the PostgreSQL implementation of checkin.Store and
// checkin.IssuerStore.
//
// The balance is consumed with a guarded UPDATE ... RETURNING, so the
// "remaining > 0" check and the write happen in one statement under the row
// lock. The consumption claim for (code, request id) is inserted in the same
// transaction; a conflicting claim rolls the decrement back. CHECK constraints in the schema restate the ledger invariants, so a
// bug elsewhere fails loudly instead of corrupting balances.
//
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, log); err != nil {
//		return err
//	}
//	store := pgstore.New(pool)
package pgstore

import (
	"context"
	"embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/kiosk/pkg/checkin"
	"github.com/dmitrymomot/kiosk/pkg/pg"
)

// Migrations holds the goose migrations for the store schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations.
const MigrationsDir = "migrations"

// DB is the subset of pgxpool.Pool the store uses; pgx.Tx satisfies it too.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// Store persists subscriptions and session records in PostgreSQL.
type Store struct {
	db DB
}

var (
	_ checkin.Store       = (*Store)(nil)
	_ checkin.IssuerStore = (*Store)(nil)
)

func New(db DB) *Store {
	return &Store{db: db}
}

const findByCode = `
SELECT code, service, number, client_name, provider_name,
       sessions_purchased, sessions_remaining, created_at, updated_at
FROM kiosk_subscriptions
WHERE code = $1`

func (s *Store) FindByCode(ctx context.Context, code string) (*checkin.Subscription, error) {
	var sub checkin.Subscription
	err := s.db.QueryRow(ctx, findByCode, code).Scan(
		&sub.Code, &sub.Service, &sub.Number, &sub.ClientName, &sub.ProviderName,
		&sub.SessionsPurchased, &sub.SessionsRemaining, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, checkin.ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

const findConsumption = `
SELECT remaining_after
FROM kiosk_session_consumptions
WHERE subscription_code = $1 AND request_id = $2`

func (s *Store) FindConsumption(ctx context.Context, code, requestID string) (int, bool, error) {
	var remaining int
	err := s.db.QueryRow(ctx, findConsumption, code, requestID).Scan(&remaining)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return remaining, true, nil
}

const conditionalDecrement = `
UPDATE kiosk_subscriptions
SET sessions_remaining = sessions_remaining - 1,
    updated_at = now()
WHERE code = $1 AND sessions_remaining > 0
RETURNING sessions_remaining`

const claimConsumption = `
INSERT INTO kiosk_session_consumptions (subscription_code, request_id, remaining_after)
VALUES ($1, $2, $3)
ON CONFLICT (subscription_code, request_id) DO NOTHING
RETURNING remaining_after`

// errReplayed rolls back a decrement whose request id already holds a claim.
var errReplayed = errors.New("pgstore: request already consumed a session")

func (s *Store) ConditionalDecrement(ctx context.Context, code, requestID string) (int, checkin.DecrementOutcome, error) {
	var (
		remaining int
		outcome   checkin.DecrementOutcome
	)
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		// The UPDATE takes the row lock first, so concurrent claims for one
		// code are serialized behind it.
		err := tx.QueryRow(ctx, conditionalDecrement, code).Scan(&remaining)
		if err != nil {
			if pg.IsNotFoundError(err) {
				outcome = checkin.DecrementRefused
				return nil
			}
			return err
		}
		err = tx.QueryRow(ctx, claimConsumption, code, requestID, remaining).Scan(&remaining)
		if err != nil {
			if pg.IsNotFoundError(err) {
				return errReplayed
			}
			return err
		}
		outcome = checkin.DecrementApplied
		return nil
	})
	if err != nil && !errors.Is(err, errReplayed) {
		return 0, checkin.DecrementRefused, err
	}
	if err == nil && outcome == checkin.DecrementApplied {
		return remaining, outcome, nil
	}

	// Refused or rolled back: a claim may explain why.
	prior, found, err := s.FindConsumption(ctx, code, requestID)
	if err != nil {
		return 0, checkin.DecrementRefused, err
	}
	if found {
		return prior, checkin.DecrementReplayed, nil
	}
	return 0, checkin.DecrementRefused, nil
}

const appendSessionRecord = `
INSERT INTO kiosk_session_records (id, subscription_code, occurred_at, attended_by, request_id)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (subscription_code, request_id) DO NOTHING
RETURNING id::text, subscription_code, occurred_at, attended_by, request_id`

const findSessionRecord = `
SELECT id::text, subscription_code, occurred_at, attended_by, request_id
FROM kiosk_session_records
WHERE subscription_code = $1 AND request_id = $2`

func (s *Store) AppendSessionRecord(ctx context.Context, rec checkin.SessionRecord) (checkin.SessionRecord, error) {
	stored, err := scanRecord(s.db.QueryRow(ctx, appendSessionRecord,
		rec.ID, rec.SubscriptionCode, rec.OccurredAt, rec.AttendedBy, rec.RequestID,
	))
	if err == nil {
		return stored, nil
	}
	if !pg.IsNotFoundError(err) {
		return checkin.SessionRecord{}, err
	}
	return scanRecord(s.db.QueryRow(ctx, findSessionRecord, rec.SubscriptionCode, rec.RequestID))
}

func scanRecord(row pgx.Row) (checkin.SessionRecord, error) {
	var rec checkin.SessionRecord
	err := row.Scan(&rec.ID, &rec.SubscriptionCode, &rec.OccurredAt, &rec.AttendedBy, &rec.RequestID)
	return rec, err
}

func (s *Store) Exists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM kiosk_subscriptions WHERE code = $1)`, code).Scan(&exists)
	return exists, err
}

// The per-service number is taken from the current maximum. Two concurrent
// inserts for one service can pick the same number; the unique constraint
// rejects the loser, which surfaces as a plain error rather than
// ErrDuplicateCode.
const createSubscription = `
INSERT INTO kiosk_subscriptions (
    code, service, number, client_name, provider_name, sessions_purchased, sessions_remaining
)
SELECT $1, $2, COALESCE(MAX(number), 0) + 1, $3, $4, $5, $5
FROM kiosk_subscriptions
WHERE service = $2
RETURNING number, created_at, updated_at`

func (s *Store) CreateSubscription(ctx context.Context, sub *checkin.Subscription) error {
	err := s.db.QueryRow(ctx, createSubscription,
		sub.Code, sub.Service, sub.ClientName, sub.ProviderName, sub.SessionsPurchased,
	).Scan(&sub.Number, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if isCodeConflict(err) {
			return checkin.ErrDuplicateCode
		}
		return err
	}
	sub.SessionsRemaining = sub.SessionsPurchased
	return nil
}

func isCodeConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "kiosk_subscriptions_pkey"
}

// Records returns the session records of code, oldest first.
func (s *Store) Records(ctx context.Context, code string) ([]checkin.SessionRecord, error) {
	rows, err := s.db.Query(ctx, `
SELECT id::text, subscription_code, occurred_at, attended_by, request_id
FROM kiosk_session_records
WHERE subscription_code = $1
ORDER BY occurred_at, id`, code)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (checkin.SessionRecord, error) {
		return scanRecord(row)
	})
}
