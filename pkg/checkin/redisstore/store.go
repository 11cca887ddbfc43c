// Package redisstore is the Redis implementation of checkin.Store and
// checkin.IssuerStore.
//
// Each subscription is a hash. The guarded decrement, the idempotent record
// append and subscription creation are Lua scripts, so each runs atomically
// on the server. Everything a check-in writes lives under keys of its code,
// and the per-request entries are bounded by the sessions purchased.
//
// Keys, relative to the configured prefix:
//
//	sub:<code>       hash with the subscription fields
//	claims:<code>    hash of request id to the balance its decrement left
//	recorded:<code>  hash of request id to its JSON encoded session record
//	records:<code>   list of JSON encoded session records, oldest first
//	seq:<service>    per-service number counter
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/kiosk/pkg/checkin"
)

var (
	_ checkin.Store       = (*Store)(nil)
	_ checkin.IssuerStore = (*Store)(nil)
)

// Store persists subscriptions and session records in Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// New returns a Store. prefix is prepended to every key, e.g. "kiosk:".
func New(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) subKey(code string) string      { return s.prefix + "sub:" + code }
func (s *Store) claimsKey(code string) string   { return s.prefix + "claims:" + code }
func (s *Store) recordedKey(code string) string { return s.prefix + "recorded:" + code }
func (s *Store) recordsKey(code string) string  { return s.prefix + "records:" + code }
func (s *Store) seqKey(svc checkin.Service) string {
	return s.prefix + "seq:" + string(svc)
}

func (s *Store) FindByCode(ctx context.Context, code string) (*checkin.Subscription, error) {
	fields, err := s.client.HGetAll(ctx, s.subKey(code)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, checkin.ErrNotFound
	}
	return decodeSubscription(fields)
}

func (s *Store) FindConsumption(ctx context.Context, code, requestID string) (int, bool, error) {
	remaining, err := s.client.HGet(ctx, s.claimsKey(code), requestID).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return remaining, true, nil
}

// Returns {status, remaining}: 0 refused, 1 applied, 2 replayed.
var decrementScript = redis.NewScript(`
local prior = redis.call('HGET', KEYS[2], ARGV[1])
if prior then
  return {2, tonumber(prior)}
end
local remaining = tonumber(redis.call('HGET', KEYS[1], 'sessions_remaining'))
if remaining == nil or remaining <= 0 then
  return {0, 0}
end
remaining = remaining - 1
redis.call('HSET', KEYS[1], 'sessions_remaining', remaining, 'updated_at', ARGV[2])
redis.call('HSET', KEYS[2], ARGV[1], remaining)
return {1, remaining}
`)

func (s *Store) ConditionalDecrement(ctx context.Context, code, requestID string) (int, checkin.DecrementOutcome, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := decrementScript.Run(ctx, s.client,
		[]string{s.subKey(code), s.claimsKey(code)},
		requestID, now,
	).Int64Slice()
	if err != nil {
		return 0, checkin.DecrementRefused, err
	}
	if len(res) != 2 {
		return 0, checkin.DecrementRefused, ErrCorruptRecord
	}

	switch res[0] {
	case 1:
		return int(res[1]), checkin.DecrementApplied, nil
	case 2:
		return int(res[1]), checkin.DecrementReplayed, nil
	default:
		return 0, checkin.DecrementRefused, nil
	}
}

// Returns the stored record, which is ARGV[2] unless one already existed.
var appendScript = redis.NewScript(`
local existing = redis.call('HGET', KEYS[1], ARGV[1])
if existing then
  return existing
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('RPUSH', KEYS[2], ARGV[2])
return ARGV[2]
`)

func (s *Store) AppendSessionRecord(ctx context.Context, rec checkin.SessionRecord) (checkin.SessionRecord, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return checkin.SessionRecord{}, err
	}
	keys := []string{s.recordedKey(rec.SubscriptionCode), s.recordsKey(rec.SubscriptionCode)}
	raw, err := appendScript.Run(ctx, s.client, keys, rec.RequestID, payload).Text()
	if err != nil {
		return checkin.SessionRecord{}, err
	}

	var stored checkin.SessionRecord
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return checkin.SessionRecord{}, errors.Join(ErrCorruptRecord, err)
	}
	return stored, nil
}

func (s *Store) Exists(ctx context.Context, code string) (bool, error) {
	n, err := s.client.Exists(ctx, s.subKey(code)).Result()
	return n > 0, err
}

// Returns the assigned number, or 0 when the code is taken.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
local number = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1],
  'code', ARGV[1],
  'service', ARGV[2],
  'number', number,
  'client_name', ARGV[3],
  'provider_name', ARGV[4],
  'sessions_purchased', ARGV[5],
  'sessions_remaining', ARGV[5],
  'created_at', ARGV[6],
  'updated_at', ARGV[6])
return number
`)

func (s *Store) CreateSubscription(ctx context.Context, sub *checkin.Subscription) error {
	now := time.Now().UTC()
	number, err := createScript.Run(ctx, s.client,
		[]string{s.subKey(sub.Code), s.seqKey(sub.Service)},
		sub.Code, string(sub.Service), sub.ClientName, sub.ProviderName,
		sub.SessionsPurchased, now.Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return err
	}
	if number == 0 {
		return checkin.ErrDuplicateCode
	}
	sub.Number = number
	sub.SessionsRemaining = sub.SessionsPurchased
	sub.CreatedAt = now
	sub.UpdatedAt = now
	return nil
}

// Records returns the session records of code, oldest first.
func (s *Store) Records(ctx context.Context, code string) ([]checkin.SessionRecord, error) {
	raw, err := s.client.LRange(ctx, s.recordsKey(code), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	records := make([]checkin.SessionRecord, 0, len(raw))
	for _, item := range raw {
		var rec checkin.SessionRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, errors.Join(ErrCorruptRecord, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeSubscription(f map[string]string) (*checkin.Subscription, error) {
	sub := checkin.Subscription{
		Code:         f["code"],
		Service:      checkin.Service(f["service"]),
		ClientName:   f["client_name"],
		ProviderName: f["provider_name"],
	}

	var errs []error
	var err error
	if sub.Number, err = strconv.ParseInt(f["number"], 10, 64); err != nil {
		errs = append(errs, err)
	}
	if sub.SessionsPurchased, err = strconv.Atoi(f["sessions_purchased"]); err != nil {
		errs = append(errs, err)
	}
	if sub.SessionsRemaining, err = strconv.Atoi(f["sessions_remaining"]); err != nil {
		errs = append(errs, err)
	}
	if sub.CreatedAt, err = time.Parse(time.RFC3339Nano, f["created_at"]); err != nil {
		errs = append(errs, err)
	}
	if sub.UpdatedAt, err = time.Parse(time.RFC3339Nano, f["updated_at"]); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(append([]error{ErrCorruptRecord}, errs...)...)
	}
	return &sub, nil
}
