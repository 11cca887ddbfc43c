// Package mongostore is the MongoDB implementation of checkin.Store and
// checkin.IssuerStore.
//
// The balance is consumed with FindOneAndUpdate filtered on
// sessions_remaining > 0, which MongoDB applies atomically to the single
// document. The same update appends the request id to the document's
// consumed list, and the filter excludes documents that already hold it, so
// a request id consumes at most one session of a code. Session records use
// code and request id as _id, so the primary key index makes appends
// idempotent.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/kiosk/pkg/checkin"
)

const (
	colSubscriptions = "kiosk_subscriptions"
	colRecords       = "kiosk_session_records"
	colCounters      = "kiosk_counters"
)

var (
	_ checkin.Store       = (*Store)(nil)
	_ checkin.IssuerStore = (*Store)(nil)
)

// Store persists subscriptions and session records in MongoDB.
type Store struct {
	subs     *mongo.Collection
	records  *mongo.Collection
	counters *mongo.Collection
	now      func() time.Time
}

func New(db *mongo.Database) *Store {
	return &Store{
		subs:     db.Collection(colSubscriptions),
		records:  db.Collection(colRecords),
		counters: db.Collection(colCounters),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates the secondary indexes. It is safe to call on every boot.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.subs: {
			{
				Keys:    bson.D{{Key: "service", Value: 1}, {Key: "number", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		s.records: {
			{Keys: bson.D{{Key: "subscription_code", Value: 1}, {Key: "occurred_at", Value: 1}}},
		},
	}
	for col, models := range indexes {
		if _, err := col.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongostore: migrate %s indexes: %w", col.Name(), err)
		}
	}
	return nil
}

func (s *Store) FindByCode(ctx context.Context, code string) (*checkin.Subscription, error) {
	var m subscriptionModel
	if err := s.subs.FindOne(ctx, bson.M{"_id": code}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, checkin.ErrNotFound
		}
		return nil, fmt.Errorf("mongostore: find subscription: %w", err)
	}
	return m.toSubscription(), nil
}

func (s *Store) FindConsumption(ctx context.Context, code, requestID string) (int, bool, error) {
	var m subscriptionModel
	err := s.subs.FindOne(ctx, bson.M{"_id": code},
		options.FindOne().SetProjection(bson.M{"consumed": 1}),
	).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("mongostore: find consumption: %w", err)
	}
	for _, c := range m.Consumed {
		if c.RequestID == requestID {
			return c.Remaining, true, nil
		}
	}
	return 0, false, nil
}

func (s *Store) ConditionalDecrement(ctx context.Context, code, requestID string) (int, checkin.DecrementOutcome, error) {
	filter := bson.M{
		"_id":                 code,
		"sessions_remaining":  bson.M{"$gt": 0},
		"consumed.request_id": bson.M{"$ne": requestID},
	}
	// A pipeline update, so the claim can record the balance it left.
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"sessions_remaining": bson.M{"$subtract": bson.A{"$sessions_remaining", 1}},
			"updated_at":         s.now(),
		}}},
		{{Key: "$set", Value: bson.M{
			"consumed": bson.M{"$concatArrays": bson.A{
				bson.M{"$ifNull": bson.A{"$consumed", bson.A{}}},
				bson.A{bson.M{
					"request_id": bson.M{"$literal": requestID},
					"remaining":  "$sessions_remaining",
				}},
			}},
		}}},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"sessions_remaining": 1})

	var m subscriptionModel
	err := s.subs.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	if err == nil {
		return m.SessionsRemaining, checkin.DecrementApplied, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, checkin.DecrementRefused, fmt.Errorf("mongostore: decrement: %w", err)
	}

	prior, found, err := s.FindConsumption(ctx, code, requestID)
	if err != nil {
		return 0, checkin.DecrementRefused, err
	}
	if found {
		return prior, checkin.DecrementReplayed, nil
	}
	return 0, checkin.DecrementRefused, nil
}

func (s *Store) AppendSessionRecord(ctx context.Context, rec checkin.SessionRecord) (checkin.SessionRecord, error) {
	m := toRecordModel(rec)
	_, err := s.records.InsertOne(ctx, m)
	if err == nil {
		return rec, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return checkin.SessionRecord{}, fmt.Errorf("mongostore: append record: %w", err)
	}

	var existing recordModel
	if err := s.records.FindOne(ctx, bson.M{"_id": m.Key}).Decode(&existing); err != nil {
		return checkin.SessionRecord{}, fmt.Errorf("mongostore: find record: %w", err)
	}
	return existing.toRecord(), nil
}

func (s *Store) Exists(ctx context.Context, code string) (bool, error) {
	n, err := s.subs.CountDocuments(ctx, bson.M{"_id": code}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongostore: exists: %w", err)
	}
	return n > 0, nil
}

// CreateSubscription takes the next number from the per-service counter
// before inserting. A duplicate code leaves a gap in the numbering.
func (s *Store) CreateSubscription(ctx context.Context, sub *checkin.Subscription) error {
	number, err := s.nextNumber(ctx, sub.Service)
	if err != nil {
		return err
	}

	now := s.now().Truncate(time.Millisecond)
	m := subscriptionModel{
		Code:              sub.Code,
		Service:           string(sub.Service),
		Number:            number,
		ClientName:        sub.ClientName,
		ProviderName:      sub.ProviderName,
		SessionsPurchased: sub.SessionsPurchased,
		SessionsRemaining: sub.SessionsPurchased,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if _, err := s.subs.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return checkin.ErrDuplicateCode
		}
		return fmt.Errorf("mongostore: create subscription: %w", err)
	}

	sub.Number = number
	sub.SessionsRemaining = sub.SessionsPurchased
	sub.CreatedAt = now
	sub.UpdatedAt = now
	return nil
}

func (s *Store) nextNumber(ctx context.Context, svc checkin.Service) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var c counterModel
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": string(svc)},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("mongostore: next number: %w", err)
	}
	return c.Seq, nil
}

// Records returns the session records of code, oldest first.
func (s *Store) Records(ctx context.Context, code string) ([]checkin.SessionRecord, error) {
	cursor, err := s.records.Find(ctx,
		bson.M{"subscription_code": code},
		options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("mongostore: list records: %w", err)
	}

	var models []recordModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("mongostore: decode records: %w", err)
	}
	records := make([]checkin.SessionRecord, 0, len(models))
	for _, m := range models {
		records = append(records, m.toRecord())
	}
	return records, nil
}
