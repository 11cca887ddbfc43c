package mongostore

import (
	"time"

	"github.com/dmitrymomot/kiosk/pkg/checkin"
)

type subscriptionModel struct {
	Code              string    `bson:"_id"`
	Service           string    `bson:"service"`
	Number            int64     `bson:"number"`
	ClientName        string    `bson:"client_name"`
	ProviderName      string    `bson:"provider_name"`
	SessionsPurchased int       `bson:"sessions_purchased"`
	SessionsRemaining int       `bson:"sessions_remaining"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
	// Consumed holds one entry per request id that took a session, so it
	// never outgrows SessionsPurchased.
	Consumed []consumptionModel `bson:"consumed,omitempty"`
}

type consumptionModel struct {
	RequestID string `bson:"request_id"`
	Remaining int    `bson:"remaining"`
}

func (m *subscriptionModel) toSubscription() *checkin.Subscription {
	return &checkin.Subscription{
		Code:              m.Code,
		Service:           checkin.Service(m.Service),
		Number:            m.Number,
		ClientName:        m.ClientName,
		ProviderName:      m.ProviderName,
		SessionsPurchased: m.SessionsPurchased,
		SessionsRemaining: m.SessionsRemaining,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// Records are keyed by code and request id so a retried append hits the
// _id index.
type recordModel struct {
	Key              string    `bson:"_id"`
	RequestID        string    `bson:"request_id"`
	ID               string    `bson:"record_id"`
	SubscriptionCode string    `bson:"subscription_code"`
	OccurredAt       time.Time `bson:"occurred_at"`
	AttendedBy       string    `bson:"attended_by"`
}

func toRecordModel(rec checkin.SessionRecord) recordModel {
	return recordModel{
		Key:              rec.SubscriptionCode + ":" + rec.RequestID,
		RequestID:        rec.RequestID,
		ID:               rec.ID,
		SubscriptionCode: rec.SubscriptionCode,
		OccurredAt:       rec.OccurredAt,
		AttendedBy:       rec.AttendedBy,
	}
}

func (m recordModel) toRecord() checkin.SessionRecord {
	return checkin.SessionRecord{
		ID:               m.ID,
		SubscriptionCode: m.SubscriptionCode,
		OccurredAt:       m.OccurredAt,
		AttendedBy:       m.AttendedBy,
		RequestID:        m.RequestID,
	}
}

type counterModel struct {
	Service string `bson:"_id"`
	Seq     int64  `bson:"seq"`
}
