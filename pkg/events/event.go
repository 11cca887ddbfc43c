package events

import (
	"strconv"
	"time"

	"github.com/dmitrymomot/kiosk/pkg/checkin"
	"github.com/dmitrymomot/kiosk/pkg/subcode"
)

// Event types.
const (
	TypeSessionCheckedIn = "session.checked_in"
	TypeCheckInRejected  = "checkin.rejected"
)

// SessionCheckedIn is emitted after a session was consumed and recorded.
type SessionCheckedIn struct {
	Type              string          `json:"type"`
	RecordID          string          `json:"record_id"`
	RequestID         string          `json:"request_id"`
	Code              string          `json:"code"`
	Service           checkin.Service `json:"service"`
	Number            int64           `json:"number"`
	SessionsPurchased int             `json:"sessions_purchased"`
	SessionsRemaining int             `json:"sessions_remaining"`
	AttendedBy        string          `json:"attended_by"`
	OccurredAt        time.Time       `json:"occurred_at"`
	DurationMS        int64           `json:"duration_ms"`
}

// CheckInRejected is emitted for every failed check-in.
type CheckInRejected struct {
	Type       string    `json:"type"`
	Code       string    `json:"code"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
	DurationMS int64     `json:"duration_ms"`
}

func newSessionCheckedIn(res checkin.Result, elapsed time.Duration) SessionCheckedIn {
	return SessionCheckedIn{
		Type:              TypeSessionCheckedIn,
		RecordID:          res.Record.ID,
		RequestID:         res.Record.RequestID,
		Code:              subcode.Mask(res.Record.SubscriptionCode),
		Service:           res.Summary.Service,
		Number:            res.Summary.Number,
		SessionsPurchased: res.Summary.SessionsPurchased,
		SessionsRemaining: res.Summary.SessionsRemaining,
		AttendedBy:        res.Record.AttendedBy,
		OccurredAt:        res.Record.OccurredAt,
		DurationMS:        elapsed.Milliseconds(),
	}
}

func subscriptionKey(s checkin.Summary) []byte {
	return []byte(string(s.Service) + ":" + strconv.FormatInt(s.Number, 10))
}
