package checkin

import (
	"time"
)

// Service is the kind of session a subscription pays for.
type Service string

const (
	ServicePersonalTraining Service = "personal_training"
	ServiceNutrition        Service = "nutrition"
	ServicePhysiotherapy    Service = "physiotherapy"
	ServiceGroupClass       Service = "group_class"
)

// Valid reports whether s is one of the known services.
func (s Service) Valid() bool {
	switch s {
	case ServicePersonalTraining, ServiceNutrition, ServicePhysiotherapy, ServiceGroupClass:
		return true
	}
	return false
}

// Subscription is a prepaid bundle of sessions identified by its code.
// SessionsRemaining is the only field that changes after creation.
type Subscription struct {
	Code              string    `json:"code"`
	Service           Service   `json:"service"`
	Number            int64     `json:"number"`
	ClientName        string    `json:"client_name"`
	ProviderName      string    `json:"provider_name"`
	SessionsPurchased int       `json:"sessions_purchased"`
	SessionsRemaining int       `json:"sessions_remaining"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Summary returns the display snapshot of s.
func (s Subscription) Summary() Summary {
	return Summary{
		Code:              s.Code,
		Service:           s.Service,
		Number:            s.Number,
		ClientName:        s.ClientName,
		ProviderName:      s.ProviderName,
		SessionsPurchased: s.SessionsPurchased,
		SessionsRemaining: s.SessionsRemaining,
		CanCheckIn:        s.SessionsRemaining > 0,
	}
}

// SessionRecord is the immutable fact that one session was consumed.
type SessionRecord struct {
	ID               string    `json:"id"`
	SubscriptionCode string    `json:"subscription_code"`
	OccurredAt       time.Time `json:"occurred_at"`
	AttendedBy       string    `json:"attended_by"`
	// RequestID identifies the check-in request. A store keeps at most one
	// record per (SubscriptionCode, RequestID).
	RequestID string `json:"request_id"`
}

// Summary is what a kiosk shows about a subscription.
type Summary struct {
	Code              string  `json:"code"`
	Service           Service `json:"service"`
	Number            int64   `json:"number"`
	ClientName        string  `json:"client_name"`
	ProviderName      string  `json:"provider_name"`
	SessionsPurchased int     `json:"sessions_purchased"`
	SessionsRemaining int     `json:"sessions_remaining"`
	CanCheckIn        bool    `json:"can_check_in"`
}

// withRemaining returns a copy of s with a new balance.
func (s Summary) withRemaining(n int) Summary {
	s.SessionsRemaining = n
	s.CanCheckIn = n > 0
	return s
}

// Result is returned by a successful check-in.
type Result struct {
	Summary Summary       `json:"subscription"`
	Record  SessionRecord `json:"record"`
	// Replayed is set when the request id had already checked in with this
	// code and no further session was consumed.
	Replayed bool `json:"replayed,omitempty"`
}
