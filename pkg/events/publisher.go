package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dmitrymomot/kiosk/pkg/checkin"
	"github.com/dmitrymomot/kiosk/pkg/logger"
	"github.com/dmitrymomot/kiosk/pkg/subcode"
)

// MessageWriter is the part of kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

var _ checkin.Hook = (*Publisher)(nil)

// Publisher turns ledger outcomes into Kafka messages.
type Publisher struct {
	w   MessageWriter
	log *slog.Logger
	now func() time.Time
}

type Option func(*Publisher)

func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPublisher(w MessageWriter, opts ...Option) *Publisher {
	p := &Publisher{
		w:   w,
		log: logger.Discard(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(logger.Component("events"))
	return p
}

func (p *Publisher) OnCheckIn(ctx context.Context, res checkin.Result, elapsed time.Duration) {
	p.publish(ctx, subscriptionKey(res.Summary), TypeSessionCheckedIn, newSessionCheckedIn(res, elapsed))
}

func (p *Publisher) OnRejected(ctx context.Context, code string, kind checkin.Kind, elapsed time.Duration) {
	ev := CheckInRejected{
		Type:       TypeCheckInRejected,
		Code:       subcode.Mask(code),
		Reason:     kind.String(),
		OccurredAt: p.now().UTC(),
		DurationMS: elapsed.Milliseconds(),
	}
	p.publish(ctx, []byte(ev.Reason), TypeCheckInRejected, ev)
}

func (p *Publisher) publish(ctx context.Context, key []byte, typ string, payload any) {
	value, err := json.Marshal(payload)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to encode event", slog.String("type", typ), logger.Error(err))
		return
	}

	msg := kafka.Message{
		Key:   key,
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(typ)},
		},
		Time: p.now(),
	}
	if err := p.w.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		p.log.WarnContext(ctx, "event not published",
			slog.String("type", typ),
			logger.Error(errors.Join(ErrPublish, err)),
		)
	}
}
