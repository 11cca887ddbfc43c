package events

import (
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dmitrymomot/kiosk/pkg/logger"
)

// NewWriter returns an asynchronous writer for cfg.Topic. Delivery errors
// are logged from the completion callback.
func NewWriter(cfg Config, log *slog.Logger) *kafka.Writer {
	if log == nil {
		log = logger.Discard()
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Error("kafka delivery failed",
					logger.Component("events"),
					slog.Int("messages", len(msgs)),
					logger.Error(err),
				)
			}
		},
	}
}
