// Package events publishes check-in outcomes to Kafka.
//
// Publisher implements checkin.Hook. The ledger calls it after an outcome
// is final, so publishing never affects a check-in. Messages are keyed by
// service and subscription number, which keeps per-subscription ordering
// inside one partition without putting the code on the wire.
//
// # Usage
//
//	w := events.NewWriter(cfg, log)
//	defer w.Close()
//	pub := events.NewPublisher(w, events.WithLogger(log))
//	ledger := checkin.NewLedger(store, checkin.WithHooks(pub))
//
// The writer is asynchronous: WriteMessages returns once the message is
// queued and delivery errors are reported to the logger.
package events
