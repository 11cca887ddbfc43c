package scanner

import "context"

// Source delivers key presses from some input device or relay.
type Source interface {
	Events() <-chan KeystrokeEvent
}

// ChanSource is a Source backed by a plain channel.
type ChanSource chan KeystrokeEvent

// Events implements Source.
func (s ChanSource) Events() <-chan KeystrokeEvent {
	return s
}

// Run feeds every event from src into c until ctx is done or the source
// channel is closed. It returns ctx.Err() on cancellation and nil otherwise.
func Run(ctx context.Context, src Source, c *Classifier) error {
	events := src.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.Feed(ev)
		}
	}
}
