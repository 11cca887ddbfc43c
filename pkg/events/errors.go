package events

import "errors"

var ErrPublish = errors.New("events: failed to publish message")
