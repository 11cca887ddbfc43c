package redisstore

import "errors"

// ErrCorruptRecord is returned when a stored hash or record cannot be decoded.
var ErrCorruptRecord = errors.New("redisstore: corrupt record")
