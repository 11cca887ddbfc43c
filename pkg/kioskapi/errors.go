package kioskapi

import "errors"

var (
	ErrInvalidJSON       = errors.New("kioskapi: invalid JSON")
	ErrUnsupportedMedia  = errors.New("kioskapi: unsupported media type")
	ErrInvalidTerminal   = errors.New("kioskapi: invalid terminal id")
	ErrTooManyTerminals  = errors.New("kioskapi: too many terminals")
	ErrTooManyKeystrokes = errors.New("kioskapi: too many keystrokes in one request")
)
