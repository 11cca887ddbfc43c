package scanner

import "errors"

var (
	ErrInvalidConfig   = errors.New("scanner: invalid configuration")
	ErrProfileNotFound = errors.New("scanner: profile not found")
	ErrProfileParse    = errors.New("scanner: failed to parse profiles")
)
