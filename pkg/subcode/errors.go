package subcode

import "errors"

var (
	// ErrExhaustedRetries is returned when no unique code was found within the attempt bound.
	ErrExhaustedRetries = errors.New("subcode: exhausted retries generating a unique code")

	// ErrExistsCheckFailed wraps an error returned by the existence check.
	ErrExistsCheckFailed = errors.New("subcode: existence check failed")

	// ErrEntropy is returned when the random source cannot be read.
	ErrEntropy = errors.New("subcode: failed to read random bytes")
)
