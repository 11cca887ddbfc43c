package config

import "errors"

var (
	ErrParsingConfig  = errors.New("config: failed to parse environment variables")
	ErrLoadingEnvFile = errors.New("config: failed to load env file")
	ErrNilPointer     = errors.New("config: nil pointer")
)
