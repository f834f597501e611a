package config

import "errors"

// Errors returned by the configuration loader.
var (
	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidFormat indicates the configuration could not be parsed.
	ErrInvalidFormat = errors.New("invalid config format")

	// ErrUnsupportedFormat indicates an unknown file extension or format.
	ErrUnsupportedFormat = errors.New("unsupported config format")

	// ErrMissingEnvVar indicates a referenced environment variable is not set.
	ErrMissingEnvVar = errors.New("missing environment variable")
)
