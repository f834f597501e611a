package settings

import "errors"

// Domain errors for the settings store.
var (
	// ErrEmptyKey indicates an upsert with an empty key.
	ErrEmptyKey = errors.New("setting key cannot be empty")

	// ErrEmptyAgent indicates an operation with an empty agent name.
	ErrEmptyAgent = errors.New("agent name cannot be empty")

	// ErrStoreClosed indicates the store was used after Close.
	ErrStoreClosed = errors.New("settings store is closed")

	// ErrConnectionFailed indicates the backing store is unreachable.
	ErrConnectionFailed = errors.New("settings store connection failed")

	// ErrOperationTimeout indicates a store operation exceeded its deadline.
	ErrOperationTimeout = errors.New("settings store operation timeout")
)
