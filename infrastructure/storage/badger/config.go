// Package badger provides a BadgerDB-backed settings store.
package badger

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// Config configures the BadgerDB settings store. Settings are small
// latest-value-wins entries, so the defaults keep a single version per key
// and a modest value log.
type Config struct {
	// Dir is the directory to store data in.
	Dir string

	// InMemory uses in-memory storage (useful for testing).
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// ValueLogFileSize sets the size of value log files in bytes.
	ValueLogFileSize int64

	// ValueLogMaxEntries sets the max entries in a value log file.
	ValueLogMaxEntries uint32

	// KeyPrefix is added to all keys, separating settings from other
	// tenants of a shared database directory.
	KeyPrefix string

	// Logger is the logger to use (nil for silent).
	Logger badger.Logger
}

// Option configures the BadgerDB settings store.
type Option func(*Config)

// WithDir sets the data directory.
func WithDir(dir string) Option {
	return func(c *Config) {
		c.Dir = dir
	}
}

// WithInMemory enables in-memory storage.
func WithInMemory() Option {
	return func(c *Config) {
		c.InMemory = true
	}
}

// WithSyncWrites enables synchronous writes.
func WithSyncWrites() Option {
	return func(c *Config) {
		c.SyncWrites = true
	}
}

// WithValueLogFileSize sets the value log file size.
func WithValueLogFileSize(size int64) Option {
	return func(c *Config) {
		c.ValueLogFileSize = size
	}
}

// WithKeyPrefix sets the key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) {
		c.KeyPrefix = prefix
	}
}

// WithLogger sets the logger.
func WithLogger(logger badger.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible defaults for a settings store.
func DefaultConfig() Config {
	return Config{
		ValueLogFileSize:   1 << 28, // 256MB
		ValueLogMaxEntries: 1000000,
	}
}

// Errors
var (
	ErrConnectionFailed = errors.New("badger: connection failed")
)

// openDB opens a BadgerDB database with the given configuration.
func openDB(cfg Config) (*badger.DB, error) {
	opts := badger.DefaultOptions(cfg.Dir)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)

	if cfg.ValueLogFileSize > 0 {
		opts = opts.WithValueLogFileSize(cfg.ValueLogFileSize)
	}

	if cfg.ValueLogMaxEntries > 0 {
		opts = opts.WithValueLogMaxEntries(cfg.ValueLogMaxEntries)
	}

	// One version per key: an upsert replaces the previous value outright.
	opts = opts.WithNumVersionsToKeep(1)

	opts = opts.WithLogger(cfg.Logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	return db, nil
}
