package badger

import (
	"context"
	"errors"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/opsforge/opsforge/domain/settings"
)

// SettingsStore is a BadgerDB-backed implementation of settings.Store.
// Settings are stored one key per entry under
// <prefix>settings/<agent>/<key>.
type SettingsStore struct {
	db        *badger.DB
	keyPrefix string

	mu     sync.Mutex
	closed bool
}

// NewSettingsStore creates a BadgerDB-backed settings store.
func NewSettingsStore(cfg Config, opts ...Option) (*SettingsStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	return &SettingsStore{
		db:        db,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// NewSettingsStoreFromDB creates a settings store from an existing database.
// The caller retains ownership of the database.
func NewSettingsStoreFromDB(db *badger.DB, keyPrefix string) *SettingsStore {
	return &SettingsStore{
		db:        db,
		keyPrefix: keyPrefix,
	}
}

// agentPrefix returns the key prefix for an agent's settings.
func (s *SettingsStore) agentPrefix(agent string) []byte {
	return []byte(s.keyPrefix + "settings/" + agent + "/")
}

// entryKey returns the storage key for a single setting.
func (s *SettingsStore) entryKey(agent, key string) []byte {
	return append(s.agentPrefix(agent), key...)
}

// Upsert inserts or replaces a configuration entry.
func (s *SettingsStore) Upsert(ctx context.Context, key, value, agent string) error {
	if err := s.check(ctx, key, agent); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.entryKey(agent, key), []byte(value))
	})
	if err != nil {
		return errors.Join(ErrConnectionFailed, err)
	}
	return nil
}

// Get returns all settings for an agent. Unknown agents yield an empty map.
func (s *SettingsStore) Get(ctx context.Context, agent string) (map[string]string, error) {
	if err := s.check(ctx, "-", agent); err != nil {
		return nil, err
	}

	values := make(map[string]string)
	prefix := s.agentPrefix(agent)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				values[key] = string(val)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	return values, nil
}

// Entries returns all settings for an agent as entries, ordered by key.
// Badger iterates keys in byte order, so the prefix scan is already sorted.
func (s *SettingsStore) Entries(ctx context.Context, agent string) ([]settings.Entry, error) {
	if err := s.check(ctx, "-", agent); err != nil {
		return nil, err
	}

	var entries []settings.Entry
	prefix := s.agentPrefix(agent)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			entry := settings.Entry{
				Key:   string(item.Key()[len(prefix):]),
				Agent: agent,
			}
			err := item.Value(func(val []byte) error {
				entry.Value = string(val)
				return nil
			})
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	return entries, nil
}

// Delete removes a single setting. Deleting a missing key is not an error.
func (s *SettingsStore) Delete(ctx context.Context, key, agent string) error {
	if err := s.check(ctx, key, agent); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.entryKey(agent, key))
	})
	if err != nil {
		return errors.Join(ErrConnectionFailed, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SettingsStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SettingsStore) check(ctx context.Context, key, agent string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return settings.ErrStoreClosed
	}
	if key == "" {
		return settings.ErrEmptyKey
	}
	if agent == "" {
		return settings.ErrEmptyAgent
	}
	return nil
}

// Ensure SettingsStore implements settings.Store
var _ settings.Store = (*SettingsStore)(nil)
