package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/opsforge/opsforge/domain/settings"
)

// SettingsStore is a SQLite implementation of settings.Store.
type SettingsStore struct {
	db        *sql.DB
	tableName string
	ownsDB    bool

	mu     sync.Mutex
	closed bool
}

// NewSettingsStore creates a SQLite-backed settings store.
func NewSettingsStore(cfg Config, opts ...Option) (*SettingsStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	store := &SettingsStore{
		db:        db,
		tableName: cfg.TableName,
		ownsDB:    true,
	}

	if cfg.AutoMigrate {
		if err := store.migrate(context.Background()); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return store, nil
}

// NewSettingsStoreFromDB creates a settings store from an existing database
// connection. The caller retains ownership of the connection.
func NewSettingsStoreFromDB(db *sql.DB, tableName string) (*SettingsStore, error) {
	if db == nil {
		return nil, errors.New("sqlite: db cannot be nil")
	}
	if tableName == "" {
		tableName = DefaultConfig().TableName
	}

	store := &SettingsStore{
		db:        db,
		tableName: tableName,
	}

	if err := store.migrate(context.Background()); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SettingsStore) migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT NOT NULL,
			value TEXT,
			agent TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(key, agent)
		)`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// Upsert inserts or replaces a configuration entry. The last write for a
// (key, agent) pair wins.
func (s *SettingsStore) Upsert(ctx context.Context, key, value, agent string) error {
	if err := s.check(key, agent); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (key, value, agent, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key, agent) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query, key, value, agent); err != nil {
		return fmt.Errorf("sqlite: upsert setting: %w", err)
	}
	return nil
}

// Get returns all settings for an agent. Unknown agents yield an empty map.
func (s *SettingsStore) Get(ctx context.Context, agent string) (map[string]string, error) {
	if err := s.check("-", agent); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT key, value FROM %s WHERE agent = ?`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, agent)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("sqlite: scan setting: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate settings: %w", err)
	}

	return values, nil
}

// Entries returns all settings for an agent as entries, ordered by key.
func (s *SettingsStore) Entries(ctx context.Context, agent string) ([]settings.Entry, error) {
	if err := s.check("-", agent); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT key, value FROM %s WHERE agent = ? ORDER BY key`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, agent)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query settings: %w", err)
	}
	defer rows.Close()

	var entries []settings.Entry
	for rows.Next() {
		entry := settings.Entry{Agent: agent}
		if err := rows.Scan(&entry.Key, &entry.Value); err != nil {
			return nil, fmt.Errorf("sqlite: scan setting: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate settings: %w", err)
	}

	return entries, nil
}

// Delete removes a single setting. Deleting a missing key is not an error.
func (s *SettingsStore) Delete(ctx context.Context, key, agent string) error {
	if err := s.check(key, agent); err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE key = ? AND agent = ?`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query, key, agent); err != nil {
		return fmt.Errorf("sqlite: delete setting: %w", err)
	}
	return nil
}

// Close closes the store. If the store opened its own connection it closes it.
func (s *SettingsStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func (s *SettingsStore) check(key, agent string) error {
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

var _ settings.Store = (*SettingsStore)(nil)
