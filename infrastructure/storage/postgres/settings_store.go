// Package postgres provides a PostgreSQL-backed settings store.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsforge/opsforge/domain/settings"
)

// SettingsStore is a PostgreSQL-backed implementation of settings.Store.
type SettingsStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewSettingsStore creates a new PostgreSQL settings store.
func NewSettingsStore(pool *pgxpool.Pool, schema string) *SettingsStore {
	if schema == "" {
		schema = "public"
	}
	return &SettingsStore{
		pool:   pool,
		schema: schema,
	}
}

// tableName returns the fully qualified table name.
func (s *SettingsStore) tableName() string {
	return fmt.Sprintf("%s.agent_config", s.schema)
}

// Migrate creates the settings table if it does not exist.
func (s *SettingsStore) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			key TEXT NOT NULL,
			value TEXT,
			agent TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (key, agent)
		)
	`, s.tableName())

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return s.wrapError(err)
	}
	return nil
}

// Upsert inserts or replaces a configuration entry. The last write for a
// (key, agent) pair wins.
func (s *SettingsStore) Upsert(ctx context.Context, key, value, agent string) error {
	if key == "" {
		return settings.ErrEmptyKey
	}
	if agent == "" {
		return settings.ErrEmptyAgent
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (key, value, agent, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key, agent) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = now()
	`, s.tableName())

	if _, err := s.pool.Exec(ctx, query, key, value, agent); err != nil {
		return s.wrapError(err)
	}
	return nil
}

// Get returns all settings for an agent. Unknown agents yield an empty map.
func (s *SettingsStore) Get(ctx context.Context, agent string) (map[string]string, error) {
	if agent == "" {
		return nil, settings.ErrEmptyAgent
	}

	query := fmt.Sprintf(`SELECT key, value FROM %s WHERE agent = $1`, s.tableName())

	rows, err := s.pool.Query(ctx, query, agent)
	if err != nil {
		return nil, s.wrapError(err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, s.wrapError(err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrapError(err)
	}

	return values, nil
}

// Entries returns all settings for an agent as entries, ordered by key.
func (s *SettingsStore) Entries(ctx context.Context, agent string) ([]settings.Entry, error) {
	if agent == "" {
		return nil, settings.ErrEmptyAgent
	}

	query := fmt.Sprintf(`SELECT key, value FROM %s WHERE agent = $1 ORDER BY key`, s.tableName())

	rows, err := s.pool.Query(ctx, query, agent)
	if err != nil {
		return nil, s.wrapError(err)
	}
	defer rows.Close()

	var entries []settings.Entry
	for rows.Next() {
		entry := settings.Entry{Agent: agent}
		if err := rows.Scan(&entry.Key, &entry.Value); err != nil {
			return nil, s.wrapError(err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrapError(err)
	}

	return entries, nil
}

// Delete removes a single setting. Deleting a missing key is not an error.
func (s *SettingsStore) Delete(ctx context.Context, key, agent string) error {
	if key == "" {
		return settings.ErrEmptyKey
	}
	if agent == "" {
		return settings.ErrEmptyAgent
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1 AND agent = $2`, s.tableName())

	if _, err := s.pool.Exec(ctx, query, key, agent); err != nil {
		return s.wrapError(err)
	}
	return nil
}

// Close releases the connection pool.
func (s *SettingsStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// wrapError wraps database errors with domain errors.
func (s *SettingsStore) wrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(settings.ErrOperationTimeout, err)
	}

	return errors.Join(settings.ErrConnectionFailed, err)
}

// Ensure SettingsStore implements settings.Store
var _ settings.Store = (*SettingsStore)(nil)
