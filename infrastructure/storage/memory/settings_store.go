// Package memory provides in-memory storage implementations.
package memory

import (
	"context"
	"sync"

	"github.com/opsforge/opsforge/domain/settings"
)

// SettingsStore is an in-memory implementation of settings.Store.
// Useful for testing and single-process installs.
type SettingsStore struct {
	mu     sync.RWMutex
	agents map[string]map[string]string
	closed bool
}

// NewSettingsStore creates a new in-memory settings store.
func NewSettingsStore() *SettingsStore {
	return &SettingsStore{
		agents: make(map[string]map[string]string),
	}
}

// Get returns all entries for an agent as a flat map.
func (s *SettingsStore) Get(ctx context.Context, agent string) (map[string]string, error) {
	if agent == "" {
		return nil, settings.ErrEmptyAgent
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, settings.ErrStoreClosed
	}

	values := make(map[string]string, len(s.agents[agent]))
	for k, v := range s.agents[agent] {
		values[k] = v
	}
	return values, nil
}

// Upsert writes a value with last-write-wins semantics.
func (s *SettingsStore) Upsert(ctx context.Context, key, value, agent string) error {
	if key == "" {
		return settings.ErrEmptyKey
	}
	if agent == "" {
		return settings.ErrEmptyAgent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return settings.ErrStoreClosed
	}

	if s.agents[agent] == nil {
		s.agents[agent] = make(map[string]string)
	}
	s.agents[agent][key] = value
	return nil
}

// Entries returns all entries for an agent.
func (s *SettingsStore) Entries(ctx context.Context, agent string) ([]settings.Entry, error) {
	values, err := s.Get(ctx, agent)
	if err != nil {
		return nil, err
	}

	entries := make([]settings.Entry, 0, len(values))
	for k, v := range values {
		entries = append(entries, settings.Entry{Key: k, Value: v, Agent: agent})
	}
	return entries, nil
}

// Delete removes one entry.
func (s *SettingsStore) Delete(ctx context.Context, key, agent string) error {
	if agent == "" {
		return settings.ErrEmptyAgent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return settings.ErrStoreClosed
	}

	delete(s.agents[agent], key)
	return nil
}

// Close marks the store closed.
func (s *SettingsStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
