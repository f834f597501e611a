package redis

import (
	"context"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/opsforge/opsforge/domain/settings"
)

// SettingsStore is a Redis-backed implementation of settings.Store. Each
// agent's configuration lives in a single hash keyed by agent name.
type SettingsStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewSettingsStore creates a new Redis settings store with the given
// configuration.
func NewSettingsStore(cfg Config, opts ...ConfigOption) (*SettingsStore, error) {
	// Apply options
	for _, opt := range opts {
		opt(&cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Join(settings.ErrConnectionFailed, err)
	}

	return &SettingsStore{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// NewSettingsStoreFromClient creates a settings store from an existing Redis
// client.
func NewSettingsStoreFromClient(client *redis.Client, keyPrefix string) *SettingsStore {
	return &SettingsStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// agentKey returns the hash key holding an agent's settings.
func (s *SettingsStore) agentKey(agent string) string {
	return s.keyPrefix + "settings:" + agent
}

// Upsert inserts or replaces a configuration entry. HSET overwrites any
// existing field, so the last write for a (key, agent) pair wins.
func (s *SettingsStore) Upsert(ctx context.Context, key, value, agent string) error {
	if key == "" {
		return settings.ErrEmptyKey
	}
	if agent == "" {
		return settings.ErrEmptyAgent
	}

	if err := s.client.HSet(ctx, s.agentKey(agent), key, value).Err(); err != nil {
		return s.wrapError(err)
	}
	return nil
}

// Get returns all settings for an agent. Unknown agents yield an empty map.
func (s *SettingsStore) Get(ctx context.Context, agent string) (map[string]string, error) {
	if agent == "" {
		return nil, settings.ErrEmptyAgent
	}

	values, err := s.client.HGetAll(ctx, s.agentKey(agent)).Result()
	if err != nil {
		return nil, s.wrapError(err)
	}
	if values == nil {
		values = make(map[string]string)
	}
	return values, nil
}

// Entries returns all settings for an agent as entries, ordered by key.
func (s *SettingsStore) Entries(ctx context.Context, agent string) ([]settings.Entry, error) {
	values, err := s.Get(ctx, agent)
	if err != nil {
		return nil, err
	}

	entries := make([]settings.Entry, 0, len(values))
	for key, value := range values {
		entries = append(entries, settings.Entry{Key: key, Value: value, Agent: agent})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

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

	if err := s.client.HDel(ctx, s.agentKey(agent), key).Err(); err != nil {
		return s.wrapError(err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (s *SettingsStore) Close() error {
	return s.client.Close()
}

// wrapError wraps Redis errors with domain errors.
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
