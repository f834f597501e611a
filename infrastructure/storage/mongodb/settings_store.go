package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/opsforge/opsforge/domain/settings"
)

// settingDocument is the MongoDB document representation of a configuration
// entry.
type settingDocument struct {
	Agent     string    `bson:"agent"`
	Key       string    `bson:"key"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// SettingsStore is a MongoDB-backed implementation of settings.Store. One
// document holds one (agent, key) pair; the unique compound index created by
// Client.CreateIndexes keeps pairs distinct.
type SettingsStore struct {
	collection   *mongo.Collection
	queryTimeout time.Duration
}

// NewSettingsStore creates a new MongoDB settings store.
func NewSettingsStore(client *Client, collectionName string) *SettingsStore {
	if collectionName == "" {
		collectionName = "agent_config"
	}
	return &SettingsStore{
		collection:   client.Collection(collectionName),
		queryTimeout: client.config.QueryTimeout,
	}
}

// Upsert inserts or replaces a configuration entry. ReplaceOne with upsert
// makes the last write for a (agent, key) pair win.
func (s *SettingsStore) Upsert(ctx context.Context, key, value, agent string) error {
	if key == "" {
		return settings.ErrEmptyKey
	}
	if agent == "" {
		return settings.ErrEmptyAgent
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	doc := settingDocument{
		Agent:     agent,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}

	filter := bson.M{"agent": agent, "key": key}
	_, err := s.collection.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		// A concurrent upsert for the same pair can race the unique index
		// on first insert; the losing write has already been applied by
		// the winner's replace.
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return s.wrapError(err)
	}

	return nil
}

// Get returns all settings for an agent. Unknown agents yield an empty map.
func (s *SettingsStore) Get(ctx context.Context, agent string) (map[string]string, error) {
	entries, err := s.Entries(ctx, agent)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(entries))
	for _, entry := range entries {
		values[entry.Key] = entry.Value
	}
	return values, nil
}

// Entries returns all settings for an agent, ordered by key.
func (s *SettingsStore) Entries(ctx context.Context, agent string) ([]settings.Entry, error) {
	if agent == "" {
		return nil, settings.ErrEmptyAgent
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	findOpts := options.Find().SetSort(bson.D{{Key: "key", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{"agent": agent}, findOpts)
	if err != nil {
		return nil, s.wrapError(err)
	}
	defer cursor.Close(ctx)

	var entries []settings.Entry
	for cursor.Next(ctx) {
		var doc settingDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, s.wrapError(err)
		}
		entries = append(entries, settings.Entry{
			Key:   doc.Key,
			Value: doc.Value,
			Agent: doc.Agent,
		})
	}
	if err := cursor.Err(); err != nil {
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

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if _, err := s.collection.DeleteOne(ctx, bson.M{"agent": agent, "key": key}); err != nil {
		return s.wrapError(err)
	}
	return nil
}

// Close is a no-op; the owning Client manages the connection.
func (s *SettingsStore) Close() error {
	return nil
}

// wrapError wraps MongoDB errors with domain errors.
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
