package dynamodb

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/opsforge/opsforge/domain/settings"
)

// settingItem is the DynamoDB representation of a configuration entry.
type settingItem struct {
	Agent     string `dynamodbav:"agent"`
	Key       string `dynamodbav:"key"`
	Value     string `dynamodbav:"value"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

// SettingsStore is a DynamoDB-backed implementation of settings.Store.
type SettingsStore struct {
	client       *dynamodb.Client
	tableName    string
	queryTimeout time.Duration
}

// NewSettingsStore creates a settings store from a configured client.
func NewSettingsStore(client *Client) *SettingsStore {
	return &SettingsStore{
		client:       client.DynamoDB(),
		tableName:    client.config.SettingsTableName,
		queryTimeout: client.config.QueryTimeout,
	}
}

// NewSettingsStoreFromClient creates a settings store from a raw DynamoDB
// client, for callers that manage their own AWS configuration.
func NewSettingsStoreFromClient(client *dynamodb.Client, tableName string, queryTimeout time.Duration) *SettingsStore {
	if tableName == "" {
		tableName = DefaultConfig().SettingsTableName
	}
	if queryTimeout == 0 {
		queryTimeout = DefaultConfig().QueryTimeout
	}
	return &SettingsStore{
		client:       client,
		tableName:    tableName,
		queryTimeout: queryTimeout,
	}
}

// Upsert inserts or replaces a configuration entry. PutItem overwrites the
// existing item for the (agent, key) pair, so the last write wins.
func (s *SettingsStore) Upsert(ctx context.Context, key, value, agent string) error {
	if key == "" {
		return settings.ErrEmptyKey
	}
	if agent == "" {
		return settings.ErrEmptyAgent
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	item := settingItem{
		Agent:     agent,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return s.wrapError(err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
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

// Entries returns all settings for an agent, ordered by key. The table's
// range key is the setting key, so the query result is already sorted.
func (s *SettingsStore) Entries(ctx context.Context, agent string) ([]settings.Entry, error) {
	if agent == "" {
		return nil, settings.ErrEmptyAgent
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	keyCond := expression.Key("agent").Equal(expression.Value(agent))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, s.wrapError(err)
	}

	var entries []settings.Entry
	var lastKey map[string]types.AttributeValue

	for {
		result, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, s.wrapError(err)
		}

		for _, raw := range result.Items {
			var item settingItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, s.wrapError(err)
			}
			entries = append(entries, settings.Entry{
				Key:   item.Key,
				Value: item.Value,
				Agent: item.Agent,
			})
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		lastKey = result.LastEvaluatedKey
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

	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"agent": &types.AttributeValueMemberS{Value: agent},
			"key":   &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return s.wrapError(err)
	}
	return nil
}

// Close is a no-op; the AWS SDK client holds no persistent connections that
// need explicit shutdown.
func (s *SettingsStore) Close() error {
	return nil
}

// wrapError wraps AWS errors with domain errors.
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
