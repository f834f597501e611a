package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opsforge/opsforge/domain/settings"
)

func TestNewSettingsStoreFromClient(t *testing.T) {
	t.Parallel()

	t.Run("applies defaults for zero values", func(t *testing.T) {
		t.Parallel()
		store := NewSettingsStoreFromClient(nil, "", 0)
		if store.tableName != "agent_config" {
			t.Errorf("tableName = %s, want agent_config", store.tableName)
		}
		if store.queryTimeout != 30*time.Second {
			t.Errorf("queryTimeout = %v, want 30s", store.queryTimeout)
		}
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		t.Parallel()
		store := NewSettingsStoreFromClient(nil, "custom_settings", 5*time.Second)
		if store.tableName != "custom_settings" {
			t.Errorf("tableName = %s, want custom_settings", store.tableName)
		}
		if store.queryTimeout != 5*time.Second {
			t.Errorf("queryTimeout = %v, want 5s", store.queryTimeout)
		}
	})
}

func TestSettingsStore_DynamoValidation(t *testing.T) {
	t.Parallel()

	store := NewSettingsStoreFromClient(nil, "agent_config", time.Second)
	ctx := context.Background()

	if err := store.Upsert(ctx, "", "x", "ops"); !errors.Is(err, settings.ErrEmptyKey) {
		t.Errorf("Upsert(empty key) error = %v, want ErrEmptyKey", err)
	}
	if err := store.Upsert(ctx, "k", "x", ""); !errors.Is(err, settings.ErrEmptyAgent) {
		t.Errorf("Upsert(empty agent) error = %v, want ErrEmptyAgent", err)
	}
	if _, err := store.Entries(ctx, ""); !errors.Is(err, settings.ErrEmptyAgent) {
		t.Errorf("Entries(empty agent) error = %v, want ErrEmptyAgent", err)
	}
	if err := store.Delete(ctx, "", "ops"); !errors.Is(err, settings.ErrEmptyKey) {
		t.Errorf("Delete(empty key) error = %v, want ErrEmptyKey", err)
	}
}

func TestSettingsStore_DynamoWrapError(t *testing.T) {
	t.Parallel()

	store := NewSettingsStoreFromClient(nil, "agent_config", time.Second)

	if err := store.wrapError(nil); err != nil {
		t.Errorf("wrapError(nil) = %v, want nil", err)
	}
	if err := store.wrapError(context.DeadlineExceeded); !errors.Is(err, settings.ErrOperationTimeout) {
		t.Error("wrapError(DeadlineExceeded) should wrap as ErrOperationTimeout")
	}
	if err := store.wrapError(errors.New("throttled")); !errors.Is(err, settings.ErrConnectionFailed) {
		t.Error("wrapError() should wrap as ErrConnectionFailed")
	}
}
