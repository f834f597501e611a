package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/opsforge/opsforge/domain/settings"
)

func TestNewSettingsStore(t *testing.T) {
	t.Parallel()

	t.Run("creates store with default schema", func(t *testing.T) {
		t.Parallel()
		store := NewSettingsStore(nil, "")
		if store.schema != "public" {
			t.Errorf("schema = %s, want public", store.schema)
		}
	})

	t.Run("creates store with custom schema", func(t *testing.T) {
		t.Parallel()
		store := NewSettingsStore(nil, "facade")
		if store.schema != "facade" {
			t.Errorf("schema = %s, want facade", store.schema)
		}
	})
}

func TestSettingsStore_tableName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		schema   string
		expected string
	}{
		{"default schema", "public", "public.agent_config"},
		{"custom schema", "facade", "facade.agent_config"},
		{"empty schema defaults to public", "", "public.agent_config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := NewSettingsStore(nil, tt.schema)
			if got := store.tableName(); got != tt.expected {
				t.Errorf("tableName() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestSettingsStore_Validation(t *testing.T) {
	t.Parallel()

	store := NewSettingsStore(nil, "public")
	ctx := context.Background()

	if err := store.Upsert(ctx, "", "x", "ops"); !errors.Is(err, settings.ErrEmptyKey) {
		t.Errorf("Upsert(empty key) error = %v, want ErrEmptyKey", err)
	}
	if err := store.Upsert(ctx, "k", "x", ""); !errors.Is(err, settings.ErrEmptyAgent) {
		t.Errorf("Upsert(empty agent) error = %v, want ErrEmptyAgent", err)
	}
	if _, err := store.Get(ctx, ""); !errors.Is(err, settings.ErrEmptyAgent) {
		t.Errorf("Get(empty agent) error = %v, want ErrEmptyAgent", err)
	}
	if err := store.Delete(ctx, "", "ops"); !errors.Is(err, settings.ErrEmptyKey) {
		t.Errorf("Delete(empty key) error = %v, want ErrEmptyKey", err)
	}
}

func TestSettingsStore_wrapError(t *testing.T) {
	t.Parallel()

	store := NewSettingsStore(nil, "public")

	t.Run("nil error returns nil", func(t *testing.T) {
		t.Parallel()
		if err := store.wrapError(nil); err != nil {
			t.Errorf("wrapError(nil) = %v, want nil", err)
		}
	})

	t.Run("deadline exceeded wraps as timeout", func(t *testing.T) {
		t.Parallel()
		err := store.wrapError(context.DeadlineExceeded)
		if !errors.Is(err, settings.ErrOperationTimeout) {
			t.Errorf("wrapError(DeadlineExceeded) should wrap as ErrOperationTimeout")
		}
	})

	t.Run("other errors wrap as connection failed", func(t *testing.T) {
		t.Parallel()
		originalErr := errors.New("connection refused")
		err := store.wrapError(originalErr)
		if !errors.Is(err, settings.ErrConnectionFailed) {
			t.Errorf("wrapError() should wrap as ErrConnectionFailed")
		}
		if !strings.Contains(err.Error(), "connection refused") {
			t.Errorf("wrapError() should preserve the original message")
		}
	})
}
