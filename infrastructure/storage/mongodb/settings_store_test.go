package mongodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opsforge/opsforge/domain/settings"
)

func newUnconnectedStore() *SettingsStore {
	return &SettingsStore{queryTimeout: time.Second}
}

func TestSettingsStore_MongoValidation(t *testing.T) {
	t.Parallel()

	store := newUnconnectedStore()
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
	if err := store.Delete(ctx, "k", ""); !errors.Is(err, settings.ErrEmptyAgent) {
		t.Errorf("Delete(empty agent) error = %v, want ErrEmptyAgent", err)
	}
}

func TestSettingsStore_MongoWrapError(t *testing.T) {
	t.Parallel()

	store := newUnconnectedStore()

	if err := store.wrapError(nil); err != nil {
		t.Errorf("wrapError(nil) = %v, want nil", err)
	}
	if err := store.wrapError(context.DeadlineExceeded); !errors.Is(err, settings.ErrOperationTimeout) {
		t.Error("wrapError(DeadlineExceeded) should wrap as ErrOperationTimeout")
	}
	if err := store.wrapError(errors.New("no reachable servers")); !errors.Is(err, settings.ErrConnectionFailed) {
		t.Error("wrapError() should wrap as ErrConnectionFailed")
	}
}
