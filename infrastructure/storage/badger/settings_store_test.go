package badger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/opsforge/opsforge/domain/settings"
	"github.com/opsforge/opsforge/infrastructure/storage/badger"
)

func newTestStore(t *testing.T) *badger.SettingsStore {
	t.Helper()

	store, err := badger.NewSettingsStore(badger.DefaultConfig(), badger.WithInMemory())
	if err != nil {
		t.Fatalf("NewSettingsStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestSettingsStore_UpsertAndGet(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, "vault_region", "eu-west-1", "ops"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	values, err := store.Get(ctx, "ops")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if values["vault_region"] != "eu-west-1" {
		t.Errorf("values[vault_region] = %q, want eu-west-1", values["vault_region"])
	}
}

func TestSettingsStore_LastWriteWins(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for _, value := range []string{"old", "new"} {
		if err := store.Upsert(ctx, "namespace", value, "ops"); err != nil {
			t.Fatalf("Upsert(%q) error = %v", value, err)
		}
	}

	values, err := store.Get(ctx, "ops")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if values["namespace"] != "new" {
		t.Errorf("values[namespace] = %q, want new", values["namespace"])
	}
	if len(values) != 1 {
		t.Errorf("len(values) = %d, want 1", len(values))
	}
}

func TestSettingsStore_AgentIsolation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, "compartment_id", "cmp-a", "a"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := store.Upsert(ctx, "compartment_id", "cmp-b", "b"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	valuesA, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get(a) error = %v", err)
	}
	if len(valuesA) != 1 || valuesA["compartment_id"] != "cmp-a" {
		t.Errorf("agent a values = %v, want compartment_id=cmp-a only", valuesA)
	}
}

func TestSettingsStore_EntriesSorted(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"zeta", "alpha", "mid"} {
		if err := store.Upsert(ctx, key, "v", "ops"); err != nil {
			t.Fatalf("Upsert(%q) error = %v", key, err)
		}
	}

	entries, err := store.Entries(ctx, "ops")
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, entry := range entries {
		if entry.Key != want[i] {
			t.Errorf("entries[%d].Key = %q, want %q", i, entry.Key, want[i])
		}
	}
}

func TestSettingsStore_DeleteMissingKey(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	if err := store.Delete(context.Background(), "absent", "ops"); err != nil {
		t.Errorf("Delete() error = %v, want nil", err)
	}
}

func TestSettingsStore_Closed(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	err := store.Upsert(context.Background(), "k", "v", "ops")
	if !errors.Is(err, settings.ErrStoreClosed) {
		t.Errorf("Upsert() after close error = %v, want ErrStoreClosed", err)
	}
}
