package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/opsforge/opsforge/domain/settings"
	"github.com/opsforge/opsforge/infrastructure/storage/sqlite"
)

func newTestStore(t *testing.T) *sqlite.SettingsStore {
	t.Helper()

	cfg := sqlite.DefaultConfig()
	cfg.DSN = "file:" + filepath.Join(t.TempDir(), "settings.db")

	store, err := sqlite.NewSettingsStore(cfg)
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

	err := store.Upsert(ctx, "region", "us-east-1", "billing")
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	values, err := store.Get(ctx, "billing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if values["region"] != "us-east-1" {
		t.Errorf("values[region] = %q, want us-east-1", values["region"])
	}
}

func TestSettingsStore_UpsertLastWriteWins(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for _, value := range []string{"first", "second", "third"} {
		err := store.Upsert(ctx, "credential_name", value, "ops")
		if err != nil {
			t.Fatalf("Upsert(%q) error = %v", value, err)
		}
	}

	values, err := store.Get(ctx, "ops")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(values) != 1 {
		t.Errorf("len(values) = %d, want 1", len(values))
	}
	if values["credential_name"] != "third" {
		t.Errorf("values[credential_name] = %q, want third", values["credential_name"])
	}
}

func TestSettingsStore_AgentIsolation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, "namespace", "alpha", "a"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := store.Upsert(ctx, "namespace", "beta", "b"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	valuesA, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get(a) error = %v", err)
	}
	valuesB, err := store.Get(ctx, "b")
	if err != nil {
		t.Fatalf("Get(b) error = %v", err)
	}

	if valuesA["namespace"] != "alpha" {
		t.Errorf("agent a namespace = %q, want alpha", valuesA["namespace"])
	}
	if valuesB["namespace"] != "beta" {
		t.Errorf("agent b namespace = %q, want beta", valuesB["namespace"])
	}
}

func TestSettingsStore_GetUnknownAgent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	values, err := store.Get(context.Background(), "never-configured")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(values) != 0 {
		t.Errorf("len(values) = %d, want 0", len(values))
	}
}

func TestSettingsStore_Entries(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	seed := map[string]string{
		"vault_region":    "eu-west-1",
		"compartment_id":  "cmp-1",
		"credential_name": "prod-cred",
	}
	for key, value := range seed {
		if err := store.Upsert(ctx, key, value, "ops"); err != nil {
			t.Fatalf("Upsert(%q) error = %v", key, err)
		}
	}

	entries, err := store.Entries(ctx, "ops")
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != len(seed) {
		t.Fatalf("len(entries) = %d, want %d", len(entries), len(seed))
	}
	// Ordered by key.
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Key > entries[i].Key {
			t.Errorf("entries not sorted: %q before %q", entries[i-1].Key, entries[i].Key)
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

func TestSettingsStore_Validation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, "", "x", "ops"); err != settings.ErrEmptyKey {
		t.Errorf("Upsert(empty key) error = %v, want ErrEmptyKey", err)
	}
	if err := store.Upsert(ctx, "k", "x", ""); err != settings.ErrEmptyAgent {
		t.Errorf("Upsert(empty agent) error = %v, want ErrEmptyAgent", err)
	}
}

func TestSettingsStore_Closed(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := store.Get(context.Background(), "ops"); err != settings.ErrStoreClosed {
		t.Errorf("Get() after close error = %v, want ErrStoreClosed", err)
	}
}
