package memory

import (
	"context"
	"testing"

	"github.com/opsforge/opsforge/domain/settings"
)

func TestSettingsStoreUpsertIdempotent(t *testing.T) {
	t.Parallel()

	store := NewSettingsStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, "credential_name", "ops-cred", "storage"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Upsert(ctx, "credential_name", "ops-cred", "storage"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := store.Entries(ctx, "storage")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("entry count = %d, want 1", len(entries))
	}
	if entries[0].Value != "ops-cred" {
		t.Errorf("value = %s", entries[0].Value)
	}
}

func TestSettingsStoreLastWriteWins(t *testing.T) {
	t.Parallel()

	store := NewSettingsStore()
	ctx := context.Background()

	_ = store.Upsert(ctx, "vault_region", "us-east-1", "storage")
	_ = store.Upsert(ctx, "vault_region", "eu-west-1", "storage")

	values, err := store.Get(ctx, "storage")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values["vault_region"] != "eu-west-1" {
		t.Errorf("vault_region = %s, want eu-west-1", values["vault_region"])
	}
}

func TestSettingsStoreDistinctKeys(t *testing.T) {
	t.Parallel()

	store := NewSettingsStore()
	ctx := context.Background()

	keys := []string{"a", "b", "c"}
	for _, k := range keys {
		_ = store.Upsert(ctx, k, "v1", "agent")
		_ = store.Upsert(ctx, k, "v2", "agent")
	}

	values, _ := store.Get(ctx, "agent")
	if len(values) != len(keys) {
		t.Errorf("key count = %d, want %d", len(values), len(keys))
	}
	for _, k := range keys {
		if values[k] != "v2" {
			t.Errorf("values[%s] = %s, want v2", k, values[k])
		}
	}
}

func TestSettingsStoreUnknownAgent(t *testing.T) {
	t.Parallel()

	store := NewSettingsStore()

	values, err := store.Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unknown agent should not error: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("values = %v, want empty", values)
	}
}

func TestSettingsStoreAgentIsolation(t *testing.T) {
	t.Parallel()

	store := NewSettingsStore()
	ctx := context.Background()

	_ = store.Upsert(ctx, "compartment_id", "cmp-a", "storage")
	_ = store.Upsert(ctx, "compartment_id", "cmp-b", "database")

	a, _ := store.Get(ctx, "storage")
	b, _ := store.Get(ctx, "database")
	if a["compartment_id"] == b["compartment_id"] {
		t.Error("agents should not share entries")
	}
}

func TestSettingsStoreValidation(t *testing.T) {
	t.Parallel()

	store := NewSettingsStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, "", "v", "agent"); err != settings.ErrEmptyKey {
		t.Errorf("err = %v, want ErrEmptyKey", err)
	}
	if err := store.Upsert(ctx, "k", "v", ""); err != settings.ErrEmptyAgent {
		t.Errorf("err = %v, want ErrEmptyAgent", err)
	}
	if _, err := store.Get(ctx, ""); err != settings.ErrEmptyAgent {
		t.Errorf("err = %v, want ErrEmptyAgent", err)
	}
}

func TestSettingsStoreDelete(t *testing.T) {
	t.Parallel()

	store := NewSettingsStore()
	ctx := context.Background()

	_ = store.Upsert(ctx, "k", "v", "agent")
	if err := store.Delete(ctx, "k", "agent"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Delete(ctx, "k", "agent"); err != nil {
		t.Errorf("deleting a missing entry should not error: %v", err)
	}

	values, _ := store.Get(ctx, "agent")
	if len(values) != 0 {
		t.Errorf("values = %v, want empty", values)
	}
}

func TestSettingsStoreClosed(t *testing.T) {
	t.Parallel()

	store := NewSettingsStore()
	_ = store.Close()

	if _, err := store.Get(context.Background(), "agent"); err != settings.ErrStoreClosed {
		t.Errorf("err = %v, want ErrStoreClosed", err)
	}
}
