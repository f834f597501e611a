package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/opsforge/opsforge/application"
	"github.com/opsforge/opsforge/domain/settings"
	"github.com/opsforge/opsforge/infrastructure/config"
	"github.com/opsforge/opsforge/infrastructure/storage/memory"
	"github.com/opsforge/opsforge/pack/websearch"
)

// rejectingStore fails upserts for one key and delegates the rest.
type rejectingStore struct {
	settings.Store
	rejectKey string
}

func (s *rejectingStore) Upsert(ctx context.Context, key, value, agent string) error {
	if key == s.rejectKey {
		return errors.New("constraint violation")
	}
	return s.Store.Upsert(ctx, key, value, agent)
}

func testProfile() *config.InstallProfile {
	return &config.InstallProfile{
		CredentialName: "ops-cred",
		VaultRegion:    "eu-central-1",
		CompartmentID:  "ocid1.compartment.a",
	}
}

func TestInstall_MergesAndRegisters(t *testing.T) {
	store := memory.NewSettingsStore()
	registry := memory.NewToolRegistry()

	installer, err := application.NewInstaller(store, registry)
	if err != nil {
		t.Fatalf("NewInstaller failed: %v", err)
	}

	set, err := websearch.New(websearch.NewMemoryProvider())
	if err != nil {
		t.Fatalf("websearch.New failed: %v", err)
	}

	report := installer.Install(context.Background(), testProfile(), "sales", set)
	if report.Failed() {
		t.Fatalf("install failed: %+v", report)
	}
	if report.KeysWritten != 3 {
		t.Errorf("KeysWritten = %d, want 3", report.KeysWritten)
	}
	if report.ToolsRegistered != 2 {
		t.Errorf("ToolsRegistered = %d, want 2", report.ToolsRegistered)
	}

	values, err := store.Get(context.Background(), "sales")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if values[settings.KeyCredentialName] != "ops-cred" {
		t.Errorf("credential_name = %q", values[settings.KeyCredentialName])
	}
	if !registry.Has("web_search") || !registry.Has("url_fetch") {
		t.Error("websearch tools should be registered")
	}
}

func TestInstall_Idempotent(t *testing.T) {
	store := memory.NewSettingsStore()
	registry := memory.NewToolRegistry()

	installer, err := application.NewInstaller(store, registry)
	if err != nil {
		t.Fatalf("NewInstaller failed: %v", err)
	}

	set, err := websearch.New(websearch.NewMemoryProvider())
	if err != nil {
		t.Fatalf("websearch.New failed: %v", err)
	}

	first := installer.Install(context.Background(), testProfile(), "sales", set)
	second := installer.Install(context.Background(), testProfile(), "sales", set)

	if first.Failed() || second.Failed() {
		t.Fatalf("install runs failed: %+v / %+v", first, second)
	}
	if registry.Count() != 2 {
		t.Errorf("registry count = %d after reinstall, want 2", registry.Count())
	}

	entries, err := store.Entries(context.Background(), "sales")
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("entries = %d after reinstall, want 3", len(entries))
	}
}

func TestInstall_ContinuesPastKeyFailure(t *testing.T) {
	store := &rejectingStore{Store: memory.NewSettingsStore(), rejectKey: settings.KeyVaultRegion}
	registry := memory.NewToolRegistry()

	installer, err := application.NewInstaller(store, registry)
	if err != nil {
		t.Fatalf("NewInstaller failed: %v", err)
	}

	report := installer.Install(context.Background(), testProfile(), "sales")
	if !report.Failed() {
		t.Fatal("report should record the rejected key")
	}
	if report.KeysWritten != 2 {
		t.Errorf("KeysWritten = %d, want 2", report.KeysWritten)
	}
	if len(report.KeyErrors) != 1 || report.KeyErrors[0].Key != settings.KeyVaultRegion {
		t.Errorf("KeyErrors = %+v", report.KeyErrors)
	}

	// The keys after the failing one still land.
	values, err := store.Get(context.Background(), "sales")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if values[settings.KeyCompartmentID] != "ocid1.compartment.a" {
		t.Error("compartment_id should be written despite the earlier failure")
	}
}

func TestInstall_NilProfileRegistersOnly(t *testing.T) {
	store := memory.NewSettingsStore()
	registry := memory.NewToolRegistry()

	installer, err := application.NewInstaller(store, registry)
	if err != nil {
		t.Fatalf("NewInstaller failed: %v", err)
	}

	set, err := websearch.New(websearch.NewMemoryProvider())
	if err != nil {
		t.Fatalf("websearch.New failed: %v", err)
	}

	report := installer.Install(context.Background(), nil, "sales", set)
	if report.KeysWritten != 0 {
		t.Errorf("KeysWritten = %d, want 0", report.KeysWritten)
	}
	if report.ToolsRegistered != 2 {
		t.Errorf("ToolsRegistered = %d, want 2", report.ToolsRegistered)
	}
}
