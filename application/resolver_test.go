package application_test

import (
	"context"
	"strings"
	"testing"

	"github.com/opsforge/opsforge/application"
	"github.com/opsforge/opsforge/domain/envelope"
	"github.com/opsforge/opsforge/domain/settings"
	"github.com/opsforge/opsforge/pack/vault"
)

func TestNewSecretResolver_NilProvider(t *testing.T) {
	if _, err := application.NewSecretResolver(nil); err == nil {
		t.Error("NewSecretResolver(nil) should fail")
	}
}

func TestResolve_RoundTrip(t *testing.T) {
	provider := vault.NewMemoryProvider()
	provider.Put("secret-1", "api-key", []byte("s3cr3t-value"))

	resolver, err := application.NewSecretResolver(provider)
	if err != nil {
		t.Fatalf("NewSecretResolver failed: %v", err)
	}

	plaintext, err := resolver.Resolve(context.Background(), "secret-1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if string(plaintext) != "s3cr3t-value" {
		t.Errorf("plaintext = %q, want the stored value back", plaintext)
	}
}

func TestResolve_UnknownSecret(t *testing.T) {
	resolver, err := application.NewSecretResolver(vault.NewMemoryProvider())
	if err != nil {
		t.Fatalf("NewSecretResolver failed: %v", err)
	}

	_, err = resolver.Resolve(context.Background(), "missing")
	if !envelope.IsKind(err, envelope.KindResolution) {
		t.Errorf("error kind = %v, want resolution", err)
	}
}

func TestResolve_CorruptPayloadNeverLeaks(t *testing.T) {
	provider := vault.NewMemoryProvider()
	provider.PutRaw("secret-2", "broken", "%%not-base64-payload%%")

	resolver, err := application.NewSecretResolver(provider)
	if err != nil {
		t.Fatalf("NewSecretResolver failed: %v", err)
	}

	_, err = resolver.Resolve(context.Background(), "secret-2")
	if !envelope.IsKind(err, envelope.KindResolution) {
		t.Fatalf("error kind = %v, want resolution", err)
	}
	if strings.Contains(err.Error(), "not-base64-payload") {
		t.Errorf("error message leaks the payload: %q", err.Error())
	}
	if !strings.Contains(err.Error(), "secret-2") {
		t.Errorf("error message should name the secret id: %q", err.Error())
	}
}

func TestResolveKey(t *testing.T) {
	provider := vault.NewMemoryProvider()
	provider.Put("vault-id-9", "api-key", []byte("key-material"))

	resolver, err := application.NewSecretResolver(provider)
	if err != nil {
		t.Fatalf("NewSecretResolver failed: %v", err)
	}

	snapshot := settings.NewSnapshot("sales", map[string]string{
		settings.KeyAPIKeySecretID: "vault-id-9",
	})

	plaintext, err := resolver.ResolveKey(context.Background(), snapshot, settings.KeyAPIKeySecretID)
	if err != nil {
		t.Fatalf("ResolveKey failed: %v", err)
	}
	if string(plaintext) != "key-material" {
		t.Errorf("plaintext = %q", plaintext)
	}
}

func TestResolveKey_NotConfigured(t *testing.T) {
	resolver, err := application.NewSecretResolver(vault.NewMemoryProvider())
	if err != nil {
		t.Fatalf("NewSecretResolver failed: %v", err)
	}

	snapshot := settings.NewSnapshot("sales", nil)
	_, err = resolver.ResolveKey(context.Background(), snapshot, settings.KeyAPIKeySecretID)
	if !envelope.IsKind(err, envelope.KindNotConfigured) {
		t.Errorf("error kind = %v, want not_configured", err)
	}
	if !strings.Contains(err.Error(), "sales") {
		t.Errorf("error should name the agent: %q", err.Error())
	}
}
