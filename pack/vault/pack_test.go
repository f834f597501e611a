package vault_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/opsforge/opsforge/domain/toolset"
	"github.com/opsforge/opsforge/pack/vault"
)

func callTool(t *testing.T, set *toolset.Toolset, name, input string) map[string]any {
	t.Helper()

	tl, ok := set.GetTool(name)
	if !ok {
		t.Fatalf("tool %s not found", name)
	}

	out, err := tl.Execute(context.Background(), json.RawMessage(input))
	if err != nil {
		t.Fatalf("Execute(%s) error = %v", name, err)
	}

	var result map[string]any
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	return result
}

func TestNew(t *testing.T) {
	provider := vault.NewMemoryProvider()
	defer provider.Close()

	set, err := vault.New(provider)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	toolNames := make(map[string]bool)
	for _, tl := range set.Tools {
		toolNames[tl.Name()] = true
	}

	for _, name := range []string{"vault_get_secret", "vault_secret_metadata"} {
		if !toolNames[name] {
			t.Errorf("expected tool %s not found", name)
		}
	}
}

func TestNew_NilProvider(t *testing.T) {
	if _, err := vault.New(nil); err == nil {
		t.Error("New(nil) should fail")
	}
}

func TestGetSecret(t *testing.T) {
	provider := vault.NewMemoryProvider()
	defer provider.Close()
	provider.Put("sec-1", "db-password", []byte("hunter2"))

	set, err := vault.New(provider)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result := callTool(t, set, "vault_get_secret", `{"secret_id":"sec-1"}`)

	if result["status"] != "success" {
		t.Fatalf("status = %v, want success (%v)", result["status"], result)
	}
	if result["content"] != "hunter2" {
		t.Errorf("content = %v, want hunter2", result["content"])
	}
	if result["bytes"] != float64(7) {
		t.Errorf("bytes = %v, want 7", result["bytes"])
	}
}

func TestGetSecret_MissingID(t *testing.T) {
	provider := vault.NewMemoryProvider()
	defer provider.Close()

	set, _ := vault.New(provider)
	result := callTool(t, set, "vault_get_secret", `{}`)

	if result["status"] != "error" {
		t.Fatalf("status = %v, want error", result["status"])
	}
	if result["error_kind"] != "invalid_input" {
		t.Errorf("error_kind = %v, want invalid_input", result["error_kind"])
	}
}

func TestGetSecret_NotFound(t *testing.T) {
	provider := vault.NewMemoryProvider()
	defer provider.Close()

	set, _ := vault.New(provider)
	result := callTool(t, set, "vault_get_secret", `{"secret_id":"absent"}`)

	if result["status"] != "error" {
		t.Fatalf("status = %v, want error", result["status"])
	}
	if result["error_kind"] != "resolution_failed" {
		t.Errorf("error_kind = %v, want resolution_failed", result["error_kind"])
	}
	if result["secret_id"] != "absent" {
		t.Errorf("secret_id echo = %v, want absent", result["secret_id"])
	}
}

func TestGetSecret_DecodeFailureNeverLeaksPayload(t *testing.T) {
	provider := vault.NewMemoryProvider()
	defer provider.Close()
	provider.PutRaw("sec-bad", "corrupt", "!!!not-base64!!!")

	set, _ := vault.New(provider)
	result := callTool(t, set, "vault_get_secret", `{"secret_id":"sec-bad"}`)

	if result["status"] != "error" {
		t.Fatalf("status = %v, want error", result["status"])
	}
	if result["error_kind"] != "resolution_failed" {
		t.Errorf("error_kind = %v, want resolution_failed", result["error_kind"])
	}
	msg, _ := result["message"].(string)
	if strings.Contains(msg, "not-base64") {
		t.Errorf("error message leaked the payload: %q", msg)
	}
}

func TestSecretMetadata(t *testing.T) {
	provider := vault.NewMemoryProvider()
	defer provider.Close()
	provider.Put("sec-1", "db-password", []byte("hunter2"))

	set, _ := vault.New(provider)
	result := callTool(t, set, "vault_secret_metadata", `{"secret_id":"sec-1"}`)

	if result["status"] != "success" {
		t.Fatalf("status = %v, want success (%v)", result["status"], result)
	}
	meta, ok := result["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("metadata missing from output: %v", result)
	}
	if meta["name"] != "db-password" {
		t.Errorf("metadata.name = %v, want db-password", meta["name"])
	}
	// The value itself must not appear in the metadata envelope.
	raw, _ := json.Marshal(result)
	if strings.Contains(string(raw), "hunter2") {
		t.Error("metadata envelope leaked the secret value")
	}
}
