package dbaas_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/opsforge/opsforge/domain/toolset"
	"github.com/opsforge/opsforge/pack/dbaas"
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

func instanceField(t *testing.T, result map[string]any, field string) any {
	t.Helper()
	instance, _ := result["instance"].(map[string]any)
	if instance == nil {
		t.Fatalf("instance missing in %v", result)
	}
	return instance[field]
}

func TestNew_NilProvider(t *testing.T) {
	if _, err := dbaas.New(nil); err == nil {
		t.Error("New(nil) should fail")
	}
}

func TestNew_ReadOnlyByDefault(t *testing.T) {
	set, err := dbaas.New(dbaas.NewMemoryProvider())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for _, name := range []string{"db_get", "db_list", "compartment_list"} {
		if _, ok := set.GetTool(name); !ok {
			t.Errorf("read tool %s should be registered", name)
		}
	}
	for _, name := range []string{"db_create", "db_start", "db_stop"} {
		if _, ok := set.GetTool(name); ok {
			t.Errorf("write tool %s should not be registered read-only", name)
		}
	}
}

func TestInstanceLifecycle(t *testing.T) {
	provider := dbaas.NewMemoryProvider()
	set, err := dbaas.New(provider, dbaas.WithWriteAccess())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result := callTool(t, set, "db_create", `{"display_name":"orders-db","workload":"DW"}`)
	if result["status"] != "success" {
		t.Fatalf("db_create status = %v (%v)", result["status"], result)
	}
	if state := instanceField(t, result, "state"); state != dbaas.StateProvisioning {
		t.Errorf("state after create = %v, want %s", state, dbaas.StateProvisioning)
	}
	id, _ := instanceField(t, result, "id").(string)
	if id == "" {
		t.Fatal("instance id missing")
	}

	// Default delay is zero, so the next read observes the terminal state.
	result = callTool(t, set, "db_get", fmt.Sprintf(`{"instance_id":%q}`, id))
	if state := instanceField(t, result, "state"); state != dbaas.StateAvailable {
		t.Errorf("state after provisioning = %v, want %s", state, dbaas.StateAvailable)
	}

	result = callTool(t, set, "db_stop", fmt.Sprintf(`{"instance_id":%q}`, id))
	if state := instanceField(t, result, "state"); state != dbaas.StateStopping {
		t.Errorf("state after stop = %v, want %s", state, dbaas.StateStopping)
	}

	result = callTool(t, set, "db_get", fmt.Sprintf(`{"instance_id":%q}`, id))
	if state := instanceField(t, result, "state"); state != dbaas.StateStopped {
		t.Errorf("state after stopping = %v, want %s", state, dbaas.StateStopped)
	}

	result = callTool(t, set, "db_start", fmt.Sprintf(`{"instance_id":%q}`, id))
	if state := instanceField(t, result, "state"); state != dbaas.StateStarting {
		t.Errorf("state after start = %v, want %s", state, dbaas.StateStarting)
	}

	result = callTool(t, set, "db_get", fmt.Sprintf(`{"instance_id":%q}`, id))
	if state := instanceField(t, result, "state"); state != dbaas.StateAvailable {
		t.Errorf("state after starting = %v, want %s", state, dbaas.StateAvailable)
	}
}

func TestTransitionsHoldUntilDelayElapses(t *testing.T) {
	provider := dbaas.NewMemoryProvider(dbaas.WithTransitionDelay(time.Hour))
	set, err := dbaas.New(provider, dbaas.WithWriteAccess())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result := callTool(t, set, "db_create", `{"display_name":"slow-db"}`)
	id, _ := instanceField(t, result, "id").(string)

	result = callTool(t, set, "db_get", fmt.Sprintf(`{"instance_id":%q}`, id))
	if state := instanceField(t, result, "state"); state != dbaas.StateProvisioning {
		t.Errorf("state = %v, want %s while transition pending", state, dbaas.StateProvisioning)
	}

	// Stopping a provisioning instance is a lifecycle conflict.
	result = callTool(t, set, "db_stop", fmt.Sprintf(`{"instance_id":%q}`, id))
	if result["error_kind"] != "provider_error" {
		t.Errorf("error_kind = %v, want provider_error", result["error_kind"])
	}

	provider.Advance()

	result = callTool(t, set, "db_get", fmt.Sprintf(`{"instance_id":%q}`, id))
	if state := instanceField(t, result, "state"); state != dbaas.StateAvailable {
		t.Errorf("state after Advance = %v, want %s", state, dbaas.StateAvailable)
	}
}

func TestCreate_MissingDisplayName(t *testing.T) {
	set, err := dbaas.New(dbaas.NewMemoryProvider(), dbaas.WithWriteAccess())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result := callTool(t, set, "db_create", `{}`)
	if result["error_kind"] != "invalid_input" {
		t.Errorf("error_kind = %v, want invalid_input", result["error_kind"])
	}
}

func TestCreate_ResolvesCompartmentByName(t *testing.T) {
	provider := dbaas.NewMemoryProvider(dbaas.WithCompartments(
		dbaas.Compartment{ID: "ocid1.compartment.a", Name: "analytics"},
	))
	set, err := dbaas.New(provider, dbaas.WithWriteAccess())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result := callTool(t, set, "db_create", `{"display_name":"dw","compartment_name":"analytics"}`)
	if result["status"] != "success" {
		t.Fatalf("status = %v (%v)", result["status"], result)
	}
	if got := instanceField(t, result, "compartment_id"); got != "ocid1.compartment.a" {
		t.Errorf("compartment_id = %v", got)
	}
}

func TestCreate_UnknownCompartmentName(t *testing.T) {
	set, err := dbaas.New(dbaas.NewMemoryProvider(), dbaas.WithWriteAccess())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result := callTool(t, set, "db_create", `{"display_name":"dw","compartment_name":"nope"}`)
	if result["error_kind"] != "resolution_failed" {
		t.Errorf("error_kind = %v, want resolution_failed", result["error_kind"])
	}
	if msg, _ := result["message"].(string); !strings.Contains(msg, "nope") {
		t.Errorf("message should name the compartment, got %q", msg)
	}
}

func TestGet_UnknownInstance(t *testing.T) {
	set, err := dbaas.New(dbaas.NewMemoryProvider())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result := callTool(t, set, "db_get", `{"instance_id":"missing"}`)
	if result["error_kind"] != "provider_error" {
		t.Errorf("error_kind = %v, want provider_error", result["error_kind"])
	}
}

func TestListInstances_ScopedToCompartment(t *testing.T) {
	provider := dbaas.NewMemoryProvider(dbaas.WithCompartments(
		dbaas.Compartment{ID: "comp-a", Name: "a"},
		dbaas.Compartment{ID: "comp-b", Name: "b"},
	))
	set, err := dbaas.New(provider, dbaas.WithWriteAccess())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	callTool(t, set, "db_create", `{"display_name":"one","compartment_id":"comp-a"}`)
	callTool(t, set, "db_create", `{"display_name":"two","compartment_id":"comp-b"}`)

	result := callTool(t, set, "db_list", `{"compartment_id":"comp-a"}`)
	if result["count"] != float64(1) {
		t.Errorf("count = %v, want 1", result["count"])
	}

	result = callTool(t, set, "db_list", `{}`)
	if result["count"] != float64(2) {
		t.Errorf("unscoped count = %v, want 2", result["count"])
	}
}

func TestListCompartments(t *testing.T) {
	provider := dbaas.NewMemoryProvider(dbaas.WithCompartments(
		dbaas.Compartment{ID: "comp-b", Name: "billing"},
		dbaas.Compartment{ID: "comp-a", Name: "analytics"},
	))
	set, err := dbaas.New(provider)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result := callTool(t, set, "compartment_list", `{}`)
	if result["count"] != float64(2) {
		t.Errorf("count = %v, want 2", result["count"])
	}
	compartments, _ := result["compartments"].([]any)
	first, _ := compartments[0].(map[string]any)
	if first["name"] != "analytics" {
		t.Errorf("compartments should be name-sorted, got %v first", first["name"])
	}
}
