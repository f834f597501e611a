package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/opsforge/opsforge/application"
	"github.com/opsforge/opsforge/domain/envelope"
	"github.com/opsforge/opsforge/domain/tool"
	"github.com/opsforge/opsforge/infrastructure/storage/memory"
)

func registryWith(t *testing.T, tools ...tool.Tool) *memory.ToolRegistry {
	t.Helper()
	registry := memory.NewToolRegistry()
	for _, tl := range tools {
		if err := registry.Register(tl); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	return registry
}

func parseEnvelope(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("result is not valid JSON: %v", err)
	}
	return result
}

func TestNewExecutor_NilRegistry(t *testing.T) {
	if _, err := application.NewExecutor(nil); err == nil {
		t.Error("NewExecutor(nil) should fail")
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	executor, err := application.NewExecutor(registryWith(t))
	if err != nil {
		t.Fatalf("NewExecutor failed: %v", err)
	}

	result := parseEnvelope(t, executor.Execute(context.Background(), "nope", nil))
	if result["status"] != "error" {
		t.Errorf("status = %v, want error", result["status"])
	}
	if result["error_kind"] != "invalid_input" {
		t.Errorf("error_kind = %v, want invalid_input", result["error_kind"])
	}
}

func TestExecute_PassesThroughEnvelope(t *testing.T) {
	echo := tool.NewBuilder("echo").
		WithInstruction("Echo the input back.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			return envelope.Success(map[string]any{"echoed": string(input)})
		}).
		MustBuild()

	executor, err := application.NewExecutor(registryWith(t, echo))
	if err != nil {
		t.Fatalf("NewExecutor failed: %v", err)
	}

	result := parseEnvelope(t, executor.Execute(context.Background(), "echo", json.RawMessage(`{"a":1}`)))
	if result["status"] != "success" {
		t.Errorf("status = %v (%v)", result["status"], result)
	}
	if result["echoed"] != `{"a":1}` {
		t.Errorf("echoed = %v", result["echoed"])
	}
}

func TestExecute_FoldsHandlerErrorIntoEnvelope(t *testing.T) {
	failing := tool.NewBuilder("failing").
		WithInstruction("Always fails.").
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			return nil, errors.New("backend exploded")
		}).
		MustBuild()

	executor, err := application.NewExecutor(registryWith(t, failing))
	if err != nil {
		t.Fatalf("NewExecutor failed: %v", err)
	}

	result := parseEnvelope(t, executor.Execute(context.Background(), "failing", nil))
	if result["status"] != "error" {
		t.Errorf("status = %v, want error", result["status"])
	}
	if result["error_kind"] != "provider_error" {
		t.Errorf("error_kind = %v, want provider_error", result["error_kind"])
	}
}

func TestExecute_NoRetries(t *testing.T) {
	calls := 0
	flaky := tool.NewBuilder("flaky").
		WithInstruction("Fails once per call.").
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			calls++
			return nil, errors.New("transient")
		}).
		MustBuild()

	executor, err := application.NewExecutor(registryWith(t, flaky))
	if err != nil {
		t.Fatalf("NewExecutor failed: %v", err)
	}

	executor.Execute(context.Background(), "flaky", nil)
	if calls != 1 {
		t.Errorf("handler called %d times, want exactly 1", calls)
	}
}

func TestExecute_MiddlewareOrder(t *testing.T) {
	var order []string
	mw := func(label string) application.Middleware {
		return func(name string, next tool.Handler) tool.Handler {
			return func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
				order = append(order, label)
				return next(ctx, input)
			}
		}
	}

	ok := tool.NewBuilder("ok").
		WithInstruction("Succeeds.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			order = append(order, "handler")
			return envelope.Success(map[string]any{})
		}).
		MustBuild()

	executor, err := application.NewExecutor(registryWith(t, ok),
		application.WithMiddleware(mw("outer"), mw("inner")))
	if err != nil {
		t.Fatalf("NewExecutor failed: %v", err)
	}

	executor.Execute(context.Background(), "ok", nil)

	want := []string{"outer", "inner", "handler"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}
