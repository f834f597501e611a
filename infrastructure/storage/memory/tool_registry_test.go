package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/opsforge/opsforge/domain/tool"
)

func namedTool(name string) tool.Tool {
	return tool.NewBuilder(name).
		WithInstruction("test tool").
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		}).
		MustBuild()
}

func TestRegisterDuplicate(t *testing.T) {
	t.Parallel()

	reg := NewToolRegistry()

	if err := reg.Register(namedTool("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.Register(namedTool("a")); err != tool.ErrToolExists {
		t.Errorf("err = %v, want ErrToolExists", err)
	}
}

func TestReplaceIdempotent(t *testing.T) {
	t.Parallel()

	reg := NewToolRegistry()

	if err := reg.Replace(namedTool("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.Replace(namedTool("a")); err != nil {
		t.Fatalf("second replace should succeed: %v", err)
	}

	if reg.Count() != 1 {
		t.Errorf("count = %d, want 1", reg.Count())
	}
	if !reg.Has("a") {
		t.Error("tool a should be registered")
	}
}

func TestUnregister(t *testing.T) {
	t.Parallel()

	reg := NewToolRegistry()
	_ = reg.Register(namedTool("a"))

	if err := reg.Unregister("a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.Unregister("a"); err != tool.ErrToolNotFound {
		t.Errorf("err = %v, want ErrToolNotFound", err)
	}
}

func TestListAndNames(t *testing.T) {
	t.Parallel()

	reg := NewToolRegistry()
	_ = reg.Register(namedTool("a"))
	_ = reg.Register(namedTool("b"))

	if len(reg.List()) != 2 {
		t.Errorf("list length = %d, want 2", len(reg.List()))
	}
	if len(reg.Names()) != 2 {
		t.Errorf("names length = %d, want 2", len(reg.Names()))
	}
	if _, ok := reg.Get("b"); !ok {
		t.Error("tool b should be retrievable")
	}
}
