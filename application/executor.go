package application

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/opsforge/opsforge/domain/envelope"
	"github.com/opsforge/opsforge/domain/tool"
	"github.com/opsforge/opsforge/infrastructure/logging"
)

// Registry is the tool lookup surface the executor runs against.
// infrastructure/storage/memory.ToolRegistry satisfies it.
type Registry interface {
	Get(name string) (tool.Tool, bool)
	Names() []string
}

// Middleware wraps a tool handler. Middlewares run in registration order,
// outermost first.
type Middleware func(name string, next tool.Handler) tool.Handler

// Executor dispatches facade calls by tool name. It adds no retries and no
// compensation: one call maps to one handler invocation, and recovery
// sequencing stays with the caller.
type Executor struct {
	registry    Registry
	middlewares []Middleware
}

// ExecutorOption configures the executor.
type ExecutorOption func(*Executor)

// WithMiddleware appends middleware to the chain.
func WithMiddleware(mw ...Middleware) ExecutorOption {
	return func(e *Executor) {
		e.middlewares = append(e.middlewares, mw...)
	}
}

// NewExecutor creates an executor over a tool registry.
func NewExecutor(registry Registry, opts ...ExecutorOption) (*Executor, error) {
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}
	e := &Executor{registry: registry}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute runs the named tool. The result is always a parseable envelope:
// an unknown tool or a handler error is folded into an error envelope
// rather than surfaced as a bare Go error.
func (e *Executor) Execute(ctx context.Context, name string, input json.RawMessage) json.RawMessage {
	t, ok := e.registry.Get(name)
	if !ok {
		return envelope.Fail(envelope.Errorf(envelope.KindInvalidInput,
			"unknown tool %q", name), nil)
	}

	handler := tool.Handler(t.Execute)
	for i := len(e.middlewares) - 1; i >= 0; i-- {
		handler = e.middlewares[i](name, handler)
	}

	out, err := handler(ctx, input)
	if err != nil {
		return envelope.Fail(err, nil)
	}
	return out
}

// LoggingMiddleware logs each call with its duration. Inputs are not logged;
// they can carry secret identifiers and object content.
func LoggingMiddleware() Middleware {
	return func(name string, next tool.Handler) tool.Handler {
		return func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			start := time.Now()
			out, err := next(ctx, input)

			event := logging.Info()
			if err != nil {
				event = logging.Error().Add(logging.ErrorField(err))
			}
			event.
				Add(logging.ToolName(name)).
				Add(logging.Duration(time.Since(start))).
				Msg("tool call")

			return out, err
		}
	}
}
