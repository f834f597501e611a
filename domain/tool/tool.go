package tool

import (
	"context"
	"encoding/json"
)

// Tool is one registered capability: a named binding from a natural-language
// instruction to a facade function.
type Tool interface {
	// Name returns the stable string identifier for the tool.
	Name() string

	// Instruction returns the natural-language text handed to the agent
	// platform describing when and how to call the tool.
	Instruction() string

	// InputSchema returns the JSON Schema for validating input.
	InputSchema() Schema

	// Annotations returns the tool's behavioral annotations.
	Annotations() Annotations

	// Execute runs the tool with the given input and returns the raw
	// operation payload. Envelope shaping happens in the facade executor,
	// not here.
	Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}

// Handler is the function signature for tool execution.
type Handler func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

// Definition is a concrete implementation of Tool.
type Definition struct {
	name        string
	instruction string
	inputSchema Schema
	annotations Annotations
	handler     Handler
}

// Name returns the tool name.
func (d *Definition) Name() string {
	return d.name
}

// Instruction returns the tool instruction text.
func (d *Definition) Instruction() string {
	return d.instruction
}

// InputSchema returns the input schema.
func (d *Definition) InputSchema() Schema {
	return d.inputSchema
}

// Annotations returns the tool annotations.
func (d *Definition) Annotations() Annotations {
	return d.annotations
}

// Execute runs the tool handler.
func (d *Definition) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	if d.handler == nil {
		return nil, ErrNoHandler
	}
	return d.handler(ctx, input)
}

// Builder provides a fluent API for constructing tools.
type Builder struct {
	def *Definition
}

// NewBuilder creates a new tool builder with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{
		def: &Definition{
			name:        name,
			annotations: DefaultAnnotations(),
		},
	}
}

// WithInstruction sets the instruction text.
func (b *Builder) WithInstruction(text string) *Builder {
	b.def.instruction = text
	return b
}

// WithInputSchema sets the input schema.
func (b *Builder) WithInputSchema(schema Schema) *Builder {
	b.def.inputSchema = schema
	return b
}

// ReadOnly marks the tool as having no side effects.
func (b *Builder) ReadOnly() *Builder {
	b.def.annotations.ReadOnly = true
	return b
}

// Destructive marks the tool as causing hard-to-reverse changes.
func (b *Builder) Destructive() *Builder {
	b.def.annotations.Destructive = true
	return b
}

// Idempotent marks the tool as idempotent.
func (b *Builder) Idempotent() *Builder {
	b.def.annotations.Idempotent = true
	return b
}

// WithTags adds tags to the tool.
func (b *Builder) WithTags(tags ...string) *Builder {
	b.def.annotations.Tags = append(b.def.annotations.Tags, tags...)
	return b
}

// WithHandler sets the tool handler function.
func (b *Builder) WithHandler(handler Handler) *Builder {
	b.def.handler = handler
	return b
}

// Build constructs the tool definition.
func (b *Builder) Build() (Tool, error) {
	if b.def.name == "" {
		return nil, ErrEmptyName
	}
	if b.def.handler == nil {
		return nil, ErrNoHandler
	}
	return b.def, nil
}

// MustBuild constructs the tool definition or panics on error.
func (b *Builder) MustBuild() Tool {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}
