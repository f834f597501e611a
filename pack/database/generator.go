package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrCouldNotGenerate is returned by a Generator that declines a prompt.
// Handlers map it to a could_not_generate envelope instead of a provider error.
var ErrCouldNotGenerate = errors.New("could not generate SQL")

// Generator turns a natural language prompt into a SQL statement.
type Generator interface {
	// Name identifies the generator in envelopes and logs.
	Name() string

	// GenerateSQL returns a single SELECT statement for the prompt.
	// A generator that cannot produce SQL returns an error wrapping
	// ErrCouldNotGenerate with the declining text as context.
	GenerateSQL(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Name implements Generator.
func (f GeneratorFunc) Name() string { return "func" }

// GenerateSQL implements Generator.
func (f GeneratorFunc) GenerateSQL(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// MemoryGenerator maps known prompts to canned SQL. Unknown prompts are
// declined with ErrCouldNotGenerate, which is what a model-backed generator
// signals when the schema cannot answer the question.
type MemoryGenerator struct {
	mu      sync.RWMutex
	prompts map[string]string
}

// NewMemoryGenerator creates an empty in-memory generator.
func NewMemoryGenerator() *MemoryGenerator {
	return &MemoryGenerator{prompts: make(map[string]string)}
}

// Name implements Generator.
func (g *MemoryGenerator) Name() string { return "memory" }

// Teach registers the SQL to return for a prompt. Matching is
// case-insensitive on the trimmed prompt.
func (g *MemoryGenerator) Teach(prompt, sql string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts[normalizePrompt(prompt)] = sql
}

// GenerateSQL implements Generator.
func (g *MemoryGenerator) GenerateSQL(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	sql, ok := g.prompts[normalizePrompt(prompt)]
	if !ok {
		return "", fmt.Errorf("%w: no SQL known for prompt %q", ErrCouldNotGenerate, prompt)
	}
	return sql, nil
}

func normalizePrompt(prompt string) string {
	return strings.ToLower(strings.TrimSpace(prompt))
}
