// Package websearch provides web search and URL fetch tools.
package websearch

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Provider defines the interface for web search operations.
type Provider interface {
	// Name returns the provider name (e.g., "rest", "memory").
	Name() string

	// Search runs a query and returns at most limit results.
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	Source  string `json:"source,omitempty"`
}

// MemoryProvider is an in-memory search index for tests and development.
// Documents match when the query appears in their title or snippet,
// case-insensitively.
type MemoryProvider struct {
	mu      sync.RWMutex
	results []Result
}

// NewMemoryProvider creates an empty in-memory search provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{}
}

// Name returns the provider name.
func (p *MemoryProvider) Name() string {
	return "memory"
}

// Add seeds the provider with a result.
func (p *MemoryProvider) Add(results ...Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, results...)
}

// Search returns the seeded results whose title or snippet contains the
// query, in stable title order.
func (p *MemoryProvider) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	needle := strings.ToLower(query)
	var matches []Result
	for _, r := range p.results {
		if strings.Contains(strings.ToLower(r.Title), needle) ||
			strings.Contains(strings.ToLower(r.Snippet), needle) {
			matches = append(matches, r)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Title < matches[j].Title })

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

var _ Provider = (*MemoryProvider)(nil)
