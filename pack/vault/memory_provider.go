package vault

import (
	"context"
	"encoding/base64"
	"sync"
	"time"
)

// MemoryProvider is an in-memory implementation of Provider for testing.
type MemoryProvider struct {
	mu      sync.RWMutex
	secrets map[string]*memorySecret
}

type memorySecret struct {
	name    string
	content string
	version string
	created time.Time
	tags    map[string]string
}

// NewMemoryProvider creates a new in-memory vault provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		secrets: make(map[string]*memorySecret),
	}
}

// Name returns the provider name.
func (p *MemoryProvider) Name() string {
	return "memory"
}

// Put stores a secret, base64-encoding the plaintext the way a real vault
// bundle carries it.
func (p *MemoryProvider) Put(id, name string, plaintext []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.secrets[id] = &memorySecret{
		name:    name,
		content: base64.StdEncoding.EncodeToString(plaintext),
		version: "1",
		created: time.Now().UTC(),
	}
}

// PutRaw stores a secret with the content exactly as given, for exercising
// decode failures.
func (p *MemoryProvider) PutRaw(id, name, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.secrets[id] = &memorySecret{
		name:    name,
		content: content,
		version: "1",
		created: time.Now().UTC(),
	}
}

// GetSecret retrieves a secret bundle by identifier.
func (p *MemoryProvider) GetSecret(ctx context.Context, id string) (*Secret, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.secrets[id]
	if !ok {
		return nil, ErrSecretNotFound
	}

	return &Secret{
		ID:      id,
		Name:    s.name,
		Content: s.content,
		Version: s.version,
	}, nil
}

// GetMetadata retrieves secret metadata without the value.
func (p *MemoryProvider) GetMetadata(ctx context.Context, id string) (*Metadata, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.secrets[id]
	if !ok {
		return nil, ErrSecretNotFound
	}

	return &Metadata{
		ID:        id,
		Name:      s.name,
		Version:   s.version,
		CreatedAt: s.created,
		Tags:      s.tags,
	}, nil
}

// Close releases provider resources.
func (p *MemoryProvider) Close() error {
	return nil
}

var _ Provider = (*MemoryProvider)(nil)
