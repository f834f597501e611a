// Package vault provides secret access tools over cloud secret stores.
package vault

import (
	"context"
	"encoding/base64"
	"errors"
	"time"
)

// Provider defines the interface for secret retrieval. Implementations exist
// for AWS Secrets Manager, Azure Key Vault, GCP Secret Manager, and an
// in-memory store for tests.
type Provider interface {
	// Name returns the provider name (e.g., "aws-secrets-manager").
	Name() string

	// GetSecret retrieves a secret bundle by identifier.
	GetSecret(ctx context.Context, id string) (*Secret, error)

	// GetMetadata retrieves secret metadata without the value.
	GetMetadata(ctx context.Context, id string) (*Metadata, error)

	// Close releases provider resources.
	Close() error
}

// Secret is a retrieved secret bundle. Content carries the stored payload,
// which is conventionally base64-encoded; use Plaintext to decode it.
type Secret struct {
	ID      string
	Name    string
	Content string
	Version string
}

// Metadata describes a secret without exposing its value.
type Metadata struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Version   string            `json:"version,omitempty"`
	CreatedAt time.Time         `json:"created_at,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Errors returned by providers.
var (
	// ErrSecretNotFound indicates the identifier resolves to nothing.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrNotEncoded indicates the stored payload is not valid base64.
	// The payload itself is never included in the error.
	ErrNotEncoded = errors.New("secret payload is not valid base64")
)

// Plaintext decodes the secret's base64 payload. Payloads that are not
// base64 are returned as-is only when decoding is clearly impossible for
// structural reasons; a corrupt payload yields ErrNotEncoded without the
// content.
func (s *Secret) Plaintext() ([]byte, error) {
	if s.Content == "" {
		return nil, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(s.Content)
	if err != nil {
		return nil, ErrNotEncoded
	}
	return decoded, nil
}
