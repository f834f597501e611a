// Package application composes the domain pieces into per-call use cases:
// secret and identity resolution, tool execution, and installation.
package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/opsforge/opsforge/domain/envelope"
	"github.com/opsforge/opsforge/domain/settings"
	"github.com/opsforge/opsforge/infrastructure/logging"
	"github.com/opsforge/opsforge/pack/vault"
)

// SecretResolver fetches and decodes vault secrets referenced from settings.
// It never returns or logs secret content on failure: errors carry only the
// secret identifier, and success logs the identifier and the decoded length.
type SecretResolver struct {
	vault vault.Provider
}

// NewSecretResolver creates a resolver over a vault provider.
func NewSecretResolver(provider vault.Provider) (*SecretResolver, error) {
	if provider == nil {
		return nil, errors.New("vault provider is required")
	}
	return &SecretResolver{vault: provider}, nil
}

// Resolve fetches the secret with the given identifier and returns its
// decoded plaintext.
func (r *SecretResolver) Resolve(ctx context.Context, secretID string) ([]byte, error) {
	if secretID == "" {
		return nil, envelope.NewError(envelope.KindResolution, "secret identifier is empty")
	}

	secret, err := r.vault.GetSecret(ctx, secretID)
	if err != nil {
		return nil, envelope.Wrap(envelope.KindResolution,
			fmt.Sprintf("could not fetch secret %s", secretID), err)
	}

	plaintext, err := secret.Plaintext()
	if err != nil {
		// The decode error is structural; the payload never rides along.
		return nil, envelope.Wrap(envelope.KindResolution,
			fmt.Sprintf("could not decode secret %s", secretID), err)
	}

	logging.Debug().
		Add(logging.SecretID(secretID)).
		Add(logging.SecretBytes(len(plaintext))).
		Msg("secret resolved")

	return plaintext, nil
}

// ResolveKey looks up a secret identifier in the snapshot under key and
// resolves it. A missing key is a not_configured error naming the key, so
// callers can surface it without string matching.
func (r *SecretResolver) ResolveKey(ctx context.Context, snapshot settings.Snapshot, key string) ([]byte, error) {
	secretID, ok := snapshot.Value(key)
	if !ok {
		return nil, envelope.NotConfigured(key, snapshot.Agent)
	}
	return r.Resolve(ctx, secretID)
}
