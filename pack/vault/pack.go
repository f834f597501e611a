package vault

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/opsforge/opsforge/domain/envelope"
	"github.com/opsforge/opsforge/domain/tool"
	"github.com/opsforge/opsforge/domain/toolset"
)

// Config configures the vault pack.
type Config struct {
	// Provider is the secrets provider (required).
	Provider Provider

	// Agent is the owning agent name, echoed in error envelopes.
	Agent string

	// Timeout for operations.
	Timeout time.Duration
}

// Option configures the vault pack.
type Option func(*Config)

// WithTimeout sets the operation timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithAgent sets the owning agent name.
func WithAgent(agent string) Option {
	return func(c *Config) {
		c.Agent = agent
	}
}

// New creates the vault toolset.
func New(provider Provider, opts ...Option) (*toolset.Toolset, error) {
	if provider == nil {
		return nil, errors.New("vault provider is required")
	}

	cfg := Config{
		Provider: provider,
		Timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return toolset.NewBuilder("vault").
		WithAgent(cfg.Agent).
		WithDescription("Secret access operations (" + provider.Name() + ")").
		WithVersion("1.0.0").
		AddTools(
			getSecretTool(&cfg),
			secretMetadataTool(&cfg),
		).
		Build(), nil
}

// getSecretInput is the input for the vault_get_secret tool.
type getSecretInput struct {
	SecretID string `json:"secret_id"`
}

// getSecretOutput is the output for the vault_get_secret tool. Content is the
// decoded plaintext; it appears in the envelope only, never in logs or errors.
type getSecretOutput struct {
	SecretID string `json:"secret_id"`
	Content  string `json:"content"`
	Bytes    int    `json:"bytes"`
}

func getSecretTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("vault_get_secret").
		WithInstruction("Retrieve and decode a vault secret by its identifier. Returns the plaintext content.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in getSecretInput
			if err := json.Unmarshal(input, &in); err != nil {
				return envelope.Fail(envelope.Wrap(envelope.KindInvalidInput, "invalid input", err), nil), nil
			}

			echo := map[string]any{"secret_id": in.SecretID}

			if in.SecretID == "" {
				return envelope.Fail(envelope.NewError(envelope.KindInvalidInput, "secret_id is required"), echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			secret, err := cfg.Provider.GetSecret(ctx, in.SecretID)
			if err != nil {
				return envelope.Fail(envelope.Wrap(envelope.KindResolution, "secret retrieval failed", err), echo), nil
			}

			plaintext, err := secret.Plaintext()
			if err != nil {
				// Decode failures stay opaque; the payload never
				// rides along in the message.
				return envelope.Fail(envelope.Wrap(envelope.KindResolution, "secret decode failed", err), echo), nil
			}

			return envelope.Success(getSecretOutput{
				SecretID: in.SecretID,
				Content:  string(plaintext),
				Bytes:    len(plaintext),
			})
		}).
		MustBuild()
}

// secretMetadataInput is the input for the vault_secret_metadata tool.
type secretMetadataInput struct {
	SecretID string `json:"secret_id"`
}

// secretMetadataOutput is the output for the vault_secret_metadata tool.
type secretMetadataOutput struct {
	SecretID string    `json:"secret_id"`
	Metadata *Metadata `json:"metadata"`
}

func secretMetadataTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("vault_secret_metadata").
		WithInstruction("Get metadata for a vault secret without retrieving its value.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in secretMetadataInput
			if err := json.Unmarshal(input, &in); err != nil {
				return envelope.Fail(envelope.Wrap(envelope.KindInvalidInput, "invalid input", err), nil), nil
			}

			echo := map[string]any{"secret_id": in.SecretID}

			if in.SecretID == "" {
				return envelope.Fail(envelope.NewError(envelope.KindInvalidInput, "secret_id is required"), echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			meta, err := cfg.Provider.GetMetadata(ctx, in.SecretID)
			if err != nil {
				return envelope.Fail(envelope.Wrap(envelope.KindResolution, "metadata retrieval failed", err), echo), nil
			}

			return envelope.Success(secretMetadataOutput{
				SecretID: in.SecretID,
				Metadata: meta,
			})
		}).
		MustBuild()
}
