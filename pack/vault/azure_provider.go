package vault

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// KeyVaultAPI is the subset of the azsecrets client the provider needs.
type KeyVaultAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// AzureProvider retrieves secrets from Azure Key Vault.
type AzureProvider struct {
	client   KeyVaultAPI
	vaultURL string
}

// AzureConfig configures the Azure provider.
type AzureConfig struct {
	// VaultURL is the Key Vault URL (e.g., https://my-vault.vault.azure.net/).
	VaultURL string

	// TenantID, ClientID and ClientSecret enable service principal auth.
	// When unset, the default credential chain is used.
	TenantID     string
	ClientID     string
	ClientSecret string
}

// AzureOption configures the Azure provider.
type AzureOption func(*azureProviderConfig)

type azureProviderConfig struct {
	client KeyVaultAPI
}

// WithKeyVaultClient injects a pre-built client (for testing).
func WithKeyVaultClient(client KeyVaultAPI) AzureOption {
	return func(c *azureProviderConfig) {
		c.client = client
	}
}

// NewAzureProvider creates an Azure Key Vault provider.
func NewAzureProvider(cfg AzureConfig, opts ...AzureOption) (*AzureProvider, error) {
	if cfg.VaultURL == "" {
		return nil, errors.New("vault url is required for azure key vault")
	}

	pCfg := azureProviderConfig{}
	for _, opt := range opts {
		opt(&pCfg)
	}

	if pCfg.client == nil {
		var cred azcore.TokenCredential
		var err error
		if cfg.TenantID != "" && cfg.ClientID != "" && cfg.ClientSecret != "" {
			cred, err = azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
		} else {
			cred, err = azidentity.NewDefaultAzureCredential(nil)
		}
		if err != nil {
			return nil, fmt.Errorf("azure credential: %w", err)
		}

		client, err := azsecrets.NewClient(cfg.VaultURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("azure key vault client: %w", err)
		}
		pCfg.client = client
	}

	return &AzureProvider{
		client:   pCfg.client,
		vaultURL: cfg.VaultURL,
	}, nil
}

// Name returns the provider name.
func (p *AzureProvider) Name() string {
	return "azure-key-vault"
}

// GetSecret retrieves a secret bundle by name. An empty version fetches the
// latest.
func (p *AzureProvider) GetSecret(ctx context.Context, id string) (*Secret, error) {
	if id == "" {
		return nil, ErrSecretNotFound
	}

	resp, err := p.client.GetSecret(ctx, id, "", nil)
	if err != nil {
		return nil, p.wrapError(err)
	}

	secret := &Secret{ID: id, Name: id}
	if resp.Value != nil {
		secret.Content = base64.StdEncoding.EncodeToString([]byte(*resp.Value))
	}
	if resp.ID != nil {
		secret.Version = resp.ID.Version()
	}
	return secret, nil
}

// GetMetadata retrieves secret metadata without exposing the value.
func (p *AzureProvider) GetMetadata(ctx context.Context, id string) (*Metadata, error) {
	if id == "" {
		return nil, ErrSecretNotFound
	}

	resp, err := p.client.GetSecret(ctx, id, "", nil)
	if err != nil {
		return nil, p.wrapError(err)
	}

	meta := &Metadata{ID: id, Name: id}
	if resp.ID != nil {
		meta.Version = resp.ID.Version()
	}
	if resp.Attributes != nil && resp.Attributes.Created != nil {
		meta.CreatedAt = *resp.Attributes.Created
	}
	if len(resp.Tags) > 0 {
		meta.Tags = make(map[string]string, len(resp.Tags))
		for k, v := range resp.Tags {
			if v != nil {
				meta.Tags[k] = *v
			}
		}
	}
	return meta, nil
}

// Close releases provider resources.
func (p *AzureProvider) Close() error {
	return nil
}

func (p *AzureProvider) wrapError(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == 404 {
		return ErrSecretNotFound
	}
	return fmt.Errorf("key vault: %w", err)
}

var _ Provider = (*AzureProvider)(nil)
