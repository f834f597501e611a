package config

import (
	"github.com/opsforge/opsforge/domain/settings"
)

// InstallProfile is the installer input document. Every field is optional;
// defaults are applied at resolution time, not here, so a later install can
// clear a value without fighting a default.
type InstallProfile struct {
	// CredentialName names the cloud credential to sign API calls with.
	CredentialName string `json:"credential_name" yaml:"credential_name"`

	// VaultRegion is the region of the secrets vault.
	VaultRegion string `json:"vault_region" yaml:"vault_region"`

	// APIKeySecretID identifies the vault secret holding the API key.
	APIKeySecretID string `json:"api_key_vault_secret_id" yaml:"api_key_vault_secret_id"`

	// ConnectionSecretID identifies the vault secret holding the
	// database connection identifier.
	ConnectionSecretID string `json:"connection_vault_secret_id" yaml:"connection_vault_secret_id"`

	// CompartmentName is a human-readable compartment to resolve by name.
	CompartmentName string `json:"compartment_name" yaml:"compartment_name"`

	// CompartmentID pins the compartment directly, bypassing name lookup.
	CompartmentID string `json:"compartment_id" yaml:"compartment_id"`

	// Namespace pins the object storage namespace.
	Namespace string `json:"namespace" yaml:"namespace"`

	// UseResourcePrincipal switches signing to the instance's own identity.
	UseResourcePrincipal *bool `json:"use_resource_principal" yaml:"use_resource_principal"`

	// AIProfile names the NL2SQL profile to run generation under.
	AIProfile string `json:"ai_profile" yaml:"ai_profile"`

	// SearchEndpoint is the web search service URL.
	SearchEndpoint string `json:"search_endpoint" yaml:"search_endpoint"`

	// SearchAPIKeySecretID identifies the vault secret for the search key.
	SearchAPIKeySecretID string `json:"search_api_key_vault_secret_id" yaml:"search_api_key_vault_secret_id"`
}

// Entries converts the profile into settings entries for an agent. Absent
// fields produce no entry, so merging a sparse profile never clobbers keys it
// does not mention. Booleans are written in canonical form.
func (p *InstallProfile) Entries(agent string) []settings.Entry {
	var entries []settings.Entry

	add := func(key, value string) {
		if value == "" {
			return
		}
		entries = append(entries, settings.Entry{Key: key, Value: value, Agent: agent})
	}

	add(settings.KeyCredentialName, p.CredentialName)
	add(settings.KeyVaultRegion, p.VaultRegion)
	add(settings.KeyAPIKeySecretID, p.APIKeySecretID)
	add(settings.KeyConnectionSecretID, p.ConnectionSecretID)
	add(settings.KeyCompartmentName, p.CompartmentName)
	add(settings.KeyCompartmentID, p.CompartmentID)
	add(settings.KeyNamespace, p.Namespace)
	add(settings.KeyAIProfile, p.AIProfile)
	add(settings.KeySearchEndpoint, p.SearchEndpoint)
	add(settings.KeySearchAPIKeySecretID, p.SearchAPIKeySecretID)

	if p.UseResourcePrincipal != nil {
		entries = append(entries, settings.Entry{
			Key:   settings.KeyUseResourcePrincipal,
			Value: settings.FormatBool(*p.UseResourcePrincipal),
			Agent: agent,
		})
	}

	return entries
}
