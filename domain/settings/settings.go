// Package settings provides the domain model for agent-scoped configuration.
//
// A setting is one named value scoped to one logical agent (tool group).
// Values are opaque strings; typed access goes through Snapshot.
package settings

import (
	"context"
	"strings"
)

// Entry is one configuration row. (Key, Agent) is unique.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Agent string `json:"agent"`
}

// Store persists configuration entries.
// This is a repository interface - implementations are in infrastructure/storage.
type Store interface {
	// Get returns all entries for an agent as a flat map. An unknown agent
	// yields an empty map, not an error.
	Get(ctx context.Context, agent string) (map[string]string, error)

	// Upsert writes a value, replacing any existing value for (key, agent).
	// Applying the same upsert twice leaves exactly one entry.
	Upsert(ctx context.Context, key, value, agent string) error

	// Entries returns all entries for an agent.
	Entries(ctx context.Context, agent string) ([]Entry, error)

	// Delete removes one entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, key, agent string) error

	// Close releases store resources.
	Close() error
}

// Well-known setting keys.
const (
	KeyCredentialName        = "credential_name"
	KeyVaultRegion           = "vault_region"
	KeyAPIKeySecretID        = "api_key_vault_secret_id"
	KeyConnectionSecretID    = "connection_vault_secret_id"
	KeyCompartmentName       = "compartment_name"
	KeyCompartmentID         = "compartment_id"
	KeyNamespace             = "namespace"
	KeyUseResourcePrincipal  = "use_resource_principal"
	KeyAIProfile             = "ai_profile"
	KeySearchEndpoint        = "search_endpoint"
	KeySearchAPIKeySecretID  = "search_api_key_vault_secret_id"
)

// Defaults applied when a key is absent.
const (
	DefaultRegion    = "us-east-1"
	DefaultAIProfile = "default"
)

// ParseBool interprets a stored boolean value. The canonical encoding is
// "true"/"false"; YES/NO and ON/OFF are accepted for entries written by
// older installers. Empty and unrecognized values report ok=false.
func ParseBool(value string) (b bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "on", "1":
		return true, true
	case "false", "no", "off", "0":
		return false, true
	default:
		return false, false
	}
}

// FormatBool returns the canonical stored encoding of a boolean.
func FormatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Snapshot is a typed, immutable view over one agent's settings, loaded once
// per facade call and passed by value.
type Snapshot struct {
	Agent  string
	values map[string]string
}

// Load fetches an agent's settings into a snapshot.
func Load(ctx context.Context, store Store, agent string) (Snapshot, error) {
	values, err := store.Get(ctx, agent)
	if err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(agent, values), nil
}

// NewSnapshot builds a snapshot from an existing map.
func NewSnapshot(agent string, values map[string]string) Snapshot {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Snapshot{Agent: agent, values: copied}
}

// Value returns a raw value and whether it is present and non-empty.
func (s Snapshot) Value(key string) (string, bool) {
	v, ok := s.values[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ValueOr returns a raw value or the given default.
func (s Snapshot) ValueOr(key, def string) string {
	if v, ok := s.Value(key); ok {
		return v
	}
	return def
}

// Bool returns a boolean setting; absent or unrecognized values are false.
func (s Snapshot) Bool(key string) bool {
	v, ok := s.Value(key)
	if !ok {
		return false
	}
	b, _ := ParseBool(v)
	return b
}

// CredentialName returns the configured credential name.
func (s Snapshot) CredentialName() (string, bool) {
	return s.Value(KeyCredentialName)
}

// Region returns the configured vault region, defaulted when absent.
func (s Snapshot) Region() string {
	return s.ValueOr(KeyVaultRegion, DefaultRegion)
}

// CompartmentID returns the configured compartment identifier.
func (s Snapshot) CompartmentID() (string, bool) {
	return s.Value(KeyCompartmentID)
}

// CompartmentName returns the configured compartment display name.
func (s Snapshot) CompartmentName() (string, bool) {
	return s.Value(KeyCompartmentName)
}

// AIProfile returns the configured AI profile name, defaulted when absent.
func (s Snapshot) AIProfile() string {
	return s.ValueOr(KeyAIProfile, DefaultAIProfile)
}

// UseResourcePrincipal reports whether ambient identity is enabled.
func (s Snapshot) UseResourcePrincipal() bool {
	return s.Bool(KeyUseResourcePrincipal)
}

// Len returns the number of settings in the snapshot.
func (s Snapshot) Len() int {
	return len(s.values)
}
