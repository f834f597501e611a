// Package tool provides the domain model for registered agent tools.
package tool

// Annotations describe tool behavior for the consuming agent platform.
type Annotations struct {
	// ReadOnly indicates the tool has no side effects.
	ReadOnly bool `json:"read_only"`

	// Destructive indicates the tool may cause irreversible changes.
	Destructive bool `json:"destructive"`

	// Idempotent indicates multiple calls with same input yield same result.
	Idempotent bool `json:"idempotent"`

	// Tags are arbitrary labels for categorization.
	Tags []string `json:"tags,omitempty"`
}

// DefaultAnnotations returns annotations with safe defaults.
func DefaultAnnotations() Annotations {
	return Annotations{}
}
