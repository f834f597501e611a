package tool

// Registry defines the interface for tool registration and lookup.
// This is a repository interface - implementations are in infrastructure.
type Registry interface {
	// Register adds a tool to the registry. Registering an existing name
	// fails with ErrToolExists.
	Register(tool Tool) error

	// Replace installs a tool with drop-then-create semantics: any existing
	// registration under the same name is removed first. Replace is
	// idempotent and is what installers use.
	Replace(tool Tool) error

	// Get retrieves a tool by name.
	Get(name string) (Tool, bool)

	// List returns all registered tools.
	List() []Tool

	// Names returns all registered tool names.
	Names() []string

	// Has checks if a tool is registered.
	Has(name string) bool

	// Unregister removes a tool from the registry.
	Unregister(name string) error
}
