// Package toolset provides types for grouping tools into agent definitions.
//
// A toolset is the unit the installer registers: a named collection of tools
// for one logical agent, plus the task and team wiring the external platform
// consumes as pure configuration data.
package toolset

import (
	"encoding/json"

	"github.com/opsforge/opsforge/domain/tool"
)

// Toolset is a collection of related tools owned by one agent.
type Toolset struct {
	// Name is the unique identifier for the toolset.
	Name string

	// Agent is the logical agent the tools are scoped to.
	Agent string

	// Description explains what the toolset provides.
	Description string

	// Version is the semantic version of the toolset.
	Version string

	// Tools is the collection of tools in this toolset.
	Tools []tool.Tool

	// Metadata holds additional toolset information.
	Metadata map[string]string
}

// ToolNames returns the names of all tools in the toolset.
func (s *Toolset) ToolNames() []string {
	names := make([]string, len(s.Tools))
	for i, t := range s.Tools {
		names[i] = t.Name()
	}
	return names
}

// GetTool returns a tool by name from the toolset.
func (s *Toolset) GetTool(name string) (tool.Tool, bool) {
	for _, t := range s.Tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// Task binds an instruction to the tools an agent may use for it.
type Task struct {
	Name        string   `json:"name"`
	Instruction string   `json:"instruction"`
	Tools       []string `json:"tools"`
}

// AgentDefinition is the platform-facing description of one agent: its
// tasks, tools, and profile. The consuming platform is the source of truth
// for this data at execution time.
type AgentDefinition struct {
	Name      string           `json:"name"`
	Profile   string           `json:"profile,omitempty"`
	Tasks     []Task           `json:"tasks"`
	Tools     []ToolDefinition `json:"tools"`
	TeamRoles []string         `json:"team_roles,omitempty"`
}

// ToolDefinition is the registration record for one tool.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Instruction string          `json:"instruction"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// Definition emits the agent definition for this toolset with the given
// tasks. The result is configuration data for the agent platform; nothing
// in this repository interprets it.
func (s *Toolset) Definition(profile string, tasks []Task) AgentDefinition {
	def := AgentDefinition{
		Name:    s.Agent,
		Profile: profile,
		Tasks:   tasks,
	}
	for _, t := range s.Tools {
		td := ToolDefinition{
			Name:        t.Name(),
			Instruction: t.Instruction(),
		}
		if !t.InputSchema().IsEmpty() {
			td.InputSchema = t.InputSchema().Raw()
		}
		def.Tools = append(def.Tools, td)
	}
	return def
}

// Builder provides a fluent API for constructing toolsets.
type Builder struct {
	set *Toolset
}

// NewBuilder creates a new toolset builder.
func NewBuilder(name string) *Builder {
	return &Builder{
		set: &Toolset{
			Name:     name,
			Agent:    name,
			Tools:    make([]tool.Tool, 0),
			Metadata: make(map[string]string),
		},
	}
}

// WithAgent sets the owning agent name when it differs from the toolset name.
func (b *Builder) WithAgent(agent string) *Builder {
	b.set.Agent = agent
	return b
}

// WithDescription sets the toolset description.
func (b *Builder) WithDescription(desc string) *Builder {
	b.set.Description = desc
	return b
}

// WithVersion sets the toolset version.
func (b *Builder) WithVersion(version string) *Builder {
	b.set.Version = version
	return b
}

// AddTool adds a tool to the toolset.
func (b *Builder) AddTool(t tool.Tool) *Builder {
	b.set.Tools = append(b.set.Tools, t)
	return b
}

// AddTools adds multiple tools to the toolset.
func (b *Builder) AddTools(tools ...tool.Tool) *Builder {
	b.set.Tools = append(b.set.Tools, tools...)
	return b
}

// WithMetadata adds metadata to the toolset.
func (b *Builder) WithMetadata(key, value string) *Builder {
	b.set.Metadata[key] = value
	return b
}

// Build returns the constructed toolset.
func (b *Builder) Build() *Toolset {
	return b.set
}
