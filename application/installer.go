package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/opsforge/opsforge/domain/settings"
	"github.com/opsforge/opsforge/domain/tool"
	"github.com/opsforge/opsforge/domain/toolset"
	"github.com/opsforge/opsforge/infrastructure/config"
	"github.com/opsforge/opsforge/infrastructure/logging"
)

// ToolWriter is the registration surface the installer writes to.
// infrastructure/storage/memory.ToolRegistry satisfies it.
type ToolWriter interface {
	// Replace registers a tool, dropping any existing registration with
	// the same name first.
	Replace(t tool.Tool) error
}

// KeyError records one failed settings merge.
type KeyError struct {
	Key string `json:"key"`
	Err string `json:"error"`
}

// ToolError records one failed tool registration.
type ToolError struct {
	Tool string `json:"tool"`
	Err  string `json:"error"`
}

// Report summarizes an install run. Installation is best effort: individual
// failures are collected here rather than aborting the run.
type Report struct {
	Agent           string      `json:"agent"`
	KeysWritten     int         `json:"keys_written"`
	KeyErrors       []KeyError  `json:"key_errors,omitempty"`
	ToolsRegistered int         `json:"tools_registered"`
	ToolErrors      []ToolError `json:"tool_errors,omitempty"`
}

// Failed reports whether anything in the run went wrong.
func (r *Report) Failed() bool {
	return len(r.KeyErrors) > 0 || len(r.ToolErrors) > 0
}

// Installer merges an install profile into the settings store and registers
// toolsets. Running it twice with the same inputs converges on the same
// state: upserts are last-write-wins and registration is drop-then-create.
type Installer struct {
	store    settings.Store
	registry ToolWriter
}

// NewInstaller creates an installer.
func NewInstaller(store settings.Store, registry ToolWriter) (*Installer, error) {
	if store == nil {
		return nil, errors.New("settings store is required")
	}
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}
	return &Installer{store: store, registry: registry}, nil
}

// Install merges the profile for the agent and registers every tool in the
// given toolsets. A nil profile skips the merge and only registers tools.
func (i *Installer) Install(ctx context.Context, profile *config.InstallProfile, agent string, sets ...*toolset.Toolset) *Report {
	report := &Report{Agent: agent}

	if profile != nil {
		i.merge(ctx, profile, agent, report)
	}
	for _, set := range sets {
		if set == nil {
			continue
		}
		i.register(set, report)
	}

	logging.Info().
		Add(logging.Agent(agent)).
		Add(logging.Count(report.ToolsRegistered)).
		Add(logging.Str("keys_written", fmt.Sprint(report.KeysWritten))).
		Msg("install finished")

	return report
}

// merge upserts the profile's entries one by one, continuing past failures.
func (i *Installer) merge(ctx context.Context, profile *config.InstallProfile, agent string, report *Report) {
	for _, entry := range profile.Entries(agent) {
		if err := i.store.Upsert(ctx, entry.Key, entry.Value, entry.Agent); err != nil {
			report.KeyErrors = append(report.KeyErrors, KeyError{Key: entry.Key, Err: err.Error()})
			logging.Warn().
				Add(logging.Agent(agent)).
				Add(logging.Str("key", entry.Key)).
				Add(logging.ErrorField(err)).
				Msg("settings merge failed for key")
			continue
		}
		report.KeysWritten++
	}
}

// register replace-registers every tool of a toolset.
func (i *Installer) register(set *toolset.Toolset, report *Report) {
	for _, name := range set.ToolNames() {
		t, ok := set.GetTool(name)
		if !ok {
			continue
		}
		if err := i.registry.Replace(t); err != nil {
			report.ToolErrors = append(report.ToolErrors, ToolError{Tool: name, Err: err.Error()})
			continue
		}
		report.ToolsRegistered++
	}
}
