package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsforge/opsforge/application"
	"github.com/opsforge/opsforge/infrastructure/config"
)

// installOptions holds options for the install command.
type installOptions struct {
	envOptions
	profilePath string
}

// newInstallCmd creates the install command.
func (a *App) newInstallCmd() *cobra.Command {
	opts := &installOptions{}

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Merge an install profile and register the toolsets",
		Long: `Install merges a JSON or YAML profile into the settings store for one
agent and registers every toolset with the tool registry. The merge is
best effort: a key that fails to write is reported and the remaining keys
are still applied. Registration replaces existing tools, so installing
twice converges to the same state.

Examples:
  # Install a profile into the default in-memory store
  opsforge install -c profile.yaml --agent reports

  # Install into a SQLite store
  opsforge install -c profile.yaml --agent reports --store opsforge.db

  # Register toolsets without merging any settings
  opsforge install --agent reports --store opsforge.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInstall(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.profilePath, "config", "c", "", "Path to install profile (JSON or YAML)")
	cmd.Flags().StringVar(&opts.agent, "agent", "", "Agent the settings belong to (required)")
	cmd.Flags().StringVar(&opts.storeDSN, "store", "memory", "Settings store (\"memory\" or a SQLite DSN)")
	cmd.Flags().StringVar(&opts.dbDSN, "db", "", "SQLite DSN for the database toolset")
	cmd.Flags().BoolVar(&opts.writeAccess, "write-access", false, "Register write and delete tools")

	_ = cmd.MarkFlagRequired("agent")

	return cmd
}

// runInstall executes the install command.
func (a *App) runInstall(ctx context.Context, opts *installOptions) error {
	var profile *config.InstallProfile
	if opts.profilePath != "" {
		loaded, err := config.NewLoader().LoadFile(opts.profilePath)
		if err != nil {
			return fmt.Errorf("load install profile: %w", err)
		}
		profile = loaded
	}

	e, err := a.buildEnv(ctx, opts.envOptions)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	installer, err := application.NewInstaller(e.store, e.registry)
	if err != nil {
		return err
	}

	report := installer.Install(ctx, profile, opts.agent, e.sets...)

	fmt.Fprintf(a.stdout, "Agent: %s\n", report.Agent)
	fmt.Fprintf(a.stdout, "Keys written: %d\n", report.KeysWritten)
	fmt.Fprintf(a.stdout, "Tools registered: %d\n", report.ToolsRegistered)
	for _, ke := range report.KeyErrors {
		fmt.Fprintf(a.stderr, "key %s: %v\n", ke.Key, ke.Err)
	}
	for _, te := range report.ToolErrors {
		fmt.Fprintf(a.stderr, "tool %s: %v\n", te.Tool, te.Err)
	}

	if report.Failed() {
		return fmt.Errorf("install completed with %d key and %d tool errors",
			len(report.KeyErrors), len(report.ToolErrors))
	}
	return nil
}
