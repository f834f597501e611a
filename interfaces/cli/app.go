// Package cli provides the opsforge command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opsforge/opsforge/domain/settings"
	"github.com/opsforge/opsforge/infrastructure/storage/memory"
	"github.com/opsforge/opsforge/infrastructure/storage/sqlite"
)

// Version information set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// App represents the CLI application.
type App struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer

	// openStore builds the settings store for a --store value. Tests
	// swap it to inject a shared in-memory store.
	openStore func(dsn string) (settings.Store, error)
}

// New creates a new CLI application.
func New() *App {
	app := &App{
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		openStore: openStore,
	}

	app.root = &cobra.Command{
		Use:   "opsforge",
		Short: "Configuration-driven API facade tools for agents",
		Long: `opsforge installs, configures, and serves JSON-in/JSON-out facade tools
over object storage, SQL databases, web search, secret vaults, and database
provisioning. Tool behavior is driven entirely by per-agent settings; every
call returns a single JSON envelope with an explicit status.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newInstallCmd(),
		app.newConfigCmd(),
		app.newListToolsCmd(),
		app.newCallCmd(),
		app.newServeCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

// newVersionCmd creates the version command.
func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "opsforge version %s\n", Version)
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(a.stdout, "  Build date: %s\n", BuildDate)
		},
	}
}

// openStore maps a --store value onto a settings store. "memory" (the
// default) keeps everything in process; anything else is treated as a
// SQLite DSN.
func openStore(dsn string) (settings.Store, error) {
	if dsn == "" || dsn == "memory" {
		return memory.NewSettingsStore(), nil
	}

	cfg := sqlite.DefaultConfig()
	cfg.DSN = dsn
	if !strings.HasPrefix(dsn, "file:") {
		cfg.DSN = "file:" + dsn
	}
	return sqlite.NewSettingsStore(cfg)
}
