package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opsforge/opsforge/application"
)

// newListToolsCmd creates the list-tools command.
func (a *App) newListToolsCmd() *cobra.Command {
	opts := &envOptions{}

	cmd := &cobra.Command{
		Use:   "list-tools",
		Short: "Print the tools the binary would serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.buildEnv(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			for _, set := range e.sets {
				fmt.Fprintf(a.stdout, "%s (%s)\n", set.Name, set.Description)
				names := set.ToolNames()
				sort.Strings(names)
				for _, name := range names {
					t, ok := set.GetTool(name)
					if !ok {
						continue
					}
					fmt.Fprintf(a.stdout, "  %-28s %s\n", name, firstLine(t.Instruction()))
				}
			}
			return nil
		},
	}

	bindEnvFlags(cmd, opts)
	return cmd
}

// callOptions holds options for the call command.
type callOptions struct {
	envOptions
	input     string
	inputFile string
}

// newCallCmd creates the call command.
func (a *App) newCallCmd() *cobra.Command {
	opts := &callOptions{}

	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Execute one tool and print its JSON envelope",
		Long: `Call executes a single tool against the configured providers and prints
the result envelope. The envelope always carries a "status" key; an error
status is still a successful invocation, so the exit code stays zero.

Examples:
  opsforge call web_search --agent reports --input '{"query":"release notes"}'
  opsforge call sql_run --agent reports --db data.db --input-file query.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCall(cmd.Context(), args[0], opts)
		},
	}

	bindEnvFlags(cmd, &opts.envOptions)
	cmd.Flags().StringVar(&opts.input, "input", "", "Tool input as a JSON object")
	cmd.Flags().StringVar(&opts.inputFile, "input-file", "", "Read the tool input from a file")

	return cmd
}

// runCall executes the call command.
func (a *App) runCall(ctx context.Context, name string, opts *callOptions) error {
	input, err := readInput(opts)
	if err != nil {
		return err
	}

	e, err := a.buildEnv(ctx, opts.envOptions)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	executor, err := application.NewExecutor(e.registry,
		application.WithMiddleware(application.LoggingMiddleware()))
	if err != nil {
		return err
	}

	out := executor.Execute(ctx, name, input)

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, out, "", "  "); err != nil {
		fmt.Fprintln(a.stdout, string(out))
		return nil
	}
	fmt.Fprintln(a.stdout, pretty.String())
	return nil
}

// readInput resolves the tool input from the flags. No flag means an empty
// object, which lets zero-argument tools run without ceremony.
func readInput(opts *callOptions) (json.RawMessage, error) {
	if opts.input != "" && opts.inputFile != "" {
		return nil, fmt.Errorf("--input and --input-file are mutually exclusive")
	}

	raw := []byte(opts.input)
	if opts.inputFile != "" {
		data, err := os.ReadFile(opts.inputFile)
		if err != nil {
			return nil, fmt.Errorf("read input file: %w", err)
		}
		raw = data
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}

	if !json.Valid(raw) {
		return nil, fmt.Errorf("tool input is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

// bindEnvFlags binds the shared environment flags to a command.
func bindEnvFlags(cmd *cobra.Command, opts *envOptions) {
	cmd.Flags().StringVar(&opts.agent, "agent", "", "Agent the settings belong to")
	cmd.Flags().StringVar(&opts.storeDSN, "store", "memory", "Settings store (\"memory\" or a SQLite DSN)")
	cmd.Flags().StringVar(&opts.dbDSN, "db", "", "SQLite DSN for the database toolset")
	cmd.Flags().BoolVar(&opts.writeAccess, "write-access", false, "Expose write and delete tools")
}

// firstLine truncates an instruction to its first line for listing.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
