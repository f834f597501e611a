package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/opsforge/opsforge/domain/settings"
)

// configOptions holds options shared by the config subcommands.
type configOptions struct {
	storeDSN string
	agent    string
}

// newConfigCmd creates the config command tree.
func (a *App) newConfigCmd() *cobra.Command {
	opts := &configOptions{}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write per-agent settings",
		Long: `Config manipulates the key/value settings that drive tool behavior.
Every entry is scoped to one agent; the same key can hold different values
for different agents. Boolean values are stored canonically as "true" or
"false".`,
	}

	cmd.PersistentFlags().StringVar(&opts.agent, "agent", "", "Agent the settings belong to (required)")
	cmd.PersistentFlags().StringVar(&opts.storeDSN, "store", "memory", "Settings store (\"memory\" or a SQLite DSN)")
	_ = cmd.MarkPersistentFlagRequired("agent")

	cmd.AddCommand(
		a.newConfigGetCmd(opts),
		a.newConfigSetCmd(opts),
		a.newConfigListCmd(opts),
		a.newConfigDeleteCmd(opts),
	)

	return cmd
}

func (a *App) newConfigGetCmd(opts *configOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), opts.storeDSN, func(ctx context.Context, store settings.Store) error {
				values, err := store.Get(ctx, opts.agent)
				if err != nil {
					return err
				}
				value, ok := values[args[0]]
				if !ok {
					return fmt.Errorf("key %q is not configured for agent %q", args[0], opts.agent)
				}
				fmt.Fprintln(a.stdout, value)
				return nil
			})
		},
	}
}

func (a *App) newConfigSetCmd(opts *configOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write one setting value",
		Long: `Set writes a value for (key, agent), replacing any existing value.
Boolean keys such as use_resource_principal are normalized to "true" or
"false" before the write; every other value is stored as given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), opts.storeDSN, func(ctx context.Context, store settings.Store) error {
				value := args[1]
				if args[0] == settings.KeyUseResourcePrincipal {
					if b, ok := settings.ParseBool(value); ok {
						value = settings.FormatBool(b)
					}
				}
				return store.Upsert(ctx, args[0], value, opts.agent)
			})
		},
	}
}

func (a *App) newConfigListCmd(opts *configOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print all settings for an agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), opts.storeDSN, func(ctx context.Context, store settings.Store) error {
				values, err := store.Get(ctx, opts.agent)
				if err != nil {
					return err
				}
				keys := make([]string, 0, len(values))
				for k := range values {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(a.stdout, "%s=%s\n", k, values[k])
				}
				return nil
			})
		},
	}
}

func (a *App) newConfigDeleteCmd(opts *configOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), opts.storeDSN, func(ctx context.Context, store settings.Store) error {
				return store.Delete(ctx, args[0], opts.agent)
			})
		},
	}
}

// withStore opens the settings store, runs fn, and closes the store.
func (a *App) withStore(ctx context.Context, dsn string, fn func(context.Context, settings.Store) error) error {
	store, err := a.openStore(dsn)
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	defer func() { _ = store.Close() }()
	return fn(ctx, store)
}
