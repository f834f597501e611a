package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsforge/opsforge/application"
	"github.com/opsforge/opsforge/domain/settings"
	"github.com/opsforge/opsforge/infrastructure/config"
	"github.com/opsforge/opsforge/infrastructure/logging"
	mcp "github.com/opsforge/opsforge/infrastructure/mcp"
	"github.com/opsforge/opsforge/infrastructure/observability"
)

// serveOptions holds options for the serve command.
type serveOptions struct {
	envOptions
	transport    string
	addr         string
	watchProfile string
	traceExport  string
	otlpEndpoint string
	sampleRate   float64
}

// newServeCmd creates the serve command.
func (a *App) newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the registered tools over the Model Context Protocol",
		Long: `Serve exposes every registered tool over MCP. The stdio transport is
meant for clients that spawn the binary; the http transport listens on an
address.

Examples:
  opsforge serve --agent reports --store opsforge.db
  opsforge serve --agent reports --transport http --addr :8080
  opsforge serve --agent reports --watch-config profile.yaml
  opsforge serve --agent reports --trace otlp --otlp-endpoint localhost:4317`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd.Context(), opts)
		},
	}

	bindEnvFlags(cmd, &opts.envOptions)
	cmd.Flags().StringVar(&opts.transport, "transport", "stdio", "Transport (\"stdio\" or \"http\")")
	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "Listen address for the http transport")
	cmd.Flags().StringVar(&opts.watchProfile, "watch-config", "", "Profile file to re-merge into the settings store on change")
	cmd.Flags().StringVar(&opts.traceExport, "trace", "none", "Trace exporter (\"none\", \"stdout\", or \"otlp\")")
	cmd.Flags().StringVar(&opts.otlpEndpoint, "otlp-endpoint", "localhost:4317", "OTLP gRPC endpoint")
	cmd.Flags().Float64Var(&opts.sampleRate, "sample-rate", 1.0, "Trace sampling rate (0.0-1.0)")

	return cmd
}

// runServe executes the serve command.
func (a *App) runServe(ctx context.Context, opts *serveOptions) error {
	logging.Init(logging.ServeConfig())

	obs, err := newObservability(opts)
	if err != nil {
		return err
	}
	defer func() { _ = obs.Shutdown(context.Background()) }()

	e, err := a.buildEnv(ctx, opts.envOptions)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	logging.Info().
		Add(logging.Str("region", e.identity.Region)).
		Add(logging.Str("credential", e.identity.CredentialName)).
		Add(logging.Count(len(e.registry.Names()))).
		Msg("serving tools")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if opts.watchProfile != "" {
		watcher, err := newProfileWatcher(e.store, opts)
		if err != nil {
			return err
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Warn().
					Add(logging.Str("path", opts.watchProfile)).
					Add(logging.ErrorField(err)).
					Msg("profile watcher stopped")
			}
		}()
	}

	executor, err := application.NewExecutor(e.registry,
		application.WithMiddleware(observability.Middleware(obs)),
		application.WithMiddleware(application.LoggingMiddleware()))
	if err != nil {
		return err
	}

	srv, err := mcp.NewServer(mcp.ServerConfig{
		Name:        "opsforge",
		Version:     Version,
		Registry:    e.registry,
		Runner:      executor,
		Description: "Configuration-driven API facade tools",
		Instructions: "Tools return a JSON envelope with a status key. " +
			"An error status carries a machine-readable kind; inspect it " +
			"before retrying, because not_configured and invalid_input " +
			"never succeed on retry.",
	})
	if err != nil {
		return err
	}

	switch opts.transport {
	case "stdio":
		return srv.ServeStdio(ctx)
	case "http":
		return srv.ServeHTTP(ctx, opts.addr)
	default:
		return fmt.Errorf("unknown transport %q (want stdio or http)", opts.transport)
	}
}

// newProfileWatcher builds the watcher that keeps the settings store in sync
// with an on-disk profile while the server runs.
func newProfileWatcher(store settings.Store, opts *serveOptions) (*config.Watcher, error) {
	agent := opts.agent
	if agent == "" {
		agent = "default"
	}
	return config.NewWatcher(config.NewLoader(), store, opts.watchProfile, agent)
}

// newObservability builds the tracing setup for the serve flags.
func newObservability(opts *serveOptions) (*observability.Provider, error) {
	obsOpts := []observability.Option{
		observability.WithServiceName("opsforge"),
		observability.WithServiceVersion(Version),
		observability.WithSampleRate(opts.sampleRate),
		observability.WithMetrics(),
	}

	switch opts.traceExport {
	case "none":
		// noop exporter is the default
	case "stdout":
		obsOpts = append(obsOpts, observability.WithStdoutTracing())
	case "otlp":
		obsOpts = append(obsOpts,
			observability.WithOTLP(opts.otlpEndpoint),
			observability.WithInsecure())
	default:
		return nil, fmt.Errorf("unknown trace exporter %q (want none, stdout, or otlp)", opts.traceExport)
	}

	return observability.New(obsOpts...)
}
