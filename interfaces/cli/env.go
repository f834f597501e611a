package cli

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/opsforge/opsforge/application"
	"github.com/opsforge/opsforge/domain/settings"
	"github.com/opsforge/opsforge/domain/toolset"
	"github.com/opsforge/opsforge/infrastructure/logging"
	"github.com/opsforge/opsforge/infrastructure/storage/memory"
	"github.com/opsforge/opsforge/pack/database"
	"github.com/opsforge/opsforge/pack/dbaas"
	"github.com/opsforge/opsforge/pack/objectstore"
	"github.com/opsforge/opsforge/pack/vault"
	"github.com/opsforge/opsforge/pack/websearch"
)

// envOptions are the flags shared by every command that builds toolsets.
type envOptions struct {
	storeDSN    string
	agent       string
	dbDSN       string
	writeAccess bool
}

// env is the assembled runtime for one CLI invocation.
type env struct {
	store    settings.Store
	registry *memory.ToolRegistry
	sets     []*toolset.Toolset
	identity application.ResolvedContext

	closers []func() error
}

// Close releases everything the environment opened.
func (e *env) Close() error {
	var first error
	for _, fn := range e.closers {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// buildEnv opens the settings store and assembles the toolsets the binary
// serves. Providers are the in-process ones; production deployments swap
// them by linking their own main.
func (a *App) buildEnv(ctx context.Context, opts envOptions) (*env, error) {
	if opts.agent == "" {
		opts.agent = "default"
	}

	store, err := a.openStore(opts.storeDSN)
	if err != nil {
		return nil, fmt.Errorf("open settings store: %w", err)
	}

	e := &env{store: store, registry: memory.NewToolRegistry()}
	e.closers = append(e.closers, store.Close)

	snapshot, err := settings.Load(ctx, store, opts.agent)
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("load settings for agent %q: %w", opts.agent, err)
	}

	var osOpts []objectstore.MemoryOption
	if ns, ok := snapshot.Value(settings.KeyNamespace); ok {
		osOpts = append(osOpts, objectstore.WithNamespace(ns))
	}
	osProvider := objectstore.NewMemoryProvider(osOpts...)
	dbaasProvider := dbaas.NewMemoryProvider()

	identity, err := resolveIdentity(ctx, store, snapshot, osProvider, dbaasProvider)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.identity = identity

	sets, err := buildToolsets(ctx, e, snapshot, opts, osProvider, dbaasProvider)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.sets = sets

	for _, set := range sets {
		for _, name := range set.ToolNames() {
			t, ok := set.GetTool(name)
			if !ok {
				continue
			}
			if err := e.registry.Replace(t); err != nil {
				_ = e.Close()
				return nil, fmt.Errorf("register tool %q: %w", name, err)
			}
		}
	}

	return e, nil
}

// resolveIdentity computes the agent's identity bundle before any tool runs.
// Agents with no identity settings skip resolution; agents that configured a
// credential or resource principal mode fail closed on an incomplete setup.
func resolveIdentity(ctx context.Context, store settings.Store, snapshot settings.Snapshot, ns application.Namespacer, compartments *dbaas.MemoryProvider) (application.ResolvedContext, error) {
	_, hasCredential := snapshot.Value(settings.KeyCredentialName)
	_, hasPrincipal := snapshot.Value(settings.KeyUseResourcePrincipal)
	if !hasCredential && !hasPrincipal {
		return application.ResolvedContext{Region: snapshot.Region()}, nil
	}

	resolver, err := application.NewIdentityResolver(store,
		application.WithNamespacer(ns),
		application.WithCompartmentResolver(application.CompartmentResolverFunc(
			func(ctx context.Context, name string) (*application.Compartment, error) {
				c, err := compartments.CompartmentByName(ctx, name)
				if err != nil {
					return nil, err
				}
				return &application.Compartment{ID: c.ID, Name: c.Name}, nil
			})),
	)
	if err != nil {
		return application.ResolvedContext{}, err
	}

	resolved, err := resolver.FromSnapshot(ctx, snapshot)
	if err != nil {
		return application.ResolvedContext{}, fmt.Errorf("resolve identity for agent %q: %w", snapshot.Agent, err)
	}

	logging.Debug().
		Add(logging.Agent(snapshot.Agent)).
		Add(logging.Str("region", resolved.Region)).
		Add(logging.Str("namespace", resolved.Namespace)).
		Msg("identity resolved")

	return resolved, nil
}

func buildToolsets(ctx context.Context, e *env, snapshot settings.Snapshot, opts envOptions, osProvider *objectstore.MemoryProvider, dbaasProvider *dbaas.MemoryProvider) ([]*toolset.Toolset, error) {
	var sets []*toolset.Toolset

	vaultProvider := vault.NewMemoryProvider()
	vaultSet, err := vault.New(vaultProvider, vault.WithAgent(opts.agent))
	if err != nil {
		return nil, err
	}
	sets = append(sets, vaultSet)

	osOpts := []objectstore.Option{objectstore.WithAgent(opts.agent)}
	if opts.writeAccess {
		osOpts = append(osOpts, objectstore.WithWriteAccess(), objectstore.WithDeleteAccess())
	}
	osSet, err := objectstore.New(osProvider, osOpts...)
	if err != nil {
		return nil, err
	}
	sets = append(sets, osSet)

	searchSet, err := buildSearchToolset(ctx, vaultProvider, snapshot, opts)
	if err != nil {
		return nil, err
	}
	sets = append(sets, searchSet)

	dbaasOpts := []dbaas.Option{dbaas.WithAgent(opts.agent)}
	if opts.writeAccess {
		dbaasOpts = append(dbaasOpts, dbaas.WithWriteAccess())
	}
	dbaasSet, err := dbaas.New(dbaasProvider, dbaasOpts...)
	if err != nil {
		return nil, err
	}
	sets = append(sets, dbaasSet)

	if opts.dbDSN != "" {
		db, err := sql.Open("sqlite3", opts.dbDSN)
		if err != nil {
			return nil, fmt.Errorf("open database %q: %w", opts.dbDSN, err)
		}
		e.closers = append(e.closers, db.Close)

		dbSet, err := database.New(db, database.WithAgent(opts.agent))
		if err != nil {
			return nil, err
		}
		sets = append(sets, dbSet)
	}

	return sets, nil
}

// buildSearchToolset picks the search provider from settings. A configured
// endpoint gets the REST provider with the API key resolved from the vault;
// otherwise the in-memory provider serves as a stand-in.
func buildSearchToolset(ctx context.Context, vaultProvider vault.Provider, snapshot settings.Snapshot, opts envOptions) (*toolset.Toolset, error) {
	endpoint, ok := snapshot.Value(settings.KeySearchEndpoint)
	if !ok {
		return websearch.New(websearch.NewMemoryProvider(), websearch.WithAgent(opts.agent))
	}

	cfg := websearch.RESTConfig{Endpoint: endpoint}
	if secretID, ok := snapshot.Value(settings.KeySearchAPIKeySecretID); ok {
		resolver, err := application.NewSecretResolver(vaultProvider)
		if err != nil {
			return nil, err
		}
		key, err := resolver.Resolve(ctx, secretID)
		if err != nil {
			return nil, err
		}
		cfg.APIKey = string(key)
	}

	provider, err := websearch.NewRESTProvider(cfg)
	if err != nil {
		return nil, err
	}
	return websearch.New(provider, websearch.WithAgent(opts.agent))
}
