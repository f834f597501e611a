package application

import (
	"context"
	"errors"

	"github.com/opsforge/opsforge/domain/envelope"
	"github.com/opsforge/opsforge/domain/settings"
	"github.com/opsforge/opsforge/infrastructure/logging"
)

// ResolvedContext is the per-call identity bundle. It is computed from one
// settings snapshot plus at most two resolver calls, then passed by value;
// nothing caches it across calls.
type ResolvedContext struct {
	CredentialName string
	Region         string
	Namespace      string
	CompartmentID  string
}

// Namespacer resolves the tenancy-scoped object storage namespace.
// pack/objectstore providers satisfy it.
type Namespacer interface {
	Namespace(ctx context.Context) (string, error)
}

// CompartmentResolver resolves a compartment identifier from its display
// name. pack/dbaas providers satisfy it.
type CompartmentResolver interface {
	CompartmentByName(ctx context.Context, name string) (*Compartment, error)
}

// Compartment mirrors the provisioning compartment shape without importing
// the pack.
type Compartment struct {
	ID   string
	Name string
}

// CompartmentResolverFunc adapts a function to CompartmentResolver.
type CompartmentResolverFunc func(ctx context.Context, name string) (*Compartment, error)

// CompartmentByName implements CompartmentResolver.
func (f CompartmentResolverFunc) CompartmentByName(ctx context.Context, name string) (*Compartment, error) {
	return f(ctx, name)
}

// IdentityResolver computes ResolvedContext from an agent's settings. The
// namespace and compartment facets resolve independently: a namespace
// lookup failure never blocks compartment resolution and vice versa.
type IdentityResolver struct {
	store        settings.Store
	namespacer   Namespacer
	compartments CompartmentResolver
}

// IdentityOption configures the resolver.
type IdentityOption func(*IdentityResolver)

// WithNamespacer enables namespace resolution through a storage provider.
func WithNamespacer(n Namespacer) IdentityOption {
	return func(r *IdentityResolver) {
		r.namespacer = n
	}
}

// WithCompartmentResolver enables compartment-by-name resolution.
func WithCompartmentResolver(c CompartmentResolver) IdentityOption {
	return func(r *IdentityResolver) {
		r.compartments = c
	}
}

// NewIdentityResolver creates a resolver over a settings store.
func NewIdentityResolver(store settings.Store, opts ...IdentityOption) (*IdentityResolver, error) {
	if store == nil {
		return nil, errors.New("settings store is required")
	}
	r := &IdentityResolver{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve loads the agent's settings and computes its identity context.
// The credential facet fails closed: without a credential name (and without
// resource principal mode) the call errors rather than proceeding with
// partial identity. Namespace and compartment are best effort.
func (r *IdentityResolver) Resolve(ctx context.Context, agent string) (ResolvedContext, error) {
	snapshot, err := settings.Load(ctx, r.store, agent)
	if err != nil {
		return ResolvedContext{}, envelope.Wrap(envelope.KindResolution,
			"could not load settings for agent "+agent, err)
	}
	return r.FromSnapshot(ctx, snapshot)
}

// FromSnapshot computes the identity context from an already-loaded snapshot.
func (r *IdentityResolver) FromSnapshot(ctx context.Context, snapshot settings.Snapshot) (ResolvedContext, error) {
	resolved := ResolvedContext{Region: snapshot.Region()}

	credential, ok := snapshot.CredentialName()
	if !ok && !snapshot.UseResourcePrincipal() {
		return ResolvedContext{}, envelope.NotConfigured(settings.KeyCredentialName, snapshot.Agent)
	}
	resolved.CredentialName = credential

	resolved.Namespace = r.resolveNamespace(ctx, snapshot)
	resolved.CompartmentID = r.resolveCompartment(ctx, snapshot)

	return resolved, nil
}

// resolveNamespace prefers the pinned setting and falls back to the storage
// provider. Failure leaves the facet empty; storage tools that need it
// resolve it themselves and fail with their own envelope.
func (r *IdentityResolver) resolveNamespace(ctx context.Context, snapshot settings.Snapshot) string {
	if ns, ok := snapshot.Value(settings.KeyNamespace); ok {
		return ns
	}
	if r.namespacer == nil {
		return ""
	}

	ns, err := r.namespacer.Namespace(ctx)
	if err != nil {
		logging.Warn().
			Add(logging.Agent(snapshot.Agent)).
			Add(logging.ErrorField(err)).
			Msg("namespace resolution failed")
		return ""
	}
	return ns
}

// resolveCompartment prefers the pinned id, then resolves the configured
// name through the provisioning provider.
func (r *IdentityResolver) resolveCompartment(ctx context.Context, snapshot settings.Snapshot) string {
	if id, ok := snapshot.CompartmentID(); ok {
		return id
	}
	name, ok := snapshot.CompartmentName()
	if !ok || r.compartments == nil {
		return ""
	}

	compartment, err := r.compartments.CompartmentByName(ctx, name)
	if err != nil {
		logging.Warn().
			Add(logging.Agent(snapshot.Agent)).
			Add(logging.Compartment(name)).
			Add(logging.ErrorField(err)).
			Msg("compartment resolution failed")
		return ""
	}
	return compartment.ID
}
