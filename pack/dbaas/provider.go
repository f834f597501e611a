// Package dbaas provides database provisioning facade tools.
package dbaas

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Lifecycle states reported by providers. Mutating calls return the
// transitional state; the terminal state is observed by polling.
const (
	StateProvisioning = "PROVISIONING"
	StateAvailable    = "AVAILABLE"
	StateStarting     = "STARTING"
	StateStopping     = "STOPPING"
	StateStopped      = "STOPPED"
)

// Sentinel errors returned by providers.
var (
	ErrInstanceNotFound    = errors.New("database instance not found")
	ErrCompartmentNotFound = errors.New("compartment not found")
)

// Instance describes a managed database instance.
type Instance struct {
	ID            string    `json:"id"`
	DisplayName   string    `json:"display_name"`
	CompartmentID string    `json:"compartment_id"`
	State         string    `json:"state"`
	Workload      string    `json:"workload,omitempty"`
	CPUCount      int       `json:"cpu_count"`
	StorageGB     int       `json:"storage_gb"`
	TimeCreated   time.Time `json:"time_created"`
}

// Compartment is a resource grouping that scopes instances.
type Compartment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateRequest carries the provisioning parameters for a new instance.
type CreateRequest struct {
	DisplayName   string
	CompartmentID string
	Workload      string
	CPUCount      int
	StorageGB     int
}

// Provider abstracts a database provisioning service.
type Provider interface {
	// Name identifies the provider in envelopes and logs.
	Name() string

	// CreateInstance provisions a new instance. The returned instance is
	// in a transitional state; poll GetInstance for the terminal one.
	CreateInstance(ctx context.Context, req CreateRequest) (*Instance, error)

	// StartInstance starts a stopped instance.
	StartInstance(ctx context.Context, id string) (*Instance, error)

	// StopInstance stops an available instance.
	StopInstance(ctx context.Context, id string) (*Instance, error)

	// GetInstance fetches one instance by id.
	GetInstance(ctx context.Context, id string) (*Instance, error)

	// ListInstances lists instances, optionally scoped to a compartment.
	ListInstances(ctx context.Context, compartmentID string) ([]Instance, error)

	// ListCompartments lists the compartments visible to the credential.
	ListCompartments(ctx context.Context) ([]Compartment, error)

	// CompartmentByName resolves a compartment by its display name.
	CompartmentByName(ctx context.Context, name string) (*Compartment, error)
}

// memoryInstance pairs an instance with its pending lifecycle transition.
type memoryInstance struct {
	instance     Instance
	pendingState string
	transitionAt time.Time
}

// MemoryProvider is an in-memory Provider with asynchronous lifecycle
// transitions: mutating calls move an instance into a transitional state and
// the terminal state becomes visible once the transition delay elapses.
type MemoryProvider struct {
	mu           sync.Mutex
	instances    map[string]*memoryInstance
	compartments map[string]Compartment
	delay        time.Duration
	now          func() time.Time
}

// MemoryOption configures the memory provider.
type MemoryOption func(*MemoryProvider)

// WithTransitionDelay sets how long instances stay in transitional states.
// The default is zero, so transitions complete on the next read.
func WithTransitionDelay(d time.Duration) MemoryOption {
	return func(p *MemoryProvider) {
		p.delay = d
	}
}

// WithCompartments seeds the visible compartments.
func WithCompartments(compartments ...Compartment) MemoryOption {
	return func(p *MemoryProvider) {
		for _, c := range compartments {
			p.compartments[c.ID] = c
		}
	}
}

// NewMemoryProvider creates an in-memory provider.
func NewMemoryProvider(opts ...MemoryOption) *MemoryProvider {
	p := &MemoryProvider{
		instances:    make(map[string]*memoryInstance),
		compartments: make(map[string]Compartment),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *MemoryProvider) Name() string { return "memory" }

// Advance forces all pending lifecycle transitions to complete.
func (p *MemoryProvider) Advance() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, mi := range p.instances {
		if mi.pendingState != "" {
			mi.instance.State = mi.pendingState
			mi.pendingState = ""
		}
	}
}

// settle applies a pending transition whose delay has elapsed. Callers hold
// the lock.
func (p *MemoryProvider) settle(mi *memoryInstance) {
	if mi.pendingState != "" && !p.now().Before(mi.transitionAt) {
		mi.instance.State = mi.pendingState
		mi.pendingState = ""
	}
}

func (p *MemoryProvider) transition(mi *memoryInstance, transitional, terminal string) {
	mi.instance.State = transitional
	mi.pendingState = terminal
	mi.transitionAt = p.now().Add(p.delay)
}

// CreateInstance implements Provider.
func (p *MemoryProvider) CreateInstance(ctx context.Context, req CreateRequest) (*Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if req.CompartmentID != "" {
		if _, ok := p.compartments[req.CompartmentID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrCompartmentNotFound, req.CompartmentID)
		}
	}

	mi := &memoryInstance{
		instance: Instance{
			ID:            uuid.NewString(),
			DisplayName:   req.DisplayName,
			CompartmentID: req.CompartmentID,
			Workload:      req.Workload,
			CPUCount:      req.CPUCount,
			StorageGB:     req.StorageGB,
			TimeCreated:   p.now(),
		},
	}
	p.transition(mi, StateProvisioning, StateAvailable)
	p.instances[mi.instance.ID] = mi

	out := mi.instance
	return &out, nil
}

// StartInstance implements Provider.
func (p *MemoryProvider) StartInstance(ctx context.Context, id string) (*Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	mi, ok := p.instances[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	p.settle(mi)
	if mi.instance.State != StateStopped {
		return nil, fmt.Errorf("instance %s cannot start from state %s", id, mi.instance.State)
	}
	p.transition(mi, StateStarting, StateAvailable)

	out := mi.instance
	return &out, nil
}

// StopInstance implements Provider.
func (p *MemoryProvider) StopInstance(ctx context.Context, id string) (*Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	mi, ok := p.instances[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	p.settle(mi)
	if mi.instance.State != StateAvailable {
		return nil, fmt.Errorf("instance %s cannot stop from state %s", id, mi.instance.State)
	}
	p.transition(mi, StateStopping, StateStopped)

	out := mi.instance
	return &out, nil
}

// GetInstance implements Provider.
func (p *MemoryProvider) GetInstance(ctx context.Context, id string) (*Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	mi, ok := p.instances[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	p.settle(mi)

	out := mi.instance
	return &out, nil
}

// ListInstances implements Provider.
func (p *MemoryProvider) ListInstances(ctx context.Context, compartmentID string) ([]Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	instances := make([]Instance, 0, len(p.instances))
	for _, mi := range p.instances {
		if compartmentID != "" && mi.instance.CompartmentID != compartmentID {
			continue
		}
		p.settle(mi)
		instances = append(instances, mi.instance)
	}
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].DisplayName < instances[j].DisplayName
	})
	return instances, nil
}

// ListCompartments implements Provider.
func (p *MemoryProvider) ListCompartments(ctx context.Context) ([]Compartment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	compartments := make([]Compartment, 0, len(p.compartments))
	for _, c := range p.compartments {
		compartments = append(compartments, c)
	}
	sort.Slice(compartments, func(i, j int) bool {
		return compartments[i].Name < compartments[j].Name
	})
	return compartments, nil
}

// CompartmentByName implements Provider.
func (p *MemoryProvider) CompartmentByName(ctx context.Context, name string) (*Compartment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.compartments {
		if c.Name == name {
			out := c
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCompartmentNotFound, name)
}

var _ Provider = (*MemoryProvider)(nil)
