package dbaas

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/opsforge/opsforge/domain/envelope"
	"github.com/opsforge/opsforge/domain/tool"
	"github.com/opsforge/opsforge/domain/toolset"
)

// Config configures the dbaas pack.
type Config struct {
	// Provider is the provisioning backend (required).
	Provider Provider

	// Agent is the owning agent name, echoed in error envelopes.
	Agent string

	// ReadOnly disables provisioning and lifecycle mutations.
	ReadOnly bool

	// Timeout for provider calls.
	Timeout time.Duration
}

// Option configures the dbaas pack.
type Option func(*Config)

// WithAgent sets the owning agent name.
func WithAgent(agent string) Option {
	return func(c *Config) {
		c.Agent = agent
	}
}

// WithWriteAccess enables provisioning and lifecycle mutations.
func WithWriteAccess() Option {
	return func(c *Config) {
		c.ReadOnly = false
	}
}

// WithTimeout sets the provider call timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// New creates the dbaas toolset.
func New(provider Provider, opts ...Option) (*toolset.Toolset, error) {
	if provider == nil {
		return nil, errors.New("dbaas provider is required")
	}

	cfg := Config{
		Provider: provider,
		ReadOnly: true, // Read-only by default for safety
		Timeout:  60 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	builder := toolset.NewBuilder("dbaas").
		WithAgent(cfg.Agent).
		WithDescription("Database provisioning operations (" + provider.Name() + ")").
		WithVersion("1.0.0").
		AddTools(
			getInstanceTool(&cfg),
			listInstancesTool(&cfg),
			listCompartmentsTool(&cfg),
		)

	if !cfg.ReadOnly {
		builder = builder.AddTools(
			createInstanceTool(&cfg),
			startInstanceTool(&cfg),
			stopInstanceTool(&cfg),
		)
	}

	return builder.Build(), nil
}

// providerFail passes tagged errors through unchanged and wraps raw provider
// errors as provider errors naming the operation.
func providerFail(op string, err error, echo map[string]any) json.RawMessage {
	var tagged *envelope.Error
	if errors.As(err, &tagged) {
		return envelope.Fail(err, echo)
	}
	return envelope.Fail(envelope.Wrap(envelope.KindProvider, op+" failed", err), echo)
}

func invalidInput(msg string, echo map[string]any) json.RawMessage {
	return envelope.Fail(envelope.NewError(envelope.KindInvalidInput, msg), echo)
}

func badInput(err error) json.RawMessage {
	return envelope.Fail(envelope.Wrap(envelope.KindInvalidInput, "invalid input", err), nil)
}

// createInput is the input for the db_create tool.
type createInput struct {
	DisplayName     string `json:"display_name"`
	CompartmentID   string `json:"compartment_id,omitempty"`
	CompartmentName string `json:"compartment_name,omitempty"`
	Workload        string `json:"workload,omitempty"`
	CPUCount        int    `json:"cpu_count,omitempty"`
	StorageGB       int    `json:"storage_gb,omitempty"`
}

// instanceOutput is the output of the instance lifecycle tools.
type instanceOutput struct {
	Instance *Instance `json:"instance"`
}

func createInstanceTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("db_create").
		WithInstruction("Provision a new database instance. The instance starts in PROVISIONING; poll db_get for AVAILABLE.").
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in createInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{"display_name": in.DisplayName}
			if in.DisplayName == "" {
				return invalidInput("display_name is required", echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			compartmentID := in.CompartmentID
			if compartmentID == "" && in.CompartmentName != "" {
				compartment, err := cfg.Provider.CompartmentByName(ctx, in.CompartmentName)
				if err != nil {
					return envelope.Fail(envelope.Wrap(envelope.KindResolution,
						"could not resolve compartment "+in.CompartmentName, err), echo), nil
				}
				compartmentID = compartment.ID
			}

			req := CreateRequest{
				DisplayName:   in.DisplayName,
				CompartmentID: compartmentID,
				Workload:      in.Workload,
				CPUCount:      in.CPUCount,
				StorageGB:     in.StorageGB,
			}
			if req.Workload == "" {
				req.Workload = "OLTP"
			}
			if req.CPUCount <= 0 {
				req.CPUCount = 1
			}
			if req.StorageGB <= 0 {
				req.StorageGB = 1
			}

			instance, err := cfg.Provider.CreateInstance(ctx, req)
			if err != nil {
				return providerFail("db_create", err, echo), nil
			}
			return envelope.Success(instanceOutput{Instance: instance})
		}).
		MustBuild()
}

// instanceInput is the shared input for the per-instance tools.
type instanceInput struct {
	InstanceID string `json:"instance_id"`
}

func (in *instanceInput) echo() map[string]any {
	return map[string]any{"instance_id": in.InstanceID}
}

func startInstanceTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("db_start").
		WithInstruction("Start a stopped database instance. Returns the STARTING state; poll db_get for AVAILABLE.").
		Idempotent().
		WithHandler(instanceHandler(cfg, "db_start", cfg.Provider.StartInstance)).
		MustBuild()
}

func stopInstanceTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("db_stop").
		WithInstruction("Stop an available database instance. Returns the STOPPING state; poll db_get for STOPPED.").
		Idempotent().
		WithHandler(instanceHandler(cfg, "db_stop", cfg.Provider.StopInstance)).
		MustBuild()
}

func getInstanceTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("db_get").
		WithInstruction("Fetch a database instance and its current lifecycle state.").
		ReadOnly().
		WithHandler(instanceHandler(cfg, "db_get", cfg.Provider.GetInstance)).
		MustBuild()
}

// instanceHandler builds a handler for tools that take an instance id and
// return the instance.
func instanceHandler(cfg *Config, op string, call func(context.Context, string) (*Instance, error)) tool.Handler {
	return func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		var in instanceInput
		if err := json.Unmarshal(input, &in); err != nil {
			return badInput(err), nil
		}

		echo := in.echo()
		if in.InstanceID == "" {
			return invalidInput("instance_id is required", echo), nil
		}

		ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		instance, err := call(ctx, in.InstanceID)
		if err != nil {
			return providerFail(op, err, echo), nil
		}
		return envelope.Success(instanceOutput{Instance: instance})
	}
}

// listInstancesInput is the input for the db_list tool.
type listInstancesInput struct {
	CompartmentID string `json:"compartment_id,omitempty"`
}

// listInstancesOutput is the output for the db_list tool.
type listInstancesOutput struct {
	Instances []Instance `json:"instances"`
	Count     int        `json:"count"`
}

func listInstancesTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("db_list").
		WithInstruction("List database instances, optionally scoped to a compartment.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in listInstancesInput
			if len(input) > 0 {
				if err := json.Unmarshal(input, &in); err != nil {
					return badInput(err), nil
				}
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			instances, err := cfg.Provider.ListInstances(ctx, in.CompartmentID)
			if err != nil {
				return providerFail("db_list", err, map[string]any{"compartment_id": in.CompartmentID}), nil
			}
			if instances == nil {
				instances = []Instance{}
			}
			return envelope.Success(listInstancesOutput{Instances: instances, Count: len(instances)})
		}).
		MustBuild()
}

// listCompartmentsOutput is the output for the compartment_list tool.
type listCompartmentsOutput struct {
	Compartments []Compartment `json:"compartments"`
	Count        int           `json:"count"`
}

func listCompartmentsTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("compartment_list").
		WithInstruction("List the compartments visible to the configured credential.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			compartments, err := cfg.Provider.ListCompartments(ctx)
			if err != nil {
				return providerFail("compartment_list", err, nil), nil
			}
			if compartments == nil {
				compartments = []Compartment{}
			}
			return envelope.Success(listCompartmentsOutput{Compartments: compartments, Count: len(compartments)})
		}).
		MustBuild()
}
