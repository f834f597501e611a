package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/opsforge/opsforge/domain/envelope"
	"github.com/opsforge/opsforge/domain/tool"
	"github.com/opsforge/opsforge/domain/toolset"
)

// Config configures the objectstore pack.
type Config struct {
	// Provider is the object storage provider (required).
	Provider Provider

	// Agent is the owning agent name, echoed in error envelopes.
	Agent string

	// ReadOnly disables all write operations.
	ReadOnly bool

	// AllowDelete enables delete operations (requires !ReadOnly).
	AllowDelete bool

	// MaxObjectSize limits the size of objects that can be read.
	MaxObjectSize int64

	// Timeout for operations.
	Timeout time.Duration
}

// Option configures the objectstore pack.
type Option func(*Config)

// WithAgent sets the owning agent name.
func WithAgent(agent string) Option {
	return func(c *Config) {
		c.Agent = agent
	}
}

// WithWriteAccess enables write operations.
func WithWriteAccess() Option {
	return func(c *Config) {
		c.ReadOnly = false
	}
}

// WithDeleteAccess enables delete operations.
func WithDeleteAccess() Option {
	return func(c *Config) {
		c.AllowDelete = true
	}
}

// WithMaxObjectSize sets the maximum object size for reads.
func WithMaxObjectSize(size int64) Option {
	return func(c *Config) {
		c.MaxObjectSize = size
	}
}

// WithTimeout sets the operation timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// New creates the objectstore toolset.
func New(provider Provider, opts ...Option) (*toolset.Toolset, error) {
	if provider == nil {
		return nil, errors.New("objectstore provider is required")
	}

	cfg := Config{
		Provider:      provider,
		ReadOnly:      true, // Read-only by default for safety
		AllowDelete:   false,
		MaxObjectSize: 10 * 1024 * 1024, // 10MB default
		Timeout:       60 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	builder := toolset.NewBuilder("objectstore").
		WithAgent(cfg.Agent).
		WithDescription("Object storage operations (" + provider.Name() + ")").
		WithVersion("1.0.0").
		AddTools(
			getNamespaceTool(&cfg),
			listBucketsTool(&cfg),
			getBucketTool(&cfg),
			listObjectsTool(&cfg),
			getObjectTool(&cfg),
			headObjectTool(&cfg),
			listMultipartUploadsTool(&cfg),
			listPartsTool(&cfg),
			listPARsTool(&cfg),
			listRetentionRulesTool(&cfg),
			listReplicationPoliciesTool(&cfg),
			getWorkRequestTool(&cfg),
			listWorkRequestErrorsTool(&cfg),
		)

	if !cfg.ReadOnly {
		builder = builder.AddTools(
			createBucketTool(&cfg),
			putObjectTool(&cfg),
			copyObjectTool(&cfg),
			restoreObjectTool(&cfg),
			createMultipartUploadTool(&cfg),
			uploadPartTool(&cfg),
			commitMultipartUploadTool(&cfg),
			abortMultipartUploadTool(&cfg),
			createPARTool(&cfg),
			putRetentionRuleTool(&cfg),
			createReplicationPolicyTool(&cfg),
		)

		if cfg.AllowDelete {
			builder = builder.AddTools(
				deleteBucketTool(&cfg),
				deleteObjectTool(&cfg),
				deletePARTool(&cfg),
				deleteRetentionRuleTool(&cfg),
				deleteReplicationPolicyTool(&cfg),
			)
		}
	}

	return builder.Build(), nil
}

// providerFail converts a provider error into an error envelope. Tagged
// errors (unsupported operations in particular) keep their kind;
// everything else is surfaced as a provider error naming the operation.
func providerFail(op string, err error, echo map[string]any) json.RawMessage {
	var tagged *envelope.Error
	if errors.As(err, &tagged) {
		return envelope.Fail(err, echo)
	}
	return envelope.Fail(envelope.Wrap(envelope.KindProvider, op+" failed", err), echo)
}

// invalidInput builds a rejection envelope for a missing or bad field.
func invalidInput(msg string, echo map[string]any) json.RawMessage {
	return envelope.Fail(envelope.NewError(envelope.KindInvalidInput, msg), echo)
}

// badInput builds a rejection envelope for an unmarshalable payload.
func badInput(err error) json.RawMessage {
	return envelope.Fail(envelope.Wrap(envelope.KindInvalidInput, "invalid input", err), nil)
}

// getNamespaceOutput is the output for the storage_get_namespace tool.
type getNamespaceOutput struct {
	Provider  string `json:"provider"`
	Namespace string `json:"namespace"`
}

func getNamespaceTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_get_namespace").
		WithInstruction("Resolve the tenancy-scoped object storage namespace.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			namespace, err := cfg.Provider.Namespace(ctx)
			if err != nil {
				return providerFail("get_namespace", err, nil), nil
			}

			return envelope.Success(getNamespaceOutput{
				Provider:  cfg.Provider.Name(),
				Namespace: namespace,
			})
		}).
		MustBuild()
}

// listBucketsOutput is the output for the storage_list_buckets tool.
type listBucketsOutput struct {
	Provider string       `json:"provider"`
	Buckets  []BucketInfo `json:"buckets"`
	Count    int          `json:"count"`
}

func listBucketsTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_list_buckets").
		WithInstruction("List all storage buckets.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			buckets, err := cfg.Provider.ListBuckets(ctx)
			if err != nil {
				return providerFail("list_buckets", err, nil), nil
			}

			return envelope.Success(listBucketsOutput{
				Provider: cfg.Provider.Name(),
				Buckets:  buckets,
				Count:    len(buckets),
			})
		}).
		MustBuild()
}

// bucketInput is the input for tools addressing one bucket.
type bucketInput struct {
	Bucket string `json:"bucket"`
}

// getBucketOutput is the output for the storage_get_bucket tool.
type getBucketOutput struct {
	Bucket *BucketInfo `json:"bucket"`
}

func getBucketTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_get_bucket").
		WithInstruction("Get metadata for one storage bucket.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in bucketInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{"bucket": in.Bucket}
			if in.Bucket == "" {
				return invalidInput("bucket is required", echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			info, err := cfg.Provider.GetBucket(ctx, in.Bucket)
			if err != nil {
				return providerFail("get_bucket", err, echo), nil
			}

			return envelope.Success(getBucketOutput{Bucket: info})
		}).
		MustBuild()
}

// createBucketOutput is the output for the storage_create_bucket tool.
type createBucketOutput struct {
	Bucket  string `json:"bucket"`
	Created bool   `json:"created"`
}

func createBucketTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_create_bucket").
		WithInstruction("Create a storage bucket.").
		Idempotent().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in bucketInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{"bucket": in.Bucket}
			if in.Bucket == "" {
				return invalidInput("bucket is required", echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			if err := cfg.Provider.CreateBucket(ctx, in.Bucket); err != nil {
				return providerFail("create_bucket", err, echo), nil
			}

			return envelope.Success(createBucketOutput{Bucket: in.Bucket, Created: true})
		}).
		MustBuild()
}

// deleteBucketOutput is the output for the storage_delete_bucket tool.
type deleteBucketOutput struct {
	Bucket  string `json:"bucket"`
	Deleted bool   `json:"deleted"`
}

func deleteBucketTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_delete_bucket").
		WithInstruction("Delete an empty storage bucket.").
		Destructive().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in bucketInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{"bucket": in.Bucket}
			if in.Bucket == "" {
				return invalidInput("bucket is required", echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			if err := cfg.Provider.DeleteBucket(ctx, in.Bucket); err != nil {
				return providerFail("delete_bucket", err, echo), nil
			}

			return envelope.Success(deleteBucketOutput{Bucket: in.Bucket, Deleted: true})
		}).
		MustBuild()
}
