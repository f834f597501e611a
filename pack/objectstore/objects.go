package objectstore

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/opsforge/opsforge/domain/envelope"
	"github.com/opsforge/opsforge/domain/tool"
)

// listObjectsInput is the input for the storage_list_objects tool.
type listObjectsInput struct {
	Bucket  string `json:"bucket"`
	Prefix  string `json:"prefix,omitempty"`
	MaxKeys int    `json:"max_keys,omitempty"`
}

// listObjectsOutput is the output for the storage_list_objects tool.
type listObjectsOutput struct {
	Bucket  string       `json:"bucket"`
	Prefix  string       `json:"prefix,omitempty"`
	Objects []ObjectInfo `json:"objects"`
	Count   int          `json:"count"`
}

func listObjectsTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_list_objects").
		WithInstruction("List objects in a bucket, optionally filtered by prefix.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in listObjectsInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{"bucket": in.Bucket, "prefix": in.Prefix}
			if in.Bucket == "" {
				return invalidInput("bucket is required", echo), nil
			}

			maxKeys := in.MaxKeys
			if maxKeys == 0 {
				maxKeys = 1000
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			objects, err := cfg.Provider.ListObjects(ctx, in.Bucket, in.Prefix, maxKeys)
			if err != nil {
				return providerFail("list_objects", err, echo), nil
			}

			return envelope.Success(listObjectsOutput{
				Bucket:  in.Bucket,
				Prefix:  in.Prefix,
				Objects: objects,
				Count:   len(objects),
			})
		}).
		MustBuild()
}

// objectInput is the input for tools addressing one object.
type objectInput struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (in objectInput) echo() map[string]any {
	return map[string]any{"bucket": in.Bucket, "key": in.Key}
}

func (in objectInput) validate(echo map[string]any) json.RawMessage {
	if in.Bucket == "" {
		return invalidInput("bucket is required", echo)
	}
	if in.Key == "" {
		return invalidInput("key is required", echo)
	}
	return nil
}

// getObjectOutput is the output for the storage_get_object tool.
type getObjectOutput struct {
	Bucket      string          `json:"bucket"`
	Key         string          `json:"key"`
	Content     string          `json:"content"`
	ContentType string          `json:"content_type,omitempty"`
	Size        int64           `json:"size"`
	Truncated   bool            `json:"truncated,omitempty"`
	Metadata    *ObjectMetadata `json:"metadata,omitempty"`
}

func getObjectTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_get_object").
		WithInstruction("Get an object's content from a bucket. Reads are capped at the configured size limit.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in objectInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := in.echo()
			if rejected := in.validate(echo); rejected != nil {
				return rejected, nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			reader, metadata, err := cfg.Provider.GetObject(ctx, in.Bucket, in.Key)
			if err != nil {
				return providerFail("get_object", err, echo), nil
			}
			defer reader.Close()

			content, err := io.ReadAll(io.LimitReader(reader, cfg.MaxObjectSize+1))
			if err != nil && err != io.EOF {
				return providerFail("get_object", err, echo), nil
			}
			truncated := false
			if int64(len(content)) > cfg.MaxObjectSize {
				content = content[:cfg.MaxObjectSize]
				truncated = true
			}

			out := getObjectOutput{
				Bucket:    in.Bucket,
				Key:       in.Key,
				Content:   string(content),
				Size:      int64(len(content)),
				Truncated: truncated,
				Metadata:  metadata,
			}
			if metadata != nil {
				out.ContentType = metadata.ContentType
			}
			return envelope.Success(out)
		}).
		MustBuild()
}

// putObjectInput is the input for the storage_put_object tool.
type putObjectInput struct {
	Bucket      string            `json:"bucket"`
	Key         string            `json:"key"`
	Content     string            `json:"content"`
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// putObjectOutput is the output for the storage_put_object tool.
type putObjectOutput struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
}

func putObjectTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_put_object").
		WithInstruction("Upload an object to a bucket.").
		Destructive().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in putObjectInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{"bucket": in.Bucket, "key": in.Key}
			if in.Bucket == "" {
				return invalidInput("bucket is required", echo), nil
			}
			if in.Key == "" {
				return invalidInput("key is required", echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			metadata := &ObjectMetadata{
				ContentType: in.ContentType,
				Metadata:    in.Metadata,
			}
			if metadata.ContentType == "" {
				metadata.ContentType = "application/octet-stream"
			}

			if err := cfg.Provider.PutObject(ctx, in.Bucket, in.Key, strings.NewReader(in.Content), metadata); err != nil {
				return providerFail("put_object", err, echo), nil
			}

			return envelope.Success(putObjectOutput{
				Bucket: in.Bucket,
				Key:    in.Key,
				Size:   int64(len(in.Content)),
			})
		}).
		MustBuild()
}

// deleteObjectOutput is the output for the storage_delete_object tool.
type deleteObjectOutput struct {
	Bucket  string `json:"bucket"`
	Key     string `json:"key"`
	Deleted bool   `json:"deleted"`
}

func deleteObjectTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_delete_object").
		WithInstruction("Delete an object from a bucket.").
		Destructive().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in objectInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := in.echo()
			if rejected := in.validate(echo); rejected != nil {
				return rejected, nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			if err := cfg.Provider.DeleteObject(ctx, in.Bucket, in.Key); err != nil {
				return providerFail("delete_object", err, echo), nil
			}

			return envelope.Success(deleteObjectOutput{
				Bucket:  in.Bucket,
				Key:     in.Key,
				Deleted: true,
			})
		}).
		MustBuild()
}

// copyObjectInput is the input for the storage_copy_object tool.
type copyObjectInput struct {
	SourceBucket string `json:"source_bucket"`
	SourceKey    string `json:"source_key"`
	TargetBucket string `json:"target_bucket"`
	TargetKey    string `json:"target_key"`
}

// copyObjectOutput is the output for the storage_copy_object tool.
type copyObjectOutput struct {
	SourceBucket string `json:"source_bucket"`
	SourceKey    string `json:"source_key"`
	TargetBucket string `json:"target_bucket"`
	TargetKey    string `json:"target_key"`
	Copied       bool   `json:"copied"`
}

func copyObjectTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_copy_object").
		WithInstruction("Copy an object within or across buckets.").
		Idempotent().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in copyObjectInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{
				"source_bucket": in.SourceBucket,
				"source_key":    in.SourceKey,
				"target_bucket": in.TargetBucket,
				"target_key":    in.TargetKey,
			}
			if in.SourceBucket == "" || in.SourceKey == "" {
				return invalidInput("source_bucket and source_key are required", echo), nil
			}
			if in.TargetBucket == "" {
				in.TargetBucket = in.SourceBucket
			}
			if in.TargetKey == "" {
				return invalidInput("target_key is required", echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			if err := cfg.Provider.CopyObject(ctx, in.SourceBucket, in.SourceKey, in.TargetBucket, in.TargetKey); err != nil {
				return providerFail("copy_object", err, echo), nil
			}

			return envelope.Success(copyObjectOutput{
				SourceBucket: in.SourceBucket,
				SourceKey:    in.SourceKey,
				TargetBucket: in.TargetBucket,
				TargetKey:    in.TargetKey,
				Copied:       true,
			})
		}).
		MustBuild()
}

// headObjectOutput is the output for the storage_head_object tool.
type headObjectOutput struct {
	Bucket   string          `json:"bucket"`
	Key      string          `json:"key"`
	Metadata *ObjectMetadata `json:"metadata"`
}

func headObjectTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_head_object").
		WithInstruction("Get metadata for an object without downloading its content.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in objectInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := in.echo()
			if rejected := in.validate(echo); rejected != nil {
				return rejected, nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			metadata, err := cfg.Provider.HeadObject(ctx, in.Bucket, in.Key)
			if err != nil {
				return providerFail("head_object", err, echo), nil
			}

			return envelope.Success(headObjectOutput{
				Bucket:   in.Bucket,
				Key:      in.Key,
				Metadata: metadata,
			})
		}).
		MustBuild()
}

// restoreObjectInput is the input for the storage_restore_object tool.
type restoreObjectInput struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Hours  int    `json:"hours,omitempty"`
}

// restoreObjectOutput is the output for the storage_restore_object tool.
type restoreObjectOutput struct {
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	Hours    int    `json:"hours"`
	Restored bool   `json:"restored"`
}

func restoreObjectTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_restore_object").
		WithInstruction("Recall an archived object so it can be read again. Restoration is asynchronous on most backends.").
		Idempotent().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in restoreObjectInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{"bucket": in.Bucket, "key": in.Key}
			if in.Bucket == "" {
				return invalidInput("bucket is required", echo), nil
			}
			if in.Key == "" {
				return invalidInput("key is required", echo), nil
			}

			hours := in.Hours
			if hours <= 0 {
				hours = 24
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			if err := cfg.Provider.RestoreObject(ctx, in.Bucket, in.Key, hours); err != nil {
				return providerFail("restore_object", err, echo), nil
			}

			return envelope.Success(restoreObjectOutput{
				Bucket:   in.Bucket,
				Key:      in.Key,
				Hours:    hours,
				Restored: true,
			})
		}).
		MustBuild()
}
