package objectstore

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/opsforge/opsforge/domain/envelope"
	"github.com/opsforge/opsforge/domain/tool"
)

// Multipart tools expose each step independently. The steps share no
// transaction: a failed upload_part does not abort the upload, the
// caller sequences the steps and decides whether to abort.

// createMultipartUploadOutput is the output for storage_create_multipart_upload.
type createMultipartUploadOutput struct {
	Upload *MultipartUpload `json:"upload"`
}

func createMultipartUploadTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_create_multipart_upload").
		WithInstruction("Start a multipart upload and return its upload id.").
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

			upload, err := cfg.Provider.CreateMultipartUpload(ctx, in.Bucket, in.Key)
			if err != nil {
				return providerFail("create_multipart_upload", err, echo), nil
			}

			return envelope.Success(createMultipartUploadOutput{Upload: upload})
		}).
		MustBuild()
}

// uploadPartInput is the input for the storage_upload_part tool.
type uploadPartInput struct {
	Bucket     string `json:"bucket"`
	Key        string `json:"key"`
	UploadID   string `json:"upload_id"`
	PartNumber int    `json:"part_number"`
	Content    string `json:"content"`
}

// uploadPartOutput is the output for the storage_upload_part tool.
type uploadPartOutput struct {
	Bucket   string    `json:"bucket"`
	Key      string    `json:"key"`
	UploadID string    `json:"upload_id"`
	Part     *PartInfo `json:"part"`
}

func uploadPartTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_upload_part").
		WithInstruction("Upload one part of a multipart upload. Returns the part's etag for the commit step.").
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in uploadPartInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{
				"bucket":      in.Bucket,
				"key":         in.Key,
				"upload_id":   in.UploadID,
				"part_number": in.PartNumber,
			}
			if in.Bucket == "" || in.Key == "" {
				return invalidInput("bucket and key are required", echo), nil
			}
			if in.UploadID == "" {
				return invalidInput("upload_id is required", echo), nil
			}
			if in.PartNumber < 1 {
				return invalidInput("part_number must be at least 1", echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			part, err := cfg.Provider.UploadPart(ctx, in.Bucket, in.Key, in.UploadID, in.PartNumber, strings.NewReader(in.Content))
			if err != nil {
				return providerFail("upload_part", err, echo), nil
			}

			return envelope.Success(uploadPartOutput{
				Bucket:   in.Bucket,
				Key:      in.Key,
				UploadID: in.UploadID,
				Part:     part,
			})
		}).
		MustBuild()
}

// commitMultipartUploadInput is the input for storage_commit_multipart_upload.
type commitMultipartUploadInput struct {
	Bucket   string       `json:"bucket"`
	Key      string       `json:"key"`
	UploadID string       `json:"upload_id"`
	Parts    []CommitPart `json:"parts"`
}

// commitMultipartUploadOutput is the output for storage_commit_multipart_upload.
type commitMultipartUploadOutput struct {
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	UploadID string `json:"upload_id"`
	ETag     string `json:"etag,omitempty"`
}

func commitMultipartUploadTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_commit_multipart_upload").
		WithInstruction("Complete a multipart upload from the listed parts. A failed commit leaves the upload open; call storage_abort_multipart_upload to discard it.").
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in commitMultipartUploadInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{
				"bucket":    in.Bucket,
				"key":       in.Key,
				"upload_id": in.UploadID,
			}
			if in.Bucket == "" || in.Key == "" {
				return invalidInput("bucket and key are required", echo), nil
			}
			if in.UploadID == "" {
				return invalidInput("upload_id is required", echo), nil
			}
			if len(in.Parts) == 0 {
				return invalidInput("parts is required", echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			etag, err := cfg.Provider.CommitMultipartUpload(ctx, in.Bucket, in.Key, in.UploadID, in.Parts)
			if err != nil {
				return providerFail("commit_multipart_upload", err, echo), nil
			}

			return envelope.Success(commitMultipartUploadOutput{
				Bucket:   in.Bucket,
				Key:      in.Key,
				UploadID: in.UploadID,
				ETag:     etag,
			})
		}).
		MustBuild()
}

// multipartUploadInput is the input for tools addressing one upload.
type multipartUploadInput struct {
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	UploadID string `json:"upload_id"`
}

// abortMultipartUploadOutput is the output for storage_abort_multipart_upload.
type abortMultipartUploadOutput struct {
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	UploadID string `json:"upload_id"`
	Aborted  bool   `json:"aborted"`
}

func abortMultipartUploadTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_abort_multipart_upload").
		WithInstruction("Abandon a multipart upload and discard its parts.").
		Destructive().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in multipartUploadInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{
				"bucket":    in.Bucket,
				"key":       in.Key,
				"upload_id": in.UploadID,
			}
			if in.Bucket == "" || in.Key == "" {
				return invalidInput("bucket and key are required", echo), nil
			}
			if in.UploadID == "" {
				return invalidInput("upload_id is required", echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			if err := cfg.Provider.AbortMultipartUpload(ctx, in.Bucket, in.Key, in.UploadID); err != nil {
				return providerFail("abort_multipart_upload", err, echo), nil
			}

			return envelope.Success(abortMultipartUploadOutput{
				Bucket:   in.Bucket,
				Key:      in.Key,
				UploadID: in.UploadID,
				Aborted:  true,
			})
		}).
		MustBuild()
}

// listMultipartUploadsOutput is the output for storage_list_multipart_uploads.
type listMultipartUploadsOutput struct {
	Bucket  string            `json:"bucket"`
	Uploads []MultipartUpload `json:"uploads"`
	Count   int               `json:"count"`
}

func listMultipartUploadsTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_list_multipart_uploads").
		WithInstruction("List in-progress multipart uploads in a bucket.").
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

			uploads, err := cfg.Provider.ListMultipartUploads(ctx, in.Bucket)
			if err != nil {
				return providerFail("list_multipart_uploads", err, echo), nil
			}

			return envelope.Success(listMultipartUploadsOutput{
				Bucket:  in.Bucket,
				Uploads: uploads,
				Count:   len(uploads),
			})
		}).
		MustBuild()
}

// listPartsOutput is the output for the storage_list_parts tool.
type listPartsOutput struct {
	Bucket   string     `json:"bucket"`
	Key      string     `json:"key"`
	UploadID string     `json:"upload_id"`
	Parts    []PartInfo `json:"parts"`
	Count    int        `json:"count"`
}

func listPartsTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("storage_list_parts").
		WithInstruction("List the parts uploaded so far for a multipart upload.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in multipartUploadInput
			if err := json.Unmarshal(input, &in); err != nil {
				return badInput(err), nil
			}

			echo := map[string]any{
				"bucket":    in.Bucket,
				"key":       in.Key,
				"upload_id": in.UploadID,
			}
			if in.Bucket == "" || in.Key == "" {
				return invalidInput("bucket and key are required", echo), nil
			}
			if in.UploadID == "" {
				return invalidInput("upload_id is required", echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			parts, err := cfg.Provider.ListParts(ctx, in.Bucket, in.Key, in.UploadID)
			if err != nil {
				return providerFail("list_parts", err, echo), nil
			}

			return envelope.Success(listPartsOutput{
				Bucket:   in.Bucket,
				Key:      in.Key,
				UploadID: in.UploadID,
				Parts:    parts,
				Count:    len(parts),
			})
		}).
		MustBuild()
}
