package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/opsforge/opsforge/domain/envelope"
)

// GCSProvider implements the Provider interface for Google Cloud Storage.
type GCSProvider struct {
	client    *gcs.Client
	projectID string
}

// GCSConfig configures the GCS provider.
type GCSConfig struct {
	ProjectID       string // GCP project ID (required for bucket listing and creation)
	CredentialsFile string // Optional: path to service account JSON file
	CredentialsJSON []byte // Optional: service account JSON content
}

// NewGCSProvider creates a new Google Cloud Storage provider.
func NewGCSProvider(ctx context.Context, cfg GCSConfig) (*GCSProvider, error) {
	var opts []option.ClientOption

	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	} else if len(cfg.CredentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(cfg.CredentialsJSON))
	}
	// If no credentials provided, uses Application Default Credentials

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSProvider{
		client:    client,
		projectID: cfg.ProjectID,
	}, nil
}

// Name returns the provider name.
func (p *GCSProvider) Name() string {
	return "gcp-storage"
}

// Close closes the GCS client.
func (p *GCSProvider) Close() error {
	return p.client.Close()
}

// Namespace returns the project id, the closest GCS analogue to a
// tenancy namespace.
func (p *GCSProvider) Namespace(ctx context.Context) (string, error) {
	if p.projectID == "" {
		return "", envelope.Unsupported("get_namespace", p.Name())
	}
	return p.projectID, nil
}

// ListBuckets lists all GCS buckets in the project.
func (p *GCSProvider) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	if p.projectID == "" {
		return nil, fmt.Errorf("project ID is required to list buckets")
	}

	var buckets []BucketInfo
	it := p.client.Buckets(ctx, p.projectID)

	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list buckets: %w", err)
		}

		bucket := BucketInfo{
			Name:         attrs.Name,
			Namespace:    p.projectID,
			Region:       attrs.Location,
			CreationDate: attrs.Created,
		}
		if attrs.Labels != nil {
			bucket.Tags = attrs.Labels
		}
		buckets = append(buckets, bucket)
	}

	return buckets, nil
}

// GetBucket returns metadata for one bucket.
func (p *GCSProvider) GetBucket(ctx context.Context, bucket string) (*BucketInfo, error) {
	attrs, err := p.client.Bucket(bucket).Attrs(ctx)
	if errors.Is(err, gcs.ErrBucketNotExist) {
		return nil, ErrBucketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket attributes: %w", err)
	}

	info := &BucketInfo{
		Name:         attrs.Name,
		Namespace:    p.projectID,
		Region:       attrs.Location,
		CreationDate: attrs.Created,
	}
	if attrs.Labels != nil {
		info.Tags = attrs.Labels
	}
	return info, nil
}

// CreateBucket creates a bucket in the configured project.
func (p *GCSProvider) CreateBucket(ctx context.Context, bucket string) error {
	if p.projectID == "" {
		return fmt.Errorf("project ID is required to create buckets")
	}
	if err := p.client.Bucket(bucket).Create(ctx, p.projectID, nil); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// DeleteBucket deletes an empty bucket.
func (p *GCSProvider) DeleteBucket(ctx context.Context, bucket string) error {
	err := p.client.Bucket(bucket).Delete(ctx)
	if errors.Is(err, gcs.ErrBucketNotExist) {
		return ErrBucketNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete bucket: %w", err)
	}
	return nil
}

// ListObjects lists objects in a bucket with optional prefix.
func (p *GCSProvider) ListObjects(ctx context.Context, bucket, prefix string, maxKeys int) ([]ObjectInfo, error) {
	query := &gcs.Query{
		Prefix: prefix,
	}

	var objects []ObjectInfo
	count := 0
	it := p.client.Bucket(bucket).Objects(ctx, query)

	for {
		if maxKeys > 0 && count >= maxKeys {
			break
		}

		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		objects = append(objects, ObjectInfo{
			Key:          attrs.Name,
			Size:         attrs.Size,
			LastModified: attrs.Updated,
			ETag:         attrs.Etag,
			StorageClass: attrs.StorageClass,
		})
		count++
	}

	return objects, nil
}

// GetObject retrieves an object's content.
func (p *GCSProvider) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, *ObjectMetadata, error) {
	obj := p.client.Bucket(bucket).Object(key)

	attrs, err := obj.Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get object attributes: %w", err)
	}

	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create object reader: %w", err)
	}

	metadata := &ObjectMetadata{
		ContentType:     attrs.ContentType,
		ContentLength:   attrs.Size,
		ContentEncoding: attrs.ContentEncoding,
		ETag:            attrs.Etag,
		LastModified:    attrs.Updated,
		StorageClass:    attrs.StorageClass,
		Metadata:        attrs.Metadata,
	}
	return reader, metadata, nil
}

// PutObject uploads an object.
func (p *GCSProvider) PutObject(ctx context.Context, bucket, key string, data io.Reader, metadata *ObjectMetadata) error {
	obj := p.client.Bucket(bucket).Object(key)
	writer := obj.NewWriter(ctx)

	if metadata != nil {
		if metadata.ContentType != "" {
			writer.ContentType = metadata.ContentType
		}
		if metadata.ContentEncoding != "" {
			writer.ContentEncoding = metadata.ContentEncoding
		}
		if metadata.Metadata != nil {
			writer.Metadata = metadata.Metadata
		}
	}

	if _, err := io.Copy(writer, data); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize object: %w", err)
	}
	return nil
}

// DeleteObject deletes an object.
func (p *GCSProvider) DeleteObject(ctx context.Context, bucket, key string) error {
	err := p.client.Bucket(bucket).Object(key).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return ErrObjectNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// CopyObject copies an object server-side.
func (p *GCSProvider) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	src := p.client.Bucket(srcBucket).Object(srcKey)
	dst := p.client.Bucket(dstBucket).Object(dstKey)

	_, err := dst.CopierFrom(src).Run(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return ErrObjectNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to copy object: %w", err)
	}
	return nil
}

// HeadObject retrieves object metadata without content.
func (p *GCSProvider) HeadObject(ctx context.Context, bucket, key string) (*ObjectMetadata, error) {
	attrs, err := p.client.Bucket(bucket).Object(key).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object metadata: %w", err)
	}

	return &ObjectMetadata{
		ContentType:     attrs.ContentType,
		ContentLength:   attrs.Size,
		ContentEncoding: attrs.ContentEncoding,
		ETag:            attrs.Etag,
		LastModified:    attrs.Updated,
		StorageClass:    attrs.StorageClass,
		Metadata:        attrs.Metadata,
	}, nil
}

// RestoreObject is unsupported: GCS serves archive-class objects directly
// without a recall step.
func (p *GCSProvider) RestoreObject(ctx context.Context, bucket, key string, hours int) error {
	return envelope.Unsupported("restore_object", p.Name())
}

// Multipart uploads are unsupported through this client; GCS resumable
// uploads are a single-writer protocol, not an enumerable upload object.

func (p *GCSProvider) CreateMultipartUpload(ctx context.Context, bucket, key string) (*MultipartUpload, error) {
	return nil, envelope.Unsupported("create_multipart_upload", p.Name())
}

func (p *GCSProvider) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, data io.Reader) (*PartInfo, error) {
	return nil, envelope.Unsupported("upload_part", p.Name())
}

func (p *GCSProvider) CommitMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []CommitPart) (string, error) {
	return "", envelope.Unsupported("commit_multipart_upload", p.Name())
}

func (p *GCSProvider) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	return envelope.Unsupported("abort_multipart_upload", p.Name())
}

func (p *GCSProvider) ListMultipartUploads(ctx context.Context, bucket string) ([]MultipartUpload, error) {
	return nil, envelope.Unsupported("list_multipart_uploads", p.Name())
}

func (p *GCSProvider) ListParts(ctx context.Context, bucket, key, uploadID string) ([]PartInfo, error) {
	return nil, envelope.Unsupported("list_parts", p.Name())
}

// CreatePAR generates a signed GET URL for an object. Signed URLs are
// computed client-side, so ListPARs and DeletePAR are unsupported.
func (p *GCSProvider) CreatePAR(ctx context.Context, bucket, key, name string, expiry time.Duration) (*PAR, error) {
	now := time.Now()
	url, err := p.client.Bucket(bucket).SignedURL(key, &gcs.SignedURLOptions{
		Method:  "GET",
		Expires: now.Add(expiry),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate signed URL: %w", err)
	}

	return &PAR{
		ID:        name,
		Name:      name,
		Bucket:    bucket,
		ObjectKey: key,
		URL:       url,
		ExpiresAt: now.Add(expiry),
		CreatedAt: now,
	}, nil
}

func (p *GCSProvider) ListPARs(ctx context.Context, bucket string) ([]PAR, error) {
	return nil, envelope.Unsupported("list_pars", p.Name())
}

func (p *GCSProvider) DeletePAR(ctx context.Context, bucket, parID string) error {
	return envelope.Unsupported("delete_par", p.Name())
}

// ListRetentionRules reads the bucket's retention policy. GCS holds at
// most one policy per bucket.
func (p *GCSProvider) ListRetentionRules(ctx context.Context, bucket string) ([]RetentionRule, error) {
	attrs, err := p.client.Bucket(bucket).Attrs(ctx)
	if errors.Is(err, gcs.ErrBucketNotExist) {
		return nil, ErrBucketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket attributes: %w", err)
	}

	if attrs.RetentionPolicy == nil {
		return []RetentionRule{}, nil
	}

	rule := RetentionRule{
		ID:           "default",
		DisplayName:  "default",
		DurationDays: int(attrs.RetentionPolicy.RetentionPeriod / (24 * time.Hour)),
		Locked:       attrs.RetentionPolicy.IsLocked,
		CreatedAt:    attrs.RetentionPolicy.EffectiveTime,
	}
	return []RetentionRule{rule}, nil
}

// PutRetentionRule sets the bucket's retention policy.
func (p *GCSProvider) PutRetentionRule(ctx context.Context, bucket string, rule RetentionRule) (*RetentionRule, error) {
	update := gcs.BucketAttrsToUpdate{
		RetentionPolicy: &gcs.RetentionPolicy{
			RetentionPeriod: time.Duration(rule.DurationDays) * 24 * time.Hour,
		},
	}

	if _, err := p.client.Bucket(bucket).Update(ctx, update); err != nil {
		if errors.Is(err, gcs.ErrBucketNotExist) {
			return nil, ErrBucketNotFound
		}
		return nil, fmt.Errorf("failed to update retention policy: %w", err)
	}

	rule.ID = "default"
	return &rule, nil
}

// DeleteRetentionRule clears the bucket's retention policy. Fails at the
// service when the policy is locked.
func (p *GCSProvider) DeleteRetentionRule(ctx context.Context, bucket, ruleID string) error {
	update := gcs.BucketAttrsToUpdate{
		RetentionPolicy: &gcs.RetentionPolicy{},
	}

	if _, err := p.client.Bucket(bucket).Update(ctx, update); err != nil {
		if errors.Is(err, gcs.ErrBucketNotExist) {
			return ErrBucketNotFound
		}
		return fmt.Errorf("failed to clear retention policy: %w", err)
	}
	return nil
}

// Replication is configured through dual-region bucket placement in GCS,
// not per-bucket policies reachable from this client.

func (p *GCSProvider) ListReplicationPolicies(ctx context.Context, bucket string) ([]ReplicationPolicy, error) {
	return nil, envelope.Unsupported("list_replication_policies", p.Name())
}

func (p *GCSProvider) CreateReplicationPolicy(ctx context.Context, bucket string, policy ReplicationPolicy) (*ReplicationPolicy, error) {
	return nil, envelope.Unsupported("create_replication_policy", p.Name())
}

func (p *GCSProvider) DeleteReplicationPolicy(ctx context.Context, bucket, policyID string) error {
	return envelope.Unsupported("delete_replication_policy", p.Name())
}

func (p *GCSProvider) GetWorkRequest(ctx context.Context, id string) (*WorkRequest, error) {
	return nil, envelope.Unsupported("get_work_request", p.Name())
}

func (p *GCSProvider) ListWorkRequestErrors(ctx context.Context, id string) ([]WorkRequestError, error) {
	return nil, envelope.Unsupported("list_work_request_errors", p.Name())
}

var _ Provider = (*GCSProvider)(nil)
