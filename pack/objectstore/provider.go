// Package objectstore provides object storage facade tools.
package objectstore

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// newUploadID mints a multipart upload identifier for providers whose
// backend tracks no upload object server-side.
func newUploadID() string {
	return uuid.NewString()
}

// Sentinel errors returned by providers.
var (
	// ErrBucketNotFound indicates the named bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrObjectNotFound indicates the named object does not exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrUploadNotFound indicates the multipart upload id is unknown.
	ErrUploadNotFound = errors.New("multipart upload not found")

	// ErrWorkRequestNotFound indicates the work request id is unknown.
	ErrWorkRequestNotFound = errors.New("work request not found")
)

// Provider defines the interface for object storage operations.
// Implementations exist for AWS S3, Azure Blob Storage, Google Cloud
// Storage, and an in-memory store for tests. A backend that cannot
// express an operation returns an envelope.KindUnsupported error from
// it; the facade surfaces that as an error envelope naming the
// operation.
type Provider interface {
	// Name returns the provider name (e.g., "s3", "azure-blob").
	Name() string

	// Namespace resolves the tenancy-scoped storage namespace.
	Namespace(ctx context.Context) (string, error)

	// ListBuckets lists all buckets/containers.
	ListBuckets(ctx context.Context) ([]BucketInfo, error)

	// GetBucket returns metadata for one bucket.
	GetBucket(ctx context.Context, bucket string) (*BucketInfo, error)

	// CreateBucket creates a bucket.
	CreateBucket(ctx context.Context, bucket string) error

	// DeleteBucket deletes an empty bucket.
	DeleteBucket(ctx context.Context, bucket string) error

	// ListObjects lists objects in a bucket with optional prefix.
	ListObjects(ctx context.Context, bucket, prefix string, maxKeys int) ([]ObjectInfo, error)

	// GetObject retrieves an object's content.
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, *ObjectMetadata, error)

	// PutObject uploads an object.
	PutObject(ctx context.Context, bucket, key string, data io.Reader, metadata *ObjectMetadata) error

	// DeleteObject deletes an object.
	DeleteObject(ctx context.Context, bucket, key string) error

	// CopyObject copies an object within or across buckets.
	CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error

	// HeadObject retrieves object metadata without content.
	HeadObject(ctx context.Context, bucket, key string) (*ObjectMetadata, error)

	// RestoreObject recalls an archived object for the given number of hours.
	RestoreObject(ctx context.Context, bucket, key string, hours int) error

	// CreateMultipartUpload starts a multipart upload and returns its id.
	CreateMultipartUpload(ctx context.Context, bucket, key string) (*MultipartUpload, error)

	// UploadPart uploads one part of a multipart upload.
	UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, data io.Reader) (*PartInfo, error)

	// CommitMultipartUpload completes a multipart upload from the listed
	// parts and returns the assembled object's etag.
	CommitMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []CommitPart) (string, error)

	// AbortMultipartUpload abandons a multipart upload and discards its parts.
	AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error

	// ListMultipartUploads lists in-progress uploads in a bucket.
	ListMultipartUploads(ctx context.Context, bucket string) ([]MultipartUpload, error)

	// ListParts lists the parts uploaded so far for one upload.
	ListParts(ctx context.Context, bucket, key, uploadID string) ([]PartInfo, error)

	// CreatePAR creates a preauthenticated request (presigned URL) for an object.
	CreatePAR(ctx context.Context, bucket, key, name string, expiry time.Duration) (*PAR, error)

	// ListPARs lists active preauthenticated requests for a bucket.
	ListPARs(ctx context.Context, bucket string) ([]PAR, error)

	// DeletePAR revokes a preauthenticated request.
	DeletePAR(ctx context.Context, bucket, parID string) error

	// ListRetentionRules lists retention rules on a bucket.
	ListRetentionRules(ctx context.Context, bucket string) ([]RetentionRule, error)

	// PutRetentionRule creates or replaces a retention rule on a bucket.
	PutRetentionRule(ctx context.Context, bucket string, rule RetentionRule) (*RetentionRule, error)

	// DeleteRetentionRule removes a retention rule from a bucket.
	DeleteRetentionRule(ctx context.Context, bucket, ruleID string) error

	// ListReplicationPolicies lists replication policies on a bucket.
	ListReplicationPolicies(ctx context.Context, bucket string) ([]ReplicationPolicy, error)

	// CreateReplicationPolicy creates a replication policy on a bucket.
	CreateReplicationPolicy(ctx context.Context, bucket string, policy ReplicationPolicy) (*ReplicationPolicy, error)

	// DeleteReplicationPolicy removes a replication policy from a bucket.
	DeleteReplicationPolicy(ctx context.Context, bucket, policyID string) error

	// GetWorkRequest returns the status of an asynchronous storage operation.
	// Callers poll; the facade supplies no wait loop.
	GetWorkRequest(ctx context.Context, id string) (*WorkRequest, error)

	// ListWorkRequestErrors lists the errors recorded for a work request.
	ListWorkRequestErrors(ctx context.Context, id string) ([]WorkRequestError, error)
}

// BucketInfo contains information about a storage bucket.
type BucketInfo struct {
	Name         string            `json:"name"`
	Namespace    string            `json:"namespace,omitempty"`
	Region       string            `json:"region,omitempty"`
	CreationDate time.Time         `json:"creation_date,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

// ObjectInfo contains information about a stored object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag,omitempty"`
	StorageClass string    `json:"storage_class,omitempty"`
}

// ObjectMetadata contains metadata for an object.
type ObjectMetadata struct {
	ContentType     string            `json:"content_type,omitempty"`
	ContentLength   int64             `json:"content_length,omitempty"`
	ContentEncoding string            `json:"content_encoding,omitempty"`
	ETag            string            `json:"etag,omitempty"`
	LastModified    time.Time         `json:"last_modified,omitempty"`
	StorageClass    string            `json:"storage_class,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// MultipartUpload identifies an in-progress multipart upload.
type MultipartUpload struct {
	UploadID  string    `json:"upload_id"`
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// PartInfo describes one uploaded part of a multipart upload.
type PartInfo struct {
	PartNumber int    `json:"part_number"`
	ETag       string `json:"etag"`
	Size       int64  `json:"size"`
}

// CommitPart names one part to include when completing a multipart upload.
type CommitPart struct {
	PartNumber int    `json:"part_number"`
	ETag       string `json:"etag,omitempty"`
}

// PAR is a preauthenticated request: a URL granting time-limited access
// to one object without credentials.
type PAR struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Bucket    string    `json:"bucket"`
	ObjectKey string    `json:"object_key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// RetentionRule constrains modification of objects in a bucket for a
// duration measured in days.
type RetentionRule struct {
	ID           string    `json:"id,omitempty"`
	DisplayName  string    `json:"display_name,omitempty"`
	DurationDays int       `json:"duration_days"`
	Locked       bool      `json:"locked,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// ReplicationPolicy copies new objects from a bucket to a destination
// bucket, typically in another region.
type ReplicationPolicy struct {
	ID                string    `json:"id,omitempty"`
	Name              string    `json:"name"`
	DestinationRegion string    `json:"destination_region,omitempty"`
	DestinationBucket string    `json:"destination_bucket"`
	Status            string    `json:"status,omitempty"`
	CreatedAt         time.Time `json:"created_at,omitempty"`
}

// Work request statuses.
const (
	WorkRequestAccepted   = "ACCEPTED"
	WorkRequestInProgress = "IN_PROGRESS"
	WorkRequestCompleted  = "COMPLETED"
	WorkRequestFailed     = "FAILED"
)

// WorkRequest is the observable status of a vendor-side asynchronous
// storage operation.
type WorkRequest struct {
	ID              string     `json:"id"`
	OperationType   string     `json:"operation_type"`
	Status          string     `json:"status"`
	PercentComplete float64    `json:"percent_complete"`
	TimeAccepted    time.Time  `json:"time_accepted"`
	TimeStarted     *time.Time `json:"time_started,omitempty"`
	TimeFinished    *time.Time `json:"time_finished,omitempty"`
}

// WorkRequestError is one error recorded against a work request.
type WorkRequestError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
