package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/opsforge/opsforge/domain/envelope"
)

// S3Provider implements the Provider interface for AWS S3.
type S3Provider struct {
	client          *s3.Client
	presign         *s3.PresignClient
	region          string
	replicationRole string
}

// S3Config configures the S3 provider.
type S3Config struct {
	Region          string // AWS region (default: us-east-1)
	AccessKeyID     string // Optional: AWS access key (uses default credential chain if empty)
	SecretAccessKey string // Optional: AWS secret key
	SessionToken    string // Optional: AWS session token
	Endpoint        string // Optional: custom endpoint for S3-compatible storage
	ReplicationRole string // Optional: IAM role ARN for replication policies
}

// NewS3Provider creates a new AWS S3 provider.
func NewS3Provider(ctx context.Context, cfg S3Config) (*S3Provider, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	var awsCfg aws.Config
	var err error

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Opts := []func(*s3.Options){}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for most S3-compatible storage
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	p := &S3Provider{
		client:          client,
		presign:         s3.NewPresignClient(client),
		region:          region,
		replicationRole: cfg.ReplicationRole,
	}
	return p, nil
}

// Name returns the provider name.
func (p *S3Provider) Name() string {
	return "aws-s3"
}

// Namespace is not a concept S3 exposes; bucket names are global.
func (p *S3Provider) Namespace(ctx context.Context) (string, error) {
	return "", envelope.Unsupported("get_namespace", p.Name())
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "NoSuchKey") ||
		strings.Contains(msg, "NoSuchBucket") || strings.Contains(msg, "404")
}

// ListBuckets lists all S3 buckets.
func (p *S3Provider) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	output, err := p.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	buckets := make([]BucketInfo, 0, len(output.Buckets))
	for _, b := range output.Buckets {
		bucket := BucketInfo{
			Name: aws.ToString(b.Name),
		}
		if b.CreationDate != nil {
			bucket.CreationDate = *b.CreationDate
		}
		buckets = append(buckets, bucket)
	}
	return buckets, nil
}

// GetBucket checks the bucket and reports its region.
func (p *S3Provider) GetBucket(ctx context.Context, bucket string) (*BucketInfo, error) {
	output, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrBucketNotFound
		}
		return nil, fmt.Errorf("failed to head bucket: %w", err)
	}

	info := &BucketInfo{Name: bucket, Region: p.region}
	if output.BucketRegion != nil {
		info.Region = *output.BucketRegion
	}
	return info, nil
}

// CreateBucket creates an S3 bucket in the provider's region.
func (p *S3Provider) CreateBucket(ctx context.Context, bucket string) error {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	}
	// us-east-1 rejects an explicit location constraint.
	if p.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(p.region),
		}
	}

	if _, err := p.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// DeleteBucket deletes an empty bucket.
func (p *S3Provider) DeleteBucket(ctx context.Context, bucket string) error {
	_, err := p.client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		if isNotFound(err) {
			return ErrBucketNotFound
		}
		return fmt.Errorf("failed to delete bucket: %w", err)
	}
	return nil
}

// ListObjects lists objects in a bucket with optional prefix.
func (p *S3Provider) ListObjects(ctx context.Context, bucket, prefix string, maxKeys int) ([]ObjectInfo, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(int32(maxKeys)),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	output, err := p.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	objects := make([]ObjectInfo, 0, len(output.Contents))
	for _, obj := range output.Contents {
		object := ObjectInfo{
			Key:  aws.ToString(obj.Key),
			Size: aws.ToInt64(obj.Size),
		}
		if obj.LastModified != nil {
			object.LastModified = *obj.LastModified
		}
		if obj.ETag != nil {
			object.ETag = strings.Trim(*obj.ETag, "\"")
		}
		if obj.StorageClass != "" {
			object.StorageClass = string(obj.StorageClass)
		}
		objects = append(objects, object)
	}
	return objects, nil
}

// GetObject retrieves an object's content.
func (p *S3Provider) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, *ObjectMetadata, error) {
	output, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, fmt.Errorf("failed to get object: %w", err)
	}

	metadata := &ObjectMetadata{
		ContentType:   aws.ToString(output.ContentType),
		ContentLength: aws.ToInt64(output.ContentLength),
	}
	if output.ETag != nil {
		metadata.ETag = strings.Trim(*output.ETag, "\"")
	}
	if output.LastModified != nil {
		metadata.LastModified = *output.LastModified
	}
	if output.ContentEncoding != nil {
		metadata.ContentEncoding = *output.ContentEncoding
	}
	if output.StorageClass != "" {
		metadata.StorageClass = string(output.StorageClass)
	}
	if output.Metadata != nil {
		metadata.Metadata = output.Metadata
	}
	return output.Body, metadata, nil
}

// PutObject uploads an object.
func (p *S3Provider) PutObject(ctx context.Context, bucket, key string, data io.Reader, metadata *ObjectMetadata) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   data,
	}
	if metadata != nil {
		if metadata.ContentType != "" {
			input.ContentType = aws.String(metadata.ContentType)
		}
		if metadata.ContentEncoding != "" {
			input.ContentEncoding = aws.String(metadata.ContentEncoding)
		}
		if metadata.Metadata != nil {
			input.Metadata = metadata.Metadata
		}
	}

	if _, err := p.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

// DeleteObject deletes an object.
func (p *S3Provider) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// CopyObject copies an object within or across buckets.
func (p *S3Provider) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	_, err := p.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(srcBucket + "/" + srcKey),
	})
	if err != nil {
		if isNotFound(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to copy object: %w", err)
	}
	return nil
}

// HeadObject retrieves object metadata without content.
func (p *S3Provider) HeadObject(ctx context.Context, bucket, key string) (*ObjectMetadata, error) {
	output, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to head object: %w", err)
	}

	metadata := &ObjectMetadata{
		ContentType:   aws.ToString(output.ContentType),
		ContentLength: aws.ToInt64(output.ContentLength),
	}
	if output.ETag != nil {
		metadata.ETag = strings.Trim(*output.ETag, "\"")
	}
	if output.LastModified != nil {
		metadata.LastModified = *output.LastModified
	}
	if output.ContentEncoding != nil {
		metadata.ContentEncoding = *output.ContentEncoding
	}
	if output.StorageClass != "" {
		metadata.StorageClass = string(output.StorageClass)
	}
	if output.Metadata != nil {
		metadata.Metadata = output.Metadata
	}
	return metadata, nil
}

// RestoreObject recalls an archived object from Glacier.
func (p *S3Provider) RestoreObject(ctx context.Context, bucket, key string, hours int) error {
	days := hours / 24
	if days < 1 {
		days = 1
	}

	_, err := p.client.RestoreObject(ctx, &s3.RestoreObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		RestoreRequest: &types.RestoreRequest{
			Days: aws.Int32(int32(days)),
			GlacierJobParameters: &types.GlacierJobParameters{
				Tier: types.TierStandard,
			},
		},
	})
	if err != nil {
		if isNotFound(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to restore object: %w", err)
	}
	return nil
}

// CreateMultipartUpload starts a multipart upload.
func (p *S3Provider) CreateMultipartUpload(ctx context.Context, bucket, key string) (*MultipartUpload, error) {
	output, err := p.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart upload: %w", err)
	}
	return &MultipartUpload{
		UploadID:  aws.ToString(output.UploadId),
		Bucket:    bucket,
		Key:       key,
		CreatedAt: time.Now(),
	}, nil
}

// UploadPart uploads one part of a multipart upload.
func (p *S3Provider) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, data io.Reader) (*PartInfo, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read part content: %w", err)
	}

	output, err := p.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(int32(partNumber)),
		Body:       bytes.NewReader(content),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUploadNotFound
		}
		return nil, fmt.Errorf("failed to upload part: %w", err)
	}

	etag := ""
	if output.ETag != nil {
		etag = strings.Trim(*output.ETag, "\"")
	}
	return &PartInfo{PartNumber: partNumber, ETag: etag, Size: int64(len(content))}, nil
}

// CommitMultipartUpload completes a multipart upload.
func (p *S3Provider) CommitMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []CommitPart) (string, error) {
	completed := make([]types.CompletedPart, 0, len(parts))
	for _, part := range parts {
		cp := types.CompletedPart{
			PartNumber: aws.Int32(int32(part.PartNumber)),
		}
		if part.ETag != "" {
			cp.ETag = aws.String(part.ETag)
		}
		completed = append(completed, cp)
	}

	output, err := p.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		if isNotFound(err) {
			return "", ErrUploadNotFound
		}
		return "", fmt.Errorf("failed to complete multipart upload: %w", err)
	}

	etag := ""
	if output.ETag != nil {
		etag = strings.Trim(*output.ETag, "\"")
	}
	return etag, nil
}

// AbortMultipartUpload abandons a multipart upload.
func (p *S3Provider) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	_, err := p.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		if isNotFound(err) {
			return ErrUploadNotFound
		}
		return fmt.Errorf("failed to abort multipart upload: %w", err)
	}
	return nil
}

// ListMultipartUploads lists in-progress uploads in a bucket.
func (p *S3Provider) ListMultipartUploads(ctx context.Context, bucket string) ([]MultipartUpload, error) {
	output, err := p.client.ListMultipartUploads(ctx, &s3.ListMultipartUploadsInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list multipart uploads: %w", err)
	}

	uploads := make([]MultipartUpload, 0, len(output.Uploads))
	for _, u := range output.Uploads {
		upload := MultipartUpload{
			UploadID: aws.ToString(u.UploadId),
			Bucket:   bucket,
			Key:      aws.ToString(u.Key),
		}
		if u.Initiated != nil {
			upload.CreatedAt = *u.Initiated
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

// ListParts lists the parts uploaded so far for one upload.
func (p *S3Provider) ListParts(ctx context.Context, bucket, key, uploadID string) ([]PartInfo, error) {
	output, err := p.client.ListParts(ctx, &s3.ListPartsInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUploadNotFound
		}
		return nil, fmt.Errorf("failed to list parts: %w", err)
	}

	parts := make([]PartInfo, 0, len(output.Parts))
	for _, part := range output.Parts {
		info := PartInfo{
			PartNumber: int(aws.ToInt32(part.PartNumber)),
			Size:       aws.ToInt64(part.Size),
		}
		if part.ETag != nil {
			info.ETag = strings.Trim(*part.ETag, "\"")
		}
		parts = append(parts, info)
	}
	return parts, nil
}

// CreatePAR generates a presigned GET URL for an object. S3 presigned
// URLs are computed client-side; nothing is registered with the service,
// so ListPARs and DeletePAR are unsupported here.
func (p *S3Provider) CreatePAR(ctx context.Context, bucket, key, name string, expiry time.Duration) (*PAR, error) {
	request, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return nil, fmt.Errorf("failed to presign object URL: %w", err)
	}

	now := time.Now()
	return &PAR{
		ID:        name,
		Name:      name,
		Bucket:    bucket,
		ObjectKey: key,
		URL:       request.URL,
		ExpiresAt: now.Add(expiry),
		CreatedAt: now,
	}, nil
}

// ListPARs is unsupported: presigned URLs are not stored server-side.
func (p *S3Provider) ListPARs(ctx context.Context, bucket string) ([]PAR, error) {
	return nil, envelope.Unsupported("list_pars", p.Name())
}

// DeletePAR is unsupported: presigned URLs cannot be revoked individually.
func (p *S3Provider) DeletePAR(ctx context.Context, bucket, parID string) error {
	return envelope.Unsupported("delete_par", p.Name())
}

// ListRetentionRules reads the bucket's object lock configuration. S3
// holds at most one default retention rule per bucket.
func (p *S3Provider) ListRetentionRules(ctx context.Context, bucket string) ([]RetentionRule, error) {
	output, err := p.client.GetObjectLockConfiguration(ctx, &s3.GetObjectLockConfigurationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		if strings.Contains(err.Error(), "ObjectLockConfigurationNotFound") {
			return []RetentionRule{}, nil
		}
		return nil, fmt.Errorf("failed to get object lock configuration: %w", err)
	}

	cfg := output.ObjectLockConfiguration
	if cfg == nil || cfg.Rule == nil || cfg.Rule.DefaultRetention == nil {
		return []RetentionRule{}, nil
	}

	rule := RetentionRule{
		ID:           "default",
		DisplayName:  "default",
		DurationDays: int(aws.ToInt32(cfg.Rule.DefaultRetention.Days)),
		Locked:       cfg.Rule.DefaultRetention.Mode == types.ObjectLockRetentionModeCompliance,
	}
	return []RetentionRule{rule}, nil
}

// PutRetentionRule sets the bucket's default object lock retention.
func (p *S3Provider) PutRetentionRule(ctx context.Context, bucket string, rule RetentionRule) (*RetentionRule, error) {
	mode := types.ObjectLockRetentionModeGovernance
	if rule.Locked {
		mode = types.ObjectLockRetentionModeCompliance
	}

	_, err := p.client.PutObjectLockConfiguration(ctx, &s3.PutObjectLockConfigurationInput{
		Bucket: aws.String(bucket),
		ObjectLockConfiguration: &types.ObjectLockConfiguration{
			ObjectLockEnabled: types.ObjectLockEnabledEnabled,
			Rule: &types.ObjectLockRule{
				DefaultRetention: &types.DefaultRetention{
					Days: aws.Int32(int32(rule.DurationDays)),
					Mode: mode,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to put object lock configuration: %w", err)
	}

	rule.ID = "default"
	return &rule, nil
}

// DeleteRetentionRule is unsupported: S3 object lock cannot be disabled
// once enabled on a bucket.
func (p *S3Provider) DeleteRetentionRule(ctx context.Context, bucket, ruleID string) error {
	return envelope.Unsupported("delete_retention_rule", p.Name())
}

// ListReplicationPolicies reads the bucket's replication configuration.
func (p *S3Provider) ListReplicationPolicies(ctx context.Context, bucket string) ([]ReplicationPolicy, error) {
	output, err := p.client.GetBucketReplication(ctx, &s3.GetBucketReplicationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		if strings.Contains(err.Error(), "ReplicationConfigurationNotFound") {
			return []ReplicationPolicy{}, nil
		}
		return nil, fmt.Errorf("failed to get bucket replication: %w", err)
	}

	if output.ReplicationConfiguration == nil {
		return []ReplicationPolicy{}, nil
	}

	policies := make([]ReplicationPolicy, 0, len(output.ReplicationConfiguration.Rules))
	for _, rule := range output.ReplicationConfiguration.Rules {
		policy := ReplicationPolicy{
			ID:     aws.ToString(rule.ID),
			Name:   aws.ToString(rule.ID),
			Status: string(rule.Status),
		}
		if rule.Destination != nil {
			policy.DestinationBucket = strings.TrimPrefix(aws.ToString(rule.Destination.Bucket), "arn:aws:s3:::")
		}
		policies = append(policies, policy)
	}
	return policies, nil
}

// CreateReplicationPolicy replaces the bucket's replication configuration
// with a single rule targeting the destination bucket.
func (p *S3Provider) CreateReplicationPolicy(ctx context.Context, bucket string, policy ReplicationPolicy) (*ReplicationPolicy, error) {
	if p.replicationRole == "" {
		return nil, envelope.Unsupported("create_replication_policy", p.Name())
	}

	_, err := p.client.PutBucketReplication(ctx, &s3.PutBucketReplicationInput{
		Bucket: aws.String(bucket),
		ReplicationConfiguration: &types.ReplicationConfiguration{
			Role: aws.String(p.replicationRole),
			Rules: []types.ReplicationRule{
				{
					ID:     aws.String(policy.Name),
					Status: types.ReplicationRuleStatusEnabled,
					Filter: &types.ReplicationRuleFilter{Prefix: aws.String("")},
					Destination: &types.Destination{
						Bucket: aws.String("arn:aws:s3:::" + policy.DestinationBucket),
					},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to put bucket replication: %w", err)
	}

	policy.ID = policy.Name
	policy.Status = string(types.ReplicationRuleStatusEnabled)
	return &policy, nil
}

// DeleteReplicationPolicy removes the bucket's replication configuration.
func (p *S3Provider) DeleteReplicationPolicy(ctx context.Context, bucket, policyID string) error {
	_, err := p.client.DeleteBucketReplication(ctx, &s3.DeleteBucketReplicationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to delete bucket replication: %w", err)
	}
	return nil
}

// GetWorkRequest is unsupported: S3 operations complete synchronously.
func (p *S3Provider) GetWorkRequest(ctx context.Context, id string) (*WorkRequest, error) {
	return nil, envelope.Unsupported("get_work_request", p.Name())
}

// ListWorkRequestErrors is unsupported: S3 operations complete synchronously.
func (p *S3Provider) ListWorkRequestErrors(ctx context.Context, id string) ([]WorkRequestError, error) {
	return nil, envelope.Unsupported("list_work_request_errors", p.Name())
}

var _ Provider = (*S3Provider)(nil)
