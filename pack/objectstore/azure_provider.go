package objectstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"

	"github.com/opsforge/opsforge/domain/envelope"
)

// AzureProvider implements the Provider interface for Azure Blob Storage.
// Containers map to buckets and block blobs back the multipart operations.
type AzureProvider struct {
	client      *azblob.Client
	sharedKey   *azblob.SharedKeyCredential
	accountName string
}

// AzureConfig configures the Azure Blob Storage provider.
type AzureConfig struct {
	AccountName      string // Azure Storage account name
	AccountKey       string // Optional: storage account key
	ConnectionString string // Optional: full connection string
	// If neither AccountKey nor ConnectionString is provided, uses DefaultAzureCredential
}

// NewAzureProvider creates a new Azure Blob Storage provider.
func NewAzureProvider(ctx context.Context, cfg AzureConfig) (*AzureProvider, error) {
	if cfg.AccountName == "" && cfg.ConnectionString == "" {
		return nil, fmt.Errorf("account name or connection string is required")
	}

	p := &AzureProvider{accountName: cfg.AccountName}

	switch {
	case cfg.ConnectionString != "":
		client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create client from connection string: %w", err)
		}
		p.client = client
	case cfg.AccountKey != "":
		serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
		cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create shared key credential: %w", err)
		}
		client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create client with shared key: %w", err)
		}
		p.client = client
		p.sharedKey = cred
	default:
		serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create default credential: %w", err)
		}
		client, err := azblob.NewClient(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create client with default credential: %w", err)
		}
		p.client = client
	}

	return p, nil
}

// Name returns the provider name.
func (p *AzureProvider) Name() string {
	return "azure-blob"
}

// Namespace returns the storage account name, the closest Azure analogue
// to a tenancy namespace.
func (p *AzureProvider) Namespace(ctx context.Context) (string, error) {
	if p.accountName == "" {
		return "", envelope.Unsupported("get_namespace", p.Name())
	}
	return p.accountName, nil
}

func azureStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}

// ListBuckets lists all containers.
func (p *AzureProvider) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	var buckets []BucketInfo

	pager := p.client.NewListContainersPager(&service.ListContainersOptions{})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list containers: %w", err)
		}

		for _, c := range resp.ContainerItems {
			bucket := BucketInfo{
				Name:      *c.Name,
				Namespace: p.accountName,
			}
			if c.Properties != nil && c.Properties.LastModified != nil {
				bucket.CreationDate = *c.Properties.LastModified
			}
			if c.Metadata != nil {
				bucket.Tags = make(map[string]string)
				for k, v := range c.Metadata {
					if v != nil {
						bucket.Tags[k] = *v
					}
				}
			}
			buckets = append(buckets, bucket)
		}
	}

	return buckets, nil
}

// GetBucket returns metadata for one container.
func (p *AzureProvider) GetBucket(ctx context.Context, bucket string) (*BucketInfo, error) {
	containerClient := p.client.ServiceClient().NewContainerClient(bucket)

	resp, err := containerClient.GetProperties(ctx, nil)
	if err != nil {
		if azureStatus(err, 404) {
			return nil, ErrBucketNotFound
		}
		return nil, fmt.Errorf("failed to get container properties: %w", err)
	}

	info := &BucketInfo{Name: bucket, Namespace: p.accountName}
	if resp.LastModified != nil {
		info.CreationDate = *resp.LastModified
	}
	if resp.Metadata != nil {
		info.Tags = make(map[string]string)
		for k, v := range resp.Metadata {
			if v != nil {
				info.Tags[k] = *v
			}
		}
	}
	return info, nil
}

// CreateBucket creates a container.
func (p *AzureProvider) CreateBucket(ctx context.Context, bucket string) error {
	if _, err := p.client.CreateContainer(ctx, bucket, nil); err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	return nil
}

// DeleteBucket deletes a container.
func (p *AzureProvider) DeleteBucket(ctx context.Context, bucket string) error {
	if _, err := p.client.DeleteContainer(ctx, bucket, nil); err != nil {
		if azureStatus(err, 404) {
			return ErrBucketNotFound
		}
		return fmt.Errorf("failed to delete container: %w", err)
	}
	return nil
}

// ListObjects lists blobs in a container with optional prefix.
func (p *AzureProvider) ListObjects(ctx context.Context, bucket, prefix string, maxKeys int) ([]ObjectInfo, error) {
	containerClient := p.client.ServiceClient().NewContainerClient(bucket)

	var objects []ObjectInfo
	count := 0

	listOpts := &container.ListBlobsFlatOptions{}
	if prefix != "" {
		listOpts.Prefix = &prefix
	}
	if maxKeys > 0 {
		maxResults := int32(maxKeys)
		listOpts.MaxResults = &maxResults
	}

	pager := containerClient.NewListBlobsFlatPager(listOpts)
	for pager.More() {
		if maxKeys > 0 && count >= maxKeys {
			break
		}

		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}

		for _, b := range resp.Segment.BlobItems {
			if maxKeys > 0 && count >= maxKeys {
				break
			}

			object := ObjectInfo{
				Key: *b.Name,
			}
			if b.Properties != nil {
				if b.Properties.ContentLength != nil {
					object.Size = *b.Properties.ContentLength
				}
				if b.Properties.LastModified != nil {
					object.LastModified = *b.Properties.LastModified
				}
				if b.Properties.ETag != nil {
					object.ETag = string(*b.Properties.ETag)
				}
				if b.Properties.AccessTier != nil {
					object.StorageClass = string(*b.Properties.AccessTier)
				}
			}
			objects = append(objects, object)
			count++
		}
	}

	return objects, nil
}

func azureMetadata(contentLength *int64, contentType, contentEncoding *string, etag *azcore.ETag, lastModified *time.Time, meta map[string]*string) *ObjectMetadata {
	metadata := &ObjectMetadata{}
	if contentLength != nil {
		metadata.ContentLength = *contentLength
	}
	if contentType != nil {
		metadata.ContentType = *contentType
	}
	if contentEncoding != nil {
		metadata.ContentEncoding = *contentEncoding
	}
	if etag != nil {
		metadata.ETag = string(*etag)
	}
	if lastModified != nil {
		metadata.LastModified = *lastModified
	}
	if meta != nil {
		metadata.Metadata = make(map[string]string)
		for k, v := range meta {
			if v != nil {
				metadata.Metadata[k] = *v
			}
		}
	}
	return metadata
}

// GetObject retrieves a blob's content.
func (p *AzureProvider) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, *ObjectMetadata, error) {
	blobClient := p.client.ServiceClient().NewContainerClient(bucket).NewBlobClient(key)

	props, err := blobClient.GetProperties(ctx, nil)
	if err != nil {
		if azureStatus(err, 404) {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, fmt.Errorf("failed to get blob properties: %w", err)
	}

	resp, err := blobClient.DownloadStream(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download blob: %w", err)
	}

	metadata := azureMetadata(props.ContentLength, props.ContentType, props.ContentEncoding, props.ETag, props.LastModified, props.Metadata)
	if props.AccessTier != nil {
		metadata.StorageClass = *props.AccessTier
	}
	return resp.Body, metadata, nil
}

// PutObject uploads a block blob.
func (p *AzureProvider) PutObject(ctx context.Context, bucket, key string, data io.Reader, metadata *ObjectMetadata) error {
	blobClient := p.client.ServiceClient().NewContainerClient(bucket).NewBlockBlobClient(key)

	uploadOpts := &blockblob.UploadStreamOptions{}
	if metadata != nil {
		httpHeaders := &blob.HTTPHeaders{}
		if metadata.ContentType != "" {
			httpHeaders.BlobContentType = &metadata.ContentType
		}
		if metadata.ContentEncoding != "" {
			httpHeaders.BlobContentEncoding = &metadata.ContentEncoding
		}
		uploadOpts.HTTPHeaders = httpHeaders

		if metadata.Metadata != nil {
			uploadOpts.Metadata = make(map[string]*string)
			for k, v := range metadata.Metadata {
				val := v
				uploadOpts.Metadata[k] = &val
			}
		}
	}

	if _, err := blobClient.UploadStream(ctx, data, uploadOpts); err != nil {
		return fmt.Errorf("failed to upload blob: %w", err)
	}
	return nil
}

// DeleteObject deletes a blob.
func (p *AzureProvider) DeleteObject(ctx context.Context, bucket, key string) error {
	blobClient := p.client.ServiceClient().NewContainerClient(bucket).NewBlobClient(key)

	if _, err := blobClient.Delete(ctx, nil); err != nil {
		if azureStatus(err, 404) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// CopyObject copies a blob server-side. The source must be readable by
// the service: same account, public, or carrying its own SAS.
func (p *AzureProvider) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	srcClient := p.client.ServiceClient().NewContainerClient(srcBucket).NewBlobClient(srcKey)
	dstClient := p.client.ServiceClient().NewContainerClient(dstBucket).NewBlobClient(dstKey)

	if _, err := dstClient.StartCopyFromURL(ctx, srcClient.URL(), nil); err != nil {
		if azureStatus(err, 404) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to copy blob: %w", err)
	}
	return nil
}

// HeadObject retrieves blob metadata without content.
func (p *AzureProvider) HeadObject(ctx context.Context, bucket, key string) (*ObjectMetadata, error) {
	blobClient := p.client.ServiceClient().NewContainerClient(bucket).NewBlobClient(key)

	props, err := blobClient.GetProperties(ctx, nil)
	if err != nil {
		if azureStatus(err, 404) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get blob properties: %w", err)
	}

	metadata := azureMetadata(props.ContentLength, props.ContentType, props.ContentEncoding, props.ETag, props.LastModified, props.Metadata)
	if props.AccessTier != nil {
		metadata.StorageClass = *props.AccessTier
	}
	return metadata, nil
}

// RestoreObject rehydrates an archived blob by moving it back to the hot tier.
func (p *AzureProvider) RestoreObject(ctx context.Context, bucket, key string, hours int) error {
	blobClient := p.client.ServiceClient().NewContainerClient(bucket).NewBlobClient(key)

	priority := blob.RehydratePriorityStandard
	if _, err := blobClient.SetTier(ctx, blob.AccessTierHot, &blob.SetTierOptions{
		RehydratePriority: &priority,
	}); err != nil {
		if azureStatus(err, 404) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to rehydrate blob: %w", err)
	}
	return nil
}

// azureBlockID derives a fixed-format block id from the upload id and
// part number. All block ids for one blob must share a length, which the
// zero-padded part number guarantees per upload.
func azureBlockID(uploadID string, partNumber int) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%06d", uploadID, partNumber)))
}

// CreateMultipartUpload starts a block blob upload. Blocks are staged
// against the destination blob; the returned id only namespaces the
// block ids, Azure tracks no upload object server-side.
func (p *AzureProvider) CreateMultipartUpload(ctx context.Context, bucket, key string) (*MultipartUpload, error) {
	return &MultipartUpload{
		UploadID:  newUploadID(),
		Bucket:    bucket,
		Key:       key,
		CreatedAt: time.Now(),
	}, nil
}

// UploadPart stages one block of a block blob.
func (p *AzureProvider) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, data io.Reader) (*PartInfo, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read part content: %w", err)
	}

	blobClient := p.client.ServiceClient().NewContainerClient(bucket).NewBlockBlobClient(key)
	blockID := azureBlockID(uploadID, partNumber)

	if _, err := blobClient.StageBlock(ctx, blockID, streaming.NopCloser(bytes.NewReader(content)), nil); err != nil {
		return nil, fmt.Errorf("failed to stage block: %w", err)
	}
	return &PartInfo{PartNumber: partNumber, ETag: blockID, Size: int64(len(content))}, nil
}

// CommitMultipartUpload commits the staged blocks in part order.
func (p *AzureProvider) CommitMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []CommitPart) (string, error) {
	blobClient := p.client.ServiceClient().NewContainerClient(bucket).NewBlockBlobClient(key)

	blockIDs := make([]string, 0, len(parts))
	for _, part := range parts {
		blockIDs = append(blockIDs, azureBlockID(uploadID, part.PartNumber))
	}

	resp, err := blobClient.CommitBlockList(ctx, blockIDs, nil)
	if err != nil {
		return "", fmt.Errorf("failed to commit block list: %w", err)
	}

	etag := ""
	if resp.ETag != nil {
		etag = string(*resp.ETag)
	}
	return etag, nil
}

// AbortMultipartUpload is unsupported: Azure has no abort call, the
// service discards uncommitted blocks on its own after their lease expires.
func (p *AzureProvider) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	return envelope.Unsupported("abort_multipart_upload", p.Name())
}

// ListMultipartUploads is unsupported: staged blocks are not enumerable
// per upload at the container level.
func (p *AzureProvider) ListMultipartUploads(ctx context.Context, bucket string) ([]MultipartUpload, error) {
	return nil, envelope.Unsupported("list_multipart_uploads", p.Name())
}

// ListParts lists the uncommitted blocks staged under the given upload id.
func (p *AzureProvider) ListParts(ctx context.Context, bucket, key, uploadID string) ([]PartInfo, error) {
	blobClient := p.client.ServiceClient().NewContainerClient(bucket).NewBlockBlobClient(key)

	resp, err := blobClient.GetBlockList(ctx, blockblob.BlockListTypeUncommitted, nil)
	if err != nil {
		if azureStatus(err, 404) {
			return nil, ErrUploadNotFound
		}
		return nil, fmt.Errorf("failed to get block list: %w", err)
	}

	var parts []PartInfo
	for _, block := range resp.UncommittedBlocks {
		if block.Name == nil {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(*block.Name)
		if err != nil {
			continue
		}
		prefix := uploadID + ":"
		if !strings.HasPrefix(string(decoded), prefix) {
			continue
		}
		partNumber, err := strconv.Atoi(strings.TrimPrefix(string(decoded), prefix))
		if err != nil {
			continue
		}
		info := PartInfo{PartNumber: partNumber, ETag: *block.Name}
		if block.Size != nil {
			info.Size = *block.Size
		}
		parts = append(parts, info)
	}
	return parts, nil
}

// CreatePAR generates a SAS URL for one blob. Requires a shared key
// credential; token credentials cannot sign SAS values.
func (p *AzureProvider) CreatePAR(ctx context.Context, bucket, key, name string, expiry time.Duration) (*PAR, error) {
	if p.sharedKey == nil {
		return nil, envelope.Unsupported("create_par", p.Name())
	}

	now := time.Now()
	permissions := sas.BlobPermissions{Read: true}
	values := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		StartTime:     now.Add(-5 * time.Minute),
		ExpiryTime:    now.Add(expiry),
		Permissions:   permissions.String(),
		ContainerName: bucket,
		BlobName:      key,
	}

	queryParams, err := values.SignWithSharedKey(p.sharedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign SAS values: %w", err)
	}

	blobClient := p.client.ServiceClient().NewContainerClient(bucket).NewBlobClient(key)
	return &PAR{
		ID:        name,
		Name:      name,
		Bucket:    bucket,
		ObjectKey: key,
		URL:       blobClient.URL() + "?" + queryParams.Encode(),
		ExpiresAt: now.Add(expiry),
		CreatedAt: now,
	}, nil
}

// ListPARs is unsupported: SAS tokens are not stored server-side.
func (p *AzureProvider) ListPARs(ctx context.Context, bucket string) ([]PAR, error) {
	return nil, envelope.Unsupported("list_pars", p.Name())
}

// DeletePAR is unsupported: SAS tokens cannot be revoked individually.
func (p *AzureProvider) DeletePAR(ctx context.Context, bucket, parID string) error {
	return envelope.Unsupported("delete_par", p.Name())
}

// Retention and replication are management-plane concerns in Azure and
// are not reachable through the data-plane blob client.

func (p *AzureProvider) ListRetentionRules(ctx context.Context, bucket string) ([]RetentionRule, error) {
	return nil, envelope.Unsupported("list_retention_rules", p.Name())
}

func (p *AzureProvider) PutRetentionRule(ctx context.Context, bucket string, rule RetentionRule) (*RetentionRule, error) {
	return nil, envelope.Unsupported("put_retention_rule", p.Name())
}

func (p *AzureProvider) DeleteRetentionRule(ctx context.Context, bucket, ruleID string) error {
	return envelope.Unsupported("delete_retention_rule", p.Name())
}

func (p *AzureProvider) ListReplicationPolicies(ctx context.Context, bucket string) ([]ReplicationPolicy, error) {
	return nil, envelope.Unsupported("list_replication_policies", p.Name())
}

func (p *AzureProvider) CreateReplicationPolicy(ctx context.Context, bucket string, policy ReplicationPolicy) (*ReplicationPolicy, error) {
	return nil, envelope.Unsupported("create_replication_policy", p.Name())
}

func (p *AzureProvider) DeleteReplicationPolicy(ctx context.Context, bucket, policyID string) error {
	return envelope.Unsupported("delete_replication_policy", p.Name())
}

func (p *AzureProvider) GetWorkRequest(ctx context.Context, id string) (*WorkRequest, error) {
	return nil, envelope.Unsupported("get_work_request", p.Name())
}

func (p *AzureProvider) ListWorkRequestErrors(ctx context.Context, id string) ([]WorkRequestError, error) {
	return nil, envelope.Unsupported("list_work_request_errors", p.Name())
}

var _ Provider = (*AzureProvider)(nil)
