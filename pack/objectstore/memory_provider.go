package objectstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryProvider is an in-memory implementation of the Provider interface.
// It supports every operation, including work-request simulation, and is
// used for tests and development.
type MemoryProvider struct {
	mu           sync.RWMutex
	namespace    string
	buckets      map[string]*memoryBucket
	workRequests map[string]*memoryWorkRequest
}

type memoryBucket struct {
	info        BucketInfo
	objects     map[string]*memoryObject
	uploads     map[string]*memoryUpload
	pars        map[string]PAR
	retention   map[string]RetentionRule
	replication map[string]ReplicationPolicy
}

type memoryObject struct {
	content  []byte
	metadata ObjectMetadata
	restored bool
}

type memoryUpload struct {
	info  MultipartUpload
	parts map[int]memoryPart
}

type memoryPart struct {
	etag    string
	content []byte
}

type memoryWorkRequest struct {
	request WorkRequest
	errors  []WorkRequestError
}

// MemoryOption configures the memory provider.
type MemoryOption func(*MemoryProvider)

// WithNamespace sets the namespace reported by the provider.
func WithNamespace(ns string) MemoryOption {
	return func(p *MemoryProvider) {
		p.namespace = ns
	}
}

// NewMemoryProvider creates a new in-memory object storage provider.
func NewMemoryProvider(opts ...MemoryOption) *MemoryProvider {
	p := &MemoryProvider{
		namespace:    "memory-namespace",
		buckets:      make(map[string]*memoryBucket),
		workRequests: make(map[string]*memoryWorkRequest),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider name.
func (p *MemoryProvider) Name() string {
	return "memory"
}

// Namespace returns the configured namespace.
func (p *MemoryProvider) Namespace(ctx context.Context) (string, error) {
	return p.namespace, nil
}

func (p *MemoryProvider) bucket(name string) (*memoryBucket, error) {
	b, ok := p.buckets[name]
	if !ok {
		return nil, ErrBucketNotFound
	}
	return b, nil
}

func etagOf(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}

// recordWorkRequest registers a completed work request for an operation.
// Callers can poll it afterwards the way they would poll a vendor's
// asynchronous API. Must be called with the write lock held.
func (p *MemoryProvider) recordWorkRequest(opType string) string {
	now := time.Now()
	started := now
	finished := now
	id := uuid.NewString()
	p.workRequests[id] = &memoryWorkRequest{
		request: WorkRequest{
			ID:              id,
			OperationType:   opType,
			Status:          WorkRequestCompleted,
			PercentComplete: 100,
			TimeAccepted:    now,
			TimeStarted:     &started,
			TimeFinished:    &finished,
		},
	}
	return id
}

// FailWorkRequest records a failed work request with one error entry.
// Test hook for exercising the error-listing path.
func (p *MemoryProvider) FailWorkRequest(opType, code, message string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	id := uuid.NewString()
	p.workRequests[id] = &memoryWorkRequest{
		request: WorkRequest{
			ID:            id,
			OperationType: opType,
			Status:        WorkRequestFailed,
			TimeAccepted:  now,
			TimeFinished:  &now,
		},
		errors: []WorkRequestError{{Code: code, Message: message, Timestamp: now}},
	}
	return id
}

// WorkRequestIDs returns the ids of all recorded work requests, sorted.
func (p *MemoryProvider) WorkRequestIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.workRequests))
	for id := range p.workRequests {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ListBuckets lists all buckets.
func (p *MemoryProvider) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	buckets := make([]BucketInfo, 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b.info)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Name < buckets[j].Name })
	return buckets, nil
}

// GetBucket returns metadata for one bucket.
func (p *MemoryProvider) GetBucket(ctx context.Context, bucket string) (*BucketInfo, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return nil, err
	}
	info := b.info
	return &info, nil
}

// CreateBucket creates a new bucket.
func (p *MemoryProvider) CreateBucket(ctx context.Context, bucket string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.buckets[bucket]; exists {
		return errors.New("bucket already exists")
	}
	p.buckets[bucket] = &memoryBucket{
		info: BucketInfo{
			Name:         bucket,
			Namespace:    p.namespace,
			CreationDate: time.Now(),
		},
		objects:     make(map[string]*memoryObject),
		uploads:     make(map[string]*memoryUpload),
		pars:        make(map[string]PAR),
		retention:   make(map[string]RetentionRule),
		replication: make(map[string]ReplicationPolicy),
	}
	p.recordWorkRequest("CREATE_BUCKET")
	return nil
}

// DeleteBucket deletes an empty bucket.
func (p *MemoryProvider) DeleteBucket(ctx context.Context, bucket string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return err
	}
	if len(b.objects) > 0 {
		return errors.New("bucket is not empty")
	}
	delete(p.buckets, bucket)
	p.recordWorkRequest("DELETE_BUCKET")
	return nil
}

// ListObjects lists objects in a bucket.
func (p *MemoryProvider) ListObjects(ctx context.Context, bucket, prefix string, maxKeys int) ([]ObjectInfo, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	objects := make([]ObjectInfo, 0, len(keys))
	for _, key := range keys {
		if maxKeys > 0 && len(objects) >= maxKeys {
			break
		}
		obj := b.objects[key]
		objects = append(objects, ObjectInfo{
			Key:          key,
			Size:         int64(len(obj.content)),
			LastModified: obj.metadata.LastModified,
			ETag:         obj.metadata.ETag,
			StorageClass: obj.metadata.StorageClass,
		})
	}
	return objects, nil
}

// GetObject retrieves an object's content.
func (p *MemoryProvider) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, *ObjectMetadata, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return nil, nil, err
	}
	obj, ok := b.objects[key]
	if !ok {
		return nil, nil, ErrObjectNotFound
	}

	metadata := obj.metadata
	metadata.ContentLength = int64(len(obj.content))
	return io.NopCloser(bytes.NewReader(obj.content)), &metadata, nil
}

// PutObject uploads an object.
func (p *MemoryProvider) PutObject(ctx context.Context, bucket, key string, data io.Reader, metadata *ObjectMetadata) error {
	content, err := io.ReadAll(data)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return err
	}

	objMeta := ObjectMetadata{
		LastModified: time.Now(),
		ETag:         etagOf(content),
	}
	if metadata != nil {
		objMeta.ContentType = metadata.ContentType
		objMeta.ContentEncoding = metadata.ContentEncoding
		objMeta.StorageClass = metadata.StorageClass
		objMeta.Metadata = metadata.Metadata
	}

	b.objects[key] = &memoryObject{content: content, metadata: objMeta}
	return nil
}

// DeleteObject deletes an object.
func (p *MemoryProvider) DeleteObject(ctx context.Context, bucket, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return err
	}
	if _, ok := b.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(b.objects, key)
	return nil
}

// CopyObject copies an object within or across buckets.
func (p *MemoryProvider) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	src, err := p.bucket(srcBucket)
	if err != nil {
		return err
	}
	obj, ok := src.objects[srcKey]
	if !ok {
		return ErrObjectNotFound
	}
	dst, err := p.bucket(dstBucket)
	if err != nil {
		return err
	}

	content := make([]byte, len(obj.content))
	copy(content, obj.content)
	metadata := obj.metadata
	metadata.LastModified = time.Now()

	dst.objects[dstKey] = &memoryObject{content: content, metadata: metadata}
	p.recordWorkRequest("COPY_OBJECT")
	return nil
}

// HeadObject retrieves object metadata without content.
func (p *MemoryProvider) HeadObject(ctx context.Context, bucket, key string) (*ObjectMetadata, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return nil, err
	}
	obj, ok := b.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	metadata := obj.metadata
	metadata.ContentLength = int64(len(obj.content))
	return &metadata, nil
}

// RestoreObject marks an archived object as restored.
func (p *MemoryProvider) RestoreObject(ctx context.Context, bucket, key string, hours int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return err
	}
	obj, ok := b.objects[key]
	if !ok {
		return ErrObjectNotFound
	}
	obj.restored = true
	p.recordWorkRequest("RESTORE_OBJECT")
	return nil
}

// CreateMultipartUpload starts a multipart upload.
func (p *MemoryProvider) CreateMultipartUpload(ctx context.Context, bucket, key string) (*MultipartUpload, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return nil, err
	}

	upload := MultipartUpload{
		UploadID:  uuid.NewString(),
		Bucket:    bucket,
		Key:       key,
		CreatedAt: time.Now(),
	}
	b.uploads[upload.UploadID] = &memoryUpload{
		info:  upload,
		parts: make(map[int]memoryPart),
	}
	return &upload, nil
}

// UploadPart uploads one part of a multipart upload.
func (p *MemoryProvider) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, data io.Reader) (*PartInfo, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return nil, err
	}
	upload, ok := b.uploads[uploadID]
	if !ok {
		return nil, ErrUploadNotFound
	}

	etag := etagOf(content)
	upload.parts[partNumber] = memoryPart{etag: etag, content: content}
	return &PartInfo{PartNumber: partNumber, ETag: etag, Size: int64(len(content))}, nil
}

// CommitMultipartUpload assembles the listed parts into the final object.
func (p *MemoryProvider) CommitMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []CommitPart) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return "", err
	}
	upload, ok := b.uploads[uploadID]
	if !ok {
		return "", ErrUploadNotFound
	}

	ordered := make([]CommitPart, len(parts))
	copy(ordered, parts)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].PartNumber < ordered[j].PartNumber })

	var content []byte
	for _, part := range ordered {
		stored, ok := upload.parts[part.PartNumber]
		if !ok {
			return "", errors.New("part not uploaded")
		}
		if part.ETag != "" && part.ETag != stored.etag {
			return "", errors.New("part etag mismatch")
		}
		content = append(content, stored.content...)
	}

	etag := etagOf(content)
	b.objects[key] = &memoryObject{
		content: content,
		metadata: ObjectMetadata{
			LastModified: time.Now(),
			ETag:         etag,
		},
	}
	delete(b.uploads, uploadID)
	return etag, nil
}

// AbortMultipartUpload discards an in-progress upload and its parts.
func (p *MemoryProvider) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return err
	}
	if _, ok := b.uploads[uploadID]; !ok {
		return ErrUploadNotFound
	}
	delete(b.uploads, uploadID)
	return nil
}

// ListMultipartUploads lists in-progress uploads in a bucket.
func (p *MemoryProvider) ListMultipartUploads(ctx context.Context, bucket string) ([]MultipartUpload, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return nil, err
	}
	uploads := make([]MultipartUpload, 0, len(b.uploads))
	for _, u := range b.uploads {
		uploads = append(uploads, u.info)
	}
	sort.Slice(uploads, func(i, j int) bool { return uploads[i].UploadID < uploads[j].UploadID })
	return uploads, nil
}

// ListParts lists the parts uploaded so far for one upload.
func (p *MemoryProvider) ListParts(ctx context.Context, bucket, key, uploadID string) ([]PartInfo, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return nil, err
	}
	upload, ok := b.uploads[uploadID]
	if !ok {
		return nil, ErrUploadNotFound
	}
	parts := make([]PartInfo, 0, len(upload.parts))
	for number, part := range upload.parts {
		parts = append(parts, PartInfo{PartNumber: number, ETag: part.etag, Size: int64(len(part.content))})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })
	return parts, nil
}

// CreatePAR creates a preauthenticated request for an object.
func (p *MemoryProvider) CreatePAR(ctx context.Context, bucket, key, name string, expiry time.Duration) (*PAR, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return nil, err
	}
	if _, ok := b.objects[key]; !ok {
		return nil, ErrObjectNotFound
	}

	now := time.Now()
	par := PAR{
		ID:        uuid.NewString(),
		Name:      name,
		Bucket:    bucket,
		ObjectKey: key,
		ExpiresAt: now.Add(expiry),
		CreatedAt: now,
	}
	par.URL = "memory://" + p.namespace + "/" + bucket + "/" + key + "?par=" + par.ID
	b.pars[par.ID] = par
	return &par, nil
}

// ListPARs lists active preauthenticated requests for a bucket.
func (p *MemoryProvider) ListPARs(ctx context.Context, bucket string) ([]PAR, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return nil, err
	}
	pars := make([]PAR, 0, len(b.pars))
	for _, par := range b.pars {
		pars = append(pars, par)
	}
	sort.Slice(pars, func(i, j int) bool { return pars[i].ID < pars[j].ID })
	return pars, nil
}

// DeletePAR revokes a preauthenticated request.
func (p *MemoryProvider) DeletePAR(ctx context.Context, bucket, parID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return err
	}
	if _, ok := b.pars[parID]; !ok {
		return errors.New("preauthenticated request not found")
	}
	delete(b.pars, parID)
	return nil
}

// ListRetentionRules lists retention rules on a bucket.
func (p *MemoryProvider) ListRetentionRules(ctx context.Context, bucket string) ([]RetentionRule, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return nil, err
	}
	rules := make([]RetentionRule, 0, len(b.retention))
	for _, rule := range b.retention {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}

// PutRetentionRule creates or replaces a retention rule on a bucket.
func (p *MemoryProvider) PutRetentionRule(ctx context.Context, bucket string, rule RetentionRule) (*RetentionRule, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return nil, err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
		rule.CreatedAt = time.Now()
	} else if existing, ok := b.retention[rule.ID]; ok {
		if existing.Locked {
			return nil, errors.New("retention rule is locked")
		}
		rule.CreatedAt = existing.CreatedAt
	}
	b.retention[rule.ID] = rule
	return &rule, nil
}

// DeleteRetentionRule removes a retention rule from a bucket.
func (p *MemoryProvider) DeleteRetentionRule(ctx context.Context, bucket, ruleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return err
	}
	rule, ok := b.retention[ruleID]
	if !ok {
		return errors.New("retention rule not found")
	}
	if rule.Locked {
		return errors.New("retention rule is locked")
	}
	delete(b.retention, ruleID)
	return nil
}

// ListReplicationPolicies lists replication policies on a bucket.
func (p *MemoryProvider) ListReplicationPolicies(ctx context.Context, bucket string) ([]ReplicationPolicy, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return nil, err
	}
	policies := make([]ReplicationPolicy, 0, len(b.replication))
	for _, policy := range b.replication {
		policies = append(policies, policy)
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].ID < policies[j].ID })
	return policies, nil
}

// CreateReplicationPolicy creates a replication policy on a bucket.
func (p *MemoryProvider) CreateReplicationPolicy(ctx context.Context, bucket string, policy ReplicationPolicy) (*ReplicationPolicy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return nil, err
	}
	policy.ID = uuid.NewString()
	policy.Status = "ACTIVE"
	policy.CreatedAt = time.Now()
	b.replication[policy.ID] = policy
	p.recordWorkRequest("CREATE_REPLICATION_POLICY")
	return &policy, nil
}

// DeleteReplicationPolicy removes a replication policy from a bucket.
func (p *MemoryProvider) DeleteReplicationPolicy(ctx context.Context, bucket, policyID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := p.bucket(bucket)
	if err != nil {
		return err
	}
	if _, ok := b.replication[policyID]; !ok {
		return errors.New("replication policy not found")
	}
	delete(b.replication, policyID)
	return nil
}

// GetWorkRequest returns the status of a recorded work request.
func (p *MemoryProvider) GetWorkRequest(ctx context.Context, id string) (*WorkRequest, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	wr, ok := p.workRequests[id]
	if !ok {
		return nil, ErrWorkRequestNotFound
	}
	request := wr.request
	return &request, nil
}

// ListWorkRequestErrors lists the errors recorded for a work request.
func (p *MemoryProvider) ListWorkRequestErrors(ctx context.Context, id string) ([]WorkRequestError, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	wr, ok := p.workRequests[id]
	if !ok {
		return nil, ErrWorkRequestNotFound
	}
	out := make([]WorkRequestError, len(wr.errors))
	copy(out, wr.errors)
	return out, nil
}

var _ Provider = (*MemoryProvider)(nil)
