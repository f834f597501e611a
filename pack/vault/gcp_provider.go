package vault

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GCPProvider retrieves secrets from Google Cloud Secret Manager.
type GCPProvider struct {
	client    *secretmanager.Client
	projectID string
}

// GCPConfig configures the GCP provider.
type GCPConfig struct {
	// ProjectID is the GCP project holding the secrets.
	ProjectID string

	// CredentialsFile optionally points at a service account key.
	CredentialsFile string
}

// NewGCPProvider creates a GCP Secret Manager provider.
func NewGCPProvider(ctx context.Context, cfg GCPConfig) (*GCPProvider, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project id is required for gcp secret manager")
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := secretmanager.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("secret manager client: %w", err)
	}

	return &GCPProvider{
		client:    client,
		projectID: cfg.ProjectID,
	}, nil
}

// Name returns the provider name.
func (p *GCPProvider) Name() string {
	return "gcp-secret-manager"
}

// resourceName expands a bare secret name into the full version resource.
func (p *GCPProvider) resourceName(id string) string {
	if strings.HasPrefix(id, "projects/") {
		if strings.Contains(id, "/versions/") {
			return id
		}
		return id + "/versions/latest"
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", p.projectID, id)
}

// GetSecret retrieves a secret bundle by name or full resource name.
func (p *GCPProvider) GetSecret(ctx context.Context, id string) (*Secret, error) {
	if id == "" {
		return nil, ErrSecretNotFound
	}

	resp, err := p.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: p.resourceName(id),
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrSecretNotFound
		}
		return nil, fmt.Errorf("access secret version: %w", err)
	}

	return &Secret{
		ID:      id,
		Name:    id,
		Content: base64.StdEncoding.EncodeToString(resp.GetPayload().GetData()),
		Version: resp.GetName(),
	}, nil
}

// GetMetadata retrieves secret metadata without the value.
func (p *GCPProvider) GetMetadata(ctx context.Context, id string) (*Metadata, error) {
	if id == "" {
		return nil, ErrSecretNotFound
	}

	name := p.resourceName(id)
	// Trim the version suffix; GetSecret addresses the parent resource.
	if i := strings.Index(name, "/versions/"); i >= 0 {
		name = name[:i]
	}

	resp, err := p.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{Name: name})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrSecretNotFound
		}
		return nil, fmt.Errorf("get secret: %w", err)
	}

	meta := &Metadata{
		ID:   id,
		Name: resp.GetName(),
		Tags: resp.GetLabels(),
	}
	if created := resp.GetCreateTime(); created != nil {
		meta.CreatedAt = created.AsTime()
	}
	return meta, nil
}

// Close releases provider resources.
func (p *GCPProvider) Close() error {
	return p.client.Close()
}

var _ Provider = (*GCPProvider)(nil)
