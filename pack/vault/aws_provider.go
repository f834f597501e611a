package vault

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// SecretsManagerAPI is the subset of the AWS Secrets Manager client the
// provider needs. Narrowing the dependency keeps tests free of real clients.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
}

// AWSProvider retrieves secrets from AWS Secrets Manager.
type AWSProvider struct {
	client SecretsManagerAPI
	region string
}

// AWSOption configures the AWS provider.
type AWSOption func(*awsProviderConfig)

type awsProviderConfig struct {
	region          string
	endpoint        string
	accessKeyID     string
	secretAccessKey string
	client          SecretsManagerAPI
}

// WithAWSRegion sets the AWS region.
func WithAWSRegion(region string) AWSOption {
	return func(c *awsProviderConfig) {
		c.region = region
	}
}

// WithAWSEndpoint sets a custom endpoint (for LocalStack or testing).
func WithAWSEndpoint(endpoint string) AWSOption {
	return func(c *awsProviderConfig) {
		c.endpoint = endpoint
	}
}

// WithAWSStaticCredentials sets static credentials (for testing).
func WithAWSStaticCredentials(accessKeyID, secretAccessKey string) AWSOption {
	return func(c *awsProviderConfig) {
		c.accessKeyID = accessKeyID
		c.secretAccessKey = secretAccessKey
	}
}

// WithSecretsManagerClient injects a pre-built client (for testing).
func WithSecretsManagerClient(client SecretsManagerAPI) AWSOption {
	return func(c *awsProviderConfig) {
		c.client = client
	}
}

// NewAWSProvider creates an AWS Secrets Manager provider.
func NewAWSProvider(ctx context.Context, opts ...AWSOption) (*AWSProvider, error) {
	cfg := awsProviderConfig{region: "us-east-1"}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.client == nil {
		var configOpts []func(*awsconfig.LoadOptions) error
		configOpts = append(configOpts, awsconfig.WithRegion(cfg.region))

		if cfg.accessKeyID != "" && cfg.secretAccessKey != "" {
			configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.accessKeyID, cfg.secretAccessKey, ""),
			))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		var clientOpts []func(*secretsmanager.Options)
		if cfg.endpoint != "" {
			endpoint := cfg.endpoint
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		cfg.client = secretsmanager.NewFromConfig(awsCfg, clientOpts...)
	}

	return &AWSProvider{
		client: cfg.client,
		region: cfg.region,
	}, nil
}

// Name returns the provider name.
func (p *AWSProvider) Name() string {
	return "aws-secrets-manager"
}

// GetSecret retrieves a secret bundle by ARN or name.
func (p *AWSProvider) GetSecret(ctx context.Context, id string) (*Secret, error) {
	if id == "" {
		return nil, ErrSecretNotFound
	}

	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &id,
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, ErrSecretNotFound
		}
		return nil, fmt.Errorf("get secret value: %w", err)
	}

	// String secrets are stored plaintext in AWS; re-encode so every
	// provider hands the facade the same base64 bundle shape.
	content := ""
	switch {
	case out.SecretString != nil:
		content = base64.StdEncoding.EncodeToString([]byte(*out.SecretString))
	case out.SecretBinary != nil:
		content = base64.StdEncoding.EncodeToString(out.SecretBinary)
	}

	secret := &Secret{
		ID:      id,
		Content: content,
	}
	if out.Name != nil {
		secret.Name = *out.Name
	}
	if out.VersionId != nil {
		secret.Version = *out.VersionId
	}
	return secret, nil
}

// GetMetadata retrieves secret metadata without the value.
func (p *AWSProvider) GetMetadata(ctx context.Context, id string) (*Metadata, error) {
	if id == "" {
		return nil, ErrSecretNotFound
	}

	out, err := p.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: &id,
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, ErrSecretNotFound
		}
		return nil, fmt.Errorf("describe secret: %w", err)
	}

	meta := &Metadata{ID: id}
	if out.Name != nil {
		meta.Name = *out.Name
	}
	if out.CreatedDate != nil {
		meta.CreatedAt = *out.CreatedDate
	}
	if len(out.Tags) > 0 {
		meta.Tags = make(map[string]string, len(out.Tags))
		for _, tag := range out.Tags {
			if tag.Key != nil && tag.Value != nil {
				meta.Tags[*tag.Key] = *tag.Value
			}
		}
	}
	return meta, nil
}

// Close releases provider resources.
func (p *AWSProvider) Close() error {
	return nil
}

var _ Provider = (*AWSProvider)(nil)
