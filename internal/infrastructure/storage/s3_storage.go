// Package storage looks up deployment artifacts in object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	appplatform "github.com/opencrm/backend/internal/application/platform"
	infraconfig "github.com/opencrm/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

var _ appplatform.ArtifactStore = (*S3ArtifactStore)(nil)

// headAPI is the part of *s3.Client the store uses
type headAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3ArtifactStore checks that release artifacts exist before a deploy.
// Works with AWS S3 and S3-compatible stores such as MinIO.
type S3ArtifactStore struct {
	client headAPI
	bucket string
	logger *zap.Logger
}

// S3ArtifactStoreOption configures the store
type S3ArtifactStoreOption func(*S3ArtifactStore)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3ArtifactStoreOption {
	return func(s *S3ArtifactStore) {
		s.logger = logger.Named("artifact_store")
	}
}

// NewS3ArtifactStore creates the store from configuration. Without static
// keys the default AWS credential chain is used.
func NewS3ArtifactStore(ctx context.Context, cfg *infraconfig.StorageConfig, opts ...S3ArtifactStoreOption) (*S3ArtifactStore, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, errors.New("storage access key id and secret access key must be set together")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return newS3ArtifactStore(client, cfg.Bucket, opts...), nil
}

func newS3ArtifactStore(client headAPI, bucket string, opts ...S3ArtifactStoreOption) *S3ArtifactStore {
	s := &S3ArtifactStore{
		client: client,
		bucket: bucket,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exists reports whether an artifact is present under key
func (s *S3ArtifactStore) Exists(ctx context.Context, key string) (bool, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return false, errors.New("artifact key is required")
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		s.logger.Debug("artifact not found", zap.String("bucket", s.bucket), zap.String("key", key))
		return false, nil
	}
	return false, fmt.Errorf("head object %s/%s: %w", s.bucket, key, err)
}

// Ping checks that the bucket is reachable with the configured credentials
func (s *S3ArtifactStore) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("head bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Bucket returns the bucket name
func (s *S3ArtifactStore) Bucket() string {
	return s.bucket
}

// isNotFound covers the typed errors and S3-compatible stores that only
// answer HEAD with a bare 404
func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
