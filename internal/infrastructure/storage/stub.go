package storage

import (
	"context"
	"errors"

	appplatform "github.com/opencrm/backend/internal/application/platform"
	infraconfig "github.com/opencrm/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

var _ appplatform.ArtifactStore = (*NoopArtifactStore)(nil)

// NoopArtifactStore is used when object storage is disabled.
// Every non-empty key is treated as present so deploys are never blocked.
type NoopArtifactStore struct{}

// Exists reports true for any non-empty key
func (NoopArtifactStore) Exists(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("artifact key is required")
	}
	return true, nil
}

// Ping always succeeds
func (NoopArtifactStore) Ping(context.Context) error { return nil }

// ArtifactStore is what the server wires into the deployment service
type ArtifactStore interface {
	appplatform.ArtifactStore
	Ping(ctx context.Context) error
}

// NewArtifactStore returns the S3 store when storage is enabled and the
// no-op store otherwise
func NewArtifactStore(ctx context.Context, cfg infraconfig.StorageConfig, logger *zap.Logger) (ArtifactStore, error) {
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("artifact storage disabled, deploys skip the artifact check")
		}
		return NoopArtifactStore{}, nil
	}
	var opts []S3ArtifactStoreOption
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	return NewS3ArtifactStore(ctx, &cfg, opts...)
}
