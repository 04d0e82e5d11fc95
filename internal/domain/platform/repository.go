package platform

import (
	"context"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
)

// DeploymentRepository defines the interface for deployment persistence
type DeploymentRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Deployment, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Deployment, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)
	Save(ctx context.Context, deployment *Deployment) error
	SaveWithLock(ctx context.Context, deployment *Deployment) error
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}

// SettingRepository defines the interface for persisted tenant settings.
// Catalog defaults are not stored; only overrides and custom settings are.
type SettingRepository interface {
	// FindByKey finds a persisted setting by key within a tenant
	FindByKey(ctx context.Context, tenantID uuid.UUID, key string) (*Setting, error)

	// FindAllForTenant lists persisted settings, optionally for one category
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, category SettingCategory) ([]Setting, error)

	Save(ctx context.Context, setting *Setting) error
	SaveWithLock(ctx context.Context, setting *Setting) error

	// DeleteByKey removes the persisted row for a key
	DeleteByKey(ctx context.Context, tenantID uuid.UUID, key string) error
}
