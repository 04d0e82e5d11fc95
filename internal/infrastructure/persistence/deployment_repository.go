package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/platform"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/opencrm/backend/internal/infrastructure/persistence/models"
	"github.com/opencrm/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// GormDeploymentRepository implements DeploymentRepository using GORM
type GormDeploymentRepository struct {
	db *gorm.DB
}

// NewGormDeploymentRepository creates a new GormDeploymentRepository
func NewGormDeploymentRepository(db *gorm.DB) *GormDeploymentRepository {
	return &GormDeploymentRepository{db: db}
}

// FindByIDForTenant finds a deployment by ID within a tenant
func (r *GormDeploymentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*platform.Deployment, error) {
	var model models.DeploymentModel
	if err := conn(ctx, r.db).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds deployments for a tenant
func (r *GormDeploymentRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]platform.Deployment, error) {
	var deploymentModels []models.DeploymentModel
	query := r.applyFilter(conn(ctx, r.db).Model(&models.DeploymentModel{}).Scopes(tenant.Scope(tenantID)), filter)
	query = applyPaging(query, filter, DeploymentSortFields, "created_at")
	if err := query.Find(&deploymentModels).Error; err != nil {
		return nil, err
	}
	deployments := make([]platform.Deployment, len(deploymentModels))
	for i, model := range deploymentModels {
		deployments[i] = *model.ToDomain()
	}
	return deployments, nil
}

// CountForTenant counts deployments for a tenant
func (r *GormDeploymentRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(conn(ctx, r.db).Model(&models.DeploymentModel{}).Scopes(tenant.Scope(tenantID)), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a deployment
func (r *GormDeploymentRepository) Save(ctx context.Context, deployment *platform.Deployment) error {
	return conn(ctx, r.db).Save(models.DeploymentModelFromDomain(deployment)).Error
}

// SaveWithLock saves a deployment with optimistic locking (version check)
func (r *GormDeploymentRepository) SaveWithLock(ctx context.Context, deployment *platform.Deployment) error {
	model := models.DeploymentModelFromDomain(deployment)
	result := conn(ctx, r.db).
		Model(model).
		Select("*").
		Omit(immutableColumns...).
		Where("id = ? AND tenant_id = ? AND version = ?", deployment.ID, deployment.TenantID, deployment.Version-1).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return optimisticLockError("deployment")
	}
	return nil
}

// DeleteForTenant soft-deletes a deployment within a tenant
func (r *GormDeploymentRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := conn(ctx, r.db).Delete(&models.DeploymentModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormDeploymentRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = applySearch(query, filter.Search, "name", "region", "app_version")
	query = whereString(query, filter.Filters, "provider", "provider")
	query = whereString(query, filter.Filters, "environment", "environment")
	query = whereString(query, filter.Filters, "status", "status")
	return query
}

var _ platform.DeploymentRepository = (*GormDeploymentRepository)(nil)
