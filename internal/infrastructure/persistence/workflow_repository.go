package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/automation"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/opencrm/backend/internal/infrastructure/persistence/models"
	"github.com/opencrm/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// GormWorkflowRepository implements WorkflowRepository using GORM.
// Rules travel with the workflow in a JSON column.
type GormWorkflowRepository struct {
	db *gorm.DB
}

// NewGormWorkflowRepository creates a new GormWorkflowRepository
func NewGormWorkflowRepository(db *gorm.DB) *GormWorkflowRepository {
	return &GormWorkflowRepository{db: db}
}

// FindByIDForTenant finds a workflow by ID within a tenant
func (r *GormWorkflowRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*automation.Workflow, error) {
	var model models.WorkflowModel
	if err := conn(ctx, r.db).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds workflows for a tenant
func (r *GormWorkflowRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]automation.Workflow, error) {
	query := r.applyFilter(conn(ctx, r.db).Model(&models.WorkflowModel{}).Scopes(tenant.Scope(tenantID)), filter)
	return r.find(applyPaging(query, filter, WorkflowSortFields, "created_at"))
}

// CountForTenant counts workflows for a tenant
func (r *GormWorkflowRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(conn(ctx, r.db).Model(&models.WorkflowModel{}).Scopes(tenant.Scope(tenantID)), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindActiveFor finds active workflows for an entity type and trigger, ordered by priority
func (r *GormWorkflowRepository) FindActiveFor(ctx context.Context, tenantID uuid.UUID, entityType automation.EntityType, trigger automation.Trigger) ([]automation.Workflow, error) {
	return r.find(conn(ctx, r.db).
		Model(&models.WorkflowModel{}).
		Scopes(tenant.Scope(tenantID)).
		Where("is_active = ? AND entity_type = ? AND trigger_type = ?", true, entityType, trigger).
		Order("priority ASC").
		Order("created_at ASC"))
}

// FindActiveScheduled finds active scheduled workflows of every tenant
func (r *GormWorkflowRepository) FindActiveScheduled(ctx context.Context) ([]automation.Workflow, error) {
	return r.find(conn(ctx, r.db).
		Model(&models.WorkflowModel{}).
		Where("is_active = ? AND trigger_type = ?", true, automation.TriggerScheduled).
		Order("created_at ASC"))
}

// Save creates or updates a workflow
func (r *GormWorkflowRepository) Save(ctx context.Context, workflow *automation.Workflow) error {
	return conn(ctx, r.db).Save(models.WorkflowModelFromDomain(workflow)).Error
}

// SaveWithLock saves a workflow with optimistic locking (version check).
// Run statistics are excluded; they only move through RecordRun.
func (r *GormWorkflowRepository) SaveWithLock(ctx context.Context, workflow *automation.Workflow) error {
	model := models.WorkflowModelFromDomain(workflow)
	result := conn(ctx, r.db).
		Model(model).
		Select("*").
		Omit(append([]string{"run_count", "last_run_at"}, immutableColumns...)...).
		Where("id = ? AND tenant_id = ? AND version = ?", workflow.ID, workflow.TenantID, workflow.Version-1).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return optimisticLockError("workflow")
	}
	return nil
}

// DeleteForTenant soft-deletes a workflow within a tenant
func (r *GormWorkflowRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := conn(ctx, r.db).Delete(&models.WorkflowModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RecordRun bumps run_count and last_run_at without touching the version
func (r *GormWorkflowRepository) RecordRun(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error {
	return conn(ctx, r.db).
		Model(&models.WorkflowModel{}).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"run_count":   gorm.Expr("run_count + ?", 1),
			"last_run_at": at,
		}).Error
}

func (r *GormWorkflowRepository) find(query *gorm.DB) ([]automation.Workflow, error) {
	var workflowModels []models.WorkflowModel
	if err := query.Find(&workflowModels).Error; err != nil {
		return nil, err
	}
	workflows := make([]automation.Workflow, len(workflowModels))
	for i, model := range workflowModels {
		workflows[i] = *model.ToDomain()
	}
	return workflows, nil
}

func (r *GormWorkflowRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = applySearch(query, filter.Search, "name", "description")
	query = whereString(query, filter.Filters, "entity_type", "entity_type")
	query = whereString(query, filter.Filters, "trigger", "trigger_type")
	query = whereBool(query, filter.Filters, "is_active", "is_active")
	return query
}

var _ automation.WorkflowRepository = (*GormWorkflowRepository)(nil)
