package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/automation"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/opencrm/backend/internal/infrastructure/persistence/models"
	"github.com/opencrm/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// GormExecutionRepository implements ExecutionRepository using GORM.
// Executions are append-only history.
type GormExecutionRepository struct {
	db *gorm.DB
}

// NewGormExecutionRepository creates a new GormExecutionRepository
func NewGormExecutionRepository(db *gorm.DB) *GormExecutionRepository {
	return &GormExecutionRepository{db: db}
}

// Save inserts an execution record
func (r *GormExecutionRepository) Save(ctx context.Context, execution *automation.Execution) error {
	return conn(ctx, r.db).Create(models.WorkflowExecutionModelFromDomain(execution)).Error
}

// FindByIDForTenant finds an execution by ID within a tenant
func (r *GormExecutionRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*automation.Execution, error) {
	var model models.WorkflowExecutionModel
	if err := conn(ctx, r.db).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists executions, newest first by default
func (r *GormExecutionRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]automation.Execution, error) {
	var executionModels []models.WorkflowExecutionModel
	query := r.applyFilter(conn(ctx, r.db).Model(&models.WorkflowExecutionModel{}).Scopes(tenant.Scope(tenantID)), filter)
	query = applyPaging(query, filter, ExecutionSortFields, "started_at")
	if err := query.Find(&executionModels).Error; err != nil {
		return nil, err
	}
	executions := make([]automation.Execution, len(executionModels))
	for i, model := range executionModels {
		executions[i] = *model.ToDomain()
	}
	return executions, nil
}

// CountForTenant counts executions for a tenant
func (r *GormExecutionRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(conn(ctx, r.db).Model(&models.WorkflowExecutionModel{}).Scopes(tenant.Scope(tenantID)), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormExecutionRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = whereUUID(query, filter.Filters, "workflow_id", "workflow_id")
	query = whereString(query, filter.Filters, "status", "status")
	query = whereUUID(query, filter.Filters, "entity_id", "entity_id")
	return query
}

var _ automation.ExecutionRepository = (*GormExecutionRepository)(nil)
