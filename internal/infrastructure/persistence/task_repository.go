package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/opencrm/backend/internal/infrastructure/persistence/models"
	"github.com/opencrm/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

var openTaskStatuses = []crm.TaskStatus{crm.TaskStatusPending, crm.TaskStatusInProgress}

// GormTaskRepository implements TaskRepository using GORM
type GormTaskRepository struct {
	db *gorm.DB
}

// NewGormTaskRepository creates a new GormTaskRepository
func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

// FindByIDForTenant finds a task by ID within a tenant
func (r *GormTaskRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*crm.Task, error) {
	var model models.TaskModel
	if err := conn(ctx, r.db).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds tasks for a tenant
func (r *GormTaskRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Task, error) {
	query := r.applyFilter(conn(ctx, r.db).Model(&models.TaskModel{}).Scopes(tenant.Scope(tenantID)), filter)
	return r.find(applyPaging(query, filter, TaskSortFields, "created_at"))
}

// CountForTenant counts tasks for a tenant
func (r *GormTaskRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(conn(ctx, r.db).Model(&models.TaskModel{}).Scopes(tenant.Scope(tenantID)), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindNewlyOverdue finds open tasks of any tenant that are past due but not yet flagged
func (r *GormTaskRepository) FindNewlyOverdue(ctx context.Context, now time.Time, limit int) ([]crm.Task, error) {
	query := conn(ctx, r.db).
		Model(&models.TaskModel{}).
		Where("status IN ?", openTaskStatuses).
		Where("due_date IS NOT NULL AND due_date < ?", now).
		Where("is_overdue = ?", false).
		Order("due_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.find(query)
}

// Save creates or updates a task
func (r *GormTaskRepository) Save(ctx context.Context, task *crm.Task) error {
	return conn(ctx, r.db).Save(models.TaskModelFromDomain(task)).Error
}

// SaveWithLock saves a task with optimistic locking (version check)
func (r *GormTaskRepository) SaveWithLock(ctx context.Context, task *crm.Task) error {
	model := models.TaskModelFromDomain(task)
	result := conn(ctx, r.db).
		Model(model).
		Select("*").
		Omit(immutableColumns...).
		Where("id = ? AND tenant_id = ? AND version = ?", task.ID, task.TenantID, task.Version-1).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return optimisticLockError("task")
	}
	return nil
}

// DeleteForTenant soft-deletes a task within a tenant
func (r *GormTaskRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := conn(ctx, r.db).Delete(&models.TaskModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormTaskRepository) find(query *gorm.DB) ([]crm.Task, error) {
	var taskModels []models.TaskModel
	if err := query.Find(&taskModels).Error; err != nil {
		return nil, err
	}
	tasks := make([]crm.Task, len(taskModels))
	for i, model := range taskModels {
		tasks[i] = *model.ToDomain()
	}
	return tasks, nil
}

func (r *GormTaskRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = applySearch(query, filter.Search, "title", "description")
	query = whereString(query, filter.Filters, "status", "status")
	query = whereString(query, filter.Filters, "priority", "priority")
	query = whereUUID(query, filter.Filters, "assigned_to", "assigned_to")
	query = whereUUID(query, filter.Filters, "customer_id", "customer_id")
	query = whereUUID(query, filter.Filters, "opportunity_id", "opportunity_id")
	query = whereBool(query, filter.Filters, "is_overdue", "is_overdue")
	return query
}

var _ crm.TaskRepository = (*GormTaskRepository)(nil)
