package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/opencrm/backend/internal/infrastructure/persistence/models"
	"github.com/opencrm/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// GormActivityRepository implements ActivityRepository using GORM
type GormActivityRepository struct {
	db *gorm.DB
}

// NewGormActivityRepository creates a new GormActivityRepository
func NewGormActivityRepository(db *gorm.DB) *GormActivityRepository {
	return &GormActivityRepository{db: db}
}

// FindByIDForTenant finds an activity by ID within a tenant
func (r *GormActivityRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*crm.Activity, error) {
	var model models.ActivityModel
	if err := conn(ctx, r.db).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds activities for a tenant, newest first by default
func (r *GormActivityRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Activity, error) {
	var activityModels []models.ActivityModel
	query := r.applyFilter(conn(ctx, r.db).Model(&models.ActivityModel{}).Scopes(tenant.Scope(tenantID)), filter)
	query = applyPaging(query, filter, ActivitySortFields, "occurred_at")
	if err := query.Find(&activityModels).Error; err != nil {
		return nil, err
	}
	activities := make([]crm.Activity, len(activityModels))
	for i, model := range activityModels {
		activities[i] = *model.ToDomain()
	}
	return activities, nil
}

// CountForTenant counts activities for a tenant
func (r *GormActivityRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(conn(ctx, r.db).Model(&models.ActivityModel{}).Scopes(tenant.Scope(tenantID)), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates an activity
func (r *GormActivityRepository) Save(ctx context.Context, activity *crm.Activity) error {
	return conn(ctx, r.db).Save(models.ActivityModelFromDomain(activity)).Error
}

// SaveWithLock saves an activity with optimistic locking (version check)
func (r *GormActivityRepository) SaveWithLock(ctx context.Context, activity *crm.Activity) error {
	model := models.ActivityModelFromDomain(activity)
	result := conn(ctx, r.db).
		Model(model).
		Select("*").
		Omit(immutableColumns...).
		Where("id = ? AND tenant_id = ? AND version = ?", activity.ID, activity.TenantID, activity.Version-1).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return optimisticLockError("activity")
	}
	return nil
}

// DeleteForTenant soft-deletes an activity within a tenant
func (r *GormActivityRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := conn(ctx, r.db).Delete(&models.ActivityModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormActivityRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = applySearch(query, filter.Search, "subject", "description")
	query = whereString(query, filter.Filters, "type", "type")
	query = whereUUID(query, filter.Filters, "customer_id", "customer_id")
	query = whereUUID(query, filter.Filters, "contact_id", "contact_id")
	query = whereUUID(query, filter.Filters, "opportunity_id", "opportunity_id")
	if from, ok := filterTime(filter.Filters["from"]); ok {
		query = query.Where("occurred_at >= ?", from)
	}
	if to, ok := filterTime(filter.Filters["to"]); ok {
		query = query.Where("occurred_at <= ?", to)
	}
	return query
}

var _ crm.ActivityRepository = (*GormActivityRepository)(nil)
