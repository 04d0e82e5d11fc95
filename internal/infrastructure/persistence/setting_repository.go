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

// GormSettingRepository implements SettingRepository using GORM.
// Setting rows are hard-deleted so a key can be stored again after a reset.
type GormSettingRepository struct {
	db *gorm.DB
}

// NewGormSettingRepository creates a new GormSettingRepository
func NewGormSettingRepository(db *gorm.DB) *GormSettingRepository {
	return &GormSettingRepository{db: db}
}

// FindByKey finds a persisted setting by key within a tenant
func (r *GormSettingRepository) FindByKey(ctx context.Context, tenantID uuid.UUID, key string) (*platform.Setting, error) {
	var model models.SystemSettingModel
	if err := conn(ctx, r.db).
		Scopes(tenant.Scope(tenantID)).
		Where("setting_key = ?", key).
		First(&model).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists persisted settings ordered by key, optionally for one category
func (r *GormSettingRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, category platform.SettingCategory) ([]platform.Setting, error) {
	query := conn(ctx, r.db).Model(&models.SystemSettingModel{}).Scopes(tenant.Scope(tenantID))
	if category != "" {
		query = query.Where("category = ?", category)
	}
	var settingModels []models.SystemSettingModel
	if err := query.Order("setting_key ASC").Find(&settingModels).Error; err != nil {
		return nil, err
	}
	settings := make([]platform.Setting, len(settingModels))
	for i, model := range settingModels {
		settings[i] = *model.ToDomain()
	}
	return settings, nil
}

// Save creates or updates a setting
func (r *GormSettingRepository) Save(ctx context.Context, setting *platform.Setting) error {
	return mapDuplicate("setting", conn(ctx, r.db).Save(models.SystemSettingModelFromDomain(setting)).Error)
}

// SaveWithLock saves a setting with optimistic locking (version check)
func (r *GormSettingRepository) SaveWithLock(ctx context.Context, setting *platform.Setting) error {
	model := models.SystemSettingModelFromDomain(setting)
	result := conn(ctx, r.db).
		Model(model).
		Select("*").
		Omit(append([]string{"setting_key"}, immutableColumns...)...).
		Where("id = ? AND tenant_id = ? AND version = ?", setting.ID, setting.TenantID, setting.Version-1).
		Updates(model)
	if result.Error != nil {
		return mapDuplicate("setting", result.Error)
	}
	if result.RowsAffected == 0 {
		return optimisticLockError("setting")
	}
	return nil
}

// DeleteByKey removes the persisted row for a key
func (r *GormSettingRepository) DeleteByKey(ctx context.Context, tenantID uuid.UUID, key string) error {
	result := conn(ctx, r.db).
		Unscoped().
		Where("tenant_id = ? AND setting_key = ?", tenantID, key).
		Delete(&models.SystemSettingModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ platform.SettingRepository = (*GormSettingRepository)(nil)
