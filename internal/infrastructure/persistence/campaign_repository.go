package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/marketing"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/opencrm/backend/internal/infrastructure/persistence/models"
	"github.com/opencrm/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// GormCampaignRepository implements CampaignRepository using GORM
type GormCampaignRepository struct {
	db *gorm.DB
}

// NewGormCampaignRepository creates a new GormCampaignRepository
func NewGormCampaignRepository(db *gorm.DB) *GormCampaignRepository {
	return &GormCampaignRepository{db: db}
}

// FindByIDForTenant finds a campaign by ID within a tenant
func (r *GormCampaignRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*marketing.Campaign, error) {
	var model models.CampaignModel
	if err := conn(ctx, r.db).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds campaigns for a tenant
func (r *GormCampaignRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]marketing.Campaign, error) {
	query := r.applyFilter(conn(ctx, r.db).Model(&models.CampaignModel{}).Scopes(tenant.Scope(tenantID)), filter)
	return r.find(applyPaging(query, filter, CampaignSortFields, "created_at"))
}

// CountForTenant counts campaigns for a tenant
func (r *GormCampaignRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(conn(ctx, r.db).Model(&models.CampaignModel{}).Scopes(tenant.Scope(tenantID)), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindDueToStart finds scheduled campaigns of any tenant whose start date has passed
func (r *GormCampaignRepository) FindDueToStart(ctx context.Context, now time.Time, limit int) ([]marketing.Campaign, error) {
	query := conn(ctx, r.db).
		Model(&models.CampaignModel{}).
		Where("status = ?", marketing.CampaignStatusScheduled).
		Where("start_date IS NOT NULL AND start_date <= ?", now).
		Order("start_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.find(query)
}

// FindDueToComplete finds running or paused campaigns of any tenant whose end date has passed
func (r *GormCampaignRepository) FindDueToComplete(ctx context.Context, now time.Time, limit int) ([]marketing.Campaign, error) {
	query := conn(ctx, r.db).
		Model(&models.CampaignModel{}).
		Where("status IN ?", []marketing.CampaignStatus{marketing.CampaignStatusRunning, marketing.CampaignStatusPaused}).
		Where("end_date IS NOT NULL AND end_date < ?", now).
		Order("end_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.find(query)
}

// Save creates or updates a campaign
func (r *GormCampaignRepository) Save(ctx context.Context, campaign *marketing.Campaign) error {
	return conn(ctx, r.db).Save(models.CampaignModelFromDomain(campaign)).Error
}

// SaveWithLock saves a campaign with optimistic locking (version check).
// Tracking counters are excluded; they only move through IncrementCounters.
func (r *GormCampaignRepository) SaveWithLock(ctx context.Context, campaign *marketing.Campaign) error {
	model := models.CampaignModelFromDomain(campaign)
	result := conn(ctx, r.db).
		Model(model).
		Select("*").
		Omit(append([]string{"open_count", "click_count", "conversion_count", "conversion_value"}, immutableColumns...)...).
		Where("id = ? AND tenant_id = ? AND version = ?", campaign.ID, campaign.TenantID, campaign.Version-1).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return optimisticLockError("campaign")
	}
	return nil
}

// DeleteForTenant soft-deletes a campaign within a tenant
func (r *GormCampaignRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := conn(ctx, r.db).Delete(&models.CampaignModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// IncrementCounters atomically adds tracking deltas without touching the version
func (r *GormCampaignRepository) IncrementCounters(ctx context.Context, tenantID, id uuid.UUID, delta marketing.CounterDelta) error {
	if delta.IsZero() {
		return nil
	}
	result := conn(ctx, r.db).
		Model(&models.CampaignModel{}).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"open_count":       gorm.Expr("open_count + ?", delta.Opens),
			"click_count":      gorm.Expr("click_count + ?", delta.Clicks),
			"conversion_count": gorm.Expr("conversion_count + ?", delta.Conversions),
			"conversion_value": gorm.Expr("conversion_value + ?", delta.Value),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormCampaignRepository) find(query *gorm.DB) ([]marketing.Campaign, error) {
	var campaignModels []models.CampaignModel
	if err := query.Find(&campaignModels).Error; err != nil {
		return nil, err
	}
	campaigns := make([]marketing.Campaign, len(campaignModels))
	for i, model := range campaignModels {
		campaigns[i] = *model.ToDomain()
	}
	return campaigns, nil
}

func (r *GormCampaignRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = applySearch(query, filter.Search, "name", "description")
	query = whereString(query, filter.Filters, "status", "status")
	query = whereString(query, filter.Filters, "type", "type")
	return query
}

var _ marketing.CampaignRepository = (*GormCampaignRepository)(nil)
