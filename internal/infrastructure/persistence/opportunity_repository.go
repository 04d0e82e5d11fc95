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

// closedStages are the terminal opportunity stages
var closedStages = []crm.OpportunityStage{crm.StageClosedWon, crm.StageClosedLost}

// GormOpportunityRepository implements OpportunityRepository using GORM
type GormOpportunityRepository struct {
	db *gorm.DB
}

// NewGormOpportunityRepository creates a new GormOpportunityRepository
func NewGormOpportunityRepository(db *gorm.DB) *GormOpportunityRepository {
	return &GormOpportunityRepository{db: db}
}

// FindByIDForTenant finds an opportunity by ID within a tenant
func (r *GormOpportunityRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*crm.Opportunity, error) {
	var model models.OpportunityModel
	if err := conn(ctx, r.db).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds opportunities for a tenant
func (r *GormOpportunityRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Opportunity, error) {
	query := r.applyFilter(conn(ctx, r.db).Model(&models.OpportunityModel{}).Scopes(tenant.Scope(tenantID)), filter)
	return r.find(applyPaging(query, filter, OpportunitySortFields, "created_at"))
}

// FindForPipeline returns every opportunity matching the filter, ignoring pagination
func (r *GormOpportunityRepository) FindForPipeline(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Opportunity, error) {
	query := r.applyFilter(conn(ctx, r.db).Model(&models.OpportunityModel{}).Scopes(tenant.Scope(tenantID)), filter)
	return r.find(query.Order("created_at ASC"))
}

// CountForTenant counts opportunities for a tenant
func (r *GormOpportunityRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(conn(ctx, r.db).Model(&models.OpportunityModel{}).Scopes(tenant.Scope(tenantID)), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates an opportunity
func (r *GormOpportunityRepository) Save(ctx context.Context, opp *crm.Opportunity) error {
	return conn(ctx, r.db).Save(models.OpportunityModelFromDomain(opp)).Error
}

// SaveWithLock saves an opportunity with optimistic locking (version check)
func (r *GormOpportunityRepository) SaveWithLock(ctx context.Context, opp *crm.Opportunity) error {
	model := models.OpportunityModelFromDomain(opp)
	result := conn(ctx, r.db).
		Model(model).
		Select("*").
		Omit(immutableColumns...).
		Where("id = ? AND tenant_id = ? AND version = ?", opp.ID, opp.TenantID, opp.Version-1).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return optimisticLockError("opportunity")
	}
	return nil
}

// DeleteForTenant soft-deletes an opportunity within a tenant
func (r *GormOpportunityRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := conn(ctx, r.db).Delete(&models.OpportunityModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormOpportunityRepository) find(query *gorm.DB) ([]crm.Opportunity, error) {
	var oppModels []models.OpportunityModel
	if err := query.Find(&oppModels).Error; err != nil {
		return nil, err
	}
	opps := make([]crm.Opportunity, len(oppModels))
	for i, model := range oppModels {
		opps[i] = *model.ToDomain()
	}
	return opps, nil
}

func (r *GormOpportunityRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = applySearch(query, filter.Search, "name", "description")
	query = whereUUID(query, filter.Filters, "customer_id", "customer_id")
	query = whereUUID(query, filter.Filters, "contact_id", "contact_id")
	query = whereString(query, filter.Filters, "stage", "stage")
	query = whereUUID(query, filter.Filters, "owner_id", "owner_id")
	if open, ok := filterBool(filter.Filters["is_open"]); ok {
		if open {
			query = query.Where("stage NOT IN ?", closedStages)
		} else {
			query = query.Where("stage IN ?", closedStages)
		}
	}
	return query
}

var _ crm.OpportunityRepository = (*GormOpportunityRepository)(nil)
