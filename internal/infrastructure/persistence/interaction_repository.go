package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/marketing"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/opencrm/backend/internal/infrastructure/persistence/models"
	"github.com/opencrm/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// GormInteractionRepository implements InteractionRepository using GORM.
// Interactions are append-only.
type GormInteractionRepository struct {
	db *gorm.DB
}

// NewGormInteractionRepository creates a new GormInteractionRepository
func NewGormInteractionRepository(db *gorm.DB) *GormInteractionRepository {
	return &GormInteractionRepository{db: db}
}

// Save inserts an interaction
func (r *GormInteractionRepository) Save(ctx context.Context, interaction *marketing.Interaction) error {
	return conn(ctx, r.db).Create(models.CampaignInteractionModelFromDomain(interaction)).Error
}

// FindByCampaign lists the interactions of a campaign, newest first by default
func (r *GormInteractionRepository) FindByCampaign(ctx context.Context, tenantID, campaignID uuid.UUID, filter shared.Filter) ([]marketing.Interaction, error) {
	var interactionModels []models.CampaignInteractionModel
	query := r.applyFilter(r.byCampaign(ctx, tenantID, campaignID), filter)
	query = applyPaging(query, filter, InteractionSortFields, "occurred_at")
	if err := query.Find(&interactionModels).Error; err != nil {
		return nil, err
	}
	interactions := make([]marketing.Interaction, len(interactionModels))
	for i, model := range interactionModels {
		interactions[i] = *model.ToDomain()
	}
	return interactions, nil
}

// CountByCampaign counts the interactions of a campaign
func (r *GormInteractionRepository) CountByCampaign(ctx context.Context, tenantID, campaignID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.byCampaign(ctx, tenantID, campaignID), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormInteractionRepository) byCampaign(ctx context.Context, tenantID, campaignID uuid.UUID) *gorm.DB {
	return conn(ctx, r.db).
		Model(&models.CampaignInteractionModel{}).
		Scopes(tenant.Scope(tenantID)).
		Where("campaign_id = ?", campaignID)
}

func (r *GormInteractionRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = whereString(query, filter.Filters, "type", "type")
	return whereUUID(query, filter.Filters, "recipient_id", "recipient_id")
}

var _ marketing.InteractionRepository = (*GormInteractionRepository)(nil)
