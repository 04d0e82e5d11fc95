package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/marketing"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/opencrm/backend/internal/infrastructure/persistence/models"
	"github.com/opencrm/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const recipientBatchSize = 500

// GormRecipientRepository implements RecipientRepository using GORM
type GormRecipientRepository struct {
	db *gorm.DB
}

// NewGormRecipientRepository creates a new GormRecipientRepository
func NewGormRecipientRepository(db *gorm.DB) *GormRecipientRepository {
	return &GormRecipientRepository{db: db}
}

// FindByID finds a recipient of any tenant
func (r *GormRecipientRepository) FindByID(ctx context.Context, id uuid.UUID) (*marketing.Recipient, error) {
	var model models.CampaignRecipientModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds a recipient by ID within a tenant
func (r *GormRecipientRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*marketing.Recipient, error) {
	var model models.CampaignRecipientModel
	if err := conn(ctx, r.db).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate selects the recipient FOR UPDATE. SQLite drops the
// locking clause and relies on its single writer connection.
func (r *GormRecipientRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*marketing.Recipient, error) {
	var model models.CampaignRecipientModel
	if err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByCampaign lists the recipients of a campaign
func (r *GormRecipientRepository) FindByCampaign(ctx context.Context, tenantID, campaignID uuid.UUID, filter shared.Filter) ([]marketing.Recipient, error) {
	var recipientModels []models.CampaignRecipientModel
	query := r.applyFilter(r.byCampaign(ctx, tenantID, campaignID), filter)
	query = applyPaging(query, filter, RecipientSortFields, "sent_at")
	if err := query.Find(&recipientModels).Error; err != nil {
		return nil, err
	}
	recipients := make([]marketing.Recipient, len(recipientModels))
	for i, model := range recipientModels {
		recipients[i] = *model.ToDomain()
	}
	return recipients, nil
}

// CountByCampaign counts the recipients of a campaign
func (r *GormRecipientRepository) CountByCampaign(ctx context.Context, tenantID, campaignID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.byCampaign(ctx, tenantID, campaignID), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SaveBatch inserts recipients in batches
func (r *GormRecipientRepository) SaveBatch(ctx context.Context, recipients []*marketing.Recipient) error {
	if len(recipients) == 0 {
		return nil
	}
	recipientModels := make([]*models.CampaignRecipientModel, len(recipients))
	for i, rec := range recipients {
		recipientModels[i] = models.CampaignRecipientModelFromDomain(rec)
	}
	return mapDuplicate("recipient", conn(ctx, r.db).CreateInBatches(recipientModels, recipientBatchSize).Error)
}

// Save creates or updates a recipient
func (r *GormRecipientRepository) Save(ctx context.Context, recipient *marketing.Recipient) error {
	return conn(ctx, r.db).Save(models.CampaignRecipientModelFromDomain(recipient)).Error
}

func (r *GormRecipientRepository) byCampaign(ctx context.Context, tenantID, campaignID uuid.UUID) *gorm.DB {
	return conn(ctx, r.db).
		Model(&models.CampaignRecipientModel{}).
		Scopes(tenant.Scope(tenantID)).
		Where("campaign_id = ?", campaignID)
}

func (r *GormRecipientRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = applySearch(query, filter.Search, "email")
	return whereString(query, filter.Filters, "status", "status")
}

var _ marketing.RecipientRepository = (*GormRecipientRepository)(nil)
