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
	"gorm.io/gorm/clause"
)

// GormQuoteRepository implements QuoteRepository using GORM.
// Items are replaced wholesale on every save, inside the caller's transaction when present.
type GormQuoteRepository struct {
	db *gorm.DB
}

// NewGormQuoteRepository creates a new GormQuoteRepository
func NewGormQuoteRepository(db *gorm.DB) *GormQuoteRepository {
	return &GormQuoteRepository{db: db}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC")
}

// FindByIDForTenant finds a quote with its items by ID within a tenant
func (r *GormQuoteRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*crm.Quote, error) {
	var model models.QuoteModel
	if err := conn(ctx, r.db).
		Preload("Items", preloadItems).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds quotes for a tenant
func (r *GormQuoteRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Quote, error) {
	query := r.applyFilter(conn(ctx, r.db).Model(&models.QuoteModel{}).Scopes(tenant.Scope(tenantID)), filter)
	return r.find(applyPaging(query, filter, QuoteSortFields, "created_at"))
}

// CountForTenant counts quotes for a tenant
func (r *GormQuoteRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(conn(ctx, r.db).Model(&models.QuoteModel{}).Scopes(tenant.Scope(tenantID)), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindExpirable finds draft or sent quotes of any tenant whose validity ended before now
func (r *GormQuoteRepository) FindExpirable(ctx context.Context, now time.Time, limit int) ([]crm.Quote, error) {
	query := conn(ctx, r.db).
		Model(&models.QuoteModel{}).
		Where("status IN ?", []crm.QuoteStatus{crm.QuoteStatusDraft, crm.QuoteStatusSent}).
		Where("valid_until IS NOT NULL AND valid_until < ?", now).
		Order("valid_until ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.find(query)
}

// Save creates or updates a quote and replaces its items
func (r *GormQuoteRepository) Save(ctx context.Context, quote *crm.Quote) error {
	model := models.QuoteModelFromDomain(quote)
	return inTx(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(model).Error; err != nil {
			return mapDuplicate("quote", err)
		}
		return replaceQuoteItems(tx, model)
	})
}

// SaveWithLock saves a quote with optimistic locking (version check) and replaces its items
func (r *GormQuoteRepository) SaveWithLock(ctx context.Context, quote *crm.Quote) error {
	model := models.QuoteModelFromDomain(quote)
	return inTx(ctx, r.db, func(tx *gorm.DB) error {
		result := tx.
			Model(model).
			Select("*").
			Omit(append([]string{clause.Associations}, immutableColumns...)...).
			Where("id = ? AND tenant_id = ? AND version = ?", quote.ID, quote.TenantID, quote.Version-1).
			Updates(model)
		if result.Error != nil {
			return mapDuplicate("quote", result.Error)
		}
		if result.RowsAffected == 0 {
			return optimisticLockError("quote")
		}
		return replaceQuoteItems(tx, model)
	})
}

// DeleteForTenant soft-deletes a quote within a tenant. Items stay for audit.
func (r *GormQuoteRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := conn(ctx, r.db).Delete(&models.QuoteModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func replaceQuoteItems(tx *gorm.DB, model *models.QuoteModel) error {
	if err := tx.Where("quote_id = ?", model.ID).Delete(&models.QuoteItemModel{}).Error; err != nil {
		return err
	}
	if len(model.Items) == 0 {
		return nil
	}
	return tx.Create(&model.Items).Error
}

func (r *GormQuoteRepository) find(query *gorm.DB) ([]crm.Quote, error) {
	var quoteModels []models.QuoteModel
	if err := query.Preload("Items", preloadItems).Find(&quoteModels).Error; err != nil {
		return nil, err
	}
	quotes := make([]crm.Quote, len(quoteModels))
	for i, model := range quoteModels {
		quotes[i] = *model.ToDomain()
	}
	return quotes, nil
}

func (r *GormQuoteRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = applySearch(query, filter.Search, "quote_number", "title")
	query = whereUUID(query, filter.Filters, "customer_id", "customer_id")
	query = whereUUID(query, filter.Filters, "opportunity_id", "opportunity_id")
	query = whereString(query, filter.Filters, "status", "status")
	return query
}

var _ crm.QuoteRepository = (*GormQuoteRepository)(nil)
