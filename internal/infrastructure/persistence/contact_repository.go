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

// GormContactRepository implements ContactRepository using GORM
type GormContactRepository struct {
	db *gorm.DB
}

// NewGormContactRepository creates a new GormContactRepository
func NewGormContactRepository(db *gorm.DB) *GormContactRepository {
	return &GormContactRepository{db: db}
}

// FindByIDForTenant finds a contact by ID within a tenant
func (r *GormContactRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*crm.Contact, error) {
	var model models.ContactModel
	if err := conn(ctx, r.db).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds contacts for a tenant
func (r *GormContactRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Contact, error) {
	var contactModels []models.ContactModel
	query := r.applyFilter(conn(ctx, r.db).Model(&models.ContactModel{}).Scopes(tenant.Scope(tenantID)), filter)
	query = applyPaging(query, filter, ContactSortFields, "created_at")
	if err := query.Find(&contactModels).Error; err != nil {
		return nil, err
	}
	contacts := make([]crm.Contact, len(contactModels))
	for i, model := range contactModels {
		contacts[i] = *model.ToDomain()
	}
	return contacts, nil
}

// CountForTenant counts contacts for a tenant
func (r *GormContactRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(conn(ctx, r.db).Model(&models.ContactModel{}).Scopes(tenant.Scope(tenantID)), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ClearPrimary unsets the primary flag on every contact of the customer except keepID.
// The version is bumped so concurrent edits of a sibling fail their lock check.
func (r *GormContactRepository) ClearPrimary(ctx context.Context, tenantID, customerID, keepID uuid.UUID) error {
	return conn(ctx, r.db).
		Model(&models.ContactModel{}).
		Scopes(tenant.Scope(tenantID)).
		Where("customer_id = ? AND id <> ? AND is_primary = ?", customerID, keepID, true).
		Updates(map[string]any{
			"is_primary": false,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		}).Error
}

// Save creates or updates a contact
func (r *GormContactRepository) Save(ctx context.Context, contact *crm.Contact) error {
	return mapDuplicate("contact", conn(ctx, r.db).Save(models.ContactModelFromDomain(contact)).Error)
}

// SaveWithLock saves a contact with optimistic locking (version check)
func (r *GormContactRepository) SaveWithLock(ctx context.Context, contact *crm.Contact) error {
	model := models.ContactModelFromDomain(contact)
	result := conn(ctx, r.db).
		Model(model).
		Select("*").
		Omit(immutableColumns...).
		Where("id = ? AND tenant_id = ? AND version = ?", contact.ID, contact.TenantID, contact.Version-1).
		Updates(model)
	if result.Error != nil {
		return mapDuplicate("contact", result.Error)
	}
	if result.RowsAffected == 0 {
		return optimisticLockError("contact")
	}
	return nil
}

// DeleteForTenant soft-deletes a contact within a tenant
func (r *GormContactRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := conn(ctx, r.db).Delete(&models.ContactModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormContactRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = applySearch(query, filter.Search, "first_name", "last_name", "email", "phone", "mobile")
	query = whereUUID(query, filter.Filters, "customer_id", "customer_id")
	query = whereString(query, filter.Filters, "status", "status")
	query = whereBool(query, filter.Filters, "is_primary", "is_primary")
	return query
}

var _ crm.ContactRepository = (*GormContactRepository)(nil)
