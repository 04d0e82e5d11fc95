package persistence

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/opencrm/backend/internal/infrastructure/persistence/models"
	"github.com/opencrm/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// GormCustomerRepository implements CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByIDForTenant finds a customer by ID within a tenant
func (r *GormCustomerRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*crm.Customer, error) {
	var model models.CustomerModel
	if err := conn(ctx, r.db).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds all customers for a tenant
func (r *GormCustomerRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Customer, error) {
	var customerModels []models.CustomerModel
	query := r.applyFilter(conn(ctx, r.db).Model(&models.CustomerModel{}).Scopes(tenant.Scope(tenantID)), filter)
	query = applyPaging(query, filter, CustomerSortFields, "created_at")
	if err := query.Find(&customerModels).Error; err != nil {
		return nil, err
	}
	customers := make([]crm.Customer, len(customerModels))
	for i, model := range customerModels {
		customers[i] = *model.ToDomain()
	}
	return customers, nil
}

// CountForTenant counts customers for a tenant
func (r *GormCustomerRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(conn(ctx, r.db).Model(&models.CustomerModel{}).Scopes(tenant.Scope(tenantID)), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByStatus counts customers per status for a tenant
func (r *GormCustomerRepository) CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[crm.CustomerStatus]int64, error) {
	type statusCount struct {
		Status crm.CustomerStatus
		Count  int64
	}
	var results []statusCount
	if err := conn(ctx, r.db).
		Model(&models.CustomerModel{}).
		Scopes(tenant.Scope(tenantID)).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&results).Error; err != nil {
		return nil, err
	}

	counts := make(map[crm.CustomerStatus]int64, len(crm.AllCustomerStatuses()))
	for _, s := range crm.AllCustomerStatuses() {
		counts[s] = 0
	}
	for _, res := range results {
		counts[res.Status] = res.Count
	}
	return counts, nil
}

// FindSegment finds every customer matching a campaign audience segment
func (r *GormCustomerRepository) FindSegment(ctx context.Context, tenantID uuid.UUID, segment crm.CustomerSegment) ([]crm.Customer, error) {
	query := conn(ctx, r.db).
		Model(&models.CustomerModel{}).
		Scopes(tenant.Scope(tenantID)).
		Where("status IN ?", segment.EffectiveStatuses())

	if len(segment.Types) > 0 {
		query = query.Where("type IN ?", segment.Types)
	}
	if len(segment.Industries) > 0 {
		query = query.Where("LOWER(industry) IN ?", lowerAll(segment.Industries))
	}
	if len(segment.Countries) > 0 {
		query = query.Where("LOWER(country) IN ?", lowerAll(segment.Countries))
	}
	if len(segment.CustomerIDs) > 0 {
		query = query.Where("id IN ?", segment.CustomerIDs)
	}
	if segment.RequireEmail {
		query = query.Where("email <> ''")
	}

	var customerModels []models.CustomerModel
	if err := query.Order("created_at ASC").Find(&customerModels).Error; err != nil {
		return nil, err
	}
	customers := make([]crm.Customer, len(customerModels))
	for i, model := range customerModels {
		customers[i] = *model.ToDomain()
	}
	return customers, nil
}

// ExistsByEmail checks whether another customer in the tenant uses the email
func (r *GormCustomerRepository) ExistsByEmail(ctx context.Context, tenantID uuid.UUID, email string, excludeID uuid.UUID) (bool, error) {
	if email == "" {
		return false, nil
	}
	query := conn(ctx, r.db).
		Model(&models.CustomerModel{}).
		Scopes(tenant.Scope(tenantID)).
		Where("LOWER(email) = ?", strings.ToLower(email))
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a customer
func (r *GormCustomerRepository) Save(ctx context.Context, customer *crm.Customer) error {
	model := models.CustomerModelFromDomain(customer)
	return mapDuplicate("customer", conn(ctx, r.db).Save(model).Error)
}

// SaveWithLock saves a customer with optimistic locking (version check)
// Returns error if the version has changed (concurrent modification)
func (r *GormCustomerRepository) SaveWithLock(ctx context.Context, customer *crm.Customer) error {
	model := models.CustomerModelFromDomain(customer)
	result := conn(ctx, r.db).
		Model(model).
		Select("*").
		Omit(immutableColumns...).
		Where("id = ? AND tenant_id = ? AND version = ?", customer.ID, customer.TenantID, customer.Version-1).
		Updates(model)
	if result.Error != nil {
		return mapDuplicate("customer", result.Error)
	}
	if result.RowsAffected == 0 {
		return optimisticLockError("customer")
	}
	return nil
}

// DeleteForTenant soft-deletes a customer within a tenant
func (r *GormCustomerRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := conn(ctx, r.db).Delete(&models.CustomerModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// applyFilter applies search and key filters to the query
func (r *GormCustomerRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = applySearch(query, filter.Search, "name", "company", "email", "phone")
	query = whereString(query, filter.Filters, "status", "status")
	query = whereString(query, filter.Filters, "type", "type")
	query = whereString(query, filter.Filters, "source", "source")
	query = whereString(query, filter.Filters, "industry", "industry")
	query = whereString(query, filter.Filters, "country", "country")
	query = whereUUID(query, filter.Filters, "owner_id", "owner_id")
	return query
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

// Ensure GormCustomerRepository implements CustomerRepository
var _ crm.CustomerRepository = (*GormCustomerRepository)(nil)
