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

// GormNoteRepository implements NoteRepository using GORM
type GormNoteRepository struct {
	db *gorm.DB
}

// NewGormNoteRepository creates a new GormNoteRepository
func NewGormNoteRepository(db *gorm.DB) *GormNoteRepository {
	return &GormNoteRepository{db: db}
}

// FindByIDForTenant finds a note by ID within a tenant
func (r *GormNoteRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*crm.Note, error) {
	var model models.NoteModel
	if err := conn(ctx, r.db).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds notes for a tenant, pinned notes first
func (r *GormNoteRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Note, error) {
	var noteModels []models.NoteModel
	query := r.applyFilter(conn(ctx, r.db).Model(&models.NoteModel{}).Scopes(tenant.Scope(tenantID)), filter)
	query = applyPaging(query.Order("is_pinned DESC"), filter, NoteSortFields, "created_at")
	if err := query.Find(&noteModels).Error; err != nil {
		return nil, err
	}
	notes := make([]crm.Note, len(noteModels))
	for i, model := range noteModels {
		notes[i] = *model.ToDomain()
	}
	return notes, nil
}

// CountForTenant counts notes for a tenant
func (r *GormNoteRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(conn(ctx, r.db).Model(&models.NoteModel{}).Scopes(tenant.Scope(tenantID)), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a note
func (r *GormNoteRepository) Save(ctx context.Context, note *crm.Note) error {
	return conn(ctx, r.db).Save(models.NoteModelFromDomain(note)).Error
}

// SaveWithLock saves a note with optimistic locking (version check)
func (r *GormNoteRepository) SaveWithLock(ctx context.Context, note *crm.Note) error {
	model := models.NoteModelFromDomain(note)
	result := conn(ctx, r.db).
		Model(model).
		Select("*").
		Omit(immutableColumns...).
		Where("id = ? AND tenant_id = ? AND version = ?", note.ID, note.TenantID, note.Version-1).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return optimisticLockError("note")
	}
	return nil
}

// DeleteForTenant soft-deletes a note within a tenant
func (r *GormNoteRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := conn(ctx, r.db).Delete(&models.NoteModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormNoteRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = applySearch(query, filter.Search, "title", "content")
	query = whereString(query, filter.Filters, "entity_type", "entity_type")
	query = whereUUID(query, filter.Filters, "entity_id", "entity_id")
	query = whereBool(query, filter.Filters, "is_pinned", "is_pinned")
	return query
}

var _ crm.NoteRepository = (*GormNoteRepository)(nil)
