package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// modelLogger resolves the global logger lazily so it honours zap.ReplaceGlobals
func modelLogger() *zap.Logger {
	return zap.L().Named("persistence.models")
}

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel provides common persistence fields for aggregate roots.
// It extends BaseModel with version for optimistic locking.
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// FromDomainAggregateRoot populates AggregateModel from domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
}

// TenantAggregateModel provides common persistence fields for tenant-scoped aggregate roots.
// Rows are soft-deleted through DeletedAt.
type TenantAggregateModel struct {
	AggregateModel
	TenantID  uuid.UUID      `gorm:"type:uuid;not null;index"`
	CreatedBy *uuid.UUID     `gorm:"type:uuid;index"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// FromDomainTenantAggregateRoot populates TenantAggregateModel from domain TenantAggregateRoot
func (m *TenantAggregateModel) FromDomainTenantAggregateRoot(t shared.TenantAggregateRoot) {
	m.FromDomainAggregateRoot(t.BaseAggregateRoot)
	m.TenantID = t.TenantID
	m.CreatedBy = t.CreatedBy
}

// ToTenantAggregateRoot builds a domain TenantAggregateRoot from the persistence model
func (m *TenantAggregateModel) ToTenantAggregateRoot() shared.TenantAggregateRoot {
	return shared.TenantAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		TenantID:  m.TenantID,
		CreatedBy: m.CreatedBy,
	}
}

// encodeJSON serializes v for a jsonb column, falling back when it cannot be encoded
func encodeJSON(v any, fallback string) string {
	data, err := json.Marshal(v)
	if err != nil {
		modelLogger().Warn("failed to encode JSON column", zap.Error(err))
		return fallback
	}
	return string(data)
}

// decodeJSON parses a jsonb column into dst; malformed data is logged and left zero
func decodeJSON(raw, column string, id uuid.UUID, dst any) {
	if raw == "" || raw == "null" {
		return
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		modelLogger().Warn("failed to parse JSON column",
			zap.String("column", column),
			zap.String("id", id.String()),
			zap.String("raw_json", raw),
			zap.Error(err))
	}
}
