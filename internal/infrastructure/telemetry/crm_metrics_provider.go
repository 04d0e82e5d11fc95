package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var openStages = []string{"prospecting", "qualification", "proposal", "negotiation"}

// GormCRMMetricsProvider implements CRMMetricsProvider with aggregate queries
// over the opportunities and tasks tables.
type GormCRMMetricsProvider struct {
	db *gorm.DB
}

// NewGormCRMMetricsProvider creates a new GormCRMMetricsProvider.
func NewGormCRMMetricsProvider(db *gorm.DB) *GormCRMMetricsProvider {
	return &GormCRMMetricsProvider{db: db}
}

// GetOpenOpportunitiesByStage returns open opportunity counts keyed by stage.
func (p *GormCRMMetricsProvider) GetOpenOpportunitiesByStage(ctx context.Context, tenantID uuid.UUID) (map[string]int64, error) {
	type result struct {
		Stage string `gorm:"column:stage"`
		Count int64  `gorm:"column:count"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("opportunities").
		Select("stage, COUNT(*) as count").
		Where("tenant_id = ? AND deleted_at IS NULL", tenantID).
		Where("stage IN ?", openStages).
		Group("stage").
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	m := make(map[string]int64, len(openStages))
	for _, stage := range openStages {
		m[stage] = 0
	}
	for _, r := range results {
		m[r.Stage] = r.Count
	}
	return m, nil
}

// GetOverdueTaskCount returns the number of unfinished tasks due before now.
func (p *GormCRMMetricsProvider) GetOverdueTaskCount(ctx context.Context, tenantID uuid.UUID, now time.Time) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("tasks").
		Where("tenant_id = ? AND deleted_at IS NULL", tenantID).
		Where("status IN ? AND due_date IS NOT NULL AND due_date < ?", []string{"pending", "in_progress"}, now).
		Count(&count).Error

	return count, err
}

// GormTenantProvider implements TenantProvider using GORM. Tenants are
// owned by the identity provider, so the set is derived from customer rows.
type GormTenantProvider struct {
	db *gorm.DB
}

// NewGormTenantProvider creates a new GormTenantProvider.
func NewGormTenantProvider(db *gorm.DB) *GormTenantProvider {
	return &GormTenantProvider{db: db}
}

// GetActiveTenantIDs returns every tenant with at least one live customer.
func (p *GormTenantProvider) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.WithContext(ctx).
		Table("customers").
		Distinct("tenant_id").
		Where("deleted_at IS NULL").
		Pluck("tenant_id", &ids).Error

	return ids, err
}
