package marketing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
)

// CampaignRepository defines the interface for campaign persistence
type CampaignRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Campaign, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Campaign, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)

	// FindDueToStart finds scheduled campaigns of any tenant whose start date has passed
	FindDueToStart(ctx context.Context, now time.Time, limit int) ([]Campaign, error)

	// FindDueToComplete finds running or paused campaigns of any tenant whose end date has passed
	FindDueToComplete(ctx context.Context, now time.Time, limit int) ([]Campaign, error)

	Save(ctx context.Context, campaign *Campaign) error
	SaveWithLock(ctx context.Context, campaign *Campaign) error
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error

	// IncrementCounters atomically adds tracking deltas without touching the version
	IncrementCounters(ctx context.Context, tenantID, id uuid.UUID, delta CounterDelta) error
}

// RecipientRepository defines the interface for campaign recipient persistence
type RecipientRepository interface {
	// FindByID finds a recipient of any tenant; used by public tracking links
	FindByID(ctx context.Context, id uuid.UUID) (*Recipient, error)

	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Recipient, error)

	// FindByIDForUpdate reloads a recipient and holds a row lock until the
	// surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Recipient, error)

	FindByCampaign(ctx context.Context, tenantID, campaignID uuid.UUID, filter shared.Filter) ([]Recipient, error)
	CountByCampaign(ctx context.Context, tenantID, campaignID uuid.UUID, filter shared.Filter) (int64, error)

	// SaveBatch inserts recipients in batches
	SaveBatch(ctx context.Context, recipients []*Recipient) error

	Save(ctx context.Context, recipient *Recipient) error
}

// InteractionRepository defines the interface for interaction persistence
type InteractionRepository interface {
	Save(ctx context.Context, interaction *Interaction) error
	FindByCampaign(ctx context.Context, tenantID, campaignID uuid.UUID, filter shared.Filter) ([]Interaction, error)
	CountByCampaign(ctx context.Context, tenantID, campaignID uuid.UUID, filter shared.Filter) (int64, error)
}
