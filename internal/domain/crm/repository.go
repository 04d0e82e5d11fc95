package crm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
)

// CustomerSegment selects customers for campaign audiences
type CustomerSegment struct {
	Statuses     []CustomerStatus
	Types        []CustomerType
	Industries   []string
	Countries    []string
	CustomerIDs  []uuid.UUID
	RequireEmail bool
}

// EffectiveStatuses returns the named statuses, or every engageable status when none are named
func (s CustomerSegment) EffectiveStatuses() []CustomerStatus {
	if len(s.Statuses) > 0 {
		return s.Statuses
	}
	return []CustomerStatus{CustomerStatusLead, CustomerStatusProspect, CustomerStatusActive}
}

// CustomerRepository defines the interface for customer persistence
type CustomerRepository interface {
	// FindByIDForTenant finds a customer by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Customer, error)

	// FindAllForTenant finds customers for a tenant
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Customer, error)

	// CountForTenant counts customers for a tenant
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)

	// CountByStatus counts customers per status for a tenant
	CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[CustomerStatus]int64, error)

	// FindSegment finds every customer matching a segment
	FindSegment(ctx context.Context, tenantID uuid.UUID, segment CustomerSegment) ([]Customer, error)

	// ExistsByEmail checks whether another customer in the tenant uses the email
	ExistsByEmail(ctx context.Context, tenantID uuid.UUID, email string, excludeID uuid.UUID) (bool, error)

	// Save creates or updates a customer
	Save(ctx context.Context, customer *Customer) error

	// SaveWithLock saves a customer with optimistic locking (version check)
	SaveWithLock(ctx context.Context, customer *Customer) error

	// DeleteForTenant soft-deletes a customer within a tenant
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}

// ContactRepository defines the interface for contact persistence
type ContactRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Contact, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Contact, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)

	// ClearPrimary unsets the primary flag on every contact of the customer except keepID
	ClearPrimary(ctx context.Context, tenantID, customerID, keepID uuid.UUID) error

	Save(ctx context.Context, contact *Contact) error
	SaveWithLock(ctx context.Context, contact *Contact) error
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}

// OpportunityRepository defines the interface for opportunity persistence
type OpportunityRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Opportunity, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Opportunity, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)

	// FindForPipeline returns every opportunity matching the filter, ignoring pagination
	FindForPipeline(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Opportunity, error)

	Save(ctx context.Context, opp *Opportunity) error
	SaveWithLock(ctx context.Context, opp *Opportunity) error
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}

// QuoteRepository defines the interface for quote persistence.
// Quotes are loaded and saved together with their items.
type QuoteRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Quote, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Quote, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)

	// FindExpirable finds draft or sent quotes of any tenant whose validity ended before now
	FindExpirable(ctx context.Context, now time.Time, limit int) ([]Quote, error)

	Save(ctx context.Context, quote *Quote) error
	SaveWithLock(ctx context.Context, quote *Quote) error
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}

// TaskRepository defines the interface for task persistence
type TaskRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Task, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Task, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)

	// FindNewlyOverdue finds open tasks of any tenant that are past due but not yet flagged
	FindNewlyOverdue(ctx context.Context, now time.Time, limit int) ([]Task, error)

	Save(ctx context.Context, task *Task) error
	SaveWithLock(ctx context.Context, task *Task) error
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}

// NoteRepository defines the interface for note persistence.
// Listings return pinned notes first.
type NoteRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Note, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Note, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)
	Save(ctx context.Context, note *Note) error
	SaveWithLock(ctx context.Context, note *Note) error
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}

// ActivityRepository defines the interface for activity persistence
type ActivityRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Activity, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Activity, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)
	Save(ctx context.Context, activity *Activity) error
	SaveWithLock(ctx context.Context, activity *Activity) error
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}
