package marketing

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ErrEmptyAudience is returned when a campaign matches no customers
var ErrEmptyAudience = shared.NewDomainError("EMPTY_AUDIENCE", "No customers match the campaign target criteria")

// RecipientStatus is the furthest engagement step a recipient reached
type RecipientStatus string

const (
	RecipientStatusSent      RecipientStatus = "sent"
	RecipientStatusOpened    RecipientStatus = "opened"
	RecipientStatusClicked   RecipientStatus = "clicked"
	RecipientStatusConverted RecipientStatus = "converted"
)

// Recipient is one customer a campaign was sent to
type Recipient struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	CampaignID  uuid.UUID
	CustomerID  uuid.UUID
	Email       string
	Status      RecipientStatus
	SentAt      time.Time
	OpenedAt    *time.Time
	ClickedAt   *time.Time
	ConvertedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewRecipient creates a sent recipient
func NewRecipient(tenantID, campaignID, customerID uuid.UUID, email string, sentAt time.Time) *Recipient {
	return &Recipient{
		ID:         uuid.New(),
		TenantID:   tenantID,
		CampaignID: campaignID,
		CustomerID: customerID,
		Email:      email,
		Status:     RecipientStatusSent,
		SentAt:     sentAt,
		CreatedAt:  sentAt,
		UpdatedAt:  sentAt,
	}
}

// InteractionType is the kind of tracked engagement
type InteractionType string

const (
	InteractionOpen       InteractionType = "open"
	InteractionClick      InteractionType = "click"
	InteractionConversion InteractionType = "conversion"
)

// IsValid reports whether the type is known
func (t InteractionType) IsValid() bool {
	return t == InteractionOpen || t == InteractionClick || t == InteractionConversion
}

// CounterDelta is the change an interaction makes to campaign counters
type CounterDelta struct {
	Opens       int
	Clicks      int
	Conversions int
	Value       decimal.Decimal
}

// IsZero reports whether the delta changes nothing
func (d CounterDelta) IsZero() bool {
	return d.Opens == 0 && d.Clicks == 0 && d.Conversions == 0 && d.Value.IsZero()
}

// Record marks the recipient for an interaction and returns the counter delta.
// A click implies an open and a conversion implies both, so each recipient
// contributes at most one to each unique counter.
func (r *Recipient) Record(t InteractionType, value decimal.Decimal, at time.Time) CounterDelta {
	delta := CounterDelta{Value: decimal.Zero}

	if r.OpenedAt == nil {
		r.OpenedAt = &at
		delta.Opens = 1
		r.raise(RecipientStatusOpened)
	}
	if t == InteractionOpen {
		r.UpdatedAt = at
		return delta
	}

	if r.ClickedAt == nil {
		r.ClickedAt = &at
		delta.Clicks = 1
		r.raise(RecipientStatusClicked)
	}
	if t == InteractionClick {
		r.UpdatedAt = at
		return delta
	}

	if r.ConvertedAt == nil {
		r.ConvertedAt = &at
		delta.Conversions = 1
		r.raise(RecipientStatusConverted)
	}
	delta.Value = value
	r.UpdatedAt = at
	return delta
}

func (r *Recipient) raise(status RecipientStatus) {
	rank := map[RecipientStatus]int{
		RecipientStatusSent:      0,
		RecipientStatusOpened:    1,
		RecipientStatusClicked:   2,
		RecipientStatusConverted: 3,
	}
	if rank[status] > rank[r.Status] {
		r.Status = status
	}
}

// Interaction is a stored open, click or conversion
type Interaction struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	CampaignID  uuid.UUID
	RecipientID uuid.UUID
	CustomerID  uuid.UUID
	Type        InteractionType
	URL         string
	Value       decimal.Decimal
	UserAgent   string
	IPAddress   string
	OccurredAt  time.Time
}

// NewInteraction validates and builds an interaction for a recipient
func NewInteraction(r *Recipient, t InteractionType, rawURL string, value decimal.Decimal, at time.Time) (*Interaction, error) {
	if !t.IsValid() {
		return nil, shared.NewDomainError("INVALID_INTERACTION_TYPE", "Interaction type must be open, click or conversion")
	}
	if value.IsNegative() {
		return nil, shared.NewDomainError("INVALID_VALUE", "Conversion value cannot be negative")
	}
	if t != InteractionConversion {
		value = decimal.Zero
	}
	if t == InteractionClick && rawURL != "" {
		if err := ValidateRedirectURL(rawURL); err != nil {
			return nil, err
		}
	}

	return &Interaction{
		ID:          uuid.New(),
		TenantID:    r.TenantID,
		CampaignID:  r.CampaignID,
		RecipientID: r.ID,
		CustomerID:  r.CustomerID,
		Type:        t,
		URL:         rawURL,
		Value:       value,
		OccurredAt:  at,
	}, nil
}

// ValidateRedirectURL accepts absolute http and https URLs only
func ValidateRedirectURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return shared.NewDomainError("INVALID_URL", "URL must be an absolute http or https URL")
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return shared.NewDomainError("INVALID_URL", "URL must be an absolute http or https URL")
	}
	return nil
}
