package marketing

import (
	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeCampaign = "Campaign"

// Event type constants
const (
	EventTypeCampaignCreated             = "CampaignCreated"
	EventTypeCampaignUpdated             = "CampaignUpdated"
	EventTypeCampaignStatusChanged       = "CampaignStatusChanged"
	EventTypeCampaignDeleted             = "CampaignDeleted"
	EventTypeCampaignExecuted            = "CampaignExecuted"
	EventTypeCampaignInteractionRecorded = "CampaignInteractionRecorded"
)

// CampaignEvent is published for campaign create, update, status and delete
type CampaignEvent struct {
	shared.BaseDomainEvent
	CampaignID uuid.UUID      `json:"campaign_id"`
	Name       string         `json:"name"`
	Status     CampaignStatus `json:"status"`
	Previous   shared.Changes `json:"previous,omitempty"`
}

// PreviousValues implements shared.ChangeSet
func (e *CampaignEvent) PreviousValues() map[string]any {
	return e.Previous
}

func newCampaignEvent(eventType string, c *Campaign, previous shared.Changes) *CampaignEvent {
	return &CampaignEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeCampaign, c.ID, c.TenantID),
		CampaignID:      c.ID,
		Name:            c.Name,
		Status:          c.Status,
		Previous:        previous,
	}
}

// CampaignExecutedEvent is published once a campaign's recipients are created.
// Delivery channels consume it to send the actual messages.
type CampaignExecutedEvent struct {
	shared.BaseDomainEvent
	CampaignID     uuid.UUID    `json:"campaign_id"`
	Name           string       `json:"name"`
	Type           CampaignType `json:"type"`
	RecipientCount int          `json:"recipient_count"`
}

// InteractionRecordedEvent is published for every tracked interaction
type InteractionRecordedEvent struct {
	shared.BaseDomainEvent
	CampaignID  uuid.UUID       `json:"campaign_id"`
	RecipientID uuid.UUID       `json:"recipient_id"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	Type        InteractionType `json:"type"`
	Value       string          `json:"value"`
	FirstOfKind bool            `json:"first_of_kind"`
}

// NewInteractionRecordedEvent creates the event for a stored interaction
func NewInteractionRecordedEvent(i *Interaction, delta CounterDelta) *InteractionRecordedEvent {
	first := false
	switch i.Type {
	case InteractionOpen:
		first = delta.Opens > 0
	case InteractionClick:
		first = delta.Clicks > 0
	case InteractionConversion:
		first = delta.Conversions > 0
	}
	return &InteractionRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCampaignInteractionRecorded, AggregateTypeCampaign, i.CampaignID, i.TenantID),
		CampaignID:      i.CampaignID,
		RecipientID:     i.RecipientID,
		CustomerID:      i.CustomerID,
		Type:            i.Type,
		Value:           i.Value.String(),
		FirstOfKind:     first,
	}
}
