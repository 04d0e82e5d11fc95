package crm

import (
	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
)

// Aggregate type constants
const (
	AggregateTypeContact     = "Contact"
	AggregateTypeOpportunity = "Opportunity"
	AggregateTypeQuote       = "Quote"
	AggregateTypeTask        = "Task"
	AggregateTypeNote        = "Note"
	AggregateTypeActivity    = "Activity"
)

// Event type constants
const (
	EventTypeContactCreated       = "ContactCreated"
	EventTypeContactUpdated       = "ContactUpdated"
	EventTypeContactStatusChanged = "ContactStatusChanged"
	EventTypeContactDeleted       = "ContactDeleted"

	EventTypeOpportunityCreated       = "OpportunityCreated"
	EventTypeOpportunityUpdated       = "OpportunityUpdated"
	EventTypeOpportunityStatusChanged = "OpportunityStatusChanged"
	EventTypeOpportunityDeleted       = "OpportunityDeleted"

	EventTypeQuoteCreated       = "QuoteCreated"
	EventTypeQuoteUpdated       = "QuoteUpdated"
	EventTypeQuoteStatusChanged = "QuoteStatusChanged"
	EventTypeQuoteDeleted       = "QuoteDeleted"

	EventTypeTaskCreated       = "TaskCreated"
	EventTypeTaskUpdated       = "TaskUpdated"
	EventTypeTaskStatusChanged = "TaskStatusChanged"
	EventTypeTaskDeleted       = "TaskDeleted"

	EventTypeNoteCreated = "NoteCreated"
	EventTypeNoteUpdated = "NoteUpdated"
	EventTypeNoteDeleted = "NoteDeleted"

	EventTypeActivityCreated = "ActivityCreated"
	EventTypeActivityUpdated = "ActivityUpdated"
	EventTypeActivityDeleted = "ActivityDeleted"
)

// EntityEvent is the lifecycle event shared by the smaller CRM aggregates.
// Previous holds the old values of changed fields for updates and status changes.
type EntityEvent struct {
	shared.BaseDomainEvent
	EntityID uuid.UUID      `json:"entity_id"`
	Previous shared.Changes `json:"previous,omitempty"`
}

// PreviousValues implements shared.ChangeSet
func (e *EntityEvent) PreviousValues() map[string]any {
	return e.Previous
}

func newEntityEvent(eventType, aggType string, root *shared.TenantAggregateRoot, previous shared.Changes) *EntityEvent {
	return &EntityEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, aggType, root.ID, root.TenantID),
		EntityID:        root.ID,
		Previous:        previous,
	}
}

func newContactEvent(eventType string, c *Contact, previous shared.Changes) *EntityEvent {
	return newEntityEvent(eventType, AggregateTypeContact, &c.TenantAggregateRoot, previous)
}

// OpportunityStageChangedEvent is published when an opportunity moves between stages
type OpportunityStageChangedEvent struct {
	shared.BaseDomainEvent
	OpportunityID uuid.UUID        `json:"opportunity_id"`
	CustomerID    uuid.UUID        `json:"customer_id"`
	OldStage      OpportunityStage `json:"old_stage"`
	NewStage      OpportunityStage `json:"new_stage"`
	Amount        string           `json:"amount"`
}

// PreviousValues implements shared.ChangeSet
func (e *OpportunityStageChangedEvent) PreviousValues() map[string]any {
	return map[string]any{"stage": string(e.OldStage)}
}

// QuoteStatusChangedEvent is published on every quote lifecycle transition
type QuoteStatusChangedEvent struct {
	shared.BaseDomainEvent
	QuoteID       uuid.UUID   `json:"quote_id"`
	QuoteNumber   string      `json:"quote_number"`
	OpportunityID *uuid.UUID  `json:"opportunity_id,omitempty"`
	OldStatus     QuoteStatus `json:"old_status"`
	NewStatus     QuoteStatus `json:"new_status"`
	Total         string      `json:"total"`
}

// PreviousValues implements shared.ChangeSet
func (e *QuoteStatusChangedEvent) PreviousValues() map[string]any {
	return map[string]any{"status": string(e.OldStatus)}
}

// IsAcceptance reports whether the transition accepted the quote
func (e *QuoteStatusChangedEvent) IsAcceptance() bool {
	return e.NewStatus == QuoteStatusAccepted
}
