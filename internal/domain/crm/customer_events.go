package crm

import (
	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeCustomer = "Customer"

// Event type constants
const (
	EventTypeCustomerCreated       = "CustomerCreated"
	EventTypeCustomerUpdated       = "CustomerUpdated"
	EventTypeCustomerStatusChanged = "CustomerStatusChanged"
	EventTypeCustomerDeleted       = "CustomerDeleted"
)

// CustomerCreatedEvent is published when a new customer is created
type CustomerCreatedEvent struct {
	shared.BaseDomainEvent
	CustomerID uuid.UUID      `json:"customer_id"`
	Name       string         `json:"name"`
	Type       CustomerType   `json:"type"`
	Status     CustomerStatus `json:"status"`
	Source     CustomerSource `json:"source,omitempty"`
}

// NewCustomerCreatedEvent creates a new CustomerCreatedEvent
func NewCustomerCreatedEvent(c *Customer) *CustomerCreatedEvent {
	return &CustomerCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCustomerCreated, AggregateTypeCustomer, c.ID, c.TenantID),
		CustomerID:      c.ID,
		Name:            c.Name,
		Type:            c.Type,
		Status:          c.Status,
		Source:          c.Source,
	}
}

// CustomerUpdatedEvent is published when customer details change
type CustomerUpdatedEvent struct {
	shared.BaseDomainEvent
	CustomerID uuid.UUID      `json:"customer_id"`
	Previous   shared.Changes `json:"previous"`
}

// NewCustomerUpdatedEvent creates a new CustomerUpdatedEvent
func NewCustomerUpdatedEvent(c *Customer, previous shared.Changes) *CustomerUpdatedEvent {
	return &CustomerUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCustomerUpdated, AggregateTypeCustomer, c.ID, c.TenantID),
		CustomerID:      c.ID,
		Previous:        previous,
	}
}

// PreviousValues implements shared.ChangeSet
func (e *CustomerUpdatedEvent) PreviousValues() map[string]any {
	return e.Previous
}

// CustomerStatusChangedEvent is published when a customer's status changes
type CustomerStatusChangedEvent struct {
	shared.BaseDomainEvent
	CustomerID uuid.UUID      `json:"customer_id"`
	OldStatus  CustomerStatus `json:"old_status"`
	NewStatus  CustomerStatus `json:"new_status"`
}

// NewCustomerStatusChangedEvent creates a new CustomerStatusChangedEvent
func NewCustomerStatusChangedEvent(c *Customer, oldStatus, newStatus CustomerStatus) *CustomerStatusChangedEvent {
	return &CustomerStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCustomerStatusChanged, AggregateTypeCustomer, c.ID, c.TenantID),
		CustomerID:      c.ID,
		OldStatus:       oldStatus,
		NewStatus:       newStatus,
	}
}

// PreviousValues implements shared.ChangeSet
func (e *CustomerStatusChangedEvent) PreviousValues() map[string]any {
	return map[string]any{"status": string(e.OldStatus)}
}

// CustomerDeletedEvent is published when a customer is deleted
type CustomerDeletedEvent struct {
	shared.BaseDomainEvent
	CustomerID uuid.UUID `json:"customer_id"`
	Name       string    `json:"name"`
}

// NewCustomerDeletedEvent creates a new CustomerDeletedEvent
func NewCustomerDeletedEvent(c *Customer) *CustomerDeletedEvent {
	return &CustomerDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCustomerDeleted, AggregateTypeCustomer, c.ID, c.TenantID),
		CustomerID:      c.ID,
		Name:            c.Name,
	}
}
