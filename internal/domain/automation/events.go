package automation

import (
	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeWorkflow = "Workflow"

// Event type constants
const (
	EventTypeWorkflowCreated       = "WorkflowCreated"
	EventTypeWorkflowUpdated       = "WorkflowUpdated"
	EventTypeWorkflowStatusChanged = "WorkflowStatusChanged"
	EventTypeWorkflowDeleted       = "WorkflowDeleted"
	EventTypeWorkflowExecuted      = "WorkflowExecuted"
)

// WorkflowEvent is published for workflow definition changes
type WorkflowEvent struct {
	shared.BaseDomainEvent
	WorkflowID uuid.UUID      `json:"workflow_id"`
	Name       string         `json:"name"`
	Trigger    Trigger        `json:"trigger"`
	Schedule   string         `json:"schedule,omitempty"`
	IsActive   bool           `json:"is_active"`
	Previous   shared.Changes `json:"previous,omitempty"`
}

// PreviousValues implements shared.ChangeSet
func (e *WorkflowEvent) PreviousValues() map[string]any {
	return e.Previous
}

func newWorkflowEvent(eventType string, w *Workflow, previous shared.Changes) *WorkflowEvent {
	return &WorkflowEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeWorkflow, w.ID, w.TenantID),
		WorkflowID:      w.ID,
		Name:            w.Name,
		Trigger:         w.Trigger,
		Schedule:        w.Schedule,
		IsActive:        w.IsActive,
		Previous:        previous,
	}
}

// WorkflowExecutedEvent is published after a non-dry-run execution is stored
type WorkflowExecutedEvent struct {
	shared.BaseDomainEvent
	WorkflowID      uuid.UUID       `json:"workflow_id"`
	ExecutionID     uuid.UUID       `json:"execution_id"`
	EntityType      EntityType      `json:"entity_type"`
	EntityID        *uuid.UUID      `json:"entity_id,omitempty"`
	Status          ExecutionStatus `json:"status"`
	ActionsExecuted int             `json:"actions_executed"`
	DurationMs      int64           `json:"duration_ms"`
}

// NewWorkflowExecutedEvent creates the event for a finished execution
func NewWorkflowExecutedEvent(e *Execution) *WorkflowExecutedEvent {
	return &WorkflowExecutedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeWorkflowExecuted, AggregateTypeWorkflow, e.WorkflowID, e.TenantID),
		WorkflowID:      e.WorkflowID,
		ExecutionID:     e.ID,
		EntityType:      e.EntityType,
		EntityID:        e.EntityID,
		Status:          e.Status,
		ActionsExecuted: e.ActionsExecuted,
		DurationMs:      e.DurationMs,
	}
}
