package platform

import (
	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
)

// Aggregate type constants
const (
	AggregateTypeDeployment = "Deployment"
	AggregateTypeSetting    = "Setting"
)

// Event type constants
const (
	EventTypeDeploymentCreated       = "DeploymentCreated"
	EventTypeDeploymentUpdated       = "DeploymentUpdated"
	EventTypeDeploymentStatusChanged = "DeploymentStatusChanged"
	EventTypeDeploymentDeleted       = "DeploymentDeleted"
	EventTypeSettingChanged          = "SettingChanged"
	EventTypeSettingDeleted          = "SettingDeleted"
)

// DeploymentEvent is published for deployment changes
type DeploymentEvent struct {
	shared.BaseDomainEvent
	DeploymentID uuid.UUID        `json:"deployment_id"`
	Name         string           `json:"name"`
	Environment  Environment      `json:"environment"`
	Status       DeploymentStatus `json:"status"`
	AppVersion   string           `json:"app_version,omitempty"`
	Previous     shared.Changes   `json:"previous,omitempty"`
}

// PreviousValues implements shared.ChangeSet
func (e *DeploymentEvent) PreviousValues() map[string]any {
	return e.Previous
}

func newDeploymentEvent(eventType string, d *Deployment, previous shared.Changes) *DeploymentEvent {
	return &DeploymentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeDeployment, d.ID, d.TenantID),
		DeploymentID:    d.ID,
		Name:            d.Name,
		Environment:     d.Environment,
		Status:          d.Status,
		AppVersion:      d.AppVersion,
		Previous:        previous,
	}
}

// SettingEvent is published when a setting is written or removed.
// Secret values never appear in the event.
type SettingEvent struct {
	shared.BaseDomainEvent
	Key      string         `json:"key"`
	Previous shared.Changes `json:"previous,omitempty"`
}

func newSettingEvent(eventType string, s *Setting, previous shared.Changes) *SettingEvent {
	return &SettingEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeSetting, s.ID, s.TenantID),
		Key:             s.Key,
		Previous:        previous,
	}
}

// NewSettingDeletedEvent creates the event for a removed or reset setting
func NewSettingDeletedEvent(s *Setting) *SettingEvent {
	return newSettingEvent(EventTypeSettingDeleted, s, nil)
}
