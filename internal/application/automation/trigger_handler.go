package automation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/automation"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/opencrm/backend/internal/domain/marketing"
	"github.com/opencrm/backend/internal/domain/shared"
	"go.uber.org/zap"
)

type triggerKey struct {
	entityType automation.EntityType
	trigger    automation.Trigger
}

// eventTriggers maps the entity lifecycle events onto workflow triggers
var eventTriggers = map[string]triggerKey{
	crm.EventTypeCustomerCreated:       {automation.EntityCustomer, automation.TriggerCreated},
	crm.EventTypeCustomerUpdated:       {automation.EntityCustomer, automation.TriggerUpdated},
	crm.EventTypeCustomerStatusChanged: {automation.EntityCustomer, automation.TriggerStatusChanged},
	crm.EventTypeCustomerDeleted:       {automation.EntityCustomer, automation.TriggerDeleted},

	crm.EventTypeContactCreated:       {automation.EntityContact, automation.TriggerCreated},
	crm.EventTypeContactUpdated:       {automation.EntityContact, automation.TriggerUpdated},
	crm.EventTypeContactStatusChanged: {automation.EntityContact, automation.TriggerStatusChanged},
	crm.EventTypeContactDeleted:       {automation.EntityContact, automation.TriggerDeleted},

	crm.EventTypeOpportunityCreated:       {automation.EntityOpportunity, automation.TriggerCreated},
	crm.EventTypeOpportunityUpdated:       {automation.EntityOpportunity, automation.TriggerUpdated},
	crm.EventTypeOpportunityStatusChanged: {automation.EntityOpportunity, automation.TriggerStatusChanged},
	crm.EventTypeOpportunityDeleted:       {automation.EntityOpportunity, automation.TriggerDeleted},

	crm.EventTypeQuoteCreated:       {automation.EntityQuote, automation.TriggerCreated},
	crm.EventTypeQuoteUpdated:       {automation.EntityQuote, automation.TriggerUpdated},
	crm.EventTypeQuoteStatusChanged: {automation.EntityQuote, automation.TriggerStatusChanged},
	crm.EventTypeQuoteDeleted:       {automation.EntityQuote, automation.TriggerDeleted},

	crm.EventTypeTaskCreated:       {automation.EntityTask, automation.TriggerCreated},
	crm.EventTypeTaskUpdated:       {automation.EntityTask, automation.TriggerUpdated},
	crm.EventTypeTaskStatusChanged: {automation.EntityTask, automation.TriggerStatusChanged},
	crm.EventTypeTaskDeleted:       {automation.EntityTask, automation.TriggerDeleted},

	crm.EventTypeActivityCreated: {automation.EntityActivity, automation.TriggerCreated},
	crm.EventTypeActivityUpdated: {automation.EntityActivity, automation.TriggerUpdated},
	crm.EventTypeActivityDeleted: {automation.EntityActivity, automation.TriggerDeleted},

	marketing.EventTypeCampaignCreated:       {automation.EntityCampaign, automation.TriggerCreated},
	marketing.EventTypeCampaignUpdated:       {automation.EntityCampaign, automation.TriggerUpdated},
	marketing.EventTypeCampaignStatusChanged: {automation.EntityCampaign, automation.TriggerStatusChanged},
	marketing.EventTypeCampaignDeleted:       {automation.EntityCampaign, automation.TriggerDeleted},
}

// workflowsEnabledKey is the tenant setting that switches event-driven runs off
const workflowsEnabledKey = "workflows.enabled"

// SettingsReader reads boolean tenant settings
type SettingsReader interface {
	Bool(ctx context.Context, tenantID uuid.UUID, key string) (bool, error)
}

// TriggerHandler runs the active workflows matching each entity event
type TriggerHandler struct {
	workflows automation.WorkflowRepository
	gateways  Gateways
	engine    *Engine
	settings  SettingsReader
	logger    *zap.Logger
}

// NewTriggerHandler creates the workflow trigger handler
func NewTriggerHandler(workflows automation.WorkflowRepository, gateways Gateways, engine *Engine, logger *zap.Logger) *TriggerHandler {
	return &TriggerHandler{
		workflows: workflows,
		gateways:  gateways,
		engine:    engine,
		logger:    logger.Named("workflow_trigger"),
	}
}

// SetSettings lets tenants switch workflow triggers off
func (h *TriggerHandler) SetSettings(settings SettingsReader) {
	h.settings = settings
}

// EventTypes returns every event type that can start a workflow
func (h *TriggerHandler) EventTypes() []string {
	types := make([]string, 0, len(eventTriggers))
	for t := range eventTriggers {
		types = append(types, t)
	}
	return types
}

// Handle looks up the workflows for the event and runs each one. A failing
// workflow is logged and does not stop the others.
func (h *TriggerHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	key, ok := eventTriggers[event.EventType()]
	if !ok {
		return nil
	}
	if depthFrom(ctx) >= MaxDepth {
		h.logger.Warn("workflow recursion limit reached, event ignored",
			zap.String("event_type", event.EventType()),
			zap.String("aggregate_id", event.AggregateID().String()),
		)
		return nil
	}
	if !h.enabled(ctx, event.TenantID()) {
		return nil
	}

	workflows, err := h.workflows.FindActiveFor(ctx, event.TenantID(), key.entityType, key.trigger)
	if err != nil {
		return err
	}
	if len(workflows) == 0 {
		return nil
	}

	entityID := event.AggregateID()
	current, err := h.snapshot(ctx, key, event.TenantID(), entityID)
	if err != nil {
		return err
	}
	previous := previousSnapshot(current, event)

	for i := range workflows {
		w := &workflows[i]
		_, err := h.engine.Run(ctx, w, RunInput{
			EntityID: &entityID,
			Trigger:  key.trigger,
			Current:  current,
			Previous: previous,
		})
		if err != nil {
			h.logger.Error("workflow run failed",
				zap.String("workflow_id", w.ID.String()),
				zap.String("event_type", event.EventType()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// enabled fails open when the setting cannot be read
func (h *TriggerHandler) enabled(ctx context.Context, tenantID uuid.UUID) bool {
	if h.settings == nil {
		return true
	}
	on, err := h.settings.Bool(ctx, tenantID, workflowsEnabledKey)
	if err != nil {
		h.logger.Warn("failed to read workflow switch", zap.String("tenant_id", tenantID.String()), zap.Error(err))
		return true
	}
	return on
}

// snapshot loads the entity; a deleted entity is reduced to its id
func (h *TriggerHandler) snapshot(ctx context.Context, key triggerKey, tenantID, id uuid.UUID) (automation.Snapshot, error) {
	if key.trigger == automation.TriggerDeleted {
		return automation.Snapshot{"id": id.String()}, nil
	}
	gw, err := h.gateways.For(key.entityType)
	if err != nil {
		return nil, err
	}
	snap, err := gw.Snapshot(ctx, tenantID, id)
	if errors.Is(err, shared.ErrNotFound) {
		return automation.Snapshot{"id": id.String()}, nil
	}
	return snap, err
}

// previousSnapshot overlays the event's old values on the current snapshot.
// Events without a change set have no previous snapshot.
func previousSnapshot(current automation.Snapshot, event shared.DomainEvent) automation.Snapshot {
	changes, ok := event.(shared.ChangeSet)
	if !ok {
		return nil
	}
	if len(changes.PreviousValues()) == 0 {
		return nil
	}
	// old values carry domain types; JSON gives them the snapshot's shape
	values, err := ToSnapshot(changes.PreviousValues())
	if err != nil {
		return nil
	}
	previous := current.Clone()
	if previous == nil {
		previous = automation.Snapshot{}
	}
	for k, v := range values {
		previous[k] = v
	}
	return previous
}
