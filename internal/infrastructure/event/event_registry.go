package event

import (
	"github.com/opencrm/backend/internal/domain/automation"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/opencrm/backend/internal/domain/marketing"
	"github.com/opencrm/backend/internal/domain/platform"
)

// RegisterAllEvents registers every CRM domain event type with the serializer
func RegisterAllEvents(serializer *EventSerializer) {
	// Customers
	serializer.Register(crm.EventTypeCustomerCreated, &crm.CustomerCreatedEvent{})
	serializer.Register(crm.EventTypeCustomerUpdated, &crm.CustomerUpdatedEvent{})
	serializer.Register(crm.EventTypeCustomerStatusChanged, &crm.CustomerStatusChangedEvent{})
	serializer.Register(crm.EventTypeCustomerDeleted, &crm.CustomerDeletedEvent{})

	// Smaller CRM aggregates share EntityEvent
	for _, eventType := range []string{
		crm.EventTypeContactCreated, crm.EventTypeContactUpdated, crm.EventTypeContactStatusChanged, crm.EventTypeContactDeleted,
		crm.EventTypeOpportunityCreated, crm.EventTypeOpportunityUpdated, crm.EventTypeOpportunityDeleted,
		crm.EventTypeQuoteCreated, crm.EventTypeQuoteUpdated, crm.EventTypeQuoteDeleted,
		crm.EventTypeTaskCreated, crm.EventTypeTaskUpdated, crm.EventTypeTaskStatusChanged, crm.EventTypeTaskDeleted,
		crm.EventTypeNoteCreated, crm.EventTypeNoteUpdated, crm.EventTypeNoteDeleted,
		crm.EventTypeActivityCreated, crm.EventTypeActivityUpdated, crm.EventTypeActivityDeleted,
	} {
		serializer.Register(eventType, &crm.EntityEvent{})
	}
	serializer.Register(crm.EventTypeOpportunityStatusChanged, &crm.OpportunityStageChangedEvent{})
	serializer.Register(crm.EventTypeQuoteStatusChanged, &crm.QuoteStatusChangedEvent{})

	// Marketing
	serializer.Register(marketing.EventTypeCampaignCreated, &marketing.CampaignEvent{})
	serializer.Register(marketing.EventTypeCampaignUpdated, &marketing.CampaignEvent{})
	serializer.Register(marketing.EventTypeCampaignStatusChanged, &marketing.CampaignEvent{})
	serializer.Register(marketing.EventTypeCampaignDeleted, &marketing.CampaignEvent{})
	serializer.Register(marketing.EventTypeCampaignExecuted, &marketing.CampaignExecutedEvent{})
	serializer.Register(marketing.EventTypeCampaignInteractionRecorded, &marketing.InteractionRecordedEvent{})

	// Automation
	serializer.Register(automation.EventTypeWorkflowCreated, &automation.WorkflowEvent{})
	serializer.Register(automation.EventTypeWorkflowUpdated, &automation.WorkflowEvent{})
	serializer.Register(automation.EventTypeWorkflowStatusChanged, &automation.WorkflowEvent{})
	serializer.Register(automation.EventTypeWorkflowDeleted, &automation.WorkflowEvent{})
	serializer.Register(automation.EventTypeWorkflowExecuted, &automation.WorkflowExecutedEvent{})

	// Platform
	serializer.Register(platform.EventTypeDeploymentCreated, &platform.DeploymentEvent{})
	serializer.Register(platform.EventTypeDeploymentUpdated, &platform.DeploymentEvent{})
	serializer.Register(platform.EventTypeDeploymentStatusChanged, &platform.DeploymentEvent{})
	serializer.Register(platform.EventTypeDeploymentDeleted, &platform.DeploymentEvent{})
	serializer.Register(platform.EventTypeSettingChanged, &platform.SettingEvent{})
	serializer.Register(platform.EventTypeSettingDeleted, &platform.SettingEvent{})
}
