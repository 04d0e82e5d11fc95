package event

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/opencrm/backend/internal/domain/marketing"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCRMSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterAllEvents(s)
	return s
}

func campaignExecuted() *marketing.CampaignExecutedEvent {
	campaignID := uuid.New()
	return &marketing.CampaignExecutedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(marketing.EventTypeCampaignExecuted, marketing.AggregateTypeCampaign, campaignID, uuid.New()),
		CampaignID:      campaignID,
		Name:            "Spring launch",
		Type:            marketing.CampaignTypeEmail,
		RecipientCount:  250,
	}
}

func TestRegisterAllEvents_CoversEveryType(t *testing.T) {
	s := newCRMSerializer()

	for _, eventType := range []string{
		crm.EventTypeCustomerCreated,
		crm.EventTypeContactStatusChanged,
		crm.EventTypeOpportunityStatusChanged,
		crm.EventTypeQuoteStatusChanged,
		crm.EventTypeTaskDeleted,
		marketing.EventTypeCampaignExecuted,
		marketing.EventTypeCampaignInteractionRecorded,
		"WorkflowExecuted",
		"SettingChanged",
		"DeploymentStatusChanged",
	} {
		assert.True(t, s.IsRegistered(eventType), eventType)
	}
	assert.False(t, s.IsRegistered("InvoiceIssued"))

	types := s.RegisteredTypes()
	assert.IsIncreasing(t, types)
}

func TestEventSerializer_EncodeWritesEnvelope(t *testing.T) {
	event := campaignExecuted()

	data, err := newCRMSerializer().Encode(event)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, event.EventID(), env.EventID)
	assert.Equal(t, marketing.EventTypeCampaignExecuted, env.EventType)
	assert.Equal(t, marketing.AggregateTypeCampaign, env.AggregateType)
	assert.Equal(t, event.TenantID(), env.TenantID)
	assert.Contains(t, string(env.Payload), `"recipient_count":250`)
}

func TestEventSerializer_DecodeRestoresHeaderAndPayload(t *testing.T) {
	s := newCRMSerializer()
	original := campaignExecuted()

	data, err := s.Encode(original)
	require.NoError(t, err)

	decoded, err := s.Decode(data)
	require.NoError(t, err)

	got, ok := decoded.(*marketing.CampaignExecutedEvent)
	require.True(t, ok)
	// the payload's "type" is the campaign type, the header keeps the event type
	assert.Equal(t, marketing.EventTypeCampaignExecuted, got.EventType())
	assert.Equal(t, marketing.CampaignTypeEmail, got.Type)
	assert.Equal(t, original.EventID(), got.EventID())
	assert.Equal(t, original.AggregateID(), got.AggregateID())
	assert.Equal(t, original.TenantID(), got.TenantID())
	assert.True(t, original.OccurredAt().Equal(got.OccurredAt()))
	assert.Equal(t, 250, got.RecipientCount)
}

func TestEventSerializer_DecodeErrors(t *testing.T) {
	s := newCRMSerializer()

	tests := []struct {
		name string
		data string
		msg  string
	}{
		{name: "not json", data: "{", msg: "unmarshal envelope"},
		{name: "unknown type", data: `{"event_type":"InvoiceIssued","payload":{}}`, msg: "unknown event type"},
		{name: "bad payload", data: `{"event_type":"CustomerCreated","payload":{"name":42}}`, msg: "unmarshal CustomerCreated payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Decode([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
