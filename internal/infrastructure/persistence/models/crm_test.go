package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/automation"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTableNames(t *testing.T) {
	assert.Equal(t, "customers", CustomerModel{}.TableName())
	assert.Equal(t, "contacts", ContactModel{}.TableName())
	assert.Equal(t, "opportunities", OpportunityModel{}.TableName())
	assert.Equal(t, "quotes", QuoteModel{}.TableName())
	assert.Equal(t, "quote_items", QuoteItemModel{}.TableName())
	assert.Equal(t, "campaign_recipients", CampaignRecipientModel{}.TableName())
	assert.Equal(t, "workflow_executions", WorkflowExecutionModel{}.TableName())
	assert.Equal(t, "system_settings", SystemSettingModel{}.TableName())
	assert.Len(t, All(), 15)
}

func TestCustomerModel_RoundTrip(t *testing.T) {
	ownerID := uuid.New()
	c, err := crm.NewCustomer(uuid.New(), "Acme", crm.CustomerTypeOrganization)
	require.NoError(t, err)
	require.NoError(t, c.Apply(crm.CustomerPatch{
		OwnerID:       &ownerID,
		AnnualRevenue: ptrDecimal(decimal.RequireFromString("10.25")),
		Tags:          []string{"enterprise"},
	}))

	model := CustomerModelFromDomain(c)
	assert.Equal(t, `["enterprise"]`, model.TagsJSON)
	assert.Equal(t, c.TenantID, model.TenantID)

	back := model.ToDomain()
	assert.Equal(t, c.ID, back.ID)
	assert.Equal(t, c.Version, back.Version)
	assert.Equal(t, []string{"enterprise"}, back.Tags)
	assert.Equal(t, &ownerID, back.OwnerID)
	assert.True(t, c.AnnualRevenue.Equal(back.AnnualRevenue))
}

func TestCustomerModel_NilTagsEncodeAsEmptyArray(t *testing.T) {
	c, err := crm.NewCustomer(uuid.New(), "Acme", crm.CustomerTypeIndividual)
	require.NoError(t, err)
	c.Tags = nil

	assert.Equal(t, "[]", CustomerModelFromDomain(c).TagsJSON)
}

func TestDecodeJSON_MalformedColumnIsLoggedAndLeftEmpty(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	model := &CustomerModel{Name: "Broken", TagsJSON: `{"not":"an array"`}
	model.ID = uuid.New()

	c := model.ToDomain()
	assert.Empty(t, c.Tags)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "failed to parse JSON column", entry.Message)
	assert.Equal(t, "tags", entry.ContextMap()["column"])
}

func TestQuoteModel_ItemsCarryQuoteAndTenant(t *testing.T) {
	q, err := crm.NewQuote(uuid.New(), uuid.New(), "Offer")
	require.NoError(t, err)
	item, err := crm.NewQuoteItem("Seat", "", decimal.NewFromInt(3), decimal.NewFromInt(20), decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, q.Apply(crm.QuotePatch{Items: []crm.QuoteItem{item}}))

	model := QuoteModelFromDomain(q)
	require.Len(t, model.Items, 1)
	assert.Equal(t, q.ID, model.Items[0].QuoteID)
	assert.Equal(t, q.TenantID, model.Items[0].TenantID)
	assert.True(t, decimal.NewFromInt(60).Equal(model.Items[0].LineTotal))

	back := model.ToDomain()
	require.Len(t, back.Items, 1)
	assert.Equal(t, "Seat", back.Items[0].ProductName)
}

func TestWorkflowExecutionModel_RoundTrip(t *testing.T) {
	w, err := automation.NewWorkflow(uuid.New(), "Escalate", automation.EntityTask, automation.TriggerUpdated, "")
	require.NoError(t, err)
	e := automation.NewExecution(w, nil, automation.TriggerManual, automation.Snapshot{"status": "pending"}, true)
	e.Finish(nil)

	model := WorkflowExecutionModelFromDomain(e)
	assert.Equal(t, "[]", model.MatchedRulesJSON)
	assert.JSONEq(t, `{"status":"pending"}`, model.SnapshotJSON)

	back := model.ToDomain()
	assert.Equal(t, automation.ExecutionNoMatch, back.Status)
	assert.Nil(t, back.EntityID)
	assert.True(t, back.DryRun)
	assert.Equal(t, "pending", back.Snapshot["status"])
}

func ptrDecimal(d decimal.Decimal) *decimal.Decimal {
	return &d
}
