package automation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/automation"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type actionFixture struct {
	gateway    *fakeGateway
	tasks      *fakeTasks
	notes      *fakeNotes
	activities *fakeActivities
	executor   *ActionExecutor
	now        time.Time
}

func newActionFixture() *actionFixture {
	f := &actionFixture{
		gateway:    newFakeGateway(),
		tasks:      &fakeTasks{},
		notes:      &fakeNotes{},
		activities: &fakeActivities{},
		now:        time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	gateways := Gateways{automation.EntityOpportunity: f.gateway, automation.EntityCustomer: f.gateway}
	f.executor = NewActionExecutor(gateways, f.tasks, f.notes, f.activities)
	f.executor.now = func() time.Time { return f.now }
	return f
}

func opportunityContext() ActionContext {
	id := uuid.New()
	return ActionContext{
		TenantID:   testTenantID,
		WorkflowID: uuid.New(),
		EntityType: automation.EntityOpportunity,
		EntityID:   &id,
		Trigger:    automation.TriggerStatusChanged,
		Snapshot: automation.Snapshot{
			"id":          id.String(),
			"name":        "Renewal",
			"stage":       "negotiation",
			"customer_id": "5f0c3b1a-8e2d-4c6f-9b7a-1d3e5f7a9c2b",
			"contact_id":  "not-a-uuid",
		},
	}
}

func TestActionExecutor_UpdateFieldAndStatusUseGateway(t *testing.T) {
	f := newActionFixture()
	ac := opportunityContext()

	require.NoError(t, f.executor.Run(context.Background(), ac, automation.Action{
		Type: automation.ActionUpdateField, Params: map[string]any{"field": "probability", "value": 80},
	}))
	require.NoError(t, f.executor.Run(context.Background(), ac, automation.Action{
		Type: automation.ActionSetStatus, Params: map[string]any{"status": "closed_won"},
	}))

	assert.Equal(t, []string{"probability"}, f.gateway.updates)
	assert.Equal(t, []string{"closed_won"}, f.gateway.statuses)
}

func TestActionExecutor_EntityActionsNeedAnEntity(t *testing.T) {
	f := newActionFixture()
	ac := opportunityContext()
	ac.EntityID = nil

	err := f.executor.Run(context.Background(), ac, automation.Action{
		Type: automation.ActionSetStatus, Params: map[string]any{"status": "closed_won"},
	})

	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "NO_ENTITY", domainErr.Code)
}

func TestActionExecutor_UnsupportedEntity(t *testing.T) {
	f := newActionFixture()
	ac := opportunityContext()
	ac.EntityType = automation.EntityCampaign

	err := f.executor.Run(context.Background(), ac, automation.Action{
		Type: automation.ActionUpdateField, Params: map[string]any{"field": "name", "value": "x"},
	})

	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "UNSUPPORTED_ENTITY", domainErr.Code)
}

func TestActionExecutor_CreateTask(t *testing.T) {
	f := newActionFixture()
	ac := opportunityContext()
	assignee := uuid.New()

	err := f.executor.Run(context.Background(), ac, automation.Action{
		Type: automation.ActionCreateTask,
		Params: map[string]any{
			"title":       "Prepare contract for {{name}}",
			"description": "Stage {{ stage }}, owner {{owner}}",
			"priority":    "high",
			"due_in_days": float64(3),
			"assigned_to": assignee.String(),
		},
	})

	require.NoError(t, err)
	require.Len(t, f.tasks.requests, 1)
	req := f.tasks.requests[0]
	assert.Equal(t, "Prepare contract for Renewal", req.Title)
	assert.Equal(t, "Stage negotiation, owner ", req.Description)
	assert.Equal(t, "high", req.Priority)
	require.NotNil(t, req.DueDate)
	assert.Equal(t, f.now.AddDate(0, 0, 3), *req.DueDate)
	assert.Equal(t, &assignee, req.AssignedTo)
	assert.Equal(t, ac.EntityID, req.OpportunityID)
	require.NotNil(t, req.CustomerID)
	assert.Equal(t, "5f0c3b1a-8e2d-4c6f-9b7a-1d3e5f7a9c2b", req.CustomerID.String())
	assert.Nil(t, req.ContactID, "malformed ids are not linked")
}

func TestActionExecutor_CreateTaskRejectsBadAssignee(t *testing.T) {
	f := newActionFixture()

	err := f.executor.Run(context.Background(), opportunityContext(), automation.Action{
		Type: automation.ActionCreateTask, Params: map[string]any{"title": "x", "assigned_to": "bob"},
	})

	assert.Error(t, err)
	assert.Empty(t, f.tasks.requests)
}

func TestActionExecutor_AddNote(t *testing.T) {
	f := newActionFixture()
	ac := opportunityContext()

	err := f.executor.Run(context.Background(), ac, automation.Action{
		Type: automation.ActionAddNote, Params: map[string]any{"content": "Moved to {{stage}}", "pinned": true},
	})

	require.NoError(t, err)
	require.Len(t, f.notes.requests, 1)
	assert.Equal(t, "opportunity", f.notes.requests[0].EntityType)
	assert.Equal(t, *ac.EntityID, f.notes.requests[0].EntityID)
	assert.Equal(t, "Moved to negotiation", f.notes.requests[0].Content)
	assert.True(t, f.notes.requests[0].IsPinned)
}

func TestActionExecutor_AddNoteToActivityIsRejected(t *testing.T) {
	f := newActionFixture()
	ac := opportunityContext()
	ac.EntityType = automation.EntityActivity

	err := f.executor.Run(context.Background(), ac, automation.Action{
		Type: automation.ActionAddNote, Params: map[string]any{"content": "x"},
	})

	assert.Error(t, err)
	assert.Empty(t, f.notes.requests)
}

func TestActionExecutor_LogActivity(t *testing.T) {
	f := newActionFixture()
	ac := opportunityContext()

	err := f.executor.Run(context.Background(), ac, automation.Action{
		Type: automation.ActionLogActivity, Params: map[string]any{"subject": "Stage changed", "duration_minutes": 15},
	})

	require.NoError(t, err)
	require.Len(t, f.activities.requests, 1)
	req := f.activities.requests[0]
	assert.Equal(t, "other", req.Type)
	assert.Equal(t, 15, req.DurationMinutes)
	assert.Equal(t, f.now, *req.OccurredAt)
	assert.Equal(t, ac.EntityID, req.OpportunityID)
}

func TestActionExecutor_Webhook(t *testing.T) {
	var received webhookPayload
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	f := newActionFixture()
	ac := opportunityContext()

	err := f.executor.Run(context.Background(), ac, automation.Action{
		Type:   automation.ActionWebhook,
		Params: map[string]any{"url": server.URL, "headers": map[string]any{"X-Token": "abc"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "abc", headers.Get("X-Token"))
	assert.Equal(t, ac.WorkflowID, received.WorkflowID)
	assert.Equal(t, automation.EntityOpportunity, received.EntityType)
	assert.Equal(t, "negotiation", received.Entity["stage"])
}

func TestActionExecutor_WebhookErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	f := newActionFixture()

	err := f.executor.Run(context.Background(), opportunityContext(), automation.Action{
		Type: automation.ActionWebhook, Params: map[string]any{"url": server.URL},
	})

	assert.EqualError(t, err, "webhook returned status 502")
}

func TestActionExecutor_WebhookTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	f := newActionFixture()
	f.executor.SetWebhookTimeout(0)
	assert.Equal(t, WebhookTimeout, f.executor.client.Timeout)
	f.executor.SetWebhookTimeout(50 * time.Millisecond)

	err := f.executor.Run(context.Background(), opportunityContext(), automation.Action{
		Type: automation.ActionWebhook, Params: map[string]any{"url": server.URL},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook request failed")
}

func TestActionExecutor_UnknownAction(t *testing.T) {
	f := newActionFixture()

	err := f.executor.Run(context.Background(), opportunityContext(), automation.Action{Type: "send_fax"})

	assert.Error(t, err)
}
