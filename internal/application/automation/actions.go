package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	crmapp "github.com/opencrm/backend/internal/application/crm"
	"github.com/opencrm/backend/internal/domain/automation"
	"github.com/opencrm/backend/internal/domain/shared"
)

// WebhookTimeout bounds a webhook action
const WebhookTimeout = 5 * time.Second

// TaskCreator creates follow-up tasks
type TaskCreator interface {
	Create(ctx context.Context, tenantID uuid.UUID, req crmapp.CreateTaskRequest) (*crmapp.TaskResponse, error)
}

// NoteCreator attaches notes to records
type NoteCreator interface {
	Create(ctx context.Context, tenantID uuid.UUID, req crmapp.CreateNoteRequest) (*crmapp.NoteResponse, error)
}

// ActivityLogger records activities
type ActivityLogger interface {
	Create(ctx context.Context, tenantID uuid.UUID, req crmapp.CreateActivityRequest) (*crmapp.ActivityResponse, error)
}

// ActionContext is what an action knows about the run that triggered it
type ActionContext struct {
	TenantID   uuid.UUID
	WorkflowID uuid.UUID
	EntityType automation.EntityType
	EntityID   *uuid.UUID
	Trigger    automation.Trigger
	Snapshot   automation.Snapshot
	Previous   automation.Snapshot
}

// ActionRunner runs a single action
type ActionRunner interface {
	Run(ctx context.Context, ac ActionContext, action automation.Action) error
}

// ActionExecutor dispatches actions to the CRM services and to webhooks
type ActionExecutor struct {
	gateways   Gateways
	tasks      TaskCreator
	notes      NoteCreator
	activities ActivityLogger
	client     *http.Client
	now        func() time.Time
}

// NewActionExecutor creates an action executor
func NewActionExecutor(gateways Gateways, tasks TaskCreator, notes NoteCreator, activities ActivityLogger) *ActionExecutor {
	return &ActionExecutor{
		gateways:   gateways,
		tasks:      tasks,
		notes:      notes,
		activities: activities,
		client:     &http.Client{Timeout: WebhookTimeout},
		now:        time.Now,
	}
}

// SetWebhookTimeout overrides WebhookTimeout. Non-positive values are ignored.
func (x *ActionExecutor) SetWebhookTimeout(d time.Duration) {
	if d > 0 {
		x.client.Timeout = d
	}
}

// Run executes one action
func (x *ActionExecutor) Run(ctx context.Context, ac ActionContext, action automation.Action) error {
	switch action.Type {
	case automation.ActionUpdateField:
		return x.updateField(ctx, ac, action)
	case automation.ActionSetStatus:
		return x.setStatus(ctx, ac, action)
	case automation.ActionCreateTask:
		return x.createTask(ctx, ac, action)
	case automation.ActionAddNote:
		return x.addNote(ctx, ac, action)
	case automation.ActionLogActivity:
		return x.logActivity(ctx, ac, action)
	case automation.ActionWebhook:
		return x.webhook(ctx, ac, action)
	}
	return shared.NewDomainError("INVALID_ACTION", "Unknown action type '"+string(action.Type)+"'")
}

func (x *ActionExecutor) updateField(ctx context.Context, ac ActionContext, action automation.Action) error {
	id, err := requireEntity(ac)
	if err != nil {
		return err
	}
	gw, err := x.gateways.For(ac.EntityType)
	if err != nil {
		return err
	}
	return gw.UpdateField(ctx, ac.TenantID, id, action.StringParam("field"), action.Params["value"])
}

func (x *ActionExecutor) setStatus(ctx context.Context, ac ActionContext, action automation.Action) error {
	id, err := requireEntity(ac)
	if err != nil {
		return err
	}
	gw, err := x.gateways.For(ac.EntityType)
	if err != nil {
		return err
	}
	return gw.SetStatus(ctx, ac.TenantID, id, action.StringParam("status"))
}

func (x *ActionExecutor) createTask(ctx context.Context, ac ActionContext, action automation.Action) error {
	links := linksOf(ac)
	req := crmapp.CreateTaskRequest{
		Title:         render(action.StringParam("title"), ac),
		Description:   render(action.StringParam("description"), ac),
		Priority:      action.StringParam("priority"),
		CustomerID:    links.customer,
		ContactID:     links.contact,
		OpportunityID: links.opportunity,
	}
	if days := action.IntParam("due_in_days", -1); days >= 0 {
		due := x.now().AddDate(0, 0, days)
		req.DueDate = &due
	}
	if raw := action.StringParam("assigned_to"); raw != "" {
		assignee, err := uuid.Parse(raw)
		if err != nil {
			return shared.NewDomainError("INVALID_ACTION", "assigned_to must be a UUID")
		}
		req.AssignedTo = &assignee
	}
	_, err := x.tasks.Create(ctx, ac.TenantID, req)
	return err
}

func (x *ActionExecutor) addNote(ctx context.Context, ac ActionContext, action automation.Action) error {
	id, err := requireEntity(ac)
	if err != nil {
		return err
	}
	if ac.EntityType == automation.EntityActivity {
		return shared.NewDomainError("INVALID_ACTION", "Notes cannot be attached to activities")
	}
	pinned, _ := action.Params["pinned"].(bool)
	_, err = x.notes.Create(ctx, ac.TenantID, crmapp.CreateNoteRequest{
		EntityType: string(ac.EntityType),
		EntityID:   id,
		Title:      render(action.StringParam("title"), ac),
		Content:    render(action.StringParam("content"), ac),
		IsPinned:   pinned,
	})
	return err
}

func (x *ActionExecutor) logActivity(ctx context.Context, ac ActionContext, action automation.Action) error {
	links := linksOf(ac)
	activityType := action.StringParam("activity_type")
	if activityType == "" {
		activityType = "other"
	}
	occurredAt := x.now()
	_, err := x.activities.Create(ctx, ac.TenantID, crmapp.CreateActivityRequest{
		Type:            activityType,
		Subject:         render(action.StringParam("subject"), ac),
		Description:     render(action.StringParam("description"), ac),
		CustomerID:      links.customer,
		ContactID:       links.contact,
		OpportunityID:   links.opportunity,
		OccurredAt:      &occurredAt,
		DurationMinutes: action.IntParam("duration_minutes", 0),
		Outcome:         action.StringParam("outcome"),
	})
	return err
}

// webhookPayload is the JSON body posted by a webhook action
type webhookPayload struct {
	WorkflowID uuid.UUID             `json:"workflow_id"`
	EntityType automation.EntityType `json:"entity_type"`
	EntityID   *uuid.UUID            `json:"entity_id,omitempty"`
	Trigger    automation.Trigger    `json:"trigger"`
	Entity     automation.Snapshot   `json:"entity"`
	Previous   automation.Snapshot   `json:"previous,omitempty"`
	SentAt     time.Time             `json:"sent_at"`
}

func (x *ActionExecutor) webhook(ctx context.Context, ac ActionContext, action automation.Action) error {
	body, err := json.Marshal(webhookPayload{
		WorkflowID: ac.WorkflowID,
		EntityType: ac.EntityType,
		EntityID:   ac.EntityID,
		Trigger:    ac.Trigger,
		Entity:     ac.Snapshot,
		Previous:   ac.Previous,
		SentAt:     x.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action.StringParam("url"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "opencrm-workflows/1")
	if headers, ok := action.Params["headers"].(map[string]any); ok {
		for name, value := range headers {
			req.Header.Set(name, fmt.Sprint(value))
		}
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func requireEntity(ac ActionContext) (uuid.UUID, error) {
	if ac.EntityID == nil {
		return uuid.Nil, shared.NewDomainError("NO_ENTITY", "Action requires a target entity")
	}
	return *ac.EntityID, nil
}

type entityLinks struct {
	customer    *uuid.UUID
	contact     *uuid.UUID
	opportunity *uuid.UUID
}

// linksOf derives the customer, contact and opportunity a new record should reference
func linksOf(ac ActionContext) entityLinks {
	links := entityLinks{
		customer:    snapshotUUID(ac.Snapshot, "customer_id"),
		contact:     snapshotUUID(ac.Snapshot, "contact_id"),
		opportunity: snapshotUUID(ac.Snapshot, "opportunity_id"),
	}
	switch ac.EntityType {
	case automation.EntityCustomer:
		links.customer = ac.EntityID
	case automation.EntityContact:
		links.contact = ac.EntityID
	case automation.EntityOpportunity:
		links.opportunity = ac.EntityID
	}
	return links
}

func snapshotUUID(snap automation.Snapshot, key string) *uuid.UUID {
	raw, ok := snap[key].(string)
	if !ok {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

var placeholder = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)

// render replaces {{path}} placeholders with snapshot values; unknown paths render empty
func render(text string, ac ActionContext) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		path := placeholder.FindStringSubmatch(m)[1]
		v, ok := ac.Snapshot.Lookup(string(ac.EntityType), path)
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}
