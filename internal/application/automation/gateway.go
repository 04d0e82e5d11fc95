package automation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/application/common"
	crmapp "github.com/opencrm/backend/internal/application/crm"
	marketingapp "github.com/opencrm/backend/internal/application/marketing"
	"github.com/opencrm/backend/internal/domain/automation"
	"github.com/opencrm/backend/internal/domain/shared"
)

// EntityGateway gives the workflow engine uniform access to one entity type.
// Writes go through the owning application service so its rules and events apply.
type EntityGateway interface {
	Snapshot(ctx context.Context, tenantID, id uuid.UUID) (automation.Snapshot, error)
	List(ctx context.Context, tenantID uuid.UUID, skip, take int) ([]automation.Snapshot, int64, error)
	UpdateField(ctx context.Context, tenantID, id uuid.UUID, field string, value any) error
	SetStatus(ctx context.Context, tenantID, id uuid.UUID, status string) error
}

// Gateways maps each entity type to its gateway
type Gateways map[automation.EntityType]EntityGateway

// For returns the gateway of an entity type
func (g Gateways) For(entityType automation.EntityType) (EntityGateway, error) {
	gw, ok := g[entityType]
	if !ok {
		return nil, shared.NewDomainError("UNSUPPORTED_ENTITY", "No automation support for entity type '"+string(entityType)+"'")
	}
	return gw, nil
}

// CRMServices groups the services the gateways delegate to
type CRMServices struct {
	Customers     *crmapp.CustomerService
	Contacts      *crmapp.ContactService
	Opportunities *crmapp.OpportunityService
	Quotes        *crmapp.QuoteService
	Tasks         *crmapp.TaskService
	Activities    *crmapp.ActivityService
	Campaigns     *marketingapp.CampaignService
}

// NewGateways builds the gateway of every supported entity type
func NewGateways(s CRMServices) Gateways {
	return Gateways{
		automation.EntityCustomer: &serviceGateway[crmapp.CustomerResponse]{
			get: s.Customers.GetByID,
			list: func(ctx context.Context, tenantID uuid.UUID, q common.ListQuery) ([]crmapp.CustomerResponse, int64, error) {
				return s.Customers.List(ctx, tenantID, crmapp.CustomerListFilter{ListQuery: q})
			},
			update: updater(s.Customers.Update),
			fields: fieldSet("name", "company", "email", "phone", "website", "industry", "address", "city",
				"state", "postal_code", "country", "type", "source", "owner_id", "annual_revenue", "notes", "tags"),
			anyStatus: func(ctx context.Context, tenantID, id uuid.UUID, status string) error {
				_, err := s.Customers.ChangeStatus(ctx, tenantID, id, crmapp.ChangeCustomerStatusRequest{Status: status})
				return err
			},
		},
		automation.EntityContact: &serviceGateway[crmapp.ContactResponse]{
			get: s.Contacts.GetByID,
			list: func(ctx context.Context, tenantID uuid.UUID, q common.ListQuery) ([]crmapp.ContactResponse, int64, error) {
				return s.Contacts.List(ctx, tenantID, crmapp.ContactListFilter{ListQuery: q})
			},
			update: updater(s.Contacts.Update),
			fields: fieldSet("first_name", "last_name", "email", "phone", "mobile", "job_title", "department", "notes"),
			statuses: map[string]statusFunc{
				"active":   transition(s.Contacts.Activate),
				"inactive": transition(s.Contacts.Deactivate),
			},
		},
		automation.EntityOpportunity: &serviceGateway[crmapp.OpportunityResponse]{
			get: s.Opportunities.GetByID,
			list: func(ctx context.Context, tenantID uuid.UUID, q common.ListQuery) ([]crmapp.OpportunityResponse, int64, error) {
				return s.Opportunities.List(ctx, tenantID, crmapp.OpportunityListFilter{ListQuery: q})
			},
			update: updater(s.Opportunities.Update),
			fields: fieldSet("name", "description", "amount", "currency", "probability", "expected_close_date", "owner_id"),
			anyStatus: func(ctx context.Context, tenantID, id uuid.UUID, stage string) error {
				_, err := s.Opportunities.MoveStage(ctx, tenantID, id, crmapp.MoveStageRequest{Stage: stage, Reason: automatedReason})
				return err
			},
		},
		automation.EntityQuote: &serviceGateway[crmapp.QuoteResponse]{
			get: s.Quotes.GetByID,
			list: func(ctx context.Context, tenantID uuid.UUID, q common.ListQuery) ([]crmapp.QuoteResponse, int64, error) {
				return s.Quotes.List(ctx, tenantID, crmapp.QuoteListFilter{ListQuery: q})
			},
			update: updater(s.Quotes.Update),
			fields: fieldSet("title", "valid_until", "currency", "tax_rate", "terms", "notes"),
			statuses: map[string]statusFunc{
				"sent":     transition(s.Quotes.Send),
				"accepted": transition(s.Quotes.Accept),
				"expired":  transition(s.Quotes.Expire),
				"rejected": func(ctx context.Context, tenantID, id uuid.UUID) error {
					_, err := s.Quotes.Reject(ctx, tenantID, id, crmapp.RejectQuoteRequest{Reason: automatedReason})
					return err
				},
			},
		},
		automation.EntityTask: &serviceGateway[crmapp.TaskResponse]{
			get: s.Tasks.GetByID,
			list: func(ctx context.Context, tenantID uuid.UUID, q common.ListQuery) ([]crmapp.TaskResponse, int64, error) {
				return s.Tasks.List(ctx, tenantID, crmapp.TaskListFilter{ListQuery: q})
			},
			update: updater(s.Tasks.Update),
			fields: fieldSet("title", "description", "priority", "due_date", "assigned_to"),
			statuses: map[string]statusFunc{
				"pending":     transition(s.Tasks.Reopen),
				"in_progress": transition(s.Tasks.Start),
				"completed":   transition(s.Tasks.Complete),
				"cancelled":   transition(s.Tasks.Cancel),
			},
		},
		automation.EntityActivity: &serviceGateway[crmapp.ActivityResponse]{
			get: s.Activities.GetByID,
			list: func(ctx context.Context, tenantID uuid.UUID, q common.ListQuery) ([]crmapp.ActivityResponse, int64, error) {
				return s.Activities.List(ctx, tenantID, crmapp.ActivityListFilter{ListQuery: q})
			},
			update: updater(s.Activities.Update),
			fields: fieldSet("type", "subject", "description", "duration_minutes", "outcome", "performed_by"),
		},
		automation.EntityCampaign: &serviceGateway[marketingapp.CampaignResponse]{
			get: s.Campaigns.GetByID,
			list: func(ctx context.Context, tenantID uuid.UUID, q common.ListQuery) ([]marketingapp.CampaignResponse, int64, error) {
				return s.Campaigns.List(ctx, tenantID, marketingapp.CampaignListFilter{ListQuery: q})
			},
			update: updater(s.Campaigns.Update),
			fields: fieldSet("name", "description", "budget", "actual_cost", "expected_revenue"),
			statuses: map[string]statusFunc{
				"scheduled": transition(s.Campaigns.Schedule),
				"paused":    transition(s.Campaigns.Pause),
				"running":   transition(s.Campaigns.Resume),
				"completed": transition(s.Campaigns.Complete),
				"cancelled": transition(s.Campaigns.Cancel),
			},
		},
	}
}

// automatedReason is recorded when a workflow loses an opportunity or rejects a quote
const automatedReason = "Set by automation"

type statusFunc func(ctx context.Context, tenantID, id uuid.UUID) error

// serviceGateway adapts one application service. R is its response DTO.
type serviceGateway[R any] struct {
	get       func(ctx context.Context, tenantID, id uuid.UUID) (*R, error)
	list      func(ctx context.Context, tenantID uuid.UUID, q common.ListQuery) ([]R, int64, error)
	update    func(ctx context.Context, tenantID, id uuid.UUID, patch []byte) error
	fields    map[string]struct{}
	statuses  map[string]statusFunc
	anyStatus func(ctx context.Context, tenantID, id uuid.UUID, status string) error
}

func (g *serviceGateway[R]) Snapshot(ctx context.Context, tenantID, id uuid.UUID) (automation.Snapshot, error) {
	resp, err := g.get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return ToSnapshot(resp)
}

func (g *serviceGateway[R]) List(ctx context.Context, tenantID uuid.UUID, skip, take int) ([]automation.Snapshot, int64, error) {
	items, total, err := g.list(ctx, tenantID, common.ListQuery{Skip: skip, Take: take, OrderBy: "created_at", OrderDir: "asc"})
	if err != nil {
		return nil, 0, err
	}
	snapshots := make([]automation.Snapshot, 0, len(items))
	for i := range items {
		snap, err := ToSnapshot(&items[i])
		if err != nil {
			return nil, 0, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, total, nil
}

// UpdateField decodes {field: value} into the service's update request
func (g *serviceGateway[R]) UpdateField(ctx context.Context, tenantID, id uuid.UUID, field string, value any) error {
	if _, ok := g.fields[field]; !ok {
		return shared.NewDomainError("FIELD_NOT_UPDATABLE", "Field '"+field+"' cannot be updated by automation")
	}
	patch, err := json.Marshal(map[string]any{field: value})
	if err != nil {
		return err
	}
	return g.update(ctx, tenantID, id, patch)
}

func (g *serviceGateway[R]) SetStatus(ctx context.Context, tenantID, id uuid.UUID, status string) error {
	if fn, ok := g.statuses[status]; ok {
		return fn(ctx, tenantID, id)
	}
	if g.anyStatus != nil {
		return g.anyStatus(ctx, tenantID, id, status)
	}
	return shared.NewDomainError("UNSUPPORTED_STATUS", "Status '"+status+"' cannot be set by automation")
}

// updater turns a typed Update method into a JSON patch applier
func updater[Req any, Resp any](fn func(context.Context, uuid.UUID, uuid.UUID, Req) (Resp, error)) func(context.Context, uuid.UUID, uuid.UUID, []byte) error {
	return func(ctx context.Context, tenantID, id uuid.UUID, patch []byte) error {
		var req Req
		if err := json.Unmarshal(patch, &req); err != nil {
			return shared.NewDomainError("INVALID_VALUE", fmt.Sprintf("Invalid field value: %v", err))
		}
		_, err := fn(ctx, tenantID, id, req)
		return err
	}
}

func transition[Resp any](fn func(context.Context, uuid.UUID, uuid.UUID) (Resp, error)) statusFunc {
	return func(ctx context.Context, tenantID, id uuid.UUID) error {
		_, err := fn(ctx, tenantID, id)
		return err
	}
}

func fieldSet(fields ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// ToSnapshot converts a response DTO into its JSON-shaped snapshot
func ToSnapshot(v any) (automation.Snapshot, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	var snap automation.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}
