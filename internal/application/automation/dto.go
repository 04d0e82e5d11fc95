package automation

import (
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/application/common"
	"github.com/opencrm/backend/internal/domain/automation"
)

// ConditionInput is one field test of a rule
type ConditionInput struct {
	Field    string `json:"field" binding:"required,max=100"`
	Operator string `json:"operator" binding:"required,oneof=eq ne gt gte lt lte contains not_contains starts_with ends_with in not_in is_empty is_not_empty changed"`
	Value    any    `json:"value"`
}

// ActionInput is one action of a rule
type ActionInput struct {
	Type   string         `json:"type" binding:"required,oneof=update_field set_status create_task add_note log_activity webhook"`
	Params map[string]any `json:"params"`
}

// RuleInput is the request body for adding or replacing a rule
type RuleInput struct {
	Name        string           `json:"name" binding:"max=200"`
	Order       int              `json:"order" binding:"min=0"`
	MatchType   string           `json:"match_type" binding:"omitempty,oneof=all any"`
	Conditions  []ConditionInput `json:"conditions" binding:"omitempty,max=50,dive"`
	Expression  string           `json:"expression" binding:"max=2000"`
	Actions     []ActionInput    `json:"actions" binding:"omitempty,max=20,dive"`
	StopOnMatch bool             `json:"stop_on_match"`
}

func (r RuleInput) rule() (automation.Rule, error) {
	conditions := make([]automation.Condition, 0, len(r.Conditions))
	for _, c := range r.Conditions {
		conditions = append(conditions, automation.Condition{Field: c.Field, Operator: automation.Operator(c.Operator), Value: c.Value})
	}
	actions := make([]automation.Action, 0, len(r.Actions))
	for _, a := range r.Actions {
		actions = append(actions, automation.Action{Type: automation.ActionType(a.Type), Params: a.Params})
	}
	return automation.NewRule(r.Name, r.Order, automation.MatchType(r.MatchType), conditions, r.Expression, actions, r.StopOnMatch)
}

// CreateWorkflowRequest represents a request to create a workflow
type CreateWorkflowRequest struct {
	Name        string      `json:"name" binding:"required,min=1,max=200"`
	Description string      `json:"description" binding:"max=2000"`
	EntityType  string      `json:"entity_type" binding:"required,oneof=customer contact opportunity quote task activity campaign"`
	Trigger     string      `json:"trigger" binding:"required,oneof=created updated status_changed deleted scheduled manual"`
	Schedule    string      `json:"schedule" binding:"omitempty,crm_cron"`
	Priority    int         `json:"priority"`
	Rules       []RuleInput `json:"rules" binding:"omitempty,max=50,dive"`
	Activate    bool        `json:"activate"`
	CreatedBy   *uuid.UUID  `json:"-"`
}

// UpdateWorkflowRequest represents a request to update a workflow
type UpdateWorkflowRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	EntityType  *string `json:"entity_type" binding:"omitempty,oneof=customer contact opportunity quote task activity campaign"`
	Trigger     *string `json:"trigger" binding:"omitempty,oneof=created updated status_changed deleted scheduled manual"`
	Schedule    *string `json:"schedule"`
	Priority    *int    `json:"priority"`
}

func (r UpdateWorkflowRequest) patch() automation.WorkflowPatch {
	p := automation.WorkflowPatch{
		Name:        r.Name,
		Description: r.Description,
		Schedule:    r.Schedule,
		Priority:    r.Priority,
	}
	if r.EntityType != nil {
		et := automation.EntityType(*r.EntityType)
		p.EntityType = &et
	}
	if r.Trigger != nil {
		tr := automation.Trigger(*r.Trigger)
		p.Trigger = &tr
	}
	return p
}

// WorkflowListFilter represents filtering options for the workflow list
type WorkflowListFilter struct {
	common.ListQuery
	EntityType string `form:"entity_type" binding:"omitempty,oneof=customer contact opportunity quote task activity campaign"`
	Trigger    string `form:"trigger" binding:"omitempty,oneof=created updated status_changed deleted scheduled manual"`
	IsActive   *bool  `form:"is_active"`
}

// TestWorkflowRequest runs a workflow without side effects. The snapshot is
// taken from the request or loaded from EntityID.
type TestWorkflowRequest struct {
	EntityID *uuid.UUID     `json:"entity_id"`
	Snapshot map[string]any `json:"snapshot"`
	Previous map[string]any `json:"previous"`
	Trigger  string         `json:"trigger" binding:"omitempty,oneof=created updated status_changed deleted scheduled manual"`
	Persist  bool           `json:"persist"`
}

// ExecuteWorkflowRequest runs a workflow's actions against one entity
type ExecuteWorkflowRequest struct {
	EntityID uuid.UUID `json:"entity_id" binding:"required"`
}

// ExecutionListFilter represents filtering options for execution history
type ExecutionListFilter struct {
	common.ListQuery
	WorkflowID string `form:"workflow_id" binding:"omitempty,uuid"`
	EntityType string `form:"entity_type" binding:"omitempty,oneof=customer contact opportunity quote task activity campaign"`
	EntityID   string `form:"entity_id" binding:"omitempty,uuid"`
	Status     string `form:"status" binding:"omitempty,oneof=succeeded failed no_match"`
	DryRun     *bool  `form:"dry_run"`
}

// RuleResponse represents a rule in API responses
type RuleResponse struct {
	ID          uuid.UUID              `json:"id"`
	Name        string                 `json:"name"`
	Order       int                    `json:"order"`
	MatchType   string                 `json:"match_type"`
	Conditions  []automation.Condition `json:"conditions"`
	Expression  string                 `json:"expression,omitempty"`
	Actions     []automation.Action    `json:"actions"`
	StopOnMatch bool                   `json:"stop_on_match"`
}

// WorkflowResponse represents a workflow in API responses
type WorkflowResponse struct {
	ID          uuid.UUID      `json:"id"`
	TenantID    uuid.UUID      `json:"tenant_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	EntityType  string         `json:"entity_type"`
	Trigger     string         `json:"trigger"`
	Schedule    string         `json:"schedule,omitempty"`
	IsActive    bool           `json:"is_active"`
	Priority    int            `json:"priority"`
	Rules       []RuleResponse `json:"rules"`
	LastRunAt   *time.Time     `json:"last_run_at,omitempty"`
	RunCount    int            `json:"run_count"`
	CreatedBy   *uuid.UUID     `json:"created_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Version     int            `json:"version"`
}

// ToWorkflowResponse converts a workflow to its response
func ToWorkflowResponse(w *automation.Workflow) WorkflowResponse {
	rules := make([]RuleResponse, 0, len(w.Rules))
	for _, r := range w.OrderedRules() {
		rules = append(rules, RuleResponse{
			ID:          r.ID,
			Name:        r.Name,
			Order:       r.Order,
			MatchType:   string(r.MatchType),
			Conditions:  r.Conditions,
			Expression:  r.Expression,
			Actions:     r.Actions,
			StopOnMatch: r.StopOnMatch,
		})
	}
	return WorkflowResponse{
		ID:          w.ID,
		TenantID:    w.TenantID,
		Name:        w.Name,
		Description: w.Description,
		EntityType:  string(w.EntityType),
		Trigger:     string(w.Trigger),
		Schedule:    w.Schedule,
		IsActive:    w.IsActive,
		Priority:    w.Priority,
		Rules:       rules,
		LastRunAt:   w.LastRunAt,
		RunCount:    w.RunCount,
		CreatedBy:   w.CreatedBy,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
		Version:     w.Version,
	}
}

// ToWorkflowResponses converts a list of workflows
func ToWorkflowResponses(workflows []automation.Workflow) []WorkflowResponse {
	out := make([]WorkflowResponse, len(workflows))
	for i := range workflows {
		out[i] = ToWorkflowResponse(&workflows[i])
	}
	return out
}

// ExecutionResponse represents a workflow execution in API responses
type ExecutionResponse struct {
	ID              uuid.UUID                 `json:"id"`
	WorkflowID      uuid.UUID                 `json:"workflow_id"`
	EntityType      string                    `json:"entity_type"`
	EntityID        *uuid.UUID                `json:"entity_id,omitempty"`
	Trigger         string                    `json:"trigger"`
	Status          string                    `json:"status"`
	MatchedRules    []uuid.UUID               `json:"matched_rules"`
	ActionsExecuted int                       `json:"actions_executed"`
	Results         []automation.ActionResult `json:"results"`
	Error           string                    `json:"error,omitempty"`
	Snapshot        map[string]any            `json:"snapshot"`
	DryRun          bool                      `json:"dry_run"`
	StartedAt       time.Time                 `json:"started_at"`
	FinishedAt      time.Time                 `json:"finished_at"`
	DurationMs      int64                     `json:"duration_ms"`
}

// ToExecutionResponse converts an execution to its response
func ToExecutionResponse(e *automation.Execution) ExecutionResponse {
	return ExecutionResponse{
		ID:              e.ID,
		WorkflowID:      e.WorkflowID,
		EntityType:      string(e.EntityType),
		EntityID:        e.EntityID,
		Trigger:         string(e.Trigger),
		Status:          string(e.Status),
		MatchedRules:    e.MatchedRules,
		ActionsExecuted: e.ActionsExecuted,
		Results:         e.Results,
		Error:           e.Error,
		Snapshot:        e.Snapshot,
		DryRun:          e.DryRun,
		StartedAt:       e.StartedAt,
		FinishedAt:      e.FinishedAt,
		DurationMs:      e.DurationMs,
	}
}
