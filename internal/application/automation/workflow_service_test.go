package automation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/automation"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type serviceFixture struct {
	*engineFixture
	gateway *fakeGateway
	service *WorkflowService
}

func newServiceFixture(snaps ...automation.Snapshot) *serviceFixture {
	f := &serviceFixture{engineFixture: newEngineFixture(), gateway: newFakeGateway(snaps...)}
	f.service = NewWorkflowService(f.workflows, f.executions, Gateways{automation.EntityCustomer: f.gateway},
		f.engine, NewExpressionEvaluator(), zap.NewNop())
	f.service.SetEventPublisher(f.events)
	return f
}

func TestWorkflowService_Create(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	f.workflows.On("Save", ctx, mock.AnythingOfType("*automation.Workflow")).Return(nil)

	result, err := f.service.Create(ctx, testTenantID, CreateWorkflowRequest{
		Name:       "Welcome new leads",
		EntityType: "customer",
		Trigger:    "created",
		Priority:   5,
		Activate:   true,
		Rules: []RuleInput{
			{Name: "second", Order: 2, Actions: []ActionInput{note("b")}},
			{Name: "first", Order: 1, MatchType: "any", Conditions: []ConditionInput{{Field: "status", Operator: "eq", Value: "lead"}},
				Actions: []ActionInput{note("a")}},
		},
	})

	require.NoError(t, err)
	assert.True(t, result.IsActive)
	assert.Equal(t, 5, result.Priority)
	require.Len(t, result.Rules, 2)
	assert.Equal(t, "first", result.Rules[0].Name)
	assert.Equal(t, "any", result.Rules[0].MatchType)
	assert.Equal(t, "all", result.Rules[1].MatchType)
	assert.Equal(t, []string{automation.EventTypeWorkflowCreated, automation.EventTypeWorkflowStatusChanged}, f.events.types())
}

func TestWorkflowService_Create_Validation(t *testing.T) {
	tests := []struct {
		name     string
		req      CreateWorkflowRequest
		wantCode string
	}{
		{
			name:     "scheduled without cron",
			req:      CreateWorkflowRequest{Name: "Nightly", EntityType: "task", Trigger: "scheduled"},
			wantCode: "INVALID_SCHEDULE",
		},
		{
			name:     "bad cron",
			req:      CreateWorkflowRequest{Name: "Nightly", EntityType: "task", Trigger: "scheduled", Schedule: "every night"},
			wantCode: "INVALID_SCHEDULE",
		},
		{
			name:     "activate without rules",
			req:      CreateWorkflowRequest{Name: "Empty", EntityType: "task", Trigger: "created", Activate: true},
			wantCode: "NO_RULES",
		},
		{
			name: "bad expression",
			req: CreateWorkflowRequest{Name: "Broken", EntityType: "task", Trigger: "created",
				Rules: []RuleInput{{Expression: "status ==", Actions: []ActionInput{note("x")}}}},
			wantCode: "INVALID_EXPRESSION",
		},
		{
			name: "action without required param",
			req: CreateWorkflowRequest{Name: "Broken", EntityType: "task", Trigger: "created",
				Rules: []RuleInput{{Actions: []ActionInput{{Type: "set_status"}}}}},
			wantCode: "INVALID_ACTION",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture()

			_, err := f.service.Create(context.Background(), testTenantID, tt.req)

			var domainErr *shared.DomainError
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, tt.wantCode, domainErr.Code)
			f.workflows.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestWorkflowService_RuleManagement(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerUpdated)
	f.workflows.On("FindByIDForTenant", ctx, testTenantID, w.ID).Return(w, nil)
	f.workflows.On("SaveWithLock", ctx, w).Return(nil)

	added, err := f.service.AddRule(ctx, testTenantID, w.ID, RuleInput{Name: "vip", Actions: []ActionInput{note("x")}})
	require.NoError(t, err)
	require.Len(t, added.Rules, 1)
	ruleID := added.Rules[0].ID

	updated, err := f.service.UpdateRule(ctx, testTenantID, w.ID, ruleID, RuleInput{Name: "vip v2", StopOnMatch: true, Actions: []ActionInput{note("y")}})
	require.NoError(t, err)
	assert.Equal(t, ruleID, updated.Rules[0].ID)
	assert.Equal(t, "vip v2", updated.Rules[0].Name)
	assert.True(t, updated.Rules[0].StopOnMatch)

	activated, err := f.service.Activate(ctx, testTenantID, w.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)

	_, err = f.service.DeleteRule(ctx, testTenantID, w.ID, ruleID)
	assert.True(t, errors.Is(err, shared.ErrInvalidState), "last rule of an active workflow stays")

	_, err = f.service.DeleteRule(ctx, testTenantID, w.ID, uuid.New())
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	f.workflows.AssertNumberOfCalls(t, "SaveWithLock", 3)
}

func TestWorkflowService_Deactivate_AlreadyInactive(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerUpdated)
	f.workflows.On("FindByIDForTenant", ctx, testTenantID, w.ID).Return(w, nil)

	_, err := f.service.Deactivate(ctx, testTenantID, w.ID)

	assert.True(t, errors.Is(err, shared.ErrInvalidState))
	f.workflows.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestWorkflowService_List(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	active := true
	matches := mock.MatchedBy(func(filter shared.Filter) bool {
		return filter.OrderBy == "priority" && filter.OrderDir == "asc" &&
			filter.Filters["entity_type"] == "quote" && filter.Filters["is_active"] == true
	})
	f.workflows.On("FindAllForTenant", ctx, testTenantID, matches).Return([]automation.Workflow{}, nil)
	f.workflows.On("CountForTenant", ctx, testTenantID, matches).Return(int64(0), nil)

	result, total, err := f.service.List(ctx, testTenantID, WorkflowListFilter{EntityType: "quote", IsActive: &active})

	require.NoError(t, err)
	assert.Empty(t, result)
	assert.Zero(t, total)
	f.workflows.AssertExpectations(t)
}

func TestWorkflowService_Delete(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerUpdated)
	f.workflows.On("FindByIDForTenant", ctx, testTenantID, w.ID).Return(w, nil)
	f.workflows.On("DeleteForTenant", ctx, testTenantID, w.ID).Return(nil)

	require.NoError(t, f.service.Delete(ctx, testTenantID, w.ID))

	assert.Equal(t, []string{automation.EventTypeWorkflowDeleted}, f.events.types())
}

func TestWorkflowService_Test_WithProvidedSnapshot(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerStatusChanged, mustRule(t, RuleInput{
		Conditions: []ConditionInput{{Field: "status", Operator: "changed"}},
		Actions:    []ActionInput{{Type: "set_status", Params: map[string]any{"status": "active"}}},
	}))
	f.workflows.On("FindByIDForTenant", ctx, testTenantID, w.ID).Return(w, nil)

	result, err := f.service.Test(ctx, testTenantID, w.ID, TestWorkflowRequest{
		Snapshot: map[string]any{"id": uuid.New().String(), "status": "prospect"},
		Previous: map[string]any{"status": "lead"},
	})

	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, "succeeded", result.Status)
	assert.Equal(t, "status_changed", result.Trigger)
	assert.NotNil(t, result.EntityID)
	assert.Len(t, result.MatchedRules, 1)
	assert.Empty(t, f.runner.actions)
	assert.Empty(t, f.gateway.statuses)
	f.executions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestWorkflowService_Test_LoadsEntityAndPersists(t *testing.T) {
	id := uuid.New()
	f := newServiceFixture(automation.Snapshot{"id": id.String(), "status": "lead"})
	ctx := context.Background()
	w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerCreated, mustRule(t, RuleInput{
		Conditions: []ConditionInput{{Field: "status", Operator: "eq", Value: "active"}},
		Actions:    []ActionInput{note("x")},
	}))
	f.workflows.On("FindByIDForTenant", ctx, testTenantID, w.ID).Return(w, nil)
	f.executions.On("Save", ctx, mock.AnythingOfType("*automation.Execution")).Return(nil)

	result, err := f.service.Test(ctx, testTenantID, w.ID, TestWorkflowRequest{EntityID: &id, Persist: true})

	require.NoError(t, err)
	assert.Equal(t, "no_match", result.Status)
	assert.Equal(t, id, *result.EntityID)
	f.executions.AssertNumberOfCalls(t, "Save", 1)
}

func TestWorkflowService_Test_NeedsSnapshotOrEntity(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerCreated)
	f.workflows.On("FindByIDForTenant", ctx, testTenantID, w.ID).Return(w, nil)

	_, err := f.service.Test(ctx, testTenantID, w.ID, TestWorkflowRequest{})

	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "MISSING_SNAPSHOT", domainErr.Code)
}

func TestWorkflowService_Execute(t *testing.T) {
	id := uuid.New()
	f := newServiceFixture(automation.Snapshot{"id": id.String(), "status": "active"})
	f.expectStored()
	ctx := context.Background()
	w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerUpdated, mustRule(t, RuleInput{Actions: []ActionInput{note("x")}}))
	f.workflows.On("FindByIDForTenant", ctx, testTenantID, w.ID).Return(w, nil)

	result, err := f.service.Execute(ctx, testTenantID, w.ID, ExecuteWorkflowRequest{EntityID: id})

	require.NoError(t, err)
	assert.Equal(t, "manual", result.Trigger)
	assert.Equal(t, "succeeded", result.Status)
	assert.Equal(t, 1, result.ActionsExecuted)
	assert.Equal(t, []automation.ActionType{automation.ActionAddNote}, f.runner.actions)
}

func TestWorkflowService_Execute_UnknownEntity(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerUpdated, mustRule(t, RuleInput{Actions: []ActionInput{note("x")}}))
	f.workflows.On("FindByIDForTenant", ctx, testTenantID, w.ID).Return(w, nil)

	_, err := f.service.Execute(ctx, testTenantID, w.ID, ExecuteWorkflowRequest{EntityID: uuid.New()})

	assert.True(t, errors.Is(err, shared.ErrNotFound))
	assert.Empty(t, f.runner.actions)
}

func TestWorkflowService_RunScheduled(t *testing.T) {
	f := newServiceFixture()
	f.expectStored()
	ctx := context.Background()

	full := make([]automation.Snapshot, scheduledBatchSize)
	for i := range full {
		full[i] = automation.Snapshot{"id": uuid.New().String(), "status": "active"}
	}
	f.gateway.pages = [][]automation.Snapshot{full, {{"id": uuid.New().String(), "status": "lead"}}}

	w, err := automation.NewWorkflow(testTenantID, "Nightly review", automation.EntityCustomer, automation.TriggerScheduled, "@daily")
	require.NoError(t, err)
	require.NoError(t, w.AddRule(mustRule(t, RuleInput{
		Conditions: []ConditionInput{{Field: "status", Operator: "eq", Value: "lead"}},
		Actions:    []ActionInput{note("x")},
	})))
	require.NoError(t, w.Activate())
	w = loaded(w)
	f.workflows.On("FindByIDForTenant", ctx, testTenantID, w.ID).Return(w, nil)

	runs, err := f.service.RunScheduled(ctx, testTenantID, w.ID)

	require.NoError(t, err)
	assert.Equal(t, scheduledBatchSize+1, runs)
	assert.Len(t, f.runner.actions, 1)
	f.executions.AssertNumberOfCalls(t, "Save", scheduledBatchSize+1)
}

func TestWorkflowService_RunScheduled_SkipsInactive(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	w, err := automation.NewWorkflow(testTenantID, "Nightly review", automation.EntityCustomer, automation.TriggerScheduled, "0 2 * * *")
	require.NoError(t, err)
	f.workflows.On("FindByIDForTenant", ctx, testTenantID, w.ID).Return(loaded(w), nil)

	runs, err := f.service.RunScheduled(ctx, testTenantID, w.ID)

	require.NoError(t, err)
	assert.Zero(t, runs)
}

func TestWorkflowService_ListExecutions(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerUpdated)
	exec := automation.NewExecution(w, nil, automation.TriggerManual, automation.Snapshot{}, false)
	exec.Finish(nil)

	matches := mock.MatchedBy(func(filter shared.Filter) bool {
		return filter.OrderBy == "started_at" && filter.OrderDir == "desc" &&
			filter.Filters["workflow_id"] == w.ID.String() && filter.Filters["status"] == "no_match"
	})
	f.workflows.On("FindByIDForTenant", ctx, testTenantID, w.ID).Return(w, nil)
	f.executions.On("FindAllForTenant", ctx, testTenantID, matches).Return([]automation.Execution{*exec}, nil)
	f.executions.On("CountForTenant", ctx, testTenantID, matches).Return(int64(1), nil)

	result, total, err := f.service.ListExecutions(ctx, testTenantID, ExecutionListFilter{WorkflowID: w.ID.String(), Status: "no_match"})

	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, result, 1)
	assert.Equal(t, "no_match", result[0].Status)
}

func TestWorkflowService_ListExecutions_ForeignWorkflow(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	id := uuid.New()
	f.workflows.On("FindByIDForTenant", ctx, testTenantID, id).Return(nil, shared.ErrNotFound)

	_, _, err := f.service.ListExecutions(ctx, testTenantID, ExecutionListFilter{WorkflowID: id.String()})

	assert.True(t, errors.Is(err, shared.ErrNotFound))
	f.executions.AssertNotCalled(t, "FindAllForTenant", mock.Anything, mock.Anything, mock.Anything)
}
