package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/automation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testTenantID = uuid.MustParse("0b6f3c1e-5b8a-4d0e-9a53-2f1c7e4d8a90")

type engineFixture struct {
	workflows  *MockWorkflowRepository
	executions *MockExecutionRepository
	runner     *recordingRunner
	events     *recordingPublisher
	engine     *Engine
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		workflows:  new(MockWorkflowRepository),
		executions: new(MockExecutionRepository),
		runner:     &recordingRunner{},
		events:     &recordingPublisher{},
	}
	f.engine = NewEngine(f.workflows, f.executions, NewExpressionEvaluator(), f.runner, zap.NewNop())
	f.engine.SetEventPublisher(f.events)
	return f
}

func (f *engineFixture) expectStored() {
	f.executions.On("Save", mock.Anything, mock.AnythingOfType("*automation.Execution")).Return(nil)
	f.workflows.On("RecordRun", mock.Anything, testTenantID, mock.Anything, mock.Anything).Return(nil)
}

func mustRule(t *testing.T, in RuleInput) automation.Rule {
	t.Helper()
	rule, err := in.rule()
	require.NoError(t, err)
	return rule
}

func newTestWorkflow(t *testing.T, entityType automation.EntityType, trigger automation.Trigger, rules ...automation.Rule) *automation.Workflow {
	t.Helper()
	w, err := automation.NewWorkflow(testTenantID, "Follow up", entityType, trigger, "")
	require.NoError(t, err)
	for _, r := range rules {
		require.NoError(t, w.AddRule(r))
	}
	if len(rules) > 0 {
		require.NoError(t, w.Activate())
	}
	return loaded(w)
}

func note(content string) ActionInput {
	return ActionInput{Type: "add_note", Params: map[string]any{"content": content}}
}

func customerSnapshot(id uuid.UUID) automation.Snapshot {
	return automation.Snapshot{
		"id":         id.String(),
		"name":       "Acme Corp",
		"status":     "active",
		"amount":     "1500.50",
		"employees":  float64(120),
		"tags":       []any{"vip", "b2b"},
		"close_date": "2026-03-01T00:00:00Z",
		"notes":      "",
		"created_at": "2026-01-01T00:00:00Z",
	}
}

func TestEngine_Operators(t *testing.T) {
	tests := []struct {
		name  string
		cond  ConditionInput
		match bool
	}{
		{"eq", ConditionInput{Field: "status", Operator: "eq", Value: "active"}, true},
		{"eq mismatch", ConditionInput{Field: "status", Operator: "eq", Value: "lead"}, false},
		{"ne", ConditionInput{Field: "status", Operator: "ne", Value: "lead"}, true},
		{"gt decimal string", ConditionInput{Field: "amount", Operator: "gt", Value: 1000}, true},
		{"gt not greater", ConditionInput{Field: "amount", Operator: "gt", Value: 2000}, false},
		{"gte equal", ConditionInput{Field: "amount", Operator: "gte", Value: "1500.5"}, true},
		{"lt", ConditionInput{Field: "employees", Operator: "lt", Value: 500}, true},
		{"lte time", ConditionInput{Field: "close_date", Operator: "lte", Value: "2026-03-01T00:00:00Z"}, true},
		{"contains text ignores case", ConditionInput{Field: "name", Operator: "contains", Value: "ACME"}, true},
		{"contains list item", ConditionInput{Field: "tags", Operator: "contains", Value: "VIP"}, true},
		{"not_contains", ConditionInput{Field: "name", Operator: "not_contains", Value: "globex"}, true},
		{"starts_with", ConditionInput{Field: "name", Operator: "starts_with", Value: "acme"}, true},
		{"ends_with", ConditionInput{Field: "name", Operator: "ends_with", Value: "CORP"}, true},
		{"in list", ConditionInput{Field: "status", Operator: "in", Value: []any{"prospect", "active"}}, true},
		{"in comma string", ConditionInput{Field: "status", Operator: "in", Value: "lead, prospect"}, false},
		{"not_in", ConditionInput{Field: "status", Operator: "not_in", Value: []any{"churned"}}, true},
		{"is_empty", ConditionInput{Field: "notes", Operator: "is_empty"}, true},
		{"is_empty missing field", ConditionInput{Field: "website", Operator: "is_empty"}, true},
		{"is_not_empty", ConditionInput{Field: "name", Operator: "is_not_empty"}, true},
		{"changed", ConditionInput{Field: "status", Operator: "changed"}, true},
		{"unchanged field", ConditionInput{Field: "name", Operator: "changed"}, false},
		{"entity prefixed path", ConditionInput{Field: "customer.status", Operator: "eq", Value: "active"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture()
			f.expectStored()
			id := uuid.New()
			current := customerSnapshot(id)
			previous := current.Clone()
			previous["status"] = "lead"

			w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerUpdated,
				mustRule(t, RuleInput{Name: tt.name, Conditions: []ConditionInput{tt.cond}, Actions: []ActionInput{note("hit")}}))

			exec, err := f.engine.Run(context.Background(), w, RunInput{
				EntityID: &id,
				Trigger:  automation.TriggerUpdated,
				Current:  current,
				Previous: previous,
			})

			require.NoError(t, err)
			if tt.match {
				assert.Equal(t, automation.ExecutionSucceeded, exec.Status)
				assert.Equal(t, []automation.ActionType{automation.ActionAddNote}, f.runner.actions)
			} else {
				assert.Equal(t, automation.ExecutionNoMatch, exec.Status)
				assert.Empty(t, f.runner.actions)
			}
		})
	}
}

func TestEngine_MatchTypes(t *testing.T) {
	conditions := []ConditionInput{
		{Field: "status", Operator: "eq", Value: "active"},
		{Field: "employees", Operator: "gt", Value: 1000},
	}

	for _, tc := range []struct {
		matchType string
		want      automation.ExecutionStatus
	}{
		{"all", automation.ExecutionNoMatch},
		{"any", automation.ExecutionSucceeded},
	} {
		t.Run(tc.matchType, func(t *testing.T) {
			f := newEngineFixture()
			f.expectStored()
			id := uuid.New()
			w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerCreated,
				mustRule(t, RuleInput{MatchType: tc.matchType, Conditions: conditions, Actions: []ActionInput{note("x")}}))

			exec, err := f.engine.Run(context.Background(), w, RunInput{EntityID: &id, Trigger: automation.TriggerCreated, Current: customerSnapshot(id)})

			require.NoError(t, err)
			assert.Equal(t, tc.want, exec.Status)
		})
	}
}

func TestEngine_RuleWithoutConditionsMatches(t *testing.T) {
	f := newEngineFixture()
	f.expectStored()
	id := uuid.New()
	w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerCreated,
		mustRule(t, RuleInput{Actions: []ActionInput{note("welcome")}}))

	exec, err := f.engine.Run(context.Background(), w, RunInput{EntityID: &id, Trigger: automation.TriggerCreated, Current: customerSnapshot(id)})

	require.NoError(t, err)
	assert.Equal(t, automation.ExecutionSucceeded, exec.Status)
	assert.Equal(t, 1, exec.ActionsExecuted)
}

func TestEngine_ExpressionIsAndedWithConditions(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		want       automation.ExecutionStatus
	}{
		{"top level fields", `employees > 100 && trigger == "updated"`, automation.ExecutionSucceeded},
		{"entity and previous", `entity.status == "active" && previous.status == "lead"`, automation.ExecutionSucceeded},
		{"entity type alias", `customer.name startsWith "Acme"`, automation.ExecutionSucceeded},
		{"date helper", `daysSince(created_at) > 30`, automation.ExecutionSucceeded},
		{"false expression", `employees > 500`, automation.ExecutionNoMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture()
			f.expectStored()
			f.engine.now = func() time.Time { return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) }
			f.engine.evaluator.now = f.engine.now
			id := uuid.New()
			current := customerSnapshot(id)
			previous := current.Clone()
			previous["status"] = "lead"

			w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerUpdated, mustRule(t, RuleInput{
				Conditions: []ConditionInput{{Field: "status", Operator: "eq", Value: "active"}},
				Expression: tt.expression,
				Actions:    []ActionInput{note("x")},
			}))

			exec, err := f.engine.Run(context.Background(), w, RunInput{
				EntityID: &id,
				Trigger:  automation.TriggerUpdated,
				Current:  current,
				Previous: previous,
			})

			require.NoError(t, err)
			assert.Equal(t, tt.want, exec.Status)
		})
	}
}

func TestEngine_ExpressionSkippedWhenConditionsFail(t *testing.T) {
	f := newEngineFixture()
	f.expectStored()
	id := uuid.New()
	w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerCreated, mustRule(t, RuleInput{
		Conditions: []ConditionInput{{Field: "status", Operator: "eq", Value: "churned"}},
		Expression: `true`,
		Actions:    []ActionInput{note("x")},
	}))

	exec, err := f.engine.Run(context.Background(), w, RunInput{EntityID: &id, Trigger: automation.TriggerCreated, Current: customerSnapshot(id)})

	require.NoError(t, err)
	assert.Equal(t, automation.ExecutionNoMatch, exec.Status)
}

func TestEngine_ExpressionErrorFailsRun(t *testing.T) {
	f := newEngineFixture()
	f.expectStored()
	id := uuid.New()
	w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerCreated, mustRule(t, RuleInput{
		Name:       "broken",
		Expression: `name`,
		Actions:    []ActionInput{note("x")},
	}))

	exec, err := f.engine.Run(context.Background(), w, RunInput{EntityID: &id, Trigger: automation.TriggerCreated, Current: customerSnapshot(id)})

	require.NoError(t, err)
	assert.Equal(t, automation.ExecutionFailed, exec.Status)
	assert.Contains(t, exec.Error, `rule "broken"`)
	assert.Empty(t, f.runner.actions)
}

func TestEngine_RulesRunInOrderAndStopOnMatch(t *testing.T) {
	f := newEngineFixture()
	f.expectStored()
	id := uuid.New()
	late := mustRule(t, RuleInput{Name: "late", Order: 5, Actions: []ActionInput{{Type: "webhook", Params: map[string]any{"url": "https://example.com/hook"}}}})
	first := mustRule(t, RuleInput{Name: "first", Order: 1, Actions: []ActionInput{note("first")}})
	stopper := mustRule(t, RuleInput{Name: "stopper", Order: 2, StopOnMatch: true, Actions: []ActionInput{
		{Type: "create_task", Params: map[string]any{"title": "Call"}},
	}})
	w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerCreated, late, stopper, first)

	exec, err := f.engine.Run(context.Background(), w, RunInput{EntityID: &id, Trigger: automation.TriggerCreated, Current: customerSnapshot(id)})

	require.NoError(t, err)
	assert.Equal(t, []automation.ActionType{automation.ActionAddNote, automation.ActionCreateTask}, f.runner.actions)
	assert.Equal(t, []uuid.UUID{first.ID, stopper.ID}, exec.MatchedRules)
	assert.Equal(t, 2, exec.ActionsExecuted)
}

func TestEngine_DryRunExecutesNothing(t *testing.T) {
	f := newEngineFixture()
	id := uuid.New()
	w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerCreated,
		mustRule(t, RuleInput{Actions: []ActionInput{note("x"), {Type: "set_status", Params: map[string]any{"status": "active"}}}}))

	exec, err := f.engine.Run(context.Background(), w, RunInput{EntityID: &id, Trigger: automation.TriggerCreated, Current: customerSnapshot(id), DryRun: true})

	require.NoError(t, err)
	assert.True(t, exec.DryRun)
	assert.Equal(t, automation.ExecutionSucceeded, exec.Status)
	assert.Zero(t, exec.ActionsExecuted)
	require.Len(t, exec.Results, 2)
	for _, r := range exec.Results {
		assert.True(t, r.Skipped)
	}
	assert.Empty(t, f.runner.actions)
	assert.Empty(t, f.events.events)
	f.executions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.workflows.AssertNotCalled(t, "RecordRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_DryRunPersistStoresOnlyTheRecord(t *testing.T) {
	f := newEngineFixture()
	f.executions.On("Save", mock.Anything, mock.MatchedBy(func(e *automation.Execution) bool { return e.DryRun })).Return(nil)
	id := uuid.New()
	w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerCreated, mustRule(t, RuleInput{Actions: []ActionInput{note("x")}}))

	_, err := f.engine.Run(context.Background(), w, RunInput{
		EntityID: &id, Trigger: automation.TriggerCreated, Current: customerSnapshot(id), DryRun: true, Persist: true,
	})

	require.NoError(t, err)
	f.executions.AssertNumberOfCalls(t, "Save", 1)
	f.workflows.AssertNotCalled(t, "RecordRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.events.events)
}

func TestEngine_ActionFailureIsRecorded(t *testing.T) {
	f := newEngineFixture()
	f.expectStored()
	f.runner.failOn = automation.ActionCreateTask
	id := uuid.New()
	w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerCreated, mustRule(t, RuleInput{Actions: []ActionInput{
		{Type: "create_task", Params: map[string]any{"title": "Call"}},
		note("still runs"),
	}}))

	exec, err := f.engine.Run(context.Background(), w, RunInput{EntityID: &id, Trigger: automation.TriggerCreated, Current: customerSnapshot(id)})

	require.NoError(t, err)
	assert.Equal(t, automation.ExecutionFailed, exec.Status)
	assert.Equal(t, 1, exec.ActionsExecuted)
	assert.Equal(t, []automation.ActionType{automation.ActionCreateTask, automation.ActionAddNote}, f.runner.actions)
	assert.False(t, exec.Results[0].Success)
	assert.Contains(t, exec.Results[0].Error, "boom")
	assert.Equal(t, []string{automation.EventTypeWorkflowExecuted}, f.events.types())
}

func TestEngine_StoresRunAndPublishes(t *testing.T) {
	f := newEngineFixture()
	id := uuid.New()
	w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerCreated, mustRule(t, RuleInput{Actions: []ActionInput{note("x")}}))

	f.executions.On("Save", mock.Anything, mock.MatchedBy(func(e *automation.Execution) bool {
		return e.WorkflowID == w.ID && *e.EntityID == id && e.Snapshot.ID() == id.String()
	})).Return(nil)
	f.workflows.On("RecordRun", mock.Anything, testTenantID, w.ID, mock.AnythingOfType("time.Time")).Return(errors.New("db down"))

	exec, err := f.engine.Run(context.Background(), w, RunInput{EntityID: &id, Trigger: automation.TriggerCreated, Current: customerSnapshot(id)})

	require.NoError(t, err, "run stats are best effort")
	assert.Equal(t, automation.ExecutionSucceeded, exec.Status)
	require.Len(t, f.events.events, 1)
	executed := f.events.events[0].(*automation.WorkflowExecutedEvent)
	assert.Equal(t, exec.ID, executed.ExecutionID)
	f.executions.AssertExpectations(t)
	f.workflows.AssertExpectations(t)
}

func TestEngine_SaveFailureIsReturned(t *testing.T) {
	f := newEngineFixture()
	f.executions.On("Save", mock.Anything, mock.Anything).Return(errors.New("db down"))
	id := uuid.New()
	w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerCreated, mustRule(t, RuleInput{Actions: []ActionInput{note("x")}}))

	_, err := f.engine.Run(context.Background(), w, RunInput{EntityID: &id, Trigger: automation.TriggerCreated, Current: customerSnapshot(id)})

	assert.EqualError(t, err, "db down")
	assert.Empty(t, f.events.events)
}

func TestEngine_RecursionGuard(t *testing.T) {
	f := newEngineFixture()
	f.expectStored()
	id := uuid.New()
	w := newTestWorkflow(t, automation.EntityCustomer, automation.TriggerUpdated, mustRule(t, RuleInput{Actions: []ActionInput{note("x")}}))
	in := RunInput{EntityID: &id, Trigger: automation.TriggerUpdated, Current: customerSnapshot(id)}

	ctx := context.Background()
	for depth := 0; depth < MaxDepth; depth++ {
		_, err := f.engine.Run(ctx, w, in)
		require.NoError(t, err)
		ctx = nested(ctx)
	}
	_, err := f.engine.Run(ctx, w, in)

	assert.True(t, errors.Is(err, ErrRecursionLimit))
	assert.Equal(t, []int{1, 2, 3}, f.runner.depths)
}
