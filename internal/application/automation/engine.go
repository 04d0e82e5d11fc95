package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/automation"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/opencrm/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ErrRecursionLimit is returned when a run would nest deeper than MaxDepth
var ErrRecursionLimit = shared.NewDomainError("RECURSION_LIMIT", "Workflow recursion limit reached")

// RunInput describes one workflow run
type RunInput struct {
	EntityID *uuid.UUID
	Trigger  automation.Trigger
	Current  automation.Snapshot
	Previous automation.Snapshot
	// DryRun evaluates rules without running actions
	DryRun bool
	// Persist stores a dry run's execution record
	Persist bool
}

// Engine evaluates workflow rules and runs the matching actions
type Engine struct {
	publisher
	workflows       automation.WorkflowRepository
	executions      automation.ExecutionRepository
	evaluator       *ExpressionEvaluator
	actions         ActionRunner
	businessMetrics *telemetry.BusinessMetrics
	logger          *zap.Logger
	now             func() time.Time
}

// NewEngine creates a workflow engine
func NewEngine(
	workflows automation.WorkflowRepository,
	executions automation.ExecutionRepository,
	evaluator *ExpressionEvaluator,
	actions ActionRunner,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		workflows:  workflows,
		executions: executions,
		evaluator:  evaluator,
		actions:    actions,
		logger:     logger.Named("workflow_engine"),
		now:        time.Now,
	}
}

// SetBusinessMetrics sets the business metrics collector
func (e *Engine) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	e.businessMetrics = bm
}

// Run evaluates the workflow against a snapshot. Rules run in order and a
// matching rule with stop_on_match ends the run. Action failures are recorded
// on the execution and do not stop the remaining actions.
func (e *Engine) Run(ctx context.Context, w *automation.Workflow, in RunInput) (*automation.Execution, error) {
	if depthFrom(ctx) >= MaxDepth {
		return nil, ErrRecursionLimit
	}

	exec := automation.NewExecution(w, in.EntityID, in.Trigger, in.Current, in.DryRun)
	exec.StartedAt = e.now()
	env := e.env(w.EntityType, in)
	ac := ActionContext{
		TenantID:   w.TenantID,
		WorkflowID: w.ID,
		EntityType: w.EntityType,
		EntityID:   in.EntityID,
		Trigger:    in.Trigger,
		Snapshot:   in.Current,
		Previous:   in.Previous,
	}
	actionCtx := nested(ctx)

	var runErr error
	for _, rule := range w.OrderedRules() {
		matched, err := e.matches(rule, w.EntityType, in, env)
		if err != nil {
			runErr = fmt.Errorf("rule %s: %w", ruleLabel(rule), err)
			break
		}
		if !matched {
			continue
		}
		exec.MatchedRules = append(exec.MatchedRules, rule.ID)

		for _, action := range rule.Actions {
			if in.DryRun {
				exec.AddResult(automation.ActionResult{RuleID: rule.ID, Type: action.Type, Success: true, Skipped: true})
				continue
			}
			result := automation.ActionResult{RuleID: rule.ID, Type: action.Type, Success: true}
			if err := e.actions.Run(actionCtx, ac, action); err != nil {
				result.Success = false
				result.Error = err.Error()
				e.logger.Warn("workflow action failed",
					zap.String("workflow_id", w.ID.String()),
					zap.String("rule_id", rule.ID.String()),
					zap.String("action", string(action.Type)),
					zap.Error(err),
				)
			}
			exec.AddResult(result)
		}

		if rule.StopOnMatch {
			break
		}
	}
	exec.Finish(runErr)

	if in.DryRun && !in.Persist {
		return exec, nil
	}
	if err := e.executions.Save(ctx, exec); err != nil {
		return nil, err
	}
	if in.DryRun {
		return exec, nil
	}

	if err := e.workflows.RecordRun(ctx, w.TenantID, w.ID, exec.FinishedAt); err != nil {
		e.logger.Error("failed to record workflow run", zap.String("workflow_id", w.ID.String()), zap.Error(err))
	}
	e.publishEvents(ctx, automation.NewWorkflowExecutedEvent(exec))
	if e.businessMetrics != nil {
		e.businessMetrics.RecordWorkflowExecution(ctx, w.TenantID, string(w.EntityType), string(exec.Status),
			exec.FinishedAt.Sub(exec.StartedAt))
	}
	return exec, nil
}

// matches ANDs the rule's conditions with its expression
func (e *Engine) matches(rule automation.Rule, entityType automation.EntityType, in RunInput, env map[string]any) (bool, error) {
	if !rule.MatchConditions(string(entityType), in.Current, in.Previous) {
		return false, nil
	}
	if rule.Expression == "" {
		return true, nil
	}
	return e.evaluator.Evaluate(rule.Expression, env)
}

// env exposes the snapshot fields at top level next to entity, previous, trigger and now
func (e *Engine) env(entityType automation.EntityType, in RunInput) map[string]any {
	env := make(map[string]any, len(in.Current)+5)
	for k, v := range in.Current {
		env[k] = v
	}
	current := map[string]any(in.Current)
	if current == nil {
		current = map[string]any{}
	}
	previous := map[string]any(in.Previous)
	if previous == nil {
		previous = map[string]any{}
	}
	env["entity"] = current
	env[string(entityType)] = current
	env["previous"] = previous
	env["trigger"] = string(in.Trigger)
	env["now"] = e.now()
	return env
}

func ruleLabel(rule automation.Rule) string {
	if rule.Name != "" {
		return fmt.Sprintf("%q", rule.Name)
	}
	return rule.ID.String()
}
