package automation

import (
	"context"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/application/common"
	"github.com/opencrm/backend/internal/domain/automation"
	"github.com/opencrm/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// scheduledBatchSize is the page size used when a scheduled workflow walks its entities
const scheduledBatchSize = 100

// WorkflowService handles workflow definitions, test runs and manual runs
type WorkflowService struct {
	publisher
	workflowRepo  automation.WorkflowRepository
	executionRepo automation.ExecutionRepository
	gateways      Gateways
	engine        *Engine
	evaluator     *ExpressionEvaluator
	logger        *zap.Logger
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(
	workflowRepo automation.WorkflowRepository,
	executionRepo automation.ExecutionRepository,
	gateways Gateways,
	engine *Engine,
	evaluator *ExpressionEvaluator,
	logger *zap.Logger,
) *WorkflowService {
	return &WorkflowService{
		workflowRepo:  workflowRepo,
		executionRepo: executionRepo,
		gateways:      gateways,
		engine:        engine,
		evaluator:     evaluator,
		logger:        logger.Named("workflow_service"),
	}
}

// Create creates a workflow with its initial rules
func (s *WorkflowService) Create(ctx context.Context, tenantID uuid.UUID, req CreateWorkflowRequest) (*WorkflowResponse, error) {
	w, err := automation.NewWorkflow(tenantID, req.Name, automation.EntityType(req.EntityType), automation.Trigger(req.Trigger), req.Schedule)
	if err != nil {
		return nil, err
	}
	w.Description = req.Description
	w.Priority = req.Priority
	if req.CreatedBy != nil {
		w.SetCreatedBy(*req.CreatedBy)
	}

	if len(req.Rules) > 50 {
		return nil, shared.NewDomainError("TOO_MANY_RULES", "A workflow can have at most 50 rules")
	}
	for _, input := range req.Rules {
		rule, err := s.buildRule(input)
		if err != nil {
			return nil, err
		}
		w.Rules = append(w.Rules, rule)
	}
	w.Rules = w.OrderedRules()

	if req.Activate {
		if err := w.Activate(); err != nil {
			return nil, err
		}
	}

	if err := s.workflowRepo.Save(ctx, w); err != nil {
		return nil, err
	}
	s.publish(ctx, w)

	response := ToWorkflowResponse(w)
	return &response, nil
}

// GetByID retrieves a workflow by ID
func (s *WorkflowService) GetByID(ctx context.Context, tenantID, workflowID uuid.UUID) (*WorkflowResponse, error) {
	w, err := s.workflowRepo.FindByIDForTenant(ctx, tenantID, workflowID)
	if err != nil {
		return nil, err
	}
	response := ToWorkflowResponse(w)
	return &response, nil
}

// List retrieves a page of workflows
func (s *WorkflowService) List(ctx context.Context, tenantID uuid.UUID, filter WorkflowListFilter) ([]WorkflowResponse, int64, error) {
	domainFilter := filter.Filter("priority")
	if filter.OrderBy == "" {
		domainFilter.OrderDir = "asc"
	}
	common.PutString(domainFilter, "entity_type", filter.EntityType)
	common.PutString(domainFilter, "trigger", filter.Trigger)
	common.PutBool(domainFilter, "is_active", filter.IsActive)

	workflows, err := s.workflowRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.workflowRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToWorkflowResponses(workflows), total, nil
}

// Update edits the workflow definition
func (s *WorkflowService) Update(ctx context.Context, tenantID, workflowID uuid.UUID, req UpdateWorkflowRequest) (*WorkflowResponse, error) {
	return s.mutate(ctx, tenantID, workflowID, func(w *automation.Workflow) error {
		return w.Update(req.patch())
	})
}

// Delete soft-deletes a workflow
func (s *WorkflowService) Delete(ctx context.Context, tenantID, workflowID uuid.UUID) error {
	w, err := s.workflowRepo.FindByIDForTenant(ctx, tenantID, workflowID)
	if err != nil {
		return err
	}
	w.MarkDeleted()
	if err := s.workflowRepo.DeleteForTenant(ctx, tenantID, workflowID); err != nil {
		return err
	}
	s.publish(ctx, w)
	return nil
}

// Activate enables a workflow that has rules
func (s *WorkflowService) Activate(ctx context.Context, tenantID, workflowID uuid.UUID) (*WorkflowResponse, error) {
	return s.mutate(ctx, tenantID, workflowID, (*automation.Workflow).Activate)
}

// Deactivate disables a workflow
func (s *WorkflowService) Deactivate(ctx context.Context, tenantID, workflowID uuid.UUID) (*WorkflowResponse, error) {
	return s.mutate(ctx, tenantID, workflowID, (*automation.Workflow).Deactivate)
}

// AddRule appends a rule to the workflow
func (s *WorkflowService) AddRule(ctx context.Context, tenantID, workflowID uuid.UUID, req RuleInput) (*WorkflowResponse, error) {
	rule, err := s.buildRule(req)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, tenantID, workflowID, func(w *automation.Workflow) error {
		return w.AddRule(rule)
	})
}

// UpdateRule replaces a rule, keeping its ID
func (s *WorkflowService) UpdateRule(ctx context.Context, tenantID, workflowID, ruleID uuid.UUID, req RuleInput) (*WorkflowResponse, error) {
	rule, err := s.buildRule(req)
	if err != nil {
		return nil, err
	}
	rule.ID = ruleID
	return s.mutate(ctx, tenantID, workflowID, func(w *automation.Workflow) error {
		return w.ReplaceRule(rule)
	})
}

// DeleteRule removes a rule
func (s *WorkflowService) DeleteRule(ctx context.Context, tenantID, workflowID, ruleID uuid.UUID) (*WorkflowResponse, error) {
	return s.mutate(ctx, tenantID, workflowID, func(w *automation.Workflow) error {
		return w.RemoveRule(ruleID)
	})
}

// Test evaluates the workflow as a dry run. No actions run and nothing is
// stored unless Persist is set.
func (s *WorkflowService) Test(ctx context.Context, tenantID, workflowID uuid.UUID, req TestWorkflowRequest) (*ExecutionResponse, error) {
	w, err := s.workflowRepo.FindByIDForTenant(ctx, tenantID, workflowID)
	if err != nil {
		return nil, err
	}

	current := automation.Snapshot(req.Snapshot)
	if current == nil {
		if req.EntityID == nil {
			return nil, shared.NewDomainError("MISSING_SNAPSHOT", "Provide a snapshot or an entity_id to test against")
		}
		if current, err = s.loadSnapshot(ctx, w, *req.EntityID); err != nil {
			return nil, err
		}
	}
	entityID := req.EntityID
	if entityID == nil {
		if id, err := uuid.Parse(current.ID()); err == nil {
			entityID = &id
		}
	}

	trigger := automation.Trigger(req.Trigger)
	if trigger == "" {
		trigger = w.Trigger
	}

	exec, err := s.engine.Run(ctx, w, RunInput{
		EntityID: entityID,
		Trigger:  trigger,
		Current:  current,
		Previous: automation.Snapshot(req.Previous),
		DryRun:   true,
		Persist:  req.Persist,
	})
	if err != nil {
		return nil, err
	}
	response := ToExecutionResponse(exec)
	return &response, nil
}

// Execute runs the workflow's actions against one entity, whatever its trigger
func (s *WorkflowService) Execute(ctx context.Context, tenantID, workflowID uuid.UUID, req ExecuteWorkflowRequest) (*ExecutionResponse, error) {
	w, err := s.workflowRepo.FindByIDForTenant(ctx, tenantID, workflowID)
	if err != nil {
		return nil, err
	}
	current, err := s.loadSnapshot(ctx, w, req.EntityID)
	if err != nil {
		return nil, err
	}

	entityID := req.EntityID
	exec, err := s.engine.Run(ctx, w, RunInput{
		EntityID: &entityID,
		Trigger:  automation.TriggerManual,
		Current:  current,
	})
	if err != nil {
		return nil, err
	}
	response := ToExecutionResponse(exec)
	return &response, nil
}

// RunScheduled runs a scheduled workflow against every entity of its type.
// It returns how many entities were evaluated.
func (s *WorkflowService) RunScheduled(ctx context.Context, tenantID, workflowID uuid.UUID) (int, error) {
	w, err := s.workflowRepo.FindByIDForTenant(ctx, tenantID, workflowID)
	if err != nil {
		return 0, err
	}
	if !w.IsActive || w.Trigger != automation.TriggerScheduled {
		return 0, nil
	}
	gw, err := s.gateways.For(w.EntityType)
	if err != nil {
		return 0, err
	}

	runs := 0
	for skip := 0; ; skip += scheduledBatchSize {
		if err := ctx.Err(); err != nil {
			return runs, err
		}
		snapshots, _, err := gw.List(ctx, tenantID, skip, scheduledBatchSize)
		if err != nil {
			return runs, err
		}
		for _, snap := range snapshots {
			var entityID *uuid.UUID
			if id, err := uuid.Parse(snap.ID()); err == nil {
				entityID = &id
			}
			if _, err := s.engine.Run(ctx, w, RunInput{EntityID: entityID, Trigger: automation.TriggerScheduled, Current: snap}); err != nil {
				s.logger.Error("scheduled workflow run failed",
					zap.String("workflow_id", w.ID.String()),
					zap.String("entity_id", snap.ID()),
					zap.Error(err),
				)
				continue
			}
			runs++
		}
		if len(snapshots) < scheduledBatchSize {
			return runs, nil
		}
	}
}

// ScheduledWorkflows returns every active scheduled workflow for the scheduler
func (s *WorkflowService) ScheduledWorkflows(ctx context.Context) ([]automation.Workflow, error) {
	return s.workflowRepo.FindActiveScheduled(ctx)
}

// GetExecution retrieves one execution record
func (s *WorkflowService) GetExecution(ctx context.Context, tenantID, executionID uuid.UUID) (*ExecutionResponse, error) {
	exec, err := s.executionRepo.FindByIDForTenant(ctx, tenantID, executionID)
	if err != nil {
		return nil, err
	}
	response := ToExecutionResponse(exec)
	return &response, nil
}

// ListExecutions retrieves a page of execution history, newest first
func (s *WorkflowService) ListExecutions(ctx context.Context, tenantID uuid.UUID, filter ExecutionListFilter) ([]ExecutionResponse, int64, error) {
	if filter.WorkflowID != "" {
		workflowID, err := uuid.Parse(filter.WorkflowID)
		if err != nil {
			return nil, 0, shared.NewDomainError("INVALID_ID", "Invalid workflow ID")
		}
		if _, err := s.workflowRepo.FindByIDForTenant(ctx, tenantID, workflowID); err != nil {
			return nil, 0, err
		}
	}

	domainFilter := filter.Filter("started_at")
	common.PutString(domainFilter, "workflow_id", filter.WorkflowID)
	common.PutString(domainFilter, "entity_type", filter.EntityType)
	common.PutString(domainFilter, "entity_id", filter.EntityID)
	common.PutString(domainFilter, "status", filter.Status)
	common.PutBool(domainFilter, "dry_run", filter.DryRun)

	executions, err := s.executionRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.executionRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	out := make([]ExecutionResponse, len(executions))
	for i := range executions {
		out[i] = ToExecutionResponse(&executions[i])
	}
	return out, total, nil
}

func (s *WorkflowService) buildRule(input RuleInput) (automation.Rule, error) {
	if err := s.evaluator.Validate(input.Expression); err != nil {
		return automation.Rule{}, err
	}
	return input.rule()
}

func (s *WorkflowService) loadSnapshot(ctx context.Context, w *automation.Workflow, entityID uuid.UUID) (automation.Snapshot, error) {
	gw, err := s.gateways.For(w.EntityType)
	if err != nil {
		return nil, err
	}
	return gw.Snapshot(ctx, w.TenantID, entityID)
}

func (s *WorkflowService) mutate(ctx context.Context, tenantID, workflowID uuid.UUID, fn func(*automation.Workflow) error) (*WorkflowResponse, error) {
	w, err := s.workflowRepo.FindByIDForTenant(ctx, tenantID, workflowID)
	if err != nil {
		return nil, err
	}
	if err := fn(w); err != nil {
		return nil, err
	}
	if !unchanged(w) {
		if err := s.workflowRepo.SaveWithLock(ctx, w); err != nil {
			return nil, err
		}
		s.publish(ctx, w)
	}
	response := ToWorkflowResponse(w)
	return &response, nil
}

