package handler

import (
	"github.com/gin-gonic/gin"
	automationapp "github.com/opencrm/backend/internal/application/automation"
)

// WorkflowHandler serves /automation/workflows and the execution history
type WorkflowHandler struct {
	BaseHandler
	workflows *automationapp.WorkflowService
}

// NewWorkflowHandler creates a WorkflowHandler
func NewWorkflowHandler(workflows *automationapp.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{workflows: workflows}
}

// Create handles POST /automation/workflows
func (h *WorkflowHandler) Create(c *gin.Context) {
	var req automationapp.CreateWorkflowRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.CreatedBy = actorID(c)

	workflow, err := h.workflows.Create(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, workflow)
}

// GetByID handles GET /automation/workflows/:id
func (h *WorkflowHandler) GetByID(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.workflows.GetByID)
}

// List handles GET /automation/workflows
func (h *WorkflowHandler) List(c *gin.Context) {
	var filter automationapp.WorkflowListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	workflows, total, err := h.workflows.List(c.Request.Context(), tenantID(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.BaseHandler.List(c, workflows, total, filter.ListQuery)
}

// Update handles PUT /automation/workflows/:id
func (h *WorkflowHandler) Update(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req automationapp.UpdateWorkflowRequest
	if !h.BindJSON(c, &req) {
		return
	}
	workflow, err := h.workflows.Update(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, workflow)
}

// Delete handles DELETE /automation/workflows/:id
func (h *WorkflowHandler) Delete(c *gin.Context) {
	runDelete(&h.BaseHandler, c, h.workflows.Delete)
}

// Activate handles POST /automation/workflows/:id/activate
func (h *WorkflowHandler) Activate(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.workflows.Activate)
}

// Deactivate handles POST /automation/workflows/:id/deactivate
func (h *WorkflowHandler) Deactivate(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.workflows.Deactivate)
}

// AddRule handles POST /automation/workflows/:id/rules
func (h *WorkflowHandler) AddRule(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req automationapp.RuleInput
	if !h.BindJSON(c, &req) {
		return
	}
	workflow, err := h.workflows.AddRule(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, workflow)
}

// UpdateRule handles PUT /automation/workflows/:id/rules/:rule_id
func (h *WorkflowHandler) UpdateRule(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	ruleID, ok := h.ParseID(c, "rule_id")
	if !ok {
		return
	}
	var req automationapp.RuleInput
	if !h.BindJSON(c, &req) {
		return
	}
	workflow, err := h.workflows.UpdateRule(c.Request.Context(), tenantID(c), id, ruleID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, workflow)
}

// DeleteRule handles DELETE /automation/workflows/:id/rules/:rule_id and
// answers with the remaining workflow
func (h *WorkflowHandler) DeleteRule(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	ruleID, ok := h.ParseID(c, "rule_id")
	if !ok {
		return
	}
	workflow, err := h.workflows.DeleteRule(c.Request.Context(), tenantID(c), id, ruleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, workflow)
}

// Test handles POST /automation/workflows/:id/test, a dry run
func (h *WorkflowHandler) Test(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req automationapp.TestWorkflowRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	execution, err := h.workflows.Test(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, execution)
}

// Execute handles POST /automation/workflows/:id/execute
func (h *WorkflowHandler) Execute(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req automationapp.ExecuteWorkflowRequest
	if !h.BindJSON(c, &req) {
		return
	}
	execution, err := h.workflows.Execute(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, execution)
}

// WorkflowExecutions handles GET /automation/workflows/:id/executions
func (h *WorkflowHandler) WorkflowExecutions(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var filter automationapp.ExecutionListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	filter.WorkflowID = id.String()
	h.listExecutions(c, filter)
}

// Executions handles GET /automation/executions
func (h *WorkflowHandler) Executions(c *gin.Context) {
	var filter automationapp.ExecutionListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	h.listExecutions(c, filter)
}

// GetExecution handles GET /automation/executions/:id
func (h *WorkflowHandler) GetExecution(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.workflows.GetExecution)
}

func (h *WorkflowHandler) listExecutions(c *gin.Context, filter automationapp.ExecutionListFilter) {
	executions, total, err := h.workflows.ListExecutions(c.Request.Context(), tenantID(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.BaseHandler.List(c, executions, total, filter.ListQuery)
}
