package handler

import (
	"github.com/gin-gonic/gin"
	crmapp "github.com/opencrm/backend/internal/application/crm"
)

// TaskHandler serves /crm/tasks
type TaskHandler struct {
	BaseHandler
	tasks *crmapp.TaskService
}

// NewTaskHandler creates a TaskHandler
func NewTaskHandler(tasks *crmapp.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// Create handles POST /crm/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req crmapp.CreateTaskRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.CreatedBy = actorID(c)

	task, err := h.tasks.Create(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, task)
}

// GetByID handles GET /crm/tasks/:id
func (h *TaskHandler) GetByID(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.tasks.GetByID)
}

// List handles GET /crm/tasks
func (h *TaskHandler) List(c *gin.Context) {
	var filter crmapp.TaskListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	tasks, total, err := h.tasks.List(c.Request.Context(), tenantID(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.BaseHandler.List(c, tasks, total, filter.ListQuery)
}

// Update handles PUT /crm/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req crmapp.UpdateTaskRequest
	if !h.BindJSON(c, &req) {
		return
	}
	task, err := h.tasks.Update(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, task)
}

// Start handles POST /crm/tasks/:id/start
func (h *TaskHandler) Start(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.tasks.Start)
}

// Complete handles POST /crm/tasks/:id/complete
func (h *TaskHandler) Complete(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.tasks.Complete)
}

// Cancel handles POST /crm/tasks/:id/cancel
func (h *TaskHandler) Cancel(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.tasks.Cancel)
}

// Reopen handles POST /crm/tasks/:id/reopen
func (h *TaskHandler) Reopen(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.tasks.Reopen)
}

// Delete handles DELETE /crm/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	runDelete(&h.BaseHandler, c, h.tasks.Delete)
}
