package handler

import (
	"github.com/gin-gonic/gin"
	platformapp "github.com/opencrm/backend/internal/application/platform"
)

// DeploymentHandler serves /platform/deployments
type DeploymentHandler struct {
	BaseHandler
	deployments *platformapp.DeploymentService
}

// NewDeploymentHandler creates a DeploymentHandler
func NewDeploymentHandler(deployments *platformapp.DeploymentService) *DeploymentHandler {
	return &DeploymentHandler{deployments: deployments}
}

// Create handles POST /platform/deployments
func (h *DeploymentHandler) Create(c *gin.Context) {
	var req platformapp.CreateDeploymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.CreatedBy = actorID(c)

	deployment, err := h.deployments.Create(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, deployment)
}

// GetByID handles GET /platform/deployments/:id
func (h *DeploymentHandler) GetByID(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.deployments.GetByID)
}

// List handles GET /platform/deployments
func (h *DeploymentHandler) List(c *gin.Context) {
	var filter platformapp.DeploymentListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	deployments, total, err := h.deployments.List(c.Request.Context(), tenantID(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.BaseHandler.List(c, deployments, total, filter.ListQuery)
}

// Update handles PUT /platform/deployments/:id
func (h *DeploymentHandler) Update(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req platformapp.UpdateDeploymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	deployment, err := h.deployments.Update(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, deployment)
}

// Delete handles DELETE /platform/deployments/:id
func (h *DeploymentHandler) Delete(c *gin.Context) {
	runDelete(&h.BaseHandler, c, h.deployments.Delete)
}

// Deploy handles POST /platform/deployments/:id/deploy
func (h *DeploymentHandler) Deploy(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req platformapp.DeployRequest
	if !h.BindJSON(c, &req) {
		return
	}
	deployment, err := h.deployments.Deploy(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, deployment)
}

// MarkRunning handles POST /platform/deployments/:id/running
func (h *DeploymentHandler) MarkRunning(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req platformapp.MarkRunningRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	deployment, err := h.deployments.MarkRunning(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, deployment)
}

// MarkFailed handles POST /platform/deployments/:id/failed
func (h *DeploymentHandler) MarkFailed(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req platformapp.MarkFailedRequest
	if !h.BindJSON(c, &req) {
		return
	}
	deployment, err := h.deployments.MarkFailed(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, deployment)
}

// Stop handles POST /platform/deployments/:id/stop
func (h *DeploymentHandler) Stop(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.deployments.Stop)
}

// Start handles POST /platform/deployments/:id/start
func (h *DeploymentHandler) Start(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.deployments.Start)
}

// Terminate handles POST /platform/deployments/:id/terminate
func (h *DeploymentHandler) Terminate(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.deployments.Terminate)
}

// HealthCheck handles POST /platform/deployments/:id/health-check
func (h *DeploymentHandler) HealthCheck(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.deployments.HealthCheck)
}
