package handler

import (
	"github.com/gin-gonic/gin"
	crmapp "github.com/opencrm/backend/internal/application/crm"
)

// OpportunityHandler serves /crm/opportunities
type OpportunityHandler struct {
	BaseHandler
	opportunities *crmapp.OpportunityService
}

// NewOpportunityHandler creates an OpportunityHandler
func NewOpportunityHandler(opportunities *crmapp.OpportunityService) *OpportunityHandler {
	return &OpportunityHandler{opportunities: opportunities}
}

// Create handles POST /crm/opportunities
func (h *OpportunityHandler) Create(c *gin.Context) {
	var req crmapp.CreateOpportunityRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.CreatedBy = actorID(c)

	opp, err := h.opportunities.Create(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, opp)
}

// GetByID handles GET /crm/opportunities/:id
func (h *OpportunityHandler) GetByID(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.opportunities.GetByID)
}

// List handles GET /crm/opportunities
func (h *OpportunityHandler) List(c *gin.Context) {
	var filter crmapp.OpportunityListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	opps, total, err := h.opportunities.List(c.Request.Context(), tenantID(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.BaseHandler.List(c, opps, total, filter.ListQuery)
}

// Pipeline handles GET /crm/opportunities/pipeline
func (h *OpportunityHandler) Pipeline(c *gin.Context) {
	var filter crmapp.PipelineFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	pipeline, err := h.opportunities.Pipeline(c.Request.Context(), tenantID(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, pipeline)
}

// Update handles PUT /crm/opportunities/:id
func (h *OpportunityHandler) Update(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req crmapp.UpdateOpportunityRequest
	if !h.BindJSON(c, &req) {
		return
	}
	opp, err := h.opportunities.Update(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, opp)
}

// MoveStage handles POST /crm/opportunities/:id/stage
func (h *OpportunityHandler) MoveStage(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req crmapp.MoveStageRequest
	if !h.BindJSON(c, &req) {
		return
	}
	opp, err := h.opportunities.MoveStage(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, opp)
}

// Win handles POST /crm/opportunities/:id/win
func (h *OpportunityHandler) Win(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.opportunities.Win)
}

// Lose handles POST /crm/opportunities/:id/lose
func (h *OpportunityHandler) Lose(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req crmapp.LoseOpportunityRequest
	if !h.BindJSON(c, &req) {
		return
	}
	opp, err := h.opportunities.Lose(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, opp)
}

// Reopen handles POST /crm/opportunities/:id/reopen
func (h *OpportunityHandler) Reopen(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.opportunities.Reopen)
}

// Delete handles DELETE /crm/opportunities/:id
func (h *OpportunityHandler) Delete(c *gin.Context) {
	runDelete(&h.BaseHandler, c, h.opportunities.Delete)
}
