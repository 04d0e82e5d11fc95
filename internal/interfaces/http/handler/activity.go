package handler

import (
	"github.com/gin-gonic/gin"
	crmapp "github.com/opencrm/backend/internal/application/crm"
)

// ActivityHandler serves /crm/activities
type ActivityHandler struct {
	BaseHandler
	activities *crmapp.ActivityService
}

// NewActivityHandler creates an ActivityHandler
func NewActivityHandler(activities *crmapp.ActivityService) *ActivityHandler {
	return &ActivityHandler{activities: activities}
}

// Create handles POST /crm/activities
func (h *ActivityHandler) Create(c *gin.Context) {
	var req crmapp.CreateActivityRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.CreatedBy = actorID(c)

	activity, err := h.activities.Create(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, activity)
}

// GetByID handles GET /crm/activities/:id
func (h *ActivityHandler) GetByID(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.activities.GetByID)
}

// List handles GET /crm/activities
func (h *ActivityHandler) List(c *gin.Context) {
	var filter crmapp.ActivityListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	activities, total, err := h.activities.List(c.Request.Context(), tenantID(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.BaseHandler.List(c, activities, total, filter.ListQuery)
}

// Update handles PUT /crm/activities/:id
func (h *ActivityHandler) Update(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req crmapp.UpdateActivityRequest
	if !h.BindJSON(c, &req) {
		return
	}
	activity, err := h.activities.Update(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, activity)
}

// Delete handles DELETE /crm/activities/:id
func (h *ActivityHandler) Delete(c *gin.Context) {
	runDelete(&h.BaseHandler, c, h.activities.Delete)
}
