package handler

import (
	"github.com/gin-gonic/gin"
	marketingapp "github.com/opencrm/backend/internal/application/marketing"
)

// CampaignHandler serves /marketing/campaigns
type CampaignHandler struct {
	BaseHandler
	campaigns *marketingapp.CampaignService
	tracking  *marketingapp.TrackingService
}

// NewCampaignHandler creates a CampaignHandler
func NewCampaignHandler(campaigns *marketingapp.CampaignService, tracking *marketingapp.TrackingService) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, tracking: tracking}
}

// Create handles POST /marketing/campaigns
func (h *CampaignHandler) Create(c *gin.Context) {
	var req marketingapp.CreateCampaignRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.CreatedBy = actorID(c)

	campaign, err := h.campaigns.Create(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, campaign)
}

// GetByID handles GET /marketing/campaigns/:id
func (h *CampaignHandler) GetByID(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.campaigns.GetByID)
}

// List handles GET /marketing/campaigns
func (h *CampaignHandler) List(c *gin.Context) {
	var filter marketingapp.CampaignListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	campaigns, total, err := h.campaigns.List(c.Request.Context(), tenantID(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.BaseHandler.List(c, campaigns, total, filter.ListQuery)
}

// Update handles PUT /marketing/campaigns/:id
func (h *CampaignHandler) Update(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req marketingapp.UpdateCampaignRequest
	if !h.BindJSON(c, &req) {
		return
	}
	campaign, err := h.campaigns.Update(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, campaign)
}

// Delete handles DELETE /marketing/campaigns/:id
func (h *CampaignHandler) Delete(c *gin.Context) {
	runDelete(&h.BaseHandler, c, h.campaigns.Delete)
}

// Schedule handles POST /marketing/campaigns/:id/schedule
func (h *CampaignHandler) Schedule(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.campaigns.Schedule)
}

// Execute handles POST /marketing/campaigns/:id/execute
func (h *CampaignHandler) Execute(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.campaigns.Execute)
}

// Pause handles POST /marketing/campaigns/:id/pause
func (h *CampaignHandler) Pause(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.campaigns.Pause)
}

// Resume handles POST /marketing/campaigns/:id/resume
func (h *CampaignHandler) Resume(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.campaigns.Resume)
}

// Complete handles POST /marketing/campaigns/:id/complete
func (h *CampaignHandler) Complete(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.campaigns.Complete)
}

// Cancel handles POST /marketing/campaigns/:id/cancel
func (h *CampaignHandler) Cancel(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.campaigns.Cancel)
}

// Analytics handles GET /marketing/campaigns/:id/analytics
func (h *CampaignHandler) Analytics(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.campaigns.Analytics)
}

// Recipients handles GET /marketing/campaigns/:id/recipients
func (h *CampaignHandler) Recipients(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var filter marketingapp.RecipientListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	recipients, total, err := h.campaigns.Recipients(c.Request.Context(), tenantID(c), id, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.BaseHandler.List(c, recipients, total, filter.ListQuery)
}

// Interactions handles GET /marketing/campaigns/:id/interactions
func (h *CampaignHandler) Interactions(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var filter marketingapp.InteractionListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	interactions, total, err := h.campaigns.Interactions(c.Request.Context(), tenantID(c), id, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.BaseHandler.List(c, interactions, total, filter.ListQuery)
}

// Track handles POST /marketing/campaigns/:id/track, the authenticated way
// to record any interaction including conversions
func (h *CampaignHandler) Track(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req marketingapp.TrackInteractionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.UserAgent = c.Request.UserAgent()
	req.IPAddress = c.ClientIP()

	result, err := h.tracking.Track(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}
