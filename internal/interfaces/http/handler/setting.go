package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	platformapp "github.com/opencrm/backend/internal/application/platform"
)

// SettingHandler serves /platform/settings. Settings are addressed by key.
type SettingHandler struct {
	BaseHandler
	settings *platformapp.SettingService
}

// NewSettingHandler creates a SettingHandler
func NewSettingHandler(settings *platformapp.SettingService) *SettingHandler {
	return &SettingHandler{settings: settings}
}

// List handles GET /platform/settings. Defaults are merged with the
// tenant's overrides so the list is never paged.
func (h *SettingHandler) List(c *gin.Context) {
	var filter platformapp.SettingListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	settings, err := h.settings.List(c.Request.Context(), tenantID(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, settings)
}

// Get handles GET /platform/settings/:key
func (h *SettingHandler) Get(c *gin.Context) {
	setting, err := h.settings.Get(c.Request.Context(), tenantID(c), settingKey(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, setting)
}

// Create handles POST /platform/settings
func (h *SettingHandler) Create(c *gin.Context) {
	var req platformapp.CreateSettingRequest
	if !h.BindJSON(c, &req) {
		return
	}
	setting, err := h.settings.Create(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, setting)
}

// Update handles PUT /platform/settings/:key
func (h *SettingHandler) Update(c *gin.Context) {
	var req platformapp.UpdateSettingRequest
	if !h.BindJSON(c, &req) {
		return
	}
	setting, err := h.settings.Update(c.Request.Context(), tenantID(c), settingKey(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, setting)
}

// BulkUpdate handles PUT /platform/settings. Either every value is applied
// or none is.
func (h *SettingHandler) BulkUpdate(c *gin.Context) {
	var req platformapp.BulkUpdateSettingsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	settings, err := h.settings.BulkUpdate(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, settings)
}

// Reset handles POST /platform/settings/:key/reset
func (h *SettingHandler) Reset(c *gin.Context) {
	setting, err := h.settings.Reset(c.Request.Context(), tenantID(c), settingKey(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, setting)
}

// Delete handles DELETE /platform/settings/:key
func (h *SettingHandler) Delete(c *gin.Context) {
	if err := h.settings.Delete(c.Request.Context(), tenantID(c), settingKey(c)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

func settingKey(c *gin.Context) string {
	return strings.TrimSpace(c.Param("key"))
}
