package handler

import (
	"github.com/gin-gonic/gin"
	crmapp "github.com/opencrm/backend/internal/application/crm"
)

// ContactHandler serves /crm/contacts
type ContactHandler struct {
	BaseHandler
	contacts *crmapp.ContactService
}

// NewContactHandler creates a ContactHandler
func NewContactHandler(contacts *crmapp.ContactService) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

// Create handles POST /crm/contacts
func (h *ContactHandler) Create(c *gin.Context) {
	var req crmapp.CreateContactRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.CreatedBy = actorID(c)

	contact, err := h.contacts.Create(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, contact)
}

// GetByID handles GET /crm/contacts/:id
func (h *ContactHandler) GetByID(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.contacts.GetByID)
}

// List handles GET /crm/contacts
func (h *ContactHandler) List(c *gin.Context) {
	var filter crmapp.ContactListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	contacts, total, err := h.contacts.List(c.Request.Context(), tenantID(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.BaseHandler.List(c, contacts, total, filter.ListQuery)
}

// Update handles PUT /crm/contacts/:id
func (h *ContactHandler) Update(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req crmapp.UpdateContactRequest
	if !h.BindJSON(c, &req) {
		return
	}
	contact, err := h.contacts.Update(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, contact)
}

// SetPrimary handles POST /crm/contacts/:id/primary
func (h *ContactHandler) SetPrimary(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.contacts.SetPrimary)
}

// Activate handles POST /crm/contacts/:id/activate
func (h *ContactHandler) Activate(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.contacts.Activate)
}

// Deactivate handles POST /crm/contacts/:id/deactivate
func (h *ContactHandler) Deactivate(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.contacts.Deactivate)
}

// Delete handles DELETE /crm/contacts/:id
func (h *ContactHandler) Delete(c *gin.Context) {
	runDelete(&h.BaseHandler, c, h.contacts.Delete)
}
