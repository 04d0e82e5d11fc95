package handler

import (
	"github.com/gin-gonic/gin"
	crmapp "github.com/opencrm/backend/internal/application/crm"
)

// QuoteHandler serves /crm/quotes
type QuoteHandler struct {
	BaseHandler
	quotes *crmapp.QuoteService
}

// NewQuoteHandler creates a QuoteHandler
func NewQuoteHandler(quotes *crmapp.QuoteService) *QuoteHandler {
	return &QuoteHandler{quotes: quotes}
}

// Create handles POST /crm/quotes
func (h *QuoteHandler) Create(c *gin.Context) {
	var req crmapp.CreateQuoteRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.CreatedBy = actorID(c)

	quote, err := h.quotes.Create(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, quote)
}

// GetByID handles GET /crm/quotes/:id
func (h *QuoteHandler) GetByID(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.quotes.GetByID)
}

// List handles GET /crm/quotes
func (h *QuoteHandler) List(c *gin.Context) {
	var filter crmapp.QuoteListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	quotes, total, err := h.quotes.List(c.Request.Context(), tenantID(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.BaseHandler.List(c, quotes, total, filter.ListQuery)
}

// Update handles PUT /crm/quotes/:id. Only drafts can be edited.
func (h *QuoteHandler) Update(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req crmapp.UpdateQuoteRequest
	if !h.BindJSON(c, &req) {
		return
	}
	quote, err := h.quotes.Update(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, quote)
}

// Send handles POST /crm/quotes/:id/send
func (h *QuoteHandler) Send(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.quotes.Send)
}

// Accept handles POST /crm/quotes/:id/accept
func (h *QuoteHandler) Accept(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.quotes.Accept)
}

// Reject handles POST /crm/quotes/:id/reject. The reason is optional.
func (h *QuoteHandler) Reject(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req crmapp.RejectQuoteRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	quote, err := h.quotes.Reject(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, quote)
}

// Expire handles POST /crm/quotes/:id/expire
func (h *QuoteHandler) Expire(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.quotes.Expire)
}

// Delete handles DELETE /crm/quotes/:id
func (h *QuoteHandler) Delete(c *gin.Context) {
	runDelete(&h.BaseHandler, c, h.quotes.Delete)
}
