package handler

import (
	"github.com/gin-gonic/gin"
	crmapp "github.com/opencrm/backend/internal/application/crm"
)

// NoteHandler serves /crm/notes
type NoteHandler struct {
	BaseHandler
	notes *crmapp.NoteService
}

// NewNoteHandler creates a NoteHandler
func NewNoteHandler(notes *crmapp.NoteService) *NoteHandler {
	return &NoteHandler{notes: notes}
}

// Create handles POST /crm/notes
func (h *NoteHandler) Create(c *gin.Context) {
	var req crmapp.CreateNoteRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.AuthorID = actorID(c)

	note, err := h.notes.Create(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, note)
}

// GetByID handles GET /crm/notes/:id
func (h *NoteHandler) GetByID(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.notes.GetByID)
}

// List handles GET /crm/notes. Pinned notes come first.
func (h *NoteHandler) List(c *gin.Context) {
	var filter crmapp.NoteListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	notes, total, err := h.notes.List(c.Request.Context(), tenantID(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.BaseHandler.List(c, notes, total, filter.ListQuery)
}

// Update handles PUT /crm/notes/:id
func (h *NoteHandler) Update(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req crmapp.UpdateNoteRequest
	if !h.BindJSON(c, &req) {
		return
	}
	note, err := h.notes.Update(c.Request.Context(), tenantID(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, note)
}

// Pin handles POST /crm/notes/:id/pin
func (h *NoteHandler) Pin(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.notes.Pin)
}

// Unpin handles POST /crm/notes/:id/unpin
func (h *NoteHandler) Unpin(c *gin.Context) {
	runIDAction(&h.BaseHandler, c, h.notes.Unpin)
}

// Delete handles DELETE /crm/notes/:id
func (h *NoteHandler) Delete(c *gin.Context) {
	runDelete(&h.BaseHandler, c, h.notes.Delete)
}
