package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// runIDAction parses the :id parameter, runs fn and answers 200 with its
// result. Lifecycle endpoints without a body all share this shape.
func runIDAction[T any](h *BaseHandler, c *gin.Context, fn func(ctx context.Context, tenantID, id uuid.UUID) (T, error)) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	result, err := fn(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// runDelete parses the :id parameter, runs del and answers 204
func runDelete(h *BaseHandler, c *gin.Context, del func(ctx context.Context, tenantID, id uuid.UUID) error) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := del(c.Request.Context(), tenantID(c), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
