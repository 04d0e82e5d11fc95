package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/application/common"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/opencrm/backend/internal/infrastructure/logger"
	"github.com/opencrm/backend/internal/interfaces/http/dto"
	"github.com/opencrm/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler provides the response and binding helpers shared by every
// handler
type BaseHandler struct{}

func requestID(c *gin.Context) string {
	return c.GetString(logger.RequestIDKey)
}

// tenantID returns the tenant Auth resolved for the request
func tenantID(c *gin.Context) uuid.UUID {
	return middleware.TenantID(c)
}

// actorID returns the caller as a uuid, or nil when the caller has no user
// id or it is not a uuid
func actorID(c *gin.Context) *uuid.UUID {
	id, err := uuid.Parse(middleware.UserID(c))
	if err != nil {
		return nil
	}
	return &id
}

// Success sends a 200 response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// List sends a page of items with the effective skip and take of q
func (h *BaseHandler) List(c *gin.Context, items any, total int64, q common.ListQuery) {
	skip, take := q.Window()
	c.JSON(http.StatusOK, dto.NewListResponse(items, total, skip, take))
}

// Error sends an error envelope
func (h *BaseHandler) Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.NewErrorResponse(code, message, requestID(c)))
}

// BadRequest sends a 400 response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// ValidationError sends a 400 response listing the offending fields
func (h *BaseHandler) ValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		requestID(c),
		middleware.ValidationDetails(err),
	))
}

// HandleError maps err to a response. Domain errors keep their code and
// message. Anything else is logged and answered with a generic 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.Error(c, dto.DomainStatus(domainErr.Code), dto.DomainCode(domainErr.Code), domainErr.Message)
		return
	}

	logger.L(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("route", c.FullPath()),
		zap.Error(err),
	)
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}

// BindJSON binds and validates the request body. On failure the response
// is written and false returned.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.ValidationError(c, err)
		return false
	}
	return true
}

// BindOptionalJSON is BindJSON for endpoints whose body may be empty
func (h *BaseHandler) BindOptionalJSON(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return h.BindJSON(c, obj)
}

// BindQuery binds and validates query parameters
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.ValidationError(c, err)
		return false
	}
	return true
}

// ParseID reads a uuid path parameter
func (h *BaseHandler) ParseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidID, "Invalid "+param+" format")
		return uuid.Nil, false
	}
	return id, true
}
