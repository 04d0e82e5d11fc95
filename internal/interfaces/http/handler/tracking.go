package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	marketingapp "github.com/opencrm/backend/internal/application/marketing"
	"github.com/opencrm/backend/internal/domain/marketing"
	"github.com/opencrm/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// transparentGIF is a 1x1 transparent GIF
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0xff, 0xff, 0xff,
	0x00, 0x00, 0x00, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// TrackingHandler serves the public tracking links embedded in campaign
// messages. Recipients are not authenticated; the tenant comes from the
// recipient.
type TrackingHandler struct {
	BaseHandler
	tracking *marketingapp.TrackingService
}

// NewTrackingHandler creates a TrackingHandler
func NewTrackingHandler(tracking *marketingapp.TrackingService) *TrackingHandler {
	return &TrackingHandler{tracking: tracking}
}

// Open handles GET /track/open/:recipient_id. The pixel is served even when
// the open cannot be recorded so mail clients never show a broken image.
func (h *TrackingHandler) Open(c *gin.Context) {
	if recipientID, err := uuid.Parse(c.Param("recipient_id")); err == nil {
		if err := h.tracking.TrackOpen(c.Request.Context(), recipientID, c.Request.UserAgent(), c.ClientIP()); err != nil {
			logger.L(c.Request.Context()).Warn("open not recorded",
				zap.String("recipient_id", recipientID.String()),
				zap.Error(err),
			)
		}
	}

	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	c.Header("Pragma", "no-cache")
	c.Data(http.StatusOK, "image/gif", transparentGIF)
}

// Click handles GET /track/click/:recipient_id?url=. Only http and https
// targets of a known recipient are redirected to; anything else is a 404 so
// the endpoint cannot serve as an open redirect. A resolved click is
// followed even if it cannot be recorded.
func (h *TrackingHandler) Click(c *gin.Context) {
	recipientID, ok := h.ParseID(c, "recipient_id")
	if !ok {
		return
	}
	target := c.Query("url")
	if err := marketing.ValidateRedirectURL(target); err != nil {
		h.HandleError(c, err)
		return
	}

	redirect, err := h.tracking.TrackClick(c.Request.Context(), recipientID, target, c.Request.UserAgent(), c.ClientIP())
	if redirect == "" {
		h.HandleError(c, err)
		return
	}
	if err != nil {
		logger.L(c.Request.Context()).Warn("click not recorded",
			zap.String("recipient_id", recipientID.String()),
			zap.Error(err),
		)
	}
	c.Redirect(http.StatusFound, redirect)
}
