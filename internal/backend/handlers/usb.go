package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// EnableUSB POST /devices/:id/action/enable-usb {"duration": минуты}
func (h *Handlers) EnableUSB(c *gin.Context) {
	var req struct {
		Duration int `json:"duration"`
	}
	if err := bindOptionalJSON(c, &req); err != nil {
		h.badRequest(c, "Invalid request body", err)
		return
	}

	if req.Duration < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Duration must be positive"))
		return
	}

	result, err := h.queueService.GrantUSB(c.Request.Context(), actor(c), c.Param("id"), req.Duration)
	if err != nil {
		h.respondError(c, err, "usb_grant_failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse(string(result.Status), result))
}

// USBPending GET /devices/:id/action/usb-enable-pending
func (h *Handlers) USBPending(c *gin.Context) {
	status, err := h.queueService.USBStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "usb_status_failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("usb_status", status))
}

// USBEnabled POST /devices/:id/action/usb-enabled; повторное подтверждение успешно
func (h *Handlers) USBEnabled(c *gin.Context) {
	cleared, err := h.queueService.AcknowledgeUSB(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "usb_ack_failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("usb_acknowledged", gin.H{"cleared": cleared}))
}
