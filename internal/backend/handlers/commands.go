package handlers

import (
	"net/http"

	"FleetGuard/internal/backend/models"
	shared "FleetGuard/internal/shared/models"

	"github.com/gin-gonic/gin"
)

// действия администратора из URL в команды system-action
var systemVerbs = map[string]shared.SystemVerb{
	"shutdown": shared.SystemShutdown,
	"restart":  shared.SystemRestart,
	"lock":     shared.SystemLockUser,
	"unlock":   shared.SystemUnlockUser,
}

func (h *Handlers) enqueue(c *gin.Context, payload shared.Payload) {
	result, err := h.queueService.Enqueue(c.Request.Context(), actor(c), c.Param("id"), payload)
	if err != nil {
		h.respondError(c, err, "enqueue_failed")
		return
	}

	status := http.StatusCreated
	if result.Status != models.EnqueueAccepted {
		status = http.StatusOK
	}
	c.JSON(status, SuccessResponse(string(result.Status), result))
}

// EnqueueServiceAction POST /devices/:id/services/:service/:action
func (h *Handlers) EnqueueServiceAction(c *gin.Context) {
	h.enqueue(c, shared.ServiceActionPayload{
		Service: c.Param("service"),
		Action:  shared.ServiceVerb(c.Param("action")),
	})
}

// EnqueueKill POST /devices/:id/processes/:name/kill {"mode": "once|persistent"}
func (h *Handlers) EnqueueKill(c *gin.Context) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := bindOptionalJSON(c, &req); err != nil {
		h.badRequest(c, "Invalid request body", err)
		return
	}

	mode, err := shared.ParseKillMode(req.Mode)
	if err != nil {
		h.badRequest(c, "Unknown kill mode", err)
		return
	}

	h.enqueue(c, shared.ProcessKillPayload{Name: c.Param("name"), Mode: mode})
}

// ClearKill DELETE /devices/:id/processes/:name/kill?mode=
func (h *Handlers) ClearKill(c *gin.Context) {
	mode, err := shared.ParseKillMode(c.Query("mode"))
	if err != nil {
		h.badRequest(c, "Unknown kill mode", err)
		return
	}

	removed, err := h.queueService.ClearKill(c.Request.Context(), actor(c), c.Param("id"), c.Param("name"), mode)
	if err != nil {
		h.respondError(c, err, "clear_failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("kill_cleared", gin.H{"removed": removed}))
}

// EnqueueSoftwareRemoval DELETE /devices/:id/software/:name
func (h *Handlers) EnqueueSoftwareRemoval(c *gin.Context) {
	h.enqueue(c, shared.SoftwareUninstallPayload{Name: c.Param("name")})
}

// EnqueueExtensionRemoval DELETE /devices/:id/extensions/:name
func (h *Handlers) EnqueueExtensionRemoval(c *gin.Context) {
	h.enqueue(c, shared.ExtensionRemovalPayload{Name: c.Param("name")})
}

// DeviceAction POST /devices/:id/action/{shutdown|restart|lock|unlock}
func (h *Handlers) DeviceAction(c *gin.Context) {
	action := c.Param("action")

	verb, ok := systemVerbs[action]
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Unknown action "+action))
		return
	}

	h.enqueue(c, shared.SystemActionPayload{Action: verb})
}

// EnqueuePatch POST /devices/:id/actions/patch-system
func (h *Handlers) EnqueuePatch(c *gin.Context) {
	h.enqueue(c, shared.PatchPayload{})
}

// ListCommands GET /devices/:id/commands
func (h *Handlers) ListCommands(c *gin.Context) {
	records, err := h.queueService.ListOutstanding(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "list_failed")
		return
	}

	c.JSON(http.StatusOK, ListResponse("commands", records, len(records)))
}

// CommandCounts GET /devices/:id/commands/counts
func (h *Handlers) CommandCounts(c *gin.Context) {
	counts, err := h.queueService.PendingCounts(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "count_failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("command_counts", counts))
}

// ClearCommands DELETE /devices/:id/commands/:class; class "all" очищает все классы
func (h *Handlers) ClearCommands(c *gin.Context) {
	class := shared.CommandClass(c.Param("class"))
	if class == "all" {
		class = ""
	}

	cleared, err := h.queueService.ClearClass(c.Request.Context(), actor(c), c.Param("id"), class)
	if err != nil {
		h.respondError(c, err, "clear_failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("commands_cleared", gin.H{"cleared": cleared}))
}

// PendingFor выдает агенту команды класса: GET .../pending-actions, pending-kill, pending-removal ...
func (h *Handlers) PendingFor(class shared.CommandClass) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := h.queueService.FetchForAgent(c.Request.Context(), c.Param("id"), class)
		if err != nil {
			h.respondError(c, err, "fetch_failed")
			return
		}

		c.JSON(http.StatusOK, ListResponse("pending", records, len(records)))
	}
}

// ClearCompletedFor принимает отчет агента: список или одиночный объект выполненных команд
func (h *Handlers) ClearCompletedFor(class shared.CommandClass) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			h.badRequest(c, "Failed to read request body", err)
			return
		}

		removed, err := h.queueService.CompleteFromReport(c.Request.Context(), c.Param("id"), class, body)
		if err != nil {
			h.respondError(c, err, "complete_failed")
			return
		}

		c.JSON(http.StatusOK, SuccessResponse("completed", gin.H{"removed": removed}))
	}
}

// CompleteKillOnce DELETE /devices/:id/processes/pending-kill/:name
func (h *Handlers) CompleteKillOnce(c *gin.Context) {
	err := h.queueService.CompleteKillOnce(c.Request.Context(), c.Param("id"), c.Param("name"))
	if err != nil {
		h.respondError(c, err, "complete_failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("kill_completed", gin.H{"process": c.Param("name")}))
}

// CompleteKill POST /devices/:id/processes/:name/kill/complete
func (h *Handlers) CompleteKill(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.badRequest(c, "Failed to read request body", err)
		return
	}

	removed, err := h.queueService.CompleteKill(c.Request.Context(), c.Param("id"), c.Param("name"), body)
	if err != nil {
		h.respondError(c, err, "complete_failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("completed", gin.H{"removed": removed}))
}

// QueueStats GET /queue/stats
func (h *Handlers) QueueStats(c *gin.Context) {
	stats, err := h.queueService.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "stats_failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("queue_stats", stats))
}

