package handlers

import (
	"net/http"
	"strconv"

	shared "FleetGuard/internal/shared/models"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) ListDevices(c *gin.Context) {
	devices, err := h.deviceService.ListDevices(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "list_failed")
		return
	}

	c.JSON(http.StatusOK, ListResponse("devices", devices, len(devices)))
}

func (h *Handlers) GetDevice(c *gin.Context) {
	device, err := h.deviceService.GetDevice(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "get_device_failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("device", device))
}

// GetInventory 404, если устройство еще не присылало инвентарь
func (h *Handlers) GetInventory(c *gin.Context) {
	inventory, err := h.deviceService.GetInventory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "get_inventory_failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("inventory", inventory))
}

// GetServices, GetSoftware, GetExtensions отдают последние снимки из реестра
func (h *Handlers) GetServices(c *gin.Context) {
	device, err := h.deviceService.GetDevice(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "get_services_failed")
		return
	}

	services := device.Services
	if services == nil {
		services = []shared.ServiceInfo{}
	}
	c.JSON(http.StatusOK, ListResponse("services", services, len(services)))
}

func (h *Handlers) GetSoftware(c *gin.Context) {
	device, err := h.deviceService.GetDevice(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "get_software_failed")
		return
	}

	software := device.Software
	if software == nil {
		software = []shared.SoftwareItem{}
	}
	c.JSON(http.StatusOK, ListResponse("software", software, len(software)))
}

func (h *Handlers) GetExtensions(c *gin.Context) {
	device, err := h.deviceService.GetDevice(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "get_extensions_failed")
		return
	}

	extensions := device.Extensions
	if extensions == nil {
		extensions = []shared.ExtensionInfo{}
	}
	c.JSON(http.StatusOK, ListResponse("extensions", extensions, len(extensions)))
}

func (h *Handlers) GetReports(c *gin.Context) {
	reports, err := h.deviceService.ReportHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "get_reports_failed")
		return
	}

	c.JSON(http.StatusOK, ListResponse("reports", reports, len(reports)))
}

// PushInventory POST /devices/:id/inventory
func (h *Handlers) PushInventory(c *gin.Context) {
	var inventory shared.Inventory
	if err := c.ShouldBindJSON(&inventory); err != nil {
		h.badRequest(c, "Invalid inventory", err)
		return
	}

	if err := h.deviceService.UpsertInventory(c.Request.Context(), c.Param("id"), inventory); err != nil {
		h.respondError(c, err, "inventory_failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("inventory_updated", nil))
}

// PushReport POST /devices/:id/report
func (h *Handlers) PushReport(c *gin.Context) {
	var report shared.TelemetryReport
	if err := c.ShouldBindJSON(&report); err != nil {
		h.badRequest(c, "Invalid report", err)
		return
	}

	if err := h.deviceService.SubmitReport(c.Request.Context(), c.Param("id"), &report); err != nil {
		h.respondError(c, err, "report_failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("report_received", nil))
}

func (h *Handlers) PushServices(c *gin.Context) {
	var services []shared.ServiceInfo
	if err := c.ShouldBindJSON(&services); err != nil {
		h.badRequest(c, "Invalid services list", err)
		return
	}

	if err := h.deviceService.SetServices(c.Request.Context(), c.Param("id"), services); err != nil {
		h.respondError(c, err, "services_failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("services_updated", gin.H{"count": len(services)}))
}

func (h *Handlers) PushSoftware(c *gin.Context) {
	var software []shared.SoftwareItem
	if err := c.ShouldBindJSON(&software); err != nil {
		h.badRequest(c, "Invalid software list", err)
		return
	}

	if err := h.deviceService.MergeSoftware(c.Request.Context(), c.Param("id"), software); err != nil {
		h.respondError(c, err, "software_failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("software_updated", gin.H{"count": len(software)}))
}

func (h *Handlers) PushExtensions(c *gin.Context) {
	var extensions []shared.ExtensionInfo
	if err := c.ShouldBindJSON(&extensions); err != nil {
		h.badRequest(c, "Invalid extensions list", err)
		return
	}

	if err := h.deviceService.SetExtensions(c.Request.Context(), c.Param("id"), extensions); err != nil {
		h.respondError(c, err, "extensions_failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("extensions_updated", gin.H{"count": len(extensions)}))
}

// PatchResult POST /devices/:id/actions/patch-result
func (h *Handlers) PatchResult(c *gin.Context) {
	var result shared.PatchResult
	if err := c.ShouldBindJSON(&result); err != nil {
		h.badRequest(c, "Invalid patch result", err)
		return
	}

	if err := h.deviceService.RecordPatchResult(c.Request.Context(), c.Param("id"), &result); err != nil {
		h.respondError(c, err, "patch_result_failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("patch_result_recorded", result))
}

func (h *Handlers) PatchStatus(c *gin.Context) {
	status, err := h.deviceService.PatchStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "patch_status_failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("patch_status", status))
}

func (h *Handlers) DashboardStats(c *gin.Context) {
	stats, err := h.deviceService.DashboardStats(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "stats_failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("dashboard_stats", stats))
}

// CommandLog GET /command-log?limit=
func (h *Handlers) CommandLog(c *gin.Context) {
	h.auditLog(c, "")
}

// AuditLogs GET /audit-logs?device_id=
func (h *Handlers) AuditLogs(c *gin.Context) {
	h.auditLog(c, c.Query("device_id"))
}

func (h *Handlers) auditLog(c *gin.Context, deviceID string) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "limit must be between 1 and 1000"))
			return
		}
		limit = parsed
	}

	logs, err := h.deviceService.CommandLog(c.Request.Context(), deviceID, limit)
	if err != nil {
		h.respondError(c, err, "audit_failed")
		return
	}

	c.JSON(http.StatusOK, ListResponse("command_log", logs, len(logs)))
}
