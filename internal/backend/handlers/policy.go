package handlers

import (
	"net/http"

	"FleetGuard/internal/backend/storage"
	shared "FleetGuard/internal/shared/models"

	"github.com/gin-gonic/gin"
)

// GetPolicy GET /devices/:id/extension-policy и /extension-blacklist
func (h *Handlers) GetPolicy(mode storage.PolicyMode) gin.HandlerFunc {
	return func(c *gin.Context) {
		lists, err := h.policyService.GetLists(c.Request.Context(), c.Param("id"), mode)
		if err != nil {
			h.respondError(c, err, "policy_failed")
			return
		}

		c.JSON(http.StatusOK, SuccessResponse(string(mode), lists))
	}
}

// ReplacePolicy POST заменяет списки режима целиком
func (h *Handlers) ReplacePolicy(mode storage.PolicyMode) gin.HandlerFunc {
	return func(c *gin.Context) {
		var lists shared.ExtensionLists
		if err := c.ShouldBindJSON(&lists); err != nil {
			h.badRequest(c, "Invalid extension lists", err)
			return
		}

		if err := h.policyService.ReplaceLists(c.Request.Context(), actor(c), c.Param("id"), mode, lists); err != nil {
			h.respondError(c, err, "policy_failed")
			return
		}

		c.JSON(http.StatusOK, SuccessResponse(string(mode)+"_updated", nil))
	}
}
