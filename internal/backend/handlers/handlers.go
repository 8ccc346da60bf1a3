package handlers

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"FleetGuard/internal/backend/dependencies"
	"FleetGuard/internal/backend/services"
	"FleetGuard/internal/backend/storage"

	"github.com/gin-gonic/gin"
)

const defaultActor = "admin"

type Handlers struct {
	queueService   *services.QueueService
	deviceService  *services.DeviceService
	policyService  *services.PolicyService
	events         storage.EventSubscriber
	eventsChannel  string
	agentToken     string
	allowedOrigins []string
	logger         *slog.Logger
}

func NewHandlers(container *dependencies.Container) *Handlers {
	logger := container.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handlers{
		queueService:   container.QueueService,
		deviceService:  container.DeviceService,
		policyService:  container.PolicyService,
		events:         container.Events,
		eventsChannel:  container.Config.Queue.EventsChannel,
		agentToken:     container.Config.Security.AgentToken,
		allowedOrigins: container.Config.Security.AllowedOrigins,
		logger:         logger.With("component", "http"),
	}
}

// AgentAuthMiddleware проверяет общий токен агентов; пустой токен в конфиге отключает проверку
func (h *Handlers) AgentAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.agentToken == "" {
			c.Next()
			return
		}

		token := c.GetHeader("Authorization")
		if token == "" {
			c.JSON(http.StatusUnauthorized, ErrorResponse("missing_token", "Authorization header is required"))
			c.Abort()
			return
		}

		// Убираем "Bearer " префикс если есть
		token = strings.TrimPrefix(token, "Bearer ")

		if subtle.ConstantTimeCompare([]byte(token), []byte(h.agentToken)) != 1 {
			h.logger.Warn("invalid agent token", "device_id", c.Param("id"), "ip", c.ClientIP())
			c.JSON(http.StatusUnauthorized, ErrorResponse("invalid_token", "Invalid agent token"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// отвечает ошибкой по ее виду: 400 для некорректного ввода, 404 для отсутствующих объектов
func (h *Handlers) respondError(c *gin.Context, err error, code string) {
	deviceID := c.Param("id")

	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		h.logger.Warn("invalid request", "error", err, "device_id", deviceID, "path", c.FullPath())
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", err.Error()))
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse("not_found", err.Error()))
	default:
		h.logger.Error("request failed", "error", err, "device_id", deviceID, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, ErrorResponse(code, "Internal server error"))
	}
}

func (h *Handlers) badRequest(c *gin.Context, message string, err error) {
	h.logger.Warn(message, "error", err, "device_id", c.Param("id"))
	c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", message))
}

// пустое тело допустимо и оставляет значения по умолчанию
func bindOptionalJSON(c *gin.Context, dst interface{}) error {
	body, err := c.GetRawData()
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, dst)
}

// возвращает инициатора действия для аудита
func actor(c *gin.Context) string {
	if user := strings.TrimSpace(c.GetHeader("X-Actor")); user != "" {
		return user
	}
	return defaultActor
}

func eventForDevice(raw []byte, deviceID string) bool {
	var event struct {
		DeviceID string `json:"device_id"`
	}
	if err := json.Unmarshal(raw, &event); err != nil {
		return false
	}
	return event.DeviceID == deviceID
}
