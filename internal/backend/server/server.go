package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"FleetGuard/internal/backend/dependencies"
	"FleetGuard/internal/backend/handlers"
	"FleetGuard/internal/backend/storage"
	shared "FleetGuard/internal/shared/models"
	"FleetGuard/pkg/uuidutil"

	"github.com/gin-gonic/gin"
)

type Server struct {
	router     *gin.Engine
	config     *Config
	container  *dependencies.Container
	handlers   *handlers.Handlers
	httpServer *http.Server
}

type Config struct {
	Port int
	Mode string
}

// New создает сервер с dependency injection
func New(config *Config, container *dependencies.Container) *Server {
	switch config.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	server := &Server{
		router:    gin.New(),
		config:    config,
		container: container,
		handlers:  handlers.NewHandlers(container),
	}

	server.setupMiddlewares()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddlewares() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// Logger middleware
	s.router.Use(s.loggerMiddleware())

	// CORS middleware
	s.router.Use(s.corsMiddleware())

	// Request ID middleware
	s.router.Use(s.requestIDMiddleware())
}

func (s *Server) setupRoutes() {
	h := s.handlers
	agentAuth := h.AgentAuthMiddleware()

	// Health checks
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/ready", s.readyCheck)

	api := s.router.Group("/api")
	{
		api.GET("/dashboard/stats", h.DashboardStats)
		api.GET("/queue/stats", h.QueueStats)
		api.GET("/command-log", h.CommandLog)
		api.GET("/audit-logs", h.AuditLogs)

		devices := api.Group("/devices")
		{
			devices.GET("", h.ListDevices)
			devices.GET("/:id", h.GetDevice)
			devices.GET("/:id/inventory", h.GetInventory)
			devices.GET("/:id/services", h.GetServices)
			devices.GET("/:id/software", h.GetSoftware)
			devices.GET("/:id/extensions", h.GetExtensions)
			devices.GET("/:id/reports", h.GetReports)
			devices.GET("/:id/actions/patch-status", h.PatchStatus)

			// команды администратора
			devices.GET("/:id/commands", h.ListCommands)
			devices.GET("/:id/commands/counts", h.CommandCounts)
			devices.DELETE("/:id/commands/:class", h.ClearCommands)
			devices.POST("/:id/services/:service/:action", h.EnqueueServiceAction)
			devices.POST("/:id/processes/:name/kill", h.EnqueueKill)
			devices.DELETE("/:id/processes/:name/kill", h.ClearKill)
			devices.DELETE("/:id/software/:name", h.EnqueueSoftwareRemoval)
			devices.DELETE("/:id/extensions/:name", h.EnqueueExtensionRemoval)
			devices.POST("/:id/actions/patch-system", h.EnqueuePatch)

			// политика расширений
			devices.POST("/:id/extension-policy", h.ReplacePolicy(storage.PolicyWhitelist))
			devices.POST("/:id/extension-blacklist", h.ReplacePolicy(storage.PolicyBlacklist))
		}

		// Маршруты агентов
		agent := api.Group("/devices", agentAuth)
		{
			agent.POST("/:id/inventory", h.PushInventory)
			agent.POST("/:id/report", h.PushReport)
			agent.POST("/:id/services", h.PushServices)
			agent.POST("/:id/software", h.PushSoftware)
			agent.POST("/:id/extensions", h.PushExtensions)

			agent.GET("/:id/extension-policy", h.GetPolicy(storage.PolicyWhitelist))
			agent.GET("/:id/extension-blacklist", h.GetPolicy(storage.PolicyBlacklist))

			agent.GET("/:id/services/pending-actions", h.PendingFor(shared.ClassServiceAction))
			agent.POST("/:id/services/clear-completed", h.ClearCompletedFor(shared.ClassServiceAction))

			agent.GET("/:id/processes/pending-kill", h.PendingFor(shared.ClassProcessKill))
			agent.DELETE("/:id/processes/pending-kill/:name", h.CompleteKillOnce)
			agent.POST("/:id/processes/:name/kill/complete", h.CompleteKill)

			agent.GET("/:id/actions/pending", h.PendingFor(shared.ClassSystemAction))
			agent.POST("/:id/actions/clear-completed", h.ClearCompletedFor(shared.ClassSystemAction))
			agent.GET("/:id/actions/patch-pending", h.PendingFor(shared.ClassPatch))
			agent.POST("/:id/actions/patch-result", h.PatchResult)

			agent.GET("/:id/software/pending-removal", h.PendingFor(shared.ClassSoftwareUninstall))
			agent.GET("/:id/extensions/pending-removal", h.PendingFor(shared.ClassExtensionRemoval))

			agent.GET("/:id/action/usb-enable-pending", h.USBPending)
			agent.POST("/:id/action/usb-enabled", h.USBEnabled)
		}

		devices.POST("/:id/action/enable-usb", h.EnableUSB)
		devices.POST("/:id/action/:action", h.DeviceAction)
	}

	// WebSocket routes
	ws := s.router.Group("/ws")
	{
		ws.GET("/events", h.EventsWebSocket)
	}

	// 404 handler
	s.router.NoRoute(s.notFoundHandler)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   s.container.Config.App.Name,
		"version":   s.container.Config.App.Version,
		"timestamp": time.Now().UTC(),
	})
}

// readyCheck сервер готов, если включенные внешние хранилища доступны
func (s *Server) readyCheck(c *gin.Context) {
	database := "disabled"
	if s.container.Config.Database.Enabled {
		if s.container.DB == nil || s.container.DB.Ping(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "error",
				"error":  "Database not connected",
			})
			return
		}
		database = "connected"
	}

	redis := "disabled"
	if s.container.Config.Redis.Enabled {
		redis = "connected"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"database":  database,
		"redis":     redis,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) notFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "not_found",
		"message": "Endpoint not found",
		"path":    c.Request.URL.Path,
	})
}

func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Продолжаем обработку
		c.Next()

		// Логируем после обработки
		latency := time.Since(start)
		clientIP := c.ClientIP()
		method := c.Request.Method
		statusCode := c.Writer.Status()
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		if query != "" {
			path = path + "?" + query
		}

		logger := slog.Info
		if statusCode >= 400 {
			logger = slog.Warn
		}
		if statusCode >= 500 {
			logger = slog.Error
		}

		logger("HTTP request",
			"request_id", c.GetString("request_id"),
			"status", statusCode,
			"method", method,
			"path", path,
			"ip", clientIP,
			"latency", latency,
			"error", errorMessage,
		)
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", s.allowOrigin(c.GetHeader("Origin")))
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Actor")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// возвращает значение Access-Control-Allow-Origin для origin запроса
func (s *Server) allowOrigin(origin string) string {
	for _, allowed := range s.container.Config.Security.AllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if allowed == origin {
			return origin
		}
	}
	return ""
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuidutil.NewPrefixed("req")
		}

		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// Start запускает HTTP сервер
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("Starting HTTP server",
		"port", s.config.Port,
		"mode", s.config.Mode,
		"address", addr,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown выполняет graceful shutdown сервера
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server...")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
	}

	if s.container != nil {
		if err := s.container.Close(); err != nil {
			slog.Error("Failed to close dependencies", "error", err)
		}
	}

	slog.Info("Server shutdown completed")
	return nil
}

// GetRouter возвращает router для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
