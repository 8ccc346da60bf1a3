package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FleetGuard/internal/backend/dependencies"
	"FleetGuard/internal/backend/server"
	"FleetGuard/internal/config"
	"FleetGuard/pkg/logger"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config %s", err)
	}

	// Настройка логирования
	log := logger.Setup(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	log.Info("Starting FleetGuard backend",
		slog.String("name", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.Int("port", cfg.Server.Port),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Создаем контейнер зависимостей
	container, err := dependencies.NewContainer(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to create dependency container", "error", err)
		os.Exit(1)
	}

	if cfg.Maintenance.Enabled {
		if err := container.MaintenanceService.Start(); err != nil {
			log.Error("Failed to start maintenance scheduler", "error", err)
			container.Close()
			os.Exit(1)
		}
	}

	// Создаем сервер
	srv := server.New(&server.Config{
		Port: cfg.Server.Port,
		Mode: cfg.Server.Mode,
	}, container)

	// Запускаем сервер в горутине
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигналы завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if cfg.Maintenance.Enabled {
		container.MaintenanceService.Stop()
	}

	// Graceful shutdown
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("Server stopped gracefully")
}
