package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"FleetGuard/internal/backend/storage"

	"github.com/robfig/cron/v3"
)

// MaintenanceService периодическая уборка хранилищ: истекшие USB гранты,
// старая история отчетов, предупреждения о зависших командах
type MaintenanceService struct {
	cron      *cron.Cron
	usb       storage.USBGrantStore
	devices   *DeviceService
	queue     *QueueService
	schedule  string
	retention time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

type MaintenanceConfig struct {
	Schedule        string
	ReportRetention time.Duration
}

func NewMaintenanceService(
	usb storage.USBGrantStore,
	devices *DeviceService,
	queue *QueueService,
	cfg MaintenanceConfig,
	logger *slog.Logger,
) *MaintenanceService {

	schedule := cfg.Schedule
	if schedule == "" {
		schedule = "@every 1m"
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &MaintenanceService{
		cron:      cron.New(),
		usb:       usb,
		devices:   devices,
		queue:     queue,
		schedule:  schedule,
		retention: cfg.ReportRetention,
		timeout:   30 * time.Second,
		logger:    logger,
	}
}

func (s *MaintenanceService) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("maintenance scheduler started", "schedule", s.schedule)
	return nil
}

// Stop ждет завершения выполняющегося прохода
func (s *MaintenanceService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("maintenance scheduler stopped")
}

// RunOnce один проход уборки; ошибки отдельных шагов только логируются
func (s *MaintenanceService) RunOnce(ctx context.Context) {
	if purged, err := s.usb.PurgeExpired(ctx); err != nil {
		s.logger.Error("failed to purge usb grants", "error", err)
	} else if purged > 0 {
		s.logger.Info("expired usb grants purged", "count", purged)
	}

	if s.retention > 0 && s.devices != nil {
		if deleted, err := s.devices.PruneReports(ctx, s.retention); err != nil {
			s.logger.Error("failed to prune report history", "error", err)
		} else if deleted > 0 {
			s.logger.Info("old reports deleted", "count", deleted)
		}
	}

	if s.queue != nil {
		stats, err := s.queue.Stats(ctx)
		if err != nil {
			s.logger.Error("failed to collect queue stats", "error", err)
			return
		}
		if stats.Stuck > 0 {
			s.logger.Warn("commands delivered repeatedly without completion",
				"stuck", stats.Stuck,
				"devices", stats.Devices,
			)
		}
	}
}
