package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"FleetGuard/internal/backend/models"
	"FleetGuard/internal/backend/storage"
	"FleetGuard/internal/shared/constants"
	shared "FleetGuard/internal/shared/models"
	"FleetGuard/pkg/validator"
)

// PatchCompleter снимает команды обновления после успешного результата
type PatchCompleter interface {
	CompletePatch(ctx context.Context, deviceID string) (int, error)
}

// DeviceService реестр устройств: снимки инвентаря, история отчетов, статистика
type DeviceService struct {
	registry  storage.DeviceRegistry
	reports   storage.ReportStore
	audit     storage.AuditStore
	patches   PatchCompleter
	threshold time.Duration
	history   int
	now       func() time.Time
	logger    *slog.Logger
}

type DeviceServiceConfig struct {
	LivenessThreshold time.Duration
	ReportHistory     int
}

func NewDeviceService(
	registry storage.DeviceRegistry,
	reports storage.ReportStore,
	audit storage.AuditStore,
	patches PatchCompleter,
	cfg DeviceServiceConfig,
	logger *slog.Logger,
) *DeviceService {

	threshold := cfg.LivenessThreshold
	if threshold == 0 {
		threshold = constants.LivenessThreshold
	}

	history := cfg.ReportHistory
	if history <= 0 {
		history = 100
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &DeviceService{
		registry:  registry,
		reports:   reports,
		audit:     audit,
		patches:   patches,
		threshold: threshold,
		history:   history,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *DeviceService) UpsertInventory(ctx context.Context, deviceID string, inventory shared.Inventory) error {
	if err := checkDeviceID(deviceID); err != nil {
		return err
	}

	if len(inventory) == 0 {
		return fmt.Errorf("%w: empty inventory", ErrInvalidRequest)
	}

	if err := s.registry.UpsertInventory(ctx, deviceID, inventory); err != nil {
		s.logger.Error("failed to store inventory", "error", err, "device_id", deviceID)
		return fmt.Errorf("failed to store inventory: %w", err)
	}

	s.logger.Debug("inventory updated", "device_id", deviceID, "keys", len(inventory))
	return nil
}

// SubmitReport обновляет снимок телеметрии и дописывает отчет в историю
func (s *DeviceService) SubmitReport(ctx context.Context, deviceID string, report *shared.TelemetryReport) error {
	if err := checkDeviceID(deviceID); err != nil {
		return err
	}

	if err := s.registry.UpsertReport(ctx, deviceID, report); err != nil {
		s.logger.Error("failed to store report", "error", err, "device_id", deviceID)
		return fmt.Errorf("failed to store report: %w", err)
	}

	history := &models.DeviceReport{
		DeviceID:  deviceID,
		Hostname:  report.Hostname,
		OS:        report.OS,
		IP:        report.IP,
		Status:    report.Status,
		CPU:       report.CPU,
		RAM:       report.RAM,
		Disk:      report.Disk,
		Timestamp: s.now(),
	}

	// история вторична: снимок уже сохранен
	if err := s.reports.Create(ctx, history); err != nil {
		s.logger.Warn("failed to append report history", "error", err, "device_id", deviceID)
	}

	s.logger.Debug("report received",
		"device_id", deviceID,
		"cpu", report.CPU,
		"ram", report.RAM,
		"disk", report.Disk,
	)
	return nil
}

func (s *DeviceService) SetServices(ctx context.Context, deviceID string, services []shared.ServiceInfo) error {
	if err := checkDeviceID(deviceID); err != nil {
		return err
	}
	for _, svc := range services {
		if !validator.ValidateName(svc.Name) {
			return fmt.Errorf("%w: invalid service name %q", ErrInvalidRequest, svc.Name)
		}
	}

	if err := s.registry.SetServices(ctx, deviceID, services); err != nil {
		return fmt.Errorf("failed to store services: %w", err)
	}
	return nil
}

func (s *DeviceService) MergeSoftware(ctx context.Context, deviceID string, software []shared.SoftwareItem) error {
	if err := checkDeviceID(deviceID); err != nil {
		return err
	}
	for _, item := range software {
		if !validator.ValidateName(item.Name) {
			return fmt.Errorf("%w: invalid software name %q", ErrInvalidRequest, item.Name)
		}
	}

	if err := s.registry.MergeSoftware(ctx, deviceID, software); err != nil {
		return fmt.Errorf("failed to store software: %w", err)
	}
	return nil
}

func (s *DeviceService) SetExtensions(ctx context.Context, deviceID string, extensions []shared.ExtensionInfo) error {
	if err := checkDeviceID(deviceID); err != nil {
		return err
	}

	if err := s.registry.SetExtensions(ctx, deviceID, extensions); err != nil {
		return fmt.Errorf("failed to store extensions: %w", err)
	}
	return nil
}

// RecordPatchResult сохраняет результат; очередь обновления очищается только при успехе
func (s *DeviceService) RecordPatchResult(ctx context.Context, deviceID string, result *shared.PatchResult) error {
	if err := checkDeviceID(deviceID); err != nil {
		return err
	}

	if !validator.ValidateOneOf(string(result.Status),
		string(shared.PatchSucceeded), string(shared.PatchFailed), string(shared.PatchPending)) {
		return fmt.Errorf("%w: unknown patch status %q", ErrInvalidRequest, result.Status)
	}

	if result.ReportedAt.IsZero() {
		result.ReportedAt = s.now()
	}

	if err := s.registry.SetPatchResult(ctx, deviceID, result); err != nil {
		return fmt.Errorf("failed to store patch result: %w", err)
	}

	s.logger.Info("patch result recorded", "device_id", deviceID, "status", result.Status)

	if result.Status == shared.PatchSucceeded && s.patches != nil {
		if _, err := s.patches.CompletePatch(ctx, deviceID); err != nil {
			return err
		}
	}

	return nil
}

// PatchStatus pending, пока агент не прислал результат
func (s *DeviceService) PatchStatus(ctx context.Context, deviceID string) (*shared.PatchResult, error) {
	device, err := s.registry.Get(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	if device == nil || device.PatchResult == nil {
		return &shared.PatchResult{Status: shared.PatchPending}, nil
	}

	return device.PatchResult, nil
}

func (s *DeviceService) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	device, err := s.registry.Get(ctx, deviceID)
	if err != nil {
		s.logger.Error("failed to get device", "error", err, "device_id", deviceID)
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	if device == nil {
		return nil, fmt.Errorf("%w: device %s", ErrNotFound, deviceID)
	}

	return device, nil
}

// GetInventory ErrNotFound, если устройство не присылало инвентарь
func (s *DeviceService) GetInventory(ctx context.Context, deviceID string) (shared.Inventory, error) {
	device, err := s.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	if device.Inventory == nil {
		return nil, fmt.Errorf("%w: no inventory for %s", ErrNotFound, deviceID)
	}

	return device.Inventory, nil
}

func (s *DeviceService) ListDevices(ctx context.Context) ([]*models.Device, error) {
	devices, err := s.registry.List(ctx)
	if err != nil {
		s.logger.Error("failed to list devices", "error", err)
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

func (s *DeviceService) ReportHistory(ctx context.Context, deviceID string) ([]*models.DeviceReport, error) {
	reports, err := s.reports.GetByDevice(ctx, deviceID, s.history)
	if err != nil {
		return nil, fmt.Errorf("failed to get report history: %w", err)
	}
	return reports, nil
}

func (s *DeviceService) IsOnline(ctx context.Context, deviceID string) (bool, error) {
	return s.registry.IsOnline(ctx, deviceID, s.threshold)
}

// DashboardStats сводка по парку и последние действия администраторов
func (s *DeviceService) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	devices, err := s.ListDevices(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.DashboardStats{TotalDevices: len(devices)}
	now := s.now()
	for _, device := range devices {
		if device.IsOnline(now, s.threshold) {
			stats.OnlineDevices++
		}
	}
	stats.OfflineDevices = stats.TotalDevices - stats.OnlineDevices

	recent, err := s.audit.ListRecent(ctx, 10)
	if err != nil {
		s.logger.Warn("failed to load recent activity", "error", err)
		recent = []*models.CommandLog{}
	}
	stats.RecentActivity = recent

	return stats, nil
}

// CommandLog последние записи аудита, по всему парку или по устройству
func (s *DeviceService) CommandLog(ctx context.Context, deviceID string, limit int) ([]*models.CommandLog, error) {
	if limit <= 0 {
		limit = 100
	}

	var (
		logs []*models.CommandLog
		err  error
	)
	if deviceID == "" {
		logs, err = s.audit.ListRecent(ctx, limit)
	} else {
		logs, err = s.audit.ListByDevice(ctx, deviceID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read command log: %w", err)
	}

	return logs, nil
}

// PruneReports удаляет историю старше retention
func (s *DeviceService) PruneReports(ctx context.Context, retention time.Duration) (int64, error) {
	deleted, err := s.reports.DeleteOldReports(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to prune reports: %w", err)
	}
	return deleted, nil
}

func checkDeviceID(deviceID string) error {
	if !validator.ValidateDeviceID(deviceID) {
		return fmt.Errorf("%w: invalid device id %q", ErrInvalidRequest, deviceID)
	}
	return nil
}
