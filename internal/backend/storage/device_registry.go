package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"FleetGuard/internal/backend/models"
	shared "FleetGuard/internal/shared/models"
)

// registryEntry срезы и карты внутри device только заменяются целиком, поэтому
// поверхностной копии под блокировкой достаточно для безопасного чтения
type registryEntry struct {
	mu     sync.RWMutex
	device models.Device
}

type deviceRegistry struct {
	devices   sync.Map // device id -> *registryEntry
	now       func() time.Time
	threshold time.Duration
}

// NewDeviceRegistry threshold задает порог, после которого устройство считается offline
func NewDeviceRegistry(threshold time.Duration, now func() time.Time) DeviceRegistry {
	if now == nil {
		now = time.Now
	}
	if threshold <= 0 {
		threshold = 2 * time.Minute
	}

	return &deviceRegistry{
		now:       now,
		threshold: threshold,
	}
}

func (r *deviceRegistry) UpsertInventory(ctx context.Context, deviceID string, inventory shared.Inventory) error {
	return r.update(deviceID, func(d *models.Device) {
		d.Inventory = inventory
		if ip, ok := inventory["ip"].(string); ok && ip != "" {
			d.IP = ip
		}
		if os, ok := inventory["os"].(string); ok && os != "" {
			d.OS = os
		}
	})
}

func (r *deviceRegistry) UpsertReport(ctx context.Context, deviceID string, report *shared.TelemetryReport) error {
	snapshot := *report
	return r.update(deviceID, func(d *models.Device) {
		d.Telemetry = &snapshot
		if report.Hostname != "" {
			d.Hostname = report.Hostname
		}
		if report.IP != "" {
			d.IP = report.IP
		}
		if report.OS != "" {
			d.OS = report.OS
		}
	})
}

func (r *deviceRegistry) SetServices(ctx context.Context, deviceID string, services []shared.ServiceInfo) error {
	snapshot := append([]shared.ServiceInfo(nil), services...)
	return r.update(deviceID, func(d *models.Device) {
		d.Services = snapshot
	})
}

// MergeSoftware объединяет список по имени: новые версии заменяют старые, остальное сохраняется
func (r *deviceRegistry) MergeSoftware(ctx context.Context, deviceID string, software []shared.SoftwareItem) error {
	return r.update(deviceID, func(d *models.Device) {
		byName := make(map[string]shared.SoftwareItem, len(d.Software)+len(software))
		order := make([]string, 0, len(d.Software)+len(software))

		for _, item := range append(append([]shared.SoftwareItem(nil), d.Software...), software...) {
			if _, seen := byName[item.Name]; !seen {
				order = append(order, item.Name)
			}
			byName[item.Name] = item
		}

		merged := make([]shared.SoftwareItem, 0, len(order))
		for _, name := range order {
			merged = append(merged, byName[name])
		}
		d.Software = merged
	})
}

func (r *deviceRegistry) SetExtensions(ctx context.Context, deviceID string, extensions []shared.ExtensionInfo) error {
	snapshot := append([]shared.ExtensionInfo(nil), extensions...)
	return r.update(deviceID, func(d *models.Device) {
		d.Extensions = snapshot
	})
}

func (r *deviceRegistry) SetPatchResult(ctx context.Context, deviceID string, result *shared.PatchResult) error {
	snapshot := *result
	return r.update(deviceID, func(d *models.Device) {
		d.PatchResult = &snapshot
	})
}

func (r *deviceRegistry) Get(ctx context.Context, deviceID string) (*models.Device, error) {
	value, ok := r.devices.Load(deviceID)
	if !ok {
		return nil, nil
	}

	return r.snapshot(value.(*registryEntry)), nil
}

func (r *deviceRegistry) List(ctx context.Context) ([]*models.Device, error) {
	devices := []*models.Device{}

	r.devices.Range(func(_, value any) bool {
		devices = append(devices, r.snapshot(value.(*registryEntry)))
		return true
	})

	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}

func (r *deviceRegistry) IsOnline(ctx context.Context, deviceID string, threshold time.Duration) (bool, error) {
	device, err := r.Get(ctx, deviceID)
	if err != nil || device == nil {
		return false, err
	}

	return device.IsOnline(r.now(), threshold), nil
}

// применяет изменение к записи устройства и обновляет время последнего контакта
func (r *deviceRegistry) update(deviceID string, mutate func(*models.Device)) error {
	if deviceID == "" {
		return ErrInvalidDeviceID
	}

	value, _ := r.devices.LoadOrStore(deviceID, &registryEntry{})
	entry := value.(*registryEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := r.now()
	if entry.device.ID == "" {
		entry.device.ID = deviceID
		entry.device.Hostname = deviceID
		entry.device.FirstSeen = now
	}

	mutate(&entry.device)
	entry.device.LastContact = now

	return nil
}

func (r *deviceRegistry) snapshot(entry *registryEntry) *models.Device {
	entry.mu.RLock()
	device := entry.device
	entry.mu.RUnlock()

	device.Status = models.DeviceStatusOffline
	if device.IsOnline(r.now(), r.threshold) {
		device.Status = models.DeviceStatusOnline
	}

	return &device
}
