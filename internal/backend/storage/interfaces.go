package storage

import (
	"context"
	"errors"
	"time"

	"FleetGuard/internal/backend/models"
	shared "FleetGuard/internal/shared/models"
)

var (
	ErrInvalidDeviceID  = errors.New("invalid device id")
	ErrUnsupportedClass = errors.New("command class is not queue based")
)

// CommandQueue очередь команд по устройствам.
// Все мутации одного устройства сериализуются его собственной блокировкой,
// устройства друг с другом не конкурируют
type CommandQueue interface {
	Enqueue(ctx context.Context, deviceID string, payload shared.Payload) (*models.CommandRecord, models.EnqueueStatus, error)
	// FetchPending не меняет состояние; class == "" возвращает все классы
	FetchPending(ctx context.Context, deviceID string, class shared.CommandClass) ([]*models.CommandRecord, error)
	MarkDelivered(ctx context.Context, deviceID string, ids []string) (int, error)
	Consume(ctx context.Context, deviceID string, class shared.CommandClass) ([]*models.CommandRecord, error)
	MarkCompleted(ctx context.Context, deviceID string, class shared.CommandClass, refs []models.CompletionRef) ([]*models.CommandRecord, error)
	RemoveWhere(ctx context.Context, deviceID string, class shared.CommandClass, match func(*models.CommandRecord) bool) ([]*models.CommandRecord, error)
	ClearAll(ctx context.Context, deviceID string, class shared.CommandClass) (int, error)
	Counts(ctx context.Context, deviceID string) (map[shared.CommandClass]int, error)
	Stats(ctx context.Context, stuckAfter int) (*models.QueueStats, error)
}

// DeviceRegistry кэш последнего известного состояния устройств (last-write-wins)
type DeviceRegistry interface {
	UpsertInventory(ctx context.Context, deviceID string, inventory shared.Inventory) error
	UpsertReport(ctx context.Context, deviceID string, report *shared.TelemetryReport) error
	SetServices(ctx context.Context, deviceID string, services []shared.ServiceInfo) error
	MergeSoftware(ctx context.Context, deviceID string, software []shared.SoftwareItem) error
	SetExtensions(ctx context.Context, deviceID string, extensions []shared.ExtensionInfo) error
	SetPatchResult(ctx context.Context, deviceID string, result *shared.PatchResult) error
	Get(ctx context.Context, deviceID string) (*models.Device, error)
	List(ctx context.Context) ([]*models.Device, error)
	IsOnline(ctx context.Context, deviceID string, threshold time.Duration) (bool, error)
}

// USBGrantStore временные разрешения USB, истекшие гранты удаляются при чтении
type USBGrantStore interface {
	Grant(ctx context.Context, grant *models.USBGrant) (models.EnqueueStatus, error)
	Get(ctx context.Context, deviceID string) (*models.USBGrant, error)
	Clear(ctx context.Context, deviceID string) (bool, error)
	PurgeExpired(ctx context.Context) (int, error)
	CountActive(ctx context.Context) (int, error)
}

type PolicyMode string

const (
	PolicyWhitelist PolicyMode = "whitelist"
	PolicyBlacklist PolicyMode = "blacklist"
)

// PolicyStore списки расширений, заменяются целиком
type PolicyStore interface {
	GetLists(ctx context.Context, deviceID string, mode PolicyMode) (shared.ExtensionLists, error)
	ReplaceLists(ctx context.Context, deviceID string, mode PolicyMode, lists shared.ExtensionLists) error
}

// AuditStore журнал действий администраторов
type AuditStore interface {
	Create(ctx context.Context, entry *models.CommandLog) error
	ListRecent(ctx context.Context, limit int) ([]*models.CommandLog, error)
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]*models.CommandLog, error)
}

// ReportStore история отчетов устройств
type ReportStore interface {
	Create(ctx context.Context, report *models.DeviceReport) error
	GetByDevice(ctx context.Context, deviceID string, limit int) ([]*models.DeviceReport, error)
	DeleteOldReports(ctx context.Context, olderThan time.Time) (int64, error)
}

// EventPublisher публикует уведомления о переходах команд
type EventPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Close() error
}

// EventSubscriber подписка на канал уведомлений; cancel закрывает подписку
type EventSubscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func() error, error)
}

// EventBus публикация и подписка вместе
type EventBus interface {
	EventPublisher
	EventSubscriber
}
