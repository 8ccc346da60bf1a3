package handler

import (
	"context"
	"time"

	"FleetGuard/internal/agent/domain"
	shared "FleetGuard/internal/shared/models"
)

// ControlPlane сторона сервера, с которой агент согласует состояние
type ControlPlane interface {
	PushInventory(ctx context.Context, inventory shared.Inventory) error
	PushReport(ctx context.Context, report *shared.TelemetryReport) error
	PushServices(ctx context.Context, services []shared.ServiceInfo) error
	PushSoftware(ctx context.Context, software []shared.SoftwareItem) error
	PushExtensions(ctx context.Context, extensions []shared.ExtensionInfo) error
	Whitelist(ctx context.Context) (shared.ExtensionLists, error)
	Blacklist(ctx context.Context) (shared.ExtensionLists, error)
	FetchCommands(ctx context.Context, class shared.CommandClass) ([]domain.Command, error)
	ReportCompleted(ctx context.Context, class shared.CommandClass, commands []domain.Command) error
	ReportPatchResult(ctx context.Context, result *shared.PatchResult) error
	USBStatus(ctx context.Context) (*shared.USBGrantStatus, error)
	AcknowledgeUSB(ctx context.Context) error
}

// Inspector локальное состояние устройства
type Inspector interface {
	Metadata(ctx context.Context) (domain.AgentMetadata, error)
	Report(ctx context.Context, meta domain.AgentMetadata) (*shared.TelemetryReport, error)
	Services(ctx context.Context) ([]shared.ServiceInfo, error)
	Software(ctx context.Context) ([]shared.SoftwareItem, error)
	Extensions(ctx context.Context) ([]shared.ExtensionInfo, error)
}

// USBController применение временного разрешения USB
type USBController interface {
	Enable(ctx context.Context, until *time.Time) (time.Time, error)
	Expire(ctx context.Context) (bool, error)
}
