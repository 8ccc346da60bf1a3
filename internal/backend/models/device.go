package models

import (
	"time"

	shared "FleetGuard/internal/shared/models"
)

type DeviceStatus string

const (
	DeviceStatusOnline  DeviceStatus = "online"
	DeviceStatusOffline DeviceStatus = "offline"
)

// Device последнее известное состояние устройства
type Device struct {
	ID          string                  `json:"id"`
	Hostname    string                  `json:"hostname"`
	IP          string                  `json:"ip"`
	OS          string                  `json:"os"`
	Status      DeviceStatus            `json:"status"`
	Telemetry   *shared.TelemetryReport `json:"telemetry,omitempty"`
	Inventory   shared.Inventory        `json:"inventory,omitempty"`
	Services    []shared.ServiceInfo    `json:"services,omitempty"`
	Software    []shared.SoftwareItem   `json:"software,omitempty"`
	Extensions  []shared.ExtensionInfo  `json:"extensions,omitempty"`
	PatchResult *shared.PatchResult     `json:"patch_result,omitempty"`
	FirstSeen   time.Time               `json:"first_seen"`
	LastContact time.Time               `json:"last_contact"`
}

// IsOnline чистая функция от now - last_contact
func (d *Device) IsOnline(now time.Time, threshold time.Duration) bool {
	if d.LastContact.IsZero() {
		return false
	}
	return now.Sub(d.LastContact) < threshold
}

// DeviceReport запись истории отчетов (хранится в БД)
type DeviceReport struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"device_id"`
	Hostname  string    `json:"hostname"`
	OS        string    `json:"os"`
	IP        string    `json:"ip"`
	Status    string    `json:"status"`
	CPU       float64   `json:"cpu"`
	RAM       float64   `json:"ram"`
	Disk      float64   `json:"disk"`
	Timestamp time.Time `json:"timestamp"`
}

// USBGrant временное разрешение USB для устройства
type USBGrant struct {
	DeviceID  string    `json:"device_id"`
	GrantedBy string    `json:"granted_by,omitempty"`
	GrantedAt time.Time `json:"granted_at"`
	ExpiresAt time.Time `json:"until"`
}

func (g *USBGrant) Valid(now time.Time) bool {
	return now.Before(g.ExpiresAt)
}
