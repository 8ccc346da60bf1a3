package models

import "time"

// TelemetryReport периодический отчет агента о состоянии устройства
type TelemetryReport struct {
	Hostname string  `json:"hostname"`
	OS       string  `json:"os"`
	IP       string  `json:"ip"`
	Status   string  `json:"status"`
	User     string  `json:"user,omitempty"`
	CPU      float64 `json:"cpu"`  // % загрузки
	RAM      float64 `json:"ram"`  // % занятой памяти
	Disk     float64 `json:"disk"` // % занятого диска
}

// Inventory снимок инвентаря, сервер хранит его как непрозрачный объект
type Inventory map[string]any

type ServiceInfo struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Enabled bool   `json:"enabled"`
}

type SoftwareItem struct {
	Name      string `json:"name"`
	Version   string `json:"version,omitempty"`
	Publisher string `json:"publisher,omitempty"`
}

type ExtensionInfo struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Version  string `json:"version,omitempty"`
}

// ExtensionLists разрешенные или запрещенные идентификаторы по категориям (например "vscode")
type ExtensionLists map[string][]string

// BlacklistCategory категория, в которой дашборд хранит черный список
const BlacklistCategory = "vscode"

type PatchStatus string

const (
	PatchPending   PatchStatus = "pending"
	PatchSucceeded PatchStatus = "success"
	PatchFailed    PatchStatus = "failed"
)

type PatchResult struct {
	Status     PatchStatus `json:"status"`
	Details    string      `json:"details,omitempty"`
	ReportedAt time.Time   `json:"timestamp"`
}

// USBGrantStatus ответ на опрос агента о временном разрешении USB
type USBGrantStatus struct {
	EnableUSB bool       `json:"enable_usb"`
	Until     *time.Time `json:"until,omitempty"`
}
