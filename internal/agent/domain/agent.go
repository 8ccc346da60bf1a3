package domain

import (
	"runtime"
	"time"

	shared "FleetGuard/internal/shared/models"
)

const AgentVersion = "1.0.0"

// статус устройства в отчете агента
const StatusOnline = "online"

// AgentMetadata сведения об устройстве, отправляются как инвентарь
type AgentMetadata struct {
	IPAddress       string    `json:"ip_address"`
	Hostname        string    `json:"hostname"`
	OS              string    `json:"os"`
	Platform        string    `json:"platform"`
	PlatformVersion string    `json:"platform_version"`
	KernelVersion   string    `json:"kernel_version"`
	Arch            string    `json:"arch"`
	CPUModel        string    `json:"cpu_model"`
	CPUCount        int       `json:"cpu_count"`
	MemoryMB        int64     `json:"memory_mb"`
	DiskGB          float64   `json:"disk_gb"`
	BootTime        time.Time `json:"boot_time"`
	GoVersion       string    `json:"go_version"`
	AgentVersion    string    `json:"agent_version"`
}

func NewAgentMetadata() AgentMetadata {
	return AgentMetadata{
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		CPUCount:     runtime.NumCPU(),
		GoVersion:    runtime.Version(),
		AgentVersion: AgentVersion,
	}
}

// Inventory непрозрачный для сервера снимок инвентаря
func (m AgentMetadata) Inventory() shared.Inventory {
	return shared.Inventory{
		"ip_address":       m.IPAddress,
		"hostname":         m.Hostname,
		"os":               m.OS,
		"platform":         m.Platform,
		"platform_version": m.PlatformVersion,
		"kernel_version":   m.KernelVersion,
		"arch":             m.Arch,
		"cpu_model":        m.CPUModel,
		"cpu_count":        m.CPUCount,
		"memory_mb":        m.MemoryMB,
		"disk_gb":          m.DiskGB,
		"boot_time":        m.BootTime,
		"go_version":       m.GoVersion,
		"agent_version":    m.AgentVersion,
	}
}

// SystemLoad загрузка в процентах 0-100
type SystemLoad struct {
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`
	DiskUsage   float64 `json:"disk_usage"`
}

// Report собирает телеметрический отчет из сведений и загрузки
func (m AgentMetadata) Report(load SystemLoad, user string) *shared.TelemetryReport {
	return &shared.TelemetryReport{
		Hostname: m.Hostname,
		OS:       m.OS,
		IP:       m.IPAddress,
		Status:   StatusOnline,
		User:     user,
		CPU:      load.CPUUsage,
		RAM:      load.MemoryUsage,
		Disk:     load.DiskUsage,
	}
}
