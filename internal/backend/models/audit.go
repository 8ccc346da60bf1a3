package models

import "time"

// CommandLog запись аудита действия администратора
type CommandLog struct {
	ID      int64     `json:"id"`
	User    string    `json:"user"`
	Action  string    `json:"action"`
	Device  string    `json:"device"`
	Details string    `json:"details,omitempty"`
	Time    time.Time `json:"timestamp"`
}

type DashboardStats struct {
	TotalDevices   int           `json:"total_devices"`
	OnlineDevices  int           `json:"online_devices"`
	OfflineDevices int           `json:"offline_devices"`
	RecentActivity []*CommandLog `json:"recent_activity"`
}
