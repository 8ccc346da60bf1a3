package models

import (
	"time"

	shared "FleetGuard/internal/shared/models"
)

type QueueStats struct {
	Devices     int                         `json:"devices"`
	Outstanding map[shared.CommandClass]int `json:"outstanding"`
	Pending     int                         `json:"pending"`
	Delivered   int                         `json:"delivered"`
	Stuck       int                         `json:"stuck"` // доставлены много раз, но без подтверждения
	ActiveUSB   int                         `json:"active_usb_grants"`
	Timestamp   time.Time                   `json:"timestamp"`
}

type CommandEventType string

const (
	EventEnqueued     CommandEventType = "enqueued"
	EventDeduplicated CommandEventType = "deduplicated"
	EventDelivered    CommandEventType = "delivered"
	EventConsumed     CommandEventType = "consumed"
	EventCompleted    CommandEventType = "completed"
	EventCleared      CommandEventType = "cleared"
	EventUSBGranted   CommandEventType = "usb_granted"
	EventUSBCleared   CommandEventType = "usb_cleared"
)

// CommandEvent уведомление о переходе команды, публикуется для наблюдателей
type CommandEvent struct {
	Type      CommandEventType    `json:"type"`
	DeviceID  string              `json:"device_id"`
	Class     shared.CommandClass `json:"class"`
	CommandID string              `json:"command_id,omitempty"`
	Count     int                 `json:"count,omitempty"`
	Actor     string              `json:"actor,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}
