package constants

import "time"

const (
	HTTPTimeout        = 30 * time.Second
	LivenessThreshold  = 2 * time.Minute
	PollInterval       = 30 * time.Second
	DefaultUSBDuration = 15 * time.Minute
	MaxUSBDuration     = 24 * time.Hour
)
