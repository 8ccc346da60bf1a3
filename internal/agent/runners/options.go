package runner

import (
	"fmt"
	"time"

	"FleetGuard/internal/agent/domain"
	shared "FleetGuard/internal/shared/models"
)

// Options общие параметры раннеров
type Options struct {
	DryRun             bool
	CommandTimeout     time.Duration
	DefaultUSBDuration time.Duration
}

func DefaultOptions() Options {
	return Options{
		CommandTimeout:     5 * time.Minute,
		DefaultUSBDuration: 15 * time.Minute,
	}
}

func payloadAs[T shared.Payload](cmd domain.Command) (T, error) {
	payload, ok := cmd.Payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s command carries %T", shared.ErrInvalidPayload, cmd.Class, cmd.Payload)
	}
	return payload, nil
}

func outputResult(out []byte, extra map[string]interface{}) map[string]interface{} {
	result := map[string]interface{}{
		"output": tail(out, 4096),
	}
	for key, value := range extra {
		result[key] = value
	}
	return result
}
