package runner

import (
	"context"

	"FleetGuard/internal/agent/domain"
	shared "FleetGuard/internal/shared/models"
)

type ServiceRunner struct {
	shell Shell
}

func NewServiceRunner(shell Shell) *ServiceRunner {
	return &ServiceRunner{shell: shell}
}

func (r *ServiceRunner) Execute(ctx context.Context, cmd domain.Command) (map[string]interface{}, error) {
	payload, err := payloadAs[shared.ServiceActionPayload](cmd)
	if err != nil {
		return nil, err
	}

	var out []byte
	switch payload.Action {
	case shared.ServiceDelete:
		// удаление: остановить, выключить и замаскировать юнит
		out, err = r.shell.Run(ctx, "systemctl", "disable", "--now", payload.Service)
		if err == nil {
			var masked []byte
			masked, err = r.shell.Run(ctx, "systemctl", "mask", payload.Service)
			out = append(out, masked...)
		}
	default:
		out, err = r.shell.Run(ctx, "systemctl", string(payload.Action), payload.Service)
	}
	if err != nil {
		return nil, err
	}

	return outputResult(out, map[string]interface{}{
		"service": payload.Service,
		"action":  string(payload.Action),
	}), nil
}
