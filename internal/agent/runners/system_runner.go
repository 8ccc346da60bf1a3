package runner

import (
	"context"
	"fmt"

	"FleetGuard/internal/agent/domain"
	shared "FleetGuard/internal/shared/models"
)

var systemCommands = map[shared.SystemVerb][]string{
	shared.SystemShutdown:   {"shutdown", "-h", "+1"},
	shared.SystemRestart:    {"shutdown", "-r", "+1"},
	shared.SystemLockUser:   {"loginctl", "lock-sessions"},
	shared.SystemUnlockUser: {"loginctl", "unlock-sessions"},
}

// SystemRunner выключение и перезагрузка планируются через минуту,
// чтобы агент успел отчитаться о выполнении
type SystemRunner struct {
	shell Shell
}

func NewSystemRunner(shell Shell) *SystemRunner {
	return &SystemRunner{shell: shell}
}

func (r *SystemRunner) Execute(ctx context.Context, cmd domain.Command) (map[string]interface{}, error) {
	payload, err := payloadAs[shared.SystemActionPayload](cmd)
	if err != nil {
		return nil, err
	}

	argv, ok := systemCommands[payload.Action]
	if !ok {
		return nil, fmt.Errorf("unsupported system action: %s", payload.Action)
	}

	out, err := r.shell.Run(ctx, argv[0], argv[1:]...)
	if err != nil {
		return nil, err
	}

	return outputResult(out, map[string]interface{}{"action": string(payload.Action)}), nil
}

type PatchRunner struct {
	shell Shell
}

func NewPatchRunner(shell Shell) *PatchRunner {
	return &PatchRunner{shell: shell}
}

func (r *PatchRunner) Execute(ctx context.Context, cmd domain.Command) (map[string]interface{}, error) {
	if _, err := payloadAs[shared.PatchPayload](cmd); err != nil {
		return nil, err
	}

	updated, err := r.shell.Run(ctx, "apt-get", "update")
	if err != nil {
		return nil, err
	}

	upgraded, err := r.shell.Run(ctx, "apt-get", "upgrade", "-y")
	if err != nil {
		return nil, err
	}

	return outputResult(append(updated, upgraded...), nil), nil
}
