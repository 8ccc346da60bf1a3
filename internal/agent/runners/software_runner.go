package runner

import (
	"context"

	"FleetGuard/internal/agent/domain"
	shared "FleetGuard/internal/shared/models"
)

type SoftwareRunner struct {
	shell Shell
}

func NewSoftwareRunner(shell Shell) *SoftwareRunner {
	return &SoftwareRunner{shell: shell}
}

func (r *SoftwareRunner) Execute(ctx context.Context, cmd domain.Command) (map[string]interface{}, error) {
	payload, err := payloadAs[shared.SoftwareUninstallPayload](cmd)
	if err != nil {
		return nil, err
	}

	out, err := r.shell.Run(ctx, "apt-get", "remove", "-y", payload.Name)
	if err != nil {
		return nil, err
	}

	return outputResult(out, map[string]interface{}{"software": payload.Name}), nil
}

type ExtensionRunner struct {
	shell Shell
}

func NewExtensionRunner(shell Shell) *ExtensionRunner {
	return &ExtensionRunner{shell: shell}
}

func (r *ExtensionRunner) Execute(ctx context.Context, cmd domain.Command) (map[string]interface{}, error) {
	payload, err := payloadAs[shared.ExtensionRemovalPayload](cmd)
	if err != nil {
		return nil, err
	}

	out, err := r.shell.Run(ctx, "code", "--uninstall-extension", payload.Name)
	if err != nil {
		return nil, err
	}

	return outputResult(out, map[string]interface{}{"extension": payload.Name}), nil
}
