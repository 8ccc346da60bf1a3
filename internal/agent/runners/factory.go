package runner

import (
	"fmt"

	shared "FleetGuard/internal/shared/models"
)

type Factory struct {
	serviceRunner   *ServiceRunner
	processRunner   *ProcessRunner
	softwareRunner  *SoftwareRunner
	extensionRunner *ExtensionRunner
	systemRunner    *SystemRunner
	patchRunner     *PatchRunner
}

func NewFactory(shell Shell, processes ProcessTable) *Factory {
	return &Factory{
		serviceRunner:   NewServiceRunner(shell),
		processRunner:   NewProcessRunner(processes),
		softwareRunner:  NewSoftwareRunner(shell),
		extensionRunner: NewExtensionRunner(shell),
		systemRunner:    NewSystemRunner(shell),
		patchRunner:     NewPatchRunner(shell),
	}
}

func (f *Factory) GetRunner(class shared.CommandClass) (Runner, error) {
	switch class {
	case shared.ClassServiceAction:
		return f.serviceRunner, nil
	case shared.ClassProcessKill:
		return f.processRunner, nil
	case shared.ClassSoftwareUninstall:
		return f.softwareRunner, nil
	case shared.ClassExtensionRemoval:
		return f.extensionRunner, nil
	case shared.ClassSystemAction:
		return f.systemRunner, nil
	case shared.ClassPatch:
		return f.patchRunner, nil
	default:
		return nil, fmt.Errorf("unknown command class: %s", class)
	}
}
