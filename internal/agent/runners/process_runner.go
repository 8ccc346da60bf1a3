package runner

import (
	"context"
	"fmt"
	"log/slog"

	"FleetGuard/internal/agent/domain"
	shared "FleetGuard/internal/shared/models"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessRunner завершает процессы по имени. Отсутствие процесса не ошибка:
// для once цель уже достигнута, persistent повторяется каждый цикл
type ProcessRunner struct {
	processes ProcessTable
}

func NewProcessRunner(processes ProcessTable) *ProcessRunner {
	return &ProcessRunner{processes: processes}
}

func (r *ProcessRunner) Execute(ctx context.Context, cmd domain.Command) (map[string]interface{}, error) {
	payload, err := payloadAs[shared.ProcessKillPayload](cmd)
	if err != nil {
		return nil, err
	}

	killed, err := r.processes.KillByName(ctx, payload.Name)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"process": payload.Name,
		"mode":    string(payload.Mode),
		"killed":  killed,
	}, nil
}

// SystemProcesses таблица процессов ОС через gopsutil
type SystemProcesses struct {
	dryRun bool
	logger *slog.Logger
}

func NewSystemProcesses(dryRun bool, logger *slog.Logger) *SystemProcesses {
	return &SystemProcesses{
		dryRun: dryRun,
		logger: logger,
	}
}

func (s *SystemProcesses) KillByName(ctx context.Context, name string) (int, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list processes: %w", err)
	}

	killed := 0
	var lastErr error
	for _, p := range procs {
		procName, err := p.NameWithContext(ctx)
		if err != nil || !MatchProcessName(procName, name) {
			continue
		}

		if s.dryRun {
			s.logger.Info("dry run kill", "process", procName, "pid", p.Pid)
			killed++
			continue
		}

		if err := p.KillWithContext(ctx); err != nil {
			lastErr = fmt.Errorf("failed to kill %s (pid %d): %w", procName, p.Pid, err)
			continue
		}
		killed++
	}

	if killed == 0 && lastErr != nil {
		return 0, lastErr
	}
	return killed, nil
}
