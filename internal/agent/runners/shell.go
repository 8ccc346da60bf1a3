package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

type ExecShell struct {
	timeout time.Duration
	logger  *slog.Logger
}

func NewExecShell(timeout time.Duration, logger *slog.Logger) *ExecShell {
	return &ExecShell{
		timeout: timeout,
		logger:  logger,
	}
}

func (s *ExecShell) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Debug("running command", "command", name, "args", strings.Join(args, " "))

	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, tail(out, 512))
	}
	return out, nil
}

// DryRunShell только логирует команды, ничего не выполняя
type DryRunShell struct {
	logger *slog.Logger
}

func NewDryRunShell(logger *slog.Logger) *DryRunShell {
	return &DryRunShell{logger: logger}
}

func (s *DryRunShell) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	s.logger.Info("dry run", "command", name, "args", strings.Join(args, " "))
	return nil, nil
}

func tail(out []byte, limit int) string {
	text := strings.TrimSpace(string(out))
	if len(text) > limit {
		text = text[len(text)-limit:]
	}
	return text
}
