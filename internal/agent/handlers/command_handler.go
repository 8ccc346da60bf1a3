package handler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"FleetGuard/internal/agent/domain"
	runner "FleetGuard/internal/agent/runners"
)

type CommandHandler struct {
	runnerFactory *runner.Factory
	logger        *slog.Logger
}

func NewCommandHandler(runnerFactory *runner.Factory, logger *slog.Logger) *CommandHandler {
	return &CommandHandler{
		runnerFactory: runnerFactory,
		logger:        logger,
	}
}

func (h *CommandHandler) ExecuteCommand(ctx context.Context, cmd domain.Command) *domain.Result {
	if cmd.Payload == nil {
		return domain.NewErrorResult(cmd, fmt.Errorf("command payload is empty"))
	}

	h.logger.Debug("Getting runner for command",
		"command_id", cmd.ID,
		"class", cmd.Class,
	)

	runner, err := h.runnerFactory.GetRunner(cmd.Class)
	if err != nil {
		return domain.NewErrorResult(cmd, err)
	}

	start := time.Now()

	data, err := runner.Execute(ctx, cmd)
	if err != nil {
		return domain.NewErrorResult(cmd, err)
	}

	responseTime := time.Since(start).Microseconds()
	return domain.NewSuccessResult(cmd, int(responseTime), data)
}

// ExecuteAll выполняет команды от старых к новым и возвращает только успешные.
// Упавшая команда не прерывает остальные
func (h *CommandHandler) ExecuteAll(ctx context.Context, commands []domain.Command) ([]domain.Command, []*domain.Result) {
	ordered := make([]domain.Command, len(commands))
	copy(ordered, commands)
	domain.SortOldestFirst(ordered)

	succeeded := make([]domain.Command, 0, len(ordered))
	results := make([]*domain.Result, 0, len(ordered))

	for _, cmd := range ordered {
		if ctx.Err() != nil {
			break
		}

		result := h.ExecuteCommand(ctx, cmd)
		results = append(results, result)

		if !result.Success {
			h.logger.Warn("command failed",
				"command_id", cmd.ID,
				"class", cmd.Class,
				"error", result.Error,
			)
			continue
		}

		h.logger.Info("command executed",
			"command_id", cmd.ID,
			"class", cmd.Class,
			"response_time_us", result.ResponseTime,
		)
		succeeded = append(succeeded, cmd)
	}

	return succeeded, results
}
