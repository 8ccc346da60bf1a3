package runner

import (
	"context"

	"FleetGuard/internal/agent/domain"
)

// Runner выполняет команды одного класса на устройстве
type Runner interface {
	Execute(ctx context.Context, cmd domain.Command) (map[string]interface{}, error)
}

// Shell запуск внешних утилит ОС
type Shell interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ProcessTable завершение процессов по имени
type ProcessTable interface {
	KillByName(ctx context.Context, name string) (int, error)
}
