package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// USBRunner временно разрешает USB накопители и запрещает их по истечении гранта
type USBRunner struct {
	shell           Shell
	defaultDuration time.Duration
	now             func() time.Time
	logger          *slog.Logger

	mu    sync.Mutex
	until time.Time
}

func NewUSBRunner(shell Shell, defaultDuration time.Duration, logger *slog.Logger) *USBRunner {
	return &USBRunner{
		shell:           shell,
		defaultDuration: defaultDuration,
		now:             time.Now,
		logger:          logger,
	}
}

// Enable разрешает USB до until; нулевой until означает длительность по умолчанию
func (r *USBRunner) Enable(ctx context.Context, until *time.Time) (time.Time, error) {
	deadline := r.now().Add(r.defaultDuration)
	if until != nil && !until.IsZero() {
		deadline = *until
	}

	if _, err := r.shell.Run(ctx, "modprobe", "usb_storage"); err != nil {
		return time.Time{}, err
	}

	r.mu.Lock()
	if deadline.After(r.until) {
		r.until = deadline
	}
	deadline = r.until
	r.mu.Unlock()

	r.logger.Info("usb storage enabled", "until", deadline)
	return deadline, nil
}

// Expire снова запрещает USB, если разрешение истекло. Возвращает true при запрете
func (r *USBRunner) Expire(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.until.IsZero() || r.now().Before(r.until) {
		return false, nil
	}

	if _, err := r.shell.Run(ctx, "modprobe", "-r", "usb_storage"); err != nil {
		return false, err
	}

	r.until = time.Time{}
	r.logger.Info("usb storage disabled")
	return true, nil
}

// Until время окончания текущего разрешения, нулевое если его нет
func (r *USBRunner) Until() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.until
}
