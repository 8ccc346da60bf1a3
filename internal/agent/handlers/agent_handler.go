package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	client "FleetGuard/internal/agent/clients"
	"FleetGuard/internal/agent/domain"
	"FleetGuard/internal/shared/constants"
	shared "FleetGuard/internal/shared/models"
)

const (
	stepReport   = "report"
	stepPolicy   = "policy"
	stepSnapshot = "snapshot"
	stepUSB      = "usb"
)

// классы с подтверждением; системные действия последними, чтобы перезагрузка не прервала остальное
var acknowledgeClasses = []shared.CommandClass{
	shared.ClassServiceAction,
	shared.ClassProcessKill,
	shared.ClassPatch,
	shared.ClassSystemAction,
}

var consumeClasses = []shared.CommandClass{
	shared.ClassSoftwareUninstall,
	shared.ClassExtensionRemoval,
}

type AgentHandler struct {
	api          ControlPlane
	inspector    Inspector
	runner       *CommandHandler
	usb          USBController
	pollInterval time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

func NewAgentHandler(logger *slog.Logger, api ControlPlane, inspector Inspector, runner *CommandHandler, usb USBController, pollInterval time.Duration) *AgentHandler {
	if pollInterval <= 0 {
		pollInterval = constants.PollInterval
	}

	return &AgentHandler{
		api:          api,
		inspector:    inspector,
		runner:       runner,
		usb:          usb,
		pollInterval: pollInterval,
		now:          time.Now,
		logger:       logger,
	}
}

func (s *AgentHandler) Run(ctx context.Context) {
	for {
		summary := s.RunCycle(ctx)
		if len(summary.FailedSteps) > 0 {
			s.logger.Warn("cycle finished with failures", "failed_steps", summary.FailedSteps)
		} else {
			s.logger.Debug("cycle finished",
				"executed", summary.Executed,
				"succeeded", summary.Succeeded,
				"reported", summary.Reported,
			)
		}

		select {
		case <-ctx.Done():
			s.logger.Info("Stopping agent handler due to context cancellation")
			return
		case <-time.After(s.pollInterval):
		}
	}
}

// RunCycle один цикл согласования. Шаги независимы: ошибка шага логируется, цикл продолжается
func (s *AgentHandler) RunCycle(ctx context.Context) *domain.CycleSummary {
	summary := &domain.CycleSummary{}

	s.pushInventory(ctx, summary)
	s.reconcileExtensions(ctx, summary)

	for _, class := range acknowledgeClasses {
		if ctx.Err() != nil {
			return summary
		}
		s.runAcknowledged(ctx, class, summary)
	}

	for _, class := range consumeClasses {
		if ctx.Err() != nil {
			return summary
		}
		s.runConsumed(ctx, class, summary)
	}

	s.applyUSB(ctx, summary)

	return summary
}

// шаг 1: инвентарь и телеметрия
func (s *AgentHandler) pushInventory(ctx context.Context, summary *domain.CycleSummary) {
	meta, err := s.inspector.Metadata(ctx)
	if err != nil {
		s.stepFailed(summary, stepReport, err)
		return
	}

	if err := s.api.PushInventory(ctx, meta.Inventory()); err != nil {
		s.stepFailed(summary, stepReport, err)
		return
	}

	report, err := s.inspector.Report(ctx, meta)
	if err != nil {
		s.stepFailed(summary, stepReport, err)
		return
	}

	if err := s.api.PushReport(ctx, report); err != nil {
		s.stepFailed(summary, stepReport, err)
	}
}

// шаг 2: списки расширений, локальное применение и снимки состояния
func (s *AgentHandler) reconcileExtensions(ctx context.Context, summary *domain.CycleSummary) {
	installed, err := s.inspector.Extensions(ctx)
	if err != nil {
		s.stepFailed(summary, stepSnapshot, err)
	} else {
		installed = s.enforcePolicy(ctx, installed, summary)
		if err := s.api.PushExtensions(ctx, installed); err != nil {
			s.stepFailed(summary, stepSnapshot, err)
		}
	}

	if software, err := s.inspector.Software(ctx); err != nil {
		s.stepFailed(summary, stepSnapshot, err)
	} else if err := s.api.PushSoftware(ctx, software); err != nil {
		s.stepFailed(summary, stepSnapshot, err)
	}

	if services, err := s.inspector.Services(ctx); err != nil {
		s.stepFailed(summary, stepSnapshot, err)
	} else if err := s.api.PushServices(ctx, services); err != nil {
		s.stepFailed(summary, stepSnapshot, err)
	}
}

// удаляет запрещенные расширения и возвращает оставшиеся установленными
func (s *AgentHandler) enforcePolicy(ctx context.Context, installed []shared.ExtensionInfo, summary *domain.CycleSummary) []shared.ExtensionInfo {
	whitelist, err := s.api.Whitelist(ctx)
	if err != nil {
		s.stepFailed(summary, stepPolicy, err)
		return installed
	}

	blacklist, err := s.api.Blacklist(ctx)
	if err != nil {
		s.stepFailed(summary, stepPolicy, err)
		return installed
	}

	var violations []domain.Command
	for _, ext := range installed {
		if Violates(ext, whitelist, blacklist) {
			violations = append(violations, domain.NewCommand("policy-"+ext.ID, shared.ExtensionRemovalPayload{Name: ext.ID}, s.now()))
		}
	}

	if len(violations) == 0 {
		return installed
	}

	removed, _ := s.runner.ExecuteAll(ctx, violations)
	summary.Executed += len(violations)
	summary.Succeeded += len(removed)

	gone := make(map[string]struct{}, len(removed))
	for _, cmd := range removed {
		gone[cmd.Payload.(shared.ExtensionRemovalPayload).Name] = struct{}{}
	}

	remaining := make([]shared.ExtensionInfo, 0, len(installed))
	for _, ext := range installed {
		if _, ok := gone[ext.ID]; !ok {
			remaining = append(remaining, ext)
		}
	}
	return remaining
}

// Violates расширение в черном списке своей категории или вне непустого белого списка
func Violates(ext shared.ExtensionInfo, whitelist, blacklist shared.ExtensionLists) bool {
	if contains(blacklist[ext.Category], ext.ID) {
		return true
	}

	allowed := whitelist[ext.Category]
	return len(allowed) > 0 && !contains(allowed, ext.ID)
}

// шаг 3: классы с подтверждением, отчет только об успешных
func (s *AgentHandler) runAcknowledged(ctx context.Context, class shared.CommandClass, summary *domain.CycleSummary) {
	commands, err := s.api.FetchCommands(ctx, class)
	if err != nil {
		s.stepFailed(summary, string(class), err)
		return
	}
	if len(commands) == 0 {
		return
	}

	succeeded, results := s.runner.ExecuteAll(ctx, commands)
	summary.Executed += len(results)
	summary.Succeeded += len(succeeded)

	if class == shared.ClassPatch {
		s.reportPatches(ctx, results, summary)
		return
	}

	if err := s.api.ReportCompleted(ctx, class, succeeded); err != nil {
		s.stepFailed(summary, string(class), err)
		return
	}
	summary.Reported += len(succeeded)
}

func (s *AgentHandler) reportPatches(ctx context.Context, results []*domain.Result, summary *domain.CycleSummary) {
	for _, result := range results {
		patch := &shared.PatchResult{
			Status:     shared.PatchSucceeded,
			Details:    result.Output(),
			ReportedAt: s.now().UTC(),
		}
		if !result.Success {
			patch.Status = shared.PatchFailed
			patch.Details = result.Error
		}

		if err := s.api.ReportPatchResult(ctx, patch); err != nil {
			s.stepFailed(summary, string(shared.ClassPatch), err)
			continue
		}
		summary.Reported++
	}
}

// шаг 4: классы consume-on-read, выборка уже сняла записи с сервера
func (s *AgentHandler) runConsumed(ctx context.Context, class shared.CommandClass, summary *domain.CycleSummary) {
	commands, err := s.api.FetchCommands(ctx, class)
	if err != nil {
		s.stepFailed(summary, string(class), err)
		return
	}

	succeeded, results := s.runner.ExecuteAll(ctx, commands)
	summary.Executed += len(results)
	summary.Succeeded += len(succeeded)
}

// шаг 5: временное разрешение USB
func (s *AgentHandler) applyUSB(ctx context.Context, summary *domain.CycleSummary) {
	if _, err := s.usb.Expire(ctx); err != nil {
		s.stepFailed(summary, stepUSB, err)
	}

	status, err := s.api.USBStatus(ctx)
	if err != nil {
		s.stepFailed(summary, stepUSB, err)
		return
	}
	if !status.EnableUSB {
		return
	}

	if _, err := s.usb.Enable(ctx, status.Until); err != nil {
		s.stepFailed(summary, stepUSB, err)
		return
	}

	if err := s.api.AcknowledgeUSB(ctx); err != nil {
		s.stepFailed(summary, stepUSB, err)
		return
	}
	summary.Reported++
}

func (s *AgentHandler) stepFailed(summary *domain.CycleSummary, step string, err error) {
	summary.Fail(step)

	if errors.Is(err, client.ErrUnauthorized) {
		s.logger.Error("agent token rejected", "step", step, "error", err)
		return
	}
	s.logger.Warn("cycle step failed", "step", step, "error", err)
}

func contains(items []string, item string) bool {
	for _, candidate := range items {
		if candidate == item {
			return true
		}
	}
	return false
}
