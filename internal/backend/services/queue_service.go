package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"FleetGuard/internal/backend/models"
	"FleetGuard/internal/backend/storage"
	"FleetGuard/internal/shared/constants"
	shared "FleetGuard/internal/shared/models"
)

// QueueService операции очереди команд со стороны администратора и агента.
// Каждое действие администратора пишется в аудит, каждый переход публикуется в канал событий
type QueueService struct {
	queue  storage.CommandQueue
	usb    storage.USBGrantStore
	audit  storage.AuditStore
	events storage.EventPublisher
	cfg    QueueServiceConfig
	now    func() time.Time
	logger *slog.Logger
}

type QueueServiceConfig struct {
	StuckAfter         int
	DefaultUSBDuration time.Duration
	MaxUSBDuration     time.Duration
	EventsChannel      string
}

// EnqueueResult ответ на постановку команды
type EnqueueResult struct {
	Status  models.EnqueueStatus  `json:"status"`
	Command *models.CommandRecord `json:"command"`
}

// USBGrantResult ответ на выдачу USB гранта
type USBGrantResult struct {
	Status models.EnqueueStatus `json:"status"`
	Grant  *models.USBGrant     `json:"grant"`
}

func NewQueueService(
	queue storage.CommandQueue,
	usb storage.USBGrantStore,
	audit storage.AuditStore,
	events storage.EventPublisher,
	cfg QueueServiceConfig,
	logger *slog.Logger,
) *QueueService {

	if cfg.DefaultUSBDuration <= 0 {
		cfg.DefaultUSBDuration = constants.DefaultUSBDuration
	}
	if cfg.MaxUSBDuration <= 0 {
		cfg.MaxUSBDuration = constants.MaxUSBDuration
	}
	if cfg.EventsChannel == "" {
		cfg.EventsChannel = "command_events"
	}

	if events == nil {
		events = storage.NewNopPublisher()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &QueueService{
		queue:  queue,
		usb:    usb,
		audit:  audit,
		events: events,
		cfg:    cfg,
		now:    time.Now,
		logger: logger,
	}
}

// Enqueue ставит команду в очередь устройства; повтор эквивалентной команды не создает новую запись
func (s *QueueService) Enqueue(ctx context.Context, actor, deviceID string, payload shared.Payload) (*EnqueueResult, error) {
	if err := checkDeviceID(deviceID); err != nil {
		return nil, err
	}

	record, status, err := s.queue.Enqueue(ctx, deviceID, payload)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidPayload) || errors.Is(err, storage.ErrUnsupportedClass) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		s.logger.Error("failed to enqueue command",
			"error", err,
			"device_id", deviceID,
		)
		return nil, fmt.Errorf("failed to enqueue command: %w", err)
	}

	s.logger.Info("command enqueued",
		"device_id", deviceID,
		"class", record.Class,
		"command_id", record.ID,
		"status", status,
		"actor", actor,
	)

	s.recordAudit(ctx, actor, deviceID, string(record.Class), describePayload(payload))

	eventType := models.EventEnqueued
	if status == models.EnqueueDeduplicated {
		eventType = models.EventDeduplicated
	}
	s.publish(ctx, models.CommandEvent{
		Type:      eventType,
		DeviceID:  deviceID,
		Class:     record.Class,
		CommandID: record.ID,
		Actor:     actor,
	})

	return &EnqueueResult{Status: status, Command: record}, nil
}

// ListOutstanding все незавершенные команды устройства в порядке постановки
func (s *QueueService) ListOutstanding(ctx context.Context, deviceID string) ([]*models.CommandRecord, error) {
	records, err := s.queue.FetchPending(ctx, deviceID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list commands: %w", err)
	}
	return records, nil
}

func (s *QueueService) PendingCounts(ctx context.Context, deviceID string) (map[shared.CommandClass]int, error) {
	counts, err := s.queue.Counts(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to count commands: %w", err)
	}
	return counts, nil
}

// ClearClass административная очистка класса; пустой класс очищает все
func (s *QueueService) ClearClass(ctx context.Context, actor, deviceID string, class shared.CommandClass) (int, error) {
	if class != "" && !class.Queued() {
		return 0, fmt.Errorf("%w: unknown command class %q", ErrInvalidRequest, class)
	}

	cleared, err := s.queue.ClearAll(ctx, deviceID, class)
	if err != nil {
		return 0, fmt.Errorf("failed to clear commands: %w", err)
	}

	s.logger.Info("commands cleared",
		"device_id", deviceID,
		"class", class,
		"count", cleared,
		"actor", actor,
	)

	s.recordAudit(ctx, actor, deviceID, "clear-commands", fmt.Sprintf("class=%s cleared=%d", classOrAll(class), cleared))
	s.publish(ctx, models.CommandEvent{Type: models.EventCleared, DeviceID: deviceID, Class: class, Count: cleared, Actor: actor})

	return cleared, nil
}

// ClearKill снимает запрет на процесс: удаляет записи с указанным именем и режимом
func (s *QueueService) ClearKill(ctx context.Context, actor, deviceID, name string, mode shared.KillMode) (int, error) {
	removed, err := s.queue.RemoveWhere(ctx, deviceID, shared.ClassProcessKill, killMatcher(name, mode))
	if err != nil {
		return 0, fmt.Errorf("failed to clear process kill: %w", err)
	}

	s.recordAudit(ctx, actor, deviceID, "clear-kill", fmt.Sprintf("process=%s mode=%s removed=%d", name, mode, len(removed)))
	s.publish(ctx, models.CommandEvent{
		Type:     models.EventCleared,
		DeviceID: deviceID,
		Class:    shared.ClassProcessKill,
		Count:    len(removed),
		Actor:    actor,
	})

	return len(removed), nil
}

// FetchForAgent выдает команды класса агенту.
// Для классов с подтверждением записи остаются в очереди и отмечаются доставленными,
// для классов consume-on-read изымаются целиком
func (s *QueueService) FetchForAgent(ctx context.Context, deviceID string, class shared.CommandClass) ([]*models.CommandRecord, error) {
	if !class.Queued() {
		return nil, fmt.Errorf("%w: unknown command class %q", ErrInvalidRequest, class)
	}

	if class.ConsumeOnRead() {
		records, err := s.queue.Consume(ctx, deviceID, class)
		if err != nil {
			return nil, fmt.Errorf("failed to consume commands: %w", err)
		}
		if len(records) > 0 {
			s.logger.Info("commands consumed",
				"device_id", deviceID,
				"class", class,
				"count", len(records),
			)
			s.publish(ctx, models.CommandEvent{Type: models.EventConsumed, DeviceID: deviceID, Class: class, Count: len(records)})
		}
		return records, nil
	}

	records, err := s.queue.FetchPending(ctx, deviceID, class)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch commands: %w", err)
	}
	if len(records) == 0 {
		return records, nil
	}

	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}

	if _, err := s.queue.MarkDelivered(ctx, deviceID, ids); err != nil {
		// отметка доставки справочная, ответ агенту важнее
		s.logger.Warn("failed to mark commands delivered",
			"error", err,
			"device_id", deviceID,
			"class", class,
		)
	} else {
		now := s.now()
		for _, record := range records {
			record.State = models.CommandStateDelivered
			record.DeliveryCount++
			record.LastDeliveredAt = &now
		}
	}

	s.logger.Debug("commands delivered",
		"device_id", deviceID,
		"class", class,
		"count", len(records),
	)
	s.publish(ctx, models.CommandEvent{Type: models.EventDelivered, DeviceID: deviceID, Class: class, Count: len(records)})

	return records, nil
}

// CompleteFromReport разбирает отчет агента и удаляет ровно перечисленные записи.
// Ссылки на неизвестные записи игнорируются
func (s *QueueService) CompleteFromReport(ctx context.Context, deviceID string, class shared.CommandClass, body []byte) (int, error) {
	if !class.Queued() || class.ConsumeOnRead() {
		return 0, fmt.Errorf("%w: class %q has no completion report", ErrInvalidRequest, class)
	}

	refs, err := models.ParseCompletionRefs(class, body)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if class == shared.ClassProcessKill {
		return s.completeKills(ctx, deviceID, "", refs)
	}

	removed, err := s.queue.MarkCompleted(ctx, deviceID, class, refs)
	if err != nil {
		return 0, fmt.Errorf("failed to complete commands: %w", err)
	}

	s.completed(ctx, deviceID, class, removed)
	return len(removed), nil
}

// CompleteKillOnce подтверждение агента по имени процесса; затрагивает только режим once.
// Возвращает ErrNotFound, если подходящей записи нет
func (s *QueueService) CompleteKillOnce(ctx context.Context, deviceID, name string) error {
	removed, err := s.queue.RemoveWhere(ctx, deviceID, shared.ClassProcessKill, killMatcher(name, shared.KillOnce))
	if err != nil {
		return fmt.Errorf("failed to complete process kill: %w", err)
	}

	if len(removed) == 0 {
		return fmt.Errorf("%w: no pending kill for process %q", ErrNotFound, name)
	}

	s.completed(ctx, deviceID, shared.ClassProcessKill, removed)
	return nil
}

// CompleteKill отчет о завершении для процесса; пустое тело означает "все once записи с этим именем"
func (s *QueueService) CompleteKill(ctx context.Context, deviceID, name string, body []byte) (int, error) {
	var refs []models.CompletionRef
	if len(body) > 0 {
		parsed, err := models.ParseCompletionRefs(shared.ClassProcessKill, body)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		refs = parsed
	}

	return s.completeKills(ctx, deviceID, name, refs)
}

// persistent записи агент не снимает никогда
func (s *QueueService) completeKills(ctx context.Context, deviceID, name string, refs []models.CompletionRef) (int, error) {
	removed, err := s.queue.RemoveWhere(ctx, deviceID, shared.ClassProcessKill, func(record *models.CommandRecord) bool {
		kill, ok := record.Payload.(shared.ProcessKillPayload)
		if !ok || kill.Mode != shared.KillOnce {
			return false
		}
		if name != "" && kill.Name != name {
			return false
		}
		if len(refs) == 0 {
			return name != ""
		}
		for _, ref := range refs {
			if ref.Matches(record) {
				return true
			}
		}
		return false
	})
	if err != nil {
		return 0, fmt.Errorf("failed to complete process kills: %w", err)
	}

	s.completed(ctx, deviceID, shared.ClassProcessKill, removed)
	return len(removed), nil
}

// GrantUSB выдает временное разрешение USB; minutes <= 0 означает длительность по умолчанию
func (s *QueueService) GrantUSB(ctx context.Context, actor, deviceID string, minutes int) (*USBGrantResult, error) {
	if err := checkDeviceID(deviceID); err != nil {
		return nil, err
	}

	// минуты сравниваются до умножения, иначе большое значение переполняет Duration
	if minutes < 0 || int64(minutes) > int64(s.cfg.MaxUSBDuration/time.Minute) {
		return nil, fmt.Errorf("%w: usb grant longer than %s", ErrInvalidRequest, s.cfg.MaxUSBDuration)
	}

	duration := s.cfg.DefaultUSBDuration
	if minutes > 0 {
		duration = time.Duration(minutes) * time.Minute
	}
	if duration > s.cfg.MaxUSBDuration {
		return nil, fmt.Errorf("%w: usb grant longer than %s", ErrInvalidRequest, s.cfg.MaxUSBDuration)
	}

	now := s.now()
	grant := &models.USBGrant{
		DeviceID:  deviceID,
		GrantedBy: actor,
		GrantedAt: now,
		ExpiresAt: now.Add(duration),
	}

	status, err := s.usb.Grant(ctx, grant)
	if err != nil {
		return nil, fmt.Errorf("failed to grant usb access: %w", err)
	}

	current, err := s.usb.Get(ctx, deviceID)
	if err != nil || current == nil {
		current = grant
	}

	s.logger.Info("usb access granted",
		"device_id", deviceID,
		"until", current.ExpiresAt,
		"status", status,
		"actor", actor,
	)

	s.recordAudit(ctx, actor, deviceID, "enable-usb", fmt.Sprintf("duration=%s", duration))
	s.publish(ctx, models.CommandEvent{Type: models.EventUSBGranted, DeviceID: deviceID, Class: shared.ClassUSBGrant, Actor: actor})

	return &USBGrantResult{Status: status, Grant: current}, nil
}

// USBStatus состояние гранта для агента; истекший грант удаляется при чтении
func (s *QueueService) USBStatus(ctx context.Context, deviceID string) (*shared.USBGrantStatus, error) {
	grant, err := s.usb.Get(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to read usb grant: %w", err)
	}

	if grant == nil {
		return &shared.USBGrantStatus{EnableUSB: false}, nil
	}

	until := grant.ExpiresAt
	return &shared.USBGrantStatus{EnableUSB: true, Until: &until}, nil
}

// AcknowledgeUSB агент применил грант; повторное подтверждение ничего не меняет
func (s *QueueService) AcknowledgeUSB(ctx context.Context, deviceID string) (bool, error) {
	cleared, err := s.usb.Clear(ctx, deviceID)
	if err != nil {
		return false, fmt.Errorf("failed to clear usb grant: %w", err)
	}

	if cleared {
		s.logger.Info("usb grant acknowledged", "device_id", deviceID)
		s.publish(ctx, models.CommandEvent{Type: models.EventUSBCleared, DeviceID: deviceID, Class: shared.ClassUSBGrant})
	}

	return cleared, nil
}

func (s *QueueService) Stats(ctx context.Context) (*models.QueueStats, error) {
	stats, err := s.queue.Stats(ctx, s.cfg.StuckAfter)
	if err != nil {
		s.logger.Error("failed to collect queue stats", "error", err)
		return nil, fmt.Errorf("failed to collect queue stats: %w", err)
	}

	active, err := s.usb.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count usb grants: %w", err)
	}
	stats.ActiveUSB = active

	return stats, nil
}

func (s *QueueService) completed(ctx context.Context, deviceID string, class shared.CommandClass, removed []*models.CommandRecord) {
	if len(removed) == 0 {
		return
	}

	s.logger.Info("commands completed",
		"device_id", deviceID,
		"class", class,
		"count", len(removed),
	)

	for _, record := range removed {
		s.publish(ctx, models.CommandEvent{
			Type:      models.EventCompleted,
			DeviceID:  deviceID,
			Class:     class,
			CommandID: record.ID,
		})
	}
}

// аудит вспомогательный: ошибка записи не отменяет операцию над очередью
func (s *QueueService) recordAudit(ctx context.Context, actor, deviceID, action, details string) {
	if s.audit == nil {
		return
	}

	entry := &models.CommandLog{
		User:    actor,
		Action:  action,
		Device:  deviceID,
		Details: details,
		Time:    s.now(),
	}

	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log",
			"error", err,
			"device_id", deviceID,
			"action", action,
		)
	}
}

func (s *QueueService) publish(ctx context.Context, event models.CommandEvent) {
	event.Timestamp = s.now()

	if err := s.events.Publish(ctx, s.cfg.EventsChannel, event); err != nil {
		s.logger.Warn("failed to publish command event",
			"error", err,
			"device_id", event.DeviceID,
			"type", event.Type,
		)
	}
}

func killMatcher(name string, mode shared.KillMode) func(*models.CommandRecord) bool {
	return func(record *models.CommandRecord) bool {
		kill, ok := record.Payload.(shared.ProcessKillPayload)
		return ok && kill.Name == name && kill.Mode == mode
	}
}

func describePayload(payload shared.Payload) string {
	switch p := payload.(type) {
	case shared.ServiceActionPayload:
		return fmt.Sprintf("%s %s", p.Action, p.Service)
	case shared.ProcessKillPayload:
		return fmt.Sprintf("kill %s (%s)", p.Name, p.Mode)
	case shared.SoftwareUninstallPayload:
		return "uninstall " + p.Name
	case shared.ExtensionRemovalPayload:
		return "remove extension " + p.Name
	case shared.SystemActionPayload:
		return string(p.Action)
	case shared.PatchPayload:
		return "patch system"
	default:
		return ""
	}
}

func classOrAll(class shared.CommandClass) string {
	if class == "" {
		return "all"
	}
	return string(class)
}

// CompletePatch снимает команды обновления после успешного отчета агента
func (s *QueueService) CompletePatch(ctx context.Context, deviceID string) (int, error) {
	removed, err := s.queue.RemoveWhere(ctx, deviceID, shared.ClassPatch, func(*models.CommandRecord) bool { return true })
	if err != nil {
		return 0, fmt.Errorf("failed to complete patch: %w", err)
	}

	s.completed(ctx, deviceID, shared.ClassPatch, removed)
	return len(removed), nil
}
