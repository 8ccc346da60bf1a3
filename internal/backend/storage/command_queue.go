package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"FleetGuard/internal/backend/models"
	shared "FleetGuard/internal/shared/models"
	"FleetGuard/pkg/uuidutil"
)

// deviceQueue исходящие команды одного устройства.
// classes хранит записи в порядке постановки, byKey индексирует их по ключу дедупликации
type deviceQueue struct {
	mu      sync.RWMutex
	classes map[shared.CommandClass][]*models.CommandRecord
	byKey   map[string]*models.CommandRecord
}

func newDeviceQueue() *deviceQueue {
	return &deviceQueue{
		classes: make(map[shared.CommandClass][]*models.CommandRecord),
		byKey:   make(map[string]*models.CommandRecord),
	}
}

type commandQueue struct {
	devices sync.Map // device id -> *deviceQueue
	seq     atomic.Uint64
	now     func() time.Time
	newID   func() string
}

// NewCommandQueue создает очередь команд в памяти; now == nil означает time.Now
func NewCommandQueue(now func() time.Time) CommandQueue {
	if now == nil {
		now = time.Now
	}

	return &commandQueue{
		now:   now,
		newID: uuidutil.New,
	}
}

func (q *commandQueue) Enqueue(ctx context.Context, deviceID string, payload shared.Payload) (*models.CommandRecord, models.EnqueueStatus, error) {
	if deviceID == "" {
		return nil, "", ErrInvalidDeviceID
	}

	if payload == nil || !payload.Class().Queued() {
		return nil, "", ErrUnsupportedClass
	}

	if err := payload.Validate(); err != nil {
		return nil, "", err
	}

	key := models.DedupKey(deviceID, payload)
	dq := q.device(deviceID)

	dq.mu.Lock()
	defer dq.mu.Unlock()

	if existing, ok := dq.byKey[key]; ok {
		return existing.Clone(), models.EnqueueDeduplicated, nil
	}

	record := models.NewCommandRecord(q.newID(), deviceID, payload, q.now())
	record.Seq = q.seq.Add(1)

	dq.classes[record.Class] = append(dq.classes[record.Class], record)
	dq.byKey[key] = record

	return record.Clone(), models.EnqueueAccepted, nil
}

func (q *commandQueue) FetchPending(ctx context.Context, deviceID string, class shared.CommandClass) ([]*models.CommandRecord, error) {
	dq, ok := q.lookup(deviceID)
	if !ok {
		return []*models.CommandRecord{}, nil
	}

	dq.mu.RLock()
	defer dq.mu.RUnlock()

	if class != "" {
		return cloneRecords(dq.classes[class]), nil
	}

	var all []*models.CommandRecord
	for _, records := range dq.classes {
		all = append(all, cloneRecords(records)...)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Seq < all[j].Seq })

	if all == nil {
		all = []*models.CommandRecord{}
	}
	return all, nil
}

func (q *commandQueue) MarkDelivered(ctx context.Context, deviceID string, ids []string) (int, error) {
	dq, ok := q.lookup(deviceID)
	if !ok || len(ids) == 0 {
		return 0, nil
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	dq.mu.Lock()
	defer dq.mu.Unlock()

	now := q.now()
	marked := 0
	for _, records := range dq.classes {
		for _, record := range records {
			if _, ok := wanted[record.ID]; !ok || !record.Outstanding() {
				continue
			}
			delivered := now
			record.State = models.CommandStateDelivered
			record.DeliveryCount++
			record.LastDeliveredAt = &delivered
			marked++
		}
	}

	return marked, nil
}

func (q *commandQueue) Consume(ctx context.Context, deviceID string, class shared.CommandClass) ([]*models.CommandRecord, error) {
	if !class.Queued() {
		return nil, ErrUnsupportedClass
	}

	dq, ok := q.lookup(deviceID)
	if !ok {
		return []*models.CommandRecord{}, nil
	}

	dq.mu.Lock()
	defer dq.mu.Unlock()

	records := dq.classes[class]
	delete(dq.classes, class)

	consumed := make([]*models.CommandRecord, 0, len(records))
	for _, record := range records {
		delete(dq.byKey, record.DedupKey)
		record.State = models.CommandStateCompleted
		consumed = append(consumed, record.Clone())
	}

	return consumed, nil
}

func (q *commandQueue) MarkCompleted(ctx context.Context, deviceID string, class shared.CommandClass, refs []models.CompletionRef) ([]*models.CommandRecord, error) {
	if len(refs) == 0 {
		return []*models.CommandRecord{}, nil
	}

	return q.RemoveWhere(ctx, deviceID, class, func(record *models.CommandRecord) bool {
		for _, ref := range refs {
			if ref.Matches(record) {
				return true
			}
		}
		return false
	})
}

func (q *commandQueue) RemoveWhere(ctx context.Context, deviceID string, class shared.CommandClass, match func(*models.CommandRecord) bool) ([]*models.CommandRecord, error) {
	if !class.Queued() {
		return nil, ErrUnsupportedClass
	}

	dq, ok := q.lookup(deviceID)
	if !ok {
		return []*models.CommandRecord{}, nil
	}

	dq.mu.Lock()
	defer dq.mu.Unlock()

	records := dq.classes[class]
	kept := records[:0:0]
	removed := []*models.CommandRecord{}

	for _, record := range records {
		if match(record) {
			delete(dq.byKey, record.DedupKey)
			record.State = models.CommandStateCompleted
			removed = append(removed, record.Clone())
			continue
		}
		kept = append(kept, record)
	}

	if len(kept) == 0 {
		delete(dq.classes, class)
	} else {
		dq.classes[class] = kept
	}

	return removed, nil
}

func (q *commandQueue) ClearAll(ctx context.Context, deviceID string, class shared.CommandClass) (int, error) {
	if class != "" && !class.Queued() {
		return 0, ErrUnsupportedClass
	}

	dq, ok := q.lookup(deviceID)
	if !ok {
		return 0, nil
	}

	dq.mu.Lock()
	defer dq.mu.Unlock()

	cleared := 0
	for current, records := range dq.classes {
		if class != "" && current != class {
			continue
		}
		for _, record := range records {
			delete(dq.byKey, record.DedupKey)
		}
		cleared += len(records)
		delete(dq.classes, current)
	}

	return cleared, nil
}

func (q *commandQueue) Counts(ctx context.Context, deviceID string) (map[shared.CommandClass]int, error) {
	counts := make(map[shared.CommandClass]int)

	dq, ok := q.lookup(deviceID)
	if !ok {
		return counts, nil
	}

	dq.mu.RLock()
	defer dq.mu.RUnlock()

	for class, records := range dq.classes {
		counts[class] = len(records)
	}
	return counts, nil
}

func (q *commandQueue) Stats(ctx context.Context, stuckAfter int) (*models.QueueStats, error) {
	stats := &models.QueueStats{
		Outstanding: make(map[shared.CommandClass]int),
		Timestamp:   q.now(),
	}

	q.devices.Range(func(_, value any) bool {
		dq := value.(*deviceQueue)

		dq.mu.RLock()
		defer dq.mu.RUnlock()

		hasWork := false
		for class, records := range dq.classes {
			stats.Outstanding[class] += len(records)
			for _, record := range records {
				hasWork = true
				switch record.State {
				case models.CommandStatePending:
					stats.Pending++
				case models.CommandStateDelivered:
					stats.Delivered++
				}
				if stuckAfter > 0 && record.DeliveryCount >= stuckAfter {
					stats.Stuck++
				}
			}
		}

		if hasWork {
			stats.Devices++
		}
		return ctx.Err() == nil
	})

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("queue stats interrupted: %w", err)
	}

	return stats, nil
}

// возвращает очередь устройства, создавая ее при первом обращении
func (q *commandQueue) device(deviceID string) *deviceQueue {
	if dq, ok := q.devices.Load(deviceID); ok {
		return dq.(*deviceQueue)
	}

	dq, _ := q.devices.LoadOrStore(deviceID, newDeviceQueue())
	return dq.(*deviceQueue)
}

func (q *commandQueue) lookup(deviceID string) (*deviceQueue, bool) {
	dq, ok := q.devices.Load(deviceID)
	if !ok {
		return nil, false
	}
	return dq.(*deviceQueue), true
}

func cloneRecords(records []*models.CommandRecord) []*models.CommandRecord {
	clones := make([]*models.CommandRecord, 0, len(records))
	for _, record := range records {
		clones = append(clones, record.Clone())
	}
	return clones
}
