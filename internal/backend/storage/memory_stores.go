package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"FleetGuard/internal/backend/models"
	shared "FleetGuard/internal/shared/models"
)

// Хранилища в памяти для запуска без PostgreSQL и для тестов

type memoryAuditStore struct {
	mu     sync.RWMutex
	nextID int64
	logs   []*models.CommandLog
}

func NewMemoryAuditStore() AuditStore {
	return &memoryAuditStore{}
}

func (s *memoryAuditStore) Create(ctx context.Context, entry *models.CommandLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	s.nextID++
	entry.ID = s.nextID

	stored := *entry
	s.logs = append(s.logs, &stored)
	return nil
}

func (s *memoryAuditStore) ListRecent(ctx context.Context, limit int) ([]*models.CommandLog, error) {
	return s.list(limit, func(*models.CommandLog) bool { return true }), nil
}

func (s *memoryAuditStore) ListByDevice(ctx context.Context, deviceID string, limit int) ([]*models.CommandLog, error) {
	return s.list(limit, func(entry *models.CommandLog) bool { return entry.Device == deviceID }), nil
}

// новые записи первыми
func (s *memoryAuditStore) list(limit int, keep func(*models.CommandLog) bool) []*models.CommandLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*models.CommandLog{}
	for i := len(s.logs) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		if keep(s.logs[i]) {
			copied := *s.logs[i]
			result = append(result, &copied)
		}
	}
	return result
}

type memoryReportStore struct {
	mu      sync.RWMutex
	nextID  int64
	reports []*models.DeviceReport
}

func NewMemoryReportStore() ReportStore {
	return &memoryReportStore{}
}

func (s *memoryReportStore) Create(ctx context.Context, report *models.DeviceReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if report.Timestamp.IsZero() {
		report.Timestamp = time.Now()
	}
	s.nextID++
	report.ID = s.nextID

	stored := *report
	s.reports = append(s.reports, &stored)
	return nil
}

func (s *memoryReportStore) GetByDevice(ctx context.Context, deviceID string, limit int) ([]*models.DeviceReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*models.DeviceReport{}
	for i := len(s.reports) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		if s.reports[i].DeviceID == deviceID {
			copied := *s.reports[i]
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (s *memoryReportStore) DeleteOldReports(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.reports[:0]
	var deleted int64
	for _, report := range s.reports {
		if report.Timestamp.Before(olderThan) {
			deleted++
			continue
		}
		kept = append(kept, report)
	}
	s.reports = kept

	return deleted, nil
}

type memoryPolicyStore struct {
	mu    sync.RWMutex
	lists map[string]shared.ExtensionLists // device id + mode
}

func NewMemoryPolicyStore() PolicyStore {
	return &memoryPolicyStore{lists: make(map[string]shared.ExtensionLists)}
}

func (s *memoryPolicyStore) GetLists(ctx context.Context, deviceID string, mode PolicyMode) (shared.ExtensionLists, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyLists(s.lists[deviceID+"/"+string(mode)]), nil
}

func (s *memoryPolicyStore) ReplaceLists(ctx context.Context, deviceID string, mode PolicyMode, lists shared.ExtensionLists) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lists[deviceID+"/"+string(mode)] = copyLists(lists)
	return nil
}

func copyLists(lists shared.ExtensionLists) shared.ExtensionLists {
	copied := shared.ExtensionLists{}
	for category, entries := range lists {
		sorted := append([]string(nil), entries...)
		sort.Strings(sorted)
		copied[category] = sorted
	}
	return copied
}

type nopPublisher struct{}

// NewNopPublisher публикатор, отбрасывающий события
func NewNopPublisher() EventPublisher {
	return nopPublisher{}
}

func (nopPublisher) Publish(ctx context.Context, channel string, message interface{}) error {
	return nil
}

func (nopPublisher) Close() error { return nil }
