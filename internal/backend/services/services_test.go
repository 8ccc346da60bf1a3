package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"FleetGuard/internal/backend/models"
	"FleetGuard/internal/backend/storage"

	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	clock    *testClock
	queue    *QueueService
	devices  *DeviceService
	policies *PolicyService
	audit    storage.AuditStore
	usb      storage.USBGrantStore
	events   storage.EventBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	audit := storage.NewMemoryAuditStore()
	usb := storage.NewUSBGrantStore(clock.Now)
	events := storage.NewLocalEvents()
	t.Cleanup(func() { events.Close() })

	queue := NewQueueService(
		storage.NewCommandQueue(clock.Now),
		usb,
		audit,
		events,
		QueueServiceConfig{StuckAfter: 3},
		logger,
	)
	queue.now = clock.Now

	devices := NewDeviceService(
		storage.NewDeviceRegistry(2*time.Minute, clock.Now),
		storage.NewMemoryReportStore(),
		audit,
		queue,
		DeviceServiceConfig{LivenessThreshold: 2 * time.Minute},
		logger,
	)
	devices.now = clock.Now

	return &fixture{
		clock:    clock,
		queue:    queue,
		devices:  devices,
		policies: NewPolicyService(storage.NewMemoryPolicyStore(), audit, logger),
		audit:    audit,
		usb:      usb,
		events:   events,
	}
}

// читает события из подписки, пока не наберет n штук
func collectEvents(t *testing.T, ch <-chan []byte, n int) []models.CommandEvent {
	t.Helper()

	events := make([]models.CommandEvent, 0, n)
	timeout := time.After(time.Second)
	for len(events) < n {
		select {
		case raw := <-ch:
			var event models.CommandEvent
			require.NoError(t, json.Unmarshal(raw, &event))
			events = append(events, event)
		case <-timeout:
			t.Fatalf("expected %d events, got %d", n, len(events))
		}
	}
	return events
}

var bg = context.Background()
