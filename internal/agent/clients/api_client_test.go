package client

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"FleetGuard/internal/backend/dependencies"
	"FleetGuard/internal/backend/server"
	"FleetGuard/internal/backend/storage"
	"FleetGuard/internal/config"
	shared "FleetGuard/internal/shared/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken  = "agent-secret"
	testDevice = "laptop-1"
)

var bg = context.Background()

func newBackend(t *testing.T) (*httptest.Server, *dependencies.Container) {
	t.Helper()

	cfg := &config.Config{
		App:      config.AppConfig{Name: "fleetguard", Version: "test"},
		Server:   config.ServerConfig{Port: 8080, Mode: "test"},
		Security: config.SecurityConfig{AgentToken: testToken, AllowedOrigins: []string{"*"}},
		Queue: config.QueueConfig{
			StuckAfter:         5,
			DefaultUSBDuration: 15 * time.Minute,
			MaxUSBDuration:     24 * time.Hour,
			EventsChannel:      "command_events",
		},
		Registry: config.RegistryConfig{LivenessThreshold: 2 * time.Minute, ReportHistory: 10},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	container, err := dependencies.NewContainer(bg, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	srv := server.New(&server.Config{Port: 8080, Mode: "test"}, container)
	ts := httptest.NewServer(srv.GetRouter())
	t.Cleanup(ts.Close)

	return ts, container
}

func TestClientPushesRegistry(t *testing.T) {
	ts, container := newBackend(t)
	api := NewAPIClient(ts.URL, testToken, testDevice, time.Second)

	require.NoError(t, api.PushInventory(bg, shared.Inventory{"hostname": "laptop-1", "cpu_count": 8}))
	require.NoError(t, api.PushReport(bg, &shared.TelemetryReport{Hostname: "laptop-1", Status: "online", CPU: 12.5}))
	require.NoError(t, api.PushServices(bg, []shared.ServiceInfo{{Name: "nginx", Status: "running", Enabled: true}}))
	require.NoError(t, api.PushSoftware(bg, nil))
	require.NoError(t, api.PushExtensions(bg, []shared.ExtensionInfo{{ID: "ms-python.python", Category: "vscode"}}))

	inventory, err := container.DeviceService.GetInventory(bg, testDevice)
	require.NoError(t, err)
	assert.Equal(t, "laptop-1", inventory["hostname"])

	device, err := container.DeviceService.GetDevice(bg, testDevice)
	require.NoError(t, err)
	assert.Len(t, device.Services, 1)
	assert.Len(t, device.Extensions, 1)
}

func TestClientServiceActionRoundTrip(t *testing.T) {
	ts, container := newBackend(t)
	api := NewAPIClient(ts.URL, testToken, testDevice, time.Second)

	_, err := container.QueueService.Enqueue(bg, "admin", testDevice, shared.ServiceActionPayload{Service: "nginx", Action: shared.ServiceRestart})
	require.NoError(t, err)

	commands, err := api.FetchCommands(bg, shared.ClassServiceAction)
	require.NoError(t, err)
	require.Len(t, commands, 1)
	assert.Equal(t, shared.ServiceActionPayload{Service: "nginx", Action: shared.ServiceRestart}, commands[0].Payload)
	assert.Equal(t, 1, commands[0].DeliveryCount)

	// без отчета команда остается видимой
	again, err := api.FetchCommands(bg, shared.ClassServiceAction)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, commands[0].ID, again[0].ID)

	require.NoError(t, api.ReportCompleted(bg, shared.ClassServiceAction, commands))

	empty, err := api.FetchCommands(bg, shared.ClassServiceAction)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestClientKillCompletionKeepsPersistent(t *testing.T) {
	ts, container := newBackend(t)
	api := NewAPIClient(ts.URL, testToken, testDevice, time.Second)

	for _, mode := range []shared.KillMode{shared.KillOnce, shared.KillPersistent} {
		_, err := container.QueueService.Enqueue(bg, "admin", testDevice, shared.ProcessKillPayload{Name: "chrome", Mode: mode})
		require.NoError(t, err)
	}

	commands, err := api.FetchCommands(bg, shared.ClassProcessKill)
	require.NoError(t, err)
	require.Len(t, commands, 2)

	require.NoError(t, api.ReportCompleted(bg, shared.ClassProcessKill, commands))
	// повторный отчет о уже снятой записи не ошибка
	require.NoError(t, api.ReportCompleted(bg, shared.ClassProcessKill, commands))

	left, err := api.FetchCommands(bg, shared.ClassProcessKill)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, shared.ProcessKillPayload{Name: "chrome", Mode: shared.KillPersistent}, left[0].Payload)
}

func TestClientConsumeOnRead(t *testing.T) {
	ts, container := newBackend(t)
	api := NewAPIClient(ts.URL, testToken, testDevice, time.Second)

	_, err := container.QueueService.Enqueue(bg, "admin", testDevice, shared.SoftwareUninstallPayload{Name: "zoom"})
	require.NoError(t, err)

	first, err := api.FetchCommands(bg, shared.ClassSoftwareUninstall)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := api.FetchCommands(bg, shared.ClassSoftwareUninstall)
	require.NoError(t, err)
	assert.Empty(t, second)

	assert.Error(t, api.ReportCompleted(bg, shared.ClassSoftwareUninstall, first))
}

func TestClientPatchResult(t *testing.T) {
	ts, container := newBackend(t)
	api := NewAPIClient(ts.URL, testToken, testDevice, time.Second)

	_, err := container.QueueService.Enqueue(bg, "admin", testDevice, shared.PatchPayload{})
	require.NoError(t, err)

	commands, err := api.FetchCommands(bg, shared.ClassPatch)
	require.NoError(t, err)
	require.Len(t, commands, 1)

	require.NoError(t, api.ReportPatchResult(bg, &shared.PatchResult{Status: shared.PatchFailed, ReportedAt: time.Now()}))
	commands, err = api.FetchCommands(bg, shared.ClassPatch)
	require.NoError(t, err)
	assert.Len(t, commands, 1)

	require.NoError(t, api.ReportPatchResult(bg, &shared.PatchResult{Status: shared.PatchSucceeded, ReportedAt: time.Now()}))
	commands, err = api.FetchCommands(bg, shared.ClassPatch)
	require.NoError(t, err)
	assert.Empty(t, commands)
}

func TestClientUSBGrant(t *testing.T) {
	ts, container := newBackend(t)
	api := NewAPIClient(ts.URL, testToken, testDevice, time.Second)

	status, err := api.USBStatus(bg)
	require.NoError(t, err)
	assert.False(t, status.EnableUSB)

	_, err = container.QueueService.GrantUSB(bg, "admin", testDevice, 10)
	require.NoError(t, err)

	status, err = api.USBStatus(bg)
	require.NoError(t, err)
	assert.True(t, status.EnableUSB)
	require.NotNil(t, status.Until)

	require.NoError(t, api.AcknowledgeUSB(bg))
	require.NoError(t, api.AcknowledgeUSB(bg))

	status, err = api.USBStatus(bg)
	require.NoError(t, err)
	assert.False(t, status.EnableUSB)
}

func TestClientExtensionLists(t *testing.T) {
	ts, container := newBackend(t)
	api := NewAPIClient(ts.URL, testToken, testDevice, time.Second)

	require.NoError(t, container.PolicyService.ReplaceLists(bg, "admin", testDevice, storage.PolicyBlacklist,
		shared.ExtensionLists{"vscode": {"evil.miner"}}))

	blacklist, err := api.Blacklist(bg)
	require.NoError(t, err)
	assert.Equal(t, []string{"evil.miner"}, blacklist["vscode"])

	whitelist, err := api.Whitelist(bg)
	require.NoError(t, err)
	assert.Empty(t, whitelist["vscode"])
}

func TestClientErrors(t *testing.T) {
	ts, _ := newBackend(t)

	t.Run("wrong token", func(t *testing.T) {
		api := NewAPIClient(ts.URL, "nope", testDevice, time.Second)
		_, err := api.FetchCommands(bg, shared.ClassServiceAction)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("backend down", func(t *testing.T) {
		down := httptest.NewServer(nil)
		down.Close()

		api := NewAPIClient(down.URL, testToken, testDevice, time.Second)
		err := api.PushInventory(bg, shared.Inventory{"hostname": "x"})
		assert.ErrorIs(t, err, ErrBackendDown)
	})

	t.Run("unknown class", func(t *testing.T) {
		api := NewAPIClient(ts.URL, testToken, testDevice, time.Second)
		_, err := api.FetchCommands(bg, shared.ClassUSBGrant)
		assert.Error(t, err)
	})
}
