package storage

import (
	"context"
	"testing"
	"time"

	"FleetGuard/internal/backend/models"
	shared "FleetGuard/internal/shared/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryUpsertAndLiveness(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	registry := NewDeviceRegistry(2*time.Minute, clock.Now)

	device, err := registry.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Nil(t, device)

	require.NoError(t, registry.UpsertReport(ctx, "d1", &shared.TelemetryReport{
		Hostname: "ws-01",
		OS:       "linux",
		IP:       "10.0.0.5",
		CPU:      12.5,
	}))

	device, err = registry.Get(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, device)
	assert.Equal(t, "ws-01", device.Hostname)
	assert.Equal(t, models.DeviceStatusOnline, device.Status)
	assert.Equal(t, 12.5, device.Telemetry.CPU)

	clock.Advance(3 * time.Minute)

	online, err := registry.IsOnline(ctx, "d1", 2*time.Minute)
	require.NoError(t, err)
	assert.False(t, online)

	device, err = registry.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusOffline, device.Status)

	online, err = registry.IsOnline(ctx, "ghost", time.Minute)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestRegistryMergeSoftwareByName(t *testing.T) {
	ctx := context.Background()
	registry := NewDeviceRegistry(time.Minute, nil)

	require.NoError(t, registry.MergeSoftware(ctx, "d1", []shared.SoftwareItem{
		{Name: "zoom", Version: "5.0"},
		{Name: "git", Version: "2.40"},
	}))
	require.NoError(t, registry.MergeSoftware(ctx, "d1", []shared.SoftwareItem{
		{Name: "zoom", Version: "6.1"},
		{Name: "vim", Version: "9.0"},
	}))

	device, err := registry.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []shared.SoftwareItem{
		{Name: "zoom", Version: "6.1"},
		{Name: "git", Version: "2.40"},
		{Name: "vim", Version: "9.0"},
	}, device.Software)
}

func TestRegistryReplacesServices(t *testing.T) {
	ctx := context.Background()
	registry := NewDeviceRegistry(time.Minute, nil)

	require.NoError(t, registry.SetServices(ctx, "d1", []shared.ServiceInfo{{Name: "nginx"}, {Name: "sshd"}}))
	require.NoError(t, registry.SetServices(ctx, "d1", []shared.ServiceInfo{{Name: "cron"}}))
	require.NoError(t, registry.UpsertInventory(ctx, "d2", shared.Inventory{"os": "windows"}))

	device, err := registry.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []shared.ServiceInfo{{Name: "cron"}}, device.Services)

	devices, err := registry.List(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "d1", devices[0].ID)
	assert.Equal(t, "windows", devices[1].OS)

	assert.ErrorIs(t, registry.SetServices(ctx, "", nil), ErrInvalidDeviceID)
}
