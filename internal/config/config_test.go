package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Queue.DefaultUSBDuration)
	assert.Equal(t, 2*time.Minute, cfg.Registry.LivenessThreshold)
	assert.Equal(t, "command_events", cfg.Queue.EventsChannel)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9090
  mode: release
database:
  enabled: true
  host: db.internal
queue:
  stuck_after: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	t.Setenv("FLEET_SERVER_PORT", "7070")
	t.Setenv("FLEET_SECURITY_AGENT_TOKEN", "secret")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 3, cfg.Queue.StuckAfter)
	assert.Equal(t, "secret", cfg.Security.AgentToken)
	assert.Contains(t, cfg.Database.GetDSN(), "host=db.internal")
}

func TestValidateConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  mode: chaos\n"), 0o600))

	_, err := LoadFrom(dir)
	assert.Error(t, err)
}

func TestLoadAgentDefaults(t *testing.T) {
	t.Setenv("FLEET_DEVICE_ID", "laptop-7")

	cfg, err := LoadAgent(NewAgentViper())
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, "laptop-7", cfg.DeviceID)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 15*time.Minute, cfg.USBDuration)
	assert.False(t, cfg.DryRun)
}

func TestLoadAgentEnvOverride(t *testing.T) {
	t.Setenv("FLEET_SERVER_URL", "https://fleet.example.com")
	t.Setenv("FLEET_POLL_INTERVAL", "5s")
	t.Setenv("FLEET_DRY_RUN", "true")
	t.Setenv("FLEET_TOKEN", "agent-secret")

	v := NewAgentViper()
	v.Set("device_id", "kiosk-1")

	cfg, err := LoadAgent(v)
	require.NoError(t, err)

	assert.Equal(t, "https://fleet.example.com", cfg.ServerURL)
	assert.Equal(t, "kiosk-1", cfg.DeviceID)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, "agent-secret", cfg.Token)
	assert.True(t, cfg.DryRun)
}

func TestLoadAgentInvalid(t *testing.T) {
	cases := map[string]string{
		"server_url":    "ftp://fleet",
		"poll_interval": "100ms",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			v := NewAgentViper()
			v.Set("device_id", "laptop-1")
			v.Set(key, value)

			_, err := LoadAgent(v)
			assert.Error(t, err)
		})
	}
}
