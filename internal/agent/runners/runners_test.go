package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"FleetGuard/internal/agent/domain"
	shared "FleetGuard/internal/shared/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bg = context.Background()

type recordingShell struct {
	calls []string
	err   error
}

func (s *recordingShell) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	s.calls = append(s.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	return []byte("done"), s.err
}

func command(payload shared.Payload) domain.Command {
	return domain.NewCommand("cmd-1", payload, time.Now())
}

func TestServiceRunner(t *testing.T) {
	shell := &recordingShell{}
	r := NewServiceRunner(shell)

	data, err := r.Execute(bg, command(shared.ServiceActionPayload{Service: "nginx", Action: shared.ServiceRestart}))
	require.NoError(t, err)
	assert.Equal(t, "nginx", data["service"])
	assert.Equal(t, "done", data["output"])

	_, err = r.Execute(bg, command(shared.ServiceActionPayload{Service: "telnet", Action: shared.ServiceDelete}))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"systemctl restart nginx",
		"systemctl disable --now telnet",
		"systemctl mask telnet",
	}, shell.calls)
}

func TestRunnerRejectsForeignPayload(t *testing.T) {
	r := NewServiceRunner(&recordingShell{})

	cmd := command(shared.SoftwareUninstallPayload{Name: "zoom"})
	cmd.Class = shared.ClassServiceAction

	_, err := r.Execute(bg, cmd)
	assert.ErrorIs(t, err, shared.ErrInvalidPayload)
}

func TestSystemRunner(t *testing.T) {
	shell := &recordingShell{}
	r := NewSystemRunner(shell)

	for _, verb := range []shared.SystemVerb{shared.SystemShutdown, shared.SystemRestart, shared.SystemLockUser, shared.SystemUnlockUser} {
		_, err := r.Execute(bg, command(shared.SystemActionPayload{Action: verb}))
		require.NoError(t, err)
	}

	assert.Equal(t, []string{
		"shutdown -h +1",
		"shutdown -r +1",
		"loginctl lock-sessions",
		"loginctl unlock-sessions",
	}, shell.calls)
}

func TestShellErrorPropagates(t *testing.T) {
	shell := &recordingShell{err: errors.New("exit status 100")}

	_, err := NewSoftwareRunner(shell).Execute(bg, command(shared.SoftwareUninstallPayload{Name: "zoom"}))
	assert.Error(t, err)

	_, err = NewPatchRunner(shell).Execute(bg, command(shared.PatchPayload{}))
	assert.Error(t, err)
	// после неудачного apt-get update upgrade не запускается
	assert.Equal(t, []string{"apt-get remove -y zoom", "apt-get update"}, shell.calls)
}

type countingProcesses struct {
	names []string
}

func (p *countingProcesses) KillByName(ctx context.Context, name string) (int, error) {
	p.names = append(p.names, name)
	return 0, nil
}

func TestProcessRunnerWithoutMatches(t *testing.T) {
	processes := &countingProcesses{}
	r := NewProcessRunner(processes)

	data, err := r.Execute(bg, command(shared.ProcessKillPayload{Name: "chrome", Mode: shared.KillOnce}))
	require.NoError(t, err)
	assert.Equal(t, 0, data["killed"])
	assert.Equal(t, []string{"chrome"}, processes.names)
}

func TestMatchProcessName(t *testing.T) {
	assert.True(t, MatchProcessName("chrome", "chrome"))
	assert.True(t, MatchProcessName("Chrome.exe", "chrome"))
	assert.True(t, MatchProcessName("/usr/bin/chrome", "chrome.exe"))
	assert.False(t, MatchProcessName("chromium", "chrome"))
	assert.False(t, MatchProcessName("", ""))
}

func TestFactory(t *testing.T) {
	f := NewFactory(&recordingShell{}, &countingProcesses{})

	for _, class := range shared.QueueClasses {
		r, err := f.GetRunner(class)
		require.NoError(t, err, class)
		assert.NotNil(t, r)
	}

	_, err := f.GetRunner(shared.ClassUSBGrant)
	assert.Error(t, err)
}

func TestUSBRunnerExpiry(t *testing.T) {
	shell := &recordingShell{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	r := NewUSBRunner(shell, 15*time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.now = func() time.Time { return now }

	until, err := r.Enable(bg, nil)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), until)

	// более короткий грант не сокращает уже выданный
	shorter := now.Add(5 * time.Minute)
	until, err = r.Enable(bg, &shorter)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), until)

	expired, err := r.Expire(bg)
	require.NoError(t, err)
	assert.False(t, expired)

	now = now.Add(20 * time.Minute)
	expired, err = r.Expire(bg)
	require.NoError(t, err)
	assert.True(t, expired)
	assert.True(t, r.Until().IsZero())

	assert.Equal(t, []string{"modprobe usb_storage", "modprobe usb_storage", "modprobe -r usb_storage"}, shell.calls)
}

func TestDryRunShell(t *testing.T) {
	shell := NewDryRunShell(slog.New(slog.NewTextHandler(io.Discard, nil)))

	out, err := shell.Run(bg, "shutdown", "-h", "+1")
	assert.NoError(t, err)
	assert.Empty(t, out)
}
