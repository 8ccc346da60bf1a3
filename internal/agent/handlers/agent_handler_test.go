package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"FleetGuard/internal/agent/domain"
	runner "FleetGuard/internal/agent/runners"
	shared "FleetGuard/internal/shared/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bg = context.Background()

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeShell записывает вызовы; failOn задает подстроки команд, которые завершаются ошибкой
type fakeShell struct {
	mu     sync.Mutex
	calls  []string
	failOn []string
}

func (s *fakeShell) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))

	s.mu.Lock()
	s.calls = append(s.calls, line)
	s.mu.Unlock()

	for _, fail := range s.failOn {
		if strings.Contains(line, fail) {
			return nil, fmt.Errorf("%s: exit status 1", line)
		}
	}
	return []byte("ok"), nil
}

func (s *fakeShell) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type fakeProcesses struct {
	killed []string
}

func (p *fakeProcesses) KillByName(ctx context.Context, name string) (int, error) {
	p.killed = append(p.killed, name)
	return 1, nil
}

type fakeInspector struct {
	metaErr    error
	extensions []shared.ExtensionInfo
}

func (i *fakeInspector) Metadata(ctx context.Context) (domain.AgentMetadata, error) {
	if i.metaErr != nil {
		return domain.AgentMetadata{}, i.metaErr
	}
	meta := domain.NewAgentMetadata()
	meta.Hostname = "laptop-1"
	return meta, nil
}

func (i *fakeInspector) Report(ctx context.Context, meta domain.AgentMetadata) (*shared.TelemetryReport, error) {
	return meta.Report(domain.SystemLoad{CPUUsage: 10}, "alice"), nil
}

func (i *fakeInspector) Services(ctx context.Context) ([]shared.ServiceInfo, error) {
	return []shared.ServiceInfo{{Name: "nginx", Status: "running"}}, nil
}

func (i *fakeInspector) Software(ctx context.Context) ([]shared.SoftwareItem, error) {
	return []shared.SoftwareItem{{Name: "zoom"}}, nil
}

func (i *fakeInspector) Extensions(ctx context.Context) ([]shared.ExtensionInfo, error) {
	return i.extensions, nil
}

type fakeUSB struct {
	enabled int
	expired int
}

func (u *fakeUSB) Enable(ctx context.Context, until *time.Time) (time.Time, error) {
	u.enabled++
	if until != nil {
		return *until, nil
	}
	return time.Now(), nil
}

func (u *fakeUSB) Expire(ctx context.Context) (bool, error) {
	u.expired++
	return false, nil
}

// fakeControlPlane хранит очереди по классам и принимает отчеты как сервер
type fakeControlPlane struct {
	pending    map[shared.CommandClass][]domain.Command
	completed  map[shared.CommandClass][]domain.Command
	patches    []*shared.PatchResult
	inventory  shared.Inventory
	report     *shared.TelemetryReport
	extensions []shared.ExtensionInfo
	whitelist  shared.ExtensionLists
	blacklist  shared.ExtensionLists
	usb        *shared.USBGrantStatus
	usbAcks    int
}

func newFakeControlPlane() *fakeControlPlane {
	return &fakeControlPlane{
		pending:   make(map[shared.CommandClass][]domain.Command),
		completed: make(map[shared.CommandClass][]domain.Command),
		whitelist: shared.ExtensionLists{},
		blacklist: shared.ExtensionLists{},
		usb:       &shared.USBGrantStatus{},
	}
}

func (f *fakeControlPlane) enqueue(payload shared.Payload, age time.Duration) domain.Command {
	cmd := domain.NewCommand(fmt.Sprintf("cmd-%d", len(f.pending[payload.Class()])+1), payload, time.Now().Add(-age))
	f.pending[cmd.Class] = append(f.pending[cmd.Class], cmd)
	return cmd
}

func (f *fakeControlPlane) PushInventory(ctx context.Context, inventory shared.Inventory) error {
	f.inventory = inventory
	return nil
}

func (f *fakeControlPlane) PushReport(ctx context.Context, report *shared.TelemetryReport) error {
	f.report = report
	return nil
}

func (f *fakeControlPlane) PushServices(ctx context.Context, services []shared.ServiceInfo) error {
	return nil
}

func (f *fakeControlPlane) PushSoftware(ctx context.Context, software []shared.SoftwareItem) error {
	return nil
}

func (f *fakeControlPlane) PushExtensions(ctx context.Context, extensions []shared.ExtensionInfo) error {
	f.extensions = extensions
	return nil
}

func (f *fakeControlPlane) Whitelist(ctx context.Context) (shared.ExtensionLists, error) {
	return f.whitelist, nil
}

func (f *fakeControlPlane) Blacklist(ctx context.Context) (shared.ExtensionLists, error) {
	return f.blacklist, nil
}

func (f *fakeControlPlane) FetchCommands(ctx context.Context, class shared.CommandClass) ([]domain.Command, error) {
	commands := append([]domain.Command(nil), f.pending[class]...)
	if class.ConsumeOnRead() {
		delete(f.pending, class)
	}
	return commands, nil
}

func (f *fakeControlPlane) ReportCompleted(ctx context.Context, class shared.CommandClass, commands []domain.Command) error {
	f.completed[class] = append(f.completed[class], commands...)
	return nil
}

func (f *fakeControlPlane) ReportPatchResult(ctx context.Context, result *shared.PatchResult) error {
	f.patches = append(f.patches, result)
	return nil
}

func (f *fakeControlPlane) USBStatus(ctx context.Context) (*shared.USBGrantStatus, error) {
	return f.usb, nil
}

func (f *fakeControlPlane) AcknowledgeUSB(ctx context.Context) error {
	f.usbAcks++
	f.usb = &shared.USBGrantStatus{}
	return nil
}

type agentFixture struct {
	api       *fakeControlPlane
	shell     *fakeShell
	processes *fakeProcesses
	inspector *fakeInspector
	usb       *fakeUSB
	agent     *AgentHandler
}

func newAgentFixture() *agentFixture {
	f := &agentFixture{
		api:       newFakeControlPlane(),
		shell:     &fakeShell{},
		processes: &fakeProcesses{},
		inspector: &fakeInspector{},
		usb:       &fakeUSB{},
	}

	commands := NewCommandHandler(runner.NewFactory(f.shell, f.processes), discardLogger())
	f.agent = NewAgentHandler(discardLogger(), f.api, f.inspector, commands, f.usb, time.Second)
	return f
}

func TestRunCycleReportsSucceededSubset(t *testing.T) {
	f := newAgentFixture()
	f.shell.failOn = []string{"restart redis"}

	f.api.enqueue(shared.ServiceActionPayload{Service: "nginx", Action: shared.ServiceRestart}, time.Minute)
	f.api.enqueue(shared.ServiceActionPayload{Service: "redis", Action: shared.ServiceRestart}, time.Second)

	summary := f.agent.RunCycle(bg)

	require.Len(t, f.api.completed[shared.ClassServiceAction], 1)
	assert.Equal(t, shared.ServiceActionPayload{Service: "nginx", Action: shared.ServiceRestart},
		f.api.completed[shared.ClassServiceAction][0].Payload)
	assert.Equal(t, 2, summary.Executed)
	assert.Empty(t, summary.FailedSteps)
	assert.Equal(t, "laptop-1", f.api.inventory["hostname"])
	assert.Equal(t, "alice", f.api.report.User)
}

func TestRunCycleExecutesOldestFirst(t *testing.T) {
	f := newAgentFixture()

	f.api.enqueue(shared.ServiceActionPayload{Service: "newer", Action: shared.ServiceStop}, time.Second)
	f.api.enqueue(shared.ServiceActionPayload{Service: "older", Action: shared.ServiceStop}, time.Hour)

	f.agent.RunCycle(bg)

	var stops []string
	for _, call := range f.shell.Calls() {
		if strings.HasPrefix(call, "systemctl stop") {
			stops = append(stops, call)
		}
	}
	assert.Equal(t, []string{"systemctl stop older", "systemctl stop newer"}, stops)
}

func TestRunCycleKillsAndConsumes(t *testing.T) {
	f := newAgentFixture()

	f.api.enqueue(shared.ProcessKillPayload{Name: "chrome", Mode: shared.KillPersistent}, time.Minute)
	f.api.enqueue(shared.SoftwareUninstallPayload{Name: "zoom"}, time.Minute)
	f.api.enqueue(shared.SystemActionPayload{Action: shared.SystemLockUser}, time.Minute)

	f.agent.RunCycle(bg)
	f.agent.RunCycle(bg)

	// persistent выполняется каждый цикл, удаление ПО только один раз
	assert.Equal(t, []string{"chrome", "chrome"}, f.processes.killed)

	removals := 0
	for _, call := range f.shell.Calls() {
		if call == "apt-get remove -y zoom" {
			removals++
		}
	}
	assert.Equal(t, 1, removals)
	assert.Len(t, f.api.completed[shared.ClassSystemAction], 2)
	assert.Contains(t, f.shell.Calls(), "loginctl lock-sessions")
}

func TestRunCycleReportsPatchResult(t *testing.T) {
	f := newAgentFixture()
	f.shell.failOn = []string{"upgrade"}
	f.api.enqueue(shared.PatchPayload{}, time.Minute)

	f.agent.RunCycle(bg)

	require.Len(t, f.api.patches, 1)
	assert.Equal(t, shared.PatchFailed, f.api.patches[0].Status)
	assert.Contains(t, f.api.patches[0].Details, "upgrade")

	f.shell.failOn = nil
	f.agent.RunCycle(bg)

	require.Len(t, f.api.patches, 2)
	assert.Equal(t, shared.PatchSucceeded, f.api.patches[1].Status)
}

func TestRunCycleEnforcesExtensionPolicy(t *testing.T) {
	f := newAgentFixture()
	f.inspector.extensions = []shared.ExtensionInfo{
		{ID: "ms-python.python", Category: "vscode"},
		{ID: "evil.miner", Category: "vscode"},
	}
	f.api.blacklist = shared.ExtensionLists{"vscode": {"evil.miner"}}

	f.agent.RunCycle(bg)

	assert.Contains(t, f.shell.Calls(), "code --uninstall-extension evil.miner")
	require.Len(t, f.api.extensions, 1)
	assert.Equal(t, "ms-python.python", f.api.extensions[0].ID)
}

func TestRunCycleStepsAreIndependent(t *testing.T) {
	f := newAgentFixture()
	f.inspector.metaErr = errors.New("host info unavailable")
	f.api.enqueue(shared.ServiceActionPayload{Service: "nginx", Action: shared.ServiceStart}, time.Minute)

	summary := f.agent.RunCycle(bg)

	assert.Contains(t, summary.FailedSteps, stepReport)
	assert.Len(t, f.api.completed[shared.ClassServiceAction], 1)
	assert.Equal(t, 1, f.usb.expired)
}

func TestRunCycleAppliesUSBGrant(t *testing.T) {
	f := newAgentFixture()
	until := time.Now().Add(10 * time.Minute)
	f.api.usb = &shared.USBGrantStatus{EnableUSB: true, Until: &until}

	f.agent.RunCycle(bg)
	assert.Equal(t, 1, f.usb.enabled)
	assert.Equal(t, 1, f.api.usbAcks)

	f.agent.RunCycle(bg)
	assert.Equal(t, 1, f.usb.enabled)
	assert.Equal(t, 2, f.usb.expired)
}

func TestViolates(t *testing.T) {
	ext := shared.ExtensionInfo{ID: "a.b", Category: "vscode"}

	assert.False(t, Violates(ext, nil, nil))
	assert.True(t, Violates(ext, nil, shared.ExtensionLists{"vscode": {"a.b"}}))
	assert.True(t, Violates(ext, shared.ExtensionLists{"vscode": {"c.d"}}, nil))
	assert.False(t, Violates(ext, shared.ExtensionLists{"vscode": {"a.b"}}, nil))
	assert.False(t, Violates(ext, shared.ExtensionLists{"chrome": {"c.d"}}, nil))
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newAgentFixture()
	ctx, cancel := context.WithCancel(bg)

	done := make(chan struct{})
	go func() {
		f.agent.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not stop")
	}
}
