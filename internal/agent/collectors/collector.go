package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"FleetGuard/internal/agent/domain"
	runner "FleetGuard/internal/agent/runners"
	shared "FleetGuard/internal/shared/models"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// Collector собирает инвентарь, телеметрию и снимки сервисов, ПО и расширений
type Collector struct {
	shell    runner.Shell
	diskPath string
	logger   *slog.Logger

	cpuUsage   func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	cpuInfo    func(ctx context.Context) ([]cpu.InfoStat, error)
	memory     func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage  func(ctx context.Context, path string) (*disk.UsageStat, error)
	hostInfo   func(ctx context.Context) (*host.InfoStat, error)
	users      func(ctx context.Context) ([]host.UserStat, error)
	interfaces func(ctx context.Context) (psnet.InterfaceStatList, error)
}

func NewCollector(shell runner.Shell, logger *slog.Logger) *Collector {
	return &Collector{
		shell:      shell,
		diskPath:   "/",
		logger:     logger,
		cpuUsage:   cpu.PercentWithContext,
		cpuInfo:    cpu.InfoWithContext,
		memory:     mem.VirtualMemoryWithContext,
		diskUsage:  disk.UsageWithContext,
		hostInfo:   host.InfoWithContext,
		users:      host.UsersWithContext,
		interfaces: psnet.InterfacesWithContext,
	}
}

func (c *Collector) Metadata(ctx context.Context) (domain.AgentMetadata, error) {
	meta := domain.NewAgentMetadata()

	info, err := c.hostInfo(ctx)
	if err != nil {
		return meta, fmt.Errorf("failed to read host info: %w", err)
	}

	meta.Hostname = info.Hostname
	meta.Platform = info.Platform
	meta.PlatformVersion = info.PlatformVersion
	meta.KernelVersion = info.KernelVersion
	meta.BootTime = time.Unix(int64(info.BootTime), 0).UTC()
	if meta.Hostname == "" {
		meta.Hostname, _ = os.Hostname()
	}

	if cpus, err := c.cpuInfo(ctx); err != nil {
		c.logger.Warn("cpu info unavailable", "error", err)
	} else if len(cpus) > 0 {
		meta.CPUModel = cpus[0].ModelName
	}

	if vm, err := c.memory(ctx); err != nil {
		c.logger.Warn("memory info unavailable", "error", err)
	} else {
		meta.MemoryMB = int64(vm.Total / 1024 / 1024)
	}

	if usage, err := c.diskUsage(ctx, c.diskPath); err != nil {
		c.logger.Warn("disk info unavailable", "error", err)
	} else {
		meta.DiskGB = float64(usage.Total) / (1 << 30)
	}

	if ifaces, err := c.interfaces(ctx); err != nil {
		c.logger.Warn("network interfaces unavailable", "error", err)
	} else {
		meta.IPAddress = primaryIPv4(ifaces)
	}

	return meta, nil
}

func (c *Collector) Load(ctx context.Context) (domain.SystemLoad, error) {
	var load domain.SystemLoad

	percents, err := c.cpuUsage(ctx, 0, false)
	if err != nil {
		return load, fmt.Errorf("failed to read cpu usage: %w", err)
	}
	if len(percents) > 0 {
		load.CPUUsage = percents[0]
	}

	vm, err := c.memory(ctx)
	if err != nil {
		return load, fmt.Errorf("failed to read memory usage: %w", err)
	}
	load.MemoryUsage = vm.UsedPercent

	usage, err := c.diskUsage(ctx, c.diskPath)
	if err != nil {
		return load, fmt.Errorf("failed to read disk usage: %w", err)
	}
	load.DiskUsage = usage.UsedPercent

	return load, nil
}

// Report телеметрический отчет; user первый вошедший пользователь
func (c *Collector) Report(ctx context.Context, meta domain.AgentMetadata) (*shared.TelemetryReport, error) {
	load, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}

	user := ""
	if users, err := c.users(ctx); err == nil && len(users) > 0 {
		user = users[0].User
	}

	return meta.Report(load, user), nil
}

func (c *Collector) Services(ctx context.Context) ([]shared.ServiceInfo, error) {
	units, err := c.shell.Run(ctx, "systemctl", "list-units", "--type=service", "--all", "--no-legend", "--plain", "--no-pager")
	if err != nil {
		return nil, err
	}

	files, err := c.shell.Run(ctx, "systemctl", "list-unit-files", "--type=service", "--no-legend", "--plain", "--no-pager")
	if err != nil {
		c.logger.Warn("unit files unavailable", "error", err)
	}

	return ParseServices(units, ParseUnitFiles(files)), nil
}

func (c *Collector) Software(ctx context.Context) ([]shared.SoftwareItem, error) {
	out, err := c.shell.Run(ctx, "dpkg-query", "-W", "-f=${Package}\t${Version}\t${Maintainer}\n")
	if err != nil {
		return nil, err
	}
	return ParseDpkg(out), nil
}

func (c *Collector) Extensions(ctx context.Context) ([]shared.ExtensionInfo, error) {
	out, err := c.shell.Run(ctx, "code", "--list-extensions", "--show-versions")
	if err != nil {
		return nil, err
	}
	return ParseVSCodeExtensions(out), nil
}

func primaryIPv4(ifaces psnet.InterfaceStatList) string {
	for _, iface := range ifaces {
		if hasFlag(iface.Flags, "loopback") || !hasFlag(iface.Flags, "up") {
			continue
		}
		for _, addr := range iface.Addrs {
			ip, _, err := net.ParseCIDR(addr.Addr)
			if err != nil {
				ip = net.ParseIP(addr.Addr)
			}
			if ip != nil && ip.To4() != nil && !ip.IsLoopback() {
				return ip.String()
			}
		}
	}
	return ""
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}
	return false
}
