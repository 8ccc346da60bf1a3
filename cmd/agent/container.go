package main

import (
	"log/slog"
	"os"

	client "FleetGuard/internal/agent/clients"
	collector "FleetGuard/internal/agent/collectors"
	handler "FleetGuard/internal/agent/handlers"
	runner "FleetGuard/internal/agent/runners"
	"FleetGuard/internal/config"
	"FleetGuard/pkg/logger"
)

type Container struct {
	Config         *config.AgentConfig
	Logger         *slog.Logger
	AgentHandler   *handler.AgentHandler
	APIClient      *client.APIClient
	Collector      *collector.Collector
	Shell          runner.Shell
	USB            *runner.USBRunner
	CommandRunner  *runner.Factory
	CommandHandler *handler.CommandHandler
}

func GetContainer(cfg *config.AgentConfig) *Container {
	container := &Container{Config: cfg}

	container.initLogger()
	container.initAPIClient()
	container.initCommandRunners()
	container.initHandlers()

	return container
}

func (c *Container) initLogger() {
	level := "info"
	if c.Config.Debug {
		level = "debug"
	}

	c.Logger = logger.Setup(logger.Config{
		Level:  level,
		Format: "json",
		Output: os.Stdout,
	}).With("device_id", c.Config.DeviceID)
}

func (c *Container) initAPIClient() {
	c.APIClient = client.NewAPIClient(c.Config.ServerURL, c.Config.Token, c.Config.DeviceID, c.Config.RequestTimeout)
}

func (c *Container) initCommandRunners() {
	opts := runner.DefaultOptions()
	opts.DryRun = c.Config.DryRun
	opts.CommandTimeout = c.Config.CommandTimeout
	opts.DefaultUSBDuration = c.Config.USBDuration

	// сбор инвентаря читает систему и в режиме dry run
	inspect := runner.NewExecShell(opts.CommandTimeout, c.Logger)
	c.Collector = collector.NewCollector(inspect, c.Logger.With("component", "collector"))

	c.Shell = inspect
	if opts.DryRun {
		c.Shell = runner.NewDryRunShell(c.Logger)
	}

	processes := runner.NewSystemProcesses(opts.DryRun, c.Logger)
	c.CommandRunner = runner.NewFactory(c.Shell, processes)
	c.USB = runner.NewUSBRunner(c.Shell, opts.DefaultUSBDuration, c.Logger.With("component", "usb"))
}

func (c *Container) initHandlers() {
	c.CommandHandler = handler.NewCommandHandler(c.CommandRunner, c.Logger)
	c.AgentHandler = handler.NewAgentHandler(c.Logger, c.APIClient, c.Collector, c.CommandHandler, c.USB, c.Config.PollInterval)
}
