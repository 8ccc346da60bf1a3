package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"FleetGuard/internal/config"

	"github.com/spf13/cobra"
)

var (
	wg     = sync.WaitGroup{}
	agentv = config.NewAgentViper()
)

var rootcmd = &cobra.Command{
	Use:   "fleet-agent",
	Short: "Fleet agent reconciles this device with the fleet control plane",
	Long:  `Fleet agent periodically reports inventory and telemetry, pulls queued commands for this device, executes them locally and reports the completed ones back to the control plane`,

	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAgent(agentv)
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	},
}

var oncecmd = &cobra.Command{
	Use:   "once",
	Short: "runs a single reconciliation cycle and exits",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAgent(agentv)
		if err != nil {
			return err
		}

		container := GetContainer(cfg)
		summary := container.AgentHandler.RunCycle(cmd.Context())
		container.Logger.Info("cycle finished",
			"executed", summary.Executed,
			"succeeded", summary.Succeeded,
			"reported", summary.Reported,
			"failed_steps", summary.FailedSteps,
		)
		if len(summary.FailedSteps) > 0 {
			return fmt.Errorf("cycle steps failed: %v", summary.FailedSteps)
		}
		return nil
	},
}

var _ = func() (ret bool) {
	flags := rootcmd.PersistentFlags()
	flags.String("config", "", `path to an optional agent config file (yaml)`)
	flags.String("server-url", "http://localhost:8080", `base url of the fleet control plane`)
	flags.String("device-id", "", `identifier of this device, defaults to the hostname`)
	flags.String("token", "", `shared agent token sent as a bearer token`)
	flags.Duration("poll-interval", 0, `delay between reconciliation cycles`)
	flags.Bool("dry-run", false, `log commands instead of executing them`)
	flags.Bool("debug", false, `enable debug logging`)

	agentv.BindPFlag("config_file", flags.Lookup("config"))
	agentv.BindPFlag("server_url", flags.Lookup("server-url"))
	agentv.BindPFlag("device_id", flags.Lookup("device-id"))
	agentv.BindPFlag("token", flags.Lookup("token"))
	agentv.BindPFlag("poll_interval", flags.Lookup("poll-interval"))
	agentv.BindPFlag("dry_run", flags.Lookup("dry-run"))
	agentv.BindPFlag("debug", flags.Lookup("debug"))

	rootcmd.AddCommand(oncecmd)
	return
}()

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootcmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AgentConfig) error {
	container := GetContainer(cfg)
	logger := container.Logger
	logger.Info("Agent service initialized",
		"device_id", cfg.DeviceID,
		"server_url", cfg.ServerURL,
		"dry_run", cfg.DryRun,
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		container.AgentHandler.Run(ctx)
	}()

	wg.Wait()
	logger.Info("Agent service stopped")
	return nil
}
