// Command salusctl is the single inspection binary for the admission core:
// it loads configuration, enumerates devices, and prints what the monitor,
// admission tracker, and gossip announcer would report, without keeping any
// of them running as a daemon. Grounded on
// Vistara-Labs-hypercore/internal/command/root.go's cobra.Command tree and
// PersistentPreRunE config wiring, and on the one-binary-per-concern shape
// of xinlaoda-opentorque's cmd/*/main.go family — salusctl is this
// repository's only CLI surface, not a multi-purpose daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/salus-sched/salus/admission"
	"github.com/salus-sched/salus/config"
	"github.com/salus-sched/salus/devices"
	"github.com/salus-sched/salus/gossip"
	"github.com/salus-sched/salus/internal/salog"
	"github.com/salus-sched/salus/monitor"
	"github.com/salus-sched/salus/resources"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "salusctl",
		Short: "Inspect the resource admission core's current state",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	cmd.AddCommand(newStatusCommand(&configPath))
	cmd.AddCommand(newGossipPreviewCommand(&configPath))

	cobra.OnInitialize(func() {
		viper.SetEnvPrefix(config.EnvPrefix)
		viper.AutomaticEnv()
	})

	return cmd
}

// buildCore loads config, enumerates the device registry, and constructs a
// fresh Monitor + Tracker pair from it. salusctl never keeps this pair
// alive beyond one invocation; it exists only to render debug output.
func buildCore(configPath string) (*config.Config, *monitor.Monitor, *admission.Tracker, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	log := salog.New(cfg.Logging.Level)

	enumerator := devices.New()
	devs, err := enumerator.Enumerate()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("enumerating devices: %w", err)
	}
	limits := devices.Limits(devs)

	mon := monitor.New(log)
	if len(cfg.Capacity) > 0 {
		mon.InitializeLimitsCapped(limits, cfg.Capacity)
	} else {
		mon.InitializeLimits(limits)
	}

	tracker := admission.New(mon.Headroom(), log)
	tracker.SetDisabled(cfg.Admission.Disabled)

	return cfg, mon, tracker, nil
}

func newStatusCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the monitor and admission tracker debug strings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, mon, tracker, err := buildCore(*configPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), mon.DebugString())
			fmt.Fprintln(cmd.OutOrStdout(), tracker.DebugString())
			return nil
		},
	}
}

func newGossipPreviewCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "gossip-preview",
		Short: "Print the capacity snapshot this node would broadcast, without joining the network",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, mon, tracker, err := buildCore(*configPath)
			if err != nil {
				return err
			}
			if !cfg.Gossip.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "gossip is disabled in this configuration")
				return nil
			}

			hostname, _ := os.Hostname()
			announcer := gossip.NewAnnouncer(gossip.Options{
				Node:     hostname,
				Monitor:  mon,
				Tracker:  tracker,
				Interval: cfg.Gossip.AnnounceInterval,
				DHTPort:  cfg.Gossip.DHTPort,
			})
			snap := announcer.Snapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "node: %s\nexpires: %s\nheadroom:\n%sremaining session capacity:\n%s",
				snap.Node, snap.ExpiresAt.AsTime(),
				resources.DebugString(snap.Headroom, "  "), resources.DebugString(snap.RemainingSessionCapacity, "  "))
			return nil
		},
	}
}
