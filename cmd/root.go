package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/openlabdaq/daqcapture/internal/config"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	profile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "daqcapture [run-name]",
	Short: "Multi-channel analog data acquisition and logging",
	Long: `DaqCapture streams analog input channels from an acquisition device,
writes every scan to an append-only binary log, and shows a live
per-channel summary while the stream runs.

When a run name is provided, it acts as 'daqcapture stream [run-name]'.`,
	Args: cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verboseLevel)

		// The devices command works without a device configuration.
		if cmd.Name() == "devices" {
			return nil
		}

		if cfgFile == "" {
			cfgFile = os.ExpandEnv("$HOME/.config/daqcapture.yaml")
		}

		// Fall back to built-in defaults when no config file exists,
		// so a bare 'daqcapture stream' works against the simulator.
		if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
			slog.Debug("No config file, using defaults", "path", cfgFile)
			cfg = config.Default()
			return nil
		}

		var err error
		cfg, err = config.LoadWithProfile(cfgFile, profile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return streamCmd.RunE(cmd, args)
		}
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/daqcapture.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug")

	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(readbackCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(infoCmd)
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int) {
	slogLevel := slog.LevelInfo
	if level >= 1 {
		slogLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	slog.SetDefault(slog.New(handler))
}
