package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openlabdaq/daqcapture/internal/acquire"
	"github.com/openlabdaq/daqcapture/internal/display"
	"github.com/openlabdaq/daqcapture/internal/service"

	"github.com/spf13/cobra"
)

var streamQuiet bool

var streamCmd = &cobra.Command{
	Use:   "stream [run-name]",
	Short: "Stream channels to a binary log",
	Long: `Start the acquisition device, stream the configured channels and write
every scan to a timestamped binary log with a metadata sidecar.
A live per-channel summary is printed until the stream is stopped
with Ctrl+C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runName := "run"
		if len(args) == 1 {
			runName = args[0]
		}
		slog.Info("Stream command started", "run_name", runName)

		var svc service.Service
		var err error
		if streamQuiet {
			svc, err = service.New(cfg, cfgFile)
		} else {
			var sink acquire.Sink = display.NewTerm(os.Stdout, cfg.ChannelNames())
			svc, err = service.NewWithSink(cfg, cfgFile, sink)
		}
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer svc.Cleanup()

		if err := svc.StartStream(runName); err != nil {
			return fmt.Errorf("failed to start streaming: %w", err)
		}

		_, run := svc.GetStatus()
		if run != nil {
			slog.Info("Streaming", "data_file", run.DataFile, "sample_rate", run.SampleRate)
		}
		fmt.Println("Streaming... Press Ctrl+C to stop")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		// Wait for interrupt or a session fault.
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
	wait:
		for {
			select {
			case <-sigChan:
				break wait
			case <-ticker.C:
				stats, _ := svc.GetStatus()
				if stats.State == acquire.StateError {
					// Acknowledge the fault so the device can be
					// reopened by a follow-up command.
					msg := svc.GetLastError()
					if err := svc.ResetError(); err != nil {
						slog.Warn("fault reset failed", "error", err)
					}
					return fmt.Errorf("stream failed: %s", msg)
				}
				if !streamQuiet && stats.EffectiveRate > 0 {
					fmt.Printf("rate %.0f scans/s  total %d  backlog dev=%d drv=%d\n",
						stats.EffectiveRate, stats.TotalScans, stats.DeviceBacklog, stats.DriverBacklog)
				}
			}
		}

		slog.Info("Stopping stream...")
		if err := svc.StopStream(); err != nil {
			return fmt.Errorf("failed to stop streaming: %w", err)
		}

		stats, _ := svc.GetStatus()
		fmt.Printf("Captured %d scans\n", stats.TotalScans)
		return nil
	},
}

func init() {
	streamCmd.Flags().BoolVarP(&streamQuiet, "quiet", "q", false, "suppress the live channel summary")
}
