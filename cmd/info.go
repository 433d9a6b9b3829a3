package cmd

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/openlabdaq/daqcapture/internal/service"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the resolved acquisition geometry",
	Long: `Display the resolved acquisition parameters and the data rates they
produce: scans drained per poll, bytes written per second and the
display decimation. With a run name, also shows the output paths a
stream under that name would produce.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		acq := cfg.Acquisition
		channels := len(cfg.Channels)

		if len(args) == 1 {
			stem := filepath.Join(cfg.Output.Directory, service.CleanRunName(args[0])+"_<timestamp>")
			fmt.Printf("=== RUN PATHS ===\n")
			fmt.Printf("data: %s.bin\n", stem)
			fmt.Printf("meta: %s.meta\n\n", stem)
		}

		scansPerPoll := int(math.Round(acq.SampleRate * float64(acq.PollIntervalMs) / 1000.0))
		if scansPerPoll < 1 {
			scansPerPoll = 1
		}
		bytesPerSecond := acq.SampleRate * float64(channels) * float64(acq.SampleWidth)

		fmt.Printf("=== ACQUISITION ===\n")
		fmt.Printf("sample_rate: %g Hz\n", acq.SampleRate)
		fmt.Printf("channels: %s\n", strings.Join(cfg.ChannelNames(), ", "))
		fmt.Printf("poll_interval: %d ms (%d scans per poll)\n", acq.PollIntervalMs, scansPerPoll)
		fmt.Printf("sample_width: %d bytes\n", acq.SampleWidth)
		fmt.Printf("log_rate: %.0f B/s\n", bytesPerSecond)

		fmt.Printf("\n=== DISPLAY ===\n")
		fmt.Printf("refresh: %d ms\n", acq.DisplayRefreshMs)
		fmt.Printf("decimation: keep every %d scans (%.1f Hz per channel)\n",
			acq.Decimation, acq.SampleRate/float64(acq.Decimation))
		fmt.Printf("buffer: %d points (%.1f s of history)\n",
			acq.DisplayBufferSize,
			float64(acq.DisplayBufferSize)*float64(acq.Decimation)/acq.SampleRate)

		fmt.Printf("\n=== DEVICE ===\n")
		fmt.Printf("backend: %s\n", cfg.Device.Backend)
		if cfg.Device.Port != "" {
			fmt.Printf("port: %s @ %d baud\n", cfg.Device.Port, cfg.Device.BaudRate)
		}
		for _, reg := range cfg.Device.Registers {
			fmt.Printf("register: %s = %g\n", reg.Name, reg.Value)
		}

		fmt.Printf("\n=== OUTPUT ===\n")
		fmt.Printf("directory: %s\n", cfg.Output.Directory)

		return nil
	},
}
