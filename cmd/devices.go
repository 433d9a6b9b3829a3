package cmd

import (
	"fmt"

	"github.com/openlabdaq/daqcapture/internal/daq"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available serial acquisition devices",
	Long:  `List the serial ports a streaming acquisition device may be attached to.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := daq.ListPorts()
		if err != nil {
			return fmt.Errorf("failed to list serial ports: %w", err)
		}

		if len(ports) == 0 {
			fmt.Println("No serial ports found. The 'sim' backend is always available.")
			return nil
		}

		fmt.Printf("Serial ports (%d found):\n", len(ports))
		for i, port := range ports {
			fmt.Printf("  %d. %s\n", i+1, port)
		}
		fmt.Println("\nSet device.port in the config to use one of these.")
		return nil
	},
}
