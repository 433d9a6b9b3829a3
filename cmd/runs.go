package cmd

import (
	"fmt"

	"github.com/openlabdaq/daqcapture/internal/service"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List captured runs",
	Long:  `List the binary logs in the output directory, newest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var svc service.Service
		svc, err := service.New(cfg, cfgFile)
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}

		runs, err := svc.ListRuns()
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Printf("No runs captured yet in %s.\n", svc.GetConfig().Output.Directory)
			return nil
		}

		for _, run := range runs {
			line := fmt.Sprintf("%s  %s  %s", run.ModTimeHuman, run.SizeHuman, run.Name)
			if run.TotalScans > 0 {
				line += fmt.Sprintf("  (%d scans, %.1f s)", run.TotalScans, run.DurationS)
			}
			fmt.Println(line)
		}
		return nil
	},
}
