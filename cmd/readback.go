package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/openlabdaq/daqcapture/internal/binlog"

	"github.com/spf13/cobra"
)

var readbackOutput string

var readbackCmd = &cobra.Command{
	Use:   "readback [run-name]",
	Short: "Export a captured run as CSV",
	Long: `Read a run's binary log back using its metadata sidecar and write it
as CSV, one scan per row with a scan index column. The run name is the
file stem as printed by 'daqcapture runs'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		binPath := filepath.Join(cfg.Output.Directory, name+".bin")
		metaPath := filepath.Join(cfg.Output.Directory, name+".meta")

		meta, err := binlog.ParseMeta(metaPath)
		if err != nil {
			return fmt.Errorf("failed to read metadata for %s: %w", name, err)
		}

		scans, err := binlog.ReadAll(binPath, len(meta.ChannelNames), meta.SampleWidth)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", binPath, err)
		}

		out := os.Stdout
		if readbackOutput != "" {
			f, err := os.Create(readbackOutput)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", readbackOutput, err)
			}
			defer f.Close()
			out = f
		}

		w := bufio.NewWriter(out)
		fmt.Fprintf(w, "scan,%s\n", strings.Join(meta.ChannelNames, ","))
		for i, scan := range scans {
			w.WriteString(strconv.Itoa(i))
			for _, v := range scan {
				w.WriteByte(',')
				w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
			}
			w.WriteByte('\n')
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}

		if readbackOutput != "" {
			fmt.Fprintf(os.Stderr, "Wrote %d scans to %s\n", len(scans), readbackOutput)
		}
		return nil
	},
}

func init() {
	readbackCmd.Flags().StringVarP(&readbackOutput, "output", "o", "", "write CSV to a file instead of stdout")
}
