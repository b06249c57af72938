package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/barysiuk/profiler/internal/core"
)

var reportCmd = &cobra.Command{
	Use:   "report [<file>]",
	Short: "Show a saved reconciliation report",
	Long: `Show a reconciliation report saved by install or restore. With no argument
the most recent one is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}

		path := ""
		if len(args) == 1 {
			path = core.ExpandPath(args[0])
		} else {
			st, err := d.config.ReadState()
			if err != nil {
				return err
			}
			path = st.LastReport
		}
		if path == "" {
			fmt.Fprintln(os.Stdout, "No report saved yet.")
			return nil
		}

		r, err := core.LoadReport(path)
		if err != nil {
			return err
		}
		if !structuredFormat(cmd) {
			fmt.Fprintf(os.Stdout, "Report %s\n", path)
		}
		return printReport(cmd, os.Stdout, r)
	},
}

func init() {
	addFormatFlag(reportCmd)
	rootCmd.AddCommand(reportCmd)
}
