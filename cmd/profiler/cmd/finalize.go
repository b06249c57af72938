package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/barysiuk/profiler/internal/core"
)

var finalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Switch back to the restored skin after a restart",
	Long: `Finish a restore: once Kodi has been restarted, switch from the default
skin back to the skin the backup was taken with. Does nothing when no
restore is pending.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}
		client, err := d.hostClient()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		skin, err := core.Finalize(cmd.Context(), client, d.config, d.cfg.HostOptions().ModalTimeout)
		if err != nil {
			return err
		}
		if skin == "" {
			fmt.Fprintln(os.Stdout, "Nothing to finalize.")
			return nil
		}
		fmt.Fprintf(os.Stdout, "Switched skin to %s.\n", skin)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(finalizeCmd)
}
