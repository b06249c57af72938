package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/barysiuk/profiler/internal/core"
)

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Work with stored backups",
}

var backupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups",
	Long: `List the backups in the local backups directory, or with --remote the
archives under the configured bucket prefix.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}

		var backups []core.BackupInfo
		if remote, _ := cmd.Flags().GetBool("remote"); remote {
			s, err := d.remoteStore(cmd.Context())
			if err != nil {
				return err
			}
			backups, err = core.ListBackups(cmd.Context(), s, true)
			if err != nil {
				return fmt.Errorf("listing bucket: %w", err)
			}
		} else {
			backups, err = core.ListBackups(cmd.Context(), d.localStore(), false)
			if err != nil {
				return err
			}
		}

		if format, _ := cmd.Flags().GetString("format"); format != "text" {
			return printData(os.Stdout, format, backups)
		}
		if len(backups) == 0 {
			fmt.Fprintln(os.Stdout, "No backups found. Use 'profiler backup <name>' to create one.")
			return nil
		}
		for _, b := range backups {
			fmt.Fprintf(os.Stdout, "  %-30s %10s  %s\n", b.Name, humanize.Bytes(uint64(b.Size)), b.Location)
		}
		return nil
	},
}

func init() {
	backupsListCmd.Flags().Bool("remote", false, "List the configured bucket instead of the local directory")
	backupsListCmd.Flags().StringP("format", "f", "text", "Output format: text, json or yaml")

	backupsCmd.AddCommand(backupsListCmd)
	rootCmd.AddCommand(backupsCmd)
}
