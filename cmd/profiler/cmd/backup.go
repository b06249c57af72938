package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/barysiuk/profiler/internal/core"
)

var backupCmd = &cobra.Command{
	Use:   "backup <name>",
	Short: "Back up the host profile and installed add-ons",
	Long: `Capture the host's portable profile files, add-on settings and the list of
installed repositories and add-ons into <name>.zip in the backups directory.

Cached repository packages found in the host's addons/packages folder are
bundled so a restore does not depend on the repository being reachable.
With --upload the archive is also copied to the configured bucket.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}

		opts := core.BackupOptions{
			Name:                    args[0],
			UserdataDir:             d.cfg.UserdataDir(),
			AddonsDir:               d.cfg.AddonsDir(),
			StagingDir:              d.config.StagingDir(),
			OutDir:                  d.config.BackupsDir(d.cfg),
			IncludeKeymaps:          d.cfg.Backup.IncludeKeymaps,
			IncludeAdvancedSettings: d.cfg.Backup.IncludeAdvancedSettings,
		}
		if upload, _ := cmd.Flags().GetBool("upload"); upload {
			remote, err := d.remoteStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("upload: %w", err)
			}
			opts.Upload = remote
		}

		client, err := d.hostClient()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		res, err := core.Backup(cmd.Context(), client, opts)
		if res != nil {
			fmt.Fprintf(os.Stdout, "Backup written: %s (%s)\n", res.Archive, humanize.Bytes(uint64(res.Size)))
			fmt.Fprintf(os.Stdout, "  Repositories: %d, add-ons: %d\n", len(res.Manifest.Repos), len(res.Manifest.Addons))
			if res.RemoteKey != "" {
				fmt.Fprintf(os.Stdout, "  Uploaded as: %s\n", res.RemoteKey)
			}
			for _, note := range res.Notes.Notes {
				fmt.Fprintf(os.Stdout, "  Note: %s\n", note)
			}
			if serr := d.config.UpdateState(func(st *core.State) { st.LastBackupID = res.Notes.ID }); serr != nil {
				logger.Warningf("updating state: %v", serr)
			}
		}
		return err
	},
}

func init() {
	backupCmd.Flags().Bool("upload", false, "Also upload the archive to the configured bucket")
	rootCmd.AddCommand(backupCmd)
}
