package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/barysiuk/profiler/internal/core"
	"github.com/barysiuk/profiler/internal/tui"
)

var restoreCmd = &cobra.Command{
	Use:   "restore [<archive>]",
	Short: "Restore a backup onto the host",
	Long: `Restore a backup: copy its profile files into the host profile, then
reinstall every repository and add-on it lists.

The archive is a path, the name of a backup in the backups directory, or
with --remote a key in the configured bucket. With no argument the only
local backup is used.

Unless switch_skin is disabled, the host is moved to the default skin for
the duration of the restore. Restart Kodi afterwards and run
'profiler finalize' to switch back to the restored skin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}

		archive, err := findArchive(cmd, d, args)
		if err != nil {
			return err
		}

		if yes, _ := cmd.Flags().GetBool("yes"); !yes && useTUI(cmd) {
			ok, err := tui.Confirm(os.Stdin, os.Stdout,
				fmt.Sprintf("Restore %s over the current Kodi profile?", filepath.Base(archive)))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(os.Stdout, "Restore cancelled.")
				return nil
			}
		}

		client, err := d.hostClient()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		skipInstall, _ := cmd.Flags().GetBool("no-install")
		opts := core.RestoreOptions{
			Archive:        archive,
			StagingDir:     d.config.StagingDir(),
			UserdataDir:    d.cfg.UserdataDir(),
			AddonsDir:      d.cfg.AddonsDir(),
			TempDir:        d.cfg.TempDir(),
			OverwriteXML:   d.cfg.Backup.OverwriteXML,
			ClearGUICache:  d.cfg.Backup.ClearGUICache,
			SwitchSkin:     d.cfg.Backup.SwitchSkin,
			SkipInstall:    skipInstall,
			ModalTimeout:   d.cfg.HostOptions().ModalTimeout,
			Timings:        d.cfg.Install.Timings(),
			RepoIDFallback: d.cfg.Install.RepoIDFallback,
			Fetcher:        core.NewHTTPFetcher(nil),
		}

		var res *core.RestoreResult
		runErr := withProgress(cmd, func(ctx context.Context, p core.Progress) error {
			opts.Progress = p
			var err error
			res, err = core.NewRestorer(client, d.config).Restore(ctx, opts)
			return err
		})
		if res == nil {
			return runErr
		}

		if structuredFormat(cmd) {
			if res.Report != nil {
				if err := printReport(cmd, os.Stdout, res.Report); err != nil {
					return err
				}
			}
			return reportOutcome(res.Report, runErr)
		}

		fmt.Fprintf(os.Stdout, "Restored profile from %s\n", filepath.Base(archive))
		printRunHeader(res.Manifest)
		if res.Report != nil {
			if err := printReport(cmd, os.Stdout, res.Report); err != nil {
				return err
			}
		}
		if res.ReportPath != "" {
			fmt.Fprintf(os.Stdout, "Report saved to %s\n", res.ReportPath)
		}
		if res.PendingSkin != "" {
			fmt.Fprintf(os.Stdout, "\nRestart Kodi, then run 'profiler finalize' to switch back to %s.\n", res.PendingSkin)
		}
		return reportOutcome(res.Report, runErr)
	},
}

func init() {
	restoreCmd.Flags().String("remote", "", "Download this key from the configured bucket and restore it")
	restoreCmd.Flags().Bool("no-install", false, "Restore profile files only")
	restoreCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	addFormatFlag(restoreCmd)
	rootCmd.AddCommand(restoreCmd)
}

// findArchive resolves the backup a restore applies to a local file,
// downloading it first when --remote is given.
func findArchive(cmd *cobra.Command, d *deps, args []string) (string, error) {
	ctx := cmd.Context()
	local := d.localStore()

	if key, _ := cmd.Flags().GetString("remote"); key != "" {
		remote, err := d.remoteStore(ctx)
		if err != nil {
			return "", fmt.Errorf("remote restore: %w", err)
		}
		dest := filepath.Join(d.config.BackupsDir(d.cfg), filepath.Base(key))
		start := time.Now()
		if err := remote.Get(ctx, key, dest); err != nil {
			return "", fmt.Errorf("downloading %s: %w", key, err)
		}
		logger.Infof("downloaded %s in %s", key, time.Since(start).Round(time.Millisecond))
		return dest, nil
	}

	backups, err := core.ListBackups(ctx, local, false)
	if err != nil {
		return "", fmt.Errorf("listing backups: %w", err)
	}

	if len(args) == 0 {
		switch len(backups) {
		case 0:
			return "", fmt.Errorf("no backups in %s", d.config.BackupsDir(d.cfg))
		case 1:
			return filepath.Join(d.config.BackupsDir(d.cfg), backups[0].Location), nil
		default:
			return "", fmt.Errorf("%d backups found; name one (see 'profiler backups list')", len(backups))
		}
	}

	ref := core.ExpandPath(args[0])
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return ref, nil
	}
	if b, ok := core.FindBackup(backups, args[0]); ok {
		return filepath.Join(d.config.BackupsDir(d.cfg), b.Location), nil
	}
	return "", fmt.Errorf("backup %q not found", args[0])
}

// printRunHeader prints what a manifest asks for.
func printRunHeader(m *core.Manifest) {
	fmt.Fprintf(os.Stdout, "Manifest: %d repositories, %d add-ons", len(m.Repos), len(m.Addons))
	if m.ActiveSkin != "" {
		fmt.Fprintf(os.Stdout, " (skin %s, Kodi %d)", m.ActiveSkin, m.KodiMajor)
	}
	fmt.Fprintln(os.Stdout)
}
