package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/barysiuk/profiler/internal/core"
)

var installCmd = &cobra.Command{
	Use:   "install <manifest.json>",
	Short: "Install the repositories and add-ons a manifest lists",
	Long: `Reconcile the host against a manifest without restoring any profile files.

Repositories are installed first from their archives (bundled with the
backup, a local path, or a download URL). The host then refreshes its
repository metadata and every add-on is installed by id.

Bundled archive paths are resolved against --extract-root, which defaults
to the directory holding the manifest. Press esc to skip the rest of the
current phase.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}

		m, err := core.LoadManifest(args[0])
		if err != nil {
			return err
		}
		root, _ := cmd.Flags().GetString("extract-root")
		if root == "" {
			root = filepath.Dir(args[0])
		}
		core.ResolveBundled(m, core.ExpandPath(root))

		client, err := d.hostClient()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		var report *core.Report
		runErr := withProgress(cmd, func(ctx context.Context, p core.Progress) error {
			rec, err := core.NewReconciler(core.ReconcilerConfig{
				Host:           client,
				AddonsDir:      d.cfg.AddonsDir(),
				ExtractRoot:    core.ExpandPath(root),
				TempDir:        d.cfg.TempDir(),
				Fetcher:        core.NewHTTPFetcher(nil),
				Timings:        d.cfg.Install.Timings(),
				RepoIDFallback: d.cfg.Install.RepoIDFallback,
				Progress:       p,
			})
			if err != nil {
				return err
			}
			report, err = rec.Run(ctx, m)
			return err
		})
		if report == nil {
			return runErr
		}

		if path, err := d.config.SaveReport(report, time.Now()); err != nil {
			logger.Warningf("saving report: %v", err)
		} else if err := d.config.UpdateState(func(st *core.State) { st.LastReport = path }); err != nil {
			logger.Warningf("updating state: %v", err)
		}

		if err := printReport(cmd, os.Stdout, report); err != nil {
			return err
		}
		return reportOutcome(report, runErr)
	},
}

func init() {
	installCmd.Flags().String("extract-root", "", "Directory bundled archive paths are relative to (default: the manifest's directory)")
	addFormatFlag(installCmd)
	rootCmd.AddCommand(installCmd)
}

