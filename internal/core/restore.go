package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/barysiuk/profiler/internal/core/host"
)

var restoreLogger = loggo.GetLogger("profiler.restore")

// DefaultSkin is the skin a restore runs under, so the restored skin cannot
// overwrite settings while components are installed.
const DefaultSkin = "skin.estuary"

// ErrSkinNotSwitched is returned when the host did not switch to the
// default skin before a restore.
const ErrSkinNotSwitched = errors.ConstError("host did not switch to the default skin; confirm the change on screen and run restore again")

// guiCachePatterns are the host databases dropped before reinstalling.
var guiCachePatterns = []string{"Addons*.db", "ViewModes*.db"}

// RestoreOptions configures one restore.
type RestoreOptions struct {
	Archive       string // local backup archive
	StagingDir    string // wiped and recreated per restore
	UserdataDir   string
	AddonsDir     string
	TempDir       string
	OverwriteXML  bool
	ClearGUICache bool
	SwitchSkin    bool
	// SkipInstall restores files only and does not reconcile.
	SkipInstall    bool
	ModalTimeout   time.Duration
	Timings        Timings
	RepoIDFallback bool
	Fetcher        Fetcher
	Progress       Progress
	Clock          clock.Clock
}

// RestoreResult is what a restore did.
type RestoreResult struct {
	Manifest    *Manifest
	Report      *Report // nil when installation was skipped
	ReportPath  string
	PendingSkin string
}

// Restorer applies backups to a host and keeps the restore state file.
type Restorer struct {
	host   ProfileHost
	config *ConfigManager
}

// NewRestorer creates a Restorer. cm provides the state file and the
// reports directory.
func NewRestorer(h ProfileHost, cm *ConfigManager) *Restorer {
	return &Restorer{host: h, config: cm}
}

// Restore applies a backup archive to the host:
//  1. Mark a restore in progress
//  2. Switch the host to the default skin (optional)
//  3. Unpack the archive into a fresh staging directory
//  4. Copy profile files and merge profile directories
//  5. Load and validate the manifest
//  6. Drop the GUI cache databases (optional)
//  7. Reconcile installed components against the manifest
//  8. Persist the report and record the skin to switch back to
//
// Steps 1 to 5 are fatal on error. The returned result carries the report
// even when reconciliation was interrupted.
func (r *Restorer) Restore(ctx context.Context, opts RestoreOptions) (res *RestoreResult, err error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	// 1. Mark
	if err := r.config.UpdateState(func(st *State) { st.RestoreInProgress = true }); err != nil {
		return nil, err
	}
	defer func() {
		if serr := r.config.UpdateState(func(st *State) {
			st.RestoreInProgress = false
			if res != nil && res.PendingSkin != "" {
				st.PendingFinalize = true
				st.PendingSkin = res.PendingSkin
			}
			if res != nil && res.ReportPath != "" {
				st.LastReport = res.ReportPath
			}
		}); serr != nil {
			restoreLogger.Errorf("updating state: %v", serr)
		}
	}()

	// 2. Default skin
	if opts.SwitchSkin {
		if err := r.switchToDefaultSkin(ctx, opts.ModalTimeout); err != nil {
			return nil, err
		}
	}

	// 3. Unpack
	stage := filepath.Join(opts.StagingDir, "restore")
	if err := os.RemoveAll(stage); err != nil {
		restoreLogger.Warningf("could not fully wipe %s: %v", stage, err)
	}
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	n, err := unzipAll(opts.Archive, stage)
	if err != nil {
		return nil, fmt.Errorf("unpacking backup: %w", err)
	}
	restoreLogger.Infof("unpacked %d entries from %s", n, filepath.Base(opts.Archive))

	// 4. Profile files
	if err := restoreProfile(filepath.Join(stage, "userdata"), opts.UserdataDir, opts.OverwriteXML); err != nil {
		return nil, err
	}

	// 5. Manifest
	m, err := LoadManifest(filepath.Join(stage, ManifestFileName))
	if err != nil {
		return nil, err
	}
	ResolveBundled(m, stage)
	res = &RestoreResult{Manifest: m}
	if opts.SwitchSkin && m.ActiveSkin != "" && m.ActiveSkin != DefaultSkin {
		res.PendingSkin = m.ActiveSkin
	}

	// 6. GUI cache
	if opts.ClearGUICache {
		clearGUICache(filepath.Join(opts.UserdataDir, "Database"))
	}

	if opts.SkipInstall {
		return res, nil
	}

	// 7. Reconcile
	rec, err := NewReconciler(ReconcilerConfig{
		Host:           r.host,
		AddonsDir:      opts.AddonsDir,
		ExtractRoot:    stage,
		TempDir:        opts.TempDir,
		Fetcher:        opts.Fetcher,
		Timings:        opts.Timings,
		RepoIDFallback: opts.RepoIDFallback,
		Progress:       opts.Progress,
		Clock:          clk,
	})
	if err != nil {
		return res, err
	}
	report, runErr := rec.Run(ctx, m)
	res.Report = report

	// 8. Persist
	if report != nil {
		path, err := r.config.SaveReport(report, clk.Now())
		if err != nil {
			restoreLogger.Errorf("saving report: %v", err)
		} else {
			res.ReportPath = path
		}
	}
	return res, runErr
}

// switchToDefaultSkin moves the host to DefaultSkin and waits for the
// keep-change dialog to be answered.
func (r *Restorer) switchToDefaultSkin(ctx context.Context, timeout time.Duration) error {
	current, err := r.host.ActiveSkin(ctx)
	if err != nil {
		return fmt.Errorf("reading active skin: %w", err)
	}
	if current == DefaultSkin {
		return nil
	}
	restoreLogger.Infof("switching skin %s -> %s", current, DefaultSkin)
	if err := r.host.SetSetting(ctx, host.SkinSetting, DefaultSkin); err != nil {
		return fmt.Errorf("switching skin: %w", err)
	}
	closed, err := r.host.WaitForModalClose(ctx, timeout)
	if err != nil {
		return err
	}
	if !closed {
		return ErrSkinNotSwitched
	}
	now, err := r.host.ActiveSkin(ctx)
	if err != nil {
		return fmt.Errorf("reading active skin: %w", err)
	}
	if now != DefaultSkin {
		return ErrSkinNotSwitched
	}
	return nil
}

// restoreProfile copies the staged profile files into the host profile.
// Existing XML files are kept unless overwrite is set. Directories are
// merged.
func restoreProfile(src, dst string, overwrite bool) error {
	if !dirExists(src) {
		restoreLogger.Warningf("backup has no profile files")
		return nil
	}
	for _, f := range append(portableFiles[:len(portableFiles):len(portableFiles)], advancedSettingsFile) {
		from := filepath.Join(src, f)
		if !fileExists(from) {
			continue
		}
		to := filepath.Join(dst, f)
		if fileExists(to) && !overwrite {
			restoreLogger.Infof("keeping existing %s", f)
			continue
		}
		if err := copyFile(from, to); err != nil {
			return fmt.Errorf("restoring %s: %w", f, err)
		}
		restoreLogger.Infof("restored %s", f)
	}
	for _, d := range []string{addonDataDir, keymapsDir} {
		from := filepath.Join(src, d)
		if !dirExists(from) {
			continue
		}
		if err := copyDirectory(from, filepath.Join(dst, d)); err != nil {
			return fmt.Errorf("restoring %s: %w", d, err)
		}
		restoreLogger.Infof("restored %s/", d)
	}
	return nil
}

// clearGUICache deletes the databases the host rebuilds on startup.
// Failures are logged and ignored.
func clearGUICache(dbDir string) {
	for _, pattern := range guiCachePatterns {
		matches, _ := filepath.Glob(filepath.Join(dbDir, pattern))
		for _, p := range matches {
			if err := os.Remove(p); err != nil {
				restoreLogger.Warningf("removing %s: %v", p, err)
				continue
			}
			restoreLogger.Debugf("removed %s", filepath.Base(p))
		}
	}
}
