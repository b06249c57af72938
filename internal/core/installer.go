package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/clock"
	"github.com/juju/loggo"
	"github.com/juju/retry"
)

var installLogger = loggo.GetLogger("profiler.install")

var errNotYet = errors.New("not there yet")

// LocalInstaller installs repository packages by writing them straight into
// the host's add-on root instead of going through the host's installer.
type LocalInstaller struct {
	host      Host
	addonsDir string
	timings   Timings
	clock     clock.Clock
}

// NewLocalInstaller creates a LocalInstaller that extracts into addonsDir.
func NewLocalInstaller(h Host, addonsDir string, timings Timings, clk clock.Clock) *LocalInstaller {
	if clk == nil {
		clk = clock.WallClock
	}
	return &LocalInstaller{host: h, addonsDir: addonsDir, timings: timings, clock: clk}
}

// Install places archive's <id>/ folder into the add-on root and has the
// host pick it up. Steps are not rolled back on a later failure:
//  1. Validate the archive (nothing touched on failure)
//  2. Remove any existing folder for id (best effort)
//  3. Ensure the add-on root exists
//  4. Extract <id>/ into the add-on root
//  5. Poll the host VFS for <id>/addon.xml
//  6. Rescan local add-ons and settle
//  7. Enable the add-on and settle
func (l *LocalInstaller) Install(ctx context.Context, id, archive string) error {
	// 1. Validate
	target, ok := withinRoot(l.addonsDir, id)
	if !ok || !safeID(id) || filepath.Clean(target) == filepath.Clean(l.addonsDir) {
		return &StructuralValidationError{ID: id, Archive: archive, Reason: fmt.Sprintf("id %q does not name a folder below %s", id, l.addonsDir)}
	}
	if err := ValidateArchive(archive, id); err != nil {
		return err
	}

	// 2. Remove old
	if dirExists(target) {
		if err := os.RemoveAll(target); err != nil {
			installLogger.Warningf("%s: removing old folder %s: %v", id, target, err)
		} else {
			installLogger.Debugf("%s: removed old folder", id)
		}
	}

	// 3. Ensure root
	if err := os.MkdirAll(l.addonsDir, 0o755); err != nil {
		return fmt.Errorf("creating add-on root %s: %w", l.addonsDir, err)
	}

	// 4. Extract
	n, err := extractAddon(archive, l.addonsDir, id)
	if err != nil {
		return fmt.Errorf("extracting %s: %w", filepath.Base(archive), err)
	}
	installLogger.Infof("%s: extracted %d entries into %s", id, n, l.addonsDir)
	if err := settle(ctx, l.clock, l.timings.ExtractSettle); err != nil {
		return err
	}

	// 5. Confirm the host can see it
	if err := l.waitForDescriptor(ctx, id); err != nil {
		return err
	}

	// 6. Rescan
	if err := l.host.RescanLocal(ctx); err != nil {
		return fmt.Errorf("rescanning local add-ons: %w", err)
	}
	if err := settle(ctx, l.clock, l.timings.RescanSettle); err != nil {
		return err
	}

	// 7. Enable
	if err := l.host.EnableAddon(ctx, id); err != nil {
		installLogger.Warningf("%s: enable failed: %v", id, err)
	}
	return settle(ctx, l.clock, l.timings.EnableSettle)
}

// waitForDescriptor polls the host's VFS until <id>/addon.xml is visible.
func (l *LocalInstaller) waitForDescriptor(ctx context.Context, id string) error {
	path := addonDescriptorPath(id)
	var lastErr error
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			ok, err := l.host.FileExists(ctx, path)
			if err != nil {
				lastErr = err
				return err
			}
			if !ok {
				return errNotYet
			}
			return nil
		},
		NotifyFunc: heartbeat(l.clock, l.timings.Heartbeat, func(waited time.Duration) {
			installLogger.Infof("%s: waiting for %s (%ds)", id, path, int(waited.Seconds()))
		}),
		Delay:       l.timings.FolderPollInterval,
		MaxDuration: l.timings.RepoTimeout,
		Clock:       l.clock,
		Stop:        ctx.Done(),
	})
	switch {
	case err == nil:
		return nil
	case retry.IsDurationExceeded(err):
		if lastErr != nil {
			installLogger.Debugf("%s: last VFS error: %v", id, lastErr)
		}
		return &TimeoutError{ID: id, After: l.timings.RepoTimeout}
	case retry.IsRetryStopped(err):
		return ctx.Err()
	default:
		return err
	}
}

// heartbeat returns a retry NotifyFunc that calls beat at most once per
// interval with the time waited so far.
func heartbeat(clk clock.Clock, interval time.Duration, beat func(waited time.Duration)) func(error, int) {
	start := clk.Now()
	last := start
	return func(error, int) {
		now := clk.Now()
		if now.Sub(last) >= interval {
			last = now
			beat(now.Sub(start))
		}
	}
}
