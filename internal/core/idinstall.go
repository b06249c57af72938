package core

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/retry"
)

// IDInstaller installs a component by id through the host's own installer
// and infers completion by polling the installed set.
type IDInstaller struct {
	host    Host
	timings Timings
	clock   clock.Clock
}

// NewIDInstaller creates an IDInstaller.
func NewIDInstaller(h Host, timings Timings, clk clock.Clock) *IDInstaller {
	if clk == nil {
		clk = clock.WallClock
	}
	return &IDInstaller{host: h, timings: timings, clock: clk}
}

// Install requests id and waits up to timeout for it to appear. It returns
// skipped=true without contacting the host when id is already in installed.
// A completion that is not observed in time is a *TimeoutError.
func (p *IDInstaller) Install(ctx context.Context, id string, installed set.Strings, timeout time.Duration) (skipped bool, err error) {
	if installed.Contains(id) {
		return true, nil
	}
	if err := p.host.RequestInstall(ctx, id); err != nil {
		return false, err
	}
	return false, p.WaitInstalled(ctx, id, timeout)
}

// WaitInstalled polls the installed set every poll interval until id shows
// up, logging a heartbeat while it waits. Query errors count as "not yet".
func (p *IDInstaller) WaitInstalled(ctx context.Context, id string, timeout time.Duration) error {
	var lastErr error
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			ids, err := p.host.InstalledIDs(ctx)
			if err != nil {
				lastErr = err
				return err
			}
			if !ids.Contains(id) {
				return errNotYet
			}
			return nil
		},
		NotifyFunc: heartbeat(p.clock, p.timings.Heartbeat, func(waited time.Duration) {
			installLogger.Infof("%s: still installing (%ds of %ds)", id, int(waited.Seconds()), int(timeout.Seconds()))
		}),
		Delay:       p.timings.PollInterval,
		MaxDuration: timeout,
		Clock:       p.clock,
		Stop:        ctx.Done(),
	})
	switch {
	case err == nil:
		installLogger.Infof("%s: installed", id)
		return nil
	case retry.IsDurationExceeded(err):
		if lastErr != nil {
			installLogger.Debugf("%s: last installed-set error: %v", id, lastErr)
		}
		installLogger.Warningf("%s: not installed after %s", id, timeout)
		return &TimeoutError{ID: id, After: timeout}
	case retry.IsRetryStopped(err):
		return ctx.Err()
	default:
		return err
	}
}
