package core

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/collections/set"

	"github.com/barysiuk/profiler/internal/core/host"
)

// Host is the part of the control channel the reconciliation engine drives.
// *host.Client satisfies it.
type Host interface {
	InstalledIDs(ctx context.Context) (set.Strings, error)
	RequestInstall(ctx context.Context, id string) error
	RefreshRepositories(ctx context.Context) error
	RescanLocal(ctx context.Context) error
	EnableAddon(ctx context.Context, id string) error
	FileExists(ctx context.Context, path string) (bool, error)
}

// ProfileHost is what the backup, restore and finalize workflows drive on
// top of Host.
type ProfileHost interface {
	Host
	InstalledAddons(ctx context.Context) ([]host.Addon, error)
	ActiveSkin(ctx context.Context) (string, error)
	MajorVersion(ctx context.Context) (int, error)
	SetSetting(ctx context.Context, name string, value any) error
	WaitForModalClose(ctx context.Context, timeout time.Duration) (bool, error)
}

// addonDescriptorPath is the VFS path of an installed component's addon.xml.
func addonDescriptorPath(id string) string {
	return "special://home/addons/" + id + "/addon.xml"
}

// settle waits d on clk, returning early if ctx is done.
func settle(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-clk.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
