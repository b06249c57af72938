package host

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/juju/collections/set"
	"github.com/juju/retry"
)

// Addon is one entry from the host's installed add-on list.
type Addon struct {
	ID      string `json:"addonid"`
	Type    string `json:"type"`
	Version string `json:"version,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// modalDialogs are the confirmation dialogs a builtin install may raise.
var modalDialogs = []string{
	"Window.IsActive(DialogConfirm.xml)",
	"Window.IsActive(DialogYesNo.xml)",
}

const modalPollStep = 200 * time.Millisecond

var errModalOpen = errors.New("modal dialog still open")

// InstalledAddons lists every installed add-on.
func (c *Client) InstalledAddons(ctx context.Context) ([]Addon, error) {
	var out struct {
		Addons []Addon `json:"addons"`
	}
	params := map[string]any{
		"installed":  true,
		"properties": []string{"version", "enabled"},
	}
	if err := c.Call(ctx, "Addons.GetAddons", params, &out); err != nil {
		return nil, err
	}
	return out.Addons, nil
}

// InstalledIDs returns the ids of all installed add-ons, repositories included.
func (c *Client) InstalledIDs(ctx context.Context) (set.Strings, error) {
	addons, err := c.InstalledAddons(ctx)
	if err != nil {
		return nil, err
	}
	ids := set.NewStrings()
	for _, a := range addons {
		if a.ID != "" {
			ids.Add(a.ID)
		}
	}
	return ids, nil
}

// RequestInstall asks the host to install an add-on by id from its configured
// repositories. Hosts that do not implement Addons.Install get the builtin
// InstallAddon command instead, followed by a wait for any confirmation
// dialog it raises. Returning nil means the request was accepted, not that
// the add-on is installed.
func (c *Client) RequestInstall(ctx context.Context, id string) error {
	err := c.Call(ctx, "Addons.Install", map[string]any{"addonid": id}, nil)
	if err == nil {
		return nil
	}
	if !IsMethodNotFound(err) {
		return err
	}

	logger.Debugf("Addons.Install unavailable, falling back to builtin for %s", id)
	return c.builtinAndWait(ctx, fmt.Sprintf("InstallAddon(%s)", id))
}

// InstallLocalArchive asks the host to install an add-on from an archive path
// on the host's filesystem, then waits for the confirmation dialog to close.
func (c *Client) InstallLocalArchive(ctx context.Context, path string) error {
	return c.builtinAndWait(ctx, fmt.Sprintf("InstallFromZip(%s)", path))
}

func (c *Client) builtinAndWait(ctx context.Context, command string) error {
	if err := c.ExecBuiltin(ctx, command); err != nil {
		return err
	}
	closed, err := c.WaitForModalClose(ctx, c.modalTimeout)
	if err != nil {
		return err
	}
	if !closed {
		logger.Warningf("%s: confirmation dialog still open after %s", command, c.modalTimeout)
	}
	return nil
}

// RefreshRepositories asks the host to re-read every repository's index.
func (c *Client) RefreshRepositories(ctx context.Context) error {
	return c.ExecBuiltin(ctx, "UpdateAddonRepos")
}

// RescanLocal asks the host to register add-on folders found on disk.
func (c *Client) RescanLocal(ctx context.Context) error {
	return c.ExecBuiltin(ctx, "UpdateLocalAddons")
}

// EnableAddon enables an installed add-on. Hosts that reject the RPC get the
// builtin EnableAddon command.
func (c *Client) EnableAddon(ctx context.Context, id string) error {
	err := c.Call(ctx, "Addons.SetAddonEnabled", map[string]any{"addonid": id, "enabled": true}, nil)
	if err == nil {
		return nil
	}
	if pe, ok := IsProtocolError(err); !ok || !pe.IsRPCError() {
		return err
	}
	logger.Debugf("Addons.SetAddonEnabled failed for %s (%v), using builtin", id, err)
	return c.ExecBuiltin(ctx, fmt.Sprintf("EnableAddon(%s)", id))
}

// FileExists reports whether path exists on the host's virtual filesystem.
// A JSON-RPC error from the host means the file is absent; transport failures
// are returned.
func (c *Client) FileExists(ctx context.Context, path string) (bool, error) {
	params := map[string]any{"file": path, "properties": []string{"size"}}
	err := c.Call(ctx, "Files.GetFileDetails", params, nil)
	if err == nil {
		return true, nil
	}
	if pe, ok := IsProtocolError(err); ok && pe.IsRPCError() {
		return false, nil
	}
	return false, err
}

// ExecBuiltin runs a builtin command on the host through the bridge add-on.
// The host does not wait for the command to finish.
func (c *Client) ExecBuiltin(ctx context.Context, command string) error {
	params := map[string]any{
		"addonid": c.bridgeAddon,
		"params":  map[string]string{"builtin": command},
		"wait":    false,
	}
	logger.Debugf("builtin %s", command)
	return c.Call(ctx, "Addons.ExecuteAddon", params, nil)
}

// WaitForModalClose polls until no confirmation dialog is shown or timeout
// elapses. It returns true when the dialogs closed.
func (c *Client) WaitForModalClose(ctx context.Context, timeout time.Duration) (bool, error) {
	var lastErr error
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			open, err := c.modalOpen(ctx)
			if err != nil {
				lastErr = err
				return err
			}
			if open {
				return errModalOpen
			}
			return nil
		},
		IsFatalError: func(err error) bool {
			return !errors.Is(err, errModalOpen)
		},
		Delay:       modalPollStep,
		MaxDuration: timeout,
		Clock:       c.clock,
		Stop:        ctx.Done(),
	})
	switch {
	case err == nil:
		return true, nil
	case retry.IsDurationExceeded(err):
		return false, nil
	case retry.IsRetryStopped(err):
		return false, ctx.Err()
	case lastErr != nil:
		return false, lastErr
	default:
		return false, err
	}
}

func (c *Client) modalOpen(ctx context.Context) (bool, error) {
	var out map[string]bool
	if err := c.Call(ctx, "XBMC.GetInfoBooleans", map[string]any{"booleans": modalDialogs}, &out); err != nil {
		return false, err
	}
	for _, b := range modalDialogs {
		if out[b] || out[strings.ToLower(b)] {
			return true, nil
		}
	}
	return false, nil
}
