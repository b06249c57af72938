package core

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/errors"

	"github.com/barysiuk/profiler/internal/core/host"
)

// ErrRestoreInProgress is returned by Finalize while a restore is running.
const ErrRestoreInProgress = errors.ConstError("a restore is in progress")

// SkinHost is the part of the host Finalize drives.
type SkinHost interface {
	SetSetting(ctx context.Context, name string, value any) error
	WaitForModalClose(ctx context.Context, timeout time.Duration) (bool, error)
}

// Finalize switches the host back to the skin recorded by the last restore
// and clears the pending flags. It returns the skin switched to, or "" when
// nothing was pending.
func Finalize(ctx context.Context, h SkinHost, cm *ConfigManager, modalTimeout time.Duration) (string, error) {
	st, err := cm.ReadState()
	if err != nil {
		return "", err
	}
	if st.RestoreInProgress {
		return "", ErrRestoreInProgress
	}
	if !st.PendingFinalize {
		return "", nil
	}

	skin := st.PendingSkin
	if skin != "" {
		restoreLogger.Infof("switching back to skin %s", skin)
		if err := h.SetSetting(ctx, host.SkinSetting, skin); err != nil {
			return "", fmt.Errorf("switching skin: %w", err)
		}
		closed, err := h.WaitForModalClose(ctx, modalTimeout)
		if err != nil {
			return "", err
		}
		if !closed {
			restoreLogger.Warningf("keep-change dialog for %s still open", skin)
		}
	}

	if err := cm.UpdateState(func(s *State) {
		s.PendingFinalize = false
		s.PendingSkin = ""
	}); err != nil {
		return skin, err
	}
	return skin, nil
}
