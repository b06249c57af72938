package core

import (
	"fmt"
	"time"
)

// Timings are the fixed waits of a reconciliation run. None of them adapt.
type Timings struct {
	RepoTimeout        time.Duration // per repository, folder poll bound
	AddonTimeout       time.Duration // per add-on, installed-set poll bound
	PollInterval       time.Duration // installed-set poll step
	FolderPollInterval time.Duration // extracted-folder poll step
	PostRefreshSettle  time.Duration // after refreshing repository metadata
	ExtractSettle      time.Duration // after writing an extracted package
	RescanSettle       time.Duration // after a local rescan
	EnableSettle       time.Duration // after enabling a component
	Heartbeat          time.Duration // progress log cadence during long polls
}

// DefaultTimings returns the timings used when nothing is configured.
func DefaultTimings() Timings {
	return Timings{
		RepoTimeout:        90 * time.Second,
		AddonTimeout:       60 * time.Second,
		PollInterval:       time.Second,
		FolderPollInterval: 500 * time.Millisecond,
		PostRefreshSettle:  8 * time.Second,
		ExtractSettle:      1500 * time.Millisecond,
		RescanSettle:       2 * time.Second,
		EnableSettle:       500 * time.Millisecond,
		Heartbeat:          5 * time.Second,
	}
}

// Timings converts the configured values into durations.
func (c InstallConfig) Timings() Timings {
	return Timings{
		RepoTimeout:        time.Duration(c.PerRepoTimeoutS) * time.Second,
		AddonTimeout:       time.Duration(c.PerAddonTimeoutS) * time.Second,
		PollInterval:       time.Duration(c.PollIntervalMS) * time.Millisecond,
		FolderPollInterval: time.Duration(c.FolderPollIntervalMS) * time.Millisecond,
		PostRefreshSettle:  time.Duration(c.PostRefreshSettleMS) * time.Millisecond,
		ExtractSettle:      time.Duration(c.ExtractSettleMS) * time.Millisecond,
		RescanSettle:       time.Duration(c.RescanSettleMS) * time.Millisecond,
		EnableSettle:       time.Duration(c.EnableSettleMS) * time.Millisecond,
		Heartbeat:          time.Duration(c.HeartbeatS) * time.Second,
	}
}

// Validate checks the timings are usable. Poll steps and timeouts must be
// positive, settle delays may be zero, and the post-refresh settle must stay
// below both per-item timeouts.
func (t Timings) Validate() error {
	positive := []struct {
		name string
		d    time.Duration
	}{
		{"per_repo_timeout_s", t.RepoTimeout},
		{"per_addon_timeout_s", t.AddonTimeout},
		{"poll_interval_ms", t.PollInterval},
		{"folder_poll_interval_ms", t.FolderPollInterval},
		{"heartbeat_s", t.Heartbeat},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return fmt.Errorf("install.%s must be positive", p.name)
		}
	}

	settles := []struct {
		name string
		d    time.Duration
	}{
		{"post_refresh_settle_ms", t.PostRefreshSettle},
		{"extract_settle_ms", t.ExtractSettle},
		{"rescan_settle_ms", t.RescanSettle},
		{"enable_settle_ms", t.EnableSettle},
	}
	for _, s := range settles {
		if s.d < 0 {
			return fmt.Errorf("install.%s must not be negative", s.name)
		}
	}

	if t.PostRefreshSettle >= t.RepoTimeout || t.PostRefreshSettle >= t.AddonTimeout {
		return fmt.Errorf("install.post_refresh_settle_ms (%s) must be shorter than the per-item timeouts", t.PostRefreshSettle)
	}
	return nil
}
