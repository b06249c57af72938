package core

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var reconcileLogger = loggo.GetLogger("profiler.reconcile")

// Phase is a step of a reconciliation run.
type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseInstallingRepos    Phase = "installing-repos"
	PhaseRefreshingMetadata Phase = "refreshing-metadata"
	PhaseInstallingAddons   Phase = "installing-addons"
	PhaseDone               Phase = "done"
)

// ReconcilerConfig wires a Reconciler.
type ReconcilerConfig struct {
	Host Host
	// AddonsDir is the local path of the host's add-on root.
	AddonsDir string
	// ExtractRoot is the unpacked backup bundled archives are relative to.
	ExtractRoot string
	// TempDir receives downloaded repository archives.
	TempDir string
	Fetcher Fetcher
	Timings Timings
	// RepoIDFallback installs a repository by id through the host when its
	// named bundled archive is missing.
	RepoIDFallback bool
	Progress       Progress
	Clock          clock.Clock
}

// Reconciler drives the host from its current state to a manifest's desired
// set of repositories and add-ons. One Reconciler serves one run.
type Reconciler struct {
	host           Host
	resolver       *Resolver
	local          *LocalInstaller
	ids            *IDInstaller
	timings        Timings
	repoIDFallback bool
	progress       Progress
	clock          clock.Clock
	phase          Phase
}

// NewReconciler creates a Reconciler.
func NewReconciler(cfg ReconcilerConfig) (*Reconciler, error) {
	if cfg.Host == nil {
		return nil, errors.NotValidf("nil Host")
	}
	if cfg.AddonsDir == "" {
		return nil, errors.NotValidf("empty AddonsDir")
	}
	if err := cfg.Timings.Validate(); err != nil {
		return nil, err
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	progress := cfg.Progress
	if progress == nil {
		progress = NopProgress{}
	}
	return &Reconciler{
		host:           cfg.Host,
		resolver:       NewResolver(cfg.ExtractRoot, cfg.TempDir, cfg.Fetcher),
		local:          NewLocalInstaller(cfg.Host, cfg.AddonsDir, cfg.Timings, clk),
		ids:            NewIDInstaller(cfg.Host, cfg.Timings, clk),
		timings:        cfg.Timings,
		repoIDFallback: cfg.RepoIDFallback,
		progress:       progress,
		clock:          clk,
		phase:          PhaseIdle,
	}, nil
}

// Phase returns the step the run is in.
func (r *Reconciler) Phase() Phase {
	return r.phase
}

// Run reconciles the host against m and returns the report. A malformed
// manifest or a control channel that cannot list installed add-ons fails the
// run before anything is installed. Every other failure is recorded against
// its item. When ctx is cancelled the partial report is returned together
// with an error wrapping ErrCancelled.
func (r *Reconciler) Run(ctx context.Context, m *Manifest) (*Report, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	// Preflight
	installed, err := r.host.InstalledIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("preflight: cannot list installed add-ons: %w", err)
	}
	reconcileLogger.Infof("preflight ok: %d components installed; %d repos, %d add-ons requested",
		installed.Size(), len(m.Repos), len(m.Addons))

	report := NewReport()

	r.phase = PhaseInstallingRepos
	r.installRepos(ctx, m.Repos, installed, &report.Repos)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("reconciliation interrupted: %w: %w", ErrCancelled, err)
	}

	r.phase = PhaseRefreshingMetadata
	if err := r.refresh(ctx); err != nil {
		return report, fmt.Errorf("reconciliation interrupted: %w: %w", ErrCancelled, err)
	}

	r.phase = PhaseInstallingAddons
	if fresh, err := r.host.InstalledIDs(ctx); err == nil {
		installed = fresh
	} else {
		reconcileLogger.Warningf("re-reading installed set failed, using in-memory snapshot: %v", err)
	}
	r.installAddons(ctx, m.Addons, installed, &report.Addons)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("reconciliation interrupted: %w: %w", ErrCancelled, err)
	}

	r.phase = PhaseDone
	reconcileLogger.Infof("repos: %d installed, %d skipped, %d failed; add-ons: %d installed, %d skipped, %d failed",
		len(report.Repos.Installed), len(report.Repos.Skipped), len(report.Repos.Failed),
		len(report.Addons.Installed), len(report.Addons.Skipped), len(report.Addons.Failed))
	return report, nil
}

// cancelled reports whether the current phase must stop before its next item.
func (r *Reconciler) cancelled(ctx context.Context) bool {
	return r.progress.Cancelled() || ctx.Err() != nil
}

func (r *Reconciler) installRepos(ctx context.Context, repos []RepoEntry, installed set.Strings, out *CategoryReport) {
	r.progress.Start("Installing repositories", len(repos))
	defer r.progress.Done()

	for i := range repos {
		repo := &repos[i]
		if r.cancelled(ctx) {
			reconcileLogger.Warningf("repository phase cancelled at %s", repo.ID)
			out.fail(repo.ID, ErrCancelled)
			return
		}
		r.progress.Update(i, repo.ID)

		skipped, err := guarded(repo.ID, func() (bool, error) {
			return r.reconcileRepo(ctx, repo, installed)
		})
		switch {
		case err != nil && ctx.Err() != nil:
			out.fail(repo.ID, ErrCancelled)
			return
		case err != nil:
			reconcileLogger.Errorf("%s: %v", repo.ID, err)
			out.fail(repo.ID, err)
			continue
		case skipped:
			out.skip(repo.ID)
			continue
		}
		installed.Add(repo.ID)
		out.install(repo.ID)
	}
}

// reconcileRepo skips built-in and present repositories and installs the
// rest.
func (r *Reconciler) reconcileRepo(ctx context.Context, repo *RepoEntry, installed set.Strings) (skipped bool, err error) {
	if IsBuiltinRepo(repo.ID) {
		reconcileLogger.Debugf("%s: built-in repository, skipped", repo.ID)
		return true, nil
	}
	if installed.Contains(repo.ID) {
		present, err := r.host.FileExists(ctx, addonDescriptorPath(repo.ID))
		if err == nil && present {
			reconcileLogger.Debugf("%s: already installed", repo.ID)
			return true, nil
		}
		reconcileLogger.Warningf("%s: listed as installed but its folder is missing, reinstalling", repo.ID)
	}
	return false, r.installRepo(ctx, repo, installed)
}

// guarded runs one item's work, reporting a panic as that item's error.
func guarded(id string, fn func() (bool, error)) (skipped bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			reconcileLogger.Errorf("%s: panic: %v\n%s", id, p, debug.Stack())
			skipped, err = false, fmt.Errorf("internal error: %v", p)
		}
	}()
	return fn()
}

// installRepo resolves a repository's archive and extracts it locally. With
// the id fallback enabled, a repository whose bundled archive is missing is
// installed through the host's own installer instead.
func (r *Reconciler) installRepo(ctx context.Context, repo *RepoEntry, installed set.Strings) error {
	archive, err := r.resolver.Resolve(ctx, repo)
	if err == nil {
		return r.local.Install(ctx, repo.ID, archive)
	}

	var missing *MissingSourceError
	if r.repoIDFallback && errors.As(err, &missing) && missing.Bundled != "" {
		reconcileLogger.Warningf("%s: %v; installing by id", repo.ID, err)
		// Drop the stale entry so the installer does not short-circuit.
		others := set.NewStrings(installed.Values()...)
		others.Remove(repo.ID)
		_, err := r.ids.Install(ctx, repo.ID, others, r.timings.RepoTimeout)
		return err
	}
	return err
}

// refresh asks the host to re-read repository metadata and waits the settle
// delay. It runs once per run, whatever the repository phase did.
func (r *Reconciler) refresh(ctx context.Context) error {
	reconcileLogger.Infof("refreshing repository metadata")
	if err := r.host.RefreshRepositories(ctx); err != nil {
		reconcileLogger.Warningf("repository refresh failed: %v", err)
	}
	return settle(ctx, r.clock, r.timings.PostRefreshSettle)
}

func (r *Reconciler) installAddons(ctx context.Context, addons []string, installed set.Strings, out *CategoryReport) {
	r.progress.Start("Installing add-ons", len(addons))
	defer r.progress.Done()

	for i, id := range addons {
		if r.cancelled(ctx) {
			reconcileLogger.Warningf("add-on phase cancelled at %s", id)
			out.fail(id, ErrCancelled)
			return
		}
		r.progress.Update(i, id)

		skipped, err := guarded(id, func() (bool, error) {
			return r.ids.Install(ctx, id, installed, r.timings.AddonTimeout)
		})
		switch {
		case err != nil && ctx.Err() != nil:
			out.fail(id, ErrCancelled)
			return
		case err != nil:
			reconcileLogger.Errorf("%s: %v", id, err)
			out.fail(id, err)
		case skipped:
			reconcileLogger.Debugf("%s: already installed", id)
			out.skip(id)
		default:
			installed.Add(id)
			out.install(id)
		}
	}
}
