package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/juju/loggo"
	"github.com/juju/naturalsort"

	"github.com/barysiuk/profiler/internal/core/host"
)

var backupLogger = loggo.GetLogger("profiler.backup")

// builtinRepoFamily covers the repositories that ship with the host. They
// are never recorded in a manifest.
const builtinRepoFamily = "repository.xbmc"

// bundledReposDir is where repository archives live inside a backup.
const bundledReposDir = "repos"

// Snapshotter is the part of the host the manifest builder reads.
type Snapshotter interface {
	InstalledAddons(ctx context.Context) ([]host.Addon, error)
	ActiveSkin(ctx context.Context) (string, error)
	MajorVersion(ctx context.Context) (int, error)
}

// BuildManifest records what is installed on the host. Repositories and
// add-ons are split by id prefix and sorted. A failed version query falls
// back to host.DefaultMajorVersion; a failed skin query leaves the skin
// empty. Failing to list add-ons is an error.
func BuildManifest(ctx context.Context, h Snapshotter) (*Manifest, error) {
	addons, err := h.InstalledAddons(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing installed add-ons: %w", err)
	}

	m := &Manifest{Repos: []RepoEntry{}, Addons: []string{}}

	seen := map[string]bool{}
	var repoIDs []string
	for _, a := range addons {
		if a.ID == "" || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		switch {
		case strings.HasPrefix(a.ID, builtinRepoFamily):
			continue
		case IsRepository(a.ID):
			repoIDs = append(repoIDs, a.ID)
		default:
			m.Addons = append(m.Addons, a.ID)
		}
	}
	sort.Strings(repoIDs)
	sort.Strings(m.Addons)
	for _, id := range repoIDs {
		m.Repos = append(m.Repos, RepoEntry{ID: id})
	}

	if skin, err := h.ActiveSkin(ctx); err != nil {
		backupLogger.Warningf("reading active skin: %v", err)
	} else {
		m.ActiveSkin = skin
	}

	major, err := h.MajorVersion(ctx)
	if err != nil || major == 0 {
		backupLogger.Warningf("reading host version, assuming %d: %v", host.DefaultMajorVersion, err)
		major = host.DefaultMajorVersion
	}
	m.KodiMajor = major

	backupLogger.Infof("manifest: %d repositories, %d add-ons, skin %q, major %d",
		len(m.Repos), len(m.Addons), m.ActiveSkin, m.KodiMajor)
	return m, nil
}

// BundleRepoArchives copies the newest cached package of each repository
// from packagesDir into stageRoot/repos/ and records it as the repository's
// bundled archive. Cached packages are named <id>-<version>.zip. Packages
// that fail validation are left out. It returns how many were bundled.
func BundleRepoArchives(m *Manifest, packagesDir, stageRoot string) (int, error) {
	entries, err := os.ReadDir(packagesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading package cache: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".zip") {
			names = append(names, e.Name())
		}
	}
	naturalsort.Sort(names)

	n := 0
	for i := range m.Repos {
		r := &m.Repos[i]
		newest := ""
		for _, name := range names {
			if isPackageOf(name, r.ID) {
				newest = name
			}
		}
		if newest == "" {
			backupLogger.Debugf("%s: no cached package", r.ID)
			continue
		}
		src := filepath.Join(packagesDir, newest)
		if err := ValidateArchive(src, r.ID); err != nil {
			backupLogger.Warningf("%s: not bundling %s: %v", r.ID, newest, err)
			continue
		}
		if err := copyFile(src, filepath.Join(stageRoot, bundledReposDir, newest)); err != nil {
			return n, fmt.Errorf("bundling %s: %w", newest, err)
		}
		r.ZipInBackup = bundledReposDir + "/" + newest
		n++
	}
	return n, nil
}

// isPackageOf reports whether name is <id>-<version>.zip with a version
// starting with a digit.
func isPackageOf(name, id string) bool {
	rest, ok := strings.CutPrefix(name, id+"-")
	return ok && rest != "" && rest[0] >= '0' && rest[0] <= '9'
}
