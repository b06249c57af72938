package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/juju/loggo"
)

var resolveLogger = loggo.GetLogger("profiler.resolve")

// downloadDirName holds archives fetched from repository URLs.
const downloadDirName = "profiler_repo_zips"

// Fetcher downloads url to dest.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// Resolver decides where a repository's installable archive lives.
type Resolver struct {
	extractRoot string
	downloadDir string
	fetcher     Fetcher
}

// NewResolver creates a Resolver. extractRoot is the unpacked backup that
// bundled archive paths are relative to; it may be empty when there is no
// backup. Downloads go to tempDir/profiler_repo_zips/<id>.zip.
func NewResolver(extractRoot, tempDir string, fetcher Fetcher) *Resolver {
	return &Resolver{
		extractRoot: extractRoot,
		downloadDir: filepath.Join(tempDir, downloadDirName),
		fetcher:     fetcher,
	}
}

// DownloadPath returns where the archive for id is downloaded to. The name
// is derived from the id alone so re-runs find earlier downloads.
func (r *Resolver) DownloadPath(id string) string {
	return filepath.Join(r.downloadDir, id+".zip")
}

// Resolve finds a validated archive for repo and records it in
// repo.ZipPath. Preference, first match wins:
//  1. an already resolved ZipPath that exists
//  2. the bundled archive under the extraction root
//  3. a download of ZipURL
//
// With none of those it returns *MissingSourceError. Archives that fail
// validation are returned as *StructuralValidationError.
func (r *Resolver) Resolve(ctx context.Context, repo *RepoEntry) (string, error) {
	if !safeID(repo.ID) {
		return "", &StructuralValidationError{ID: repo.ID, Reason: "id is not a valid folder name"}
	}
	if repo.ZipPath != "" && filepath.IsAbs(repo.ZipPath) && fileExists(repo.ZipPath) {
		return r.accept(repo, repo.ZipPath, "resolved")
	}

	var bundled string
	if repo.ZipInBackup != "" && r.extractRoot != "" {
		p, ok := withinRoot(r.extractRoot, repo.ZipInBackup)
		if !ok {
			return "", &StructuralValidationError{
				ID:      repo.ID,
				Archive: repo.ZipInBackup,
				Reason:  "bundled archive path leaves the backup root",
			}
		}
		if fileExists(p) {
			return r.accept(repo, p, "bundled")
		}
		bundled = repo.ZipInBackup
		resolveLogger.Warningf("%s: bundled archive %s not found", repo.ID, repo.ZipInBackup)
	} else if repo.ZipInBackup != "" {
		bundled = repo.ZipInBackup
	}

	if repo.ZipURL != "" {
		dest := r.DownloadPath(repo.ID)
		if fileExists(dest) && ValidateArchive(dest, repo.ID) == nil {
			resolveLogger.Debugf("%s: reusing earlier download %s", repo.ID, dest)
			repo.ZipPath = dest
			return dest, nil
		}
		if r.fetcher == nil {
			return "", fmt.Errorf("%s: no downloader configured for %s", repo.ID, repo.ZipURL)
		}
		if err := os.MkdirAll(r.downloadDir, 0o755); err != nil {
			return "", fmt.Errorf("creating download dir: %w", err)
		}
		resolveLogger.Infof("%s: downloading %s", repo.ID, repo.ZipURL)
		if err := r.fetcher.Fetch(ctx, repo.ZipURL, dest); err != nil {
			return "", fmt.Errorf("downloading %s: %w", repo.ZipURL, err)
		}
		return r.accept(repo, dest, "downloaded")
	}

	return "", &MissingSourceError{ID: repo.ID, Bundled: bundled}
}

func (r *Resolver) accept(repo *RepoEntry, path, how string) (string, error) {
	if err := ValidateArchive(path, repo.ID); err != nil {
		return "", err
	}
	resolveLogger.Debugf("%s: using %s archive %s", repo.ID, how, path)
	repo.ZipPath = path
	return path, nil
}

// ResolveBundled fills ZipPath for every repository whose bundled archive is
// present under extractRoot, without validating or downloading anything.
func ResolveBundled(m *Manifest, extractRoot string) {
	for i := range m.Repos {
		r := &m.Repos[i]
		if r.ZipInBackup == "" {
			continue
		}
		if p, ok := withinRoot(extractRoot, r.ZipInBackup); ok && fileExists(p) {
			r.ZipPath = p
		}
	}
}
