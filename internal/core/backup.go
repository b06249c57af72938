package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/barysiuk/profiler/internal/core/store"
)

// NotesFileName holds the backup notes next to the manifest.
const NotesFileName = "report.json"

// portableFiles are copied from the profile directory when present.
var portableFiles = []string{
	"sources.xml",
	"guisettings.xml",
	"favourites.xml",
}

const (
	advancedSettingsFile = "advancedsettings.xml"
	addonDataDir         = "addon_data"
	keymapsDir           = "keymaps"
)

var defaultNotes = []string{
	"Debrid services will usually require re-authorization on the new device.",
}

// BackupOptions configures one backup.
type BackupOptions struct {
	Name                    string
	UserdataDir             string // host profile directory
	AddonsDir               string // host add-on root; packages/ is searched for repo archives
	StagingDir              string // scratch space, wiped per backup
	OutDir                  string // where the finished archive is written
	IncludeKeymaps          bool
	IncludeAdvancedSettings bool
	Upload                  store.Store // optional remote copy
	Clock                   clock.Clock
}

// BackupResult describes a finished backup.
type BackupResult struct {
	Archive   string
	RemoteKey string
	Size      int64
	Manifest  *Manifest
	Notes     BackupNotes
}

// Backup captures the host's portable profile and installed components into
// a single archive:
//  1. Stage the portable profile files and directories
//  2. Build the manifest and bundle cached repository packages
//  3. Write manifest.json and report.json
//  4. Zip the staging tree into OutDir/<name>.zip
//  5. Upload it when a store is configured
func Backup(ctx context.Context, h Snapshotter, opts BackupOptions) (*BackupResult, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	name := SanitizeName(opts.Name)
	stage := filepath.Join(opts.StagingDir, "backup-"+name)
	if err := os.RemoveAll(stage); err != nil {
		return nil, fmt.Errorf("clearing staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(stage) }()

	// 1. Stage profile
	if err := stageProfile(opts, filepath.Join(stage, "userdata")); err != nil {
		return nil, err
	}

	// 2. Manifest
	m, err := BuildManifest(ctx, h)
	if err != nil {
		return nil, err
	}
	bundled, err := BundleRepoArchives(m, filepath.Join(opts.AddonsDir, "packages"), stage)
	if err != nil {
		return nil, err
	}
	backupLogger.Infof("bundled %d of %d repository packages", bundled, len(m.Repos))

	// 3. Manifest + notes
	if err := WriteManifest(filepath.Join(stage, ManifestFileName), m); err != nil {
		return nil, err
	}
	notes := BackupNotes{
		ID:         uuid.NewString(),
		Name:       name,
		CreatedAt:  clk.Now().UTC().Format(time.RFC3339),
		KodiMajor:  m.KodiMajor,
		ActiveSkin: m.ActiveSkin,
		Notes:      defaultNotes,
	}
	data, err := json.MarshalIndent(notes, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling notes: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(stage, NotesFileName), append(data, '\n')); err != nil {
		return nil, err
	}

	// 4. Zip
	archive := filepath.Join(opts.OutDir, name+".zip")
	n, err := zipDirectory(stage, archive)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(archive)
	if err != nil {
		return nil, err
	}
	backupLogger.Infof("wrote %s: %d files, %s", archive, n, humanize.Bytes(uint64(info.Size())))

	res := &BackupResult{Archive: archive, Size: info.Size(), Manifest: m, Notes: notes}

	// 5. Upload
	if opts.Upload != nil {
		key, err := opts.Upload.Put(ctx, name+".zip", archive)
		if err != nil {
			return res, fmt.Errorf("backup kept at %s: %w", archive, err)
		}
		res.RemoteKey = key
	}
	return res, nil
}

func stageProfile(opts BackupOptions, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}

	files := portableFiles
	if opts.IncludeAdvancedSettings {
		files = append(files[:len(files):len(files)], advancedSettingsFile)
	}
	for _, f := range files {
		src := filepath.Join(opts.UserdataDir, f)
		if !fileExists(src) {
			backupLogger.Debugf("profile file %s not present", f)
			continue
		}
		if err := copyFile(src, filepath.Join(dst, f)); err != nil {
			return fmt.Errorf("staging %s: %w", f, err)
		}
	}

	dirs := []string{addonDataDir}
	if opts.IncludeKeymaps {
		dirs = append(dirs, keymapsDir)
	}
	for _, d := range dirs {
		src := filepath.Join(opts.UserdataDir, d)
		if !dirExists(src) {
			continue
		}
		if err := copyDirectory(src, filepath.Join(dst, d)); err != nil {
			return fmt.Errorf("staging %s: %w", d, err)
		}
	}
	return nil
}
