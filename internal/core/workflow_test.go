package core

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"

	"github.com/barysiuk/profiler/internal/core/store"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// sourceHost prepares a host with a profile, installed components and a
// package cache worth backing up.
func sourceHost(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	ud := filepath.Join(env.home, "userdata")
	writeFile(t, filepath.Join(ud, "sources.xml"), "<sources/>")
	writeFile(t, filepath.Join(ud, "guisettings.xml"), "<settings/>")
	writeFile(t, filepath.Join(ud, "advancedsettings.xml"), "<advancedsettings/>")
	writeFile(t, filepath.Join(ud, "addon_data", "plugin.bar", "settings.xml"), "<settings id=\"bar\"/>")
	writeFile(t, filepath.Join(ud, "keymaps", "remote.xml"), "<keymap/>")
	writeFile(t, filepath.Join(ud, "Thumbnails", "big.jpg"), "not portable")

	pkgs := filepath.Join(env.addonsDir(), "packages")
	for _, v := range []string{"1.0.0", "1.9.0", "1.10.0"} {
		writeRepoZip(t, filepath.Join(pkgs, "repository.foo-"+v+".zip"), "repository.foo")
	}
	writeRepoZip(t, filepath.Join(pkgs, "repository.foobar-2.0.0.zip"), "repository.foobar")

	env.srv.SetInstalled("repository.xbmc.org", "repository.xbmc.org.mirror", "repository.foo", "plugin.bar", "script.module.baz")
	env.srv.SetSetting("lookandfeel.skin", "skin.arctic.fuse")
	env.srv.SetVersion(20)
	return env
}

func runBackup(t *testing.T, env *testEnv, upload store.Store) *BackupResult {
	t.Helper()
	res, err := Backup(context.Background(), env.client, BackupOptions{
		Name:                    "living room",
		UserdataDir:             filepath.Join(env.home, "userdata"),
		AddonsDir:               env.addonsDir(),
		StagingDir:              t.TempDir(),
		OutDir:                  t.TempDir(),
		IncludeKeymaps:          true,
		IncludeAdvancedSettings: true,
		Upload:                  upload,
		Clock:                   env.autoClock,
	})
	if err != nil {
		t.Fatalf("Backup() error: %v", err)
	}
	return res
}

func TestBuildManifest(t *testing.T) {
	env := sourceHost(t)
	m, err := BuildManifest(context.Background(), env.client)
	if err != nil {
		t.Fatalf("BuildManifest() error: %v", err)
	}
	if len(m.Repos) != 1 || m.Repos[0].ID != "repository.foo" {
		t.Errorf("Repos = %+v, want only repository.foo", m.Repos)
	}
	if !equalStrings(m.Addons, []string{"plugin.bar", "script.module.baz"}) {
		t.Errorf("Addons = %v", m.Addons)
	}
	if m.ActiveSkin != "skin.arctic.fuse" || m.KodiMajor != 20 {
		t.Errorf("skin/major = %q/%d", m.ActiveSkin, m.KodiMajor)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("built manifest invalid: %v", err)
	}
}

func TestBuildManifest_VersionFallback(t *testing.T) {
	env := newTestEnv(t)
	env.srv.SetVersion(0)
	m, err := BuildManifest(context.Background(), env.client)
	if err != nil {
		t.Fatalf("BuildManifest() error: %v", err)
	}
	if m.KodiMajor != 21 {
		t.Errorf("KodiMajor = %d, want 21", m.KodiMajor)
	}
}

func TestBundleRepoArchives_PicksNewest(t *testing.T) {
	env := sourceHost(t)
	stage := t.TempDir()
	m := &Manifest{Repos: []RepoEntry{{ID: "repository.foo"}, {ID: "repository.none"}}}

	n, err := BundleRepoArchives(m, filepath.Join(env.addonsDir(), "packages"), stage)
	if err != nil {
		t.Fatalf("BundleRepoArchives() error: %v", err)
	}
	if n != 1 {
		t.Errorf("bundled %d, want 1", n)
	}
	if want := "repos/repository.foo-1.10.0.zip"; m.Repos[0].ZipInBackup != want {
		t.Errorf("ZipInBackup = %q, want %q", m.Repos[0].ZipInBackup, want)
	}
	if !fileExists(filepath.Join(stage, "repos", "repository.foo-1.10.0.zip")) {
		t.Error("package not copied into staging")
	}
	if m.Repos[1].ZipInBackup != "" {
		t.Errorf("repository.none got %q", m.Repos[1].ZipInBackup)
	}
}

func TestBackup(t *testing.T) {
	env := sourceHost(t)
	remote := store.NewDirStore(t.TempDir())
	res := runBackup(t, env, remote)

	if filepath.Base(res.Archive) != "living-room.zip" {
		t.Errorf("Archive = %q", res.Archive)
	}
	if res.RemoteKey != "living-room.zip" {
		t.Errorf("RemoteKey = %q", res.RemoteKey)
	}
	if res.Notes.ID == "" || res.Notes.KodiMajor != 20 {
		t.Errorf("Notes = %+v", res.Notes)
	}
	if _, err := time.Parse(time.RFC3339, res.Notes.CreatedAt); err != nil {
		t.Errorf("CreatedAt %q: %v", res.Notes.CreatedAt, err)
	}

	out := t.TempDir()
	if _, err := unzipAll(res.Archive, out); err != nil {
		t.Fatalf("unzipAll() error: %v", err)
	}
	for _, f := range []string{
		"manifest.json",
		"report.json",
		"userdata/sources.xml",
		"userdata/advancedsettings.xml",
		"userdata/addon_data/plugin.bar/settings.xml",
		"userdata/keymaps/remote.xml",
		"repos/repository.foo-1.10.0.zip",
	} {
		if !fileExists(filepath.Join(out, filepath.FromSlash(f))) {
			t.Errorf("%s missing from backup", f)
		}
	}
	if dirExists(filepath.Join(out, "userdata", "Thumbnails")) {
		t.Error("non-portable directory backed up")
	}

	m, err := LoadManifest(filepath.Join(out, ManifestFileName))
	if err != nil {
		t.Fatalf("LoadManifest() error: %v", err)
	}
	if m.Repos[0].ZipInBackup != "repos/repository.foo-1.10.0.zip" {
		t.Errorf("manifest repo = %+v", m.Repos[0])
	}

	backups, err := ListBackups(context.Background(), remote, true)
	if err != nil {
		t.Fatalf("ListBackups() error: %v", err)
	}
	if len(backups) != 1 || backups[0].Name != "living-room" || !backups[0].Remote {
		t.Errorf("ListBackups() = %+v", backups)
	}
	if _, ok := FindBackup(backups, "living-room"); !ok {
		t.Error("FindBackup() did not find living-room")
	}
}

func TestBackup_OptionalContent(t *testing.T) {
	env := sourceHost(t)
	res, err := Backup(context.Background(), env.client, BackupOptions{
		Name:        "minimal",
		UserdataDir: filepath.Join(env.home, "userdata"),
		AddonsDir:   env.addonsDir(),
		StagingDir:  t.TempDir(),
		OutDir:      t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Backup() error: %v", err)
	}
	out := t.TempDir()
	unzipAll(res.Archive, out)
	if fileExists(filepath.Join(out, "userdata", "advancedsettings.xml")) {
		t.Error("advancedsettings.xml included without the option")
	}
	if dirExists(filepath.Join(out, "userdata", "keymaps")) {
		t.Error("keymaps included without the option")
	}
}

func restoreOptions(t *testing.T, env *testEnv, archive string) RestoreOptions {
	return RestoreOptions{
		Archive:       archive,
		StagingDir:    t.TempDir(),
		UserdataDir:   filepath.Join(env.home, "userdata"),
		AddonsDir:     env.addonsDir(),
		TempDir:       env.tempDir,
		OverwriteXML:  true,
		ClearGUICache: true,
		SwitchSkin:    true,
		ModalTimeout:  time.Second,
		Timings:       DefaultTimings(),
		Clock:         env.autoClock,
	}
}

func TestRestore_RoundTrip(t *testing.T) {
	src := sourceHost(t)
	backup := runBackup(t, src, nil)

	dst := newTestEnv(t)
	dst.srv.SetSetting("lookandfeel.skin", "skin.aeon")
	db := filepath.Join(dst.home, "userdata", "Database")
	writeFile(t, filepath.Join(db, "Addons33.db"), "x")
	writeFile(t, filepath.Join(db, "ViewModes6.db"), "x")
	writeFile(t, filepath.Join(db, "MyVideos131.db"), "keep")

	cm := NewConfigManagerWithDir(t.TempDir())
	res, err := NewRestorer(dst.client, cm).Restore(context.Background(), restoreOptions(t, dst, backup.Archive))
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}

	if !equalStrings(res.Report.Repos.Installed, []string{"repository.foo"}) {
		t.Errorf("repos installed = %v, failed = %+v", res.Report.Repos.Installed, res.Report.Repos.Failed)
	}
	if !equalStrings(res.Report.Addons.Installed, []string{"plugin.bar", "script.module.baz"}) {
		t.Errorf("addons installed = %v, failed = %+v", res.Report.Addons.Installed, res.Report.Addons.Failed)
	}
	if got := dst.srv.Setting("lookandfeel.skin"); got != DefaultSkin {
		t.Errorf("skin during restore = %v, want %s", got, DefaultSkin)
	}

	ud := filepath.Join(dst.home, "userdata")
	for _, f := range []string{"sources.xml", "guisettings.xml", "addon_data/plugin.bar/settings.xml", "keymaps/remote.xml"} {
		if !fileExists(filepath.Join(ud, filepath.FromSlash(f))) {
			t.Errorf("%s not restored", f)
		}
	}
	if fileExists(filepath.Join(db, "Addons33.db")) || fileExists(filepath.Join(db, "ViewModes6.db")) {
		t.Error("GUI cache databases not removed")
	}
	if !fileExists(filepath.Join(db, "MyVideos131.db")) {
		t.Error("library database removed")
	}

	st, err := cm.ReadState()
	if err != nil {
		t.Fatalf("ReadState() error: %v", err)
	}
	if st.RestoreInProgress || !st.PendingFinalize || st.PendingSkin != "skin.arctic.fuse" {
		t.Errorf("state = %+v", st)
	}
	if st.LastReport == "" || st.LastReport != res.ReportPath {
		t.Errorf("LastReport = %q, ReportPath = %q", st.LastReport, res.ReportPath)
	}
	saved, err := LoadReport(st.LastReport)
	if err != nil {
		t.Fatalf("LoadReport() error: %v", err)
	}
	if saved.Addons.Total() != 2 {
		t.Errorf("saved report = %+v", saved)
	}

	// After the restart, switch back.
	skin, err := Finalize(context.Background(), dst.client, cm, time.Second)
	if err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}
	if skin != "skin.arctic.fuse" || dst.srv.Setting("lookandfeel.skin") != "skin.arctic.fuse" {
		t.Errorf("Finalize() = %q, host skin %v", skin, dst.srv.Setting("lookandfeel.skin"))
	}
	st, _ = cm.ReadState()
	if st.PendingFinalize || st.PendingSkin != "" {
		t.Errorf("pending flags not cleared: %+v", st)
	}

	// Nothing pending any more.
	if skin, err := Finalize(context.Background(), dst.client, cm, time.Second); err != nil || skin != "" {
		t.Errorf("second Finalize() = %q, %v", skin, err)
	}
}

func TestRestore_KeepsExistingXMLWithoutOverwrite(t *testing.T) {
	src := sourceHost(t)
	backup := runBackup(t, src, nil)

	dst := newTestEnv(t)
	existing := filepath.Join(dst.home, "userdata", "sources.xml")
	writeFile(t, existing, "<mine/>")

	opts := restoreOptions(t, dst, backup.Archive)
	opts.OverwriteXML = false
	opts.SkipInstall = true
	res, err := NewRestorer(dst.client, NewConfigManagerWithDir(t.TempDir())).Restore(context.Background(), opts)
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if res.Report != nil {
		t.Error("report produced with installation skipped")
	}
	data, _ := os.ReadFile(existing)
	if string(data) != "<mine/>" {
		t.Errorf("sources.xml = %q, want existing content kept", data)
	}
	if !fileExists(filepath.Join(dst.home, "userdata", "guisettings.xml")) {
		t.Error("missing XML not restored")
	}
	if n := dst.srv.CallCount("Addons.GetAddons"); n != 0 {
		t.Errorf("reconciled with installation skipped (%d GetAddons calls)", n)
	}
}

func TestRestore_MissingManifestIsFatal(t *testing.T) {
	stage := t.TempDir()
	writeFile(t, filepath.Join(stage, "userdata", "sources.xml"), "<sources/>")
	archive := filepath.Join(t.TempDir(), "broken.zip")
	if _, err := zipDirectory(stage, archive); err != nil {
		t.Fatal(err)
	}

	dst := newTestEnv(t)
	cm := NewConfigManagerWithDir(t.TempDir())
	opts := restoreOptions(t, dst, archive)
	opts.SwitchSkin = false
	_, err := NewRestorer(dst.client, cm).Restore(context.Background(), opts)
	if !errors.Is(err, errors.NotValid) {
		t.Fatalf("Restore() error = %v, want NotValid", err)
	}
	if n := dst.srv.CallCount("Addons.GetAddons"); n != 0 {
		t.Errorf("host queried %d times for a broken backup", n)
	}
	st, _ := cm.ReadState()
	if st.RestoreInProgress {
		t.Error("restore left marked in progress")
	}
}

func TestRestore_SkinNotConfirmed(t *testing.T) {
	src := sourceHost(t)
	backup := runBackup(t, src, nil)

	dst := newTestEnv(t)
	dst.srv.SetSetting("lookandfeel.skin", "skin.aeon")
	dst.srv.SetModalOpen(1000)

	cm := NewConfigManagerWithDir(t.TempDir())
	_, err := NewRestorer(dst.client, cm).Restore(context.Background(), restoreOptions(t, dst, backup.Archive))
	if !errors.Is(err, ErrSkinNotSwitched) {
		t.Fatalf("Restore() error = %v, want ErrSkinNotSwitched", err)
	}
	if fileExists(filepath.Join(dst.home, "userdata", "sources.xml")) {
		t.Error("profile restored before the skin switch was confirmed")
	}
	st, _ := cm.ReadState()
	if st.RestoreInProgress || st.PendingFinalize {
		t.Errorf("state = %+v", st)
	}
}

func TestFinalize_SkippedDuringRestore(t *testing.T) {
	env := newTestEnv(t)
	cm := NewConfigManagerWithDir(t.TempDir())
	cm.WriteState(&State{RestoreInProgress: true, PendingFinalize: true, PendingSkin: "skin.aeon"})

	_, err := Finalize(context.Background(), env.client, cm, time.Second)
	if !errors.Is(err, ErrRestoreInProgress) {
		t.Fatalf("Finalize() error = %v, want ErrRestoreInProgress", err)
	}
	if env.srv.Setting("lookandfeel.skin") != "skin.estuary" {
		t.Error("skin changed during a restore")
	}
}

func TestState_ReadMissingAndCorrupt(t *testing.T) {
	cm := NewConfigManagerWithDir(t.TempDir())
	st, err := cm.ReadState()
	if err != nil || *st != (State{}) {
		t.Errorf("ReadState() on missing file = %+v, %v", st, err)
	}

	os.WriteFile(cm.StatePath(), []byte("{"), 0o644)
	if _, err := cm.ReadState(); err == nil {
		t.Error("ReadState() accepted corrupt file")
	}
}

func TestSaveReport_KeepsCancelledKind(t *testing.T) {
	cm := NewConfigManagerWithDir(t.TempDir())
	r := NewReport()
	r.Addons.fail("plugin.a", ErrCancelled)
	path, err := cm.SaveReport(r, time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC))
	if err != nil {
		t.Fatalf("SaveReport() error: %v", err)
	}
	if !strings.HasSuffix(path, "report-20260304-050607.json") {
		t.Errorf("path = %q", path)
	}
	data, _ := os.ReadFile(path)
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	loaded, err := LoadReport(path)
	if err != nil {
		t.Fatalf("LoadReport() error: %v", err)
	}
	if !loaded.Cancelled() || loaded.HasHardFailures() {
		t.Errorf("loaded report lost its cancellation: %+v", loaded)
	}
}
