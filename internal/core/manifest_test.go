package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/errors"
)

func TestParseManifest(t *testing.T) {
	data := []byte(`{
  "kodi_major": 21,
  "active_skin": "skin.arctic.fuse",
  "repos": [
    {"id": "repository.foo", "zip_in_backup": "repos/foo.zip", "zip_url": "https://example.com/foo.zip"},
    {"id": "repository.bar", "archive_in_backup": "repos/bar.zip", "archive_url": null}
  ],
  "addons": ["plugin.video.bar", "script.module.baz"]
}`)
	m, err := ParseManifest(data)
	if err != nil {
		t.Fatalf("ParseManifest() error: %v", err)
	}
	if m.KodiMajor != 21 || m.ActiveSkin != "skin.arctic.fuse" {
		t.Errorf("header = %d/%q", m.KodiMajor, m.ActiveSkin)
	}
	if len(m.Repos) != 2 {
		t.Fatalf("len(Repos) = %d, want 2", len(m.Repos))
	}
	if m.Repos[0].ZipURL != "https://example.com/foo.zip" {
		t.Errorf("Repos[0].ZipURL = %q", m.Repos[0].ZipURL)
	}
	if m.Repos[1].ZipInBackup != "repos/bar.zip" || m.Repos[1].ZipURL != "" {
		t.Errorf("Repos[1] = %+v", m.Repos[1])
	}
	if !equalStrings(m.Addons, []string{"plugin.video.bar", "script.module.baz"}) {
		t.Errorf("Addons = %v", m.Addons)
	}
}

func TestParseManifest_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `repos: []`},
		{"array", `[]`},
		{"missing repos", `{"addons": []}`},
		{"missing addons", `{"repos": []}`},
		{"repos not list", `{"repos": {}, "addons": []}`},
		{"null addons", `{"repos": [], "addons": null}`},
		{"addon not string", `{"repos": [], "addons": [42]}`},
		{"repo not object", `{"repos": ["repository.foo"], "addons": []}`},
		{"repo without id", `{"repos": [{"zip_url": "x"}], "addons": []}`},
		{"repo id not string", `{"repos": [{"id": 1}], "addons": []}`},
		{"kodi_major string", `{"kodi_major": "21", "repos": [], "addons": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.data))
			if !errors.Is(err, errors.NotValid) {
				t.Errorf("ParseManifest() error = %v, want NotValid", err)
			}
		})
	}
}

func TestManifest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		m       Manifest
		wantErr string
	}{
		{"ok", Manifest{Repos: []RepoEntry{{ID: "repository.a"}}, Addons: []string{"plugin.a"}}, ""},
		{"empty", Manifest{}, ""},
		{"empty repo id", Manifest{Repos: []RepoEntry{{ID: " "}}}, "empty id"},
		{"duplicate repo", Manifest{Repos: []RepoEntry{{ID: "repository.a"}, {ID: "repository.a"}}}, "more than once"},
		{"repo prefix in addons", Manifest{Addons: []string{"repository.a"}}, "list it under repos"},
		{"duplicate addon", Manifest{Addons: []string{"plugin.a", "plugin.a"}}, "more than once"},
		{"both", Manifest{Repos: []RepoEntry{{ID: "weird.id"}}, Addons: []string{"weird.id"}}, "both"},
		{"dot repo id", Manifest{Repos: []RepoEntry{{ID: "."}}}, "not a valid folder name"},
		{"dotdot repo id", Manifest{Repos: []RepoEntry{{ID: ".."}}}, "not a valid folder name"},
		{"repo id with slash", Manifest{Repos: []RepoEntry{{ID: "../repository.evil"}}}, "not a valid folder name"},
		{"repo id with backslash", Manifest{Repos: []RepoEntry{{ID: `repository.a\b`}}}, "not a valid folder name"},
		{"repo id with nul", Manifest{Repos: []RepoEntry{{ID: "repository.a\x00"}}}, "not a valid folder name"},
		{"addon id with slash", Manifest{Addons: []string{"plugin/../.."}}, "not a valid folder name"},
		{"dot addon id", Manifest{Addons: []string{"."}}, "not a valid folder name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
			if !errors.Is(err, errors.NotValid) {
				t.Errorf("Validate() error not NotValid: %v", err)
			}
		})
	}
}

func TestWriteAndLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestFileName)
	m := &Manifest{
		KodiMajor:  20,
		ActiveSkin: "skin.estuary",
		Repos:      []RepoEntry{{ID: "repository.foo", ZipInBackup: "repos/foo.zip", ZipPath: "/tmp/x/foo.zip"}},
		Addons:     nil,
	}
	if err := WriteManifest(path, m); err != nil {
		t.Fatalf("WriteManifest() error: %v", err)
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "zip_path") {
		t.Error("resolved path written to manifest")
	}
	if !strings.Contains(string(data), `"addons": []`) {
		t.Errorf("nil addons not written as empty list:\n%s", data)
	}

	loaded, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() error: %v", err)
	}
	if loaded.KodiMajor != 20 || len(loaded.Repos) != 1 || loaded.Repos[0].ZipPath != "" {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestLoadManifest_Missing(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), ManifestFileName))
	if !errors.Is(err, errors.NotValid) {
		t.Errorf("LoadManifest() error = %v, want NotValid", err)
	}
}

func TestIsRepository(t *testing.T) {
	tests := []struct {
		id      string
		repo    bool
		builtin bool
	}{
		{"repository.xbmc.org", true, true},
		{"repository.foo", true, false},
		{"plugin.video.repository", false, false},
		{"script.repository.helper", false, false},
	}
	for _, tt := range tests {
		if got := IsRepository(tt.id); got != tt.repo {
			t.Errorf("IsRepository(%q) = %v, want %v", tt.id, got, tt.repo)
		}
		if got := IsBuiltinRepo(tt.id); got != tt.builtin {
			t.Errorf("IsBuiltinRepo(%q) = %v, want %v", tt.id, got, tt.builtin)
		}
	}
}
