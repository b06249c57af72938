package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
)

// ManifestFileName is the manifest's name inside a backup archive.
const ManifestFileName = "manifest.json"

// RepoPrefix marks an id as a repository. It is the only classification
// rule: anything else is an add-on.
const RepoPrefix = "repository."

// builtinRepos ships with the host and is never installed or removed.
var builtinRepos = set.NewStrings("repository.xbmc.org")

// IsRepository reports whether id names a repository.
func IsRepository(id string) bool {
	return strings.HasPrefix(id, RepoPrefix)
}

// IsBuiltinRepo reports whether id is one of the host's own repositories.
func IsBuiltinRepo(id string) bool {
	return builtinRepos.Contains(id)
}

func manifestErrorf(format string, args ...any) error {
	return errors.NewNotValid(nil, "manifest: "+fmt.Sprintf(format, args...))
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotValid(err, "manifest: "+path+" not found")
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseManifest decodes a manifest, checking its shape strictly: repos and
// addons are required, and every field must have the right JSON type.
// The bundled-archive and URL keys are also accepted under their
// archive_in_backup and archive_url spellings.
func ParseManifest(data []byte) (*Manifest, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		return nil, manifestErrorf("not a JSON object")
	}

	m := &Manifest{Repos: []RepoEntry{}, Addons: []string{}}

	if raw, ok := top["kodi_major"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &m.KodiMajor); err != nil {
			return nil, manifestErrorf("kodi_major must be an integer")
		}
	}
	if raw, ok := top["active_skin"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &m.ActiveSkin); err != nil {
			return nil, manifestErrorf("active_skin must be a string")
		}
	}

	rawRepos, ok := top["repos"]
	if !ok {
		return nil, manifestErrorf("missing required key %q", "repos")
	}
	var repos []json.RawMessage
	if err := json.Unmarshal(rawRepos, &repos); err != nil || isNull(rawRepos) {
		return nil, manifestErrorf("repos must be a list")
	}
	for i, raw := range repos {
		entry, err := parseRepoEntry(raw)
		if err != nil {
			return nil, manifestErrorf("repos[%d]: %v", i, err)
		}
		m.Repos = append(m.Repos, entry)
	}

	rawAddons, ok := top["addons"]
	if !ok {
		return nil, manifestErrorf("missing required key %q", "addons")
	}
	if isNull(rawAddons) {
		return nil, manifestErrorf("addons must be a list of strings")
	}
	if err := json.Unmarshal(rawAddons, &m.Addons); err != nil {
		return nil, manifestErrorf("addons must be a list of strings")
	}
	return m, nil
}

func parseRepoEntry(raw json.RawMessage) (RepoEntry, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return RepoEntry{}, fmt.Errorf("must be an object")
	}

	var entry RepoEntry
	fields := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"id"}, &entry.ID},
		{[]string{"zip_in_backup", "archive_in_backup"}, &entry.ZipInBackup},
		{[]string{"zip_url", "archive_url"}, &entry.ZipURL},
		{[]string{"zip_path"}, &entry.ZipPath},
	}
	for _, f := range fields {
		for _, key := range f.keys {
			v, ok := obj[key]
			if !ok || isNull(v) {
				continue
			}
			if err := json.Unmarshal(v, f.dst); err != nil {
				return RepoEntry{}, fmt.Errorf("%s must be a string", key)
			}
			break
		}
	}
	if _, ok := obj["id"]; !ok {
		return RepoEntry{}, fmt.Errorf("missing required key %q", "id")
	}
	return entry, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// safeID reports whether id can name a folder directly below the add-on
// root.
func safeID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, "/\\\x00")
}

// Validate checks the manifest's content rules: non-empty unique ids that are
// usable as folder names, no repository ids among the add-ons, and no id
// listed as both.
func (m *Manifest) Validate() error {
	repoIDs := set.NewStrings()
	for i, r := range m.Repos {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return manifestErrorf("repos[%d] has an empty id", i)
		}
		if !safeID(id) {
			return manifestErrorf("repos[%d] id %q is not a valid folder name", i, id)
		}
		if repoIDs.Contains(id) {
			return manifestErrorf("repository %s listed more than once", id)
		}
		repoIDs.Add(id)
	}

	addonIDs := set.NewStrings()
	for i, id := range m.Addons {
		id = strings.TrimSpace(id)
		if id == "" {
			return manifestErrorf("addons[%d] is empty", i)
		}
		if !safeID(id) {
			return manifestErrorf("addons[%d] id %q is not a valid folder name", i, id)
		}
		if IsRepository(id) {
			return manifestErrorf("add-on %s carries the %q prefix; list it under repos", id, RepoPrefix)
		}
		if repoIDs.Contains(id) {
			return manifestErrorf("%s listed as both a repository and an add-on", id)
		}
		if addonIDs.Contains(id) {
			return manifestErrorf("add-on %s listed more than once", id)
		}
		addonIDs.Add(id)
	}
	return nil
}

// Marshal encodes the manifest the way it is stored inside a backup.
// Resolved archive paths are runtime-only and are not written.
func (m *Manifest) Marshal() ([]byte, error) {
	out := *m
	out.Repos = make([]RepoEntry, len(m.Repos))
	for i, r := range m.Repos {
		r.ZipPath = ""
		out.Repos[i] = r
	}
	if out.Addons == nil {
		out.Addons = []string{}
	}
	return json.MarshalIndent(out, "", "  ")
}

// WriteManifest writes m to path atomically.
func WriteManifest(path string, m *Manifest) error {
	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}
