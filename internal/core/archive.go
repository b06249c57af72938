package core

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// MinArchiveSize is the smallest archive accepted as a repository package.
// Anything smaller is an error page or a truncated download.
const MinArchiveSize = 1024

// ValidateArchive checks that archive is a usable package for id: large
// enough, a readable zip, free of entries that escape the destination, and
// containing the <id>/ top-level folder. Nothing is written.
func ValidateArchive(archive, id string) error {
	info, err := os.Stat(archive)
	if err != nil {
		return &StructuralValidationError{ID: id, Archive: archive, Reason: fmt.Sprintf("cannot stat archive: %v", err)}
	}
	if info.Size() < MinArchiveSize {
		return &StructuralValidationError{
			ID:      id,
			Archive: archive,
			Reason:  fmt.Sprintf("archive is %d bytes, expected at least %d", info.Size(), MinArchiveSize),
		}
	}

	zr, err := zip.OpenReader(archive)
	if err != nil {
		return &StructuralValidationError{ID: id, Archive: archive, Reason: "not a zip archive"}
	}
	defer func() { _ = zr.Close() }()

	prefix := id + "/"
	found := false
	for _, f := range zr.File {
		if !safeEntryName(f.Name) {
			return &StructuralValidationError{ID: id, Archive: archive, Reason: fmt.Sprintf("unsafe entry %q", f.Name)}
		}
		if strings.HasPrefix(f.Name, prefix) {
			found = true
		}
	}
	if !found {
		return &StructuralValidationError{ID: id, Archive: archive, Reason: fmt.Sprintf("no top-level folder %s", prefix)}
	}
	return nil
}

// safeEntryName rejects absolute names and names that climb out of the
// extraction root.
func safeEntryName(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return false
	}
	if filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

// extractAddon extracts the <id>/ subtree of archive into addonsDir. Other
// top-level entries are ignored.
func extractAddon(archive, addonsDir, id string) (int, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", archive, err)
	}
	defer func() { _ = zr.Close() }()

	prefix := id + "/"
	n := 0
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		if err := extractEntry(f, addonsDir); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// unzipAll extracts every entry of archive under dest.
func unzipAll(archive, dest string) (int, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", archive, err)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if !safeEntryName(f.Name) {
			return 0, fmt.Errorf("archive %s has unsafe entry %q", filepath.Base(archive), f.Name)
		}
	}
	for _, f := range zr.File {
		if err := extractEntry(f, dest); err != nil {
			return 0, err
		}
	}
	return len(zr.File), nil
}

func extractEntry(f *zip.File, dest string) error {
	target, ok := withinRoot(dest, path.Clean(f.Name))
	if !ok {
		return fmt.Errorf("entry %q escapes %s", f.Name, dest)
	}
	if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("reading %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return out.Close()
}

// zipDirectory writes every file under src into a new zip at dst, with
// forward-slash names relative to src.
func zipDirectory(src, dst string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	zw := zip.NewWriter(out)

	n := 0
	walkErr := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		hdr.Method = zip.Deflate
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		in, err := os.Open(p)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, in)
		_ = in.Close()
		if err != nil {
			return err
		}
		n++
		return nil
	})

	if err := zw.Close(); err != nil && walkErr == nil {
		walkErr = err
	}
	if err := out.Close(); err != nil && walkErr == nil {
		walkErr = err
	}
	if walkErr != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("zipping %s: %w", src, walkErr)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return n, nil
}
