package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DirStore keeps archives in a local directory, such as a mounted NAS share.
type DirStore struct {
	dir string
}

// NewDirStore creates a directory-backed store. The directory is created on
// first Put.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Put implements Store.
func (s *DirStore) Put(ctx context.Context, name, src string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", s.dir, err)
	}
	key := filepath.Base(name)
	if err := copyAtomic(src, filepath.Join(s.dir, key)); err != nil {
		return "", fmt.Errorf("storing %s: %w", key, err)
	}
	logger.Infof("stored %s in %s", key, s.dir)
	return key, nil
}

// Get implements Store.
func (s *DirStore) Get(ctx context.Context, key, dest string) error {
	if key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("invalid archive name %q", key)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return copyAtomic(filepath.Join(s.dir, key), dest)
}

// List implements Store.
func (s *DirStore) List(ctx context.Context) ([]Object, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Object{}, nil
		}
		return nil, err
	}
	objs := make([]Object, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		objs = append(objs, Object{Key: e.Name(), Size: info.Size(), Modified: info.ModTime()})
	}
	return archivesOnly(objs), nil
}

func copyAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
