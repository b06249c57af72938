// Package store keeps backup archives somewhere other than the device they
// were made on: an S3-compatible bucket (Backblaze B2, MinIO, AWS) or a
// plain directory.
package store

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/naturalsort"
)

var logger = loggo.GetLogger("profiler.store")

// Store uploads, downloads and lists backup archives.
type Store interface {
	// Put uploads the file at src under name and returns its key.
	Put(ctx context.Context, name, src string) (string, error)
	// Get downloads key to the file dest.
	Get(ctx context.Context, key, dest string) error
	// List returns the .zip archives in the store, newest name last.
	List(ctx context.Context) ([]Object, error)
}

// Object is one stored archive.
type Object struct {
	Key      string
	Size     int64
	Modified time.Time
}

// ErrNotConfigured is returned when no bucket is set.
const ErrNotConfigured = errors.ConstError("object store not configured")

// joinKey builds "<prefix>/<name>" without leading or doubled slashes.
func joinKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return strings.TrimLeft(name, "/")
	}
	return path.Join(prefix, name)
}

// archivesOnly keeps .zip objects and sorts them naturally by key.
func archivesOnly(objs []Object) []Object {
	out := make([]Object, 0, len(objs))
	for _, o := range objs {
		if strings.HasSuffix(strings.ToLower(o.Key), ".zip") {
			out = append(out, o)
		}
	}
	keys := make([]string, len(out))
	byKey := make(map[string]Object, len(out))
	for i, o := range out {
		keys[i] = o.Key
		byKey[o.Key] = o
	}
	naturalsort.Sort(keys)
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out
}

