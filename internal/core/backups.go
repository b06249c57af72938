package core

import (
	"context"
	"path"
	"strings"

	"github.com/barysiuk/profiler/internal/core/store"
)

// ListBackups returns the archives held by s. remote marks them as coming
// from the object store.
func ListBackups(ctx context.Context, s store.Store, remote bool) ([]BackupInfo, error) {
	objs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]BackupInfo, 0, len(objs))
	for _, o := range objs {
		out = append(out, BackupInfo{
			Name:     strings.TrimSuffix(path.Base(o.Key), ".zip"),
			Location: o.Key,
			Size:     o.Size,
			Remote:   remote,
		})
	}
	return out, nil
}

// FindBackup returns the backup whose name or location is ref.
func FindBackup(backups []BackupInfo, ref string) (BackupInfo, bool) {
	name := strings.TrimSuffix(path.Base(ref), ".zip")
	for _, b := range backups {
		if b.Location == ref || b.Name == name {
			return b, true
		}
	}
	return BackupInfo{}, false
}
