package index

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/sm/internal/descriptor"
	"github.com/starford/sm/internal/models"
	"github.com/starford/sm/internal/storage"
)

// Change kinds reported to an EventCallback.
const (
	KindInstalled = "installed"
	KindUpdated   = "updated"
	KindRemoved   = "removed"
)

// EventCallback is called after each index change with one of the Kind
// constants and the package path relative to the workspace root.
type EventCallback func(kind string, path string)

// Sync enumerates the workspace and brings the index up to date:
//   - new installs and installs whose descriptor changed are upserted
//   - installs no longer on disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	return reconcile(db, store, logger, nil)
}

func reconcile(db *DB, store storage.Provider, logger *slog.Logger, cb EventCallback) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		cs, known := checksums[m.Path]
		if known && cs == m.Checksum {
			continue
		}
		if err := indexPackage(db, store, m); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		kind := KindUpdated
		if !known {
			kind = KindInstalled
		}
		logger.Debug("sync: indexed", slog.String("path", m.Path), slog.String("op", kind))
		if cb != nil {
			cb(kind, m.Path)
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeletePackage(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: removed stale", slog.String("path", p))
		if cb != nil {
			cb(KindRemoved, p)
		}
	}
	return nil
}

// indexPackage reads the descriptor of m (if any) and upserts the row.
func indexPackage(db *DB, store storage.Provider, m models.PackageMetadata) error {
	row := PackageRow{
		Path:      m.Path,
		Key:       m.Key,
		Area:      m.Area,
		Name:      nameFromKey(m.Key, m.Area),
		Checksum:  m.Checksum,
		UpdatedAt: m.UpdatedAt,
	}
	d, err := store.Descriptor(m.Path)
	switch {
	case errors.Is(err, descriptor.ErrMissing):
	case err != nil:
		return fmt.Errorf("index: %w", err)
	default:
		if d.Name != "" {
			row.Name = d.Name
		}
		row.Version = d.Version
		row.Description = d.Description
		row.Keywords = d.Keywords
	}
	return db.UpsertPackage(row)
}

// nameFromKey derives a display name when the descriptor lacks one:
// the key itself in the flat area, the name segment of host~org~name~major otherwise.
func nameFromKey(key string, area models.Area) string {
	if area != models.AreaDeps {
		return key
	}
	head, _, _ := strings.Cut(key, "/")
	parts := strings.Split(head, "~")
	if len(parts) >= 3 {
		return parts[2]
	}
	return head
}
