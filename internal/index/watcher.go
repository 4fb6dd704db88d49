package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/sm/internal/models"
	"github.com/starford/sm/internal/storage"
)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the workspace's install areas and keeps
// the index in step until ctx is cancelled. cb (if non-nil) is called after
// each index change.
//
// Only the directories that can hold a package root or its descriptor are
// watched: the workspace root, node_modules and its children, and .deps down
// to the channel directories. Events are coalesced into a debounced
// reconciliation pass, so a package install that touches many files is
// reported once.
func Watch(ctx context.Context, db *DB, store storage.Provider, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := store.Root()
	if err := addAreaDirs(w, root, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			if err := reconcile(db, store, logger, cb); err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil || !inArea(rel) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addAreaDirs(w, root, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
				}
			}
			logger.Debug("watcher: event", slog.String("path", rel), slog.String("op", ev.Op.String()))
			scheduleReconcile()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// inArea reports whether rel (relative to the workspace root) lies in, or is, an install area.
func inArea(rel string) bool {
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return first == models.FlatDirName || first == models.DepsDirName
}

// watchDepth is the deepest directory level worth watching per area:
// node_modules/<pkg> and .deps/<install>/source/installed/<channel>.
var watchDepth = map[string]int{
	models.FlatDirName: 2,
	models.DepsDirName: 5,
}

// addAreaDirs adds dir and the area directories below it that may contain
// package roots, up to watchDepth.
func addAreaDirs(w *fsnotify.Watcher, root, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if rel == "." {
			return w.Add(path)
		}
		segs := strings.Split(filepath.ToSlash(rel), "/")
		limit, ok := watchDepth[segs[0]]
		if !ok || len(segs) > limit {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
