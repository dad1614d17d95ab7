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
	"github.com/starford/keyline/internal/checksum"
	"github.com/starford/keyline/internal/models"
	"github.com/starford/keyline/internal/storage"
)

// Event kinds passed to EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// settleDelay is how long a path must stay quiet before it is reindexed.
const settleDelay = 150 * time.Millisecond

// EventCallback is called after a watcher-driven index change.
type EventCallback func(kind string, path string)

type watcher struct {
	db     DocumentIndex
	store  storage.Provider
	root   string
	logger *slog.Logger
	cb     EventCallback

	dirty     map[string]bool // rel path -> seen as created
	reconcile bool
}

// Watch starts an fsnotify watcher on the library root and reindexes
// documents changed outside the service until ctx is cancelled. It calls cb
// (if non-nil) after each index mutation. Writes whose checksum matches the
// index, such as the service's own saves, produce no callback.
//
// Changes are coalesced per path and applied once the path settles. New
// directories are added to the watch list as they appear; renames and
// removals schedule a reconciliation pass against the files on disk.
func Watch(ctx context.Context, db DocumentIndex, store storage.Provider, root string, logger *slog.Logger, cb EventCallback) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addDirsRecursive(fw, root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))

	w := &watcher{db: db, store: store, root: root, logger: logger, cb: cb, dirty: map[string]bool{}}

	settle := time.NewTimer(settleDelay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case <-settle.C:
			w.flush()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.handle(fw, ev) {
				settle.Reset(settleDelay)
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// handle records ev and reports whether a flush should be scheduled.
func (w *watcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event) bool {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := addDirsRecursive(fw, ev.Name); err != nil {
				w.logger.Warn("watcher: add new dir failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
			}
			w.markDir(ev.Name)
			return true
		}
	}

	if !isDocument(ev.Name) {
		return false
	}
	rel, ok := w.rel(ev.Name)
	if !ok {
		return false
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.dirty[rel] = w.dirty[rel] || ev.Op&fsnotify.Create != 0
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		delete(w.dirty, rel)
		w.reconcile = true
	default:
		return false
	}
	return true
}

// flush reindexes settled paths, then reconciles when a rename or removal was seen.
func (w *watcher) flush() {
	for rel, created := range w.dirty {
		delete(w.dirty, rel)
		kind := EventUpdated
		if created {
			kind = EventCreated
		}
		w.reindex(rel, kind)
	}
	if w.reconcile {
		w.reconcile = false
		w.reconcileDisk()
	}
}

func (w *watcher) reindex(rel, kind string) {
	data, err := w.store.Read(rel)
	if err != nil {
		w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if stored, _ := w.db.GetChecksum(rel); stored == checksum.Sum(data) {
		return
	}
	if err := IndexFile(w.db, rel, data); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
	w.notify(kind, rel)
}

// reconcileDisk drops index entries whose files are gone and indexes files the index has not seen.
func (w *watcher) reconcileDisk() {
	checksums, err := w.db.AllChecksums()
	if err != nil {
		w.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := w.store.List("")
	if err != nil {
		w.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := w.db.DeleteDocument(p); err != nil {
			w.logger.Warn("reconcile: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		w.logger.Debug("reconcile: removed stale", slog.String("path", p))
		w.notify(EventDeleted, p)
	}

	for p, cs := range disk {
		old, known := checksums[p]
		if old == cs {
			continue
		}
		kind := EventUpdated
		if !known {
			kind = EventCreated
		}
		w.reindex(p, kind)
	}
}

// markDir queues every document already present under a new directory.
func (w *watcher) markDir(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isDocument(path) {
			return nil
		}
		if rel, ok := w.rel(path); ok {
			w.dirty[rel] = true
		}
		return nil
	})
}

func (w *watcher) rel(abs string) (string, bool) {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *watcher) notify(kind, rel string) {
	if w.cb != nil {
		w.cb(kind, rel)
	}
}

// isDocument reports whether path names a saved document, skipping the
// storage layer's temporary files.
func isDocument(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, models.DocumentExt) && !strings.HasPrefix(base, ".")
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
