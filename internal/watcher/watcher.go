package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes a content root and emits debounced change batches.
type Watcher struct {
	root     string
	debounce time.Duration
}

// New creates a watcher for the given content root.
func New(root string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{root: root, debounce: debounce}
}

// Run watches until ctx is cancelled, calling onBatch with the changed
// paths after each quiet window. Directories created while watching are
// picked up automatically.
func (w *Watcher) Run(ctx context.Context, onBatch func(paths []string)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fsw.Close() }()

	if err := w.addRecursive(fsw, w.root); err != nil {
		return err
	}

	debouncer := NewDebouncer(w.debounce)
	defer debouncer.Stop()

	slog.Info("watching content directory", "root", w.root, "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				// New directories need their own watch.
				if err := w.addRecursive(fsw, event.Name); err == nil {
					slog.Debug("watching new path", "path", event.Name)
				}
			}
			debouncer.Add(event.Name)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)

		case paths := <-debouncer.Output():
			slog.Info("content changed", "paths", len(paths))
			onBatch(paths)
		}
	}
}

// addRecursive adds path and any subdirectories to the watch set.
// Non-directories and hidden entries are skipped.
func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); name != "." && strings.HasPrefix(name, ".") && p != path {
			return fs.SkipDir
		}
		return fsw.Add(p)
	})
}

// relevant filters events to content changes: hidden files, chmod-only
// events, and editor lockfiles are noise.
func relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return true
}
