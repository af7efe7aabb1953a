package filter

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"ESMP/logger"

	"github.com/fsnotify/fsnotify"
)

// CatalogWatcher serves the current catalog and reloads it when its YAML file
// changes on disk. A file that fails to parse keeps the previous catalog.
type CatalogWatcher struct {
	path    string
	current atomic.Pointer[Catalog]
	settle  time.Duration
}

// NewCatalogWatcher loads path once. An empty path serves the default
// catalog and never reloads.
func NewCatalogWatcher(path string) (*CatalogWatcher, error) {
	cat, err := LoadCatalog(path)
	if err != nil {
		return nil, err
	}
	w := &CatalogWatcher{path: path, settle: 200 * time.Millisecond}
	if path != "" {
		w.path = filepath.Clean(path)
	}
	w.current.Store(cat)
	return w, nil
}

// Current returns the most recently loaded catalog.
func (w *CatalogWatcher) Current() *Catalog {
	return w.current.Load()
}

// Reload re-reads the catalog file.
func (w *CatalogWatcher) Reload() error {
	cat, err := LoadCatalog(w.path)
	if err != nil {
		return err
	}
	w.current.Store(cat)
	return nil
}

// Run watches the catalog's directory until ctx is done. Editors often
// replace files instead of writing them, so the directory is watched and
// events are matched by name.
func (w *CatalogWatcher) Run(ctx context.Context) error {
	if w.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create catalog watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()
	var pendingSince time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pendingSince = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("field catalog watcher error", logger.ErrorField(err))

		case <-ticker.C:
			// wait until the file has been quiet for a moment
			if pendingSince.IsZero() || time.Since(pendingSince) < w.settle {
				continue
			}
			pendingSince = time.Time{}
			if err := w.Reload(); err != nil {
				logger.Error("field catalog reload failed, keeping previous catalog",
					logger.String("path", w.path),
					logger.ErrorField(err))
				continue
			}
			logger.Info("field catalog reloaded",
				logger.String("path", w.path),
				logger.Int("fields", len(w.Current().Fields)))
		}
	}
}
