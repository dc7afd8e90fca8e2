package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultReloadDebounce = 300 * time.Millisecond

// Watcher reloads the catalog when its file changes. It watches the parent
// directory so editors that replace the file atomically are still seen.
type Watcher struct {
	path     string
	debounce time.Duration
	reload   func(ctx context.Context) error
}

func NewWatcher(path string, debounce time.Duration, reload func(ctx context.Context) error) *Watcher {
	if debounce <= 0 {
		debounce = defaultReloadDebounce
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		reload:   reload,
	}
}

// Run blocks until ctx is cancelled. Reload failures are logged and the
// previous catalog stays in service.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create catalog watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch catalog dir: %w", err)
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("catalog_watch_error", "path", w.path, "error", err)
		case <-timer.C:
			started := time.Now()
			if err := w.reload(ctx); err != nil {
				slog.Error("catalog_reload_failed", "path", w.path, "error", err)
				continue
			}
			slog.Info("catalog_reloaded", "path", w.path, "duration_ms", time.Since(started).Milliseconds())
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
