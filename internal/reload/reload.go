// Package reload watches config files and re-runs a load function when
// they change.
package reload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ppiankov/sceneguard/internal/logging"
)

// DefaultDebounce is how long the watcher waits after the last write.
const DefaultDebounce = 500 * time.Millisecond

// Reloader watches files and calls fn after they change.
type Reloader struct {
	watcher  *fsnotify.Watcher
	fn       func() error
	paths    map[string]bool
	debounce time.Duration
	logger   *zap.Logger
}

// New creates a watcher for paths. Empty and missing paths are skipped.
// The parent directory is watched so editors that replace the file on
// save are still seen.
func New(paths []string, fn func() error, logger *zap.Logger) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	watched := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		watched[filepath.Clean(abs)] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %q: %w", dir, err)
		}
		dirs[dir] = true
	}

	return &Reloader{
		watcher:  watcher,
		fn:       fn,
		paths:    watched,
		debounce: DefaultDebounce,
		logger:   logging.OrNop(logger),
	}, nil
}

// SetDebounce overrides the debounce delay. Call before Run.
func (r *Reloader) SetDebounce(d time.Duration) {
	r.debounce = d
}

// Watching reports how many files are watched.
func (r *Reloader) Watching() int {
	return len(r.paths)
}

// Run watches for file changes and reloads. Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if !r.paths[filepath.Clean(event.Name)] {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if debounce != nil {
					debounce.Stop()
				}
				name := event.Name
				debounce = time.AfterFunc(r.debounce, func() {
					if err := r.fn(); err != nil {
						r.logger.Warn("hot-reload failed", zap.String("file", name), zap.Error(err))
					} else {
						r.logger.Info("hot-reload: reloaded", zap.String("file", name))
					}
				})
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}
