package editor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher feeds the contents of a SQL file to a debouncer whenever it changes
type Watcher struct {
	path      string
	debouncer *Debouncer
	logger    *zap.Logger
	ready     chan struct{}
	readyOnce sync.Once
}

// NewWatcher creates a watcher for path
func NewWatcher(path string, d *Debouncer, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:      path,
		debouncer: d,
		logger:    logger.With(zap.String("file", path)),
		ready:     make(chan struct{}),
	}
}

// Ready is closed once the first watch is registered
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run blocks until ctx is done. The parent directory is watched so that
// editors replacing the file by rename are still picked up. Run may be
// called again after it returned.
func (w *Watcher) Run(ctx context.Context) error {
	target, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", w.path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}
	w.readyOnce.Do(func() { close(w.ready) })
	w.logger.Info("watching for changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			data, err := os.ReadFile(target)
			if err != nil {
				w.logger.Warn("failed to read changed file", zap.Error(err))
				continue
			}
			w.logger.Debug("file changed", zap.Stringer("op", event.Op))
			w.debouncer.Schedule(string(data))

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}
