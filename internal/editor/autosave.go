package editor

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/tordrt/schemasync/internal/schema"
)

// Saver persists a schema under a project name
type Saver interface {
	Save(ctx context.Context, project string, s schema.Schema) error
}

// AutoSave persists every new state of the store under project until the
// returned stop function is called. Save errors are logged.
//
// Saves are serialised and a snapshot older than the last one saved is
// dropped, so concurrent mutations cannot leave a stale schema persisted.
func (e *Editor) AutoSave(ctx context.Context, saver Saver, project string) (stop func()) {
	logger := e.logger.With(zap.String("project", project))

	var (
		mu    sync.Mutex
		saved uint64
	)
	return e.store.SubscribeVersioned(func(version uint64, s schema.Schema) {
		mu.Lock()
		defer mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if version <= saved {
			logger.Debug("stale snapshot skipped", zap.Uint64("version", version), zap.Uint64("saved", saved))
			return
		}
		if err := saver.Save(ctx, project, s); err != nil {
			logger.Error("autosave failed", zap.Error(err))
			return
		}
		saved = version
		logger.Debug("autosaved", zap.Uint64("version", version), zap.Int("tables", len(s.Tables)))
	})
}
