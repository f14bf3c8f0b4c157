package dataset

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDelay coalesces the burst of events editors emit for one save
const reloadDelay = 200 * time.Millisecond

// Watcher reloads a dataset file when it changes on disk
type Watcher struct {
	path     string
	onChange func(*Dataset)
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
}

// NewWatcher watches path and calls onChange with every valid new version.
// Invalid edits are logged and the previous dataset stays in effect.
func NewWatcher(path string, onChange func(*Dataset), logger *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory so atomic replace-by-rename is seen
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		onChange: onChange,
		logger:   logger,
		watcher:  fw,
	}, nil
}

// Run processes file events until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	w.logger.Info("Watching dataset file", zap.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(reloadDelay)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Dataset watcher error", zap.Error(err))

		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	d, err := LoadFile(w.path)
	if err != nil {
		w.logger.Error("Dataset reload failed, keeping previous version", zap.Error(err))
		return
	}

	w.logger.Info("Dataset reloaded",
		zap.String("path", w.path),
		zap.String("version", d.Version()),
	)
	w.onChange(d)
}
