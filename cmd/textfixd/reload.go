package main

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/raaihank/textfix/internal/config"
	"github.com/raaihank/textfix/internal/dataset"
)

// datasetTarget receives reloaded datasets
type datasetTarget interface {
	Reload(d *dataset.Dataset) error
}

// datasetReloader owns the single live source of dataset reloads. At most
// one file watcher runs, and it always follows the active dataset path.
type datasetReloader struct {
	parent context.Context
	target datasetTarget
	logger *zap.Logger

	mu       sync.Mutex
	path     string
	watching bool
	cancel   context.CancelFunc
	done     chan struct{}
}

func newDatasetReloader(ctx context.Context, target datasetTarget, logger *zap.Logger) *datasetReloader {
	return &datasetReloader{
		parent: ctx,
		target: target,
		logger: logger.With(zap.String("component", "dataset_reloader")),
	}
}

// follow records path as the active dataset and watches it when watch is
// set. The dataset itself is not reloaded.
func (r *datasetReloader) follow(path string, watch bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()
	r.path = path
	return r.startLocked(watch)
}

// switchTo loads path into the target and moves the watcher onto it. On a
// load error the current dataset and watcher stay as they are.
func (r *datasetReloader) switchTo(path string, watch bool) error {
	d, err := dataset.LoadFile(path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// the old watcher must be gone before the new dataset goes live
	wasWatching := r.watching
	r.stopLocked()
	if err := r.target.Reload(d); err != nil {
		if startErr := r.startLocked(wasWatching); startErr != nil {
			r.logger.Error("Failed to resume dataset watcher", zap.Error(startErr))
		}
		return err
	}

	r.path = path
	r.logger.Info("Dataset path changed", zap.String("path", path), zap.String("version", d.Version()))
	return r.startLocked(watch)
}

// applyConfig reacts to an edited configuration file
func (r *datasetReloader) applyConfig(next *config.Config) error {
	if next.Dataset.Source == "store" {
		return fmt.Errorf("dataset source store requires a restart")
	}

	r.mu.Lock()
	path, watching := r.path, r.watching
	r.mu.Unlock()

	switch {
	case next.Dataset.Path != path:
		return r.switchTo(next.Dataset.Path, next.Dataset.Watch)
	case next.Dataset.Watch != watching:
		return r.follow(path, next.Dataset.Watch)
	default:
		return nil
	}
}

func (r *datasetReloader) current() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path, r.watching
}

// stop shuts the watcher down and waits for it to exit
func (r *datasetReloader) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *datasetReloader) startLocked(watch bool) error {
	r.watching = false
	if !watch || r.path == "" {
		return nil
	}

	w, err := dataset.NewWatcher(r.path, func(d *dataset.Dataset) {
		if err := r.target.Reload(d); err != nil {
			r.logger.Error("Watched dataset rejected", zap.Error(err))
		}
	}, r.logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(r.parent)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	r.cancel, r.done, r.watching = cancel, done, true
	return nil
}

func (r *datasetReloader) stopLocked() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel, r.done, r.watching = nil, nil, false
}
