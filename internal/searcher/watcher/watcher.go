// Package watcher reloads segments that another process flushes into the
// shared data directory, then drops cached results scored against the old
// collection.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/segment"
	"github.com/fsnotify/fsnotify"
)

// ErrWatcherFailed indicates the filesystem watcher could not be created.
var ErrWatcherFailed = errors.New("failed to initialize segment watcher")

type Reloader interface {
	ReloadSegments() (int, error)
}

type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Watcher batches segment file events within a debounce window and runs a
// single reload per batch.
type Watcher struct {
	dir         string
	reloader    Reloader
	invalidator Invalidator
	debounce    time.Duration
	fs          *fsnotify.Watcher
	stop        chan struct{}
	stopOnce    sync.Once
	done        chan struct{}
	logger      *slog.Logger
}

// New watches dir. invalidator may be nil when caching is disabled.
func New(dir string, reloader Reloader, invalidator Invalidator, debounce time.Duration) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &Watcher{
		dir:         dir,
		reloader:    reloader,
		invalidator: invalidator,
		debounce:    debounce,
		fs:          fs,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		logger:      slog.Default().With("component", "segment-watcher", "dir", dir),
	}, nil
}

func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fs.Add(w.dir); err != nil {
		w.stopOnce.Do(func() {
			close(w.stop)
			_ = w.fs.Close()
		})
		close(w.done)
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	go w.run(ctx)
	w.logger.Info("segment watcher started", "debounce", w.debounce)
	return nil
}

// Stop closes the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		_ = w.fs.Close()
	})
	<-w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !isSegmentEvent(event) {
				continue
			}
			w.logger.Debug("segment event", "name", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			}
		case <-timerCh:
			timer, timerCh = nil, nil
			w.reload(ctx)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	loaded, err := w.reloader.ReloadSegments()
	if err != nil {
		w.logger.Error("segment reload failed", "error", err)
	}
	if loaded == 0 {
		return
	}
	w.logger.Info("segments reloaded", "loaded", loaded)
	if w.invalidator == nil {
		return
	}
	if err := w.invalidator.Invalidate(ctx); err != nil {
		w.logger.Error("cache invalidation after reload failed", "error", err)
	}
}

func isSegmentEvent(event fsnotify.Event) bool {
	if filepath.Ext(event.Name) != segment.FileExt {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Write)
}
