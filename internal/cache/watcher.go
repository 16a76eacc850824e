package cache

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const faqDebounce = 400 * time.Millisecond

// FAQWatcher watches the pre-seeded FAQ file and re-seeds the cache's
// protected subset when it changes. Editors replace files on save, so the
// parent directory is watched and events are debounced.
type FAQWatcher struct {
	path     string
	cache    *Cache
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	timer    *time.Timer
	started  bool
	stopOnce sync.Once
}

// NewFAQWatcher creates a watcher that reloads path into cache on change.
func NewFAQWatcher(path string, cache *Cache, logger *zap.Logger) *FAQWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FAQWatcher{path: path, cache: cache, logger: logger}
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *FAQWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.mu.Unlock()

	go w.run(ctx)
	return nil
}

func (w *FAQWatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("FAQ watcher error", zap.Error(err))
		}
	}
}

// scheduleReload debounces bursts of events into one reload.
func (w *FAQWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(faqDebounce, w.reload)
}

func (w *FAQWatcher) reload() {
	faq, err := LoadFAQFile(w.path)
	if err != nil {
		w.logger.Warn("FAQ reload failed", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.cache.SeedFAQ(faq)
	w.logger.Info("FAQ reloaded", zap.String("path", w.path), zap.Int("entries", len(faq)))
}

// Stop stops the watcher. Safe to call more than once.
func (w *FAQWatcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.timer != nil {
			w.timer.Stop()
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
	})
}
