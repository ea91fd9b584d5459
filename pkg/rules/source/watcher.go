package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is the quiet period after the last file event
// before a reload fires.
const DefaultDebounceInterval = 200 * time.Millisecond

// Watcher watches a rule directory for changes to .rego files and invokes
// a reload callback after a debounce interval. Rapid saves collapse into a
// single reload; a reload that fails leaves the previously loaded set
// active.
type Watcher struct {
	source   *DirSource
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher over the source's directory. A debounce of
// zero uses DefaultDebounceInterval.
func NewWatcher(source *DirSource, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounceInterval
	}
	return &Watcher{
		source:   source,
		watcher:  fsw,
		debounce: debounce,
		logger:   slog.Default().With("component", "rules.watcher"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks, dispatching debounced reloads until the context is
// cancelled or Stop is called.
func (w *Watcher) Watch(ctx context.Context, onReload func() error) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		close(w.doneCh)
	}()

	if err := w.watcher.Add(w.source.Path()); err != nil {
		return fmt.Errorf("failed to watch rule directory %q: %w", w.source.Path(), err)
	}

	w.logger.Info("rule directory watcher started",
		"path", w.source.Path(),
		"debounce_ms", w.debounce.Milliseconds())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("rule watcher stopped", "reason", "context cancelled")
			return nil

		case <-w.stopCh:
			w.logger.Info("rule watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug("rule file event", "path", event.Name, "op", event.Op.String())
			w.schedule(onReload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			// Keep watching; transient errors must not kill the loop.
			w.logger.Error("rule watcher error", "error", err)
		}
	}
}

// Stop stops the watcher and waits for the Watch loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	return w.watcher.Close()
}

// schedule arms the debounce timer, collapsing bursts of events into one
// reload.
func (w *Watcher) schedule(onReload func() error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.logger.Info("reloading rule modules", "path", w.source.Path())
		if err := onReload(); err != nil {
			w.logger.Error("rule reload failed, previous set stays active", "error", err)
		}
	})
}

// relevant filters events down to writes, creates, renames and removals of
// non-hidden .rego files.
func relevant(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.ToLower(filepath.Ext(event.Name)) == ".rego"
}
