// Package watcher reloads files (manifests, vocabulary lists) when they change on disk.
// It watches the parent directory of each file so that editors which replace files by
// rename are seen as well.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/guia/pkg/utils"
)

const defaultDebounce = 400 * time.Millisecond

// Handler is called with the path of a watched file after it settled.
type Handler func(ctx context.Context, path string) error

// Watcher watches a set of files and invokes handlers on change or removal.
type Watcher struct {
	files    map[string]struct{}
	onChange Handler
	onRemove Handler
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timers  map[string]*time.Timer
	ctx     context.Context
	wg      sync.WaitGroup
	done    chan struct{}
	started bool
	stopped bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a file must be quiet before its handler runs.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithRemoveHandler sets the handler for removed files.
func WithRemoveHandler(h Handler) Option {
	return func(w *Watcher) { w.onRemove = h }
}

// New creates a watcher for files. Empty paths are ignored.
func New(files []string, onChange Handler, opts ...Option) *Watcher {
	w := &Watcher{
		files:    make(map[string]struct{}, len(files)),
		onChange: onChange,
		debounce: defaultDebounce,
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, f := range files {
		if f == "" {
			continue
		}
		if abs, err := filepath.Abs(f); err == nil {
			w.files[filepath.Clean(abs)] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = utils.LoggerOrNop(w.logger)
	return w
}

// Files returns the watched file paths.
func (w *Watcher) Files() []string {
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	return out
}

// Start begins watching. It returns once the directories are registered; events are
// handled until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	if w.stopped {
		return errors.New("watcher stopped")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dirs := make(map[string]struct{})
	for f := range w.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			_ = fw.Close()
			return err
		}
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return err
		}
	}
	w.watcher = fw
	w.ctx = ctx
	w.started = true
	w.logger.Debug("watcher starting", zap.Strings("files", w.Files()))

	w.wg.Add(1)
	go w.run(ctx, fw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Debug("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if _, ok := w.files[path]; !ok {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.schedule(path, w.onChange)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// A rename-over shows up as Remove/Rename followed by Create; the
		// debounce lets the Create win when it follows quickly.
		w.schedule(path, w.removeOrChange)
	}
}

func (w *Watcher) removeOrChange(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		if w.onChange != nil {
			return w.onChange(ctx, path)
		}
		return nil
	}
	if w.onRemove != nil {
		return w.onRemove(ctx, path)
	}
	return nil
}

func (w *Watcher) schedule(path string, h Handler) {
	if h == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if old, ok := w.timers[path]; ok && old.Stop() {
		w.wg.Done()
	}
	ctx := w.ctx
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.timers[path] != t {
			w.mu.Unlock()
			return
		}
		delete(w.timers, path)
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		if err := h(ctx, path); err != nil {
			w.logger.Warn("watcher handler failed", zap.String("path", path), zap.Error(err))
		}
	})
	w.timers[path] = t
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.timers, path)
	}
}

// Stop stops the watcher and waits for running handlers to return.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	fw := w.watcher
	w.watcher = nil
	started := w.started
	w.mu.Unlock()

	if started {
		close(w.done)
	}
	w.stopTimers()
	if fw != nil {
		_ = fw.Close()
	}
	w.wg.Wait()
}
