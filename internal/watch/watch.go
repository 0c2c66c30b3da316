// Package watch keeps a directory's thumbnails up to date after the initial
// walk by reacting to filesystem events.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/thumbnailer/internal/naming"
	"github.com/aliskhannn/thumbnailer/internal/storage/file"
)

// handler processes a single changed file.
type handler interface {
	ProcessFile(ctx context.Context, path string)
}

// Watcher dispatches created or written files to a handler once they have
// been quiet for the debounce period.
type Watcher struct {
	dir      string
	debounce time.Duration
	handler  handler

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

// New creates a new Watcher for dir.
func New(dir string, debounce time.Duration, h handler) *Watcher {
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		handler:  h,
		pending:  make(map[string]*time.Timer),
	}
}

// Run watches the directory until ctx is cancelled. Handlers already started
// are waited for before Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	zlog.Logger.Info().Str("directory", w.dir).Dur("debounce", w.debounce).Msg("watching for changes")

	defer w.wg.Wait()
	defer w.stopPending()

	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("watch stopped")
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if Ignored(filepath.Base(ev.Name)) {
				continue
			}
			w.schedule(ctx, ev.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			zlog.Logger.Warn().Err(err).Msg("watcher error")
		}
	}
}

// Ignored reports whether events for name never trigger processing:
// in-flight writes of the storage layer and our own outputs.
func Ignored(name string) bool {
	return file.IsTemp(name) || naming.IsThumbnail(name)
}

// schedule (re)starts the debounce timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(w.debounce)
		return
	}

	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		// A newer timer for the same path took over, or Run is exiting.
		if w.stopped || w.pending[path] != t {
			w.mu.Unlock()
			return
		}
		delete(w.pending, path)
		w.wg.Add(1)
		w.mu.Unlock()
		defer w.wg.Done()

		if ctx.Err() != nil {
			return
		}
		zlog.Logger.Debug().Str("path", path).Msg("change detected")
		w.handler.ProcessFile(ctx, path)
	})
	w.pending[path] = t
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}
