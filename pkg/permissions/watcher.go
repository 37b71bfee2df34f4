package permissions

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads extension module manifests when files in the watched
// directory change, and republishes the merged registry to subscribers.
type Watcher struct {
	dir      string
	core     *Registry
	opts     MergeOptions
	onReload func(*MergeResult)
	onError  func(error)

	watcher *fsnotify.Watcher
	done    chan struct{}

	mu      sync.RWMutex
	current *Registry
}

// NewWatcher creates a manifest watcher over a directory. onReload receives
// each successful merge; onError receives load or merge failures (the
// previous registry stays in effect).
func NewWatcher(dir string, core *Registry, opts MergeOptions, onReload func(*MergeResult), onError func(error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		dir:      dir,
		core:     core,
		opts:     opts,
		onReload: onReload,
		onError:  onError,
		watcher:  fsw,
		done:     make(chan struct{}),
	}

	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	// Initial load so Current is usable before the first file event.
	if err := w.reload(); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

// Current returns the most recently merged registry
func (w *Watcher) Current() *Registry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops the watcher
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	// Editors fire bursts of events per save; debounce before reloading.
	var pending <-chan time.Time

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			ext := filepath.Ext(event.Name)
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			pending = time.After(250 * time.Millisecond)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		case <-pending:
			pending = nil
			if err := w.reload(); err != nil && w.onError != nil {
				w.onError(err)
			}
		}
	}
}

func (w *Watcher) reload() error {
	modules, err := LoadModulesFromDir(w.dir)
	if err != nil {
		return err
	}

	result, err := Merge(w.core, modules, w.opts)
	if err != nil {
		return fmt.Errorf("failed to merge extension modules: %w", err)
	}

	w.mu.Lock()
	w.current = result.Registry
	w.mu.Unlock()

	if w.onReload != nil {
		w.onReload(result)
	}
	return nil
}
