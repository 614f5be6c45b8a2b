package registry

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchOptions controls watcher behavior.
type WatchOptions struct {
	// DebounceMs groups rapid save events per file. 0 means 200ms.
	DebounceMs int
}

// Watcher feeds filesystem change events into the registry: writes and
// creates become debounced UpdateFile calls, removes and renames drop the
// file's descriptors. It is the headless counterpart of an editor's
// on-save hook.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher
	options  WatchOptions
	logger   *slog.Logger

	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	mu       sync.Mutex
	stopped  bool
	stopChan chan struct{}
}

// NewWatcher creates a watcher bound to the registry.
func NewWatcher(registry *Registry, options WatchOptions, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if options.DebounceMs == 0 {
		options.DebounceMs = 200
	}
	return &Watcher{
		registry:       registry,
		watcher:        fsw,
		options:        options,
		logger:         logger,
		debounceTimers: make(map[string]*time.Timer),
		stopChan:       make(chan struct{}),
	}, nil
}

// Start watches every directory under the given roots and begins the event
// loop in the background. Unreadable subdirectories are skipped with a
// warning.
func (w *Watcher) Start(roots []string) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return fmt.Errorf("watcher already stopped")
	}
	w.mu.Unlock()

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			if err := w.watcher.Add(path); err != nil {
				w.logger.Warn("cannot watch directory", "path", path, "error", err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("watch setup for %s: %w", root, err)
		}
	}

	w.logger.Info("file watcher started", "roots", len(roots))
	go w.eventLoop()
	return nil
}

// Stop stops the watcher. Idempotent.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopChan)

	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	w.debounceTimers = make(map[string]*time.Timer)
	w.debounceMu.Unlock()

	err := w.watcher.Close()
	w.logger.Info("file watcher stopped")
	return err
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	if !relevantSource(path) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Write), event.Op.Has(fsnotify.Create):
		w.debounceUpdate(path)
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		w.logger.Debug("source file removed", "file", path)
		w.registry.RemoveFile(path)
	}
}

func isManifest(path string) bool {
	base := filepath.Base(path)
	return base == "__manifest__.py" || base == "__openerp__.py"
}

// relevantSource mirrors the scanner's file selection: Python sources that
// are neither dunder nor test files, plus manifests (a manifest edit changes
// the dependency lists copied onto descriptors).
func relevantSource(path string) bool {
	if isManifest(path) {
		return true
	}
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".py") {
		return false
	}
	return !strings.HasPrefix(base, "__") && !strings.HasPrefix(base, "test_")
}

// debounceUpdate schedules an UpdateFile after the debounce window,
// replacing any pending timer for the same path.
func (w *Watcher) debounceUpdate(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debounceTimers[path]; exists {
		timer.Stop()
	}
	w.debounceTimers[path] = time.AfterFunc(
		time.Duration(w.options.DebounceMs)*time.Millisecond,
		func() {
			var err error
			if isManifest(path) {
				err = w.registry.UpdateModule(context.Background(), filepath.Dir(path))
			} else {
				err = w.registry.UpdateFile(context.Background(), path)
			}
			if err != nil {
				w.logger.Warn("file update failed", "file", path, "error", err)
			}
			w.debounceMu.Lock()
			delete(w.debounceTimers, path)
			w.debounceMu.Unlock()
		},
	)
}
