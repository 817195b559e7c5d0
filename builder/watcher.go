package builder

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads mapper files when they change on disk. Reloads swap whole
// namespaces in the configuration; statements already handed to sessions
// are never modified.
type Watcher struct {
	mu sync.Mutex

	loader    *Loader
	roots     []string
	logger    *zap.Logger
	fsWatcher *fsnotify.Watcher

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	debounceDelay time.Duration
	pendingEvents map[string]fsnotify.Op
	eventTimer    *time.Timer

	onReload func(path, namespace, event string)
	onError  func(err error)
}

type WatcherOption func(*Watcher)

// WithDebounceDelay sets how long events for a file are collected before it
// is reloaded. Default is 100ms.
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounceDelay = d }
}

// WithOnReload sets a callback run after a file was loaded ("created",
// "modified") or unregistered ("removed").
func WithOnReload(fn func(path, namespace, event string)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

func WithOnError(fn func(err error)) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

// NewWatcher watches roots, which may be mapper files or directories.
func NewWatcher(loader *Loader, roots []string, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		loader:        loader,
		roots:         roots,
		logger:        loader.logger.Named("watcher"),
		fsWatcher:     fsw,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
		debounceDelay: 100 * time.Millisecond,
		pendingEvents: make(map[string]fsnotify.Op),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start watches the roots and reloads changed files until Stop. If a root
// cannot be watched the watcher is closed and cannot be restarted.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, root := range w.roots {
		if err := w.addWatches(root); err != nil {
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			w.fsWatcher.Close()
			return err
		}
	}
	w.logger.Info("mapper watcher started", zap.Strings("roots", w.roots))

	go w.processEvents()
	return nil
}

func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.logger.Info("mapper watcher stopped")
	return w.fsWatcher.Close()
}

func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// addWatches watches a directory tree, or the directory holding a file;
// editors often replace files rather than write them in place.
func (w *Watcher) addWatches(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.fsWatcher.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			w.mu.Lock()
			if w.eventTimer != nil {
				w.eventTimer.Stop()
			}
			w.mu.Unlock()
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", zap.Error(err))
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !IsMapperFile(event.Name) {
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				w.fsWatcher.Add(event.Name)
			}
		}
		return
	}
	if !w.watched(event.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// last operation wins for the same file
	w.pendingEvents[event.Name] = event.Op
	if w.eventTimer != nil {
		w.eventTimer.Stop()
	}
	w.eventTimer = time.AfterFunc(w.debounceDelay, w.processPendingEvents)
}

// watched filters out sibling files when a root is a single file.
func (w *Watcher) watched(path string) bool {
	for _, root := range w.roots {
		info, err := os.Stat(root)
		if err == nil && info.IsDir() {
			return true
		}
		if filepath.Clean(root) == filepath.Clean(path) {
			return true
		}
		if a, err := filepath.Abs(root); err == nil {
			if b, err := filepath.Abs(path); err == nil && a == b {
				return true
			}
		}
	}
	return false
}

func (w *Watcher) processPendingEvents() {
	w.mu.Lock()
	events := w.pendingEvents
	w.pendingEvents = make(map[string]fsnotify.Op)
	w.mu.Unlock()

	for path, op := range events {
		w.processFileEvent(path, op)
	}
}

func (w *Watcher) processFileEvent(path string, op fsnotify.Op) {
	if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
		if _, err := os.Stat(path); err != nil {
			w.handleFileRemoved(path)
			return
		}
	}
	w.handleFileChanged(path)
}

func (w *Watcher) handleFileChanged(path string) {
	abs, _ := filepath.Abs(path)
	w.loader.mu.Lock()
	_, known := w.loader.files[abs]
	w.loader.mu.Unlock()

	ns, err := w.loader.LoadFile(path)
	if err != nil {
		w.logger.Error("failed to reload mapper", zap.String("path", path), zap.Error(err))
		if w.onError != nil {
			w.onError(err)
		}
		return
	}

	event := "created"
	if known {
		event = "modified"
	}
	w.logger.Info("mapper reloaded", zap.String("path", path), zap.String("namespace", ns), zap.String("event", event))
	if w.onReload != nil {
		w.onReload(path, ns, event)
	}
}

func (w *Watcher) handleFileRemoved(path string) {
	ns, ok, err := w.loader.Remove(path)
	if err != nil {
		w.logger.Error("failed to unregister removed mapper", zap.String("path", path), zap.Error(err))
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	if !ok {
		return
	}
	w.logger.Info("mapper removed", zap.String("path", path), zap.String("namespace", ns))
	if w.onReload != nil {
		w.onReload(path, ns, "removed")
	}
}
