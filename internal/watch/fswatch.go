package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/svcbuilder/internal/config"
	"git.home.luguber.info/inful/svcbuilder/internal/logfields"
)

// Source delivers debounced change sets to the supervisor.
type Source interface {
	// Start establishes the watches. It returns once the source is ready.
	Start(ctx context.Context) error
	// Changes is closed when the source stops.
	Changes() <-chan ChangeSet
	Close() error
}

// FSWatcher watches the project tree with fsnotify.
type FSWatcher struct {
	root      string
	filter    *Filter
	debouncer *Debouncer

	mu      sync.Mutex
	closed  bool
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// ErrWatcherClosed is returned by Start once Close has been called.
var ErrWatcherClosed = errors.New("file watcher closed")

// NewFSWatcher creates a watcher for root using the project's watch settings.
func NewFSWatcher(root string, settings config.WatchSettings) (*FSWatcher, error) {
	filter, err := NewFilter(root, settings)
	if err != nil {
		return nil, err
	}
	debouncer, err := NewDebouncer(DebouncerConfig{
		QuietWindow: settings.DebounceDuration(),
		MaxDelay:    settings.MaxDelayDuration(),
	})
	if err != nil {
		return nil, err
	}
	return &FSWatcher{root: root, filter: filter, debouncer: debouncer}, nil
}

func (w *FSWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("fsnotify: %w", err)
	}
	w.watcher = watcher
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(2)
	w.mu.Unlock()

	watched := 0
	for _, rel := range w.filter.Roots() {
		dir := filepath.Join(w.root, filepath.FromSlash(rel))
		if fi, statErr := os.Stat(dir); statErr != nil || !fi.IsDir() {
			slog.Warn("Watch root does not exist", logfields.Path(rel))
			continue
		}
		watched += w.addDirsRecursive(dir)
	}
	slog.Debug("File watches established", logfields.Count(watched))

	go func() {
		defer w.wg.Done()
		_ = w.debouncer.Run(ctx)
	}()
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()

	select {
	case <-w.debouncer.Ready():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (w *FSWatcher) Changes() <-chan ChangeSet { return w.debouncer.Output() }

// Close stops the underlying watcher and waits for the event loop to exit.
// A Start racing with Close either finishes first and is torn down here, or
// fails with ErrWatcherClosed.
func (w *FSWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.wg.Wait()
		return nil
	}
	w.closed = true
	cancel, watcher := w.cancel, w.watcher
	w.mu.Unlock()

	var err error
	if cancel != nil {
		cancel()
	}
	if watcher != nil {
		err = watcher.Close()
	}
	w.wg.Wait()
	return err
}

func (w *FSWatcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFileEvent(ctx, ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("File watcher error", logfields.Error(err))
		}
	}
}

func (w *FSWatcher) handleFileEvent(ctx context.Context, ev fsnotify.Event) {
	if shouldIgnoreEvent(ev.Name) || ev.Op == fsnotify.Chmod {
		return
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if !w.filter.SkipDir(rel) {
				w.addDirsRecursive(ev.Name)
			}
			return
		}
	}
	if !w.filter.Match(rel) {
		return
	}
	slog.Debug("File change detected", logfields.Path(filepath.ToSlash(rel)), slog.String("op", ev.Op.String()))
	w.debouncer.Add(ctx, filepath.ToSlash(rel))
}

// addDirsRecursive adds root and every non-ignored directory below it.
func (w *FSWatcher) addDirsRecursive(root string) int {
	added := 0
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root {
			rel, relErr := filepath.Rel(w.root, path)
			if relErr != nil || shouldIgnoreEvent(path) || w.filter.SkipDir(rel) {
				return filepath.SkipDir
			}
		}
		if err := w.watcher.Add(path); err != nil {
			slog.Warn("watch add failed", logfields.Path(path), logfields.Error(err))
			return nil
		}
		added++
		return nil
	})
	return added
}

// shouldIgnoreEvent filters hidden files and editor temp files.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}

	// Editor temp/swap files
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}

	return base == "Thumbs.db"
}
