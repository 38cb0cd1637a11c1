package bundle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"empacy/pkg/logging"
	"empacy/pkg/protocol"

	"github.com/fsnotify/fsnotify"
)

const debounceDuration = 100 * time.Millisecond

// RefreshFunc is called after a watched package has been redistributed.
type RefreshFunc func(pkg Package)

// Watcher redistributes an agent's package when one of its files changes on
// disk. Parent directories are watched rather than the files themselves so
// that editors replacing files by rename are still observed.
type Watcher struct {
	mgr     *Manager
	fs      *fsnotify.Watcher
	logger  *slog.Logger
	onFresh RefreshFunc

	mu     sync.Mutex
	files  map[string][]string        // agentID -> requested file names
	paths  map[string]map[string]bool // resolved path -> agentIDs
	dirs   map[string]int             // watched dir -> tracked path count
	dirty  map[string]bool
	closed bool
}

// NewWatcher creates a Watcher bound to mgr. onRefresh may be nil.
func NewWatcher(mgr *Manager, logger *slog.Logger, onRefresh RefreshFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	return &Watcher{
		mgr:     mgr,
		fs:      fw,
		logger:  logging.Component(logger, "context-watch"),
		onFresh: onRefresh,
		files:   make(map[string][]string),
		paths:   make(map[string]map[string]bool),
		dirs:    make(map[string]int),
		dirty:   make(map[string]bool),
	}, nil
}

// Track starts watching every file requested in agentID's latest
// distribution, replacing any earlier tracking for that agent. Requested
// files that were missing or unreadable are watched too, so creating one
// later refreshes the package.
func (w *Watcher) Track(agentID string) error {
	pkg, err := w.mgr.GetContext(agentID)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(pkg.ContextFiles))
	for _, r := range pkg.ContextFiles {
		names = append(names, r.File)
	}
	requested := w.mgr.lastRequested(agentID, names)

	paths := make([]string, 0, len(requested))
	for _, r := range pkg.ContextFiles {
		paths = append(paths, r.Path)
	}
	for _, name := range requested {
		if path, err := w.mgr.resolve(name); err == nil {
			paths = append(paths, path)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("watcher closed")
	}

	w.untrackLocked(agentID)
	w.files[agentID] = requested
	for _, path := range paths {
		path = filepath.Clean(path)
		if w.paths[path] == nil {
			w.paths[path] = make(map[string]bool)
			dir := filepath.Dir(path)
			if w.dirs[dir] == 0 {
				if err := w.fs.Add(dir); err != nil {
					w.logger.Warn("cannot watch directory", "dir", dir, "error", err)
				}
			}
			w.dirs[dir]++
		}
		w.paths[path][agentID] = true
	}
	w.logger.Debug("tracking context files", "agentId", agentID, "files", len(w.files[agentID]))
	return nil
}

// Untrack stops watching agentID's files.
func (w *Watcher) Untrack(agentID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.untrackLocked(agentID)
}

func (w *Watcher) untrackLocked(agentID string) {
	if _, ok := w.files[agentID]; !ok {
		return
	}
	delete(w.files, agentID)
	delete(w.dirty, agentID)
	for path, agents := range w.paths {
		if !agents[agentID] {
			continue
		}
		delete(agents, agentID)
		if len(agents) > 0 {
			continue
		}
		delete(w.paths, path)
		dir := filepath.Dir(path)
		w.dirs[dir]--
		if w.dirs[dir] <= 0 {
			delete(w.dirs, dir)
			_ = w.fs.Remove(dir)
		}
	}
}

// Tracked reports whether agentID is being watched.
func (w *Watcher) Tracked(agentID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.files[agentID]
	return ok
}

// Run processes file events until ctx is cancelled. Bursts of events are
// debounced before the affected agents are redistributed.
func (w *Watcher) Run(ctx context.Context) {
	timer := time.NewTimer(debounceDuration)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if w.markDirty(filepath.Clean(ev.Name)) {
				timer.Reset(debounceDuration)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fs watcher error", "error", err)
		case <-timer.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) markDirty(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	agents, ok := w.paths[path]
	if !ok {
		return false
	}
	for id := range agents {
		w.dirty[id] = true
	}
	return true
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	pending := make(map[string][]string, len(w.dirty))
	for id := range w.dirty {
		pending[id] = w.files[id]
	}
	w.dirty = make(map[string]bool)
	w.mu.Unlock()

	for id, files := range pending {
		if _, err := w.mgr.GetContext(id); err != nil {
			var nf *protocol.NotFoundError
			if errors.As(err, &nf) {
				w.Untrack(id)
				continue
			}
		}
		pkg, err := w.mgr.UpdateContext(ctx, id, files)
		if err != nil {
			w.logger.Warn("context refresh failed", "agentId", id, "error", err)
			continue
		}
		w.logger.Info("context refreshed from disk", "agentId", id, "version", pkg.Version)
		if w.onFresh != nil {
			w.onFresh(pkg)
		}
	}
}

// Close releases the underlying fs watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.fs.Close(); err != nil {
		return fmt.Errorf("close fs watcher: %w", err)
	}
	return nil
}
