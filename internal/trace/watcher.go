package trace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"propprof/internal/logging"
)

// Watcher watches a directory for trace files and replays each one after
// its writes settle. Editors and trace writers produce bursts of events per
// file; the debounce window collapses a burst into a single replay.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	dir         string
	onResult    func(*Result)
	debounceMap map[string]time.Time
	debounceDur time.Duration
	tickDur     time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats WatcherStats
}

// WatcherStats tracks watcher activity for debugging.
type WatcherStats struct {
	FilesSeen     int
	Replays       int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// NewWatcher creates a Watcher for dir. onResult runs once per replayed
// trace, on whichever goroutine performed the replay: the event loop for
// watched files, the caller for a TriggerReplay sweep.
func NewWatcher(dir string, onResult func(*Result)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:     watcher,
		dir:         dir,
		onResult:    onResult,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond, // Debounce rapid writes
		tickDur:     100 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching the trace directory. Non-blocking; the event loop
// runs in a goroutine until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil // Already running
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		logging.TraceWarn("failed to create trace dir %s: %v (continuing anyway)", w.dir, err)
	}

	if err := w.watcher.Add(w.dir); err != nil {
		logging.TraceWarn("initial watch of %s failed: %v", w.dir, err)
	} else {
		logging.Trace("watching trace directory: %s", w.dir)
	}

	go w.run(ctx)

	return nil
}

// Stop stops the watcher and waits for the event loop to drain.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.TraceError("error closing watcher: %v", err)
	}
	logging.Trace("trace watcher stopped")
}

// run is the main event loop for the watcher.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	debounceTicker := time.NewTicker(w.tickDur)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.TraceDebug("trace watcher: context cancelled")
			return

		case <-w.stopCh:
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
			logging.TraceError("trace watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.processDebouncedEvents()
		}
	}
}

// handleEvent records a single filesystem event for debounced processing.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Only care about trace files
	if !strings.HasSuffix(event.Name, ".jsonl") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if _, seen := w.debounceMap[event.Name]; !seen {
			w.stats.FilesSeen++
		}
		w.debounceMap[event.Name] = time.Now()
		w.stats.LastEventTime = time.Now()
		w.stats.LastEventPath = event.Name
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A file that vanished mid-burst must not be replayed.
		delete(w.debounceMap, event.Name)
	}
}

// processDebouncedEvents replays files whose events have settled past the
// debounce window.
func (w *Watcher) processDebouncedEvents() {
	w.mu.Lock()
	now := time.Now()
	toReplay := make([]string, 0)

	for path, eventTime := range w.debounceMap {
		if now.Sub(eventTime) >= w.debounceDur {
			toReplay = append(toReplay, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range toReplay {
		w.replayPath(path)
	}
}

// replayPath replays one settled trace file and hands off the result.
func (w *Watcher) replayPath(path string) {
	res, err := ReplayFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.TraceDebug("trace vanished before replay: %s", path)
			return
		}
		logging.TraceError("replay of %s failed: %v", path, err)
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.stats.Replays++
	w.mu.Unlock()

	logging.Trace("replayed trace: %s (session %s)", path, res.Session)
	if w.onResult != nil {
		w.onResult(res)
	}
}

// TriggerReplay replays every trace file already in the directory. Useful
// at startup so existing traces are not silently skipped.
func (w *Watcher) TriggerReplay() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			logging.TraceDebug("trace dir does not exist: %s", w.dir)
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		w.replayPath(filepath.Join(w.dir, entry.Name()))
	}

	return nil
}

// Stats returns a snapshot of watcher activity.
func (w *Watcher) Stats() WatcherStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// IsWatching returns true while the event loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
