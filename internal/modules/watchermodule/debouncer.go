package watchermodule

import (
	"sync"
	"time"

	"github.com/castellan/muse/internal/logger"
)

// Debouncer aggregates a burst of pending changes into one coalesced scan
// request per library per quiet period. Add is safe to call from any
// goroutine; notifier callbacks only ever add, and the flush runs on the
// timer's own goroutine, never on a notifier thread.
type Debouncer struct {
	mu      sync.Mutex
	pending map[pendingChange]struct{}
	timer   *time.Timer
	window  time.Duration
	stopped bool

	dispatcher Dispatcher
}

// NewDebouncer creates a debouncer that waits for a quiet period of window
// before reducing and dispatching the accumulated changes.
func NewDebouncer(window time.Duration, dispatcher Dispatcher) *Debouncer {
	return &Debouncer{
		pending:    make(map[pendingChange]struct{}),
		window:     window,
		dispatcher: dispatcher,
	}
}

// Add records a change and re-arms the quiet-period timer. Changes arriving
// faster than the window collapse into a single dispatch per library.
func (d *Debouncer) Add(libraryID uint32, relPath string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.pending[pendingChange{libraryID: libraryID, relPath: relPath}] = struct{}{}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// ClearLibrary drops every pending change scoped to one library, so a
// stale timer cannot dispatch for a library that is no longer watched.
func (d *Debouncer) ClearLibrary(libraryID uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for change := range d.pending {
		if change.libraryID == libraryID {
			delete(d.pending, change)
		}
	}
}

// Flush dispatches whatever is pending immediately. Used at shutdown.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.flush()
}

// Stop cancels the timer and discards pending changes.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = make(map[pendingChange]struct{})
}

// PendingCount reports the size of the pending set.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// flush snapshots and clears the pending set atomically, then reduces and
// dispatches per library outside the lock. Changes arriving after the
// snapshot start a fresh accumulation window.
func (d *Debouncer) flush() {
	d.mu.Lock()
	if len(d.pending) == 0 {
		d.timer = nil
		d.mu.Unlock()
		return
	}
	snapshot := d.pending
	d.pending = make(map[pendingChange]struct{})
	d.timer = nil
	d.mu.Unlock()

	byLibrary := make(map[uint32][]string)
	for change := range snapshot {
		byLibrary[change.libraryID] = append(byLibrary[change.libraryID], change.relPath)
	}

	for libraryID, paths := range byLibrary {
		targets := ReduceTargets(libraryID, paths)
		logger.Debug("dispatching coalesced changes",
			"library_id", libraryID, "changes", len(paths), "targets", len(targets))
		d.dispatcher.Dispatch(targets)
	}
}
