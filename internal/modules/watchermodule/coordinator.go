package watchermodule

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/castellan/muse/internal/config"
	"github.com/castellan/muse/internal/database"
	"github.com/castellan/muse/internal/events"
	"github.com/castellan/muse/internal/logger"
	"github.com/castellan/muse/internal/modules/librarymodule"
)

// Coordinator owns every live watcher handle, the pending-change debouncer,
// and the last-poll timestamps. All of that state is scoped to one
// Coordinator instance; the invariant is at most one handle per library id,
// with any existing handle torn down before a new one starts.
type Coordinator struct {
	mu      sync.Mutex
	handles map[uint32]directoryNotifier

	// lastPoll has its own lock: the poll loop stamps it on every tick,
	// and teardown waits on that loop while holding c.mu. Sharing c.mu
	// here would deadlock a SwitchMode against a concurrent tick.
	pollMu   sync.Mutex
	lastPoll map[uint32]time.Time

	libraries *librarymodule.Manager
	eventBus  events.EventBus
	debouncer *Debouncer
	cfg       config.WatcherConfig
}

// NewCoordinator creates a watch coordinator. Coalesced change sets flow
// to the dispatcher.
func NewCoordinator(libraries *librarymodule.Manager, eventBus events.EventBus, dispatcher Dispatcher, cfg config.WatcherConfig) *Coordinator {
	return &Coordinator{
		handles:   make(map[uint32]directoryNotifier),
		lastPoll:  make(map[uint32]time.Time),
		libraries: libraries,
		eventBus:  eventBus,
		debouncer: NewDebouncer(cfg.DebounceWindow, dispatcher),
		cfg:       cfg,
	}
}

// StartAll starts a watcher for every enabled library whose mode is not
// off. Per-library failures are logged and skipped so one bad root does
// not block the rest.
func (c *Coordinator) StartAll() error {
	libraries, err := c.libraries.ListWatchable()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range libraries {
		lib := &libraries[i]
		if err := c.startLocked(lib); err != nil {
			logger.Error("failed to start watcher",
				"library_id", lib.ID, "mode", string(lib.WatchMode), "error", err)
		}
	}
	return nil
}

// StopAll tears down every handle and discards pending changes.
func (c *Coordinator) StopAll() {
	c.mu.Lock()
	handles := c.handles
	c.handles = make(map[uint32]directoryNotifier)
	c.mu.Unlock()

	for libraryID, h := range handles {
		h.stop(c.cfg.StopTimeout)
		c.forgetPoll(libraryID)
		c.publishStopped(libraryID)
	}
	c.debouncer.Stop()
}

// SwitchMode changes a library's change-detection strategy. It is
// idempotent: any existing handle is torn down, pending changes scoped to
// the library are cleared, the mode is persisted, and (unless the mode is
// off) a fresh handle starts. Invalid modes are rejected before any
// teardown happens.
func (c *Coordinator) SwitchMode(libraryID uint32, mode database.WatchMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid watch mode: %s", mode)
	}

	library, err := c.libraries.Get(libraryID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardownLocked(libraryID)
	c.debouncer.ClearLibrary(libraryID)

	if err := c.libraries.SetWatchMode(libraryID, mode); err != nil {
		return err
	}
	library.WatchMode = mode

	if mode == database.WatchModeOff {
		return nil
	}
	return c.startLocked(library)
}

// LastPoll returns the last time a poll-mode watcher completed an
// iteration for the library.
func (c *Coordinator) LastPoll(libraryID uint32) (time.Time, bool) {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	t, ok := c.lastPoll[libraryID]
	return t, ok
}

// Watching reports whether a live handle exists for the library.
func (c *Coordinator) Watching(libraryID uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handles[libraryID]
	return ok
}

// Debouncer exposes the coordinator's debouncer, primarily for tests and
// for shutdown flushing.
func (c *Coordinator) Debouncer() *Debouncer {
	return c.debouncer
}

// startLocked starts the notifier matching the library's mode. Callers
// hold c.mu; any previous handle must already be gone.
func (c *Coordinator) startLocked(library *database.Library) error {
	if library.WatchMode == database.WatchModeOff {
		return nil
	}

	if info, err := os.Stat(library.RootPath); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: root %s missing for library %d",
			librarymodule.ErrLibraryNotFound, library.RootPath, library.ID)
	}

	switch library.WatchMode {
	case database.WatchModeEvent:
		notifier := newEventNotifier(library.ID, library.RootPath, c.onChange)
		if err := notifier.start(); err != nil {
			return err
		}
		c.handles[library.ID] = notifier

	case database.WatchModePoll:
		var notifier *pollNotifier
		notifier = newPollNotifier(
			library.ID,
			c.cfg.PollInterval,
			c.onChange,
			c.stillWatchable,
			c.recordPoll,
			func(libraryID uint32) { c.removeExpired(libraryID, notifier) },
		)
		if err := notifier.start(); err != nil {
			return err
		}
		c.handles[library.ID] = notifier

	default:
		return fmt.Errorf("invalid watch mode: %s", library.WatchMode)
	}

	if c.eventBus != nil {
		event := events.NewSystemEvent(
			events.EventWatcherStarted,
			"Library Watcher Started",
			fmt.Sprintf("Watching library %d in %s mode", library.ID, library.WatchMode),
		)
		event.Data = map[string]interface{}{
			"library_id": library.ID,
			"mode":       string(library.WatchMode),
		}
		c.eventBus.PublishAsync(event)
	}
	return nil
}

// teardownLocked stops and forgets the handle for a library, if any.
func (c *Coordinator) teardownLocked(libraryID uint32) {
	h, ok := c.handles[libraryID]
	if !ok {
		return
	}
	delete(c.handles, libraryID)
	h.stop(c.cfg.StopTimeout)
	c.forgetPoll(libraryID)
	c.publishStopped(libraryID)
}

// onChange is the sink both notifier backends feed. It runs on notifier
// goroutines and only touches the mutex-guarded pending set.
func (c *Coordinator) onChange(libraryID uint32, relPath string) {
	c.debouncer.Add(libraryID, relPath)
}

// stillWatchable re-validates a poll-mode library between sleeps.
func (c *Coordinator) stillWatchable(libraryID uint32) bool {
	library, err := c.libraries.Get(libraryID)
	if err != nil {
		if !errors.Is(err, librarymodule.ErrLibraryNotFound) {
			logger.Error("failed to re-validate library", "library_id", libraryID, "error", err)
		}
		return false
	}
	if !library.IsEnabled || library.WatchMode != database.WatchModePoll {
		return false
	}
	if info, err := os.Stat(library.RootPath); err != nil || !info.IsDir() {
		return false
	}
	return true
}

func (c *Coordinator) recordPoll(libraryID uint32, at time.Time) {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	c.lastPoll[libraryID] = at
}

func (c *Coordinator) forgetPoll(libraryID uint32) {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	delete(c.lastPoll, libraryID)
}

// removeExpired deregisters a poll handle whose loop disqualified itself.
// The loop is already exiting, so only the bookkeeping remains.
// removeExpired deregisters a poll handle that disqualified itself. A
// SwitchMode may have already replaced the handle; only the expiring one
// is removed.
func (c *Coordinator) removeExpired(libraryID uint32, expired directoryNotifier) {
	c.mu.Lock()
	current, ok := c.handles[libraryID]
	if ok && current == expired {
		delete(c.handles, libraryID)
	} else {
		ok = false
	}
	c.mu.Unlock()

	if ok {
		c.forgetPoll(libraryID)
		c.debouncer.ClearLibrary(libraryID)
		c.publishStopped(libraryID)
	}
}

func (c *Coordinator) publishStopped(libraryID uint32) {
	if c.eventBus == nil {
		return
	}
	event := events.NewSystemEvent(
		events.EventWatcherStopped,
		"Library Watcher Stopped",
		fmt.Sprintf("Stopped watching library %d", libraryID),
	)
	event.Data = map[string]interface{}{"library_id": libraryID}
	c.eventBus.PublishAsync(event)
}
