package watchermodule

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/castellan/muse/internal/logger"
	"github.com/castellan/muse/internal/utils"
)

// changeSink receives normalized change notifications: a library id and a
// path relative to the library root. Both notifier implementations feed
// the same sink, keeping downstream coalescing backend-agnostic.
type changeSink func(libraryID uint32, relPath string)

// directoryNotifier is one live change-detection handle for one library.
// At most one exists per library at any time.
type directoryNotifier interface {
	// start begins delivering changes to the sink.
	start() error
	// stop tears the notifier down, waiting up to timeout for its
	// goroutine to exit.
	stop(timeout time.Duration)
}

// eventNotifier is the native notification backend: a recursive fsnotify
// subscription rooted at the library path. Raw events arrive on the
// watcher's goroutine; they are filtered and forwarded to the sink, which
// must be safe to call from a foreign goroutine.
type eventNotifier struct {
	libraryID uint32
	root      string
	sink      changeSink

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func newEventNotifier(libraryID uint32, root string, sink changeSink) *eventNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &eventNotifier{
		libraryID: libraryID,
		root:      root,
		sink:      sink,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

func (n *eventNotifier) start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	n.watcher = watcher

	if err := watcher.Add(n.root); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", n.root, err)
	}
	if err := n.addRecursiveWatch(n.root); err != nil {
		logger.Warn("failed to watch some subdirectories",
			"library_id", n.libraryID, "root", n.root, "error", err)
		// New subdirectories are picked up as create events arrive.
	}

	go n.watchEvents()

	logger.Info("event watcher started", "library_id", n.libraryID, "root", n.root)
	return nil
}

func (n *eventNotifier) stop(timeout time.Duration) {
	n.cancel()
	if n.watcher != nil {
		n.watcher.Close()
	}

	select {
	case <-n.done:
	case <-time.After(timeout):
		logger.Warn("event watcher did not stop in time", "library_id", n.libraryID)
	}
}

// addRecursiveWatch registers watches for every subdirectory under root.
func (n *eventNotifier) addRecursiveWatch(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && path != root {
			if err := n.watcher.Add(path); err != nil {
				logger.Debug("failed to watch subdirectory", "path", path, "error", err)
			}
		}
		return nil
	})
}

// watchEvents is the notifier's event loop. It runs on its own goroutine;
// the only shared state it touches is behind the sink.
func (n *eventNotifier) watchEvents() {
	defer close(n.done)

	for {
		select {
		case event, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			n.handleEvent(event)

		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			// Filesystem read errors drop the event, not the watcher.
			logger.Error("file watcher error", "library_id", n.libraryID, "error", err)

		case <-n.ctx.Done():
			return
		}
	}
}

func (n *eventNotifier) handleEvent(event fsnotify.Event) {
	// New directories need their own watch before their contents are
	// visible to us.
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := n.watcher.Add(event.Name); err != nil {
				logger.Error("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	// Directory events carry no per-file information we act on.
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		return
	}

	if !utils.IsRelevantChange(event.Name) {
		return
	}

	rel, err := filepath.Rel(n.root, event.Name)
	if err != nil {
		logger.Debug("event outside library root", "library_id", n.libraryID, "path", event.Name)
		return
	}

	n.sink(n.libraryID, filepath.ToSlash(rel))
}
