package watchermodule

import (
	"context"
	"time"

	"github.com/castellan/muse/internal/logger"
)

// pollNotifier is the manual fallback backend: a loop that sleeps a
// configured interval and, while the library remains watchable, emits one
// whole-library change per iteration. When the library vanishes or stops
// qualifying, the loop schedules its own teardown and exits cleanly.
type pollNotifier struct {
	libraryID uint32
	interval  time.Duration
	sink      changeSink

	// stillWatchable re-validates the library each iteration: it must
	// still exist, be enabled, and still be in poll mode.
	stillWatchable func(libraryID uint32) bool
	// onPoll stamps the last-poll time for the library.
	onPoll func(libraryID uint32, at time.Time)
	// selfRemove deregisters this handle when the loop disqualifies
	// itself; it must be safe to call from the poll goroutine.
	selfRemove func(libraryID uint32)

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newPollNotifier(
	libraryID uint32,
	interval time.Duration,
	sink changeSink,
	stillWatchable func(uint32) bool,
	onPoll func(uint32, time.Time),
	selfRemove func(uint32),
) *pollNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &pollNotifier{
		libraryID:      libraryID,
		interval:       interval,
		sink:           sink,
		stillWatchable: stillWatchable,
		onPoll:         onPoll,
		selfRemove:     selfRemove,
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
}

func (p *pollNotifier) start() error {
	go p.loop()
	logger.Info("poll watcher started", "library_id", p.libraryID, "interval", p.interval)
	return nil
}

// stop cancels the loop. The loop only blocks in cancellable sleeps, so
// teardown is immediate and the timeout is not consulted.
func (p *pollNotifier) stop(timeout time.Duration) {
	p.cancel()
	<-p.done
}

func (p *pollNotifier) loop() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !p.stillWatchable(p.libraryID) {
				logger.Info("library no longer watchable, poll watcher exiting",
					"library_id", p.libraryID)
				go p.selfRemove(p.libraryID)
				return
			}
			p.onPoll(p.libraryID, time.Now())
			p.sink(p.libraryID, "")

		case <-p.ctx.Done():
			return
		}
	}
}
