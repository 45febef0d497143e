package scanner

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/castellan/muse/internal/logger"
)

// loadThrottle paces scan batches against host CPU pressure so a rescan
// does not starve playback or other tenants of the machine. Samples are
// cached briefly to keep the probe itself cheap.
type loadThrottle struct {
	enabled   bool
	highWater float64
	pause     time.Duration

	mu        sync.Mutex
	lastCPU   float64
	sampledAt time.Time
}

func newLoadThrottle(enabled bool, highWater float64, pause time.Duration) *loadThrottle {
	return &loadThrottle{
		enabled:   enabled,
		highWater: highWater,
		pause:     pause,
	}
}

// maybePause sleeps for the configured pause when CPU usage is above the
// high-water mark. Probe failures are treated as "not busy".
func (t *loadThrottle) maybePause() {
	if !t.enabled {
		return
	}
	if t.cpuPercent() >= t.highWater {
		logger.Debug("scan throttled by cpu pressure", "high_water", t.highWater)
		time.Sleep(t.pause)
	}
}

func (t *loadThrottle) cpuPercent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if time.Since(t.sampledAt) < 3*time.Second {
		return t.lastCPU
	}

	percentages, err := cpu.Percent(0, false)
	if err != nil || len(percentages) == 0 {
		return 0
	}
	t.lastCPU = percentages[0]
	t.sampledAt = time.Now()
	return t.lastCPU
}
