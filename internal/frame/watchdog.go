package frame

import (
	"context"
	"time"

	"github.com/loov/hrtime"
	"github.com/vkngwrapper/present/internal/logging"
)

// Watchdog warns when a single fence wait runs past a threshold. Waits are
// unbounded; this only makes a stuck GPU visible in the log.
type Watchdog struct {
	sync      *Synchronizer
	threshold time.Duration
	interval  time.Duration
	clock     func() time.Duration

	warnedFor time.Duration
}

func NewWatchdog(sync *Synchronizer, threshold time.Duration) *Watchdog {
	interval := threshold / 4
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	return &Watchdog{
		sync:      sync,
		threshold: threshold,
		interval:  interval,
		clock:     hrtime.Now,
	}
}

// check returns true when it logs. Each wait is reported once.
func (w *Watchdog) check() bool {
	start, waiting := w.sync.WaitingSince()
	if !waiting || start == w.warnedFor {
		return false
	}

	elapsed := w.clock() - start
	if elapsed < w.threshold {
		return false
	}

	w.warnedFor = start
	logging.Logger().Warn("frame: fence wait exceeds limit",
		"waited", elapsed,
		"limit", w.threshold)
	return true
}

// Run polls until ctx is done. It always returns nil so it can sit in an
// errgroup beside the render loop.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.check()
		}
	}
}
