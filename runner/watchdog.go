package runner

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// watchdog periodically logs which batches are still in flight so a hung
// worker is visible before it blocks the whole run. The controller updates
// it at launch and completion; the ticker goroutine only reads.
type watchdog struct {
	logger   log.Logger
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once

	mu        sync.Mutex
	running   map[string]time.Time
	completed int
}

// newWatchdog starts the reporting goroutine. A zero interval returns an
// inert watchdog.
func newWatchdog(logger log.Logger, interval time.Duration) *watchdog {
	w := &watchdog{
		logger:  logger,
		stopCh:  make(chan struct{}),
		running: make(map[string]time.Time),
	}
	if interval <= 0 {
		return w
	}
	w.ticker = time.NewTicker(interval)
	go w.loop()
	return w
}

func (w *watchdog) started(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running[name] = time.Now()
}

func (w *watchdog) finished(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.running, name)
	w.completed++
}

func (w *watchdog) stop() {
	w.stopOnce.Do(func() {
		if w.ticker != nil {
			w.ticker.Stop()
		}
		close(w.stopCh)
	})
}

func (w *watchdog) loop() {
	for {
		select {
		case <-w.ticker.C:
			w.report()
		case <-w.stopCh:
			return
		}
	}
}

func (w *watchdog) report() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.running) == 0 {
		return
	}
	w.logger.Info("Batches still running",
		"numRunning", len(w.running),
		"completed", w.completed,
		"longestRunning", formatRunning(w.running, 3))
}

// formatRunning lists the longest-running batches, oldest first, capped at
// maxShow entries.
func formatRunning(running map[string]time.Time, maxShow int) string {
	type entry struct {
		name    string
		elapsed time.Duration
	}

	now := time.Now()
	entries := make([]entry, 0, len(running))
	for name, startedAt := range running {
		entries = append(entries, entry{name: name, elapsed: now.Sub(startedAt)})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].elapsed > entries[j].elapsed
	})

	shown := make([]string, 0, maxShow+1)
	for i, e := range entries {
		if i >= maxShow {
			break
		}
		shown = append(shown, fmt.Sprintf("%s (%v)", e.name, e.elapsed.Truncate(time.Second)))
	}
	if len(entries) > maxShow {
		shown = append(shown, fmt.Sprintf("+%d more", len(entries)-maxShow))
	}
	return strings.Join(shown, ", ")
}
