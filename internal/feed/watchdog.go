package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trandminh/quote-ingest/internal/observ"
)

// Watchdog detects the failure a transport error never reports: a connection
// that stays open but silently stops delivering data. During the trading
// session it watches the gap since the last message and, past the threshold,
// alerts and forces a reconnect. Both ride the limiter's cooldown decision,
// so a persistent outage produces one alert and one forced reconnect per
// cooldown window regardless of how the tick and threshold are tuned.
type Watchdog struct {
	mgr       *Manager
	alerts    Notifier
	interval  time.Duration
	threshold time.Duration

	mu      sync.Mutex
	done    chan struct{}
	running bool

	now func() time.Time
}

// NewWatchdog creates an idle-link watchdog over the connection manager.
func NewWatchdog(mgr *Manager, alerts Notifier, interval, threshold time.Duration) *Watchdog {
	return &Watchdog{
		mgr:       mgr,
		alerts:    alerts,
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
	}
}

// Start begins periodic checking. Calling Start on a running watchdog is a
// no-op.
func (w *Watchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.done = make(chan struct{})

	go w.loop(w.done)
	observ.Log("watchdog_started", map[string]any{
		"interval_s":  w.interval.Seconds(),
		"threshold_s": w.threshold.Seconds(),
	})
}

// Stop halts checking. Safe to call when not running.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	close(w.done)
	observ.Log("watchdog_stopped", map[string]any{})
}

func (w *Watchdog) loop(done <-chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			w.Check(context.Background())
		}
	}
}

// Check runs one watchdog evaluation. A fresh message resets the gap and the
// check takes no action. While the link stays idle, a tear-down/redial cycle
// happens only when the no-data cooldown admits the alert; suppressed ticks
// just log, so a short threshold cannot thrash the broker.
func (w *Watchdog) Check(ctx context.Context) {
	if !w.mgr.InSession() {
		return
	}

	gap := w.now().Sub(w.mgr.LastMessageAt())
	observ.SetGauge("mqtt_message_gap_seconds", gap.Seconds(), map[string]string{})
	if gap <= w.threshold {
		return
	}

	observ.Warn("watchdog_idle_link", map[string]any{"gap_s": int(gap.Seconds())})
	observ.IncCounter("watchdog_triggers_total", map[string]string{})

	if !w.alerts.Notify(alertNoData, fmt.Sprintf(
		"No broker data received for %d seconds.\nThe feed may have stopped publishing or the topic may have changed.",
		int(gap.Seconds())), noDataCooldown) {
		return
	}

	w.mgr.ForceReconnect(ctx)
}
