package alerts

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/trandminh/quote-ingest/internal/observ"
)

// Limiter throttles alert delivery per category. The first Notify for a
// category fixes its cooldown; while the cooldown runs, repeats are logged
// locally and dropped. Sink failures never reach the caller.
type Limiter struct {
	sink Sender

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLimiter wraps a sender with per-category cooldown throttling.
func NewLimiter(sink Sender) *Limiter {
	return &Limiter{
		sink:     sink,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Notify sends one alert in the given category unless its cooldown is still
// running. The cooldown policy is appended to the body so operators know why
// repeats may be quiet. It reports whether the cooldown admitted the alert,
// so callers can pace recovery actions on the same window; a delivery
// failure still counts as admitted.
func (l *Limiter) Notify(category, message string, cooldown time.Duration) bool {
	note := fmt.Sprintf(
		"Alert %q is throttled: repeats are suppressed for %s while the issue persists.",
		category, cooldown,
	)

	if !l.allow(category, cooldown) {
		observ.Warn("alert_suppressed", map[string]any{
			"category": category,
			"cooldown": cooldown.String(),
		})
		observ.IncCounter("alerts_suppressed_total", map[string]string{"category": category})
		return false
	}

	if err := l.sink.Send(category, message+"\n\n"+note); err != nil {
		// Alerting must never destabilize the caller.
		observ.Error("alert_send_failed", err, map[string]any{"category": category})
		observ.IncCounter("alerts_failed_total", map[string]string{"category": category})
		return true
	}
	observ.IncCounter("alerts_sent_total", map[string]string{"category": category})
	return true
}

func (l *Limiter) allow(category string, cooldown time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[category]
	if !ok {
		lim = rate.NewLimiter(rate.Every(cooldown), 1)
		l.limiters[category] = lim
	}
	return lim.Allow()
}
