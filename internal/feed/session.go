package feed

import "time"

// The market runs two intraday sessions on business days. Boundaries are
// inclusive so the session-close trigger itself still counts as in-session.
type window struct {
	startMin int // minutes from midnight
	endMin   int
}

var tradingWindows = []window{
	{startMin: 9 * 60, endMin: 11*60 + 30},
	{startMin: 13 * 60, endMin: 15*60 + 30},
}

// InTradingSession reports whether the market is open at t, evaluated in the
// market's timezone. Connect, reconnect scheduling, and the watchdog are all
// gated on this so backoff never runs against a closed market.
func InTradingSession(t time.Time, loc *time.Location) bool {
	local := t.In(loc)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	minutes := local.Hour()*60 + local.Minute()
	for _, w := range tradingWindows {
		if minutes >= w.startMin && minutes <= w.endMin {
			return true
		}
	}
	return false
}
