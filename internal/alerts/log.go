package alerts

import "github.com/trandminh/quote-ingest/internal/observ"

// LogSender drops alerts into the log instead of mailing them. Used when
// alert delivery is disabled (local runs, tests).
type LogSender struct{}

func (LogSender) Send(subject, body string) error {
	observ.Warn("alert_logged", map[string]any{"subject": subject, "body": body})
	return nil
}
