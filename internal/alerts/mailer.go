// Package alerts delivers operator notifications with per-category cooldowns
// so sustained outages produce a throttled stream instead of a storm.
package alerts

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/trandminh/quote-ingest/internal/observ"
)

// Sender is the outbound notification capability. Implementations must not
// panic; delivery failures are the caller's to log and swallow.
type Sender interface {
	Send(subject, body string) error
}

// MailerConfig carries the SMTP transport and addressing.
type MailerConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	Recipients    []string
	SubjectPrefix string
}

// Mailer sends alerts over SMTP.
type Mailer struct {
	cfg    MailerConfig
	dialer *gomail.Dialer
}

// NewMailer creates an SMTP sender.
func NewMailer(cfg MailerConfig) *Mailer {
	return &Mailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Send delivers one plain-text message to all configured recipients.
func (m *Mailer) Send(subject, body string) error {
	if len(m.cfg.Recipients) == 0 {
		return fmt.Errorf("no alert recipients configured")
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", m.cfg.Recipients...)
	msg.SetHeader("Subject", fmt.Sprintf("%s %s", m.cfg.SubjectPrefix, subject))
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send alert mail: %w", err)
	}
	observ.Log("alert_mail_sent", map[string]any{"subject": subject})
	return nil
}
