package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMailerRequiresRecipients(t *testing.T) {
	m := NewMailer(MailerConfig{Host: "smtp.example.com", Port: 587})

	err := m.Send("MQTT Connection Error", "broker unreachable")
	assert.ErrorContains(t, err, "no alert recipients")
}

func TestLogSenderNeverFails(t *testing.T) {
	assert.NoError(t, LogSender{}.Send("MQTT No Data Warning", "gap detected"))
}
