package feed

import (
	"crypto/tls"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// PahoDialer opens MQTT connections with the paho client. The client's own
// auto-reconnect is disabled: the Manager owns reconnection entirely.
type PahoDialer struct{}

type pahoConn struct {
	client mqtt.Client
}

func (c *pahoConn) Close() {
	c.client.Disconnect(250)
}

// Dial connects and subscribes, returning only once both succeeded.
func (PahoDialer) Dial(opts Options, h Handlers) (Conn, error) {
	timeout := opts.ConnectTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.URL).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetAutoReconnect(false).
		SetCleanSession(true).
		SetConnectTimeout(timeout).
		SetTLSConfig(&tls.Config{InsecureSkipVerify: true}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			h.OnConnectionLost(err)
		})

	client := mqtt.NewClient(clientOpts)

	tok := client.Connect()
	if !tok.WaitTimeout(timeout) {
		return nil, fmt.Errorf("broker connect timed out after %s", timeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("broker connect: %w", err)
	}

	sub := client.Subscribe(opts.Topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		h.OnMessage(msg.Payload())
	})
	if !sub.WaitTimeout(timeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("subscribe %q timed out after %s", opts.Topic, timeout)
	}
	if err := sub.Error(); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("subscribe %q: %w", opts.Topic, err)
	}

	return &pahoConn{client: client}, nil
}
