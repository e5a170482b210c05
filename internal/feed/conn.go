// Package feed owns the broker subscription: connecting with fresh
// credentials, watching for silent link failure, and reconnecting with
// backoff, all gated on the trading session.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trandminh/quote-ingest/internal/auth"
	"github.com/trandminh/quote-ingest/internal/observ"
	"github.com/trandminh/quote-ingest/internal/quotes"
)

// ErrMissingBrokerURL means the broker endpoint is unset in configuration.
var ErrMissingBrokerURL = errors.New("missing broker url")

// Phase is the connection lifecycle state.
type Phase string

const (
	PhaseDisconnected Phase = "disconnected"
	PhaseConnecting   Phase = "connecting"
	PhaseConnected    Phase = "connected"
)

// Alert categories and their cooldowns.
const (
	alertConnectError   = "MQTT Connection Error"
	alertNoData         = "MQTT No Data Warning"
	alertConnectSkipped = "MQTT Connect Skipped"

	connectErrorCooldown = 10 * time.Minute
	noDataCooldown       = 5 * time.Minute
	skippedCooldown      = 10 * time.Minute
)

// Options carries everything a dialer needs to open one subscription.
type Options struct {
	URL            string
	ClientID       string
	Username       string
	Password       string
	Topic          string
	ConnectTimeout time.Duration
}

// Handlers receive broker events. OnMessage runs per inbound payload in
// arrival order; OnConnectionLost fires once per transport-level drop.
type Handlers struct {
	OnMessage        func(payload []byte)
	OnConnectionLost func(err error)
}

// Conn is a live, subscribed broker connection.
type Conn interface {
	Close()
}

// Dialer opens broker connections. The production implementation is the
// paho MQTT client in mqtt.go; tests substitute a fake.
type Dialer interface {
	Dial(opts Options, h Handlers) (Conn, error)
}

// CredentialSource yields a valid broker credential.
type CredentialSource interface {
	Credentials(ctx context.Context) (*auth.Credential, error)
}

// Notifier is the throttled alert surface. Notify reports whether the
// category's cooldown admitted the alert.
type Notifier interface {
	Notify(category, message string, cooldown time.Duration) bool
}

// QuoteSink receives parsed quotes off the intake path.
type QuoteSink interface {
	Dispatch(q *quotes.Quote)
}

// ManagerConfig tunes the connection lifecycle.
type ManagerConfig struct {
	BrokerURL        string
	Topic            string
	ClientID         string
	ReconnectFloor   time.Duration
	ReconnectCeiling time.Duration
	ConnectTimeout   time.Duration
	Location         *time.Location
}

// Manager owns the broker connection state machine. All lifecycle triggers
// (startup, session boundaries, watchdog recovery, broker drop events)
// funnel into Connect/ScheduleReconnect/End, which are safe to race.
type Manager struct {
	cfg    ManagerConfig
	creds  CredentialSource
	alerts Notifier
	sink   QuoteSink
	dialer Dialer

	mu             sync.Mutex
	phase          Phase
	conn           Conn
	connecting     bool
	reconnectDelay time.Duration
	reconnectTimer *time.Timer
	lastMessageAt  time.Time
	generation     uint64 // bumped by End; stale reconnect timers abort

	now    func() time.Time
	jitter func() float64 // uniform [0,1)
}

// NewManager wires a connection manager. It starts Disconnected; nothing
// happens until Connect is triggered.
func NewManager(cfg ManagerConfig, creds CredentialSource, alerts Notifier, sink QuoteSink, dialer Dialer) *Manager {
	if cfg.ReconnectFloor == 0 {
		cfg.ReconnectFloor = 5 * time.Second
	}
	if cfg.ReconnectCeiling == 0 {
		cfg.ReconnectCeiling = 15 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Manager{
		cfg:            cfg,
		creds:          creds,
		alerts:         alerts,
		sink:           sink,
		dialer:         dialer,
		phase:          PhaseDisconnected,
		reconnectDelay: cfg.ReconnectFloor,
		lastMessageAt:  time.Now(),
		now:            time.Now,
		jitter:         rand.Float64,
	}
}

// InSession reports whether the market is open right now.
func (m *Manager) InSession() bool {
	return InTradingSession(m.now(), m.cfg.Location)
}

// Phase returns the current lifecycle phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// LastMessageAt returns when the link last delivered a message.
func (m *Manager) LastMessageAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMessageAt
}

// Connect establishes the subscription. It is a guarded no-op outside the
// trading session or while another connect is in flight, so concurrent
// triggers collapse to one attempt. Failures alert and schedule a retry.
func (m *Manager) Connect(ctx context.Context) {
	if !m.InSession() {
		observ.Log("mqtt_connect_skipped", map[string]any{"reason": "outside_trading_session"})
		m.alerts.Notify(alertConnectSkipped, "Outside trading hours, skipping broker connect.", skippedCooldown)
		return
	}

	m.mu.Lock()
	if m.connecting {
		m.mu.Unlock()
		observ.Log("mqtt_connect_duplicate", map[string]any{})
		return
	}
	m.connecting = true
	m.phase = PhaseConnecting
	gen := m.generation
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.connecting = false
		m.mu.Unlock()
	}()

	if m.cfg.BrokerURL == "" {
		m.connectFailed(gen, ErrMissingBrokerURL)
		return
	}

	cred, err := m.creds.Credentials(ctx)
	if err != nil {
		m.connectFailed(gen, err)
		return
	}

	opts := Options{
		URL:            m.cfg.BrokerURL,
		ClientID:       fmt.Sprintf("%s-%s", m.cfg.ClientID, clientSuffix()),
		Username:       cred.InvestorID,
		Password:       cred.Token,
		Topic:          m.cfg.Topic,
		ConnectTimeout: m.cfg.ConnectTimeout,
	}
	conn, err := m.dialer.Dial(opts, Handlers{
		OnMessage:        m.handleMessage,
		OnConnectionLost: m.handleConnectionLost,
	})
	if err != nil {
		m.connectFailed(gen, err)
		return
	}

	m.mu.Lock()
	// End may have run while the dial was in flight; the session is over and
	// the fresh connection must not be installed.
	if m.generation != gen {
		m.mu.Unlock()
		conn.Close()
		observ.Log("mqtt_connect_discarded", map[string]any{"reason": "ended_during_dial"})
		return
	}
	if m.conn != nil {
		m.conn.Close()
	}
	m.conn = conn
	m.phase = PhaseConnected
	m.reconnectDelay = m.cfg.ReconnectFloor
	m.lastMessageAt = m.now()
	m.mu.Unlock()

	observ.Log("mqtt_connected", map[string]any{"client_id": opts.ClientID, "topic": opts.Topic})
	observ.IncCounter("mqtt_connects_total", map[string]string{"result": "success"})
}

func (m *Manager) connectFailed(gen uint64, err error) {
	m.mu.Lock()
	stale := m.generation != gen
	if !stale {
		m.phase = PhaseDisconnected
	}
	m.mu.Unlock()

	// End already settled the state; an attempt it outlived must not alert
	// or re-arm backoff.
	if stale {
		observ.Log("mqtt_connect_discarded", map[string]any{"reason": "ended_during_dial"})
		return
	}

	observ.Error("mqtt_connect_failed", err, nil)
	observ.IncCounter("mqtt_connects_total", map[string]string{"result": "error"})
	m.alerts.Notify(alertConnectError,
		fmt.Sprintf("Failed to connect to MQTT broker:\n\n%v", err), connectErrorCooldown)
	m.ScheduleReconnect()
}

// handleMessage parses one broker payload. A malformed payload drops that
// message only; the connection stays up.
func (m *Manager) handleMessage(payload []byte) {
	var q quotes.Quote
	if err := json.Unmarshal(payload, &q); err != nil {
		observ.Error("mqtt_message_parse_failed", err, map[string]any{"bytes": len(payload)})
		observ.IncCounter("mqtt_messages_total", map[string]string{"result": "parse_error"})
		return
	}

	m.mu.Lock()
	m.lastMessageAt = m.now()
	m.mu.Unlock()

	observ.IncCounter("mqtt_messages_total", map[string]string{"result": "ok"})
	m.sink.Dispatch(&q)
}

func (m *Manager) handleConnectionLost(err error) {
	observ.Warn("mqtt_connection_lost", map[string]any{"error": fmt.Sprint(err)})

	m.mu.Lock()
	m.conn = nil
	m.phase = PhaseDisconnected
	m.mu.Unlock()

	// Outside the session this is an expected idle disconnect.
	if m.InSession() {
		m.ScheduleReconnect()
	}
}

// ScheduleReconnect arms a one-shot connect after the current backoff delay
// plus jitter, then doubles the delay up to the ceiling. It refuses to arm
// outside the trading session so backoff cannot leak into closed hours.
func (m *Manager) ScheduleReconnect() {
	if !m.InSession() {
		observ.Log("mqtt_reconnect_skipped", map[string]any{"reason": "outside_trading_session"})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
	}

	delay := m.reconnectDelay + time.Duration(m.jitter()*float64(m.reconnectDelay/2))
	gen := m.generation
	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		stale := m.generation != gen
		m.mu.Unlock()
		if stale {
			return
		}
		m.Connect(context.Background())
	})

	m.reconnectDelay *= 2
	if m.reconnectDelay > m.cfg.ReconnectCeiling {
		m.reconnectDelay = m.cfg.ReconnectCeiling
	}

	observ.Warn("mqtt_reconnect_scheduled", map[string]any{
		"delay_ms":      delay.Milliseconds(),
		"next_delay_ms": m.reconnectDelay.Milliseconds(),
	})
}

// ForceReconnect tears down the live connection, if any, and connects again.
// The watchdog uses this when the link is up but silent.
func (m *Manager) ForceReconnect(ctx context.Context) {
	m.mu.Lock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.phase = PhaseDisconnected
	m.mu.Unlock()

	observ.Log("mqtt_force_reconnect", map[string]any{})
	m.Connect(ctx)
}

// End shuts the link down for the session: the pending reconnect timer is
// cancelled (and can no longer fire), the connection is closed, and backoff
// resets to the floor. Safe to call with nothing running.
func (m *Manager) End() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generation++
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.reconnectDelay = m.cfg.ReconnectFloor
	m.phase = PhaseDisconnected

	observ.Log("mqtt_ended", map[string]any{})
}

func clientSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:5]
}
