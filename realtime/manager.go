/*
manager.go - Connection state machine and reconnect policy

PURPOSE:
  Owns one logical push connection. Tracks connection state, re-dispatches
  incoming transport events through the event bus, and recovers from
  failures with capped exponential backoff.

STATE MACHINE:
  disconnected -> connecting -> connected
  connected/connecting -> error -> (backoff) -> connecting -> ...

  After MaxReconnectAttempts consecutive failures no further automatic
  attempts are scheduled; the manager stays in error until Reconnect() is
  called explicitly.

DELIVERY:
  Emit sends outward on the transport best-effort and ALWAYS re-publishes
  locally through the bus, so same-process consumers see the event
  regardless of transport state.

SEE ALSO:
  - source.go: the EventSource seam this manager drives
  - events/bus.go: local fan-out
*/
package realtime

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/warp/exchange-engine/events"
)

// =============================================================================
// CONNECTION STATE
// =============================================================================

type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateError        ConnState = "error"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config tunes the reconnect policy. Zero values take the defaults below.
type Config struct {
	MaxReconnectAttempts int           // default 5
	BackoffBase          time.Duration // default 1s
	BackoffCap           time.Duration // default 30s
}

func (c Config) withDefaults() Config {
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffCap == 0 {
		c.BackoffCap = 30 * time.Second
	}
	return c
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager owns a single logical connection over an EventSource.
type Manager struct {
	mu             sync.Mutex
	bus            *events.Bus
	source         EventSource
	cfg            Config
	state          ConnState
	attempts       int
	bo             *backoff.ExponentialBackOff
	reconnectTimer *time.Timer
	lastEvent      *events.Event
	log            *logrus.Logger
}

// NewManager creates a manager in the disconnected state. Connect must be
// called to start delivery.
func NewManager(bus *events.Bus, source EventSource, cfg Config, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	cfg = cfg.withDefaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.BackoffBase
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = cfg.BackoffCap
	bo.MaxElapsedTime = 0 // attempt count, not elapsed time, bounds retries
	bo.Reset()

	return &Manager{
		bus:    bus,
		source: source,
		cfg:    cfg,
		state:  StateDisconnected,
		bo:     bo,
		log:    log,
	}
}

// Connect opens the transport. Idempotent when already connected or when
// another Connect is still in flight, so a racing reconnect timer and a
// manual reconnect cannot double-open the source. On failure the manager
// enters the error state and schedules an automatic reconnect, bounded by
// MaxReconnectAttempts.
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.state == StateConnected || m.state == StateConnecting {
		m.mu.Unlock()
		return nil
	}
	m.state = StateConnecting
	m.mu.Unlock()

	err := m.source.Open(m.handleIncoming)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnecting {
		// Torn down while the open was in flight; stay down.
		return nil
	}
	if err != nil {
		m.state = StateError
		m.log.WithError(err).Warn("connection failed")
		m.scheduleReconnectLocked()
		return err
	}

	m.state = StateConnected
	m.attempts = 0
	m.bo.Reset()
	m.log.Info("realtime connection established")
	return nil
}

// Reconnect tears down the current connection and connects again with fresh
// backoff state. This is the only way out of the error state once automatic
// retries are exhausted.
func (m *Manager) Reconnect() error {
	m.mu.Lock()
	m.teardownLocked()
	m.attempts = 0
	m.bo.Reset()
	m.mu.Unlock()
	return m.Connect()
}

// Close tears the connection down and stops any scheduled reconnect. No
// periodic work survives Close.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
	return nil
}

// teardownLocked stops pending reconnects, closes the source, and returns to
// disconnected. Caller holds m.mu.
func (m *Manager) teardownLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	if m.state == StateConnected || m.state == StateConnecting {
		if err := m.source.Close(); err != nil {
			m.log.WithError(err).Warn("error closing event source")
		}
	}
	m.state = StateDisconnected
}

func (m *Manager) scheduleReconnectLocked() {
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.log.WithField("attempts", m.attempts).Warn("reconnect attempts exhausted; call Reconnect() to retry")
		return
	}
	delay := m.bo.NextBackOff()
	m.attempts++
	m.log.WithFields(logrus.Fields{"attempt": m.attempts, "delay": delay}).Info("scheduling reconnect")
	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.Connect() //nolint:errcheck // failure re-enters the same schedule
	})
}

// =============================================================================
// EVENT FLOW
// =============================================================================

func (m *Manager) handleIncoming(event events.Event) {
	m.mu.Lock()
	m.lastEvent = &event
	m.mu.Unlock()
	m.bus.Emit(event)
}

// Emit sends the event on the transport when connected and always
// re-publishes it locally, giving at-least-local delivery.
func (m *Manager) Emit(event events.Event) {
	m.mu.Lock()
	connected := m.state == StateConnected
	m.lastEvent = &event
	m.mu.Unlock()

	if connected {
		if err := m.source.Send(event); err != nil {
			m.log.WithError(err).WithField("eventType", event.EventType).Warn("transport send failed; local delivery only")
		}
	}
	m.bus.Emit(event)
}

// Subscribe delegates to the event bus. The Wildcard type delivers every
// event kind.
func (m *Manager) Subscribe(eventType events.EventType, handler events.Handler) func() {
	return m.bus.Subscribe(eventType, handler)
}

// State returns the current connection state.
func (m *Manager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connected reports whether the transport is currently open.
func (m *Manager) Connected() bool { return m.State() == StateConnected }

// LastEvent returns the most recent event seen in either direction, or nil.
func (m *Manager) LastEvent() *events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastEvent == nil {
		return nil
	}
	e := *m.lastEvent
	return &e
}

// ReconnectAttempts returns the consecutive failed attempt count.
func (m *Manager) ReconnectAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}
