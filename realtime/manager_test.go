/*
manager_test.go - Unit tests for the connection manager

Tests for:
- State transitions on connect/close
- Incoming transport events re-published on the bus
- Emit delivering locally regardless of transport state
- Bounded automatic reconnect and manual Reconnect reset
*/
package realtime

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/warp/exchange-engine/events"
)

// fakeSource is a scriptable EventSource. failures controls how many Open
// calls fail before one succeeds.
type fakeSource struct {
	mu       sync.Mutex
	failures int
	opens    int
	closes   int
	sent     []events.Event
	emit     func(events.Event)
}

func (f *fakeSource) Open(emit func(events.Event)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.failures > 0 {
		f.failures--
		return errors.New("transport unavailable")
	}
	f.emit = emit
	return nil
}

func (f *fakeSource) Send(ev events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, ev)
	return nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	f.emit = nil
	return nil
}

func (f *fakeSource) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func (f *fakeSource) push(ev events.Event) {
	f.mu.Lock()
	emit := f.emit
	f.mu.Unlock()
	if emit != nil {
		emit(ev)
	}
}

func fastConfig() Config {
	return Config{
		MaxReconnectAttempts: 3,
		BackoffBase:          time.Millisecond,
		BackoffCap:           5 * time.Millisecond,
	}
}

func TestManager_ConnectTransitionsToConnected(t *testing.T) {
	// GIVEN: A healthy transport
	bus := events.NewBus(quietLogger())
	src := &fakeSource{}
	m := NewManager(bus, src, fastConfig(), quietLogger())
	defer m.Close()

	if m.State() != StateDisconnected {
		t.Fatalf("expected disconnected before Connect, got %s", m.State())
	}

	// WHEN: Connect succeeds
	if err := m.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// THEN: Connected, idempotent on repeat, and Close returns to disconnected
	if !m.Connected() {
		t.Fatalf("expected connected, got %s", m.State())
	}
	if err := m.Connect(); err != nil {
		t.Fatalf("repeat connect should be a no-op: %v", err)
	}
	if src.openCount() != 1 {
		t.Fatalf("expected a single transport open, got %d", src.openCount())
	}
	m.Close()
	if m.State() != StateDisconnected {
		t.Fatalf("expected disconnected after close, got %s", m.State())
	}
}

// blockingSource holds Open until released, to pin a connect in flight.
type blockingSource struct {
	fakeSource
	release chan struct{}
}

func (b *blockingSource) Open(emit func(events.Event)) error {
	<-b.release
	return b.fakeSource.Open(emit)
}

func TestManager_ConcurrentConnectOpensOnce(t *testing.T) {
	// GIVEN: A connect pinned mid-flight inside the transport open
	bus := events.NewBus(quietLogger())
	src := &blockingSource{release: make(chan struct{})}
	m := NewManager(bus, src, fastConfig(), quietLogger())
	defer m.Close()

	done := make(chan error, 1)
	go func() { done <- m.Connect() }()
	eventually(t, time.Second, func() bool {
		return m.State() == StateConnecting
	}, "expected connect in flight")

	// WHEN: A second Connect races it (reconnect timer vs manual reconnect)
	if err := m.Connect(); err != nil {
		t.Fatalf("racing connect should be a no-op: %v", err)
	}
	close(src.release)
	if err := <-done; err != nil {
		t.Fatalf("connect: %v", err)
	}

	// THEN: Connected, and the transport was opened exactly once
	if !m.Connected() {
		t.Fatalf("expected connected, got %s", m.State())
	}
	if src.openCount() != 1 {
		t.Fatalf("expected a single transport open, got %d", src.openCount())
	}
}

func TestManager_IncomingEventsReachTheBus(t *testing.T) {
	// GIVEN: A connected manager and a bus subscriber
	bus := events.NewBus(quietLogger())
	src := &fakeSource{}
	m := NewManager(bus, src, fastConfig(), quietLogger())
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}

	var got []events.Event
	m.Subscribe(events.TicketSubmitted, func(ev events.Event) { got = append(got, ev) })

	// WHEN: The transport pushes an event
	ev := ticketEvent()
	src.push(ev)

	// THEN: The subscriber saw it and LastEvent reflects it
	if len(got) != 1 || got[0].EventID != ev.EventID {
		t.Fatalf("expected pushed event delivered, got %+v", got)
	}
	last := m.LastEvent()
	if last == nil || last.EventID != ev.EventID {
		t.Fatalf("expected lastEvent recorded")
	}
}

func TestManager_EmitDeliversLocallyWhenDisconnected(t *testing.T) {
	// GIVEN: A manager that never connected
	bus := events.NewBus(quietLogger())
	src := &fakeSource{}
	m := NewManager(bus, src, fastConfig(), quietLogger())
	defer m.Close()

	calls := 0
	bus.Subscribe(events.TicketSubmitted, func(events.Event) { calls++ })

	// WHEN: Emitting while disconnected
	m.Emit(ticketEvent())

	// THEN: Local subscribers still received it; nothing went to the transport
	if calls != 1 {
		t.Fatalf("expected local delivery, got %d calls", calls)
	}
	if len(src.sent) != 0 {
		t.Fatalf("expected no transport send while disconnected")
	}
}

func TestManager_EmitSendsOnTransportWhenConnected(t *testing.T) {
	// GIVEN: A connected manager
	bus := events.NewBus(quietLogger())
	src := &fakeSource{}
	m := NewManager(bus, src, fastConfig(), quietLogger())
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// WHEN: Emitting
	m.Emit(ticketEvent())

	// THEN: The event went out on the transport and locally
	if len(src.sent) != 1 {
		t.Fatalf("expected transport send, got %d", len(src.sent))
	}
	if len(bus.History()) != 1 {
		t.Fatalf("expected local emission recorded in history")
	}
}

func TestManager_ReconnectAttemptsAreBounded(t *testing.T) {
	// GIVEN: A transport that always fails
	bus := events.NewBus(quietLogger())
	src := &fakeSource{failures: 100}
	m := NewManager(bus, src, fastConfig(), quietLogger())
	defer m.Close()

	// WHEN: Connect fails
	if err := m.Connect(); err == nil {
		t.Fatal("expected connect failure")
	}
	if m.State() != StateError {
		t.Fatalf("expected error state, got %s", m.State())
	}

	// THEN: Automatic retries stop after MaxReconnectAttempts
	eventually(t, time.Second, func() bool {
		return m.ReconnectAttempts() == 3
	}, "expected attempts to reach the cap")
	time.Sleep(30 * time.Millisecond)
	if m.ReconnectAttempts() != 3 {
		t.Fatalf("expected retries to stop at 3, got %d", m.ReconnectAttempts())
	}
	// Initial open plus the 3 scheduled retries.
	eventually(t, time.Second, func() bool { return src.openCount() == 4 }, "expected 4 opens total")
}

func TestManager_AutomaticReconnectRecovers(t *testing.T) {
	// GIVEN: A transport that fails twice, then accepts
	bus := events.NewBus(quietLogger())
	src := &fakeSource{failures: 2}
	m := NewManager(bus, src, fastConfig(), quietLogger())
	defer m.Close()

	// WHEN: The initial connect fails
	if err := m.Connect(); err == nil {
		t.Fatal("expected first connect to fail")
	}

	// THEN: A scheduled retry eventually lands the connection and the
	// failure counter resets
	eventually(t, time.Second, func() bool { return m.Connected() }, "expected recovery")
	if m.ReconnectAttempts() != 0 {
		t.Fatalf("expected attempts reset on success, got %d", m.ReconnectAttempts())
	}
}

func TestManager_ManualReconnectResetsBackoff(t *testing.T) {
	// GIVEN: A manager whose automatic retries are exhausted
	bus := events.NewBus(quietLogger())
	src := &fakeSource{failures: 4} // initial + 3 retries all fail
	m := NewManager(bus, src, fastConfig(), quietLogger())
	defer m.Close()

	m.Connect() //nolint:errcheck
	eventually(t, time.Second, func() bool {
		return m.ReconnectAttempts() == 3 && src.openCount() == 4
	}, "expected exhausted retries")

	// WHEN: Reconnect is called explicitly
	if err := m.Reconnect(); err != nil {
		t.Fatalf("manual reconnect: %v", err)
	}

	// THEN: The connection is live with fresh backoff state
	if !m.Connected() {
		t.Fatalf("expected connected after manual reconnect, got %s", m.State())
	}
	if m.ReconnectAttempts() != 0 {
		t.Fatalf("expected attempts reset, got %d", m.ReconnectAttempts())
	}
}
