/*
Package realtime owns the push-connection lifecycle and the live UI bindings.

PURPOSE:
  Models a single logical push connection: state machine, bounded reconnect
  backoff, and re-dispatch of incoming events through the event bus. The
  transport itself is abstracted behind EventSource so the connection logic
  is transport-agnostic; the shipped implementation is a synthetic generator
  used for demos and tests, and a real adapter (WebSocket, SSE client, queue
  consumer) plugs into the same seam.

KEY FILES:
  - source.go:    EventSource interface + SyntheticSource generator
  - manager.go:   connection state machine and reconnect policy
  - livequery.go: debounced re-fetching binding for UI values
  - slamonitor.go: background SLA deadline watcher
*/
package realtime

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/exchange-engine/events"
	"github.com/warp/exchange-engine/exchange"
)

// =============================================================================
// EVENT SOURCE - The transport seam
// =============================================================================

// EventSource is one logical event transport. Open starts delivery and hands
// every incoming event to emit; Close must stop all periodic work. Send
// pushes an event outward on a best-effort basis.
type EventSource interface {
	Open(emit func(events.Event)) error
	Send(event events.Event) error
	Close() error
}

// ErrSourceClosed is returned by Send when the source is not open.
var ErrSourceClosed = errors.New("event source is closed")

// =============================================================================
// SYNTHETIC SOURCE - Demo generator
// =============================================================================

// SyntheticSource fabricates ticket-submitted events on a fixed interval,
// each tick emitting with a configured probability. It stands in for a real
// transport in demos; outbound Send is a logged no-op.
type SyntheticSource struct {
	Interval        time.Duration // Tick interval (default 5s)
	EmitProbability float64       // Chance per tick of emitting (default 0.3)

	mu     sync.Mutex
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	open   bool
	rng    *rand.Rand
	log    *logrus.Logger
}

// NewSyntheticSource creates a generator with demo defaults.
func NewSyntheticSource(log *logrus.Logger) *SyntheticSource {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SyntheticSource{
		Interval:        5 * time.Second,
		EmitProbability: 0.3,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		log:             log,
	}
}

// Open starts the tick loop. Calling Open on an already-open source is an
// error; Close first.
func (s *SyntheticSource) Open(emit func(events.Event)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return fmt.Errorf("synthetic source already open")
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.open = true
	s.wg.Add(1)

	go s.run(s.ticker, s.stop, emit)
	return nil
}

func (s *SyntheticSource) run(ticker *time.Ticker, stop chan struct{}, emit func(events.Event)) {
	defer s.wg.Done()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			fire := s.rng.Float64() < s.EmitProbability
			s.mu.Unlock()
			if fire {
				emit(s.syntheticEvent())
			}
		case <-stop:
			return
		}
	}
}

// Send is a no-op for the synthetic transport; the caller re-publishes
// locally regardless.
func (s *SyntheticSource) Send(event events.Event) error {
	s.mu.Lock()
	open := s.open
	s.mu.Unlock()
	if !open {
		return ErrSourceClosed
	}
	s.log.WithField("eventType", event.EventType).Debug("synthetic source send (discarded)")
	return nil
}

// Close stops the tick loop and waits for it to exit. Safe to call twice.
func (s *SyntheticSource) Close() error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil
	}
	s.open = false
	s.ticker.Stop()
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *SyntheticSource) syntheticEvent() events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	product := exchange.ProductLifeInsurance
	if s.rng.Float64() > 0.5 {
		product = exchange.ProductAnnuity
	}

	data := events.TicketSubmittedData{
		TicketNumber:       fmt.Sprintf("EX%06d", s.rng.Intn(1_000_000)),
		SubmittedBy:        "demo-user",
		TargetProductType:  product,
		SourceAccountCount: s.rng.Intn(3) + 1,
		EstimatedValue:     decimal.NewFromInt(int64(s.rng.Intn(500_000) + 50_000)),
	}
	aggregateID := fmt.Sprintf("drop-ticket-%08x", s.rng.Uint32())
	return events.NewEvent(aggregateID, "DropTicket", data, events.Metadata{UserID: "demo-user"})
}
