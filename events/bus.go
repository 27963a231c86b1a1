/*
bus.go - Publish/subscribe registry with replay history

PURPOSE:
  In-process fan-out of domain events. Dispatch is synchronous and
  fire-and-forget: no acknowledgement, no retry, no ordering across event
  types. Within one event type, handlers run in subscription order.

FAILURE SEMANTICS:
  A handler that panics is isolated: the panic is recovered and logged, and
  delivery continues to the remaining handlers. The emitter never observes a
  subscriber failure.

HISTORY:
  Every emitted event is retained in a capped, drop-oldest history list for
  replay and debugging. Clearing history does not affect live subscriptions.

SEE ALSO:
  - types.go: event envelope and payload union
  - realtime/manager.go: re-publishes transport events through this bus
*/
package events

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultHistoryLimit caps the replay history (drop-oldest).
const DefaultHistoryLimit = 1000

// Handler receives one event. Handlers run inline during Emit, on the
// emitter's goroutine.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a typed publish/subscribe registry. The zero value is not usable;
// construct with NewBus.
type Bus struct {
	mu           sync.RWMutex
	nextID       uint64
	subs         map[EventType][]subscription
	history      []Event
	historyLimit int
	log          *logrus.Logger
}

// NewBus creates a bus with the default history cap.
func NewBus(log *logrus.Logger) *Bus {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bus{
		subs:         make(map[EventType][]subscription),
		historyLimit: DefaultHistoryLimit,
		log:          log,
	}
}

// SetHistoryLimit adjusts the history cap. A limit <= 0 restores the default.
func (b *Bus) SetHistoryLimit(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 {
		n = DefaultHistoryLimit
	}
	b.historyLimit = n
	if over := len(b.history) - n; over > 0 {
		b.history = append([]Event(nil), b.history[over:]...)
	}
}

// =============================================================================
// SUBSCRIPTION
// =============================================================================

// Subscribe registers handler for one exact event type and returns a disposer
// that removes exactly that registration. Subscribing to Wildcard is
// equivalent to SubscribeToAll.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	if eventType == Wildcard {
		return b.SubscribeToAll(handler)
	}

	b.mu.Lock()
	id := b.subscribeLocked(eventType, handler)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.unsubscribeLocked(eventType, id)
			b.mu.Unlock()
		})
	}
}

// SubscribeToAll registers handler for every known event type atomically.
// The disposer removes all of the registrations at once.
func (b *Bus) SubscribeToAll(handler Handler) func() {
	b.mu.Lock()
	ids := make(map[EventType]uint64, len(AllEventTypes))
	for _, et := range AllEventTypes {
		ids[et] = b.subscribeLocked(et, handler)
	}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			for et, id := range ids {
				b.unsubscribeLocked(et, id)
			}
			b.mu.Unlock()
		})
	}
}

func (b *Bus) subscribeLocked(eventType EventType, handler Handler) uint64 {
	b.nextID++
	b.subs[eventType] = append(b.subs[eventType], subscription{id: b.nextID, handler: handler})
	return b.nextID
}

func (b *Bus) unsubscribeLocked(eventType EventType, id uint64) {
	subs := b.subs[eventType]
	for i, s := range subs {
		if s.id == id {
			b.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// =============================================================================
// DISPATCH
// =============================================================================

// Emit appends the event to history and synchronously invokes every handler
// registered for its type, in subscription order. The handler list is
// snapshotted first, so handlers may subscribe, unsubscribe, or emit without
// deadlocking the bus.
func (b *Bus) Emit(event Event) {
	b.mu.Lock()
	b.history = append(b.history, event)
	if len(b.history) > b.historyLimit {
		b.history = append([]Event(nil), b.history[len(b.history)-b.historyLimit:]...)
	}
	subs := append([]subscription(nil), b.subs[event.EventType]...)
	b.mu.Unlock()

	for _, s := range subs {
		b.dispatch(s, event)
	}
}

func (b *Bus) dispatch(s subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithFields(logrus.Fields{
				"eventType":   event.EventType,
				"eventId":     event.EventID,
				"aggregateId": event.AggregateID,
				"panic":       r,
			}).Error("event handler panicked; continuing dispatch")
		}
	}()
	s.handler(event)
}

// =============================================================================
// HISTORY
// =============================================================================

// History returns a snapshot of all retained events in emission order.
func (b *Bus) History() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Event(nil), b.history...)
}

// EventsForAggregate filters history by aggregate id.
func (b *Bus) EventsForAggregate(aggregateID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Event
	for _, e := range b.history {
		if e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return out
}

// ClearHistory empties the history list. Live subscriptions are unaffected.
func (b *Bus) ClearHistory() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = nil
}
