/*
bus_test.go - Unit tests for the event bus

Tests for:
- Ordered, synchronous dispatch
- Wildcard subscription and atomic disposal
- Handler panic isolation
- History cap and clearing
*/
package events

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestBus() *Bus {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewBus(log)
}

func submitted(aggregateID string) Event {
	return NewEvent(aggregateID, "DropTicket", TicketSubmittedData{
		TicketNumber: "EX000001",
		SubmittedBy:  "user-1",
	}, Metadata{UserID: "user-1"})
}

func validated(aggregateID string) Event {
	return NewEvent(aggregateID, "DropTicket", AccountValidatedData{
		AccountID:       "acc-1",
		EligibleFor1035: true,
	}, Metadata{UserID: "user-1"})
}

func TestBus_DispatchInSubscriptionOrder(t *testing.T) {
	// GIVEN: Three handlers subscribed to the same event type
	bus := newTestBus()
	var order []int
	bus.Subscribe(TicketSubmitted, func(Event) { order = append(order, 1) })
	bus.Subscribe(TicketSubmitted, func(Event) { order = append(order, 2) })
	bus.Subscribe(TicketSubmitted, func(Event) { order = append(order, 3) })

	// WHEN: An event of that type is emitted
	bus.Emit(submitted("dt-1"))

	// THEN: Handlers ran synchronously, in subscription order
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected [1 2 3], got %v", order)
	}
}

func TestBus_OnlyMatchingTypeDispatched(t *testing.T) {
	// GIVEN: A handler for ticket-submitted only
	bus := newTestBus()
	var got []EventType
	bus.Subscribe(TicketSubmitted, func(ev Event) { got = append(got, ev.EventType) })

	// WHEN: Events of two different types are emitted
	bus.Emit(submitted("dt-1"))
	bus.Emit(validated("dt-1"))

	// THEN: Only the matching type was delivered
	if len(got) != 1 || got[0] != TicketSubmitted {
		t.Fatalf("expected only ticket-submitted, got %v", got)
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	// GIVEN: A subscribed handler
	bus := newTestBus()
	calls := 0
	dispose := bus.Subscribe(TicketSubmitted, func(Event) { calls++ })

	bus.Emit(submitted("dt-1"))

	// WHEN: The disposer runs (twice; second call must be a no-op)
	dispose()
	dispose()
	bus.Emit(submitted("dt-2"))

	// THEN: No delivery after disposal
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestBus_WildcardReceivesEveryType(t *testing.T) {
	// GIVEN: A wildcard subscription
	bus := newTestBus()
	var got []EventType
	dispose := bus.Subscribe(Wildcard, func(ev Event) { got = append(got, ev.EventType) })

	// WHEN: Two different event types are emitted
	bus.Emit(submitted("dt-1"))
	bus.Emit(validated("dt-1"))

	// THEN: Both arrive; after disposal, none do
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	dispose()
	bus.Emit(submitted("dt-2"))
	if len(got) != 2 {
		t.Fatalf("expected disposal to stop every registration, got %d events", len(got))
	}
}

func TestBus_PanickingHandlerDoesNotStopDispatch(t *testing.T) {
	// GIVEN: A panicking handler registered before a healthy one
	bus := newTestBus()
	later := 0
	bus.Subscribe(TicketSubmitted, func(Event) { panic("boom") })
	bus.Subscribe(TicketSubmitted, func(Event) { later++ })

	// WHEN: An event is emitted
	bus.Emit(submitted("dt-1"))

	// THEN: The panic was isolated and the later handler still ran
	if later != 1 {
		t.Fatalf("expected later handler to run once, got %d", later)
	}
}

func TestBus_ReentrantEmitFromHandler(t *testing.T) {
	// GIVEN: A handler that emits a follow-up event from inside dispatch
	bus := newTestBus()
	var got []EventType
	bus.Subscribe(TicketSubmitted, func(Event) {
		bus.Emit(validated("dt-1"))
	})
	bus.Subscribe(AccountValidated, func(ev Event) { got = append(got, ev.EventType) })

	// WHEN: The outer event is emitted
	bus.Emit(submitted("dt-1"))

	// THEN: The nested emission was dispatched without deadlock
	if len(got) != 1 || got[0] != AccountValidated {
		t.Fatalf("expected nested account-validated, got %v", got)
	}
	if len(bus.History()) != 2 {
		t.Fatalf("expected both events in history, got %d", len(bus.History()))
	}
}

func TestBus_HistoryCapDropsOldest(t *testing.T) {
	// GIVEN: A bus with a history cap of 5
	bus := newTestBus()
	bus.SetHistoryLimit(5)

	// WHEN: 8 events are emitted
	var last Event
	for i := 0; i < 8; i++ {
		last = submitted("dt-1")
		bus.Emit(last)
	}

	// THEN: Only the newest 5 remain, with the most recent last
	history := bus.History()
	if len(history) != 5 {
		t.Fatalf("expected 5 retained events, got %d", len(history))
	}
	if history[4].EventID != last.EventID {
		t.Fatalf("expected newest event retained last")
	}
}

func TestBus_EventsForAggregateFilters(t *testing.T) {
	// GIVEN: Events across two aggregates
	bus := newTestBus()
	bus.Emit(submitted("dt-1"))
	bus.Emit(submitted("dt-2"))
	bus.Emit(validated("dt-1"))

	// WHEN: Filtering history by aggregate
	got := bus.EventsForAggregate("dt-1")

	// THEN: Only that aggregate's events, in emission order
	if len(got) != 2 || got[0].EventType != TicketSubmitted || got[1].EventType != AccountValidated {
		t.Fatalf("unexpected filtered history: %+v", got)
	}
}

func TestBus_ClearHistoryKeepsSubscriptions(t *testing.T) {
	// GIVEN: A bus with history and a live subscription
	bus := newTestBus()
	calls := 0
	bus.Subscribe(TicketSubmitted, func(Event) { calls++ })
	bus.Emit(submitted("dt-1"))

	// WHEN: History is cleared
	bus.ClearHistory()

	// THEN: History is empty but the subscription still fires
	if len(bus.History()) != 0 {
		t.Fatalf("expected empty history")
	}
	bus.Emit(submitted("dt-2"))
	if calls != 2 {
		t.Fatalf("expected subscription to survive clear, got %d calls", calls)
	}
}

func TestNewEvent_EnvelopeFields(t *testing.T) {
	// GIVEN/WHEN: An envelope assembled around a payload
	ev := NewEvent("dt-9", "DropTicket", SLAWarningData{
		CommunicationID:  "comm-1",
		HoursUntilBreach: 3.5,
		WarningLevel:     "red",
	}, Metadata{UserID: "system"})

	// THEN: Type comes from the payload, id is prefixed, version is 1
	if ev.EventType != SLAWarning {
		t.Fatalf("expected sla-warning, got %s", ev.EventType)
	}
	if ev.Version != 1 || ev.AggregateID != "dt-9" || ev.AggregateType != "DropTicket" {
		t.Fatalf("unexpected envelope: %+v", ev)
	}
	if len(ev.EventID) < 5 || ev.EventID[:4] != "evt_" {
		t.Fatalf("expected evt_ prefixed id, got %q", ev.EventID)
	}
}
