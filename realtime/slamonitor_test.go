/*
slamonitor_test.go - Unit tests for the SLA deadline monitor

Tests for:
- Yellow and red warnings at the right distance from the deadline
- One warning per level per communication
- Escalation from yellow to red, never back
*/
package realtime

import (
	"testing"
	"time"

	"github.com/warp/exchange-engine/events"
	"github.com/warp/exchange-engine/exchange"
)

type staticComms struct {
	comms []exchange.CarrierCommunication
}

func (s *staticComms) OpenCommunications() []exchange.CarrierCommunication {
	return s.comms
}

func commDue(id string, in time.Duration) exchange.CarrierCommunication {
	deadline := time.Now().Add(in)
	sent := time.Now().Add(-time.Hour)
	c := exchange.CarrierCommunication{
		DropTicketID: "dt-1",
		CarrierID:    "car-1",
		Direction:    exchange.DirectionOutbound,
		Status:       exchange.CommunicationSent,
		SentAt:       &sent,
		SLADeadline:  &deadline,
	}
	c.ID = id
	return c
}

func collectWarnings(bus *events.Bus) *[]events.SLAWarningData {
	var got []events.SLAWarningData
	bus.Subscribe(events.SLAWarning, func(ev events.Event) {
		got = append(got, ev.Data.(events.SLAWarningData))
	})
	return &got
}

func TestSLAMonitor_WarningLevels(t *testing.T) {
	// GIVEN: Communications at 30h, 10h, and 2h before their deadlines
	bus := events.NewBus(quietLogger())
	source := &staticComms{comms: []exchange.CarrierCommunication{
		commDue("comm-far", 30*time.Hour),
		commDue("comm-near", 10*time.Hour),
		commDue("comm-critical", 2*time.Hour),
	}}
	m := NewSLAMonitor(source, bus, quietLogger())
	got := collectWarnings(bus)

	// WHEN: One scan runs
	m.CheckNow()

	// THEN: 10h is yellow, 2h is red, 30h is silent
	if len(*got) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(*got))
	}
	byID := map[string]string{}
	for _, w := range *got {
		byID[w.CommunicationID] = w.WarningLevel
	}
	if byID["comm-near"] != "yellow" {
		t.Fatalf("expected yellow for comm-near, got %q", byID["comm-near"])
	}
	if byID["comm-critical"] != "red" {
		t.Fatalf("expected red for comm-critical, got %q", byID["comm-critical"])
	}
}

func TestSLAMonitor_WarnsOncePerLevel(t *testing.T) {
	// GIVEN: One communication inside the yellow window
	bus := events.NewBus(quietLogger())
	source := &staticComms{comms: []exchange.CarrierCommunication{
		commDue("comm-1", 10 * time.Hour),
	}}
	m := NewSLAMonitor(source, bus, quietLogger())
	got := collectWarnings(bus)

	// WHEN: The scan runs three times
	m.CheckNow()
	m.CheckNow()
	m.CheckNow()

	// THEN: Exactly one yellow warning was emitted
	if len(*got) != 1 {
		t.Fatalf("expected a single warning, got %d", len(*got))
	}
}

func TestSLAMonitor_EscalatesYellowToRed(t *testing.T) {
	// GIVEN: A communication first seen in the yellow window
	bus := events.NewBus(quietLogger())
	source := &staticComms{comms: []exchange.CarrierCommunication{
		commDue("comm-1", 10 * time.Hour),
	}}
	m := NewSLAMonitor(source, bus, quietLogger())
	got := collectWarnings(bus)
	m.CheckNow()

	// WHEN: The deadline closes inside the red window
	source.comms = []exchange.CarrierCommunication{commDue("comm-1", 2 * time.Hour)}
	m.CheckNow()
	m.CheckNow()

	// THEN: Yellow then red, and red repeats are suppressed
	if len(*got) != 2 {
		t.Fatalf("expected yellow then red, got %d warnings", len(*got))
	}
	if (*got)[0].WarningLevel != "yellow" || (*got)[1].WarningLevel != "red" {
		t.Fatalf("expected escalation order, got %+v", *got)
	}
}

func TestSLAMonitor_IgnoresRespondedCommunications(t *testing.T) {
	// GIVEN: A communication inside the red window that already got a response
	bus := events.NewBus(quietLogger())
	comm := commDue("comm-1", 2*time.Hour)
	responded := time.Now()
	comm.RespondedAt = &responded
	comm.Status = exchange.CommunicationResponded
	source := &staticComms{comms: []exchange.CarrierCommunication{comm}}
	m := NewSLAMonitor(source, bus, quietLogger())
	got := collectWarnings(bus)

	// WHEN: A scan runs
	m.CheckNow()

	// THEN: No warning
	if len(*got) != 0 {
		t.Fatalf("expected no warning for responded communication, got %d", len(*got))
	}
}
