/*
slamonitor.go - Background SLA deadline watcher

PURPOSE:
  Periodically scans open outbound carrier communications and emits
  sla-warning events as their response deadlines approach. Warnings
  escalate yellow -> red; each communication is warned at most once per
  level.

DESIGN:
  - Background goroutine with a configurable check interval
  - Stop() guarantees the ticker is cleared and the loop has exited
  - Emitted events carry metadata userId "system"

USAGE:
  monitor := NewSLAMonitor(store, bus, logger)
  monitor.Start()
  // ... later
  monitor.Stop()
*/
package realtime

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/exchange-engine/events"
	"github.com/warp/exchange-engine/exchange"
)

// CommunicationSource lists communications still awaiting a carrier
// response. The repository implements it.
type CommunicationSource interface {
	OpenCommunications() []exchange.CarrierCommunication
}

// SLAMonitor emits sla-warning events for deadlines inside the thresholds.
type SLAMonitor struct {
	Source          CommunicationSource
	Bus             *events.Bus
	CheckInterval   time.Duration // default 1 minute
	YellowThreshold time.Duration // default 24h before breach
	RedThreshold    time.Duration // default 4h before breach

	mu     sync.Mutex
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	warned map[string]string // communication id -> last warned level
	log    *logrus.Logger
}

// NewSLAMonitor creates a monitor with default thresholds.
func NewSLAMonitor(source CommunicationSource, bus *events.Bus, log *logrus.Logger) *SLAMonitor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SLAMonitor{
		Source:          source,
		Bus:             bus,
		CheckInterval:   time.Minute,
		YellowThreshold: 24 * time.Hour,
		RedThreshold:    4 * time.Hour,
		warned:          make(map[string]string),
		log:             log,
	}
}

// Start begins the scan loop. Calling Start on a running monitor is a no-op.
func (m *SLAMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticker != nil {
		return
	}
	m.ticker = time.NewTicker(m.CheckInterval)
	m.stop = make(chan struct{})
	m.wg.Add(1)
	go m.run(m.ticker, m.stop)
	m.log.WithField("interval", m.CheckInterval).Info("sla monitor started")
}

// Stop halts the loop and waits for it to exit. Safe to call twice.
func (m *SLAMonitor) Stop() {
	m.mu.Lock()
	if m.ticker == nil {
		m.mu.Unlock()
		return
	}
	m.ticker.Stop()
	close(m.stop)
	m.ticker = nil
	m.mu.Unlock()

	m.wg.Wait()
	m.log.Info("sla monitor stopped")
}

func (m *SLAMonitor) run(ticker *time.Ticker, stop chan struct{}) {
	defer m.wg.Done()
	m.CheckNow()
	for {
		select {
		case <-ticker.C:
			m.CheckNow()
		case <-stop:
			return
		}
	}
}

// CheckNow performs one scan immediately. Exposed for tests and admin use.
func (m *SLAMonitor) CheckNow() {
	now := time.Now()
	for _, comm := range m.Source.OpenCommunications() {
		if !comm.AwaitingResponse() {
			continue
		}
		until := comm.SLADeadline.Sub(now)
		if until > m.YellowThreshold {
			continue
		}

		level := "yellow"
		if until <= m.RedThreshold {
			level = "red"
		}

		m.mu.Lock()
		prev := m.warned[comm.ID]
		if prev == level || prev == "red" {
			m.mu.Unlock()
			continue
		}
		m.warned[comm.ID] = level
		m.mu.Unlock()

		hours := until.Hours()
		if hours < 0 {
			hours = 0
		}
		m.Bus.Emit(events.NewEvent(comm.ID, "CarrierCommunication", events.SLAWarningData{
			CommunicationID:  comm.ID,
			CarrierID:        comm.CarrierID,
			DropTicketID:     comm.DropTicketID,
			HoursUntilBreach: hours,
			WarningLevel:     level,
		}, events.Metadata{UserID: "system"}))

		m.log.WithFields(logrus.Fields{
			"communicationId": comm.ID,
			"level":           level,
			"hoursUntilBreach": hours,
		}).Warn("sla warning emitted")
	}
}
