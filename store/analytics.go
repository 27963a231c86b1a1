/*
analytics.go - Derived metrics over the repository

PURPOSE:
  Read-only aggregations for dashboards: ticket status breakdown, total
  value in flight, carrier response performance, SLA exposure. Everything
  here is computed on demand from the live collections; nothing is cached.
*/
package store

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/exchange-engine/exchange"
)

// ExchangeSummary is the dashboard headline block.
type ExchangeSummary struct {
	TotalTickets    int                                  `json:"totalTickets"`
	ByStatus        map[exchange.DropTicketStatus]int    `json:"byStatus"`
	TotalValue      decimal.Decimal                      `json:"totalValue"`      // Sum of current value across source accounts
	CompletedValue  decimal.Decimal                      `json:"completedValue"`  // Value on completed tickets
	AvgCycleHours   float64                              `json:"avgCycleHours"`   // Completed tickets only; 0 when none
	OpenSLABreaches int                                  `json:"openSlaBreaches"` // Communications past deadline, unanswered
	// SLAComplianceRate is the fraction of deadline-bearing outbound requests
	// that were answered in time or are still within their window. 1 when
	// there are none.
	SLAComplianceRate decimal.Decimal `json:"slaComplianceRate"`
}

// CarrierPerformance summarizes one carrier's responsiveness.
type CarrierPerformance struct {
	CarrierID        string          `json:"carrierId"`
	CarrierName      string          `json:"carrierName"`
	TotalRequests    int             `json:"totalRequests"`
	Responded        int             `json:"responded"`
	AvgResponseHours float64         `json:"avgResponseHours"` // Responded requests only
	ResponseRate     decimal.Decimal `json:"responseRate"`     // Responded / total, 4dp
}

// Summary computes the headline metrics in one pass under the lock.
func (s *Store) Summary(ctx context.Context) (ExchangeSummary, error) {
	if err := s.simulate(ctx); err != nil {
		return ExchangeSummary{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := ExchangeSummary{
		ByStatus:       make(map[exchange.DropTicketStatus]int),
		TotalValue:     decimal.Zero,
		CompletedValue: decimal.Zero,
	}

	completedValueByTicket := make(map[string]bool)
	out.TotalTickets = len(s.data.tickets)
	var cycleSum float64
	var cycleCount int
	now := s.now()

	for _, t := range s.data.tickets {
		out.ByStatus[t.Status]++
		if t.Status == exchange.TicketCompleted {
			completedValueByTicket[t.ID] = true
			cycleSum += t.UpdatedAt.Sub(t.SubmissionDate).Hours()
			cycleCount++
		}
	}
	if cycleCount > 0 {
		out.AvgCycleHours = cycleSum / float64(cycleCount)
	}

	for _, a := range s.data.accounts {
		if !a.IsSourceAccount {
			continue
		}
		out.TotalValue = out.TotalValue.Add(a.CurrentValue)
		if completedValueByTicket[a.DropTicketID] {
			out.CompletedValue = out.CompletedValue.Add(a.CurrentValue)
		}
	}

	var withDeadline, compliant int
	for _, c := range s.data.communications {
		if c.Direction != exchange.DirectionOutbound || c.SLADeadline == nil {
			continue
		}
		withDeadline++
		switch {
		case c.RespondedAt != nil && !c.RespondedAt.After(*c.SLADeadline):
			compliant++
		case c.RespondedAt == nil && c.SLADeadline.After(now):
			compliant++
		}
		if c.AwaitingResponse() && c.SLADeadline.Before(now) {
			out.OpenSLABreaches++
		}
	}
	out.SLAComplianceRate = decimal.NewFromInt(1)
	if withDeadline > 0 {
		out.SLAComplianceRate = decimal.NewFromInt(int64(compliant)).
			Div(decimal.NewFromInt(int64(withDeadline))).
			Round(4)
	}

	return out, nil
}

// CarrierPerformanceReport computes per-carrier response statistics over all
// outbound requests, ordered by the carriers collection.
func (s *Store) CarrierPerformanceReport(ctx context.Context) ([]CarrierPerformance, error) {
	if err := s.simulate(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]CarrierPerformance, 0, len(s.data.carriers))
	for _, carrier := range s.data.carriers {
		perf := CarrierPerformance{
			CarrierID:    carrier.ID,
			CarrierName:  carrier.Name,
			ResponseRate: decimal.Zero,
		}
		var responseSum float64
		for _, c := range s.data.communications {
			if c.CarrierID != carrier.ID || c.Direction != exchange.DirectionOutbound {
				continue
			}
			perf.TotalRequests++
			if c.RespondedAt != nil && c.SentAt != nil {
				perf.Responded++
				responseSum += c.RespondedAt.Sub(*c.SentAt).Hours()
			}
		}
		if perf.Responded > 0 {
			perf.AvgResponseHours = responseSum / float64(perf.Responded)
		}
		if perf.TotalRequests > 0 {
			perf.ResponseRate = decimal.NewFromInt(int64(perf.Responded)).
				Div(decimal.NewFromInt(int64(perf.TotalRequests))).
				Round(4)
		}
		out = append(out, perf)
	}
	return out, nil
}

// SLAExposure lists open communications with their remaining time, soonest
// deadline first. Negative remaining means the deadline has passed.
type SLAExposureEntry struct {
	Communication  exchange.CarrierCommunication `json:"communication"`
	HoursRemaining float64                       `json:"hoursRemaining"`
}

func (s *Store) SLAExposure(ctx context.Context) ([]SLAExposureEntry, error) {
	if err := s.simulate(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []SLAExposureEntry
	now := s.now()
	for _, c := range s.data.communications {
		if !c.AwaitingResponse() {
			continue
		}
		out = append(out, SLAExposureEntry{
			Communication:  c,
			HoursRemaining: c.SLADeadline.Sub(now).Hours(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].HoursRemaining < out[j].HoursRemaining
	})
	return out, nil
}
