// Package usage provides the append-only ledger types for quota spending.
// All functions are pure.
package usage

import (
	"time"

	"github.com/Terry-Mathew/youtube-filter-sub001/domain/provider"
)

// Outcome records how a reservation was resolved.
type Outcome string

const (
	OutcomeCommitted  Outcome = "committed"
	OutcomeRolledBack Outcome = "rolled_back"
)

// Record is one ledger entry (immutable value type). Exactly one record is
// written per completed reservation, whether committed or rolled back.
type Record struct {
	ID            string                 `json:"id"`
	Operation     provider.OperationKind `json:"operation"`
	EstimatedCost int64                  `json:"estimated_cost"`
	CostCharged   int64                  `json:"cost_charged"` // 0 for rolled-back reservations
	Outcome       Outcome                `json:"outcome"`
	LatencyMs     int64                  `json:"latency_ms"`
	Timestamp     time.Time              `json:"timestamp"`
}

// Summary aggregates ledger entries for display and analytics.
type Summary struct {
	Records     int64            `json:"records"`
	CostCharged int64            `json:"cost_charged"`
	Committed   int64            `json:"committed"`
	RolledBack  int64            `json:"rolled_back"`
	ByOperation map[string]int64 `json:"by_operation"` // cost charged per kind
	WindowStart time.Time        `json:"window_start"`
	WindowEnd   time.Time        `json:"window_end"`
}

// Summarize folds records into a summary. Pure.
func Summarize(records []Record, start, end time.Time) Summary {
	s := Summary{
		ByOperation: make(map[string]int64),
		WindowStart: start,
		WindowEnd:   end,
	}
	for _, r := range records {
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		s.Records++
		s.CostCharged += r.CostCharged
		switch r.Outcome {
		case OutcomeCommitted:
			s.Committed++
		case OutcomeRolledBack:
			s.RolledBack++
		}
		s.ByOperation[string(r.Operation)] += r.CostCharged
	}
	return s
}
