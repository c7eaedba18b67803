// Package quota provides pure functions for daily budget accounting.
// All functions are deterministic with no side effects; the stateful
// reservation protocol lives in the app layer.
package quota

import (
	"fmt"
	"time"

	"github.com/Terry-Mathew/youtube-filter-sub001/domain/provider"
)

// Budget is the daily allowance state (value type).
// Invariant at every committed state: 0 <= Used <= DailyLimit.
type Budget struct {
	DailyLimit int64
	Used       int64
	ResetAt    time.Time
}

// Snapshot is a read-only copy of the budget for display. It is never the
// source of truth for admission decisions.
type Snapshot struct {
	Used       int64        `json:"used"`
	DailyLimit int64        `json:"daily_limit"`
	Remaining  int64        `json:"remaining"`
	ResetAt    time.Time    `json:"reset_at"`
	Warning    WarningLevel `json:"warning_level"`
}

// WarningLevel indicates how close to the limit the budget is.
type WarningLevel int

const (
	WarningNone        WarningLevel = iota // < 80%
	WarningApproaching                     // >= 80%
	WarningCritical                        // >= 95%
	WarningExhausted                       // == 100%
)

// String returns the warning level name.
func (w WarningLevel) String() string {
	switch w {
	case WarningApproaching:
		return "approaching"
	case WarningCritical:
		return "critical"
	case WarningExhausted:
		return "exhausted"
	default:
		return "none"
	}
}

// MarshalJSON renders the level as its name.
func (w WarningLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + w.String() + `"`), nil
}

// CanReserve reports whether a reservation of cost fits the remaining budget.
// Pure: does not mutate b.
func CanReserve(b Budget, cost int64) bool {
	return cost >= 0 && b.Used+cost <= b.DailyLimit
}

// Warning computes the warning level for the current usage.
func Warning(b Budget) WarningLevel {
	if b.DailyLimit <= 0 {
		return WarningNone
	}
	pct := float64(b.Used) / float64(b.DailyLimit) * 100
	switch {
	case b.Used >= b.DailyLimit:
		return WarningExhausted
	case pct >= 95:
		return WarningCritical
	case pct >= 80:
		return WarningApproaching
	default:
		return WarningNone
	}
}

// Snap builds a display snapshot from the budget.
func Snap(b Budget) Snapshot {
	remaining := b.DailyLimit - b.Used
	if remaining < 0 {
		remaining = 0
	}
	return Snapshot{
		Used:       b.Used,
		DailyLimit: b.DailyLimit,
		Remaining:  remaining,
		ResetAt:    b.ResetAt,
		Warning:    Warning(b),
	}
}

// Clamp forces Used back into [0, DailyLimit]. Callers log when clamping
// actually changes the value, since that indicates an accounting bug.
func Clamp(b Budget) Budget {
	if b.Used < 0 {
		b.Used = 0
	}
	if b.Used > b.DailyLimit {
		b.Used = b.DailyLimit
	}
	return b
}

// NextReset returns the first daily reset boundary strictly after now.
// The provider resets quota at midnight in loc (US/Pacific in production;
// tests pin UTC).
func NextReset(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return midnight.AddDate(0, 0, 1)
}

// CostTable maps operation kinds to their fixed unit cost.
// Costs are non-negative integers, immutable after load.
type CostTable map[provider.OperationKind]int64

// DefaultCosts returns the provider's published unit costs.
func DefaultCosts() CostTable {
	return CostTable{
		provider.OpSearch:            100,
		provider.OpVideosList:        1,
		provider.OpChannelsList:      1,
		provider.OpPlaylistsList:     1,
		provider.OpPlaylistItemsList: 1,
		provider.OpSubscriptionsList: 1,
	}
}

// Validate rejects tables with negative or missing costs. A negative cost is
// a programming-logic violation, reported as a hard error at load time.
func (t CostTable) Validate() error {
	for _, kind := range provider.Kinds() {
		cost, ok := t[kind]
		if !ok {
			return fmt.Errorf("cost table: missing cost for %q", kind)
		}
		if cost < 0 {
			return fmt.Errorf("cost table: negative cost %d for %q", cost, kind)
		}
	}
	return nil
}

// Cost returns the unit cost for one call of the given kind.
func (t CostTable) Cost(kind provider.OperationKind) int64 {
	return t[kind]
}

// Estimate returns the pessimistic cost of an operation that will issue
// `calls` provider calls (batched list operations issue one call per
// 50-identifier chunk). The provider charges flat per call, so the estimate
// is unit cost times call count.
func (t CostTable) Estimate(kind provider.OperationKind, calls int) int64 {
	if calls < 1 {
		calls = 1
	}
	return t[kind] * int64(calls)
}
