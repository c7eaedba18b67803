// Package app provides the stateful services that orchestrate domain logic:
// quota reservations, rate limiting, circuit breaking, retries and the
// gateway facade that composes them.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Terry-Mathew/youtube-filter-sub001/adapters/metrics"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/apierror"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/provider"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/quota"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/usage"
	"github.com/Terry-Mathew/youtube-filter-sub001/ports"
)

// Reservation is a provisional quota debit tied to exactly one operation
// attempt chain. It is resolved exactly once, by Commit or Rollback.
type Reservation struct {
	ID            string
	Operation     provider.OperationKind
	EstimatedCost int64
	ReservedAt    time.Time
}

// QuotaManager tracks the rolling daily budget with a pessimistic
// reservation protocol: budget is debited before the network call executes so
// concurrent callers cannot collectively overspend.
//
// All budget mutation is serialized behind one mutex; Status returns
// snapshots that are never used for admission.
type QuotaManager struct {
	mu     sync.Mutex
	budget quota.Budget
	costs  quota.CostTable
	open   map[string]Reservation

	ledger   ports.UsageStore
	clock    ports.Clock
	idGen    ports.IDGenerator
	resetLoc *time.Location
	metrics  *metrics.Collector
	log      zerolog.Logger
}

// QuotaDeps contains dependencies for QuotaManager.
type QuotaDeps struct {
	Ledger  ports.UsageStore
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Metrics *metrics.Collector
	Logger  zerolog.Logger
}

// QuotaConfig contains configuration for QuotaManager.
type QuotaConfig struct {
	DailyLimit int64
	Costs      quota.CostTable
	ResetLoc   *time.Location // provider reset timezone; nil = US/Pacific
}

// NewQuotaManager creates a quota manager with a fresh budget window.
// A nil or invalid cost table is a programming error and panics.
func NewQuotaManager(deps QuotaDeps, cfg QuotaConfig) *QuotaManager {
	costs := cfg.Costs
	if costs == nil {
		costs = quota.DefaultCosts()
	}
	if err := costs.Validate(); err != nil {
		panic(err)
	}

	loc := cfg.ResetLoc
	if loc == nil {
		var err error
		loc, err = time.LoadLocation("America/Los_Angeles")
		if err != nil {
			loc = time.UTC
		}
	}

	now := deps.Clock.Now()
	m := &QuotaManager{
		budget: quota.Budget{
			DailyLimit: cfg.DailyLimit,
			ResetAt:    quota.NextReset(now, loc),
		},
		costs:    costs,
		open:     make(map[string]Reservation),
		ledger:   deps.Ledger,
		clock:    deps.Clock,
		idGen:    deps.IDGen,
		resetLoc: loc,
		metrics:  deps.Metrics,
		log:      deps.Logger.With().Str("component", "quota").Logger(),
	}
	m.metrics.SetQuota(0, cfg.DailyLimit)
	return m
}

// EstimateCost returns the pessimistic cost for an operation issuing the
// given number of provider calls.
func (m *QuotaManager) EstimateCost(kind provider.OperationKind, calls int) int64 {
	m.mu.Lock()
	costs := m.costs
	m.mu.Unlock()
	return costs.Estimate(kind, calls)
}

// UpdateConfig applies a reloaded daily limit and cost table. Used carries
// over unchanged; the new limit takes effect on the next reservation. An
// invalid cost table is rejected and the running table kept.
func (m *QuotaManager) UpdateConfig(dailyLimit int64, costs quota.CostTable) error {
	if costs == nil {
		costs = quota.DefaultCosts()
	}
	if err := costs.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.budget.DailyLimit = dailyLimit
	m.costs = costs
	used, limit := m.budget.Used, m.budget.DailyLimit
	m.mu.Unlock()

	m.metrics.SetQuota(used, limit)
	m.log.Info().Int64("daily_limit", dailyLimit).Msg("quota configuration updated")
	return nil
}

// Reserve atomically checks and provisionally debits the budget. On failure
// the budget is unchanged and the error carries the reset time as a hint.
func (m *QuotaManager) Reserve(_ context.Context, kind provider.OperationKind, estimatedCost int64) (*Reservation, error) {
	now := m.clock.Now()

	m.mu.Lock()
	m.maybeResetLocked(now)

	if !quota.CanReserve(m.budget, estimatedCost) {
		resetAt := m.budget.ResetAt
		m.mu.Unlock()
		m.log.Warn().
			Str("operation", string(kind)).
			Int64("estimated_cost", estimatedCost).
			Msg("reservation rejected, budget exhausted")
		return nil, apierror.QuotaExceeded(resetAt)
	}

	res := Reservation{
		ID:            m.idGen.New(),
		Operation:     kind,
		EstimatedCost: estimatedCost,
		ReservedAt:    now,
	}
	m.budget.Used += estimatedCost
	m.open[res.ID] = res
	used, limit := m.budget.Used, m.budget.DailyLimit
	m.mu.Unlock()

	m.metrics.SetQuota(used, limit)
	m.log.Debug().
		Str("reservation", res.ID).
		Str("operation", string(kind)).
		Int64("estimated_cost", estimatedCost).
		Int64("used", used).
		Msg("quota reserved")
	return &res, nil
}

// Commit finalizes a reservation with the actual cost charged by the
// provider, which can be lower than the estimate for batched operations.
// Committing an already-resolved reservation is a logged no-op.
func (m *QuotaManager) Commit(ctx context.Context, res *Reservation, actualCost int64) {
	if res == nil {
		return
	}
	now := m.clock.Now()

	m.mu.Lock()
	stored, ok := m.open[res.ID]
	if !ok {
		m.mu.Unlock()
		m.log.Warn().Str("reservation", res.ID).Msg("commit of resolved reservation ignored")
		return
	}
	delete(m.open, res.ID)

	m.budget.Used += actualCost - stored.EstimatedCost
	before := m.budget.Used
	m.budget = quota.Clamp(m.budget)
	clamped := before != m.budget.Used
	used, limit := m.budget.Used, m.budget.DailyLimit
	m.mu.Unlock()

	if clamped {
		m.log.Error().
			Str("reservation", res.ID).
			Int64("unclamped_used", before).
			Msg("budget clamped on commit, accounting bug")
	}
	m.metrics.SetQuota(used, limit)

	m.appendRecord(ctx, usage.Record{
		ID:            res.ID,
		Operation:     stored.Operation,
		EstimatedCost: stored.EstimatedCost,
		CostCharged:   actualCost,
		Outcome:       usage.OutcomeCommitted,
		LatencyMs:     now.Sub(stored.ReservedAt).Milliseconds(),
		Timestamp:     now,
	})
}

// Rollback releases a reservation whose call never consumed quota (aborted,
// failed fast, or cancelled). Rolling back an already-resolved reservation is
// a logged no-op.
func (m *QuotaManager) Rollback(ctx context.Context, res *Reservation) {
	if res == nil {
		return
	}
	now := m.clock.Now()

	m.mu.Lock()
	stored, ok := m.open[res.ID]
	if !ok {
		m.mu.Unlock()
		m.log.Warn().Str("reservation", res.ID).Msg("rollback of resolved reservation ignored")
		return
	}
	delete(m.open, res.ID)

	m.budget.Used -= stored.EstimatedCost
	before := m.budget.Used
	m.budget = quota.Clamp(m.budget)
	clamped := before != m.budget.Used
	used, limit := m.budget.Used, m.budget.DailyLimit
	m.mu.Unlock()

	if clamped {
		m.log.Error().
			Str("reservation", res.ID).
			Int64("unclamped_used", before).
			Msg("budget clamped on rollback, accounting bug")
	}
	m.metrics.SetQuota(used, limit)

	m.appendRecord(ctx, usage.Record{
		ID:            res.ID,
		Operation:     stored.Operation,
		EstimatedCost: stored.EstimatedCost,
		CostCharged:   0,
		Outcome:       usage.OutcomeRolledBack,
		LatencyMs:     now.Sub(stored.ReservedAt).Milliseconds(),
		Timestamp:     now,
	})
}

// Status returns a read-only snapshot for display.
func (m *QuotaManager) Status() quota.Snapshot {
	m.mu.Lock()
	m.maybeResetLocked(m.clock.Now())
	snap := quota.Snap(m.budget)
	m.mu.Unlock()
	return snap
}

// Reset zeroes the budget if now has passed the reset boundary. Idempotent
// within a window: extra calls are no-ops. Driven by the bootstrap scheduler
// and checked lazily on Reserve/Status.
func (m *QuotaManager) Reset(now time.Time) {
	m.mu.Lock()
	m.maybeResetLocked(now)
	used, limit := m.budget.Used, m.budget.DailyLimit
	m.mu.Unlock()
	m.metrics.SetQuota(used, limit)
}

// maybeResetLocked advances the window when the boundary has passed.
// ResetAt strictly increases. Caller holds m.mu.
func (m *QuotaManager) maybeResetLocked(now time.Time) {
	if now.Before(m.budget.ResetAt) {
		return
	}
	prev := m.budget.ResetAt
	m.budget.Used = 0
	m.budget.ResetAt = quota.NextReset(now, m.resetLoc)
	m.log.Info().
		Time("previous_reset", prev).
		Time("next_reset", m.budget.ResetAt).
		Msg("daily quota reset")
}

// appendRecord writes the ledger entry; a failed append is logged, never
// propagated, because ledger persistence must not fail the operation itself.
func (m *QuotaManager) appendRecord(ctx context.Context, rec usage.Record) {
	if m.ledger == nil {
		return
	}
	// Rollbacks arrive with already-cancelled contexts; the ledger write
	// must still happen.
	ctx = context.WithoutCancel(ctx)
	if err := m.ledger.Append(ctx, rec); err != nil {
		m.log.Error().Err(err).Str("record", rec.ID).Msg("usage ledger append failed")
	}
}
