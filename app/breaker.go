package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Terry-Mathew/youtube-filter-sub001/adapters/metrics"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/apierror"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/breaker"
	"github.com/Terry-Mathew/youtube-filter-sub001/ports"
)

// CircuitBreaker isolates the provider when it is unhealthy. State mutation
// is serialized behind one mutex; transitions are computed by the pure
// domain/breaker table.
type CircuitBreaker struct {
	mu    sync.Mutex
	state breaker.State
	cfg   breaker.Config

	clock   ports.Clock
	metrics *metrics.Collector
	log     zerolog.Logger
}

// HealthSnapshot is the breaker state exposed to the ops surface.
type HealthSnapshot struct {
	Phase               breaker.Phase `json:"phase"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastFailureAt       time.Time     `json:"last_failure_at,omitzero"`
	RetryAt             time.Time     `json:"retry_at,omitzero"`
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg breaker.Config, clk ports.Clock, m *metrics.Collector, logger zerolog.Logger) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		state:   breaker.State{Phase: breaker.PhaseClosed},
		cfg:     cfg,
		clock:   clk,
		metrics: m,
		log:     logger.With().Str("component", "breaker").Logger(),
	}
}

// UpdateConfig applies reloaded thresholds. The current phase and failure
// count carry over; the new values govern transitions from the next event on.
func (b *CircuitBreaker) UpdateConfig(cfg breaker.Config) {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	b.mu.Lock()
	b.cfg = cfg
	b.mu.Unlock()
	b.log.Info().
		Int("failure_threshold", cfg.FailureThreshold).
		Dur("cooldown", cfg.Cooldown).
		Msg("breaker configuration updated")
}

// Execute gates call behind the circuit. While open it fails immediately with
// CIRCUIT_OPEN and never invokes call; while half-open exactly one probe is
// admitted and concurrent callers fail fast. Only provider-health failures
// (network, timeout, 5xx) count toward opening the circuit; caller bugs like
// NOT_FOUND or INVALID_REQUEST do not.
func (b *CircuitBreaker) Execute(ctx context.Context, call func(context.Context) error) error {
	now := b.clock.Now()

	b.mu.Lock()
	decision, next := breaker.Admit(b.state, b.cfg, now)
	b.applyLocked(next)
	if decision == breaker.Reject {
		retryAt := breaker.RetryAt(b.state, b.cfg)
		b.mu.Unlock()
		return apierror.CircuitOpen(retryAt)
	}
	b.mu.Unlock()

	err := call(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case err != nil && countsAsHealthFailure(err):
		b.applyLocked(breaker.RecordFailure(b.state, b.cfg, b.clock.Now()))
	case err != nil && apierror.From(err).Kind == apierror.KindCancelled:
		// Aborted locally; no verdict on provider health. Free the probe
		// slot without closing the circuit.
		s := b.state
		s.ProbeInFlight = false
		b.applyLocked(s)
	default:
		// A provider response arrived, even if it reports a caller error;
		// the dependency is healthy.
		b.applyLocked(breaker.RecordSuccess(b.state))
	}
	return err
}

// Allow reports whether a call would currently be admitted, without consuming
// the half-open probe. The gateway uses it to fail fast before reserving
// quota; Execute remains the authoritative gate.
func (b *CircuitBreaker) Allow() (bool, time.Time) {
	now := b.clock.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.Phase != breaker.PhaseOpen {
		return true, time.Time{}
	}
	if now.Sub(b.state.LastFailureAt) >= b.cfg.Cooldown {
		return true, time.Time{}
	}
	return false, breaker.RetryAt(b.state, b.cfg)
}

// Health returns the current breaker state for display.
func (b *CircuitBreaker) Health() HealthSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return HealthSnapshot{
		Phase:               b.state.Phase,
		ConsecutiveFailures: b.state.ConsecutiveFailures,
		LastFailureAt:       b.state.LastFailureAt,
		RetryAt:             breaker.RetryAt(b.state, b.cfg),
	}
}

// applyLocked stores the new state and records phase changes. Caller holds
// b.mu.
func (b *CircuitBreaker) applyLocked(next breaker.State) {
	transitioned := next.Phase != b.state.Phase
	if transitioned {
		b.log.Warn().
			Str("from", string(b.state.Phase)).
			Str("to", string(next.Phase)).
			Int("consecutive_failures", next.ConsecutiveFailures).
			Msg("circuit phase change")
	}
	b.state = next
	b.metrics.SetBreakerPhase(next.Phase, transitioned)
}

// countsAsHealthFailure reports whether an error reflects provider health
// rather than a caller mistake or local cancellation.
func countsAsHealthFailure(err error) bool {
	switch apierror.From(err).Kind {
	case apierror.KindNetwork, apierror.KindServer, apierror.KindTimeout:
		return true
	}
	return false
}
