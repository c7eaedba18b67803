// Package breaker provides the pure circuit transition table.
// Same shape as the other domain packages: Check(state, cfg, now) returns a
// decision plus the new state; the caller persists it under its own lock.
package breaker

import "time"

// Phase is the breaker health state.
type Phase string

const (
	PhaseClosed   Phase = "closed"
	PhaseOpen     Phase = "open"
	PhaseHalfOpen Phase = "half_open"
)

// State is the breaker bookkeeping (value type).
// At most one probe is in flight while half-open.
type State struct {
	Phase               Phase
	ConsecutiveFailures int
	FirstFailureAt      time.Time // start of the rolling failure window
	LastFailureAt       time.Time
	ProbeInFlight       bool
}

// Config tunes the transition table.
type Config struct {
	FailureThreshold int           // consecutive failures before opening
	Cooldown         time.Duration // open -> half_open delay
	Window           time.Duration // rolling window for counting failures
}

// Decision is the admission outcome for one call.
type Decision int

const (
	// Allow admits the call normally (closed circuit).
	Allow Decision = iota
	// AllowProbe admits the single half-open probe.
	AllowProbe
	// Reject fails the call fast without touching the network.
	Reject
)

// Admit decides whether a call may proceed and returns the updated state.
// Pure function of (state, cfg, now).
func Admit(s State, cfg Config, now time.Time) (Decision, State) {
	switch s.Phase {
	case PhaseOpen:
		if now.Sub(s.LastFailureAt) >= cfg.Cooldown {
			s.Phase = PhaseHalfOpen
			s.ProbeInFlight = true
			return AllowProbe, s
		}
		return Reject, s
	case PhaseHalfOpen:
		if s.ProbeInFlight {
			return Reject, s
		}
		s.ProbeInFlight = true
		return AllowProbe, s
	default:
		return Allow, s
	}
}

// RecordSuccess folds a successful call into the state.
// A successful half-open probe closes the circuit.
func RecordSuccess(s State) State {
	s.Phase = PhaseClosed
	s.ConsecutiveFailures = 0
	s.FirstFailureAt = time.Time{}
	s.ProbeInFlight = false
	return s
}

// RecordFailure folds a provider-health failure into the state.
// A failed half-open probe reopens the circuit and restarts the cooldown.
// In the closed phase, failures outside the rolling window restart the count.
func RecordFailure(s State, cfg Config, now time.Time) State {
	if s.Phase == PhaseHalfOpen {
		s.Phase = PhaseOpen
		s.ProbeInFlight = false
		s.LastFailureAt = now
		return s
	}

	if cfg.Window > 0 && !s.FirstFailureAt.IsZero() && now.Sub(s.FirstFailureAt) > cfg.Window {
		s.ConsecutiveFailures = 0
		s.FirstFailureAt = time.Time{}
	}
	if s.ConsecutiveFailures == 0 {
		s.FirstFailureAt = now
	}
	s.ConsecutiveFailures++
	s.LastFailureAt = now

	if s.ConsecutiveFailures >= cfg.FailureThreshold {
		s.Phase = PhaseOpen
	}
	return s
}

// RetryAt returns when an open circuit will next admit a probe.
func RetryAt(s State, cfg Config) time.Time {
	if s.Phase != PhaseOpen {
		return time.Time{}
	}
	return s.LastFailureAt.Add(cfg.Cooldown)
}
