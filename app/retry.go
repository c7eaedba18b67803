package app

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Terry-Mathew/youtube-filter-sub001/adapters/metrics"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/apierror"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/retry"
	"github.com/Terry-Mathew/youtube-filter-sub001/ports"
)

// Retryer drives exponential-backoff-with-jitter retries per error
// classification. Policy math lives in domain/retry; this type owns the
// attempt loop, the cancellable sleep and the deadline ceiling.
type Retryer struct {
	mu      sync.RWMutex
	policy  retry.Policy
	clock   ports.Clock
	rand    func() float64 // uniform [0,1) jitter source; injectable for tests
	sleep   func(ctx context.Context, d time.Duration) error
	metrics *metrics.Collector
	log     zerolog.Logger
}

// NewRetryer creates a retryer with the given policy.
func NewRetryer(policy retry.Policy, clk ports.Clock, m *metrics.Collector, logger zerolog.Logger) *Retryer {
	return &Retryer{
		policy:  policy,
		clock:   clk,
		rand:    rand.Float64,
		sleep:   sleepCtx,
		metrics: m,
		log:     logger.With().Str("component", "retry").Logger(),
	}
}

// UpdatePolicy applies a reloaded policy. In-flight Do loops finish under the
// policy they started with.
func (r *Retryer) UpdatePolicy(p retry.Policy) {
	r.mu.Lock()
	r.policy = p
	r.mu.Unlock()
	r.log.Info().Int("max_attempts", p.MaxAttempts).Msg("retry policy updated")
}

// Do runs op until it succeeds, exhausts the policy, fails terminally, or the
// context is cancelled. op receives the zero-based attempt index; each
// attempt is expected to re-enter rate-limiter admission itself since permits
// are never held across attempts. The returned error is always a typed
// *apierror.Error.
func (r *Retryer) Do(ctx context.Context, operation string, op func(ctx context.Context, attempt int) error) error {
	r.mu.RLock()
	policy := r.policy
	r.mu.RUnlock()

	start := r.clock.Now()
	var history []apierror.Kind

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return cancelErr(err)
		}

		err := op(ctx, attempt)
		if err == nil {
			return nil
		}

		te := apierror.From(err)
		history = append(history, te.Kind)

		if te.Kind == apierror.KindCancelled {
			return te
		}
		if !policy.ShouldRetry(te.Kind, attempt) {
			return withHistory(te, history)
		}
		if policy.MaxElapsed > 0 && r.clock.Now().Sub(start) >= policy.MaxElapsed {
			r.log.Debug().Str("operation", operation).Msg("retry deadline exhausted")
			return withHistory(te, history)
		}

		delay := policy.Delay(attempt, r.rand())
		r.metrics.ObserveRetry(operation, string(te.Kind))
		r.log.Info().
			Str("operation", operation).
			Str("kind", string(te.Kind)).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("retrying after backoff")

		if serr := r.sleep(ctx, delay); serr != nil {
			return cancelErr(serr)
		}
	}
}

// sleepCtx sleeps for d unless the context finishes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func cancelErr(err error) *apierror.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apierror.Wrap(apierror.KindTimeout, err, "operation deadline exceeded")
	}
	return apierror.Wrap(apierror.KindCancelled, err, "operation cancelled")
}

// withHistory annotates the surfaced error with the kinds seen across
// attempts, for diagnostics.
func withHistory(te *apierror.Error, history []apierror.Kind) *apierror.Error {
	if len(history) <= 1 {
		return te
	}
	detail := te.Detail
	if detail != "" {
		detail += "; "
	}
	detail += "attempts:"
	for _, k := range history {
		detail += " " + string(k)
	}
	te.Detail = detail
	return te
}
