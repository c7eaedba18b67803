// Package retry provides the pure backoff policy math.
// The attempt loop itself lives in the app layer; jitter randomness is passed
// in so every function here stays deterministic.
package retry

import (
	"time"

	"github.com/Terry-Mathew/youtube-filter-sub001/domain/apierror"
)

// Policy bounds a retry loop.
type Policy struct {
	MaxAttempts  int           // total attempts including the first
	BaseDelay    time.Duration // delay before the second attempt (jitter aside)
	Multiplier   float64       // exponential growth factor
	MaxDelay     time.Duration // delay ceiling
	JitterFactor float64       // delay scaled by uniform [1-j, 1+j]
	MaxElapsed   time.Duration // overall deadline from first attempt; 0 = none
}

// DefaultPolicy mirrors the tuning the original client shipped with.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		BaseDelay:    2 * time.Second,
		Multiplier:   2,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.25,
	}
}

// Delay computes the backoff before attempt+2 (attempt is zero-based: the
// delay after the first failure is Delay(0) = BaseDelay). jitterUnit is a
// uniform random sample in [0, 1); with JitterFactor 0 the result is exactly
// the capped exponential, monotonically non-decreasing in attempt.
func (p Policy) Delay(attempt int, jitterUnit float64) time.Duration {
	d := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
		if d >= float64(p.MaxDelay) {
			break
		}
	}
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.JitterFactor > 0 {
		scale := 1 - p.JitterFactor + 2*p.JitterFactor*jitterUnit
		d *= scale
	}
	return time.Duration(d)
}

// ShouldRetry decides whether another attempt is allowed after a classified
// failure. attempt is the zero-based index of the attempt that just failed.
// Pure function; the CANCELLED check happens at the loop, not here.
func (p Policy) ShouldRetry(kind apierror.Kind, attempt int) bool {
	if !apierror.Retryable(kind) {
		return false
	}
	// Quota exhaustion is terminal until the daily reset; never backoff-retry.
	if kind == apierror.KindQuotaExceeded {
		return false
	}
	// Unclassified failures get at most one extra attempt.
	if kind == apierror.KindUnknown && attempt >= 1 {
		return false
	}
	return attempt+1 < p.MaxAttempts
}
