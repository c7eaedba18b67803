package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/Terry-Mathew/youtube-filter-sub001/adapters/metrics"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/apierror"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/provider"
)

// Permit is a grant to hold one in-flight provider call. It must be released
// exactly once; Release is idempotent so failure paths can defer it safely.
type Permit struct {
	limiter  *RateLimiter
	released atomic.Bool
}

// Release returns the permit's concurrency slot.
func (p *Permit) Release() {
	if p == nil || !p.released.CompareAndSwap(false, true) {
		return
	}
	p.limiter.sem.Release(1)
}

// RateLimiterConfig tunes admission.
type RateLimiterConfig struct {
	MaxPerSecond  float64 // token bucket refill rate
	Burst         int     // token bucket depth
	MaxPerMinute  int     // secondary sliding window; 0 = disabled
	MaxConcurrent int64   // in-flight ceiling
	QueueLimit    int     // waiters before backpressure kicks in
}

// waiter is one queued Acquire call. Grant delivery and cancellation race;
// the queued flag (guarded by the limiter mutex) decides who wins.
type waiter struct {
	priority provider.Priority
	grant    chan *Permit
	queued   bool // still in the queue; false once dispatched or abandoned
}

// RateLimiter bounds request issuance: a token bucket caps the per-second
// rate, a sliding window caps the per-minute rate, and a semaphore caps
// concurrent in-flight calls. Excess requests queue FIFO within their
// priority tier; foreground waiters are dispatched before earlier-arrived
// background waiters. The queue is bounded: when full, arriving background
// requests fail immediately with an overload error instead of queuing.
type RateLimiter struct {
	cfg    RateLimiterConfig
	bucket *rate.Limiter
	sem    *semaphore.Weighted

	mu      sync.Mutex
	cond    *sync.Cond
	tiers   [2][]*waiter // index 1 = foreground, 0 = background
	waiting int
	minute  []time.Time // admission timestamps within the last minute
	closed  bool

	metrics *metrics.Collector
	log     zerolog.Logger

	dispatchCtx    context.Context
	dispatchCancel context.CancelFunc
	done           chan struct{}
}

// NewRateLimiter creates a running rate limiter. Close must be called to
// stop its dispatcher.
func NewRateLimiter(cfg RateLimiterConfig, m *metrics.Collector, logger zerolog.Logger) *RateLimiter {
	if cfg.MaxPerSecond <= 0 {
		cfg.MaxPerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.MaxPerSecond)
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.QueueLimit <= 0 {
		cfg.QueueLimit = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &RateLimiter{
		cfg:            cfg,
		bucket:         rate.NewLimiter(rate.Limit(cfg.MaxPerSecond), cfg.Burst),
		sem:            semaphore.NewWeighted(cfg.MaxConcurrent),
		metrics:        m,
		log:            logger.With().Str("component", "ratelimit").Logger(),
		dispatchCtx:    ctx,
		dispatchCancel: cancel,
		done:           make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	go l.dispatch()
	return l
}

// UpdateConfig applies reloaded admission tunables. The bucket rate, burst,
// minute window and queue limit change immediately; the concurrency ceiling
// is fixed at construction and a changed value requires a restart.
func (l *RateLimiter) UpdateConfig(cfg RateLimiterConfig) {
	if cfg.MaxPerSecond <= 0 {
		cfg.MaxPerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.MaxPerSecond)
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}
	if cfg.QueueLimit <= 0 {
		cfg.QueueLimit = 64
	}

	l.bucket.SetLimit(rate.Limit(cfg.MaxPerSecond))
	l.bucket.SetBurst(cfg.Burst)

	l.mu.Lock()
	if cfg.MaxConcurrent > 0 && cfg.MaxConcurrent != l.cfg.MaxConcurrent {
		l.log.Warn().
			Int64("max_concurrent", cfg.MaxConcurrent).
			Msg("max_concurrent change requires a restart")
	}
	cfg.MaxConcurrent = l.cfg.MaxConcurrent
	l.cfg = cfg
	l.mu.Unlock()

	l.log.Info().
		Float64("max_per_second", cfg.MaxPerSecond).
		Int("queue_limit", cfg.QueueLimit).
		Msg("rate limiter configuration updated")
}

// Acquire admits the caller or queues it until capacity frees, the context
// expires (TIMEOUT), or the caller cancels (CANCELLED). Background requests
// arriving at a full queue fail immediately with a rate-limit overload error.
func (l *RateLimiter) Acquire(ctx context.Context, priority provider.Priority) (*Permit, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, apierror.New(apierror.KindCancelled, "rate limiter closed")
	}
	if l.waiting >= l.cfg.QueueLimit && priority != provider.PriorityForeground {
		l.mu.Unlock()
		l.metrics.ObserveOverload()
		return nil, apierror.New(apierror.KindRateLimited, "admission queue full").
			WithHint("the request queue is overloaded; retry later")
	}

	w := &waiter{
		priority: priority,
		grant:    make(chan *Permit, 1),
		queued:   true,
	}
	tier := 0
	if priority == provider.PriorityForeground {
		tier = 1
	}
	l.tiers[tier] = append(l.tiers[tier], w)
	l.waiting++
	l.metrics.SetQueueDepth(l.waiting)
	l.cond.Signal()
	l.mu.Unlock()

	select {
	case p := <-w.grant:
		if p == nil {
			return nil, apierror.New(apierror.KindCancelled, "rate limiter closed")
		}
		return p, nil
	case <-ctx.Done():
	}

	// Cancelled while waiting. If the dispatcher already took us out of the
	// queue, a grant is in flight and must be returned.
	l.mu.Lock()
	stillQueued := w.queued
	w.queued = false
	l.mu.Unlock()

	if !stillQueued {
		// The dispatcher already popped this waiter and may be parked waiting
		// for capacity on its behalf. The caller must not wait with it; hand
		// the slot back whenever the grant lands.
		go func() {
			if p := <-w.grant; p != nil {
				p.Release()
			}
		}()
	}

	if ctx.Err() == context.DeadlineExceeded {
		return nil, apierror.Wrap(apierror.KindTimeout, ctx.Err(), "timed out waiting for rate limit capacity")
	}
	return nil, apierror.Wrap(apierror.KindCancelled, ctx.Err(), "cancelled while waiting for rate limit capacity")
}

// Release returns a permit. Exported for symmetry with Acquire; equivalent to
// permit.Release.
func (l *RateLimiter) Release(p *Permit) {
	p.Release()
}

// QueueDepth returns the number of queued acquirers (for the ops surface).
func (l *RateLimiter) QueueDepth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waiting
}

// Close stops the dispatcher and fails queued waiters.
func (l *RateLimiter) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	for tier := range l.tiers {
		for _, w := range l.tiers[tier] {
			if w.queued {
				w.queued = false
				w.grant <- nil
			}
		}
		l.tiers[tier] = nil
	}
	l.waiting = 0
	l.metrics.SetQueueDepth(0)
	l.cond.Signal()
	l.mu.Unlock()

	l.dispatchCancel()
	<-l.done
}

// dispatch is the single admission loop: it pops the highest-priority waiter,
// waits for a concurrency slot, a bucket token and a minute-window slot in
// that order, then delivers the permit.
func (l *RateLimiter) dispatch() {
	defer close(l.done)
	for {
		w := l.nextWaiter()
		if w == nil {
			return
		}

		if err := l.sem.Acquire(l.dispatchCtx, 1); err != nil {
			l.abandon(w)
			return
		}
		if err := l.bucket.Wait(l.dispatchCtx); err != nil {
			l.sem.Release(1)
			l.abandon(w)
			return
		}
		if err := l.waitMinuteWindow(); err != nil {
			l.sem.Release(1)
			l.abandon(w)
			return
		}

		p := &Permit{limiter: l}
		w.grant <- p
	}
}

// nextWaiter blocks until a waiter is queued or the limiter closes, then
// removes and returns the head of the highest non-empty tier.
func (l *RateLimiter) nextWaiter() *waiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	for {
		for tier := 1; tier >= 0; tier-- {
			q := l.tiers[tier]
			for len(q) > 0 {
				w := q[0]
				q = q[1:]
				l.tiers[tier] = q
				l.waiting--
				l.metrics.SetQueueDepth(l.waiting)
				if !w.queued {
					// Abandoned by cancellation before dispatch.
					continue
				}
				w.queued = false
				return w
			}
		}
		if l.closed {
			return nil
		}
		l.cond.Wait()
	}
}

// abandon resolves a popped waiter during shutdown: a nil grant tells the
// waiter the limiter closed before capacity was found.
func (l *RateLimiter) abandon(w *waiter) {
	w.grant <- nil
}

// waitMinuteWindow blocks until the per-minute sliding window has a free
// slot, then records the admission.
func (l *RateLimiter) waitMinuteWindow() error {
	for {
		l.mu.Lock()
		maxPerMinute := l.cfg.MaxPerMinute
		if maxPerMinute <= 0 {
			l.mu.Unlock()
			return nil
		}
		now := time.Now()
		cutoff := now.Add(-time.Minute)
		i := 0
		for i < len(l.minute) && !l.minute[i].After(cutoff) {
			i++
		}
		l.minute = l.minute[i:]

		if len(l.minute) < maxPerMinute {
			l.minute = append(l.minute, now)
			l.mu.Unlock()
			return nil
		}
		wait := l.minute[0].Add(time.Minute).Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-l.dispatchCtx.Done():
			timer.Stop()
			return l.dispatchCtx.Err()
		}
	}
}
