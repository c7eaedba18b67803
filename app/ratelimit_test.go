package app

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Terry-Mathew/youtube-filter-sub001/domain/apierror"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/provider"
)

func newTestRateLimiter(t *testing.T, cfg RateLimiterConfig) *RateLimiter {
	t.Helper()
	l := NewRateLimiter(cfg, nil, zerolog.Nop())
	t.Cleanup(l.Close)
	return l
}

// waitForQueueDepth polls until the limiter reports n queued waiters.
func waitForQueueDepth(t *testing.T, l *RateLimiter, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if l.QueueDepth() == n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("queue depth never reached %d (now %d)", n, l.QueueDepth())
}

func TestRateLimiter_AcquireRelease(t *testing.T) {
	l := newTestRateLimiter(t, RateLimiterConfig{
		MaxPerSecond:  1000,
		Burst:         1000,
		MaxConcurrent: 4,
	})

	p, err := l.Acquire(context.Background(), provider.PriorityForeground)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p.Release()
}

func TestRateLimiter_ConcurrencyCap(t *testing.T) {
	l := newTestRateLimiter(t, RateLimiterConfig{
		MaxPerSecond:  1000,
		Burst:         1000,
		MaxConcurrent: 1,
		QueueLimit:    8,
	})
	ctx := context.Background()

	first, err := l.Acquire(ctx, provider.PriorityForeground)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan *Permit, 1)
	go func() {
		p, err := l.Acquire(ctx, provider.PriorityForeground)
		if err != nil {
			t.Error(err)
		}
		done <- p
	}()

	select {
	case <-done:
		t.Fatal("second acquire succeeded while slot held")
	case <-time.After(50 * time.Millisecond):
	}

	first.Release()
	select {
	case p := <-done:
		p.Release()
	case <-time.After(2 * time.Second):
		t.Fatal("second acquire never completed after release")
	}
}

func TestRateLimiter_ForegroundDispatchedFirst(t *testing.T) {
	l := newTestRateLimiter(t, RateLimiterConfig{
		MaxPerSecond:  1000,
		Burst:         1000,
		MaxConcurrent: 1,
		QueueLimit:    8,
	})
	ctx := context.Background()

	holder, err := l.Acquire(ctx, provider.PriorityForeground)
	if err != nil {
		t.Fatal(err)
	}

	// The dispatcher pops one waiter and parks on the held slot; everything
	// queued after that competes by priority.
	order := make(chan provider.Priority, 4)
	spawn := func(prio provider.Priority) {
		go func() {
			p, err := l.Acquire(ctx, prio)
			if err != nil {
				t.Error(err)
				return
			}
			order <- prio
			p.Release()
		}()
	}

	spawn(provider.PriorityBackground)
	waitForQueueDepth(t, l, 0) // popped by the dispatcher, parked on the slot

	spawn(provider.PriorityBackground)
	waitForQueueDepth(t, l, 1)
	spawn(provider.PriorityForeground)
	waitForQueueDepth(t, l, 2)

	holder.Release()

	var got []provider.Priority
	for i := 0; i < 3; i++ {
		select {
		case p := <-order:
			got = append(got, p)
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d waiters completed", len(got))
		}
	}

	// The parked background waiter goes first (already dispatched), then the
	// queued foreground beats the queued background.
	if got[1] != provider.PriorityForeground {
		t.Errorf("dispatch order = %v, want foreground before queued background", got)
	}
}

func TestRateLimiter_BackgroundOverloadAtFullQueue(t *testing.T) {
	l := newTestRateLimiter(t, RateLimiterConfig{
		MaxPerSecond:  1000,
		Burst:         1000,
		MaxConcurrent: 1,
		QueueLimit:    1,
	})
	ctx := context.Background()

	holder, err := l.Acquire(ctx, provider.PriorityBackground)
	if err != nil {
		t.Fatal(err)
	}
	defer holder.Release()

	// First waiter is popped by the dispatcher and parks on the held slot.
	go func() {
		p, err := l.Acquire(ctx, provider.PriorityBackground)
		if err == nil {
			p.Release()
		}
	}()
	waitForQueueDepth(t, l, 0)

	// Second waiter fills the queue.
	go func() {
		p, err := l.Acquire(ctx, provider.PriorityBackground)
		if err == nil {
			p.Release()
		}
	}()
	waitForQueueDepth(t, l, 1)

	// Queue is full: a background arrival fails immediately.
	_, err = l.Acquire(ctx, provider.PriorityBackground)
	te := apierror.From(err)
	if te.Kind != apierror.KindRateLimited {
		t.Errorf("Kind = %s, want RATE_LIMITED", te.Kind)
	}

	// A foreground arrival queues instead of failing; prove it by observing a
	// timeout rather than an overload error.
	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(tctx, provider.PriorityForeground)
	if apierror.From(err).Kind != apierror.KindTimeout {
		t.Errorf("foreground err = %v, want TIMEOUT from waiting", err)
	}
}

func TestRateLimiter_CancelledWaiterDoesNotLeakSlot(t *testing.T) {
	l := newTestRateLimiter(t, RateLimiterConfig{
		MaxPerSecond:  1000,
		Burst:         1000,
		MaxConcurrent: 1,
		QueueLimit:    8,
	})

	holder, err := l.Acquire(context.Background(), provider.PriorityForeground)
	if err != nil {
		t.Fatal(err)
	}

	cctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := l.Acquire(cctx, provider.PriorityForeground)
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	err = <-errCh
	if apierror.From(err).Kind != apierror.KindCancelled {
		t.Fatalf("err = %v, want CANCELLED", err)
	}

	// The abandoned waiter must not hold the slot.
	holder.Release()
	ctx, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	p, err := l.Acquire(ctx, provider.PriorityForeground)
	if err != nil {
		t.Fatalf("acquire after cancellation: %v", err)
	}
	p.Release()
}

func TestRateLimiter_CancelReturnsWhileSaturated(t *testing.T) {
	l := newTestRateLimiter(t, RateLimiterConfig{
		MaxPerSecond:  1000,
		Burst:         1000,
		MaxConcurrent: 1,
		QueueLimit:    8,
	})

	holder, err := l.Acquire(context.Background(), provider.PriorityForeground)
	if err != nil {
		t.Fatal(err)
	}
	defer holder.Release()

	// The dispatcher pops this waiter and parks on the held slot.
	cctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := l.Acquire(cctx, provider.PriorityBackground)
		errCh <- err
	}()
	waitForQueueDepth(t, l, 0)

	// Cancellation must resolve the caller even though the slot never frees.
	cancel()
	select {
	case err := <-errCh:
		if apierror.From(err).Kind != apierror.KindCancelled {
			t.Errorf("err = %v, want CANCELLED", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("cancelled Acquire did not return while the slot was held")
	}
}

func TestRateLimiter_DeadlineWhileWaiting(t *testing.T) {
	l := newTestRateLimiter(t, RateLimiterConfig{
		MaxPerSecond:  1000,
		Burst:         1000,
		MaxConcurrent: 1,
		QueueLimit:    8,
	})

	holder, err := l.Acquire(context.Background(), provider.PriorityForeground)
	if err != nil {
		t.Fatal(err)
	}
	defer holder.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, provider.PriorityForeground)
	if apierror.From(err).Kind != apierror.KindTimeout {
		t.Errorf("err = %v, want TIMEOUT", err)
	}
}

func TestRateLimiter_CloseFailsWaiters(t *testing.T) {
	l := NewRateLimiter(RateLimiterConfig{
		MaxPerSecond:  1000,
		Burst:         1000,
		MaxConcurrent: 1,
		QueueLimit:    8,
	}, nil, zerolog.Nop())

	holder, err := l.Acquire(context.Background(), provider.PriorityForeground)
	if err != nil {
		t.Fatal(err)
	}
	defer holder.Release()

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := l.Acquire(context.Background(), provider.PriorityForeground)
			errs <- err
		}()
	}
	waitForQueueDepth(t, l, 1) // one popped and parked, one queued

	l.Close()

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			if apierror.From(err).Kind != apierror.KindCancelled {
				t.Errorf("waiter err = %v, want CANCELLED", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("waiter never resolved after Close")
		}
	}

	// Acquire after close fails fast.
	_, err = l.Acquire(context.Background(), provider.PriorityForeground)
	if apierror.From(err).Kind != apierror.KindCancelled {
		t.Errorf("post-close err = %v, want CANCELLED", err)
	}
}

func TestRateLimiter_UpdateConfigRaisesQueueLimit(t *testing.T) {
	l := newTestRateLimiter(t, RateLimiterConfig{
		MaxPerSecond:  1000,
		Burst:         1000,
		MaxConcurrent: 1,
		QueueLimit:    1,
	})
	ctx := context.Background()

	holder, err := l.Acquire(ctx, provider.PriorityBackground)
	if err != nil {
		t.Fatal(err)
	}
	defer holder.Release()

	// Fill the queue: one waiter popped and parked, one queued.
	for i := 0; i < 2; i++ {
		go func() {
			p, err := l.Acquire(ctx, provider.PriorityBackground)
			if err == nil {
				p.Release()
			}
		}()
		waitForQueueDepth(t, l, i)
	}

	if _, err := l.Acquire(ctx, provider.PriorityBackground); apierror.From(err).Kind != apierror.KindRateLimited {
		t.Fatalf("err = %v, want RATE_LIMITED at the old queue limit", err)
	}

	l.UpdateConfig(RateLimiterConfig{
		MaxPerSecond:  1000,
		Burst:         1000,
		MaxConcurrent: 1,
		QueueLimit:    8,
	})

	// The same arrival now queues; observe a deadline instead of an overload.
	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(tctx, provider.PriorityBackground); apierror.From(err).Kind != apierror.KindTimeout {
		t.Errorf("err = %v, want TIMEOUT from waiting under the raised limit", err)
	}
}

func TestPermit_ReleaseIdempotent(t *testing.T) {
	l := newTestRateLimiter(t, RateLimiterConfig{
		MaxPerSecond:  1000,
		Burst:         1000,
		MaxConcurrent: 1,
	})

	p, err := l.Acquire(context.Background(), provider.PriorityForeground)
	if err != nil {
		t.Fatal(err)
	}
	p.Release()
	p.Release() // double release must not free a second slot

	q, err := l.Acquire(context.Background(), provider.PriorityForeground)
	if err != nil {
		t.Fatal(err)
	}
	defer q.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, provider.PriorityForeground); err == nil {
		t.Error("third acquire succeeded; double release leaked a slot")
	}
}
