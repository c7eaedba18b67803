package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Terry-Mathew/youtube-filter-sub001/adapters/clock"
	"github.com/Terry-Mathew/youtube-filter-sub001/adapters/idgen"
	"github.com/Terry-Mathew/youtube-filter-sub001/adapters/memory"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/apierror"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/breaker"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/provider"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/retry"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/usage"
)

// scriptedTransport returns canned responses in order, then repeats the last.
type scriptedTransport struct {
	mu        sync.Mutex
	responses []scriptedResponse
	calls     []provider.Request
}

type scriptedResponse struct {
	resp provider.Response
	err  error
}

func (s *scriptedTransport) Call(_ context.Context, req provider.Request) (provider.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	i := len(s.calls) - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	r := s.responses[i]
	return r.resp, r.err
}

func (s *scriptedTransport) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func okBody(ids ...string) []byte {
	items := make([]string, len(ids))
	for i, id := range ids {
		items[i] = fmt.Sprintf(
			`{"id": %q, "snippet": {"title": "Video %s", "publishedAt": "2024-06-01T10:00:00Z"}}`,
			id, id)
	}
	return []byte(fmt.Sprintf(
		`{"kind": "youtube#videoListResponse", "pageInfo": {"totalResults": %d, "resultsPerPage": 50}, "items": [%s]}`,
		len(ids), strings.Join(items, ",")))
}

func ok(body []byte) scriptedResponse {
	return scriptedResponse{resp: provider.Response{Status: 200, Body: body}}
}

func httpErr(status int, body string) scriptedResponse {
	return scriptedResponse{resp: provider.Response{Status: status, Body: []byte(body)}}
}

type gatewayFixture struct {
	gateway   *Gateway
	transport *scriptedTransport
	quota     *QuotaManager
	breaker   *CircuitBreaker
	clock     *clock.Fake
	ledger    *memory.UsageStore
}

func newGatewayFixture(t *testing.T, dailyLimit int64, responses ...scriptedResponse) *gatewayFixture {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ledger := memory.NewUsageStore(1000)
	logger := zerolog.Nop()

	qm := NewQuotaManager(QuotaDeps{
		Ledger: ledger,
		Clock:  clk,
		IDGen:  &idgen.Sequential{},
		Logger: logger,
	}, QuotaConfig{DailyLimit: dailyLimit, ResetLoc: time.UTC})

	rl := NewRateLimiter(RateLimiterConfig{
		MaxPerSecond:  10000,
		Burst:         10000,
		MaxConcurrent: 8,
		QueueLimit:    64,
	}, nil, logger)
	t.Cleanup(rl.Close)

	cb := NewCircuitBreaker(breaker.Config{
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
		Window:           time.Minute,
	}, clk, nil, logger)

	ry := NewRetryer(retry.DefaultPolicy(), clk, nil, logger)
	ry.rand = func() float64 { return 0.5 }
	ry.sleep = func(ctx context.Context, d time.Duration) error {
		clk.Advance(d)
		return nil
	}

	tr := &scriptedTransport{responses: responses}

	g := NewGateway(GatewayDeps{
		Quota:     qm,
		RateLimit: rl,
		Breaker:   cb,
		Retry:     ry,
		Transport: tr,
		Clock:     clk,
		Logger:    logger,
	})
	return &gatewayFixture{gateway: g, transport: tr, quota: qm, breaker: cb, clock: clk, ledger: ledger}
}

func TestGateway_InvokeSuccess(t *testing.T) {
	f := newGatewayFixture(t, 10000, ok(okBody("a", "b")))

	res, err := f.gateway.Invoke(context.Background(), provider.OpVideosList,
		map[string]string{"id": "a,b"}, provider.PriorityForeground)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if len(res.Videos) != 2 {
		t.Errorf("Videos = %d, want 2", len(res.Videos))
	}
	if res.CostCharged != 1 {
		t.Errorf("CostCharged = %d, want 1", res.CostCharged)
	}
	if got := f.quota.Status().Used; got != 1 {
		t.Errorf("quota used = %d, want 1", got)
	}
	if f.transport.callCount() != 1 {
		t.Errorf("transport calls = %d, want 1", f.transport.callCount())
	}
}

func TestGateway_InvalidOperation(t *testing.T) {
	f := newGatewayFixture(t, 10000, ok(okBody()))

	_, err := f.gateway.Invoke(context.Background(), "videos.delete", nil, provider.PriorityForeground)
	if apierror.From(err).Kind != apierror.KindInvalidRequest {
		t.Errorf("err = %v, want INVALID_REQUEST", err)
	}
	if f.transport.callCount() != 0 {
		t.Error("transport called for invalid operation")
	}
}

func TestGateway_QuotaExhaustedBeforeTransport(t *testing.T) {
	f := newGatewayFixture(t, 50, ok(okBody("a")))

	// search costs 100 against a budget of 50.
	_, err := f.gateway.Invoke(context.Background(), provider.OpSearch,
		map[string]string{"q": "cats"}, provider.PriorityForeground)
	if apierror.From(err).Kind != apierror.KindQuotaExceeded {
		t.Fatalf("err = %v, want QUOTA_EXCEEDED", err)
	}
	if f.transport.callCount() != 0 {
		t.Error("transport called despite exhausted quota")
	}
	if got := f.quota.Status().Used; got != 0 {
		t.Errorf("quota used = %d, want 0", got)
	}
}

func TestGateway_BatchFanOut(t *testing.T) {
	f := newGatewayFixture(t, 10000, ok(okBody("a")))

	ids := make([]string, 120)
	for i := range ids {
		ids[i] = fmt.Sprintf("v%03d", i)
	}
	res, err := f.gateway.Invoke(context.Background(), provider.OpVideosList,
		map[string]string{"id": strings.Join(ids, ",")}, provider.PriorityForeground)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if f.transport.callCount() != 3 {
		t.Errorf("transport calls = %d, want 3 for 120 ids", f.transport.callCount())
	}
	if res.CostCharged != 3 {
		t.Errorf("CostCharged = %d, want 3", res.CostCharged)
	}

	// Every chunk carries at most 50 ids.
	for i, call := range f.transport.calls {
		n := len(strings.Split(call.Params["id"], ","))
		if n > 50 {
			t.Errorf("chunk %d carries %d ids", i, n)
		}
	}
}

func TestGateway_PartialChunkFailure(t *testing.T) {
	f := newGatewayFixture(t, 10000,
		ok(okBody("a")),
		httpErr(400, `{"error":{"code":400,"message":"bad request","errors":[{"reason":"invalidParameter"}]}}`),
	)

	ids := make([]string, 60)
	for i := range ids {
		ids[i] = fmt.Sprintf("v%03d", i)
	}
	res, err := f.gateway.Invoke(context.Background(), provider.OpVideosList,
		map[string]string{"id": strings.Join(ids, ",")}, provider.PriorityForeground)

	if err == nil {
		t.Fatal("partial failure returned no error")
	}
	if apierror.From(err).Kind != apierror.KindInvalidRequest {
		t.Errorf("err = %v, want INVALID_REQUEST", err)
	}
	if res == nil {
		t.Fatal("partial failure dropped completed records")
	}
	if len(res.Videos) != 1 {
		t.Errorf("Videos = %d, want 1 from the completed chunk", len(res.Videos))
	}
	// Only the completed chunk is charged.
	if got := f.quota.Status().Used; got != 1 {
		t.Errorf("quota used = %d, want 1", got)
	}
}

func TestGateway_TerminalFailureRollsBack(t *testing.T) {
	f := newGatewayFixture(t, 10000,
		httpErr(404, `{"error":{"code":404,"message":"not found","errors":[{"reason":"videoNotFound"}]}}`),
	)

	res, err := f.gateway.Invoke(context.Background(), provider.OpVideosList,
		map[string]string{"id": "missing"}, provider.PriorityForeground)
	if res != nil {
		t.Error("result returned for total failure")
	}
	if apierror.From(err).Kind != apierror.KindNotFound {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}

	if got := f.quota.Status().Used; got != 0 {
		t.Errorf("quota used = %d, want 0 after rollback", got)
	}
	recent, _ := f.ledger.Recent(context.Background(), 10)
	if len(recent) != 1 || recent[0].Outcome != usage.OutcomeRolledBack {
		t.Errorf("ledger = %+v, want one rolled_back record", recent)
	}
}

func TestGateway_RetriesTransientThenSucceeds(t *testing.T) {
	f := newGatewayFixture(t, 10000,
		httpErr(503, "Service Unavailable"),
		ok(okBody("a")),
	)

	res, err := f.gateway.Invoke(context.Background(), provider.OpVideosList,
		map[string]string{"id": "a"}, provider.PriorityForeground)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if f.transport.callCount() != 2 {
		t.Errorf("transport calls = %d, want 2", f.transport.callCount())
	}
	if len(res.Videos) != 1 {
		t.Errorf("Videos = %d, want 1", len(res.Videos))
	}
	// Each attempt reserves its own cost: the failed attempt rolled its
	// reservation back before the backoff, and only the successful attempt's
	// charge remains.
	if got := f.quota.Status().Used; got != 1 {
		t.Errorf("quota used = %d, want 1", got)
	}
	recent, _ := f.ledger.Recent(context.Background(), 10)
	if len(recent) != 2 {
		t.Fatalf("ledger = %d records, want 2 (one per attempt)", len(recent))
	}
	var committed, rolledBack int
	for _, r := range recent {
		switch r.Outcome {
		case usage.OutcomeCommitted:
			committed++
		case usage.OutcomeRolledBack:
			rolledBack++
		}
	}
	if committed != 1 || rolledBack != 1 {
		t.Errorf("ledger outcomes = %d committed, %d rolled back, want 1 and 1", committed, rolledBack)
	}
}

func TestGateway_CircuitOpenFailsFastWithoutQuota(t *testing.T) {
	f := newGatewayFixture(t, 10000,
		scriptedResponse{err: &url.Error{
			Op:  "Get",
			URL: "https://example.com/videos",
			Err: fmt.Errorf("connection refused"),
		}},
	)
	ctx := context.Background()

	// Drive the breaker open. Each invocation retries internally, so a few
	// failing calls accumulate health failures quickly.
	for i := 0; i < 3; i++ {
		_, _ = f.gateway.Invoke(ctx, provider.OpVideosList,
			map[string]string{"id": "a"}, provider.PriorityForeground)
	}
	if f.breaker.Health().Phase != breaker.PhaseOpen {
		t.Fatal("breaker did not open under sustained failures")
	}

	usedBefore := f.quota.Status().Used
	callsBefore := f.transport.callCount()

	_, err := f.gateway.Invoke(ctx, provider.OpVideosList,
		map[string]string{"id": "a"}, provider.PriorityForeground)
	if apierror.From(err).Kind != apierror.KindCircuitOpen {
		t.Fatalf("err = %v, want CIRCUIT_OPEN", err)
	}

	if f.transport.callCount() != callsBefore {
		t.Error("transport called while circuit open")
	}
	if got := f.quota.Status().Used; got != usedBefore {
		t.Errorf("quota used moved %d -> %d during fail-fast", usedBefore, got)
	}
}

func TestGateway_ItemErrorsSurfaced(t *testing.T) {
	body := []byte(`{
		"kind": "youtube#videoListResponse",
		"pageInfo": {"totalResults": 2, "resultsPerPage": 50},
		"items": [
			{"id": "good", "snippet": {"title": "A", "publishedAt": "2024-06-01T10:00:00Z"}},
			{"id": "bad", "snippet": {"publishedAt": "2024-06-01T10:00:00Z"}}
		]
	}`)
	f := newGatewayFixture(t, 10000, ok(body))

	res, err := f.gateway.Invoke(context.Background(), provider.OpVideosList,
		map[string]string{"id": "good,bad"}, provider.PriorityForeground)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(res.Videos) != 1 {
		t.Errorf("Videos = %d, want 1", len(res.Videos))
	}
	if len(res.ItemErrors) != 1 {
		t.Fatalf("ItemErrors = %d, want 1", len(res.ItemErrors))
	}
	if res.ItemErrors[0].ID != "bad" {
		t.Errorf("ItemErrors[0].ID = %q, want bad", res.ItemErrors[0].ID)
	}
}

func TestGateway_PaginationToken(t *testing.T) {
	body := []byte(`{
		"kind": "youtube#searchListResponse",
		"nextPageToken": "CAUQAA",
		"pageInfo": {"totalResults": 100, "resultsPerPage": 5},
		"items": []
	}`)
	f := newGatewayFixture(t, 10000, ok(body))

	res, err := f.gateway.Invoke(context.Background(), provider.OpSearch,
		map[string]string{"q": "cats"}, provider.PriorityForeground)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.NextPageToken != "CAUQAA" {
		t.Errorf("NextPageToken = %q, want CAUQAA", res.NextPageToken)
	}
	if res.TotalResults != 100 {
		t.Errorf("TotalResults = %d, want 100", res.TotalResults)
	}
	if res.CostCharged != 100 {
		t.Errorf("CostCharged = %d, want 100 for search", res.CostCharged)
	}
}

func TestGateway_ChannelsTransform(t *testing.T) {
	body := []byte(`{
		"kind": "youtube#channelListResponse",
		"pageInfo": {"totalResults": 1, "resultsPerPage": 50},
		"items": [
			{"id": "UC1", "snippet": {"title": "Chan", "publishedAt": "2020-01-01T00:00:00Z"},
			 "statistics": {"subscriberCount": "10", "videoCount": "3"}}
		]
	}`)
	f := newGatewayFixture(t, 10000, ok(body))

	res, err := f.gateway.Invoke(context.Background(), provider.OpChannelsList,
		map[string]string{"id": "UC1"}, provider.PriorityForeground)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(res.Channels) != 1 {
		t.Fatalf("Channels = %d, want 1", len(res.Channels))
	}
	if res.Channels[0].SubscriberCount != 10 {
		t.Errorf("SubscriberCount = %d, want 10", res.Channels[0].SubscriberCount)
	}
	if len(res.Videos) != 0 {
		t.Error("videos populated for a channel operation")
	}
}
