package web_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Terry-Mathew/youtube-filter-sub001/adapters/clock"
	"github.com/Terry-Mathew/youtube-filter-sub001/adapters/idgen"
	"github.com/Terry-Mathew/youtube-filter-sub001/adapters/memory"
	"github.com/Terry-Mathew/youtube-filter-sub001/app"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/breaker"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/provider"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/retry"
	"github.com/Terry-Mathew/youtube-filter-sub001/ports"
	"github.com/Terry-Mathew/youtube-filter-sub001/web"
)

type nilTransport struct{}

func (nilTransport) Call(context.Context, provider.Request) (provider.Response, error) {
	return provider.Response{Status: 200, Body: []byte(`{"kind":"x","items":[]}`)}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *app.QuotaManager, ports.UsageStore) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ledger := memory.NewUsageStore(100)
	logger := zerolog.Nop()

	qm := app.NewQuotaManager(app.QuotaDeps{
		Ledger: ledger,
		Clock:  clk,
		IDGen:  &idgen.Sequential{},
		Logger: logger,
	}, app.QuotaConfig{DailyLimit: 10000, ResetLoc: time.UTC})

	rl := app.NewRateLimiter(app.RateLimiterConfig{MaxPerSecond: 1000, Burst: 1000, MaxConcurrent: 4}, nil, logger)
	t.Cleanup(rl.Close)
	cb := app.NewCircuitBreaker(breaker.Config{FailureThreshold: 5, Cooldown: 30 * time.Second}, clk, nil, logger)
	ry := app.NewRetryer(retry.DefaultPolicy(), clk, nil, logger)

	gw := app.NewGateway(app.GatewayDeps{
		Quota:     qm,
		RateLimit: rl,
		Breaker:   cb,
		Retry:     ry,
		Transport: nilTransport{},
		Clock:     clk,
		Logger:    logger,
	})

	handler := web.NewHandler(gw, ledger, clk, logger)
	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)
	return srv, qm, ledger
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var body map[string]string
	if code := getJSON(t, srv.URL+"/healthz", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestQuotaEndpoint(t *testing.T) {
	srv, qm, _ := newTestServer(t)

	res, err := qm.Reserve(context.Background(), provider.OpSearch, 100)
	if err != nil {
		t.Fatal(err)
	}
	qm.Commit(context.Background(), res, 100)

	var body struct {
		Used         int64  `json:"used"`
		DailyLimit   int64  `json:"daily_limit"`
		Remaining    int64  `json:"remaining"`
		WarningLevel string `json:"warning_level"`
	}
	if code := getJSON(t, srv.URL+"/v1/quota", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body.Used != 100 || body.Remaining != 9900 {
		t.Errorf("quota = %+v", body)
	}
	if body.WarningLevel != "none" {
		t.Errorf("warning_level = %q", body.WarningLevel)
	}
}

func TestCircuitEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var body struct {
		Phase string `json:"phase"`
	}
	if code := getJSON(t, srv.URL+"/v1/circuit", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body.Phase != "closed" {
		t.Errorf("phase = %q, want closed", body.Phase)
	}
}

func TestUsageEndpoint(t *testing.T) {
	srv, qm, _ := newTestServer(t)
	ctx := context.Background()

	res, _ := qm.Reserve(ctx, provider.OpVideosList, 1)
	qm.Commit(ctx, res, 1)
	res, _ = qm.Reserve(ctx, provider.OpVideosList, 1)
	qm.Rollback(ctx, res)

	var body struct {
		Summary struct {
			Records     int64 `json:"records"`
			CostCharged int64 `json:"cost_charged"`
		} `json:"summary"`
		Recent []json.RawMessage `json:"recent"`
	}
	if code := getJSON(t, srv.URL+"/v1/usage", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body.Summary.Records != 2 {
		t.Errorf("records = %d, want 2", body.Summary.Records)
	}
	if body.Summary.CostCharged != 1 {
		t.Errorf("cost_charged = %d, want 1", body.Summary.CostCharged)
	}
	if len(body.Recent) != 2 {
		t.Errorf("recent = %d entries, want 2", len(body.Recent))
	}
}

func TestUsageEndpoint_BadSince(t *testing.T) {
	srv, _, _ := newTestServer(t)
	if code := getJSON(t, srv.URL+"/v1/usage?since=yesterday", nil); code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
