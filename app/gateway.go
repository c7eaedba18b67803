package app

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Terry-Mathew/youtube-filter-sub001/adapters/metrics"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/apierror"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/media"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/provider"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/quota"
	"github.com/Terry-Mathew/youtube-filter-sub001/ports"
)

// Result is the canonical outcome of one gateway invocation. Exactly one of
// the record slices is populated, matching the operation kind. ItemErrors
// reports per-item validation failures that did not abort the batch.
type Result struct {
	Videos    []media.Video    `json:"videos,omitempty"`
	Channels  []media.Channel  `json:"channels,omitempty"`
	Playlists []media.Playlist `json:"playlists,omitempty"`

	ItemErrors    []media.ItemError `json:"item_errors,omitempty"`
	NextPageToken string            `json:"next_page_token,omitempty"`
	TotalResults  int64             `json:"total_results"`
	CostCharged   int64             `json:"cost_charged"`
}

// Gateway is the facade composing quota accounting, rate limiting, circuit
// breaking, retries and payload transformation around provider calls.
type Gateway struct {
	quota     *QuotaManager
	rateLimit *RateLimiter
	breaker   *CircuitBreaker
	retry     *Retryer
	transport ports.Transport
	clock     ports.Clock
	metrics   *metrics.Collector
	log       zerolog.Logger
}

// GatewayDeps contains dependencies for Gateway.
type GatewayDeps struct {
	Quota     *QuotaManager
	RateLimit *RateLimiter
	Breaker   *CircuitBreaker
	Retry     *Retryer
	Transport ports.Transport
	Clock     ports.Clock
	Metrics   *metrics.Collector
	Logger    zerolog.Logger
}

// NewGateway creates the gateway facade.
func NewGateway(deps GatewayDeps) *Gateway {
	return &Gateway{
		quota:     deps.Quota,
		rateLimit: deps.RateLimit,
		breaker:   deps.Breaker,
		retry:     deps.Retry,
		transport: deps.Transport,
		clock:     deps.Clock,
		metrics:   deps.Metrics,
		log:       deps.Logger.With().Str("component", "gateway").Logger(),
	}
}

// Invoke runs one logical provider operation end to end:
//
//  1. fail fast while the circuit is open, before any quota is reserved
//  2. per chunk: retry loop of (reserve flat cost -> rate-limit admission ->
//     breaker-gated call); a failed attempt rolls its reservation back before
//     the backoff sleep, so no quota or permit is held across attempts
//  3. on success: commit the attempt's cost, transform payloads
//  4. on terminal failure: surface the typed error
//
// List operations with more than 50 ids fan out into multiple provider
// calls; if a later chunk fails terminally, the records from completed chunks
// are returned alongside the error and their cost stays committed.
func (g *Gateway) Invoke(ctx context.Context, op provider.OperationKind, params map[string]string, priority provider.Priority) (*Result, error) {
	if !op.Valid() {
		return nil, apierror.Newf(apierror.KindInvalidRequest, "unknown operation kind %q", op)
	}

	chunks := chunkParams(op, params)

	// Breaker precheck before reserving, so fail-fast paths never spend
	// quota. Execute remains the authoritative gate.
	if ok, retryAt := g.breaker.Allow(); !ok {
		g.metrics.ObserveInvocation(string(op), "circuit_open")
		return nil, apierror.CircuitOpen(retryAt)
	}

	unitCost := g.quota.EstimateCost(op, 1)

	var envelopes []media.Envelope
	var terminal *apierror.Error
	for _, chunk := range chunks {
		env, cerr := g.callChunk(ctx, op, chunk, priority, unitCost)
		if cerr != nil {
			terminal = cerr
			break
		}
		envelopes = append(envelopes, env)
	}

	completed := int64(len(envelopes))

	if terminal != nil {
		g.metrics.ObserveInvocation(string(op), string(terminal.Kind))
		g.log.Warn().
			Str("operation", string(op)).
			Str("kind", string(terminal.Kind)).
			Int64("chunks_completed", completed).
			Msg("invocation failed")
		if completed == 0 {
			return nil, terminal
		}
		// Partial batch success: surface the valid subset with the error.
		result := g.assemble(op, envelopes, unitCost*completed)
		return result, terminal
	}

	result := g.assemble(op, envelopes, unitCost*completed)
	g.metrics.ObserveInvocation(string(op), "ok")
	g.metrics.ObserveItemFailures(len(result.ItemErrors))
	g.log.Debug().
		Str("operation", string(op)).
		Int("records", len(result.Videos)+len(result.Channels)+len(result.Playlists)).
		Int("item_errors", len(result.ItemErrors)).
		Int64("cost_charged", result.CostCharged).
		Msg("invocation complete")
	return result, nil
}

// callChunk issues one provider call with retry, rate limiting and circuit
// breaking. Each attempt reserves the flat per-call cost and either commits it
// on success or rolls it back before the next attempt; the permit is likewise
// released before any backoff sleep, so neither quota nor a concurrency slot
// is held while a retrying caller waits.
func (g *Gateway) callChunk(ctx context.Context, op provider.OperationKind, params map[string]string, priority provider.Priority, unitCost int64) (media.Envelope, *apierror.Error) {
	var envelope media.Envelope

	err := g.retry.Do(ctx, string(op), func(ctx context.Context, attempt int) error {
		reservation, rerr := g.quota.Reserve(ctx, op, unitCost)
		if rerr != nil {
			return rerr
		}

		permit, aerr := g.rateLimit.Acquire(ctx, priority)
		if aerr != nil {
			g.quota.Rollback(ctx, reservation)
			return aerr
		}
		defer permit.Release()

		cerr := g.breaker.Execute(ctx, func(ctx context.Context) error {
			start := g.clock.Now()
			resp, terr := g.transport.Call(ctx, provider.Request{Op: op, Params: params})
			g.metrics.ObserveAttempt(string(op), g.clock.Now().Sub(start).Seconds())
			if terr != nil {
				return apierror.Classify(terr, 0, nil)
			}
			if resp.Status < 200 || resp.Status > 299 {
				return apierror.Classify(nil, resp.Status, resp.Body)
			}
			env, perr := media.ParseListResponse(resp.Body)
			if perr != nil {
				return perr
			}
			envelope = env
			return nil
		})
		if cerr != nil {
			g.quota.Rollback(ctx, reservation)
			return cerr
		}
		g.quota.Commit(ctx, reservation, unitCost)
		return nil
	})
	if err != nil {
		return media.Envelope{}, apierror.From(err)
	}
	return envelope, nil
}

// assemble transforms collected envelopes into canonical records.
func (g *Gateway) assemble(op provider.OperationKind, envelopes []media.Envelope, cost int64) *Result {
	result := &Result{CostCharged: cost}
	var items []json.RawMessage
	for _, env := range envelopes {
		items = append(items, env.Items...)
		result.TotalResults += env.TotalResults
	}
	if n := len(envelopes); n > 0 {
		result.NextPageToken = envelopes[n-1].NextPageToken
	}

	switch op {
	case provider.OpChannelsList:
		result.Channels, result.ItemErrors = media.TransformChannels(items)
	case provider.OpPlaylistsList:
		result.Playlists, result.ItemErrors = media.TransformPlaylists(items)
	default:
		// Search results, video lists and playlist items all normalize to
		// canonical videos.
		result.Videos, result.ItemErrors = media.TransformVideos(items)
	}
	return result
}

// QuotaStatus exposes the budget snapshot for display.
func (g *Gateway) QuotaStatus() quota.Snapshot {
	return g.quota.Status()
}

// CircuitHealth exposes the breaker state for "temporarily unavailable"
// banners.
func (g *Gateway) CircuitHealth() HealthSnapshot {
	return g.breaker.Health()
}

// chunkParams splits a list-style call whose id parameter exceeds the
// provider batch ceiling into per-chunk parameter maps. Non-batched calls
// pass through as a single chunk.
func chunkParams(op provider.OperationKind, params map[string]string) []map[string]string {
	ids := ""
	if params != nil {
		ids = params["id"]
	}
	if op == provider.OpSearch || ids == "" {
		return []map[string]string{cloneParams(params)}
	}

	idList := strings.Split(ids, ",")
	chunks := provider.ChunkIDs(idList)
	out := make([]map[string]string, len(chunks))
	for i, chunk := range chunks {
		p := cloneParams(params)
		p["id"] = strings.Join(chunk, ",")
		out[i] = p
	}
	return out
}

func cloneParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
