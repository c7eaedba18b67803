// Package web exposes the gateway's operational surface over HTTP: quota
// status for display, circuit health for availability banners, ledger
// aggregates and Prometheus metrics. It is consumed by the surrounding
// application, not the public internet.
package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Terry-Mathew/youtube-filter-sub001/app"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/usage"
	"github.com/Terry-Mathew/youtube-filter-sub001/ports"
)

// Handler serves the ops endpoints.
type Handler struct {
	gateway *app.Gateway
	ledger  ports.UsageStore
	clock   ports.Clock
	log     zerolog.Logger
}

// NewHandler creates the ops handler.
func NewHandler(gateway *app.Gateway, ledger ports.UsageStore, clk ports.Clock, logger zerolog.Logger) *Handler {
	return &Handler{
		gateway: gateway,
		ledger:  ledger,
		clock:   clk,
		log:     logger.With().Str("component", "web").Logger(),
	}
}

// Router builds the chi router for the ops surface.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/v1/quota", h.QuotaStatus)
	r.Get("/v1/circuit", h.CircuitHealth)
	r.Get("/v1/usage", h.Usage)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Healthz reports process liveness.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// QuotaStatus returns the budget snapshot: used, limit, remaining, reset
// time and warning level.
func (h *Handler) QuotaStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.gateway.QuotaStatus())
}

// CircuitHealth returns the breaker state for availability banners.
func (h *Handler) CircuitHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.gateway.CircuitHealth())
}

// usageResponse wraps ledger aggregates for the ops surface.
type usageResponse struct {
	Summary usage.Summary  `json:"summary"`
	Recent  []usage.Record `json:"recent"`
}

// Usage returns ledger aggregates. Query params: since (RFC3339, default
// start of today UTC) and limit (recent records, default 20).
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now().UTC()
	since := now.Truncate(24 * time.Hour)
	if s := r.URL.Query().Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "since must be RFC3339",
			})
			return
		}
		since = t
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	recent, err := h.ledger.Recent(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("ledger read failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "ledger unavailable",
		})
		return
	}

	// Aggregate from the recent window; SumCharged covers the full range.
	summary := usage.Summarize(recent, since, now)
	if total, err := h.ledger.SumCharged(r.Context(), since, now); err == nil {
		summary.CostCharged = total
	}

	writeJSON(w, http.StatusOK, usageResponse{Summary: summary, Recent: recent})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
