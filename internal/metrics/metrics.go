// Package metrics provides Prometheus instrumentation for the game engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BetsPlaced counts accepted bets, partitioned by track and kind.
	BetsPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_bets_placed_total",
		Help: "Total number of bets accepted",
	}, []string{"track", "kind"})

	// BetsRejected counts rejected placements by reason.
	BetsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_bets_rejected_total",
		Help: "Total number of bet placements rejected",
	}, []string{"reason"})

	// Settlements counts completed round settlements per track.
	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_settlements_total",
		Help: "Total number of round settlements",
	}, []string{"track"})

	// SettlementDuration tracks how long settlement takes per track.
	SettlementDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "game_settlement_duration_seconds",
		Help:    "Round settlement duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"track"})

	// BetsSettled counts settled bets by won/lost result.
	BetsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_bets_settled_total",
		Help: "Total number of bets settled",
	}, []string{"track", "result"})

	// LedgerEntries counts ledger writes by reason.
	LedgerEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_ledger_entries_total",
		Help: "Total ledger entries appended",
	}, []string{"reason"})

	// InsufficientFunds counts debits rejected for lack of balance.
	InsufficientFunds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_insufficient_funds_total",
		Help: "Debits rejected because the balance would go negative",
	})

	// WebSocketClients tracks connected WebSocket subscribers.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "game_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Label with the chi route pattern, not the raw path: routes
		// carrying player and order ids would otherwise explode the
		// label cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
