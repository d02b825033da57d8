// Package metrics provides Prometheus instrumentation for the payout engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RoundsTotal counts settled rounds by game and outcome (win, loss, jackpot).
	RoundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_rounds_total",
		Help: "Total number of settled rounds",
	}, []string{"game", "outcome"})

	// RoundLatency tracks how long a round holds the pool gate.
	RoundLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payout_round_latency_seconds",
		Help:    "Round settlement latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"game"})

	// StakedTotal is the cumulative amount staked per game.
	StakedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_staked_total",
		Help: "Cumulative stake amount",
	}, []string{"game"})

	// PaidTotal is the cumulative amount paid out of each pool.
	PaidTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_paid_total",
		Help: "Cumulative winnings paid from the pool",
	}, []string{"game"})

	// GuardedRounds counts rounds whose payout the reserve guard suppressed.
	GuardedRounds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_guarded_rounds_total",
		Help: "Rounds where the solvency guard forced a zero payout",
	}, []string{"game"})

	// RejectedRounds counts plays rejected before settlement, by reason.
	RejectedRounds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_rejected_rounds_total",
		Help: "Plays rejected by validation, busy gate or conflict",
	}, []string{"game", "reason"})

	// PoolBalance is the last observed pool balance per game.
	PoolBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "payout_pool_balance",
		Help: "Current pool balance",
	}, []string{"game"})

	// HouseEarnings is the last observed house total per game.
	HouseEarnings = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "payout_house_earnings",
		Help: "Accumulated house share",
	}, []string{"game"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "payout_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payout_http_request_duration_seconds",
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

		HTTPRequestsTotal.WithLabelValues(r.Method, routePattern(r), strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, routePattern(r)).Observe(duration)
	})
}

// routePattern prefers the matched chi pattern so account ids do not
// become label values.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
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

// Hijack lets the WebSocket upgrade pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
