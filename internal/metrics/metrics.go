// Package metrics provides Prometheus instrumentation for the performance engine.
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
	// CalculationsTotal counts calculations by endpoint and outcome
	// ("ok", "replay", or the error kind).
	CalculationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perf_calculations_total",
		Help: "Total number of performance calculations",
	}, []string{"endpoint", "status"})

	// CalculationLatency tracks calculation time by endpoint.
	CalculationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "perf_calculation_latency_seconds",
		Help:    "Calculation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// NIPDays counts no-investment-period days seen by TWR calculations.
	NIPDays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "perf_nip_days_total",
		Help: "No-investment-period days across TWR calculations",
	})

	// ResetDays counts cumulative-return reset days seen by TWR calculations.
	ResetDays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "perf_reset_days_total",
		Help: "Reset days across TWR calculations",
	})

	// SolverIterations tracks XIRR root-finder iterations.
	SolverIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "perf_mwr_solver_iterations",
		Help:    "Iterations used by the XIRR solver",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200},
	})

	// CacheLookups counts lineage cache lookups by key kind and result.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perf_lineage_cache_lookups_total",
		Help: "Lineage cache lookups",
	}, []string{"key", "result"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "perf_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perf_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "perf_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCalculation records one finished calculation.
func ObserveCalculation(endpoint, status string, elapsed time.Duration) {
	CalculationsTotal.WithLabelValues(endpoint, status).Inc()
	CalculationLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Route pattern keeps lineage ids out of the label set.
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
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

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Hijack forwards to the underlying writer so WebSocket upgrades pass through.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
