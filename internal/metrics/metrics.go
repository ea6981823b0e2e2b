// Package metrics provides Prometheus instrumentation for the portfolio engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UpstreamRequests counts venue HTTP requests by collection path and outcome.
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_upstream_requests_total",
		Help: "Venue HTTP requests by path and status",
	}, []string{"path", "status"})

	// UpstreamLatency tracks venue request latency by path.
	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portfolio_upstream_latency_seconds",
		Help:    "Venue request latency in seconds",
		Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"path"})

	// UpstreamCacheHits counts responses served from the short-TTL cache.
	UpstreamCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_upstream_cache_hits_total",
		Help: "Venue responses served from cache",
	}, []string{"path"})

	// PagesFetched counts pages drained by the paginated fetcher.
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_pages_fetched_total",
		Help: "Pages fetched from paginated venue collections",
	}, []string{"path"})

	// HardCapReached counts fetches stopped by the pagination safety cap.
	HardCapReached = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_hard_cap_reached_total",
		Help: "Paginated fetches truncated at the hard cap",
	}, []string{"path"})

	// RecordsDropped counts upstream records that failed normalization.
	RecordsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_records_dropped_total",
		Help: "Upstream records dropped during normalization",
	}, []string{"source"})

	// UnmatchedCloses counts closing trades with no open lot to match.
	UnmatchedCloses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_unmatched_closes_total",
		Help: "Closing trades with size left after FIFO matching",
	})

	// TierSelected counts which tier produced each portfolio.
	TierSelected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_tier_selected_total",
		Help: "Portfolio computations by winning tier",
	}, []string{"tier", "degraded"})

	// ComputeLatency tracks end-to-end portfolio computation time.
	ComputeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portfolio_compute_latency_seconds",
		Help:    "Portfolio computation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"scope"})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portfolio_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
// The label is the route pattern when a router supplies one through
// routePattern, otherwise the raw path.
func Middleware(routePattern func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusWriter{ResponseWriter: w, status: 200}
			next.ServeHTTP(wrapped, r)
			duration := time.Since(start).Seconds()

			path := r.URL.Path
			if routePattern != nil {
				if p := routePattern(r); p != "" {
					path = p
				}
			}
			HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
			HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
		})
	}
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
