// Package railmetrics holds the Prometheus collectors every railcore
// service registers for its HTTP surface: per-route request counters
// and latency histograms.
package railmetrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the collectors for one service process, labelled by
// the service name so several can share a single Prometheus scrape
// target when run side by side in one process during development.
type Registry struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New builds and registers a Registry's collectors under namespace
// "railcore" and the given service label.
func New(service string) *Registry {
	reg := &Registry{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "railcore",
			Name:        "http_requests_total",
			Help:        "Total HTTP requests handled, by route and status code.",
			ConstLabels: prometheus.Labels{"service": service},
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "railcore",
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency, by route.",
			ConstLabels: prometheus.Labels{"service": service},
			Buckets:     prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	prometheus.MustRegister(reg.requests, reg.latency)
	return reg
}

// Handler returns the /metrics handler for this registry's default
// Prometheus gatherer.
func (r *Registry) Handler() http.Handler { return promhttp.Handler() }

// Middleware is chi middleware recording a request count and latency
// observation per call, keyed by the matched chi route pattern (not the
// raw path, so dynamic segments like {id} don't blow up label
// cardinality) rather than the request's raw URL.
func (r *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, req)

		route := "unmatched"
		if rc := chi.RouteContext(req.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		r.requests.WithLabelValues(route, req.Method, strconv.Itoa(sw.status)).Inc()
		r.latency.WithLabelValues(route, req.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
