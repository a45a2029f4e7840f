// Package observability exposes the gateway's Prometheus metrics.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrSnakeDoc/portico/internal/auth"
)

const namespace = "portico"

// Metrics collects the gateway metrics on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	authTotal       *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	probesTotal     *prometheus.CounterVec
	probeDuration   *prometheus.HistogramVec
}

// NewMetrics creates the registry and the built-in metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
	authTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Authentication attempts by credential scheme and outcome.",
	}, []string{"scheme", "outcome"})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_cache_lookups_total",
		Help:      "Validation cache lookups by result.",
	}, []string{"result"})
	probes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "service_probes_total",
		Help:      "Downstream service probes by service and result.",
	}, []string{"service", "result"})
	probeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "service_probe_duration_seconds",
		Help:      "Downstream service probe latency, retries included.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service"})

	registry.MustRegister(requests, duration, authTotal, cacheLookups, probes, probeDuration)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		authTotal:       authTotal,
		cacheLookups:    cacheLookups,
		probesTotal:     probes,
		probeDuration:   probeDuration,
	}
}

// Handler serves /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records one observation per HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Gauge registers a gauge whose value is read from fn at scrape time.
func (m *Metrics) Gauge(name, help string, fn func() float64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// ObserveAuth implements auth.Recorder.
func (m *Metrics) ObserveAuth(scheme auth.Scheme, outcome string) {
	if m == nil {
		return
	}
	label := string(scheme)
	if label == "" {
		label = "none"
	}
	m.authTotal.WithLabelValues(label, outcome).Inc()
}

// ObserveCacheLookup implements auth.Recorder.
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveProbe implements health.ProbeRecorder.
func (m *Metrics) ObserveProbe(service string, reachable bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "unreachable"
	if reachable {
		result = "reachable"
	}
	m.probesTotal.WithLabelValues(service, result).Inc()
	m.probeDuration.WithLabelValues(service).Observe(elapsed.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps streaming responses from the proxied engine working.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
