package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for the application lifecycle: transition
// outcomes and latency, stats cache effectiveness and HTTP traffic.
type Metrics struct {
	Transitions        *prometheus.CounterVec
	TransitionDuration prometheus.Histogram
	StatsCache         *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers all portal metrics with reg. Pass prometheus.NewRegistry()
// in tests to avoid duplicate registration.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_status_transitions_total",
			Help: "Status transition attempts by outcome",
		}, []string{"outcome"}),
		TransitionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_status_transition_duration_seconds",
			Help:    "Duration of status transitions including the conditional commit",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		StatsCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_stats_cache_requests_total",
			Help: "Stats cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		gatherer: reg,
	}
}

func (m *Metrics) ObserveTransition(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(outcome).Inc()
	m.TransitionDuration.Observe(d.Seconds())
}

func (m *Metrics) IncStatsCache(result string) {
	if m == nil {
		return
	}
	m.StatsCache.WithLabelValues(result).Inc()
}

// ObserveRequest records one HTTP request. route is the matched pattern, not
// the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
