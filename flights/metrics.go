package flights

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for price lookups.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	LookupsTotal    *prometheus.CounterVec
	CacheHitsTotal  prometheus.Counter
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commute_provider_requests_total",
			Help: "Total HTTP requests issued to the flight search provider.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "commute_provider_request_duration_seconds",
			Help:    "HTTP request latency for flight search requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	lookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commute_lookups_total",
			Help: "Total price lookups by outcome.",
		},
		[]string{"outcome"},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "commute_lookup_cache_hits_total",
			Help: "Price lookups answered from the in-run cache.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "commute_lookup_retries_total",
			Help: "Total number of retry attempts made.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commute_lookup_errors_total",
			Help: "Total number of failed lookups by error type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, lookups, cacheHits, retries, errorsTotal)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		LookupsTotal:    lookups,
		CacheHitsTotal:  cacheHits,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncLookup counts a finished lookup.
func (m *Metrics) IncLookup(outcome string) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(outcome).Inc()
}

// IncCacheHit increments the cache hit counter.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
