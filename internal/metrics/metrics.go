package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	AggregationsTotal    *prometheus.CounterVec
	AggregationDuration  *prometheus.HistogramVec
	AggregationsInFlight prometheus.Gauge

	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec
	CredentialFailuresTotal *prometheus.CounterVec

	ExtractionsTotal *prometheus.CounterVec
	CollectedBytes   prometheus.Histogram
	PagesFetched     prometheus.Histogram

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	RateLimitHitsTotal prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		AggregationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "v360_aggregations_total",
				Help: "Total number of aggregation calls",
			},
			[]string{"status"},
		),
		AggregationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "v360_aggregation_duration_seconds",
				Help:    "Aggregation call duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{},
		),
		AggregationsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "v360_aggregations_in_flight",
				Help: "Number of aggregation calls currently running",
			},
		),

		ProviderRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "v360_provider_requests_total",
				Help: "Total number of search provider requests",
			},
			[]string{"provider", "status"},
		),
		ProviderRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "v360_provider_request_duration_seconds",
				Help:    "Provider request duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider"},
		),
		CredentialFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "v360_credential_failures_total",
				Help: "Credential failures recorded, by provider and failure class",
			},
			[]string{"provider", "class"},
		),

		ExtractionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "v360_extractions_total",
				Help: "Page extraction attempts in the collection loop",
			},
			[]string{"status"},
		),
		CollectedBytes: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "v360_collected_bytes",
				Help:    "Bytes of content collected per aggregation call",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),
		PagesFetched: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "v360_pages_fetched",
				Help:    "Result pages fetched per collection loop",
				Buckets: []float64{1, 2, 5, 10, 20, 50},
			},
		),

		CacheHitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "v360_cache_hits_total",
				Help: "Total number of search cache hits",
			},
		),
		CacheMissesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "v360_cache_misses_total",
				Help: "Total number of search cache misses",
			},
		),

		RateLimitHitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "v360_rate_limit_hits_total",
				Help: "Requests rejected by the API rate limiter",
			},
		),
	}

	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) RecordAggregation(status string, duration time.Duration) {
	m.AggregationsTotal.WithLabelValues(status).Inc()
	m.AggregationDuration.WithLabelValues().Observe(duration.Seconds())
}

func (m *Metrics) RecordProviderRequest(provider, status string, duration time.Duration) {
	m.ProviderRequestsTotal.WithLabelValues(provider, status).Inc()
	m.ProviderRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) RecordCredentialFailure(provider, class string) {
	m.CredentialFailuresTotal.WithLabelValues(provider, class).Inc()
}

func (m *Metrics) RecordExtraction(status string) {
	m.ExtractionsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordCollection(bytes, pages int) {
	m.CollectedBytes.Observe(float64(bytes))
	m.PagesFetched.Observe(float64(pages))
}

func (m *Metrics) RecordCacheHit()  { m.CacheHitsTotal.Inc() }
func (m *Metrics) RecordCacheMiss() { m.CacheMissesTotal.Inc() }

func (m *Metrics) RecordRateLimitHit() { m.RateLimitHitsTotal.Inc() }

func (m *Metrics) IncInFlight() { m.AggregationsInFlight.Inc() }
func (m *Metrics) DecInFlight() { m.AggregationsInFlight.Dec() }
