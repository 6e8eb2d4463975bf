package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Search outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeEmpty     = "empty"
	OutcomeChallenge = "challenge"
	OutcomeError     = "error"
	OutcomeOpen      = "breaker_open"
	OutcomeBlocked   = "robots_blocked"
)

var (
	ProviderSearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metasearch_provider_searches_total",
			Help: "Provider search calls by outcome",
		},
		[]string{"provider", "outcome"},
	)

	ProviderSearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metasearch_provider_search_duration_seconds",
			Help:    "Latency of provider search calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"provider"},
	)

	ProviderResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metasearch_provider_results_total",
			Help: "Links returned by providers before deduplication",
		},
		[]string{"provider"},
	)

	PageFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metasearch_page_fetches_total",
			Help: "Enrichment page fetches by outcome",
		},
		[]string{"outcome"},
	)

	PageFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "metasearch_page_fetch_duration_seconds",
			Help:    "Latency of enrichment page fetches",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metasearch_cache_lookups_total",
			Help: "Query cache lookups by result",
		},
		[]string{"result"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metasearch_proxy_failures_total",
			Help: "Requests that failed through a proxy",
		},
		[]string{"proxy_url"},
	)
)

// RecordSearch records one provider search call.
func RecordSearch(provider, outcome string, d time.Duration, results int) {
	ProviderSearchesTotal.WithLabelValues(provider, outcome).Inc()
	ProviderSearchDuration.WithLabelValues(provider).Observe(d.Seconds())
	if results > 0 {
		ProviderResultsTotal.WithLabelValues(provider).Add(float64(results))
	}
}

// RecordFetch records one enrichment page fetch.
func RecordFetch(outcome string, d time.Duration) {
	PageFetchesTotal.WithLabelValues(outcome).Inc()
	PageFetchDuration.Observe(d.Seconds())
}

// RecordCacheLookup records a query cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	CacheLookupsTotal.WithLabelValues("miss").Inc()
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
