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
	searchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "locations",
		Name:      "search_duration_seconds",
		Help:      "Latency of place searches per strategy.",
		Buckets: []float64{
			0.0005, 0.001, 0.002, 0.005,
			0.01, 0.02, 0.05,
			0.1, 0.2, 0.5, 1,
		},
	}, []string{"strategy"})

	searchResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "locations",
		Name:      "search_results",
		Help:      "Number of places returned per search.",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	})

	cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "locations",
		Name:      "cache_requests_total",
		Help:      "Search cache lookups by cache and result (hit/miss/error).",
	}, []string{"cache", "result"})

	invalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "locations",
		Name:      "cache_invalidations_total",
		Help:      "Freshness marker updates by reason.",
	}, []string{"reason"})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "locations",
		Name:      "rate_limited_total",
		Help:      "Search requests rejected by the per-client rate limiter.",
	})

	ingestLines = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "locations",
		Name:      "ingest_lines_total",
		Help:      "Data lines consumed by the ingestion pipeline.",
	})
)

func ObserveSearch(strategy int, elapsed time.Duration, results int) {
	searchDuration.WithLabelValues(strconv.Itoa(strategy)).Observe(elapsed.Seconds())
	searchResults.Observe(float64(results))
}

func CacheHit(cache string)   { cacheRequests.WithLabelValues(cache, "hit").Inc() }
func CacheMiss(cache string)  { cacheRequests.WithLabelValues(cache, "miss").Inc() }
func CacheError(cache string) { cacheRequests.WithLabelValues(cache, "error").Inc() }

// Invalidated records a freshness marker update; reason is one of startup,
// mark, clear or external.
func Invalidated(reason string) {
	invalidations.WithLabelValues(reason).Inc()
}

func RateLimited() { rateLimited.Inc() }

func IngestedLines(n int) {
	ingestLines.Add(float64(n))
}

func Handler() http.Handler {
	return promhttp.Handler()
}
