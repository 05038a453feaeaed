// Package metrics holds the Prometheus collectors for the leaderboard
// pipeline. Collectors are registered by Init; before that every helper is a
// no-op so packages can record unconditionally.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "apex_leaderboard"

var (
	once sync.Once

	CacheLookups     *prometheus.CounterVec
	CacheWriteErrors *prometheus.CounterVec
	CacheStaleServed *prometheus.CounterVec

	LiveStatusBatches       *prometheus.CounterVec
	LiveStatusBatchDuration prometheus.Histogram
	LiveStatusDegraded      prometheus.Counter

	ScrapeDuration *prometheus.HistogramVec
	ScrapeRows     *prometheus.GaugeVec

	PipelineRuns     *prometheus.CounterVec
	PipelineDuration *prometheus.HistogramVec

	OverrideWrites *prometheus.CounterVec

	CircuitState *prometheus.GaugeVec

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
)

// Init registers collectors on the default registry. Safe to call repeatedly.
func Init() {
	once.Do(func() {
		CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_lookups_total",
			Help: "Cache lookups by cache name and result (hit, miss, stale).",
		}, []string{"cache", "result"})
		CacheWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_mirror_errors_total",
			Help: "Shared cache mirror failures by operation.",
		}, []string{"cache", "op"})
		CacheStaleServed = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stale_served_total",
			Help: "Responses served from a last-good snapshot after a pipeline failure.",
		}, []string{"platform"})

		LiveStatusBatches = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "live_status_batches_total",
			Help: "Live-status batches by outcome.",
		}, []string{"result"})
		LiveStatusBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "live_status_batch_duration_seconds",
			Help:    "Wall time of one live-status batch including retries.",
			Buckets: prometheus.DefBuckets,
		})
		LiveStatusDegraded = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "live_status_degraded_identities_total",
			Help: "Identities whose live status could not be confirmed.",
		})

		ScrapeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "scrape_duration_seconds",
			Help:    "Leaderboard scrape duration by platform.",
			Buckets: prometheus.DefBuckets,
		}, []string{"platform"})
		ScrapeRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "scrape_rows",
			Help: "Rows parsed in the most recent scrape by platform.",
		}, []string{"platform"})

		PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "pipeline_runs_total",
			Help: "Reconciliation pipeline runs by platform and outcome.",
		}, []string{"platform", "outcome"})
		PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "pipeline_duration_seconds",
			Help:    "Reconciliation pipeline duration by platform.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"platform"})

		OverrideWrites = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "override_writes_total",
			Help: "Override store writes by operation.",
		}, []string{"op"})

		CircuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "circuit_open",
			Help: "Circuit breaker state per dependency (1=open, 0.5=half open, 0=closed).",
		}, []string{"dependency"})

		HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"})
		HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"})
	})
}

func ObserveCacheLookup(cache, result string) {
	if CacheLookups != nil {
		CacheLookups.WithLabelValues(cache, result).Inc()
	}
}

func ObserveCacheMirrorError(cache, op string) {
	if CacheWriteErrors != nil {
		CacheWriteErrors.WithLabelValues(cache, op).Inc()
	}
}

func ObserveStaleServed(platform string) {
	if CacheStaleServed != nil {
		CacheStaleServed.WithLabelValues(platform).Inc()
	}
}

func ObserveLiveStatusBatch(result string, d time.Duration) {
	if LiveStatusBatches != nil {
		LiveStatusBatches.WithLabelValues(result).Inc()
	}
	if LiveStatusBatchDuration != nil {
		LiveStatusBatchDuration.Observe(d.Seconds())
	}
}

func AddLiveStatusDegraded(n int) {
	if LiveStatusDegraded != nil && n > 0 {
		LiveStatusDegraded.Add(float64(n))
	}
}

func ObserveScrape(platform string, rows int, d time.Duration) {
	if ScrapeDuration != nil {
		ScrapeDuration.WithLabelValues(platform).Observe(d.Seconds())
	}
	if ScrapeRows != nil {
		ScrapeRows.WithLabelValues(platform).Set(float64(rows))
	}
}

func ObservePipeline(platform, outcome string, d time.Duration) {
	if PipelineRuns != nil {
		PipelineRuns.WithLabelValues(platform, outcome).Inc()
	}
	if PipelineDuration != nil {
		PipelineDuration.WithLabelValues(platform).Observe(d.Seconds())
	}
}

func ObserveOverrideWrite(op string) {
	if OverrideWrites != nil {
		OverrideWrites.WithLabelValues(op).Inc()
	}
}

// SetCircuitState matches resilience.StateChangeFunc's state strings.
func SetCircuitState(dependency, state string) {
	if CircuitState == nil {
		return
	}
	value := 0.0
	switch state {
	case "open":
		value = 1
	case "half_open":
		value = 0.5
	}
	CircuitState.WithLabelValues(dependency).Set(value)
}

// ObserveHTTPRequest takes the mux pattern, not the raw path, so player names
// never become label values.
func ObserveHTTPRequest(route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	if HTTPRequests != nil {
		HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	}
	if HTTPRequestDuration != nil {
		HTTPRequestDuration.WithLabelValues(route).Observe(d.Seconds())
	}
}
