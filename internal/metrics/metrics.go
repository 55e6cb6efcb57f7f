// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Document outcomes.
const (
	DocumentSucceeded = "succeeded"
	DocumentFailed    = "failed"
)

// Round results.
const (
	RoundCompleted = "completed"
	RoundJobDone   = "job_done"
	RoundFailed    = "failed"
	RoundCanceled  = "canceled"
)

var (
	documentsTotal                *prometheus.CounterVec
	fetchDurationSeconds          *prometheus.HistogramVec
	fetchRetriesTotal             *prometheus.CounterVec
	roundsTotal                   *prometheus.CounterVec
	cursorLastID                  prometheus.Gauge
	cursorTotalCollected          prometheus.Gauge
	cursorRoundCount              prometheus.Gauge
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec
	robotsFallbackTotal           prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		documentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_documents_total",
				Help: "Total number of documents attempted, labeled by outcome.",
			},
			[]string{"status"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_fetch_duration_seconds",
				Help:    "Histogram of document fetch latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_fetch_retries_total",
				Help: "Total number of fetch retries, labeled by site.",
			},
			[]string{"site"},
		)

		roundsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_rounds_total",
				Help: "Total number of rounds run, labeled by result.",
			},
			[]string{"result"},
		)

		cursorLastID = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "harvester_cursor_last_id",
			Help: "Highest document id recorded by the cursor.",
		})
		cursorTotalCollected = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "harvester_cursor_total_collected",
			Help: "Number of records in the output store according to the cursor.",
		})
		cursorRoundCount = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "harvester_cursor_round_count",
			Help: "Number of rounds completed according to the cursor.",
		})

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_rate_limit_delays_seconds",
				Help:    "Histogram of politeness wait durations, labeled by site.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		robotsFallbackTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_robots_fallback_total",
				Help: "Total robots.txt probes that timed out and fell back to allow-all.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveDocument counts one attempted document.
func ObserveDocument(status string) {
	Init()
	documentsTotal.WithLabelValues(status).Inc()
}

// ObserveFetch records how long one fetch of rawURL took.
func ObserveFetch(rawURL string, duration time.Duration) {
	Init()
	fetchDurationSeconds.WithLabelValues(SanitizeSite(rawURL)).Observe(duration.Seconds())
}

// ObserveFetchRetry counts a retried fetch of rawURL.
func ObserveFetchRetry(rawURL string) {
	Init()
	fetchRetriesTotal.WithLabelValues(SanitizeSite(rawURL)).Inc()
}

// ObserveRound counts a finished round by result.
func ObserveRound(result string) {
	Init()
	roundsTotal.WithLabelValues(result).Inc()
}

// SetCursor publishes the cursor fields.
func SetCursor(lastID, totalCollected, roundCount int) {
	Init()
	cursorLastID.Set(float64(lastID))
	cursorTotalCollected.Set(float64(totalCollected))
	cursorRoundCount.Set(float64(roundCount))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a politeness wait.
func ObserveRateLimitDelay(site string, duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveRobotsFallback counts a robots.txt probe that fell back to allow-all.
func ObserveRobotsFallback() {
	Init()
	robotsFallbackTotal.Inc()
}
