package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var initOnce sync.Once

var (
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	DiscoveriesTotal  *prometheus.CounterVec
	DiscoveryDuration *prometheus.HistogramVec
	ImagesDiscovered  *prometheus.CounterVec
	RobotsChecksTotal *prometheus.CounterVec
	DownloadsTotal    *prometheus.CounterVec
	RateLimitWaitTime prometheus.Histogram
)

// Init registers all collectors with the default registry. Safe to call
// more than once; registration happens on the first call only.
func Init() {
	initOnce.Do(register)
}

func register() {
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	DiscoveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discoveries_total",
			Help: "Total number of topic discovery attempts per provider.",
		},
		[]string{"provider", "status"}, // status: success, empty, failure
	)

	DiscoveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discovery_duration_seconds",
			Help:    "Duration of per-topic discovery runs.",
			Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
		},
		[]string{"provider"},
	)

	ImagesDiscovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "images_discovered_total",
			Help: "Total number of images discovered, by relevance tier.",
		},
		[]string{"tier"},
	)

	RobotsChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robots_checks_total",
			Help: "Total robots.txt checks by outcome.",
		},
		[]string{"outcome"}, // allowed, denied, unreachable
	)

	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "downloads_total",
			Help: "Total image download attempts.",
		},
		[]string{"status"}, // saved, failed, filtered, robots_denied
	)

	RateLimitWaitTime = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rate_limit_wait_seconds",
			Help:    "Time spent waiting on provider rate limiters.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)
}
