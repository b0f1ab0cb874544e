// Package metrics exposes Prometheus collectors for the price-comparison
// service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal                  *prometheus.CounterVec
	siteResultsTotal           *prometheus.CounterVec
	productsExtractedTotal     *prometheus.CounterVec
	siteExtractionSeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricescout_jobs_total",
				Help: "Total comparison jobs, labeled by terminal status.",
			},
			[]string{"status"},
		)

		siteResultsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricescout_site_results_total",
				Help: "Per-site extraction results, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		productsExtractedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricescout_products_extracted_total",
				Help: "Products extracted, labeled by site.",
			},
			[]string{"site"},
		)

		siteExtractionSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricescout_site_extraction_seconds",
				Help:    "Wall-clock duration of one site's extraction.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"site"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricescout_http_requests_total",
				Help: "HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricescout_http_request_duration_seconds",
				Help:    "HTTP request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)
	})
}

// JobFinished records a job reaching a terminal status.
func JobFinished(status string) {
	if jobsTotal == nil {
		return
	}
	jobsTotal.WithLabelValues(status).Inc()
}

// SiteResultRecorded records one site's extraction outcome and duration.
func SiteResultRecorded(site string, success bool, duration time.Duration) {
	if siteResultsTotal == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	siteResultsTotal.WithLabelValues(site, outcome).Inc()
	siteExtractionSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ProductsExtracted adds to the per-site product counter.
func ProductsExtracted(site string, count int) {
	if productsExtractedTotal == nil || count <= 0 {
		return
	}
	productsExtractedTotal.WithLabelValues(site).Add(float64(count))
}

// ObserveHTTPRequest records one handled HTTP request.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns the /metrics handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
