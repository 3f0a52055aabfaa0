// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scraperPagesTotal          *prometheus.CounterVec
	scraperFetchSeconds        *prometheus.HistogramVec
	scraperCrawlsTotal         *prometheus.CounterVec
	scraperActiveCrawls        prometheus.Gauge
	scraperQueueDepth          prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scraperPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_pages_total",
				Help: "Total number of pages fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		scraperFetchSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_fetch_duration_seconds",
				Help:    "Histogram of per-page fetch latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		scraperCrawlsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_crawls_total",
				Help: "Total number of crawl jobs processed, labeled by status.",
			},
			[]string{"status"},
		)

		scraperActiveCrawls = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_active_crawls",
				Help: "Number of crawl jobs currently running.",
			},
		)

		scraperQueueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_queue_depth",
				Help: "Number of crawl jobs waiting in the queue.",
			},
		)

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
	return promhttp.Handler()
}

// ObservePage records a fetched page and its latency.
func ObservePage(site string, status string, duration time.Duration) {
	sanitizedSite := SanitizeSite(site)
	scraperPagesTotal.WithLabelValues(sanitizedSite, status).Inc()
	scraperFetchSeconds.WithLabelValues(sanitizedSite).Observe(duration.Seconds())
}

// ObserveCrawl increments the crawl job counter for the given terminal status.
func ObserveCrawl(status string) {
	scraperCrawlsTotal.WithLabelValues(status).Inc()
}

// IncActiveCrawls increments the active crawls gauge.
func IncActiveCrawls() {
	scraperActiveCrawls.Inc()
}

// DecActiveCrawls decrements the active crawls gauge.
func DecActiveCrawls() {
	scraperActiveCrawls.Dec()
}

// SetQueueDepth records the current queue backlog.
func SetQueueDepth(depth int) {
	scraperQueueDepth.Set(float64(depth))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		ObserveHTTPRequest(r.Method, routePattern, ww.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
