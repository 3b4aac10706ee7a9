// Package telemetry exposes Prometheus collectors for the monitoring service.
package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pollsTotal                 *prometheus.CounterVec
	bulletinFetchesTotal       *prometheus.CounterVec
	notificationsTotal         *prometheus.CounterVec
	summariesTotal             *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pollsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quakewatch_polls_total",
				Help: "Total number of poll cycles, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		bulletinFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quakewatch_bulletin_fetches_total",
				Help: "Total number of bulletin fetch attempts, labeled by status.",
			},
			[]string{"status"},
		)

		notificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quakewatch_notifications_total",
				Help: "Total number of alert emails attempted, labeled by status.",
			},
			[]string{"status"},
		)

		summariesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quakewatch_summaries_total",
				Help: "Total number of summaries produced, labeled by source.",
			},
			[]string{"source"},
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

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePoll increments the poll cycle counter for the given outcome.
func ObservePoll(outcome string) {
	Init()
	pollsTotal.WithLabelValues(outcome).Inc()
}

// ObserveBulletinFetch increments the fetch counter for the given status.
func ObserveBulletinFetch(status string) {
	Init()
	bulletinFetchesTotal.WithLabelValues(status).Inc()
}

// ObserveNotification increments the email counter for the given status.
func ObserveNotification(status string) {
	Init()
	notificationsTotal.WithLabelValues(status).Inc()
}

// ObserveSummary increments the summary counter for the given source
// ("generated", "cached", or "fallback").
func ObserveSummary(source string) {
	Init()
	summariesTotal.WithLabelValues(source).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, httpCode(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

func httpCode(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
