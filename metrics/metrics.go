// Package metrics holds the Prometheus collectors of the service. Every
// Metrics value owns its registry so several servers can live in one process.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "payments"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Payment processor metrics
	WebhookEvents *prometheus.CounterVec
	VendorRetries *prometheus.CounterVec

	// Object storage metrics
	Uploads     *prometheus.CounterVec
	UploadBytes prometheus.Counter
}

// New creates the collectors and registers them, together with the Go and
// process collectors, in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests by route pattern",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "route"},
		),

		WebhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "Stripe webhook events by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		VendorRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "vendor_retries_total",
				Help:      "Retried vendor calls by vendor and operation",
			},
			[]string{"vendor", "operation"},
		),

		Uploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_total",
				Help:      "Document uploads by outcome",
			},
			[]string{"outcome"},
		),
		UploadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes stored by successful uploads",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry, mostly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// ObserveRequest records a served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveWebhookEvent records a received webhook event.
func (m *Metrics) ObserveWebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// ObserveRetry records a retried vendor call.
func (m *Metrics) ObserveRetry(vendor, operation string) {
	if m == nil {
		return
	}
	m.VendorRetries.WithLabelValues(vendor, operation).Inc()
}

// ObserveUpload records an upload attempt. size is only added on success.
func (m *Metrics) ObserveUpload(outcome string, size int64) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(outcome).Inc()
	if outcome == UploadStored && size > 0 {
		m.UploadBytes.Add(float64(size))
	}
}

// Upload outcomes.
const (
	UploadStored      = "stored"
	UploadRejected    = "rejected"
	UploadClientError = "client_error"
	UploadServerError = "server_error"
)

// Webhook outcomes.
const (
	WebhookHandled   = "handled"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookFailed    = "failed"
)
