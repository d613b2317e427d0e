package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters and histograms the API and dispatch
// layers update directly; all are registered against the default
// registry so /metrics exposes them without extra wiring.
type Metrics struct {
	HTTPRequestsTotal       *prometheus.CounterVec
	HTTPRequestDuration     *prometheus.HistogramVec
	DestinationsSentTotal   *prometheus.CounterVec
	DestinationsFailedTotal *prometheus.CounterVec
	RetryAttemptsTotal      *prometheus.CounterVec
	QueueDepth              *prometheus.GaugeVec
	DeliveryDuration        *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatdispatch",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route and status code.",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatdispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		DestinationsSentTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatdispatch",
			Name:      "destinations_sent_total",
			Help:      "Destinations successfully delivered, by platform.",
		}, []string{"platform"}),
		DestinationsFailedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatdispatch",
			Name:      "destinations_failed_total",
			Help:      "Destinations permanently failed, by platform.",
		}, []string{"platform"}),
		RetryAttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatdispatch",
			Name:      "retry_attempts_total",
			Help:      "Retry attempts scheduled, by platform.",
		}, []string{"platform"}),
		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "chatdispatch",
			Name:      "queue_pending_destinations",
			Help:      "Destinations currently awaiting a retry sweep, by platform.",
		}, []string{"platform"}),
		DeliveryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatdispatch",
			Name:      "delivery_duration_seconds",
			Help:      "Time spent in a single adapter Send call, by platform.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"platform"}),
	}
}
