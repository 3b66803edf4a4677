package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verigate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verigate_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	// VerificationOutcomes counts resolution terminal states
	// (matched, timeout, not_found, error).
	VerificationOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verigate_verifications_total",
			Help: "Verification events by terminal outcome",
		},
		[]string{"outcome"},
	)

	// WebhookDeliveries counts single-shot dispatch results
	// (delivered, failed, skipped).
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verigate_webhook_deliveries_total",
			Help: "Webhook dispatch attempts by result",
		},
		[]string{"result"},
	)

	WebhookDeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verigate_webhook_delivery_duration_seconds",
			Help:    "Duration of outbound webhook deliveries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	// StoreConnects tracks connection-establishment sequences of the store
	// manager (ok, error).
	StoreConnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verigate_store_connects_total",
			Help: "Backing store connection establishment results",
		},
		[]string{"result"},
	)
)

func Init() {
	prometheus.MustRegister(
		RequestCount,
		RequestDuration,
		VerificationOutcomes,
		WebhookDeliveries,
		WebhookDeliveryDuration,
		StoreConnects,
	)
}
