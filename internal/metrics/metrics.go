package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotify",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status.",
		},
		[]string{"endpoint", "status"},
	)

	bookingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotify",
			Name:      "bookings_created_total",
			Help:      "Booking creation attempts by outcome (created, slot_taken, error).",
		},
		[]string{"outcome"},
	)

	gatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotify",
			Name:      "gateway_requests_total",
			Help:      "Outbound payment gateway calls by gateway and outcome.",
		},
		[]string{"gateway", "outcome"},
	)

	webhooks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotify",
			Name:      "payment_webhooks_total",
			Help:      "Inbound payment webhooks by gateway and result (applied, duplicate, stale, unrecognized).",
		},
		[]string{"gateway", "result"},
	)

	syncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotify",
			Name:      "sync_tasks_total",
			Help:      "Background sync tasks by type and outcome.",
		},
		[]string{"task_type", "outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingsCreated, gatewayCalls, webhooks, syncTasks)
	})
}

// IncHTTP increments the request counter for an endpoint/status pair.
func IncHTTP(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}

func IncBooking(outcome string) {
	bookingsCreated.WithLabelValues(outcome).Inc()
}

func IncGateway(gateway, outcome string) {
	gatewayCalls.WithLabelValues(gateway, outcome).Inc()
}

func IncWebhook(gateway, result string) {
	webhooks.WithLabelValues(gateway, result).Inc()
}

func IncSyncTask(taskType, outcome string) {
	syncTasks.WithLabelValues(taskType, outcome).Inc()
}
