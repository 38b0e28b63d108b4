package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaignd_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	WorkerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaignd_worker_runs_total", Help: "Queue worker pass outcomes"},
		[]string{"result"},
	)
	Dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaignd_dispatch_total", Help: "Per-recipient dispatch outcomes"},
		[]string{"channel", "result"},
	)
	DispatchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "campaignd_dispatch_latency_seconds", Help: "Provider send latency"},
	)
	QueueRetries = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "campaignd_queue_retries_total", Help: "Queue items rescheduled after setup failure"},
	)
	QueueDeadLettered = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "campaignd_queue_dead_letter_total", Help: "Queue items failed after exhausting retries"},
	)
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaignd_webhook_events_total", Help: "Delivery receipt events"},
		[]string{"status"},
	)
	AuditErrors = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "campaignd_audit_errors_total", Help: "Errors routed to the audit sink"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, WorkerRuns, Dispatches, DispatchLatency,
		QueueRetries, QueueDeadLettered, WebhookEvents, AuditErrors)
}
