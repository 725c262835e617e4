package metrics

import "github.com/prometheus/client_golang/prometheus"

// Webhook outcome labels.
const (
	OutcomeReceived   = "received"
	OutcomeCacheHit   = "cache_hit"
	OutcomeDuplicate  = "duplicate"
	OutcomeApplied    = "applied"
	OutcomeIgnored    = "ignored"
	OutcomeRejected   = "rejected"
	OutcomeSuperseded = "superseded"
)

// WebhookMetrics counts provider events by outcome.
type WebhookMetrics struct {
	events *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook counters on reg. A nil registerer yields no-op metrics.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Provider webhook events by handling outcome.",
	}, []string{"outcome"})
	reg.MustRegister(events)
	return &WebhookMetrics{events: events}
}

// Inc increments the counter for outcome.
func (w *WebhookMetrics) Inc(outcome string) {
	if w == nil || w.events == nil {
		return
	}
	w.events.WithLabelValues(normalizeLabel(outcome)).Inc()
}
