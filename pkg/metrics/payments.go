package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records counters for the payment and reconciliation flows.
type PaymentMetrics struct {
	checkouts       *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Checkout creation attempts by payment method and outcome.",
	}, []string{"method", "outcome"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_webhook_events_total",
		Help: "Gateway webhook events by type and outcome.",
	}, []string{"event_type", "outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transaction_transitions_total",
		Help: "Ledger status transitions by target status and trigger.",
	}, []string{"to_status", "trigger"})
	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Duration of payment gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(checkouts, webhookEvents, transitions, gatewayDuration)
	return &PaymentMetrics{
		checkouts:       checkouts,
		webhookEvents:   webhookEvents,
		transitions:     transitions,
		gatewayDuration: gatewayDuration,
	}
}

// IncCheckout counts one checkout attempt.
func (p *PaymentMetrics) IncCheckout(method, outcome string) {
	if p == nil || p.checkouts == nil {
		return
	}
	p.checkouts.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome)).Inc()
}

// IncWebhookEvent counts one processed webhook event.
func (p *PaymentMetrics) IncWebhookEvent(eventType, outcome string) {
	if p == nil || p.webhookEvents == nil {
		return
	}
	p.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncTransition counts one applied ledger status transition.
func (p *PaymentMetrics) IncTransition(toStatus, trigger string) {
	if p == nil || p.transitions == nil {
		return
	}
	p.transitions.WithLabelValues(normalizeLabel(toStatus), normalizeLabel(trigger)).Inc()
}

// ObserveGateway records the duration of one gateway call.
func (p *PaymentMetrics) ObserveGateway(operation string, duration time.Duration) {
	if p == nil || p.gatewayDuration == nil {
		return
	}
	p.gatewayDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
