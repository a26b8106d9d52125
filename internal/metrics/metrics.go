// Package metrics holds the Prometheus collectors for transfers and the outbox relay.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomePosted           = "posted"
	OutcomeReplayed         = "replayed"
	OutcomeInvalid          = "invalid"
	OutcomeNotFound         = "account_not_found"
	OutcomeCurrencyMismatch = "currency_mismatch"
	OutcomeConflict         = "idempotency_conflict"
	OutcomeInProgress       = "idempotency_in_progress"
	OutcomeConstraint       = "constraint_violation"
	OutcomeError            = "error"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	transfers        *prometheus.CounterVec
	eventsDelivered  prometheus.Counter
	deliveryFailures prometheus.Counter
	batchDuration    prometheus.Histogram
	eventsClaimed    prometheus.Counter
}

// New registers the collectors on reg. A nil reg creates unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		transfers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "transfers_total",
			Help:      "Transfer requests by outcome.",
		}, []string{"outcome"}),
		eventsClaimed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "outbox",
			Name:      "events_claimed_total",
			Help:      "Outbox events claimed by this relay.",
		}),
		eventsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "outbox",
			Name:      "events_delivered_total",
			Help:      "Outbox events delivered and acknowledged.",
		}),
		deliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "outbox",
			Name:      "delivery_failures_total",
			Help:      "Outbox deliveries rejected by the transport.",
		}),
		batchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ledger",
			Subsystem: "outbox",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of one relay batch including commit.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) Transfer(outcome string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Claimed(n int) {
	if m == nil {
		return
	}
	m.eventsClaimed.Add(float64(n))
}

func (m *Metrics) Delivered() {
	if m == nil {
		return
	}
	m.eventsDelivered.Inc()
}

func (m *Metrics) DeliveryFailed() {
	if m == nil {
		return
	}
	m.deliveryFailures.Inc()
}

func (m *Metrics) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
