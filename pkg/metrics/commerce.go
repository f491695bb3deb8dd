package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "labstore"

// Quote notification outcomes.
const (
	OutcomeQueued    = "queued"
	OutcomeDropped   = "dropped"
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
)

// CommerceMetrics records order and quote activity.
type CommerceMetrics struct {
	ordersCreated *prometheus.CounterVec
	statusChanges *prometheus.CounterVec
	quotesBuilt   prometheus.Counter
	notifications *prometheus.CounterVec
}

// NewCommerceMetrics registers the commerce metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCommerceMetrics(reg prometheus.Registerer) *CommerceMetrics {
	if reg == nil {
		return &CommerceMetrics{}
	}
	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_created_total",
		Help:      "Orders created, by source (admin or quote).",
	}, []string{"source"})
	statusChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_status_changes_total",
		Help:      "Order status transitions.",
	}, []string{"from", "to"})
	quotesBuilt := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quotes_built_total",
		Help:      "Quotes successfully built.",
	})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quote_notifications_total",
		Help:      "Quote notifications by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(ordersCreated, statusChanges, quotesBuilt, notifications)
	return &CommerceMetrics{
		ordersCreated: ordersCreated,
		statusChanges: statusChanges,
		quotesBuilt:   quotesBuilt,
		notifications: notifications,
	}
}

// IncOrderCreated counts a created order for the given source.
func (m *CommerceMetrics) IncOrderCreated(source string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncStatusChange counts a status transition.
func (m *CommerceMetrics) IncStatusChange(from, to string) {
	if m == nil || m.statusChanges == nil {
		return
	}
	m.statusChanges.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncQuoteBuilt counts a built quote.
func (m *CommerceMetrics) IncQuoteBuilt() {
	if m == nil || m.quotesBuilt == nil {
		return
	}
	m.quotesBuilt.Inc()
}

// IncNotification counts a quote notification outcome.
func (m *CommerceMetrics) IncNotification(outcome string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
