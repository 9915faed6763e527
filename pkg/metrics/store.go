package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics covers checkout, payment and inventory integrity signals.
type StoreMetrics struct {
	ordersCreated      *prometheus.CounterVec
	checkoutFailures   *prometheus.CounterVec
	paymentsConfirmed  prometheus.Counter
	statusChanges      *prometheus.CounterVec
	inventoryAnomalies prometheus.Gauge
	outboxPublished    *prometheus.CounterVec
}

// NewStoreMetrics registers the storefront metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	if reg == nil {
		return &StoreMetrics{}
	}
	m := &StoreMetrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Orders committed by checkout, by payment method.",
		}, []string{"payment_method"}),
		checkoutFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_checkout_failures_total",
			Help: "Rejected checkout attempts, by error code.",
		}, []string{"reason"}),
		paymentsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_payments_confirmed_total",
			Help: "Deferred payments that transitioned to paid.",
		}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_status_changes_total",
			Help: "Operator status changes, by target value.",
		}, []string{"status"}),
		inventoryAnomalies: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_inventory_anomalies",
			Help: "Products with negative stock or size-sum drift at the last audit.",
		}),
		outboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_outbox_publish_total",
			Help: "Outbox publish attempts, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.ordersCreated,
		m.checkoutFailures,
		m.paymentsConfirmed,
		m.statusChanges,
		m.inventoryAnomalies,
		m.outboxPublished,
	)
	return m
}

func (m *StoreMetrics) OrderCreated(method string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(method)).Inc()
}

func (m *StoreMetrics) CheckoutFailed(reason string) {
	if m == nil || m.checkoutFailures == nil {
		return
	}
	m.checkoutFailures.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *StoreMetrics) PaymentConfirmed() {
	if m == nil || m.paymentsConfirmed == nil {
		return
	}
	m.paymentsConfirmed.Inc()
}

func (m *StoreMetrics) StatusChanged(status string) {
	if m == nil || m.statusChanges == nil {
		return
	}
	m.statusChanges.WithLabelValues(normalizeLabel(status)).Inc()
}

// SetInventoryAnomalies records the anomaly count of the latest audit.
func (m *StoreMetrics) SetInventoryAnomalies(n int) {
	if m == nil || m.inventoryAnomalies == nil {
		return
	}
	m.inventoryAnomalies.Set(float64(n))
}

func (m *StoreMetrics) OutboxPublished(result string) {
	if m == nil || m.outboxPublished == nil {
		return
	}
	m.outboxPublished.WithLabelValues(normalizeLabel(result)).Inc()
}
