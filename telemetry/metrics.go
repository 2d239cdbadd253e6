package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts the events worth alerting on: how often the library is
// running on its offline fallback, and the outcomes of order placement.
type Metrics struct {
	CartFallbacks        prometheus.Counter
	ReconcileFailures    prometheus.Counter
	OrdersPlaced         *prometheus.CounterVec
	VerificationFailures prometheus.Counter
	TrackingApplied      prometheus.Counter
}

// NewMetrics registers the cartkit collectors on the given registerer.
// Pass prometheus.DefaultRegisterer unless the shell isolates registries.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CartFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cartkit",
			Name:      "cart_fallbacks_total",
			Help:      "Cart mutations that degraded to local-only persistence.",
		}),
		ReconcileFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cartkit",
			Name:      "cart_reconcile_failures_total",
			Help:      "Remote cart reconciliations that failed after local hydration.",
		}),
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cartkit",
			Name:      "orders_placed_total",
			Help:      "Orders reaching a terminal placement outcome.",
		}, []string{"method", "outcome"}),
		VerificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cartkit",
			Name:      "payment_verification_failures_total",
			Help:      "Gateway callbacks that failed signature verification.",
		}),
		TrackingApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cartkit",
			Name:      "tracking_events_applied_total",
			Help:      "Tracking events that advanced an order status.",
		}),
	}
	reg.MustRegister(m.CartFallbacks, m.ReconcileFailures, m.OrdersPlaced, m.VerificationFailures, m.TrackingApplied)
	return m
}

// NopMetrics returns collectors that are not registered anywhere, for tests
// and for shells that do not scrape.
func NopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// Handler serves the given gatherer's metrics for scraping.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
