package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus collectors exposed on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	// CheckoutsTotal counts completed checkout transactions.
	CheckoutsTotal prometheus.Counter
	// CheckoutFailures counts rejected checkouts by reason.
	CheckoutFailures *prometheus.CounterVec
	// VoidsTotal counts voided sales.
	VoidsTotal prometheus.Counter
	// SaleRevenue accumulates charged revenue from completed checkouts.
	SaleRevenue prometheus.Counter
}

// NewMetrics builds a registry with the POS collectors plus the standard
// Go and process collectors.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		CheckoutsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Count of completed checkout transactions.",
		}),
		CheckoutFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_failures_total",
			Help:      "Count of rejected checkout attempts by reason.",
		}, []string{"reason"}),
		VoidsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voids_total",
			Help:      "Count of voided sales.",
		}),
		SaleRevenue: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sale_revenue_total",
			Help:      "Revenue charged across completed checkouts.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
