// Package metrics exposes the service's Prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the service counters behind a private registry. A nil
// *Metrics is valid and counts nothing, so tests and tools can skip wiring it.
type Metrics struct {
	registry *prometheus.Registry

	reservationsCreated prometheus.Counter
	ordersCreated       prometheus.Counter
	keysSold            prometheus.Counter
	reservationsSwept   prometheus.Counter
	tokensSwept         prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		reservationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "merchant_reservations_created_total",
			Help: "Reservations successfully created.",
		}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "merchant_orders_created_total",
			Help: "Orders successfully finalized.",
		}),
		keysSold: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "merchant_keys_sold_total",
			Help: "Keys transitioned to sold.",
		}),
		reservationsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "merchant_reservations_swept_total",
			Help: "Expired reservations reclaimed by the sweeper.",
		}),
		tokensSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "merchant_tokens_swept_total",
			Help: "Expired access tokens evicted by the sweeper.",
		}),
	}
	reg.MustRegister(
		m.reservationsCreated,
		m.ordersCreated,
		m.keysSold,
		m.reservationsSwept,
		m.tokensSwept,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ReservationCreated() {
	if m != nil {
		m.reservationsCreated.Inc()
	}
}

func (m *Metrics) OrderCreated(keys int) {
	if m != nil {
		m.ordersCreated.Inc()
		m.keysSold.Add(float64(keys))
	}
}

func (m *Metrics) ReservationsSwept(n int) {
	if m != nil && n > 0 {
		m.reservationsSwept.Add(float64(n))
	}
}

func (m *Metrics) TokensSwept(n int) {
	if m != nil && n > 0 {
		m.tokensSwept.Add(float64(n))
	}
}
