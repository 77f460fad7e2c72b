// Package metrics exposes the ambient prometheus counters/gauges a Context
// maintains. Registration is opt-in: a caller that wants to scrape these
// passes its own *prometheus.Registry to New; starting an HTTP server to
// expose it is the caller's concern, consistent with the core not pooling or
// serving connections itself.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups every counter/gauge the library updates.
type Metrics struct {
	PacketsSent        prometheus.Counter
	CallbacksDelivered prometheus.Counter
	RttReconnects      prometheus.Counter
	RttConnected       prometheus.Gauge
}

// New creates the metric instruments and, if reg is non-nil, registers them.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brainclouds2s",
			Name:      "packets_sent_total",
			Help:      "Total number of S2S dispatcher packets sent.",
		}),
		CallbacksDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brainclouds2s",
			Name:      "callbacks_delivered_total",
			Help:      "Total number of callbacks dispatched from the callback pump.",
		}),
		RttReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brainclouds2s",
			Name:      "rtt_connect_attempts_total",
			Help:      "Total number of RTT enable/connect attempts.",
		}),
		RttConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "brainclouds2s",
			Name:      "rtt_connected",
			Help:      "1 if the RTT channel is currently connected, 0 otherwise.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.PacketsSent, m.CallbacksDelivered, m.RttReconnects, m.RttConnected)
	}
	return m
}
