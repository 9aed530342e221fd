package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every condkv metric.
const Namespace = "condkv"

// Registry holds all application metrics on a private Prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	// Request metrics, labelled by message kind and response status.
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Connection metrics
	ConnectionsTotal  prometheus.Counter
	ConnectionsActive prometheus.Gauge
	ProtocolErrors    prometheus.Counter
}

// NewRegistry creates a registry with request, connection and Go runtime
// metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	return &Registry{
		reg: reg,

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "requests_total",
			Help:      "Total number of requests handled, by kind and status.",
		}, []string{"kind", "status"}),

		// GETWHEN and LOGIN may block for a long time.
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "request_duration_seconds",
			Help:      "Request handling duration in seconds, by kind.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 30, 120},
		}, []string{"kind"}),

		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connections_total",
			Help:      "Total number of accepted client connections.",
		}),

		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "connections_active",
			Help:      "Number of open client connections.",
		}),

		ProtocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "protocol_errors_total",
			Help:      "Connections closed because of a malformed frame.",
		}),
	}
}

// ObserveRequest records one handled request. A nil registry is a no-op.
func (r *Registry) ObserveRequest(kind string, success bool, d time.Duration) {
	if r == nil {
		return
	}
	status := "ok"
	if !success {
		status = "error"
	}
	r.RequestsTotal.WithLabelValues(kind, status).Inc()
	r.RequestDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ConnOpened records an accepted connection.
func (r *Registry) ConnOpened() {
	if r == nil {
		return
	}
	r.ConnectionsTotal.Inc()
	r.ConnectionsActive.Inc()
}

// ConnClosed records a closed connection.
func (r *Registry) ConnClosed(protocolError bool) {
	if r == nil {
		return
	}
	r.ConnectionsActive.Dec()
	if protocolError {
		r.ProtocolErrors.Inc()
	}
}

// MustRegister registers additional collectors, such as a StatsCollector.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.reg.MustRegister(cs...)
}

// Gatherer exposes the underlying registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns the HTTP handler serving this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
