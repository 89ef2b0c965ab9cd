package transport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for an HTTP transport. Each
// instance owns its registry so several transports can coexist.
type Metrics struct {
	registry *prometheus.Registry

	messages  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	batchSize prometheus.Histogram
	inFlight  prometheus.Gauge
}

// NewMetrics creates and registers the transport collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "messages_total",
				Help:      "Total JSON-RPC messages received over HTTP.",
			},
			[]string{"kind", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "message_duration_seconds",
				Help:      "JSON-RPC message handling duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind", "status"},
		),
		batchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "batch_responses",
				Help:      "Number of responses per batch reply.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
			},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "in_flight_messages",
				Help:      "JSON-RPC messages currently being handled.",
			},
		),
	}
	m.registry.MustRegister(m.messages, m.duration, m.batchSize, m.inFlight)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) record(kind string, status int, responses int, d time.Duration) {
	if m == nil {
		return
	}
	statusLabel := strconv.Itoa(status)
	m.messages.WithLabelValues(kind, statusLabel).Inc()
	m.duration.WithLabelValues(kind, statusLabel).Observe(d.Seconds())
	if kind == kindBatch && responses > 0 {
		m.batchSize.Observe(float64(responses))
	}
}

func (m *Metrics) begin() {
	if m != nil {
		m.inFlight.Inc()
	}
}

func (m *Metrics) end() {
	if m != nil {
		m.inFlight.Dec()
	}
}
