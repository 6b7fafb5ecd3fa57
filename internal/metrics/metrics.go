package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector defines the interface for metrics collection
type Collector interface {
	// Connection metrics
	ConnectionOpened()
	ConnectionClosed()
	ConnectionError(errorType string)

	// Presence metrics
	PresenceChanged(onlineUsers int)

	// Event metrics
	EventReceived(event string, sizeBytes int)
	EventSent(event string, sizeBytes int)
	EventError(event, errorType string)
	EventDropped(event string)

	// Handler returns an HTTP handler for metrics endpoint
	Handler() http.Handler
}

// PrometheusCollector implements the Collector interface using Prometheus
type PrometheusCollector struct {
	activeConnections prometheus.Gauge
	connectionsTotal  prometheus.Counter
	connectionErrors  *prometheus.CounterVec

	onlineUsers prometheus.Gauge

	eventsReceived *prometheus.CounterVec
	eventsSent     *prometheus.CounterVec
	eventErrors    *prometheus.CounterVec
	eventsDropped  *prometheus.CounterVec
	eventSize      *prometheus.HistogramVec
}

// NewPrometheusCollector creates a new PrometheusCollector
func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		activeConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_connections",
			Help: "Number of open realtime connections",
		}),

		connectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_connections_total",
			Help: "Total number of realtime connections accepted",
		}),

		connectionErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_connection_errors_total",
				Help: "Total number of connection-level errors",
			},
			[]string{"error_type"},
		),

		onlineUsers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "relay_online_users",
			Help: "Number of user identities with at least one connection",
		}),

		eventsReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_events_received_total",
				Help: "Total number of events received from clients",
			},
			[]string{"event"},
		),

		eventsSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_events_sent_total",
				Help: "Total number of events sent to clients",
			},
			[]string{"event"},
		),

		eventErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_event_errors_total",
				Help: "Total number of event handling errors",
			},
			[]string{"event", "error_type"},
		),

		eventsDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_events_dropped_total",
				Help: "Total number of events dropped on full send buffers",
			},
			[]string{"event"},
		),

		eventSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_event_size_bytes",
				Help:    "Size of relay events in bytes",
				Buckets: prometheus.ExponentialBuckets(64, 2, 10), // 64B to 32KB
			},
			[]string{"event", "direction"},
		),
	}
}

// ConnectionOpened records an accepted connection
func (c *PrometheusCollector) ConnectionOpened() {
	c.connectionsTotal.Inc()
	c.activeConnections.Inc()
}

// ConnectionClosed records a closed connection
func (c *PrometheusCollector) ConnectionClosed() {
	c.activeConnections.Dec()
}

// ConnectionError records a connection-level error
func (c *PrometheusCollector) ConnectionError(errorType string) {
	c.connectionErrors.WithLabelValues(errorType).Inc()
}

// PresenceChanged records the size of the presence set after a change
func (c *PrometheusCollector) PresenceChanged(onlineUsers int) {
	c.onlineUsers.Set(float64(onlineUsers))
}

// EventReceived records an event received from a client
func (c *PrometheusCollector) EventReceived(event string, sizeBytes int) {
	c.eventsReceived.WithLabelValues(event).Inc()
	c.eventSize.WithLabelValues(event, "received").Observe(float64(sizeBytes))
}

// EventSent records an event sent to a client
func (c *PrometheusCollector) EventSent(event string, sizeBytes int) {
	c.eventsSent.WithLabelValues(event).Inc()
	c.eventSize.WithLabelValues(event, "sent").Observe(float64(sizeBytes))
}

// EventError records an event handling error
func (c *PrometheusCollector) EventError(event, errorType string) {
	c.eventErrors.WithLabelValues(event, errorType).Inc()
}

// EventDropped records an event dropped on a full send buffer
func (c *PrometheusCollector) EventDropped(event string) {
	c.eventsDropped.WithLabelValues(event).Inc()
}

// Handler returns an HTTP handler for metrics endpoint
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.Handler()
}

// NopCollector discards all metrics. Used by tests.
type NopCollector struct{}

func (NopCollector) ConnectionOpened()         {}
func (NopCollector) ConnectionClosed()         {}
func (NopCollector) ConnectionError(string)    {}
func (NopCollector) PresenceChanged(int)       {}
func (NopCollector) EventReceived(string, int) {}
func (NopCollector) EventSent(string, int)     {}
func (NopCollector) EventError(string, string) {}
func (NopCollector) EventDropped(string)       {}
func (NopCollector) Handler() http.Handler     { return http.NotFoundHandler() }
