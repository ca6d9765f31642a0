package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes service counters on a dedicated Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	requestCount      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	errorCount        *prometheus.CounterVec
	transitionCount   *prometheus.CounterVec
	broadcastCount    *prometheus.CounterVec
	broadcastDropped  *prometheus.CounterVec
	streamSubscribers prometheus.Gauge
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "HTTP errors by route, method and error code.",
		}, []string{"path", "method", "code"}),
		transitionCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_transitions_total",
			Help: "Committed ticket lifecycle transitions by event kind.",
		}, []string{"kind"}),
		broadcastCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcast_deliveries_total",
			Help: "Broadcast deliveries by sink and outcome.",
		}, []string{"sink", "outcome"}),
		broadcastDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcast_dropped_total",
			Help: "Broadcasts dropped before delivery.",
		}, []string{"reason"}),
		streamSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_stream_subscribers",
			Help: "Connected realtime subscribers.",
		}),
	}
	m.registry.MustRegister(
		m.requestCount,
		m.requestDuration,
		m.errorCount,
		m.transitionCount,
		m.broadcastCount,
		m.broadcastDropped,
		m.streamSubscribers,
	)
	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}

// RecordTransition counts a committed lifecycle transition.
func (m *Metrics) RecordTransition(kind string) {
	if m == nil {
		return
	}
	m.transitionCount.WithLabelValues(kind).Inc()
}

// RecordBroadcast counts one sink delivery attempt.
func (m *Metrics) RecordBroadcast(sink string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.broadcastCount.WithLabelValues(sink, outcome).Inc()
}

// RecordBroadcastDropped counts a broadcast that never reached a sink.
func (m *Metrics) RecordBroadcastDropped(reason string) {
	if m == nil {
		return
	}
	m.broadcastDropped.WithLabelValues(reason).Inc()
}

// AddStreamSubscribers adjusts the connected subscriber gauge.
func (m *Metrics) AddStreamSubscribers(delta int) {
	if m == nil {
		return
	}
	m.streamSubscribers.Add(float64(delta))
}
