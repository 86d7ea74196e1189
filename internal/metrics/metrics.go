package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gomoku"

const (
	ResultOK          = "ok"
	ResultRejected    = "rejected"
	ResultUnavailable = "unavailable"
	ResultError       = "error"
)

type Metrics struct {
	Operations      *prometheus.CounterVec
	OperationTime   *prometheus.HistogramVec
	ActiveActors    prometheus.Gauge
	EventsPublished *prometheus.CounterVec
	Connections     prometheus.Gauge
}

// New creates the metrics and registers them with registerer.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_operations_total",
			Help:      "Room operations by name and result",
		}, []string{"operation", "result"}),
		OperationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "room_operation_duration_seconds",
			Help:      "Room operation latency",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"operation"}),
		ActiveActors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_room_actors",
			Help:      "Number of live room actors",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Room events by type and delivery result",
		}, []string{"type", "result"}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Number of open websocket connections",
		}),
	}

	registerer.MustRegister(
		m.Operations,
		m.OperationTime,
		m.ActiveActors,
		m.EventsPublished,
		m.Connections,
	)

	return m
}

func (that *Metrics) ObserveOperation(operation, result string, elapsed time.Duration) {
	that.Operations.WithLabelValues(operation, result).Inc()
	that.OperationTime.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (that *Metrics) ActorStarted() {
	that.ActiveActors.Inc()
}

func (that *Metrics) ActorStopped() {
	that.ActiveActors.Dec()
}

func (that *Metrics) EventPublished(eventType string, ok bool) {
	result := ResultOK
	if !ok {
		result = ResultError
	}
	that.EventsPublished.WithLabelValues(eventType, result).Inc()
}

func (that *Metrics) ConnectionOpened() {
	that.Connections.Inc()
}

func (that *Metrics) ConnectionClosed() {
	that.Connections.Dec()
}
