// Package metrics exposes scoreboard counters to Prometheus. A single
// Metrics value records for the store, the gateway and the interop
// transports.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "improvscore"

// Metrics holds every scoreboard collector
type Metrics struct {
	registry *prometheus.Registry

	mutations       *prometheus.CounterVec
	persistDuration *prometheus.HistogramVec
	connections     *prometheus.GaugeVec
	broadcasts      *prometheus.CounterVec
	receivers       prometheus.Histogram
	dropped         *prometheus.CounterVec
	commands        *prometheus.CounterVec
	interop         *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, alongside the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "mutations_total",
			Help:      "State mutations by operation and whether they were applied.",
		}, []string{"op", "applied"}),
		persistDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "persist_duration_seconds",
			Help:      "Snapshot persistence latency by outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"success"}),
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "connections",
			Help:      "Open websocket connections by channel.",
		}, []string{"channel"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "events_broadcast_total",
			Help:      "Events fanned out to subscribers by type.",
		}, []string{"type"}),
		receivers: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "event_receivers",
			Help:      "Number of subscribers reached per event.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "events_dropped_total",
			Help:      "Events that could not be delivered, by reason.",
		}, []string{"reason"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "commands_total",
			Help:      "Control commands by name and outcome.",
		}, []string{"command", "ok"}),
		interop: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interop",
			Name:      "requests_total",
			Help:      "Pacing plans and events by transport and outcome.",
		}, []string{"transport", "kind", "ok"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.mutations,
		m.persistDuration,
		m.connections,
		m.broadcasts,
		m.receivers,
		m.dropped,
		m.commands,
		m.interop,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordMutation(op string, applied bool) {
	m.mutations.WithLabelValues(op, strconv.FormatBool(applied)).Inc()
}

func (m *Metrics) RecordPersist(success bool, duration time.Duration) {
	m.persistDuration.WithLabelValues(strconv.FormatBool(success)).Observe(duration.Seconds())
}

func (m *Metrics) ConnectionOpened(channel string) {
	m.connections.WithLabelValues(channel).Inc()
}

func (m *Metrics) ConnectionClosed(channel string) {
	m.connections.WithLabelValues(channel).Dec()
}

func (m *Metrics) EventBroadcast(eventType string, receivers int) {
	m.broadcasts.WithLabelValues(eventType).Inc()
	m.receivers.Observe(float64(receivers))
}

func (m *Metrics) EventDropped(reason string) {
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) CommandHandled(command string, ok bool) {
	m.commands.WithLabelValues(command, strconv.FormatBool(ok)).Inc()
}

func (m *Metrics) InteropHandled(transport, kind string, ok bool) {
	m.interop.WithLabelValues(transport, kind, strconv.FormatBool(ok)).Inc()
}
