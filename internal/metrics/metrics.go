// Package metrics exports engine and gateway activity to Prometheus.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfredjeanlab/feedpulse/internal/model"
	"github.com/alfredjeanlab/feedpulse/internal/notify"
)

const namespace = "feedpulse"

// Fault reasons used as the "reason" label of delivery faults.
const (
	ReasonError   = "error"
	ReasonPanic   = "panic"
	ReasonTimeout = "timeout"
)

// Metrics holds the collectors on a private registry. It implements
// notify.Recorder so it can be passed to notify.WithRecorder.
type Metrics struct {
	registry *prometheus.Registry

	published      *prometheus.CounterVec
	delivered      *prometheus.CounterVec
	faults         *prometheus.CounterVec
	historySize    *prometheus.GaugeVec
	subscribers    *prometheus.GaugeVec
	streams        prometheus.Gauge
	simulations    prometheus.Gauge
	sideChannelErr *prometheus.CounterVec
	exports        *prometheus.CounterVec
}

var _ notify.Recorder = (*Metrics)(nil)

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.published = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Events accepted by the engine, by kind",
	}, []string{"kind"})
	m.delivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deliveries_total",
		Help:      "Successful handler invocations, by kind",
	}, []string{"kind"})
	m.faults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "delivery_faults_total",
		Help:      "Handler faults that disconnected a subscriber, by reason",
	}, []string{"reason"})
	m.historySize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "history_size",
		Help:      "Events retained in the history buffer, by project",
	}, []string{"project"})
	m.subscribers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_subscribers",
		Help:      "Connected subscribers, by project",
	}, []string{"project"})
	m.streams = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sse_streams",
		Help:      "Open server-sent event streams",
	})
	m.simulations = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "simulations_running",
		Help:      "Running simulations",
	})
	m.sideChannelErr = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "side_channel_errors_total",
		Help:      "Best-effort archive or mirror failures, by channel",
	}, []string{"channel"})
	m.exports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exports_total",
		Help:      "Archive exports, by destination and status",
	}, []string{"destination", "status"})

	m.registry.MustRegister(
		m.published, m.delivered, m.faults,
		m.historySize, m.subscribers,
		m.streams, m.simulations,
		m.sideChannelErr, m.exports,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and embedding.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Published(ev model.Event, historySize int) {
	m.published.WithLabelValues(string(ev.Kind)).Inc()
	m.historySize.WithLabelValues(ev.ProjectID).Set(float64(historySize))
}

func (m *Metrics) Delivered(ev model.Event) {
	m.delivered.WithLabelValues(string(ev.Kind)).Inc()
}

func (m *Metrics) Faulted(_ model.Event, err *notify.DeliveryError) {
	m.faults.WithLabelValues(FaultReason(err)).Inc()
}

func (m *Metrics) SubscribersChanged(projectID string, active int) {
	m.subscribers.WithLabelValues(projectID).Set(float64(active))
}

// StreamOpened and StreamClosed track SSE connections.
func (m *Metrics) StreamOpened() { m.streams.Inc() }
func (m *Metrics) StreamClosed() { m.streams.Dec() }

// SimulationStarted and SimulationStopped track running simulations.
func (m *Metrics) SimulationStarted() { m.simulations.Inc() }
func (m *Metrics) SimulationStopped() { m.simulations.Dec() }

// SideChannelError counts a failed archive write or NATS mirror publish.
func (m *Metrics) SideChannelError(channel string) {
	m.sideChannelErr.WithLabelValues(channel).Inc()
}

// Export counts an archive export attempt.
func (m *Metrics) Export(destination string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.exports.WithLabelValues(destination, status).Inc()
}

// FaultReason classifies a delivery fault for the reason label.
func FaultReason(err *notify.DeliveryError) string {
	switch {
	case err == nil:
		return ReasonError
	case err.Panicked():
		return ReasonPanic
	case errors.Is(err, notify.ErrHandlerTimeout):
		return ReasonTimeout
	default:
		return ReasonError
	}
}
