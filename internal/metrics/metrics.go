package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the interview server.
// A nil *Metrics is valid and records nothing, which keeps tests free of setup.
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive  prometheus.Gauge
	SessionsTotal   *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	InboundTotal       *prometheus.CounterVec
	CapabilityErrors   *prometheus.CounterVec
	CapabilityDuration *prometheus.HistogramVec

	FragmentsTotal    *prometheus.CounterVec
	SynthesisDuration prometheus.Histogram
}

// New creates a Metrics instance with all collectors registered on a private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "interview"
	}
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live interview sessions",
		}),
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total sessions by close reason",
		}, []string{"reason"}),
		SessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Session lifetime in seconds",
			Buckets:   []float64{10, 30, 60, 300, 600, 1200, 1800, 3600},
		}),
		InboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound protocol messages by kind",
		}, []string{"kind"}),
		CapabilityErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_errors_total",
			Help:      "Failed capability calls by stage",
		}, []string{"stage"}),
		CapabilityDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capability_duration_seconds",
			Help:      "Capability call latency by stage",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"stage"}),
		FragmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_fragments_total",
			Help:      "Synthesized fragments by outcome",
		}, []string{"outcome"}),
		SynthesisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_pipeline_seconds",
			Help:      "Wall time of a whole parallel synthesis run",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
	}

	registry.MustRegister(
		m.SessionsActive,
		m.SessionsTotal,
		m.SessionDuration,
		m.InboundTotal,
		m.CapabilityErrors,
		m.CapabilityDuration,
		m.FragmentsTotal,
		m.SynthesisDuration,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

func (m *Metrics) SessionClosed(reason string, lifetime time.Duration) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(reason).Inc()
	m.SessionDuration.Observe(lifetime.Seconds())
}

func (m *Metrics) Inbound(kind string) {
	if m == nil {
		return
	}
	m.InboundTotal.WithLabelValues(kind).Inc()
}

// Capability records one capability call for stage (transcription, dialogue, synthesis).
func (m *Metrics) Capability(stage string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.CapabilityDuration.WithLabelValues(stage).Observe(took.Seconds())
	if err != nil {
		m.CapabilityErrors.WithLabelValues(stage).Inc()
	}
}

// Fragment records the outcome of one fragment synthesis ("ok" or "failed").
func (m *Metrics) Fragment(outcome string) {
	if m == nil {
		return
	}
	m.FragmentsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Pipeline(took time.Duration) {
	if m == nil {
		return
	}
	m.SynthesisDuration.Observe(took.Seconds())
}
