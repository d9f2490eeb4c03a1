package scenario

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks scenario, step and session counters.
type Metrics struct {
	registry *prometheus.Registry

	scenarios *prometheus.CounterVec
	steps     *prometheus.CounterVec
	sessions  prometheus.Gauge
	duration  prometheus.Histogram
	snapshots *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scenarios: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "todomvc_e2e",
			Name:      "scenarios_total",
			Help:      "Scenarios executed, by result.",
		}, []string{"result"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "todomvc_e2e",
			Name:      "steps_total",
			Help:      "Steps executed, by kind and result.",
		}, []string{"kind", "result"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "todomvc_e2e",
			Name:      "sessions_active",
			Help:      "Browser sessions currently open.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "todomvc_e2e",
			Name:      "scenario_duration_seconds",
			Help:      "Wall time per scenario, session setup and teardown included.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "todomvc_e2e",
			Name:      "snapshots_total",
			Help:      "Snapshots captured, by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.scenarios, m.steps, m.sessions, m.duration, m.snapshots)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current values in the text exposition format,
// for node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) sessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) sessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

func (m *Metrics) recordStep(kind StepKind, err error) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(kind.String(), resultLabel(err)).Inc()
}

func (m *Metrics) recordSnapshot(err error) {
	if m == nil {
		return
	}
	m.snapshots.WithLabelValues(resultLabel(err)).Inc()
}

func (m *Metrics) recordScenario(state State, d time.Duration) {
	if m == nil {
		return
	}
	m.scenarios.WithLabelValues(state.String()).Inc()
	m.duration.Observe(d.Seconds())
}

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
