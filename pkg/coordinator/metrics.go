package coordinator

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "empacy"
	metricsSubsystem = "coordinator"
)

// Metrics exposes Prometheus collectors for coordinator activity.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	agents     prometheus.Gauge
	contexts   prometheus.Gauge
	concepts   prometheus.Gauge
}

// MustNewMetrics registers the coordinator collectors with reg, or with the
// default registerer when reg is nil. Collectors that are already registered
// are reused; any other registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "operations_total",
				Help:      "Operations handled, by name and result.",
			},
			[]string{"op", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "operation_duration_seconds",
				Help:      "Time spent handling each operation.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		agents:   newGauge("agents", "Agents currently registered."),
		contexts: newGauge("context_packages", "Context packages currently stored."),
		concepts: newGauge("concepts", "Concepts in the ubiquitous language registry."),
	}

	m.operations = register(reg, m.operations)
	m.duration = register(reg, m.duration)
	m.agents = register(reg, m.agents)
	m.contexts = register(reg, m.contexts)
	m.concepts = register(reg, m.concepts)
	return m
}

func newGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      name,
		Help:      help,
	})
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveOperation counts one handled operation and records its latency.
func (m *Metrics) ObserveOperation(op string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

// SetRegistrySizes publishes the current registry sizes.
func (m *Metrics) SetRegistrySizes(agents, contexts, concepts int) {
	if m == nil {
		return
	}
	m.agents.Set(float64(agents))
	m.contexts.Set(float64(contexts))
	m.concepts.Set(float64(concepts))
}
