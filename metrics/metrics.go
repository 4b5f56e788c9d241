// Package metrics exposes Prometheus collectors reporting pipeline, worker
// cache and task lifecycle activity. All methods are nil-safe so components
// can run without metrics wired.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agentpipe"

// Metrics bundles the collectors used across agentpipe.
type Metrics struct {
	stageDuration   *prometheus.HistogramVec
	stageFailures   *prometheus.CounterVec
	runsActive      prometheus.Gauge
	taskTransitions *prometheus.CounterVec
	workerCreations *prometheus.CounterVec
	requestFailures *prometheus.CounterVec
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// Default returns the package-level metrics instance registered with the
// global Prometheus registry. The collectors are created only once to avoid
// duplicate registration panics when components are built multiple times.
func Default() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNew(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNew constructs a Metrics instance using the provided registerer. Tests
// should pass a fresh prometheus.NewRegistry(). Registration errors other than
// AlreadyRegistered panic, mirroring promauto.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		stageDuration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Duration of each pipeline stage invocation.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pipeline", "agent", "status"},
		)),
		stageFailures: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_failures_total",
				Help:      "Number of stage invocations that aborted a pipeline run.",
			},
			[]string{"pipeline", "agent"},
		)),
		runsActive: register(reg, prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "runs_active",
				Help:      "Number of pipeline runs currently executing.",
			},
		)),
		taskTransitions: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "task",
				Name:      "transitions_total",
				Help:      "Task lifecycle transitions by target state.",
			},
			[]string{"state"},
		)),
		workerCreations: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "worker",
				Name:      "creations_total",
				Help:      "Worker factory invocations by identity and outcome.",
			},
			[]string{"identity", "status"},
		)),
		requestFailures: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "executor",
				Name:      "request_failures_total",
				Help:      "Requests that ended in a failed task, by failure kind.",
			},
			[]string{"agent", "kind"},
		)),
	}
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

// ObserveStage records the duration of a stage with a success/error status.
func (m *Metrics) ObserveStage(pipeline, agent string, dur time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
		m.stageFailures.WithLabelValues(pipeline, agent).Inc()
	}
	m.stageDuration.WithLabelValues(pipeline, agent, status).Observe(dur.Seconds())
}

// IncActiveRuns marks a pipeline run as active.
func (m *Metrics) IncActiveRuns() {
	if m == nil {
		return
	}
	m.runsActive.Inc()
}

// DecActiveRuns marks a pipeline run as finished.
func (m *Metrics) DecActiveRuns() {
	if m == nil {
		return
	}
	m.runsActive.Dec()
}

// IncTransition counts a task transition into state.
func (m *Metrics) IncTransition(state string) {
	if m == nil {
		return
	}
	m.taskTransitions.WithLabelValues(state).Inc()
}

// IncWorkerCreation counts a factory invocation for identity.
func (m *Metrics) IncWorkerCreation(identity string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.workerCreations.WithLabelValues(identity, status).Inc()
}

// IncRequestFailure counts a failed request by kind (validation, worker, cache, canceled).
func (m *Metrics) IncRequestFailure(agent, kind string) {
	if m == nil {
		return
	}
	m.requestFailures.WithLabelValues(agent, kind).Inc()
}
