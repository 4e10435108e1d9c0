package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and
// records nothing, so one-shot runs can skip the registry.
type Metrics struct {
	registry      *prometheus.Registry
	runs          *prometheus.CounterVec
	fallbacks     prometheus.Counter
	artifacts     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gdp",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Finished pipeline runs by status and data source.",
		}, []string{"status", "source"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gdp",
			Subsystem: "pipeline",
			Name:      "fallbacks_total",
			Help:      "Runs that substituted synthetic data after a failed fetch.",
		}),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gdp",
			Subsystem: "pipeline",
			Name:      "artifacts_total",
			Help:      "Artifacts written by kind.",
		}, []string{"kind"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gdp",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
	}
	m.registry.MustRegister(m.runs, m.fallbacks, m.artifacts, m.stageDuration)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RunFinished(status, source string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status, source).Inc()
}

func (m *Metrics) Fallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}

func (m *Metrics) ArtifactWritten(kind string) {
	if m == nil {
		return
	}
	m.artifacts.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
