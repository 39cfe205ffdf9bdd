// Package metrics collects the metrics of a run. A run is a batch job: the metrics are
// dumped once in the node-exporter textfile format instead of being scraped.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "s2angles"

// Collector holds the metrics of a run, registered on a private registry
type Collector struct {
	registry *prometheus.Registry

	StageDuration *prometheus.HistogramVec
	OutputsTotal  *prometheus.CounterVec
	FailuresTotal *prometheus.CounterVec
	RunsTotal     *prometheus.CounterVec
}

// NewCollector creates a collector and registers its metrics
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of each stage of the generation of the angle bands",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"stage"},
		),
		OutputsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outputs_total",
				Help:      "Number of angle rasters written, by kind",
			},
			[]string{"kind"},
		),
		FailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failures_total",
				Help:      "Number of failed runs, by stage and error code",
			},
			[]string{"stage", "code"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Number of runs, by status",
			},
			[]string{"status"},
		),
	}
	c.registry.MustRegister(c.StageDuration, c.OutputsTotal, c.FailuresTotal, c.RunsTotal)
	return c
}

// Registry returns the registry of the collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Timer measures the duration of an operation
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// StageTimer starts a timer observing the duration of stage
func (c *Collector) StageTimer(stage string) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: c.StageDuration.WithLabelValues(stage),
	}
}

// ObserveDuration records the elapsed time since the creation of the timer
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordOutput increments the counter of written rasters
func (c *Collector) RecordOutput(kind string) {
	c.OutputsTotal.WithLabelValues(kind).Inc()
}

// RecordFailure increments the counter of failed runs
func (c *Collector) RecordFailure(stage, code string) {
	c.FailuresTotal.WithLabelValues(stage, code).Inc()
	c.RunsTotal.WithLabelValues("failure").Inc()
}

// RecordSuccess increments the counter of successful runs
func (c *Collector) RecordSuccess() {
	c.RunsTotal.WithLabelValues("success").Inc()
}

// WriteToTextfile writes the metrics to path, in the textfile collector format.
// The file is written atomically.
func (c *Collector) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
