package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"

	"storman/internal/algorithms"
)

// Evaluation outcomes recorded per registration.
const (
	OutcomeCleaned          = "cleaned"
	OutcomeCompliant        = "compliant"
	OutcomeUnknownAlgorithm = "unknown_algorithm"
	OutcomeUnresolved       = "unresolved"
	OutcomeError            = "error"
)

type Metrics struct {
	registry      prometheus.Registerer
	ticksTotal    prometheus.Counter
	ticksSkipped  prometheus.Counter
	tickDuration  prometheus.Histogram
	registrations *prometheus.CounterVec
	filesRemoved  prometheus.Counter
	bytesFreed    prometheus.Counter
	running       prometheus.Gauge
}

func InitMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		registry: reg,
		ticksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_ticks_total",
				Help:      "Total number of completed cleanup ticks",
			},
		),
		ticksSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_ticks_skipped_total",
				Help:      "Ticks skipped because the previous tick was still running",
			},
		),
		tickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cleanup_tick_duration_seconds",
				Help:      "Duration of cleanup ticks",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
			},
		),
		registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_registrations_evaluated_total",
				Help:      "Registrations evaluated, by outcome",
			},
			[]string{"outcome"},
		),
		filesRemoved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_files_removed_total",
				Help:      "Total files removed by cleanup runs",
			},
		),
		bytesFreed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_bytes_freed_total",
				Help:      "Total bytes freed by cleanup runs",
			},
		),
		running: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scheduler_running",
				Help:      "Whether the cleanup scheduler is running: 0=stopped, 1=running",
			},
		),
	}

	reg.MustRegister(
		m.ticksTotal,
		m.ticksSkipped,
		m.tickDuration,
		m.registrations,
		m.filesRemoved,
		m.bytesFreed,
		m.running,
	)

	return m
}

func (m *Metrics) RecordTick(seconds float64) {
	if m == nil {
		return
	}
	m.ticksTotal.Inc()
	m.tickDuration.Observe(seconds)
}

func (m *Metrics) RecordSkippedTick() {
	if m == nil {
		return
	}
	m.ticksSkipped.Inc()
}

func (m *Metrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordCleanup(result algorithms.Result) {
	if m == nil {
		return
	}
	m.filesRemoved.Add(float64(result.FilesRemoved))
	m.bytesFreed.Add(float64(result.BytesFreed))
}

func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.running.Set(1)
	} else {
		m.running.Set(0)
	}
}
