// Package metrics exposes Prometheus instrumentation for closing runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline stages.
const (
	StageCollect   = "collect"
	StageTransform = "transform"
	StageLoad      = "load"
	StageClassify  = "classify"
	StageReport    = "report"
	StageExport    = "export"
	StageNotify    = "notify"
	StageTotal     = "total"
)

// Run outcomes.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// PipelineMetrics records stage durations, run outcomes and rows written.
// A nil *PipelineMetrics is valid and records nothing.
type PipelineMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	rows     *prometheus.GaugeVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "closing_run_duration_seconds",
		Help:    "Duration of closing run stages in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "closing_runs_total",
		Help: "Closing runs by outcome.",
	}, []string{"status"})
	rows := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "closing_rows_written",
		Help: "Rows written to monthly_summary by the last run of each month.",
	}, []string{"month"})
	reg.MustRegister(duration, runs, rows)
	return &PipelineMetrics{
		duration: duration,
		runs:     runs,
		rows:     rows,
	}
}

// ObserveStage records how long a stage took.
func (m *PipelineMetrics) ObserveStage(stage string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(stage)).Observe(d.Seconds())
}

// Timer returns a func that records the time since it was created.
func (m *PipelineMetrics) Timer(stage string) func() {
	start := time.Now()
	return func() { m.ObserveStage(stage, time.Since(start)) }
}

// IncRun counts a finished run.
func (m *PipelineMetrics) IncRun(status string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(normalizeLabel(status)).Inc()
}

// SetRowsWritten records the size of the month just loaded.
func (m *PipelineMetrics) SetRowsWritten(month string, rows int) {
	if m == nil || m.rows == nil {
		return
	}
	m.rows.WithLabelValues(normalizeLabel(month)).Set(float64(rows))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
