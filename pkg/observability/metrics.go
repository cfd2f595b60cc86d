// Package observability holds the pipeline's Prometheus metrics and
// OpenTelemetry spans.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "notetaker"

// Pipeline outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// Reminder results.
const (
	ReminderSent    = "sent"
	ReminderFailed  = "failed"
	ReminderSkipped = "skipped"
)

// Reconciliation kinds.
const (
	ReconcileStuck  = "stuck"
	ReconcileMissed = "missed"
)

// PipelineMetrics holds all Prometheus metrics for the attendance pipeline.
// A nil *PipelineMetrics records nothing.
type PipelineMetrics struct {
	PipelineRunsTotal   *prometheus.CounterVec
	StageSeconds        *prometheus.HistogramVec
	StageFallbacksTotal *prometheus.CounterVec
	ActiveCaptures      prometheus.Gauge
	NotesTotal          *prometheus.CounterVec
	RemindersTotal      *prometheus.CounterVec
	ReconciledTotal     *prometheus.CounterVec
}

// NewPipelineMetrics creates and registers the pipeline metrics on reg.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	factory := promauto.With(reg)

	return &PipelineMetrics{
		PipelineRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "pipeline_runs_total",
				Help:      "Meeting pipelines finished, by outcome",
			},
			[]string{"outcome"},
		),
		StageSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "stage_seconds",
				Help:      "Pipeline stage latency",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600, 7200},
			},
			[]string{"stage"},
		),
		StageFallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "stage_fallbacks_total",
				Help:      "Stages that substituted a fallback value",
			},
			[]string{"stage"},
		),
		ActiveCaptures: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "active_captures",
				Help:      "Browser agents currently attending a meeting",
			},
		),
		NotesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "notes_total",
				Help:      "Notes persisted, by quality tier",
			},
			[]string{"quality_tier"},
		),
		RemindersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "reminders_total",
				Help:      "Reminder attempts, by result",
			},
			[]string{"result"},
		),
		ReconciledTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "reconciled_total",
				Help:      "Meetings moved to a terminal state by a maintenance sweep",
			},
			[]string{"kind"},
		),
	}
}

// RecordPipeline records a finished pipeline run.
func (m *PipelineMetrics) RecordPipeline(outcome string) {
	if m == nil {
		return
	}
	m.PipelineRunsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long a stage took.
func (m *PipelineMetrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordFallback records a stage substituting its fallback.
func (m *PipelineMetrics) RecordFallback(stage string) {
	if m == nil {
		return
	}
	m.StageFallbacksTotal.WithLabelValues(stage).Inc()
}

// CaptureStarted increments the active capture gauge.
func (m *PipelineMetrics) CaptureStarted() {
	if m == nil {
		return
	}
	m.ActiveCaptures.Inc()
}

// CaptureEnded decrements the active capture gauge.
func (m *PipelineMetrics) CaptureEnded() {
	if m == nil {
		return
	}
	m.ActiveCaptures.Dec()
}

// RecordNote records a persisted note.
func (m *PipelineMetrics) RecordNote(tier string) {
	if m == nil {
		return
	}
	m.NotesTotal.WithLabelValues(tier).Inc()
}

// RecordReminder records a reminder attempt.
func (m *PipelineMetrics) RecordReminder(result string) {
	if m == nil {
		return
	}
	m.RemindersTotal.WithLabelValues(result).Inc()
}

// RecordReconciled records a meeting settled by a sweep.
func (m *PipelineMetrics) RecordReconciled(kind string) {
	if m == nil {
		return
	}
	m.ReconciledTotal.WithLabelValues(kind).Inc()
}
