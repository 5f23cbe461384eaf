package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	assessments *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	lastScore   *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		assessments: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vitals_assessments_total",
				Help: "Total number of risk assessments by level",
			},
			[]string{"level"},
		),
		rejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vitals_rejected_readings_total",
				Help: "Readings rejected before reaching the history window",
			},
			[]string{"field"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vitals_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vitals_last_risk_score",
				Help: "Last risk score recorded for a subject",
			},
			[]string{"subject"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vitals_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordAssessment counts an assessment by risk level.
func (r *Recorder) RecordAssessment(level string) {
	r.assessments.WithLabelValues(level).Inc()
}

// RecordRejected counts a rejected reading by offending field.
func (r *Recorder) RecordRejected(field string) {
	r.rejected.WithLabelValues(field).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordRiskScore records the last risk score for a subject.
func (r *Recorder) RecordRiskScore(subjectID string, score float64) {
	r.lastScore.WithLabelValues(subjectID).Set(score)
}

// ForgetSubject drops the per-subject gauge once a session ends.
func (r *Recorder) ForgetSubject(subjectID string) {
	r.lastScore.DeleteLabelValues(subjectID)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
