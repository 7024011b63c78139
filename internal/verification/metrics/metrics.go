package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification pipeline.
// Tracks attempt outcomes, quota rejections, and scoring-call health.
type Metrics struct {
	Attempts        *prometheus.CounterVec
	QuotaRejections prometheus.Counter
	ScoringFailures *prometheus.CounterVec
	ScoringDuration prometheus.Histogram
	VerifyDuration  prometheus.Histogram
}

// New creates a new Metrics instance with all verification metrics registered.
func New() *Metrics {
	return &Metrics{
		Attempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caresignal_verification_attempts_total",
			Help: "Total number of verification attempts by outcome",
		}, []string{"approved"}),
		QuotaRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caresignal_verification_quota_rejections_total",
			Help: "Total number of attempts rejected before scoring because the daily quota was spent",
		}),
		ScoringFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caresignal_verification_scoring_failures_total",
			Help: "Total number of scoring-service call failures by reason",
		}, []string{"reason"}),
		ScoringDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "caresignal_verification_scoring_duration_seconds",
			Help:    "Duration of external scoring-service calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		VerifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "caresignal_verification_duration_seconds",
			Help:    "End-to-end duration of verification requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncrementAttempt records a completed attempt by approval outcome.
func (m *Metrics) IncrementAttempt(approved bool) {
	label := "false"
	if approved {
		label = "true"
	}
	m.Attempts.WithLabelValues(label).Inc()
}

// ObserveScoring records the duration of one scoring call.
// Call with time.Now() at the start of the call.
func (m *Metrics) ObserveScoring(start time.Time) {
	m.ScoringDuration.Observe(time.Since(start).Seconds())
}

// ObserveVerify records the end-to-end duration of a verification.
// Call with time.Now() at the start of the request.
func (m *Metrics) ObserveVerify(start time.Time) {
	m.VerifyDuration.Observe(time.Since(start).Seconds())
}
