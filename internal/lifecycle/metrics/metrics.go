package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the alert lifecycle manager.
// Tracks fold throughput, alert transitions, and optimistic-lock churn.
type Metrics struct {
	PingsFolded      prometheus.Counter
	AttemptsFolded   *prometheus.CounterVec
	AlertsOpened     *prometheus.CounterVec
	AlertsResolved   *prometheus.CounterVec
	ReplaysSkipped   prometheus.Counter
	VersionConflicts prometheus.Counter
	RetriesExhausted prometheus.Counter
	FoldDuration     prometheus.Histogram
}

// New creates a new Metrics instance with all lifecycle metrics registered.
func New() *Metrics {
	return &Metrics{
		PingsFolded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caresignal_lifecycle_pings_folded_total",
			Help: "Total number of location pings folded into containment state",
		}),
		AttemptsFolded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caresignal_lifecycle_attempts_folded_total",
			Help: "Total number of verification attempts folded into adherence counters",
		}, []string{"approved"}),
		AlertsOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caresignal_lifecycle_alerts_opened_total",
			Help: "Total number of alerts opened",
		}, []string{"kind"}),
		AlertsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caresignal_lifecycle_alerts_resolved_total",
			Help: "Total number of alerts resolved",
		}, []string{"kind"}),
		ReplaysSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caresignal_lifecycle_replays_skipped_total",
			Help: "Total number of re-delivered events skipped as already folded",
		}),
		VersionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caresignal_lifecycle_version_conflicts_total",
			Help: "Total number of optimistic-lock conflicts on derived state rows",
		}),
		RetriesExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caresignal_lifecycle_retries_exhausted_total",
			Help: "Total number of folds abandoned after the bounded retry limit",
		}),
		FoldDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "caresignal_lifecycle_fold_duration_seconds",
			Help:    "Duration of the locked read-decide-write fold step",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveFold records the duration of a fold operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveFold(start time.Time) {
	m.FoldDuration.Observe(time.Since(start).Seconds())
}

// IncrementAttemptFolded records a folded attempt by approval outcome.
func (m *Metrics) IncrementAttemptFolded(approved bool) {
	label := "false"
	if approved {
		label = "true"
	}
	m.AttemptsFolded.WithLabelValues(label).Inc()
}
