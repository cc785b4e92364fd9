package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	RunsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchflow",
			Name:      "runs_finished_total",
			Help:      "Matching runs finished, by terminal state",
		},
		[]string{"state"},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "matchflow",
			Name:      "run_duration_seconds",
			Help:      "Wall time from run creation to terminal state",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		},
	)

	CandidatesScoredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "matchflow",
			Name:      "candidates_scored_total",
			Help:      "Candidates that passed hard filters and were scored",
		},
	)

	DispatchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchflow",
			Name:      "dispatch_attempts_total",
			Help:      "Notification dispatch attempts, by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	TasksFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchflow",
			Name:      "tasks_finished_total",
			Help:      "Notification tasks reaching a terminal state",
		},
		[]string{"channel", "state"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(RunsFinishedTotal)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(CandidatesScoredTotal)
	prometheus.MustRegister(DispatchAttemptsTotal)
	prometheus.MustRegister(TasksFinishedTotal)
	pipelineMetricsRegistered = true
}
