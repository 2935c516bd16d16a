package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	orthoflow = "orthoflow"

	// Pipeline metrics
	pipelineRunsTotal       = "pipeline_runs_total"
	pipelineRunDuration     = "pipeline_run_duration_seconds"
	pipelineRunsInFlight    = "pipeline_runs_in_flight"
	notificationsTotal      = "notifications_total"
	remoteStatusChecksTotal = "remote_status_checks_total"

	// Labels
	outcomeLabel            = "outcome"
	notificationStatusLabel = "status"
	notificationResultLabel = "result"
)

var pipelineRunsTotalLabels = []string{
	outcomeLabel,
}

var notificationsTotalLabels = []string{
	notificationStatusLabel,
	notificationResultLabel,
}

/**
* Metrics definition
**/
var pipelineRunsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: orthoflow,
		Name:      pipelineRunsTotal,
		Help:      "number of finished pipeline runs by outcome",
	},
	pipelineRunsTotalLabels,
)

var pipelineRunDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: orthoflow,
		Name:      pipelineRunDuration,
		Help:      "duration of pipeline runs by outcome",
		// from a few seconds for early aborts up to the 18h polling budget
		Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200, 14400, 28800, 64800},
	},
	pipelineRunsTotalLabels,
)

var pipelineRunsInFlightMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: orthoflow,
		Name:      pipelineRunsInFlight,
		Help:      "number of pipeline runs currently executing",
	},
)

var notificationsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: orthoflow,
		Name:      notificationsTotal,
		Help:      "number of notifications by status and delivery result",
	},
	notificationsTotalLabels,
)

var remoteStatusChecksTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: orthoflow,
		Name:      remoteStatusChecksTotal,
		Help:      "number of status checks made against the processing node",
	},
)

func IncreasePipelineRunsTotalMetric(outcome string, duration time.Duration) {
	labels := prometheus.Labels{
		outcomeLabel: outcome,
	}
	pipelineRunsTotalMetric.With(labels).Inc()
	pipelineRunDurationMetric.With(labels).Observe(duration.Seconds())
}

func IncreaseRunsInFlightMetric() {
	pipelineRunsInFlightMetric.Inc()
}

func DecreaseRunsInFlightMetric() {
	pipelineRunsInFlightMetric.Dec()
}

func IncreaseNotificationsTotalMetric(status, result string) {
	labels := prometheus.Labels{
		notificationStatusLabel: status,
		notificationResultLabel: result,
	}
	notificationsTotalMetric.With(labels).Inc()
}

func IncreaseRemoteStatusChecksMetric() {
	remoteStatusChecksTotalMetric.Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(pipelineRunsTotalMetric)
	prometheus.MustRegister(pipelineRunDurationMetric)
	prometheus.MustRegister(pipelineRunsInFlightMetric)
	prometheus.MustRegister(notificationsTotalMetric)
	prometheus.MustRegister(remoteStatusChecksTotalMetric)
}
