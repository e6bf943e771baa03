package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		jobsEnqueuedTotal,
		jobsFinishedTotal,
		jobStepsTotal,
		jobsInRegistry,
		schedulerTickSeconds,
	)
}

var (
	jobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_jobs_enqueued_total",
			Help: "Total number of pipeline jobs enqueued, labeled by kind.",
		},
		[]string{"kind"}, // 'integrity_check', 'word_count'
	)

	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_jobs_finished_total",
			Help: "Total number of pipeline jobs removed from the registry, labeled by kind and status.",
		},
		[]string{"kind", "status"}, // status: 'completed', 'failed'
	)

	jobStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_job_steps_total",
			Help: "Total number of job steps executed, labeled by kind, stage and result.",
		},
		[]string{"kind", "stage", "result"},
	)

	jobsInRegistry = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_jobs_in_registry",
			Help: "Current number of jobs held by the scheduler, by status.",
		},
		[]string{"status"},
	)

	schedulerTickSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_scheduler_tick_seconds",
			Help:    "Wall time of a scheduler tick.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

func IncJobEnqueued(kind string) {
	jobsEnqueuedTotal.WithLabelValues(norm(kind)).Inc()
}

func IncJobFinished(kind, status string) {
	jobsFinishedTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}

func IncJobStep(kind, stage, result string) {
	jobStepsTotal.WithLabelValues(norm(kind), norm(stage), norm(result)).Inc()
}

func SetJobsInRegistry(counts map[string]int) {
	for _, status := range []string{"pending", "processing"} {
		jobsInRegistry.WithLabelValues(status).Set(float64(counts[status]))
	}
}

func ObserveTick(seconds float64) {
	schedulerTickSeconds.Observe(seconds)
}
