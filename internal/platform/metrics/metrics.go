package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_generation_jobs_submitted_total",
		Help: "Generation job submissions, by whether a new job was created or an existing one was joined.",
	}, []string{"outcome"})

	jobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_generation_jobs_processed_total",
		Help: "Generation jobs finished by the worker pool, by terminal state.",
	}, []string{"outcome"})

	jobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lumen_generation_jobs_in_flight",
		Help: "Jobs currently held by this worker pool instance.",
	})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lumen_generation_stage_duration_seconds",
		Help:    "Wall-clock duration of each pipeline stage.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{"stage"})

	unitRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lumen_generation_unit_retries_total",
		Help: "Generation unit attempts beyond the first, across all stages.",
	})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_result_cache_lookups_total",
		Help: "Result cache lookups, by hit/miss.",
	}, []string{"result"})
)

// JobSubmitted records a submission outcome: "created" or "joined".
func JobSubmitted(outcome string) {
	jobsSubmitted.WithLabelValues(outcome).Inc()
}

// JobProcessed records a terminal outcome: "completed", "failed" or
// "cancelled".
func JobProcessed(outcome string) {
	jobsProcessed.WithLabelValues(outcome).Inc()
}

// JobStarted marks a claimed job as in flight.
func JobStarted() {
	jobsInFlight.Inc()
}

// JobFinished removes a job from the in-flight gauge.
func JobFinished() {
	jobsInFlight.Dec()
}

// ObserveStage records how long one pipeline stage took.
func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// UnitRetried counts a retried generation unit.
func UnitRetried() {
	unitRetries.Inc()
}

// CacheLookup records a result cache lookup: "hit" or "miss".
func CacheLookup(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}
