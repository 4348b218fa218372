// Package metrics exposes Prometheus instruments for profile extraction and
// batch comparison.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pqgram"

var (
	// Labels: source (upload, store, job)
	profilesExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "profiles",
		Name:      "extracted_total",
		Help:      "Profiles extracted from source trees",
	}, []string{"source"})

	// Labels: stage (parse, build, extract)
	buildFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "profiles",
		Name:      "failures_total",
		Help:      "Sources that could not be turned into a profile",
	}, []string{"stage"})

	// Labels: mode (matrix, cross, nearest)
	comparisons = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "compare",
		Name:      "comparisons_total",
		Help:      "Pairwise profile comparisons performed",
	}, []string{"mode"})

	// Labels: mode
	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "compare",
		Name:      "batch_duration_seconds",
		Help:      "Wall time of one batch comparison",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	}, []string{"mode"})

	distances = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "compare",
		Name:      "distance",
		Help:      "Distribution of computed distances",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	})

	// Labels: status (completed, failed)
	jobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "finished_total",
		Help:      "Comparison jobs finished by final status",
	}, []string{"status"})
)

// RecordProfiles counts n profiles extracted for source.
func RecordProfiles(source string, n int) {
	profilesExtracted.WithLabelValues(source).Add(float64(n))
}

// RecordFailure counts one source that failed at stage.
func RecordFailure(stage string) {
	buildFailures.WithLabelValues(stage).Inc()
}

// RecordBatch records one batch run: how many comparisons it made and how
// long it took.
func RecordBatch(mode string, n int, d time.Duration) {
	comparisons.WithLabelValues(mode).Add(float64(n))
	batchDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// RecordDistances adds every distance to the distribution.
func RecordDistances(ds ...float64) {
	for _, d := range ds {
		distances.Observe(d)
	}
}

// RecordJob counts a job reaching a final status.
func RecordJob(status string) {
	jobs.WithLabelValues(status).Inc()
}
