// Package metrics exposes prometheus instrumentation for the scheduler.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/athulya-anil/axon-ingest/pkg/models"
)

const (
	namespace = "axon"
	subsystem = "ingest"
)

var (
	requestsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_submitted_total",
			Help:      "Count of accepted ingestion requests by priority.",
		},
		[]string{"priority"},
	)
	requestsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_rejected_total",
			Help:      "Count of submissions rejected by validation.",
		},
	)
	chunksDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "chunks_dispatched_total",
			Help:      "Count of chunks run by the dispatch loop by priority.",
		},
		[]string{"priority"},
	)
	unitFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "unit_failures_total",
			Help:      "Count of identifiers whose processor call failed.",
		},
	)
	dispatchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatch_failures_total",
			Help:      "Count of dispatch cycles that failed and were recovered.",
		},
	)
	chunkDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "chunk_duration_seconds",
			Help:      "Time spent processing one chunk.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
	laneDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "lane_depth",
			Help:      "Chunks waiting in each priority lane.",
		},
		[]string{"priority"},
	)
)

var registerMetrics sync.Once

// Register registers all metrics with the default prometheus registry.
func Register() {
	registerMetrics.Do(func() {
		prometheus.MustRegister(
			requestsSubmitted,
			requestsRejected,
			chunksDispatched,
			unitFailures,
			dispatchFailures,
			chunkDuration,
			laneDepth,
		)
	})
}

// RecordSubmitted counts an accepted request.
func RecordSubmitted(p models.Priority) {
	requestsSubmitted.WithLabelValues(string(p)).Inc()
}

// RecordRejected counts a submission that failed validation.
func RecordRejected() {
	requestsRejected.Inc()
}

// RecordChunk counts a dispatched chunk and how long it took.
func RecordChunk(p models.Priority, d time.Duration) {
	chunksDispatched.WithLabelValues(string(p)).Inc()
	chunkDuration.Observe(d.Seconds())
}

// RecordUnitFailure counts one failed identifier.
func RecordUnitFailure() {
	unitFailures.Inc()
}

// RecordDispatchFailure counts a recovered dispatch cycle failure.
func RecordDispatchFailure() {
	dispatchFailures.Inc()
}

// SetLaneDepths publishes the current backlog per lane.
func SetLaneDepths(depths map[models.Priority]int) {
	for p, n := range depths {
		laneDepth.WithLabelValues(string(p)).Set(float64(n))
	}
}
