// Package metrics exposes Prometheus metrics for the harvest lifecycle.
//
// # Overview
//
// Every metric is registered with the default registry on package load:
//   - events, objects and crops seen by a harvesting module
//   - refiner runs, failures and durations
//   - artifacts written by output refiners
//   - event throughput of a host run
//
// # Basic Usage
//
//	metrics.EventsProcessed.WithLabelValues("tracks").Inc()
//
//	timer := metrics.NewTimer("save_histograms")
//	err := refiner.Refine(ctx, module, store, dir, group)
//	metrics.RefineDuration.WithLabelValues("tracks", "save_histograms").
//	    Observe(timer.Stop().Seconds())
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Object outcomes recorded by ObjectsSeen.
const (
	OutcomePicked   = "picked"
	OutcomeRejected = "rejected"
	OutcomeSkipped  = "skipped"
)

// Refiner run statuses recorded by RefinerRuns.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	// EventsProcessed counts the events a module has seen.
	// Labels: module
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_events_processed_total",
			Help: "Total number of events processed by a harvesting module",
		},
		[]string{"module"},
	)

	// ObjectsSeen counts the objects of the harvested collection.
	// Labels: module, outcome (picked/rejected/skipped)
	//
	// Example:
	//	metrics.ObjectsSeen.WithLabelValues("tracks", metrics.OutcomeSkipped).Inc()
	ObjectsSeen = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_objects_total",
			Help: "Objects of the harvested collection by outcome",
		},
		[]string{"module", "outcome"},
	)

	// CropsAccumulated counts the records pushed into the barn.
	// Labels: module
	CropsAccumulated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_crops_total",
			Help: "Total number of crop records accumulated",
		},
		[]string{"module"},
	)

	// RefinerRuns counts refiner invocations at terminate.
	// Labels: module, refiner, status (success/failure)
	RefinerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_refiner_runs_total",
			Help: "Refiner invocations by status",
		},
		[]string{"module", "refiner", "status"},
	)

	// RefineDuration tracks how long a refiner takes, in seconds.
	// Labels: module, refiner
	RefineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "harvest_refine_duration_seconds",
			Help: "Refiner duration in seconds",
			Buckets: []float64{
				0.001, // 1ms - figures of merit
				0.01,  // 10ms
				0.1,   // 100ms - histograms of large crops
				1,     // 1s - trees
				10,    // 10s - remote scopes
				60,
			},
		},
		[]string{"module", "refiner"},
	)

	// ArtifactsWritten counts the artifacts written by output refiners.
	// Labels: kind (json or the tree format)
	ArtifactsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_artifacts_written_total",
			Help: "Artifacts written by output refiners",
		},
		[]string{"kind"},
	)

	// Throughput tracks events per second of a host run.
	// Labels: module
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harvest_throughput_events_per_second",
			Help: "Current throughput in events per second",
		},
		[]string{"module"},
	)
)

// Timer measures the duration of an operation from its creation.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the name the timer was created with.
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks events per second over time windows. Safe for
// concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	module    string
}

// NewThroughputTracker creates a tracker reporting under the module label.
func NewThroughputTracker(module string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		module:    module,
	}
}

// Increment adds n to the event count.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset computes the throughput since the last reset, publishes it
// and starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed
	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.module).Set(throughput)
	return throughput
}
