// Package metrics provides Prometheus metrics for the JDBC sink.
//
// # Basic Usage
//
//	// Count records written to a table
//	metrics.RecordsWritten.WithLabelValues("orders", metrics.StatusSuccess).Add(float64(n))
//
//	// Time a write
//	timer := metrics.NewTimer()
//	err := writer.Write(ctx, records)
//	metrics.WriteLatency.WithLabelValues("orders").Observe(timer.Stop().Seconds())
//
// All metrics are registered with the default registry on package init.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values
const (
	StatusSuccess = "success"
	StatusDropped = "dropped"
	StatusFailed  = "failed"
)

// Driver load result label values
const (
	DriverLoaded        = "loaded"
	DriverAlreadyLoaded = "already_loaded"
	DriverFailed        = "failed"
)

var (
	// RecordsWritten counts records handed to the writer.
	// Labels: table, status (success/dropped/failed)
	RecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jdbc_sink_records_written_total",
			Help: "Total number of records written, dropped or failed",
		},
		[]string{"table", "status"},
	)

	// StatementsPrepared counts statements prepared by the statement builders.
	// With batching this grows with the number of distinct record shapes, not
	// the number of records.
	StatementsPrepared = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jdbc_sink_statements_prepared_total",
			Help: "Total number of insert statements prepared",
		},
		[]string{"table"},
	)

	// BatchShapes tracks the number of distinct record shapes per batch
	BatchShapes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jdbc_sink_batch_shapes",
			Help:    "Distinct record shapes per written batch",
			Buckets: []float64{1, 2, 3, 5, 10, 25, 50},
		},
		[]string{"table"},
	)

	// WriteLatency tracks the duration of one batch write in seconds, from
	// acquiring the connection to commit.
	WriteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jdbc_sink_write_duration_seconds",
			Help:    "Batch write latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"table"},
	)

	// DriverLoads counts driver load attempts.
	// Labels: driver, result (loaded/already_loaded/failed)
	DriverLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jdbc_sink_driver_loads_total",
			Help: "Driver load attempts by result",
		},
		[]string{"driver", "result"},
	)

	// RecordsConsumed counts messages converted from the upstream log
	RecordsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jdbc_sink_records_consumed_total",
			Help: "Total number of messages consumed",
		},
		[]string{"topic", "status"},
	)

	// ActiveTasks tracks running sink tasks
	ActiveTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jdbc_sink_active_tasks",
			Help: "Number of running sink tasks",
		},
	)

	// Throughput tracks records per second per task
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jdbc_sink_throughput_records_per_second",
			Help: "Current throughput in records per second",
		},
		[]string{"task"},
	)
)

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks records per second over time windows.
// Safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	task      string
}

// NewThroughputTracker creates a throughput tracker for one task.
func NewThroughputTracker(task string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		task:      task,
	}
}

// Increment adds n to the record count.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the throughput since the last reset, publishes it
// to the Throughput gauge and resets the window.
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

	Throughput.WithLabelValues(t.task).Set(throughput)

	return throughput
}

// Forget removes the per-task series once a task stops.
func (t *ThroughputTracker) Forget() {
	Throughput.DeleteLabelValues(t.task)
}
