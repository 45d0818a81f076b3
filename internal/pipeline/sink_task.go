// Package pipeline runs sink tasks. A task couples one source with one
// destination: every batch the source delivers passes through the task's
// transforms and is written before the next batch is accepted, so the
// source only commits positions of persisted or deliberately dropped
// records.
//
// # Basic Usage
//
//	task := pipeline.NewSinkTask(source, destination, logger)
//	task.AddTransform(pipeline.TopicFilter("orders"))
//	err := task.Run(ctx)
//
// Several tasks sharing one consumer group run under a Runner, which stops
// all of them on the first fatal error.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hasnat/kafka-connect-jdbc/pkg/connector/core"
	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
	"github.com/hasnat/kafka-connect-jdbc/pkg/logger"
	"github.com/hasnat/kafka-connect-jdbc/pkg/metrics"
	"github.com/hasnat/kafka-connect-jdbc/pkg/models"
)

// throughputInterval is how often a running task publishes its throughput.
const throughputInterval = 5 * time.Second

// Transform modifies a record before it is written. Returning a nil record
// drops it from the batch; returning an error fails the batch.
type Transform func(ctx context.Context, record *models.Record) (*models.Record, error)

// SinkTask moves batches from a source to a destination.
type SinkTask struct {
	id          string
	source      core.Source
	destination core.Destination
	transforms  []Transform

	throughput *metrics.ThroughputTracker
	logger     *zap.Logger

	// mu keeps a single batch in flight per task
	mu sync.Mutex

	batches  atomic.Int64
	written  atomic.Int64
	filtered atomic.Int64
	started  time.Time
}

// Stats is a snapshot of a task's counters.
type Stats struct {
	ID       string        `json:"id"`
	Batches  int64         `json:"batches"`
	Written  int64         `json:"written"`
	Filtered int64         `json:"filtered"`
	Uptime   time.Duration `json:"uptime"`
}

// NewSinkTask creates a task with a random id.
func NewSinkTask(source core.Source, destination core.Destination, log *zap.Logger) *SinkTask {
	id := uuid.NewString()
	if log == nil {
		log = logger.Get()
	}
	return &SinkTask{
		id:          id,
		source:      source,
		destination: destination,
		throughput:  metrics.NewThroughputTracker(id),
		logger: log.With(
			zap.String("component", "sink_task"),
			zap.String("task_id", id),
			zap.String("source", source.Name()),
			zap.String("destination", destination.Name())),
	}
}

// ID returns the task id.
func (t *SinkTask) ID() string {
	return t.id
}

// AddTransform appends a transform. Transforms run in the order added.
func (t *SinkTask) AddTransform(tr Transform) {
	t.transforms = append(t.transforms, tr)
}

// Run initializes both connectors and consumes until ctx is done or a
// batch fails. Both connectors are closed before Run returns.
func (t *SinkTask) Run(ctx context.Context) error {
	ctx = context.WithValue(ctx, logger.TaskIDKey, t.id)
	t.started = time.Now()

	if err := t.destination.Initialize(ctx); err != nil {
		return errors.Wrap(err, errors.TypeOf(err), "failed to initialize destination")
	}
	defer t.closeConnector(t.destination)

	if err := t.source.Initialize(ctx); err != nil {
		return errors.Wrap(err, errors.TypeOf(err), "failed to initialize source")
	}
	defer t.closeConnector(t.source)

	metrics.ActiveTasks.Inc()
	defer metrics.ActiveTasks.Dec()
	defer t.throughput.Forget()

	reporterCtx, stopReporter := context.WithCancel(ctx)
	defer stopReporter()
	go t.reportThroughput(reporterCtx)

	t.logger.Info("sink task started", zap.Int("transforms", len(t.transforms)))
	err := t.source.Consume(ctx, t.handle)

	stats := t.Stats()
	fields := []zap.Field{
		zap.Int64("batches", stats.Batches),
		zap.Int64("records_written", stats.Written),
		zap.Int64("records_filtered", stats.Filtered),
		zap.Duration("uptime", stats.Uptime),
	}
	if err != nil {
		t.logger.Error("sink task failed", append(fields, zap.Error(err))...)
		return err
	}
	t.logger.Info("sink task stopped", fields...)
	return nil
}

// handle is the source's batch handler.
func (t *SinkTask) handle(ctx context.Context, records []*models.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	batch, err := t.transform(ctx, records)
	if err != nil {
		return err
	}
	if len(batch) > 0 {
		if err := t.destination.Write(ctx, batch); err != nil {
			return err
		}
	}

	t.batches.Add(1)
	t.written.Add(int64(len(batch)))
	t.filtered.Add(int64(len(records) - len(batch)))
	t.throughput.Increment(int64(len(batch)))
	return nil
}

func (t *SinkTask) transform(ctx context.Context, records []*models.Record) ([]*models.Record, error) {
	if len(t.transforms) == 0 {
		return records, nil
	}
	out := make([]*models.Record, 0, len(records))
	for _, r := range records {
		for _, tr := range t.transforms {
			var err error
			if r, err = tr(ctx, r); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeValidation, "transform failed")
			}
			if r == nil {
				break
			}
		}
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *SinkTask) reportThroughput(ctx context.Context) {
	ticker := time.NewTicker(throughputInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.throughput.GetAndReset()
		}
	}
}

func (t *SinkTask) closeConnector(c core.Connector) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		t.logger.Warn("failed to close connector", zap.String("connector", c.Name()), zap.Error(err))
	}
}

// Stats returns a snapshot of the task's counters.
func (t *SinkTask) Stats() Stats {
	var uptime time.Duration
	if !t.started.IsZero() {
		uptime = time.Since(t.started)
	}
	return Stats{
		ID:       t.id,
		Batches:  t.batches.Load(),
		Written:  t.written.Load(),
		Filtered: t.filtered.Load(),
		Uptime:   uptime,
	}
}

// TopicFilter keeps only records from the given topics.
func TopicFilter(topics ...string) Transform {
	allowed := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		allowed[topic] = struct{}{}
	}
	return func(_ context.Context, r *models.Record) (*models.Record, error) {
		if _, ok := allowed[r.Topic]; !ok {
			return nil, nil
		}
		return r, nil
	}
}

// DropTombstones removes records without a value.
func DropTombstones() Transform {
	return func(_ context.Context, r *models.Record) (*models.Record, error) {
		if r.Value == nil {
			return nil, nil
		}
		return r, nil
	}
}
