// Package writer builds batched insert statements from records, executes
// them in a transaction and applies the configured error policy when that
// fails.
package writer

import (
	"context"
	"database/sql"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
	"github.com/hasnat/kafka-connect-jdbc/pkg/logger"
	"github.com/hasnat/kafka-connect-jdbc/pkg/metrics"
	"github.com/hasnat/kafka-connect-jdbc/pkg/models"
)

const tracerName = "github.com/hasnat/kafka-connect-jdbc/pkg/jdbc/writer"

// Writer writes record batches into one table.
type Writer struct {
	db      *sql.DB
	table   string
	builder StatementBuilder
	policy  ErrorHandlingPolicy
	timeout time.Duration
	tracer  trace.Tracer
	logger  *zap.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithTimeout bounds each Write call.
func WithTimeout(d time.Duration) Option {
	return func(w *Writer) { w.timeout = d }
}

// WithTracerProvider sets the provider spans are created with. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(w *Writer) { w.tracer = tp.Tracer(tracerName) }
}

// NewWriter creates a Writer.
func NewWriter(db *sql.DB, table string, builder StatementBuilder, policy ErrorHandlingPolicy, opts ...Option) *Writer {
	w := &Writer{
		db:      db,
		table:   table,
		builder: builder,
		policy:  policy,
		tracer:  otel.Tracer(tracerName),
		logger:  logger.With(zap.String("component", "jdbc_writer"), zap.String("table", table)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write inserts records in a single transaction on a dedicated connection.
//
// An invalid record fails the call with a validation error and the error
// policy is not consulted. Any failure to connect, prepare, execute or
// commit rolls the transaction back and is handed to the error policy,
// whose result is returned.
func (w *Writer) Write(ctx context.Context, records []*models.Record) error {
	if len(records) == 0 {
		return nil
	}

	ctx, span := w.tracer.Start(ctx, "jdbc.write", trace.WithAttributes(
		attribute.String("db.sql.table", w.table),
		attribute.Int("records", len(records)),
	))
	defer span.End()

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	timer := metrics.NewTimer()

	conn, err := w.db.Conn(ctx)
	if err != nil {
		return w.fail(ctx, span, records, errors.Wrap(err, errors.ErrorTypeConnection, "failed to acquire connection"), w.db)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return w.fail(ctx, span, records, errors.Wrap(err, errors.ErrorTypeExecution, "failed to begin transaction"), conn)
	}

	statements, err := w.builder.Build(ctx, records, tx)
	if err != nil {
		_ = tx.Rollback()
		if errors.IsType(err, errors.ErrorTypeValidation) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid records")
			metrics.RecordsWritten.WithLabelValues(w.table, metrics.StatusFailed).Add(float64(len(records)))
			return err
		}
		return w.fail(ctx, span, records, err, conn)
	}
	defer closeAll(statements)

	var affected int64
	queued := 0
	for _, st := range statements {
		queued += st.Len()
		n, err := st.ExecBatch(ctx)
		if err != nil {
			_ = tx.Rollback()
			return w.fail(ctx, span, records, err, conn)
		}
		affected += n
	}

	if err := tx.Commit(); err != nil {
		return w.fail(ctx, span, records, errors.Wrap(err, errors.ErrorTypeExecution, "failed to commit"), conn)
	}

	elapsed := timer.Stop()
	metrics.RecordsWritten.WithLabelValues(w.table, metrics.StatusSuccess).Add(float64(queued))
	metrics.BatchShapes.WithLabelValues(w.table).Observe(float64(len(statements)))
	metrics.WriteLatency.WithLabelValues(w.table).Observe(elapsed.Seconds())
	span.SetAttributes(
		attribute.Int("statements", len(statements)),
		attribute.Int64("rows_affected", affected),
	)

	w.logger.Debug("batch written",
		zap.Int("records", len(records)),
		zap.Int("rows", queued),
		zap.Int("statements", len(statements)),
		zap.Int64("rows_affected", affected),
		zap.Duration("duration", elapsed))
	return nil
}

func (w *Writer) fail(ctx context.Context, span trace.Span, records []*models.Record, cause error, conn Preparer) error {
	fields := []zap.Field{zap.Int("records", len(records)), zap.Error(cause)}
	if dbErr, ok := Inspect(cause); ok {
		fields = append(fields,
			zap.String("db_driver", dbErr.Driver),
			zap.String("db_code", dbErr.Code),
			zap.String("sql_state", dbErr.SQLState))
		span.SetAttributes(attribute.String("db.error_code", dbErr.Code))
	}
	span.RecordError(cause)
	w.logger.Error("batch write failed", fields...)

	if err := w.policy.Handle(ctx, records, cause, conn); err != nil {
		span.SetStatus(codes.Error, "write failed")
		metrics.RecordsWritten.WithLabelValues(w.table, metrics.StatusFailed).Add(float64(len(records)))
		return err
	}
	metrics.RecordsWritten.WithLabelValues(w.table, metrics.StatusDropped).Add(float64(len(records)))
	return nil
}
