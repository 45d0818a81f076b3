package writer

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
	"github.com/hasnat/kafka-connect-jdbc/pkg/jdbc/extract"
	"github.com/hasnat/kafka-connect-jdbc/pkg/jdbc/query"
	"github.com/hasnat/kafka-connect-jdbc/pkg/logger"
	"github.com/hasnat/kafka-connect-jdbc/pkg/metrics"
	"github.com/hasnat/kafka-connect-jdbc/pkg/models"
)

// StatementBuilder turns a batch of records into prepared statements with
// their rows queued. Ownership of the returned statements passes to the
// caller, who must close them.
type StatementBuilder interface {
	Build(ctx context.Context, records []*models.Record, conn Preparer) ([]*BatchedStatement, error)
}

// BatchedBuilder prepares one statement per distinct record shape and
// queues every record of that shape on it.
type BatchedBuilder struct {
	table     string
	extractor extract.FieldsExtractor
	dialect   query.Dialect
}

// NewBatchedBuilder creates a BatchedBuilder inserting into table.
func NewBatchedBuilder(table string, extractor extract.FieldsExtractor, dialect query.Dialect) *BatchedBuilder {
	return &BatchedBuilder{table: table, extractor: extractor, dialect: dialect}
}

// Build implements StatementBuilder. Statements are returned in the order
// their shape first appeared in records.
//
// Every record is validated before anything is prepared: a record whose
// value is not a struct fails the call with a validation error and no
// statement is created. Records that yield no columns are skipped.
func (b *BatchedBuilder) Build(ctx context.Context, records []*models.Record, conn Preparer) ([]*BatchedStatement, error) {
	return build(ctx, b.table, b.extractor, b.dialect, records, conn, true)
}

// SingleBuilder prepares a separate statement for every record. It is used
// when batching is disabled for databases that mishandle reused
// statements.
type SingleBuilder struct {
	table     string
	extractor extract.FieldsExtractor
	dialect   query.Dialect
}

// NewSingleBuilder creates a SingleBuilder inserting into table.
func NewSingleBuilder(table string, extractor extract.FieldsExtractor, dialect query.Dialect) *SingleBuilder {
	return &SingleBuilder{table: table, extractor: extractor, dialect: dialect}
}

// Build implements StatementBuilder with one statement per non-empty record.
func (b *SingleBuilder) Build(ctx context.Context, records []*models.Record, conn Preparer) ([]*BatchedStatement, error) {
	return build(ctx, b.table, b.extractor, b.dialect, records, conn, false)
}

type row struct {
	record *models.Record
	pairs  []extract.Pair
}

// extractRows validates every record and extracts its pairs.
func extractRows(records []*models.Record, extractor extract.FieldsExtractor) ([]row, error) {
	rows := make([]row, 0, len(records))
	for _, r := range records {
		s, ok := r.Struct()
		if !ok {
			err := errors.New(errors.ErrorTypeValidation, "the record payload should be a struct")
			if r != nil {
				err = err.WithDetail("topic", r.Topic).
					WithDetail("partition", r.Partition).
					WithDetail("offset", r.Offset)
			}
			return nil, err
		}
		pairs, err := extractor.Get(s)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to extract fields").
				WithDetail("topic", r.Topic).
				WithDetail("offset", r.Offset)
		}
		if len(pairs) == 0 {
			continue
		}
		rows = append(rows, row{record: r, pairs: pairs})
	}
	return rows, nil
}

func build(ctx context.Context, table string, extractor extract.FieldsExtractor, dialect query.Dialect,
	records []*models.Record, conn Preparer, grouped bool) (statements []*BatchedStatement, err error) {
	rows, err := extractRows(records, extractor)
	if err != nil {
		return nil, err
	}

	log := logger.WithContext(ctx).With(zap.String("component", "statement_builder"), zap.String("table", table))
	byKey := make(map[string]*BatchedStatement)

	defer func() {
		if err != nil {
			closeAll(statements)
			statements = nil
		}
	}()

	for i, r := range rows {
		log.Debug("received record",
			zap.String("topic", r.record.Topic),
			zap.Int32("partition", r.record.Partition),
			zap.Int64("offset", r.record.Offset))

		columns := extract.Columns(r.pairs)
		key := ShapeKey(columns)
		if !grouped {
			key = strconv.Itoa(i)
		}

		st, ok := byKey[key]
		if !ok {
			q, err := query.BuildInsert(table, columns, dialect)
			if err != nil {
				return statements, err
			}
			stmt, err := conn.PrepareContext(ctx, q)
			if err != nil {
				return statements, errors.Wrap(err, errors.ErrorTypeExecution, "failed to prepare insert").
					WithDetail("query", q)
			}
			st = newBatchedStatement(key, q, columns, stmt)
			byKey[key] = st
			statements = append(statements, st)
			metrics.StatementsPrepared.WithLabelValues(table).Inc()
		}

		for idx, p := range r.pairs {
			if err := p.Binder.Bind(st, idx); err != nil {
				return statements, err
			}
		}
		if err := st.AddBatch(); err != nil {
			return statements, err
		}
	}
	return statements, nil
}
