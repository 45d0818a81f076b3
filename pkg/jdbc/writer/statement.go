package writer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
	"github.com/hasnat/kafka-connect-jdbc/pkg/jdbc/binders"
)

// Preparer prepares statements. *sql.DB, *sql.Conn and *sql.Tx satisfy it.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// ShapeKey fingerprints an ordered column list. It is order sensitive:
// (a,b) and (b,a) are different shapes. Columns are joined with NUL, which
// cannot appear in an identifier, so distinct lists never share a key.
func ShapeKey(columns []string) string {
	return strings.Join(columns, "\x00")
}

// BatchedStatement is a prepared insert for one record shape plus the rows
// queued for it. database/sql has no batch API, so queued rows are kept
// here and executed one after another by ExecBatch.
type BatchedStatement struct {
	key     string
	query   string
	columns []string
	stmt    *sql.Stmt

	current []any
	bound   []bool
	rows    [][]any
}

var _ binders.Params = (*BatchedStatement)(nil)

func newBatchedStatement(key, query string, columns []string, stmt *sql.Stmt) *BatchedStatement {
	return &BatchedStatement{
		key:     key,
		query:   query,
		columns: columns,
		stmt:    stmt,
		current: make([]any, len(columns)),
		bound:   make([]bool, len(columns)),
	}
}

// Key returns the shape key of the statement.
func (s *BatchedStatement) Key() string { return s.key }

// Query returns the statement text.
func (s *BatchedStatement) Query() string { return s.query }

// Columns returns the statement's columns in parameter order.
func (s *BatchedStatement) Columns() []string { return s.columns }

// Len returns the number of queued rows.
func (s *BatchedStatement) Len() int { return len(s.rows) }

// Rows returns the queued rows. The result must not be modified.
func (s *BatchedStatement) Rows() [][]any { return s.rows }

// SetParam implements binders.Params.
func (s *BatchedStatement) SetParam(index int, value any) error {
	if index < 0 || index >= len(s.current) {
		return errors.New(errors.ErrorTypeValidation,
			fmt.Sprintf("parameter index %d out of range for %d columns", index, len(s.current)))
	}
	s.current[index] = value
	s.bound[index] = true
	return nil
}

// AddBatch queues the currently bound row. Every parameter must be bound.
func (s *BatchedStatement) AddBatch() error {
	for i, ok := range s.bound {
		if !ok {
			return errors.New(errors.ErrorTypeValidation, fmt.Sprintf("parameter %d (%s) is not bound", i, s.columns[i]))
		}
	}
	s.rows = append(s.rows, s.current)
	s.current = make([]any, len(s.columns))
	s.bound = make([]bool, len(s.columns))
	return nil
}

// ExecBatch executes every queued row and returns the total rows affected.
// Queued rows are cleared on success. On failure the rows already executed
// are not undone here; callers run the batch inside a transaction.
func (s *BatchedStatement) ExecBatch(ctx context.Context) (int64, error) {
	var affected int64
	for i, row := range s.rows {
		res, err := s.stmt.ExecContext(ctx, row...)
		if err != nil {
			return affected, errors.Wrap(err, errors.ErrorTypeExecution, "failed to execute batched insert").
				WithDetail("query", s.query).
				WithDetail("row", i)
		}
		if n, err := res.RowsAffected(); err == nil {
			affected += n
		}
	}
	s.rows = nil
	return affected, nil
}

// Close releases the prepared statement.
func (s *BatchedStatement) Close() error {
	if s.stmt == nil {
		return nil
	}
	return s.stmt.Close()
}

// closeAll closes statements, ignoring errors.
func closeAll(statements []*BatchedStatement) {
	for _, s := range statements {
		_ = s.Close()
	}
}
