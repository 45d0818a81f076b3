package writer

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasnat/kafka-connect-jdbc/pkg/config"
	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
	"github.com/hasnat/kafka-connect-jdbc/pkg/jdbc/extract"
	"github.com/hasnat/kafka-connect-jdbc/pkg/jdbc/query"
	"github.com/hasnat/kafka-connect-jdbc/pkg/models"
	"github.com/hasnat/kafka-connect-jdbc/pkg/testutil"
)

const tableDDL = "CREATE TABLE T(a INTEGER, b INTEGER, c INTEGER)"

var abcSchema = models.MustSchema("abc",
	models.Field{Name: "a", Type: models.Int32, Optional: true},
	models.Field{Name: "b", Type: models.Int32, Optional: true},
	models.Field{Name: "c", Type: models.Int32, Optional: true},
)

// abc builds a record from alternating field names and values; fields not
// named stay null.
func abc(offset int64, kv ...any) *models.Record {
	s := models.NewStruct(abcSchema)
	for i := 0; i < len(kv); i += 2 {
		s.MustPut(kv[i].(string), int32(kv[i+1].(int)))
	}
	return &models.Record{Topic: "t", Partition: 0, Offset: offset, Value: s}
}

// countingPreparer counts prepares and can fail the n-th one.
type countingPreparer struct {
	inner    Preparer
	calls    int
	failOn   int
	prepared []*sql.Stmt
}

func (p *countingPreparer) PrepareContext(ctx context.Context, q string) (*sql.Stmt, error) {
	p.calls++
	if p.failOn > 0 && p.calls == p.failOn {
		return nil, errors.New(errors.ErrorTypeExecution, "prepare refused")
	}
	stmt, err := p.inner.PrepareContext(ctx, q)
	if err == nil {
		p.prepared = append(p.prepared, stmt)
	}
	return stmt, err
}

func includeAll() extract.FieldsExtractor {
	return extract.New(config.IncludeAllFields())
}

func beginTx(t *testing.T, db *sql.DB) *sql.Tx {
	t.Helper()
	tx, err := db.Begin()
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback() })
	return tx
}

func TestBatchedBuilderGroupsByShape(t *testing.T) {
	db := testutil.OpenSQLite(t, tableDDL)
	tx := beginTx(t, db)
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	records := []*models.Record{
		abc(0, "a", 1, "b", 2),
		abc(1, "a", 3, "b", 4),
		abc(2, "c", 5),
	}

	statements, err := NewBatchedBuilder("T", includeAll(), query.Question).Build(ctx, records, tx)
	require.NoError(t, err)
	defer closeAll(statements)

	require.Len(t, statements, 2)
	assert.Equal(t, "INSERT INTO T(a,b) VALUES(?,?)", statements[0].Query())
	assert.Equal(t, 2, statements[0].Len())
	assert.Equal(t, [][]any{{int64(1), int64(2)}, {int64(3), int64(4)}}, statements[0].Rows())
	assert.Equal(t, "INSERT INTO T(c) VALUES(?)", statements[1].Query())
	assert.Equal(t, 1, statements[1].Len())

	var total int64
	for _, st := range statements {
		n, err := st.ExecBatch(ctx)
		require.NoError(t, err)
		total += n
		assert.Equal(t, 0, st.Len())
	}
	assert.Equal(t, int64(3), total)
	require.NoError(t, tx.Commit())
	assert.Equal(t, 3, testutil.CountRows(t, db, "T"))
}

func TestBatchedBuilderStatementCountMatchesShapes(t *testing.T) {
	db := testutil.OpenSQLite(t, tableDDL)
	tx := beginTx(t, db)
	p := &countingPreparer{inner: tx}

	var records []*models.Record
	for i := 0; i < 50; i++ {
		switch i % 3 {
		case 0:
			records = append(records, abc(int64(i), "a", i))
		case 1:
			records = append(records, abc(int64(i), "a", i, "c", i))
		default:
			records = append(records, abc(int64(i), "b", i))
		}
	}

	statements, err := NewBatchedBuilder("T", includeAll(), query.Question).Build(context.Background(), records, p)
	require.NoError(t, err)
	defer closeAll(statements)

	assert.Len(t, statements, 3)
	assert.Equal(t, 3, p.calls)
	rows := 0
	for _, st := range statements {
		rows += st.Len()
	}
	assert.Equal(t, len(records), rows)
}

func TestBatchedBuilderSkipsEmptyRecords(t *testing.T) {
	db := testutil.OpenSQLite(t, tableDDL)
	tx := beginTx(t, db)

	records := []*models.Record{abc(0), abc(1, "a", 1), abc(2)}
	statements, err := NewBatchedBuilder("T", includeAll(), query.Question).Build(context.Background(), records, tx)
	require.NoError(t, err)
	defer closeAll(statements)

	require.Len(t, statements, 1)
	assert.Equal(t, 1, statements[0].Len())

	none, err := NewBatchedBuilder("T", includeAll(), query.Question).Build(context.Background(), []*models.Record{abc(0)}, tx)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBatchedBuilderRejectsInvalidRecordsBeforePreparing(t *testing.T) {
	tests := []struct {
		name string
		bad  *models.Record
	}{
		{name: "nil value", bad: &models.Record{Topic: "t", Offset: 9}},
		{name: "map value", bad: &models.Record{Topic: "t", Offset: 9, Value: map[string]any{"a": 1}}},
		{name: "nil record"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.OpenSQLite(t, tableDDL)
			p := &countingPreparer{inner: beginTx(t, db)}

			records := []*models.Record{abc(0, "a", 1), tt.bad, abc(2, "c", 3)}
			statements, err := NewBatchedBuilder("T", includeAll(), query.Question).Build(context.Background(), records, p)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
			assert.Nil(t, statements)
			assert.Equal(t, 0, p.calls)
		})
	}
}

func TestBatchedBuilderClosesStatementsOnFailure(t *testing.T) {
	db := testutil.OpenSQLite(t, tableDDL)
	p := &countingPreparer{inner: beginTx(t, db), failOn: 2}

	records := []*models.Record{abc(0, "a", 1), abc(1, "b", 2)}
	statements, err := NewBatchedBuilder("T", includeAll(), query.Question).Build(context.Background(), records, p)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeExecution))
	assert.Nil(t, statements)

	require.Len(t, p.prepared, 1)
	_, err = p.prepared[0].Exec(int64(1))
	assert.Error(t, err, "statement should be closed")
}

func TestBatchedBuilderIsOrderSensitive(t *testing.T) {
	ab := models.MustSchema("ab",
		models.Field{Name: "a", Type: models.Int32},
		models.Field{Name: "b", Type: models.Int32})
	ba := models.MustSchema("ba",
		models.Field{Name: "b", Type: models.Int32},
		models.Field{Name: "a", Type: models.Int32})

	records := []*models.Record{
		{Value: models.NewStruct(ab).MustPut("a", int32(1)).MustPut("b", int32(2))},
		{Value: models.NewStruct(ba).MustPut("a", int32(3)).MustPut("b", int32(4))},
	}

	db := testutil.OpenSQLite(t, tableDDL)
	statements, err := NewBatchedBuilder("T", includeAll(), query.Question).Build(context.Background(), records, beginTx(t, db))
	require.NoError(t, err)
	defer closeAll(statements)

	require.Len(t, statements, 2)
	assert.Equal(t, []string{"a", "b"}, statements[0].Columns())
	assert.Equal(t, []string{"b", "a"}, statements[1].Columns())
}

func TestSingleBuilder(t *testing.T) {
	db := testutil.OpenSQLite(t, tableDDL)
	tx := beginTx(t, db)

	records := []*models.Record{abc(0, "a", 1), abc(1, "a", 2), abc(2), abc(3, "c", 3)}
	statements, err := NewSingleBuilder("T", includeAll(), query.Question).Build(context.Background(), records, tx)
	require.NoError(t, err)
	defer closeAll(statements)

	require.Len(t, statements, 3)
	for _, st := range statements {
		assert.Equal(t, 1, st.Len())
	}
}

func TestShapeKey(t *testing.T) {
	assert.Equal(t, ShapeKey([]string{"a", "b"}), ShapeKey([]string{"a", "b"}))
	assert.NotEqual(t, ShapeKey([]string{"a", "b"}), ShapeKey([]string{"b", "a"}))
	assert.NotEqual(t, ShapeKey([]string{"ab", "c"}), ShapeKey([]string{"a", "bc"}))
}

func TestBatchedStatementParams(t *testing.T) {
	st := newBatchedStatement("k", "q", []string{"a", "b"}, nil)

	assert.Error(t, st.SetParam(2, 1))
	assert.Error(t, st.SetParam(-1, 1))

	require.NoError(t, st.SetParam(0, 1))
	err := st.AddBatch()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "(b)")

	require.NoError(t, st.SetParam(1, 2))
	require.NoError(t, st.AddBatch())
	assert.Equal(t, 1, st.Len())

	// the next row starts unbound
	assert.Error(t, st.AddBatch())
	assert.NoError(t, st.Close())
}
