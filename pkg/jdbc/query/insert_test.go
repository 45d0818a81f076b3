package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
)

func TestBuildInsert(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		columns []string
		dialect Dialect
		want    string
	}{
		{name: "question", table: "T", columns: []string{"a", "b"}, dialect: Question, want: "INSERT INTO T(a,b) VALUES(?,?)"},
		{name: "single column", table: "T", columns: []string{"c"}, dialect: Question, want: "INSERT INTO T(c) VALUES(?)"},
		{name: "dollar", table: "orders", columns: []string{"id", "qty", "note"}, dialect: Dollar, want: "INSERT INTO orders(id,qty,note) VALUES($1,$2,$3)"},
		{name: "atp", table: "dbo.orders", columns: []string{"id", "qty"}, dialect: AtP, want: "INSERT INTO dbo.orders(id,qty) VALUES(@p1,@p2)"},
		{name: "colon", table: "ORDERS", columns: []string{"ID"}, dialect: Colon, want: "INSERT INTO ORDERS(ID) VALUES(:1)"},
		{name: "zero dialect", table: "T", columns: []string{"a"}, want: "INSERT INTO T(a) VALUES(?)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildInsert(tt.table, tt.columns, tt.dialect)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildInsertInvalid(t *testing.T) {
	for _, tc := range []struct {
		table   string
		columns []string
	}{
		{table: "", columns: []string{"a"}},
		{table: "T"},
		{table: "T", columns: []string{"a", ""}},
	} {
		_, err := BuildInsert(tc.table, tc.columns, Question)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	}
}

func TestDialectFor(t *testing.T) {
	assert.Equal(t, "dollar", DialectFor("pgx").Name)
	assert.Equal(t, "dollar", DialectFor("Postgres").Name)
	assert.Equal(t, "question", DialectFor("mysql").Name)
	assert.Equal(t, "atp", DialectFor("sqlserver").Name)
	assert.Equal(t, "question", DialectFor("com.example.Driver").Name)

	_, err := ParseDialect("nope")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
