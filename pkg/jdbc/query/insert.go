// Package query renders parameterized INSERT statements.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
)

// Dialect describes how a database spells statement placeholders.
type Dialect struct {
	Name string
	// Placeholder renders the placeholder for the 1-based parameter n
	Placeholder func(n int) string
}

var (
	// Question uses "?" for every parameter (MySQL, SQLite, Snowflake)
	Question = Dialect{Name: "question", Placeholder: func(int) string { return "?" }}
	// Dollar uses "$1", "$2", ... (PostgreSQL)
	Dollar = Dialect{Name: "dollar", Placeholder: func(n int) string { return "$" + strconv.Itoa(n) }}
	// AtP uses "@p1", "@p2", ... (SQL Server)
	AtP = Dialect{Name: "atp", Placeholder: func(n int) string { return "@p" + strconv.Itoa(n) }}
	// Colon uses ":1", ":2", ... (Oracle)
	Colon = Dialect{Name: "colon", Placeholder: func(n int) string { return ":" + strconv.Itoa(n) }}
)

// dialects maps driver and dialect names to their dialect.
var dialects = map[string]Dialect{
	"question":   Question,
	"mysql":      Question,
	"sqlite":     Question,
	"sqlite3":    Question,
	"snowflake":  Question,
	"dollar":     Dollar,
	"pgx":        Dollar,
	"postgres":   Dollar,
	"postgresql": Dollar,
	"atp":        AtP,
	"sqlserver":  AtP,
	"mssql":      AtP,
	"colon":      Colon,
	"oracle":     Colon,
	"godror":     Colon,
}

// DialectFor resolves a dialect by driver or dialect name. Unknown names
// fall back to Question.
func DialectFor(name string) Dialect {
	if d, ok := dialects[strings.ToLower(name)]; ok {
		return d
	}
	return Question
}

// ParseDialect resolves a dialect by name and fails on unknown names.
func ParseDialect(name string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return Dialect{}, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("unknown dialect %q", name))
	}
	return d, nil
}

// BuildInsert renders INSERT INTO table(c1,c2) VALUES(p1,p2). The output is
// a pure function of its arguments.
func BuildInsert(table string, columns []string, dialect Dialect) (string, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return "", errors.New(errors.ErrorTypeValidation, "table name is empty")
	}
	if len(columns) == 0 {
		return "", errors.New(errors.ErrorTypeValidation, "insert needs at least one column")
	}
	placeholder := dialect.Placeholder
	if placeholder == nil {
		placeholder = Question.Placeholder
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteByte('(')
	for i, c := range columns {
		if c == "" {
			return "", errors.New(errors.ErrorTypeValidation, fmt.Sprintf("column %d has no name", i))
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(c)
	}
	b.WriteString(") VALUES(")
	for i := range columns {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(placeholder(i + 1))
	}
	b.WriteByte(')')
	return b.String(), nil
}
