package writer

import (
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/snowflakedb/gosnowflake"
	"modernc.org/sqlite"

	"github.com/hasnat/kafka-connect-jdbc/pkg/errors"
)

// DBError is the vendor detail extracted from a database error.
type DBError struct {
	Driver   string
	Code     string
	SQLState string
	Message  string
}

// Inspect looks for a known driver error in err's chain.
func Inspect(err error) (DBError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return DBError{Driver: "pgx", Code: pgErr.Code, SQLState: pgErr.Code, Message: pgErr.Message}, true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		state := ""
		if myErr.SQLState != [5]byte{} {
			state = string(myErr.SQLState[:])
		}
		return DBError{Driver: "mysql", Code: strconv.Itoa(int(myErr.Number)), SQLState: state, Message: myErr.Message}, true
	}

	var sfErr *gosnowflake.SnowflakeError
	if errors.As(err, &sfErr) {
		return DBError{Driver: "snowflake", Code: strconv.Itoa(sfErr.Number), SQLState: sfErr.SQLState, Message: sfErr.Message}, true
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return DBError{Driver: "sqlite", Code: strconv.Itoa(liteErr.Code()), Message: liteErr.Error()}, true
	}

	return DBError{}, false
}
