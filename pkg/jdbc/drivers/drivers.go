// Package drivers links the built-in database drivers into the binary.
// Importing it registers them with database/sql; drivers outside this set
// are loaded at runtime through the loader package.
package drivers

import (
	"database/sql"
	"slices"

	// PostgreSQL, registered as "pgx"
	_ "github.com/jackc/pgx/v5/stdlib"
	// MySQL, registered as "mysql"
	_ "github.com/go-sql-driver/mysql"
	// Snowflake, registered as "snowflake"
	_ "github.com/snowflakedb/gosnowflake"
	// SQLite, registered as "sqlite"
	_ "modernc.org/sqlite"
)

// BuiltIn lists the driver names this package registers.
var BuiltIn = []string{"mysql", "pgx", "snowflake", "sqlite"}

// IsBuiltIn reports whether name is one of the built-in drivers.
func IsBuiltIn(name string) bool {
	return slices.Contains(BuiltIn, name)
}

// Registered returns every driver name known to database/sql, sorted.
func Registered() []string {
	return sql.Drivers()
}
