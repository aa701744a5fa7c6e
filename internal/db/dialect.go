package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Dialects accepted by Open.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

func isSQLite(conn *gorm.DB) bool {
	return conn != nil && conn.Dialector != nil && conn.Dialector.Name() == DialectSQLite
}

// PrefixSearch builds a case-insensitive prefix match for column. It returns
// the WHERE expression and its bind argument, portable across PostgreSQL and
// the SQLite used in tests.
func PrefixSearch(conn *gorm.DB, column, term string) (string, string) {
	if isSQLite(conn) {
		return fmt.Sprintf("LOWER(%s) LIKE ?", column), strings.ToLower(term) + "%"
	}
	return fmt.Sprintf("%s ILIKE ?", column), term + "%"
}

// JSONTextEq builds an equality test against a text field inside a JSON
// column. The bind argument for the comparison value is left to the caller.
func JSONTextEq(conn *gorm.DB, column, key string) string {
	if isSQLite(conn) {
		return fmt.Sprintf("json_extract(%s, '$.%s') = ?", column, key)
	}
	return fmt.Sprintf("%s->>'%s' = ?", column, key)
}
