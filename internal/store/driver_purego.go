//go:build !cgo

package store

import (
	"database/sql"
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Pure-Go SQLite for CGO_ENABLED=0 builds.
func openSQLite(path string) (*sql.DB, error) {
	return sql.Open("sqlite", sqliteDSN(path,
		"_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate"))
}

func isSQLiteUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	if code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	// Primary result code only when extended codes are off.
	return code == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE constraint failed")
}

func sqliteDSN(path, params string) string {
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}
