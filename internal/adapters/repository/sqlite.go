package repository

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const sqliteBusyTimeoutMS = 10_000

var sqliteDialect = dialect{ //nolint:gochecknoglobals // immutable dialect table
	driver:      "sqlite",
	floatType:   "REAL",
	boolType:    "BOOLEAN",
	placeholder: func(int) string { return "?" },
}

// NewSQLiteStore returns a Store backed by the SQLite file at path. The
// database is opened and migrated on first use with WAL journaling and a busy
// timeout applied to every pooled connection. path ":memory:" yields a
// private in-memory database pinned to a single connection.
func NewSQLiteStore(path string, opts ...Option) (Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrInvalidInput
	}
	s := newSQLStore(sqliteDSN(path), sqliteDialect, opts...)
	if path == ":memory:" {
		s.prepare = func(db *sql.DB) { db.SetMaxOpenConns(1) }
	}
	return s, nil
}

func sqliteDSN(path string) string {
	pragmas := []string{
		"foreign_keys(1)",
		"journal_mode(WAL)",
		fmt.Sprintf("busy_timeout(%d)", sqliteBusyTimeoutMS),
		"synchronous(NORMAL)",
	}
	var b strings.Builder
	b.WriteString(path)
	for i, p := range pragmas {
		if i == 0 && !strings.Contains(path, "?") {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString("_pragma=")
		b.WriteString(p)
	}
	return b.String()
}
