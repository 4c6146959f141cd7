package repository

import (
	"fmt"
	"strings"

	_ "github.com/lib/pq" // registers the "postgres" driver
)

var postgresDialect = dialect{ //nolint:gochecknoglobals // immutable dialect table
	driver:      "postgres",
	floatType:   "DOUBLE PRECISION",
	boolType:    "BOOLEAN",
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
}

// NewPostgresStore returns a Store backed by PostgreSQL. The connection is
// opened and the schema created lazily on first use.
func NewPostgresStore(dsn string, opts ...Option) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrInvalidInput
	}
	return newSQLStore(dsn, postgresDialect, opts...), nil
}
