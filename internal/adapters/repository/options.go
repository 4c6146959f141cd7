package repository

import (
	"database/sql"
	"time"
)

// Option applies a configuration option to a SQL-backed store.
type Option func(*sqlStore)

// WithOperationTimeout bounds every statement issued by the store.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *sqlStore) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// withOpenFunc replaces sql.Open; used by tests.
func withOpenFunc(fn func(driverName, dsn string) (*sql.DB, error)) Option {
	return func(s *sqlStore) {
		if fn != nil {
			s.openDB = fn
		}
	}
}
