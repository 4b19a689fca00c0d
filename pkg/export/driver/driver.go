package driver

import (
	"context"
	"fmt"

	"mercator-hq/dbxport/pkg/export"
	"mercator-hq/dbxport/pkg/export/coerce"
)

// Kind identifies a supported database driver.
type Kind string

const (
	// KindSQLite is SQLite through the pure Go modernc.org/sqlite driver.
	KindSQLite Kind = "sqlite"
	// KindSQLite3 is SQLite through the cgo mattn/go-sqlite3 driver.
	KindSQLite3 Kind = "sqlite3"
	// KindPostgres is PostgreSQL through pgx.
	KindPostgres Kind = "postgres"
	// KindMySQL is MySQL or MariaDB through go-sql-driver/mysql.
	KindMySQL Kind = "mysql"
)

// Kinds returns every supported driver kind.
func Kinds() []Kind {
	return []Kind{KindSQLite, KindSQLite3, KindPostgres, KindMySQL}
}

// Valid reports whether k is a supported driver kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSQLite, KindSQLite3, KindPostgres, KindMySQL:
		return true
	}
	return false
}

// Dialect returns the native type system of the driver.
func (k Kind) Dialect() coerce.Dialect {
	switch k {
	case KindPostgres:
		return coerce.Postgres
	case KindMySQL:
		return coerce.MySQL
	}
	return coerce.SQLite
}

// sqlName is the database/sql driver name registered by the underlying
// package.
func (k Kind) sqlName() string {
	switch k {
	case KindPostgres:
		return "pgx"
	case KindSQLite3:
		return "sqlite3"
	case KindMySQL:
		return "mysql"
	}
	return "sqlite"
}

// Driver connects to one database family.
type Driver interface {
	Kind() Kind
	Connect(ctx context.Context, dsn string) (Conn, error)
}

// Conn is a single live connection.
type Conn interface {
	// Query executes an opaque query and returns its schema and rows.
	// The sequence must be closed before the connection.
	Query(ctx context.Context, query string) (*export.Schema, RowSequence, error)
	Close() error
}

// RowSequence is a finite, pull-based stream of rows in server order. Next
// returns io.EOF once exhausted. Close releases the server cursor and is safe
// to call more than once.
type RowSequence interface {
	Next(ctx context.Context) (export.Row, error)
	Close() error
}

// Open returns the adapter for kind.
func Open(kind Kind) (*SQLDriver, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown driver %q", kind)
	}
	return newSQLDriver(kind), nil
}
