package driver

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/mattn/go-sqlite3"    // registers "sqlite3"
	_ "modernc.org/sqlite"             // registers "sqlite"

	"mercator-hq/dbxport/pkg/export"
	"mercator-hq/dbxport/pkg/export/coerce"
)

// Stats reports resources currently held by a driver.
type Stats struct {
	OpenConnections int
	OpenCursors     int
}

// SQLDriver adapts a database/sql driver to Driver.
type SQLDriver struct {
	kind    Kind
	dialect coerce.Dialect
	logger  Logger

	conns   atomic.Int64
	cursors atomic.Int64
}

func newSQLDriver(kind Kind) *SQLDriver {
	return &SQLDriver{
		kind:    kind,
		dialect: kind.Dialect(),
		logger:  slog.Default().With("component", "export.driver", "driver", string(kind)),
	}
}

// Kind returns the driver kind.
func (d *SQLDriver) Kind() Kind { return d.kind }

// Stats returns the number of open connections and cursors.
func (d *SQLDriver) Stats() Stats {
	return Stats{
		OpenConnections: int(d.conns.Load()),
		OpenCursors:     int(d.cursors.Load()),
	}
}

// Connect opens a dedicated connection and verifies it with a ping.
func (d *SQLDriver) Connect(ctx context.Context, dsn string) (Conn, error) {
	dsn, err := d.normalizeDSN(dsn)
	if err != nil {
		return nil, export.NewConnectionError(string(d.kind), err)
	}

	db, err := sql.Open(d.kind.sqlName(), dsn)
	if err != nil {
		return nil, export.NewConnectionError(string(d.kind), err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, export.NewConnectionError(string(d.kind), err)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, export.NewConnectionError(string(d.kind), err)
	}

	d.conns.Add(1)
	logger := loggerFrom(ctx, d.logger)
	logger.Debug("connected")

	return &sqlConn{driver: d, db: db, conn: conn, logger: logger}, nil
}

// normalizeDSN strips URL schemes the underlying drivers do not understand
// and forces the MySQL options the type mapping depends on.
func (d *SQLDriver) normalizeDSN(dsn string) (string, error) {
	switch d.kind {
	case KindSQLite, KindSQLite3:
		for _, scheme := range []string{"sqlite3://", "sqlite://"} {
			if strings.HasPrefix(dsn, scheme) {
				return strings.TrimPrefix(dsn, scheme), nil
			}
		}
		return dsn, nil
	case KindMySQL:
		if strings.HasPrefix(dsn, "mysql://") {
			return mysqlDSNFromURL(dsn)
		}
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", err
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		return cfg.FormatDSN(), nil
	}
	return dsn, nil
}

type sqlConn struct {
	driver *SQLDriver
	db     *sql.DB
	conn   *sql.Conn
	logger Logger
	once   sync.Once
}

// Query runs query and resolves its schema. Columns without a declared type
// are resolved from the first row, which is held back and returned by the
// first call to Next.
func (c *sqlConn) Query(ctx context.Context, query string) (*export.Schema, RowSequence, error) {
	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, export.NewQueryError(query, err)
	}

	seq := &sqlRows{driver: c.driver, query: query, rows: rows}
	c.driver.cursors.Add(1)

	schema, err := seq.resolve(ctx)
	if err != nil {
		seq.Close()
		return nil, nil, err
	}

	loggerFrom(ctx, c.logger).Debug("query started", "columns", schema.Len())
	return schema, seq, nil
}

// Close returns the connection and closes its pool.
func (c *sqlConn) Close() error {
	var err error
	c.once.Do(func() {
		err = errors.Join(c.conn.Close(), c.db.Close())
		c.driver.conns.Add(-1)
		c.logger.Debug("connection closed")
	})
	return err
}

type sqlRows struct {
	driver   *SQLDriver
	query    string
	rows     *sql.Rows
	columns  []export.Column
	mappings []coerce.Mapping

	dest    []any
	ptrs    []any
	pending bool
	index   int
	closed  bool
}

func (r *sqlRows) resolve(ctx context.Context) (*export.Schema, error) {
	types, err := r.rows.ColumnTypes()
	if err != nil {
		return nil, export.NewQueryError(r.query, err)
	}

	r.columns = make([]export.Column, len(types))
	r.mappings = make([]coerce.Mapping, len(types))
	r.dest = make([]any, len(types))
	r.ptrs = make([]any, len(types))
	dynamic := false

	for i, ct := range types {
		nullable, ok := ct.Nullable()
		if !ok {
			nullable = true
		}
		col, m, err := coerce.Column(r.driver.dialect, ct.Name(), ct.DatabaseTypeName(), nullable)
		if err != nil {
			return nil, err
		}
		r.columns[i], r.mappings[i] = col, m
		r.ptrs[i] = &r.dest[i]
		dynamic = dynamic || m.Dynamic()
	}

	if dynamic {
		if err := r.prefetch(ctx); err != nil {
			return nil, err
		}
	}

	schema, err := export.NewSchema(r.columns...)
	if err != nil {
		return nil, export.NewQueryError(r.query, err)
	}
	return schema, nil
}

// prefetch reads the first row to settle untyped columns. Columns that are
// null in that row, or in an empty result, fall back to text.
func (r *sqlRows) prefetch(ctx context.Context) error {
	ok, err := r.scan(ctx)
	if err != nil {
		return err
	}
	r.pending = ok

	for i, m := range r.mappings {
		if !m.Dynamic() {
			continue
		}
		inferred := coerce.Mapping{Dialect: m.Dialect, NativeType: m.NativeType, Kind: export.KindText}
		if ok && r.dest[i] != nil {
			inferred = coerce.Infer(r.dest[i])
			inferred.Dialect, inferred.NativeType = m.Dialect, m.NativeType
		}
		r.mappings[i] = inferred
		r.columns[i].Kind = inferred.Kind
	}
	return nil
}

// scan advances the cursor into dest. It reports false at exhaustion.
func (r *sqlRows) scan(ctx context.Context) (bool, error) {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			return false, export.NewQueryError(r.query, err)
		}
		return false, nil
	}
	if err := r.rows.Scan(r.ptrs...); err != nil {
		return false, export.NewQueryError(r.query, err)
	}
	return true, nil
}

// Next returns the next coerced row, or io.EOF once the result is exhausted.
// Any error closes the sequence.
func (r *sqlRows) Next(ctx context.Context) (export.Row, error) {
	if r.closed {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		r.Close()
		return nil, err
	}

	if r.pending {
		r.pending = false
	} else {
		ok, err := r.scan(ctx)
		if err != nil {
			r.Close()
			return nil, err
		}
		if !ok {
			r.Close()
			return nil, io.EOF
		}
	}

	if len(r.dest) != len(r.columns) {
		r.Close()
		return nil, export.NewQueryError(r.query, export.ErrRowShape)
	}

	row := make(export.Row, len(r.dest))
	for i, native := range r.dest {
		v, err := r.mappings[i].Coerce(native)
		if err != nil {
			r.Close()
			col := r.columns[i]
			return nil, export.NewTypeCoercionError(col.Name, col.NativeType, r.index, err)
		}
		row[i] = v
	}
	r.index++
	return row, nil
}

// Close releases the cursor.
func (r *sqlRows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.driver.cursors.Add(-1)
	return r.rows.Close()
}
