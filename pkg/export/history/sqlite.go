package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mercator-hq/dbxport/pkg/telemetry/logging"
)

// SQLiteConfig configures a SQLiteStore.
type SQLiteConfig struct {
	// Path is the database file. It is created if missing.
	Path string

	// MaxOpenConns caps the connection pool. Default: 4
	MaxOpenConns int

	// BusyTimeout is how long a writer waits for a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// Logger receives store events. Default: logging.Default()
	Logger *logging.Logger
}

// SQLiteStore persists runs in a SQLite database in WAL mode.
type SQLiteStore struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewSQLiteStore opens or creates the history database at cfg.Path.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, NewStorageError("sqlite", "open", fmt.Errorf("no database path"))
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	s := &SQLiteStore{
		db:     db,
		logger: logger.With("component", "export.history"),
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Debug("history store opened", "path", cfg.Path)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if _, err := s.db.Exec(schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(insertSchemaVersion, SchemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(getSchemaVersion).Scan(&version); err != nil {
		return NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Record stores run.
func (s *SQLiteStore) Record(ctx context.Context, run *Run) error {
	res, err := s.db.ExecContext(ctx, insertRun,
		run.ID, run.Job, run.Driver, run.Format, run.Output,
		run.Status, run.Stage, run.Error,
		run.Rows, run.Bytes,
		run.StartedAt.UnixNano(), int64(run.Duration),
	)
	if err != nil {
		return NewStorageError("sqlite", "record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return NewStorageError("sqlite", "record", err)
	}
	if n == 0 {
		return NewStorageError("sqlite", "record", ErrDuplicateRun)
	}
	return nil
}

// List returns matching runs, newest first.
func (s *SQLiteStore) List(ctx context.Context, q Query) ([]*Run, error) {
	where, args := whereClause(q)

	query := selectRuns
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, q.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", "list", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		var (
			r        Run
			started  int64
			duration int64
		)
		if err := rows.Scan(&r.ID, &r.Job, &r.Driver, &r.Format, &r.Output,
			&r.Status, &r.Stage, &r.Error, &r.Rows, &r.Bytes, &started, &duration); err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		r.StartedAt = time.Unix(0, started)
		r.Duration = time.Duration(duration)
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "list", err)
	}
	return runs, nil
}

// Prune deletes runs started before cutoff.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, NewStorageError("sqlite", "prune", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, NewStorageError("sqlite", "prune", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError("sqlite", "close", err)
	}
	return nil
}

// whereClause builds the WHERE clause, without the keyword, for q.
func whereClause(q Query) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if q.Job != "" {
		conditions = append(conditions, "job = ?")
		args = append(args, q.Job)
	}
	if q.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, q.Status)
	}
	if !q.Since.IsZero() {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, q.Since.UnixNano())
	}
	return strings.Join(conditions, " AND "), args
}
