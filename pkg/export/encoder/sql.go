package encoder

import (
	"bufio"
	"encoding/hex"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"mercator-hq/dbxport/pkg/export"
	"mercator-hq/dbxport/pkg/export/coerce"
)

const defaultRowsPerStatement = 100

var errNonFiniteSQL = errors.New("non-finite float has no SQL literal")

// SQLOptions configures the SQL statement encoder.
type SQLOptions struct {
	// Table is the target table name. It may be schema-qualified.
	Table string

	// Dialect selects identifier quoting and literal syntax. Empty selects
	// PostgreSQL-compatible output.
	Dialect coerce.Dialect

	// RowsPerStatement is the number of rows per INSERT. Zero selects 100.
	RowsPerStatement int

	// CreateTable emits a CREATE TABLE statement before the inserts.
	CreateTable bool
}

// SQLEncoder writes INSERT statements that recreate the result set.
type SQLEncoder struct {
	opts SQLOptions

	w      *bufio.Writer
	schema *export.Schema
	insert string
	batch  int
	rows   int
	buf    []byte
}

// NewSQL creates a SQL statement encoder.
func NewSQL(opts SQLOptions) *SQLEncoder {
	if opts.Table == "" {
		opts.Table = "export"
	}
	if opts.Dialect == "" {
		opts.Dialect = coerce.Postgres
	}
	if opts.RowsPerStatement <= 0 {
		opts.RowsPerStatement = defaultRowsPerStatement
	}
	return &SQLEncoder{opts: opts}
}

// Format returns FormatSQL.
func (e *SQLEncoder) Format() Format { return FormatSQL }

// Mode returns Streaming.
func (e *SQLEncoder) Mode() Mode { return Streaming }

// Begin writes the optional CREATE TABLE statement.
func (e *SQLEncoder) Begin(w io.Writer, schema *export.Schema) error {
	e.w = bufio.NewWriter(w)
	e.schema = schema
	e.batch, e.rows = 0, 0

	d := e.opts.Dialect
	table := d.QuoteQualified(e.opts.Table)

	cols := make([]string, schema.Len())
	for i, name := range schema.Names() {
		cols[i] = d.QuoteIdent(name)
	}
	e.insert = "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES\n  "

	if !e.opts.CreateTable {
		return nil
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE " + table + " (\n")
	for i, col := range schema.Columns() {
		b.WriteString("  " + cols[i] + " " + columnType(d, col))
		if !col.Nullable {
			b.WriteString(" NOT NULL")
		}
		if i < schema.Len()-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");\n\n")

	if _, err := e.w.WriteString(b.String()); err != nil {
		return export.NewEncodingError(string(FormatSQL), -1, "", err)
	}
	return nil
}

// WriteRow appends one row tuple, starting a new INSERT when the current
// statement is full.
func (e *SQLEncoder) WriteRow(row export.Row) error {
	if len(row) != e.schema.Len() {
		return export.NewEncodingError(string(FormatSQL), e.rows, "", export.ErrRowShape)
	}

	buf := append(e.buf[:0], '(')
	for i, v := range row {
		if i > 0 {
			buf = append(buf, ", "...)
		}
		var err error
		buf, err = appendSQLLiteral(buf, e.opts.Dialect, v)
		if err != nil {
			return export.NewEncodingError(string(FormatSQL), e.rows, e.schema.Column(i).Name, err)
		}
	}
	buf = append(buf, ')')
	e.buf = buf

	var err error
	if e.batch == 0 {
		_, err = e.w.WriteString(e.insert)
	} else {
		_, err = e.w.WriteString(",\n  ")
	}
	if err == nil {
		_, err = e.w.Write(buf)
	}
	if err != nil {
		return export.NewEncodingError(string(FormatSQL), e.rows, "", err)
	}

	e.rows++
	e.batch++
	if e.batch == e.opts.RowsPerStatement {
		return e.endStatement()
	}
	return nil
}

// Finish terminates the last statement and flushes.
func (e *SQLEncoder) Finish() error {
	if e.batch > 0 {
		if err := e.endStatement(); err != nil {
			return err
		}
	}
	if err := e.w.Flush(); err != nil {
		return export.NewEncodingError(string(FormatSQL), -1, "", err)
	}
	return nil
}

func (e *SQLEncoder) endStatement() error {
	e.batch = 0
	if _, err := e.w.WriteString(";\n"); err != nil {
		return export.NewEncodingError(string(FormatSQL), e.rows-1, "", err)
	}
	return nil
}

// appendSQLLiteral appends v as a SQL literal for dialect d.
func appendSQLLiteral(buf []byte, d coerce.Dialect, v export.Value) ([]byte, error) {
	switch v.Kind() {
	case export.KindNull:
		return append(buf, "NULL"...), nil
	case export.KindBool:
		if v.Bool() {
			return append(buf, "TRUE"...), nil
		}
		return append(buf, "FALSE"...), nil
	case export.KindInt:
		return strconv.AppendInt(buf, v.Int(), 10), nil
	case export.KindFloat:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return buf, errNonFiniteSQL
		}
		return strconv.AppendFloat(buf, f, 'g', -1, 64), nil
	case export.KindDecimal:
		return append(buf, v.DecimalText()...), nil
	case export.KindBytes:
		if d == coerce.Postgres {
			buf = append(buf, `'\x`...)
			buf = hex.AppendEncode(buf, v.Bytes())
			return append(buf, `'::bytea`...), nil
		}
		buf = append(buf, "X'"...)
		buf = hex.AppendEncode(buf, v.Bytes())
		return append(buf, '\''), nil
	case export.KindTimestamp:
		t := v.Time()
		switch {
		case !v.Zoned():
			return appendSQLString(buf, d, t.Format("2006-01-02 15:04:05.999999999")), nil
		case d == coerce.MySQL:
			return appendSQLString(buf, d, t.UTC().Format("2006-01-02 15:04:05.999999")), nil
		}
		return appendSQLString(buf, d, t.Format("2006-01-02 15:04:05.999999999Z07:00")), nil
	}
	return appendSQLString(buf, d, v.String()), nil
}

func appendSQLString(buf []byte, d coerce.Dialect, s string) []byte {
	s = strings.ReplaceAll(s, "'", "''")
	if d == coerce.MySQL {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	buf = append(buf, '\'')
	buf = append(buf, s...)
	return append(buf, '\'')
}

// columnType returns the DDL type for a column.
func columnType(d coerce.Dialect, col export.Column) string {
	switch col.Kind {
	case export.KindBool:
		return "BOOLEAN"
	case export.KindInt:
		return "BIGINT"
	case export.KindFloat:
		if d == coerce.MySQL {
			return "DOUBLE"
		}
		if d == coerce.SQLite {
			return "REAL"
		}
		return "DOUBLE PRECISION"
	case export.KindDecimal:
		if d == coerce.MySQL {
			return "DECIMAL(65,30)"
		}
		return "NUMERIC"
	case export.KindBytes:
		switch d {
		case coerce.Postgres:
			return "BYTEA"
		case coerce.MySQL:
			return "LONGBLOB"
		}
		return "BLOB"
	case export.KindDate:
		return "DATE"
	case export.KindTime:
		return "TIME"
	case export.KindTimestamp:
		switch {
		case d == coerce.MySQL:
			return "DATETIME(6)"
		case d == coerce.Postgres && timestampZoned(col):
			return "TIMESTAMPTZ"
		}
		return "TIMESTAMP"
	}
	if d == coerce.MySQL {
		return "LONGTEXT"
	}
	return "TEXT"
}

// timestampZoned reports whether a timestamp column came from a zoned source
// type. The schema records zone-awareness only through the native type.
func timestampZoned(col export.Column) bool {
	native := strings.ToUpper(col.NativeType)
	return strings.Contains(native, "TZ") || strings.Contains(native, "WITH TIME ZONE")
}
