package coerce

import (
	"errors"
	"fmt"
	"strings"

	"mercator-hq/dbxport/pkg/export"
)

// Dialect identifies a database family's native type system.
type Dialect string

const (
	// SQLite covers both the pure Go and the cgo SQLite drivers.
	SQLite Dialect = "sqlite"
	// Postgres is PostgreSQL through pgx.
	Postgres Dialect = "postgres"
	// MySQL is MySQL and MariaDB through go-sql-driver/mysql.
	MySQL Dialect = "mysql"
)

// ErrUnsupportedType is returned for native types without a canonical mapping.
var ErrUnsupportedType = errors.New("unsupported native type")

// Mapping is the resolved canonical type of one native column type.
type Mapping struct {
	Dialect    Dialect
	NativeType string

	// Kind is the canonical kind. It is KindNull for SQLite columns without a
	// declared type, whose kind is only known once a value is seen.
	Kind export.Kind

	// Zoned marks timestamp columns that carry zone information.
	Zoned bool
}

// Dynamic reports whether the kind must be inferred from values.
func (m Mapping) Dynamic() bool { return m.Kind == export.KindNull }

// Resolve maps a native type name, as reported by database/sql's
// ColumnType.DatabaseTypeName, to its canonical mapping.
func Resolve(d Dialect, nativeType string) (Mapping, error) {
	name := normalizeTypeName(nativeType)
	m := Mapping{Dialect: d, NativeType: nativeType}

	var ok bool
	switch d {
	case SQLite:
		m.Kind, m.Zoned, ok = resolveSQLite(name)
	case Postgres:
		m.Kind, m.Zoned, ok = resolvePostgres(name)
	case MySQL:
		m.Kind, m.Zoned, ok = resolveMySQL(name)
	default:
		return m, fmt.Errorf("unknown dialect %q", d)
	}
	if !ok {
		return m, fmt.Errorf("%w %q for %s", ErrUnsupportedType, nativeType, d)
	}
	return m, nil
}

// Column resolves a native column into a schema column. Unsupported types are
// reported as a TypeCoercionError naming the column and its SQL type.
func Column(d Dialect, name, nativeType string, nullable bool) (export.Column, Mapping, error) {
	m, err := Resolve(d, nativeType)
	if err != nil {
		return export.Column{}, m, export.NewTypeCoercionError(name, nativeType, -1, err)
	}
	return export.Column{
		Name:       name,
		Kind:       m.Kind,
		Nullable:   nullable,
		NativeType: nativeType,
	}, m, nil
}

// normalizeTypeName upper-cases a type name and strips length, precision and
// display-width arguments: "decimal(10, 2)" becomes "DECIMAL".
func normalizeTypeName(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if i := strings.IndexByte(s, '('); i >= 0 {
		rest := ""
		if j := strings.IndexByte(s[i:], ')'); j >= 0 {
			rest = s[i+j+1:]
		}
		s = strings.TrimSpace(s[:i]) + rest
	}
	return strings.Join(strings.Fields(s), " ")
}

func resolveSQLite(name string) (export.Kind, bool, bool) {
	switch name {
	case "":
		return export.KindNull, false, true
	case "BOOL", "BOOLEAN":
		return export.KindBool, false, true
	case "DATE":
		return export.KindDate, false, true
	case "TIME":
		return export.KindTime, false, true
	case "DATETIME", "TIMESTAMP":
		return export.KindTimestamp, false, true
	case "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE":
		return export.KindTimestamp, true, true
	case "DECIMAL", "NUMERIC":
		return export.KindDecimal, false, true
	}

	// Affinity rules, in SQLite's documented order.
	switch {
	case strings.Contains(name, "INT"):
		return export.KindInt, false, true
	case strings.Contains(name, "CHAR"), strings.Contains(name, "CLOB"), strings.Contains(name, "TEXT"):
		return export.KindText, false, true
	case strings.Contains(name, "BLOB"):
		return export.KindBytes, false, true
	case strings.Contains(name, "REAL"), strings.Contains(name, "FLOA"), strings.Contains(name, "DOUB"):
		return export.KindFloat, false, true
	}
	// Anything else has NUMERIC affinity, which still stores non-numeric
	// values as text, so only DECIMAL and NUMERIC above are exact numbers.
	return export.KindText, false, true
}

func resolvePostgres(name string) (export.Kind, bool, bool) {
	switch name {
	case "INT2", "INT4", "INT8", "SMALLINT", "INTEGER", "INT", "BIGINT", "OID",
		"SMALLSERIAL", "SERIAL", "BIGSERIAL":
		return export.KindInt, false, true
	case "FLOAT4", "FLOAT8", "REAL", "DOUBLE PRECISION", "FLOAT":
		return export.KindFloat, false, true
	case "NUMERIC", "DECIMAL":
		return export.KindDecimal, false, true
	case "BOOL", "BOOLEAN":
		return export.KindBool, false, true
	case "TEXT", "VARCHAR", "CHARACTER VARYING", "BPCHAR", "CHAR", "CHARACTER", "NAME",
		"CITEXT", "UUID", "JSON", "JSONB", "XML", "INET", "CIDR", "MACADDR":
		return export.KindText, false, true
	case "BYTEA":
		return export.KindBytes, false, true
	case "DATE":
		return export.KindDate, false, true
	case "TIME", "TIME WITHOUT TIME ZONE":
		return export.KindTime, false, true
	case "TIMESTAMP", "TIMESTAMP WITHOUT TIME ZONE":
		return export.KindTimestamp, false, true
	case "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE":
		return export.KindTimestamp, true, true
	}
	return export.KindNull, false, false
}

func resolveMySQL(name string) (export.Kind, bool, bool) {
	switch name {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "YEAR",
		"UNSIGNED TINYINT", "UNSIGNED SMALLINT", "UNSIGNED MEDIUMINT", "UNSIGNED INT":
		return export.KindInt, false, true
	case "UNSIGNED BIGINT":
		// Values above math.MaxInt64 do not fit an Int.
		return export.KindDecimal, false, true
	case "DECIMAL", "NUMERIC", "UNSIGNED DECIMAL":
		return export.KindDecimal, false, true
	case "FLOAT", "DOUBLE", "REAL", "UNSIGNED FLOAT", "UNSIGNED DOUBLE":
		return export.KindFloat, false, true
	case "BOOL", "BOOLEAN":
		return export.KindBool, false, true
	case "CHAR", "VARCHAR", "TINYTEXT", "TEXT", "MEDIUMTEXT", "LONGTEXT",
		"JSON", "ENUM", "SET", "NULL":
		return export.KindText, false, true
	case "BINARY", "VARBINARY", "TINYBLOB", "BLOB", "MEDIUMBLOB", "LONGBLOB", "BIT":
		return export.KindBytes, false, true
	case "DATE":
		return export.KindDate, false, true
	case "TIME":
		return export.KindTime, false, true
	case "DATETIME":
		return export.KindTimestamp, false, true
	case "TIMESTAMP":
		// Stored in UTC by the server and converted on read.
		return export.KindTimestamp, true, true
	}
	return export.KindNull, false, false
}
