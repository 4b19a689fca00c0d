package export

import (
	"errors"
	"fmt"
)

// Sentinel errors for schema and row validation.
var (
	// ErrDuplicateColumn is returned when two columns share a name.
	ErrDuplicateColumn = errors.New("duplicate column name")

	// ErrRowShape is returned when a row's length does not match its schema.
	ErrRowShape = errors.New("row does not match schema")
)

// Column describes one column of a result set.
type Column struct {
	// Name is unique within a Schema and case-sensitive.
	Name string

	// Kind is the canonical kind of the column's non-null values.
	Kind Kind

	// Nullable reports whether the source declared the column nullable.
	// Any column may still hold Null values.
	Nullable bool

	// NativeType is the source database type name, for diagnostics.
	NativeType string
}

// Schema is an ordered, immutable list of columns.
type Schema struct {
	columns []Column
	index   map[string]int
}

// NewSchema builds a Schema. It fails on empty or duplicate names and on
// columns whose kind is Null or unknown.
func NewSchema(columns ...Column) (*Schema, error) {
	s := &Schema{
		columns: make([]Column, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	copy(s.columns, columns)

	for i, c := range s.columns {
		if c.Name == "" {
			return nil, fmt.Errorf("column %d: empty name", i)
		}
		if c.Kind == KindNull || !c.Kind.Valid() {
			return nil, fmt.Errorf("column %q: invalid kind %s", c.Name, c.Kind)
		}
		if prev, ok := s.index[c.Name]; ok {
			return nil, fmt.Errorf("%w: %q at positions %d and %d", ErrDuplicateColumn, c.Name, prev, i)
		}
		s.index[c.Name] = i
	}

	return s, nil
}

// MustSchema is like NewSchema but panics on error. It is intended for tests
// and static schemas.
func MustSchema(columns ...Column) *Schema {
	s, err := NewSchema(columns...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.columns) }

// Column returns the i-th column.
func (s *Schema) Column(i int) Column { return s.columns[i] }

// Columns returns a copy of the columns in order.
func (s *Schema) Columns() []Column {
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

// Names returns the column names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Check validates a row against the schema. A length mismatch wraps
// ErrRowShape; a kind mismatch is reported as a TypeCoercionError.
func (s *Schema) Check(row Row) error {
	if len(row) != len(s.columns) {
		return fmt.Errorf("%w: got %d values, want %d", ErrRowShape, len(row), len(s.columns))
	}
	for i, v := range row {
		if v.IsNull() {
			continue
		}
		if v.Kind() != s.columns[i].Kind {
			c := s.columns[i]
			return NewTypeCoercionError(c.Name, c.NativeType, -1,
				fmt.Errorf("value of kind %s in %s column", v.Kind(), c.Kind))
		}
	}
	return nil
}
