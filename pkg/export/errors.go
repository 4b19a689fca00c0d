package export

import "fmt"

// ConnectionError represents a failure to reach or authenticate against the
// source database, or an unavailable driver.
type ConnectionError struct {
	Driver string // Driver kind ("sqlite", "postgres", ...)
	Cause  error  // Underlying error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error [driver=%s]: %v", e.Driver, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(driver string, cause error) *ConnectionError {
	return &ConnectionError{
		Driver: driver,
		Cause:  cause,
	}
}

// QueryError represents malformed SQL or a runtime error reported by the
// database. Cause carries the database's own message.
type QueryError struct {
	Query string // Query text that failed
	Cause error  // Underlying error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: %v", e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// NewQueryError creates a new QueryError.
func NewQueryError(query string, cause error) *QueryError {
	return &QueryError{
		Query: query,
		Cause: cause,
	}
}

// TypeCoercionError represents a native type or value with no canonical
// mapping.
type TypeCoercionError struct {
	Column     string // Column name
	NativeType string // Source SQL type name
	Row        int    // Zero-based row index, -1 when not row specific
	Cause      error  // Underlying error
}

// Error implements the error interface.
func (e *TypeCoercionError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("type coercion error [column=%s, native_type=%s, row=%d]: %v",
			e.Column, e.NativeType, e.Row, e.Cause)
	}
	return fmt.Sprintf("type coercion error [column=%s, native_type=%s]: %v",
		e.Column, e.NativeType, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *TypeCoercionError) Unwrap() error {
	return e.Cause
}

// NewTypeCoercionError creates a new TypeCoercionError.
func NewTypeCoercionError(column, nativeType string, row int, cause error) *TypeCoercionError {
	return &TypeCoercionError{
		Column:     column,
		NativeType: nativeType,
		Row:        row,
		Cause:      cause,
	}
}

// EncodingError represents a format-specific structural limit or an
// unencodable value.
type EncodingError struct {
	Format string // Output format ("json", "xlsx", ...)
	Row    int    // Zero-based data row index, -1 when unknown
	Column string // Column name, empty when unknown
	Cause  error  // Underlying error
}

// Error implements the error interface.
func (e *EncodingError) Error() string {
	switch {
	case e.Row >= 0 && e.Column != "":
		return fmt.Sprintf("encoding error [format=%s, row=%d, column=%s]: %v", e.Format, e.Row, e.Column, e.Cause)
	case e.Row >= 0:
		return fmt.Sprintf("encoding error [format=%s, row=%d]: %v", e.Format, e.Row, e.Cause)
	default:
		return fmt.Sprintf("encoding error [format=%s]: %v", e.Format, e.Cause)
	}
}

// Unwrap returns the underlying cause error.
func (e *EncodingError) Unwrap() error {
	return e.Cause
}

// NewEncodingError creates a new EncodingError.
func NewEncodingError(format string, row int, column string, cause error) *EncodingError {
	return &EncodingError{
		Format: format,
		Row:    row,
		Column: column,
		Cause:  cause,
	}
}

// IOError represents a failure writing the output artifact.
type IOError struct {
	Op    string // Operation that failed ("create", "write", "rename", ...)
	Path  string // File path involved
	Cause error  // Underlying error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	return fmt.Sprintf("io error [op=%s, path=%s]: %v", e.Op, e.Path, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *IOError) Unwrap() error {
	return e.Cause
}

// NewIOError creates a new IOError.
func NewIOError(op, path string, cause error) *IOError {
	return &IOError{
		Op:    op,
		Path:  path,
		Cause: cause,
	}
}
