package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrBufferLimit is returned when a materializing export exceeds the
	// configured maximum number of buffered rows.
	ErrBufferLimit = errors.New("buffered row limit exceeded")

	// ErrFormatRowLimit is returned when a materializing export exceeds the
	// number of rows its output format can hold.
	ErrFormatRowLimit = errors.New("format row limit exceeded")
)

// StageError is the error returned by Run. It records the stage that failed
// and, when known, the zero-based row being processed. Err is one of the
// export package's typed errors, a context error or a job validation error.
type StageError struct {
	Stage State
	Row   int // -1 when the failure is not tied to a row
	Err   error

	// RunID and Rows identify the failed run and how many rows it had
	// pulled.
	RunID string
	Rows  int64
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("export failed while %s at row %d: %v", e.Stage, e.Row, e.Err)
	}
	return fmt.Sprintf("export failed while %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}
