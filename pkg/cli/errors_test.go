package cli

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"mercator-hq/dbxport/pkg/export"
	"mercator-hq/dbxport/pkg/export/pipeline"
)

func TestConfigError(t *testing.T) {
	err := &ConfigError{
		Field:   "--align",
		Message: `unknown alignment "middle"`,
	}

	expected := `config error in --align: unknown alignment "middle"`
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewConfigError(t *testing.T) {
	err := NewConfigError("field", "message")
	if err.Field != "field" {
		t.Errorf("Field = %q, want %q", err.Field, "field")
	}
	if err.Message != "message" {
		t.Errorf("Message = %q, want %q", err.Message, "message")
	}
}

func TestCommandError(t *testing.T) {
	underlyingErr := errors.New("underlying error")
	err := NewCommandError("export", underlyingErr)

	expected := "command export failed: underlying error"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, underlyingErr) {
		t.Error("errors.Is() should work with CommandError.Unwrap()")
	}
}

func TestExitCode(t *testing.T) {
	cause := errors.New("cause")
	stage := func(s pipeline.State, err error) error {
		return &pipeline.StageError{Stage: s, Row: -1, Err: err}
	}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"connection", export.NewConnectionError("postgres", cause), ExitConnection},
		{"query", export.NewQueryError("SELECT", cause), ExitQuery},
		{"coercion", export.NewTypeCoercionError("c", "BLOB", 1, cause), ExitEncoding},
		{"encoding", export.NewEncodingError("xlsx", 5, "", cause), ExitEncoding},
		{"io", export.NewIOError("rename", "/out", cause), ExitIO},
		{"stage wrapped query", stage(pipeline.Querying, export.NewQueryError("q", cause)), ExitQuery},
		{"stage wrapped io", stage(pipeline.Finalizing, export.NewIOError("sync", "/out", cause)), ExitIO},
		{"canceled", stage(pipeline.Exporting, context.Canceled), ExitInterrupted},
		{"canceled inside connection", export.NewConnectionError("mysql", context.Canceled), ExitInterrupted},
		{"deadline", stage(pipeline.Exporting, context.DeadlineExceeded), 1},
		{"config", NewConfigError("--format", "unknown"), 1},
		{"command wrapped encoding", NewCommandError("export", fmt.Errorf("x: %w", export.NewEncodingError("json", 0, "f", cause))), ExitEncoding},
		{"plain", cause, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
