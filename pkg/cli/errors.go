package cli

import (
	"context"
	"errors"
	"fmt"

	"mercator-hq/dbxport/pkg/export"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitConnection  = 1
	ExitQuery       = 2
	ExitEncoding    = 3
	ExitIO          = 4
	ExitInterrupted = 130
)

// ConfigError represents an invalid flag or configuration value.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps an error to the process exit status. Interruption wins over
// whatever error the interrupted stage reported; errors outside the export
// taxonomy exit with 1.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}

	var (
		connErr     *export.ConnectionError
		queryErr    *export.QueryError
		coercionErr *export.TypeCoercionError
		encodingErr *export.EncodingError
		ioErr       *export.IOError
	)
	switch {
	case errors.As(err, &connErr):
		return ExitConnection
	case errors.As(err, &queryErr):
		return ExitQuery
	case errors.As(err, &coercionErr), errors.As(err, &encodingErr):
		return ExitEncoding
	case errors.As(err, &ioErr):
		return ExitIO
	}
	return 1
}
