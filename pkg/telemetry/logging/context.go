package logging

import (
	"context"
)

// Context keys for common log fields.
type contextKey string

const (
	// RunIDKey is the context key for the per-export run ID.
	RunIDKey contextKey = "run_id"

	// JobKey is the context key for configured job names.
	JobKey contextKey = "job"

	// DriverKey is the context key for driver kinds.
	DriverKey contextKey = "driver"

	// FormatKey is the context key for output formats.
	FormatKey contextKey = "format"
)

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run ID from the context.
func GetRunID(ctx context.Context) string {
	return stringValue(ctx, RunIDKey)
}

// WithJob adds a job name to the context.
func WithJob(ctx context.Context, job string) context.Context {
	return context.WithValue(ctx, JobKey, job)
}

// GetJob retrieves the job name from the context.
func GetJob(ctx context.Context) string {
	return stringValue(ctx, JobKey)
}

// WithDriver adds a driver kind to the context.
func WithDriver(ctx context.Context, driver string) context.Context {
	return context.WithValue(ctx, DriverKey, driver)
}

// GetDriver retrieves the driver kind from the context.
func GetDriver(ctx context.Context) string {
	return stringValue(ctx, DriverKey)
}

// WithFormat adds an output format to the context.
func WithFormat(ctx context.Context, format string) context.Context {
	return context.WithValue(ctx, FormatKey, format)
}

// GetFormat retrieves the output format from the context.
func GetFormat(ctx context.Context) string {
	return stringValue(ctx, FormatKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// extractContextFields returns the run fields stored in ctx as key-value
// pairs suitable for Logger.With.
func extractContextFields(ctx context.Context) []any {
	var fields []any
	for _, key := range []contextKey{RunIDKey, JobKey, DriverKey, FormatKey} {
		if v := stringValue(ctx, key); v != "" {
			fields = append(fields, string(key), v)
		}
	}
	return fields
}
