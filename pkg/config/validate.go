package config

import (
	"fmt"
	"net"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/robfig/cron/v3"

	"mercator-hq/dbxport/pkg/export/driver"
	"mercator-hq/dbxport/pkg/export/encoder"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "jobs.nightly.format").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together, ordered by section and then by name.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateConnections(cfg.Connections)...)
	errs = append(errs, validateJobs(cfg.Jobs, cfg.Connections)...)
	errs = append(errs, validateExport(&cfg.Export)...)
	errs = append(errs, validateHistory(&cfg.History)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validateConnections(conns map[string]ConnectionConfig) []FieldError {
	var errs []FieldError

	for _, name := range sortedKeys(conns) {
		conn := conns[name]
		prefix := "connections." + name

		if conn.URL == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".url",
				Message: "connection URL is required",
			})
			continue
		}

		inferred, _, err := driver.ParseURL(conn.URL)
		switch {
		case conn.Driver != "" && !driver.Kind(conn.Driver).Valid():
			errs = append(errs, FieldError{
				Field:   prefix + ".driver",
				Message: fmt.Sprintf("unknown driver %q: must be one of %s", conn.Driver, kindList()),
			})
		case conn.Driver == "" && err != nil:
			errs = append(errs, FieldError{
				Field:   prefix + ".driver",
				Message: fmt.Sprintf("driver is required when it cannot be inferred from the URL: %v", err),
			})
		case conn.Driver != "" && err == nil && inferred.Dialect() != driver.Kind(conn.Driver).Dialect():
			errs = append(errs, FieldError{
				Field:   prefix + ".driver",
				Message: fmt.Sprintf("driver %q does not match URL scheme (%s)", conn.Driver, inferred),
			})
		}
	}

	return errs
}

func validateJobs(jobs map[string]JobConfig, conns map[string]ConnectionConfig) []FieldError {
	var errs []FieldError

	for _, name := range sortedKeys(jobs) {
		job := jobs[name]
		prefix := "jobs." + name

		if job.Connection == "" {
			errs = append(errs, FieldError{Field: prefix + ".connection", Message: "connection is required"})
		} else if _, ok := conns[job.Connection]; !ok {
			errs = append(errs, FieldError{
				Field:   prefix + ".connection",
				Message: fmt.Sprintf("unknown connection %q", job.Connection),
			})
		}

		switch {
		case job.Query == "" && job.Table == "":
			errs = append(errs, FieldError{Field: prefix + ".query", Message: "one of query or table is required"})
		case job.Query != "" && job.Table != "":
			errs = append(errs, FieldError{Field: prefix + ".table", Message: "query and table are mutually exclusive"})
		case job.Table != "" && !driver.IsTableName(job.Table):
			errs = append(errs, FieldError{
				Field:   prefix + ".table",
				Message: fmt.Sprintf("invalid table name %q", job.Table),
			})
		}

		if job.Output == "" {
			errs = append(errs, FieldError{Field: prefix + ".output", Message: "output path is required"})
		}
		if job.Format != "" {
			if _, err := encoder.ParseFormat(job.Format); err != nil {
				errs = append(errs, FieldError{Field: prefix + ".format", Message: err.Error()})
			}
		} else if job.Output != "" {
			if _, err := encoder.FormatFromPath(job.Output); err != nil {
				errs = append(errs, FieldError{
					Field:   prefix + ".format",
					Message: "format is required when it cannot be inferred from the output extension",
				})
			}
		}

		if job.Schedule != "" {
			if _, err := cron.ParseStandard(job.Schedule); err != nil {
				errs = append(errs, FieldError{
					Field:   prefix + ".schedule",
					Message: fmt.Sprintf("invalid cron expression %q: %v", job.Schedule, err),
				})
			}
		}
		if job.Timeout < 0 {
			errs = append(errs, FieldError{Field: prefix + ".timeout", Message: "timeout must not be negative"})
		}
		if !validCompression(job.Compression) {
			errs = append(errs, FieldError{
				Field:   prefix + ".compression",
				Message: fmt.Sprintf("invalid compression %q: must be 'none' or 'snappy'", job.Compression),
			})
		}
	}

	return errs
}

func validateExport(cfg *ExportConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxBufferedRows < 0 {
		errs = append(errs, FieldError{Field: "export.max_buffered_rows", Message: "max buffered rows must not be negative"})
	}
	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{Field: "export.timeout", Message: "timeout must not be negative"})
	}
	if !validCompression(cfg.Compression) {
		errs = append(errs, FieldError{
			Field:   "export.compression",
			Message: fmt.Sprintf("invalid compression %q: must be 'none' or 'snappy'", cfg.Compression),
		})
	}

	if utf8.RuneCountInString(cfg.CSV.Delimiter) != 1 || strings.ContainsAny(cfg.CSV.Delimiter, "\"\r\n") {
		errs = append(errs, FieldError{Field: "export.csv.delimiter", Message: "delimiter must be a single character other than a quote or newline"})
	}

	for _, col := range sortedKeys(cfg.GFM.Align) {
		if _, err := encoder.ParseAlign(cfg.GFM.Align[col]); err != nil {
			errs = append(errs, FieldError{Field: "export.gfm.align." + col, Message: err.Error()})
		}
	}

	if _, err := encoder.NewXLSX(cfg.XLSX.Options()); err != nil {
		errs = append(errs, FieldError{Field: "export.xlsx", Message: err.Error()})
	}

	if cfg.SQL.Dialect != "" && !validDialect(cfg.SQL.Dialect) {
		errs = append(errs, FieldError{
			Field:   "export.sql.dialect",
			Message: fmt.Sprintf("invalid dialect %q: must be 'postgres', 'mysql' or 'sqlite'", cfg.SQL.Dialect),
		})
	}
	if cfg.SQL.RowsPerStatement < 0 {
		errs = append(errs, FieldError{Field: "export.sql.rows_per_statement", Message: "rows per statement must be positive"})
	}
	if cfg.Parquet.BatchRows < 0 {
		errs = append(errs, FieldError{Field: "export.parquet.batch_rows", Message: "batch rows must be positive"})
	}

	return errs
}

func validateHistory(cfg *HistoryConfig) []FieldError {
	var errs []FieldError
	if cfg.Enabled && cfg.Path == "" {
		errs = append(errs, FieldError{Field: "history.path", Message: "history path is required when history is enabled"})
	}
	if cfg.Retention < 0 {
		errs = append(errs, FieldError{Field: "history.retention", Message: "retention must not be negative"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text' or 'console'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.ListenAddress); err != nil {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.listen_address",
				Message: fmt.Sprintf("invalid listen address %q: %v", cfg.Metrics.ListenAddress, err),
			})
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "metrics path must start with /"})
		}
	}

	return errs
}

func validCompression(s string) bool {
	return s == "" || s == "none" || s == "snappy"
}

func validDialect(s string) bool {
	switch s {
	case "postgres", "mysql", "sqlite":
		return true
	}
	return false
}

func kindList() string {
	kinds := driver.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
