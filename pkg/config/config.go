package config

import "time"

// Config is the root configuration structure for dbxport. It names the
// databases to export from, the jobs to run against them, export-wide
// encoder settings and telemetry.
type Config struct {
	// Connections contains named database connections referenced by jobs.
	// Keys are connection names (e.g., "warehouse", "app").
	Connections map[string]ConnectionConfig `yaml:"connections"`

	// Jobs contains named exports. Jobs with a schedule are run by
	// "dbxport schedule"; any job can be run once with "dbxport export --job".
	Jobs map[string]JobConfig `yaml:"jobs"`

	// Export contains defaults applied to every export, including the buffer
	// ceiling for materializing formats and per-format encoder options.
	Export ExportConfig `yaml:"export"`

	// History records every run in a local SQLite database.
	History HistoryConfig `yaml:"history"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ConnectionConfig describes one database connection.
type ConnectionConfig struct {
	// Driver is the driver kind: "sqlite", "sqlite3", "postgres" or "mysql".
	// When empty it is inferred from the URL scheme.
	Driver string `yaml:"driver"`

	// URL is the connection URL or driver DSN. It may contain credentials;
	// prefer injecting it with an environment override.
	URL string `yaml:"url"`
}

// JobConfig describes one export job.
type JobConfig struct {
	// Connection is the name of an entry in Connections.
	Connection string `yaml:"connection"`

	// Query is the SQL text to run. Exactly one of Query or Table is set.
	Query string `yaml:"query"`

	// Table exports every row of a table, optionally schema-qualified.
	Table string `yaml:"table"`

	// Format is the output format. When empty it is inferred from Output's
	// extension.
	Format string `yaml:"format"`

	// Output is the destination file path. The file is replaced atomically.
	// The placeholders {job}, {date} and {time} are expanded per run.
	Output string `yaml:"output"`

	// Schedule is a standard five-field cron expression. Jobs without a
	// schedule only run on demand.
	Schedule string `yaml:"schedule"`

	// Timeout bounds one run. Zero uses export.timeout.
	Timeout time.Duration `yaml:"timeout"`

	// Compression overrides export.compression for this job.
	Compression string `yaml:"compression"`
}

// ExportConfig contains settings shared by every export.
type ExportConfig struct {
	// MaxBufferedRows caps the rows a materializing encoder may buffer.
	// Zero means no limit beyond the format's own.
	// Default: 0
	MaxBufferedRows int `yaml:"max_buffered_rows"`

	// Timeout bounds one export. Zero means no timeout.
	// Default: 0
	Timeout time.Duration `yaml:"timeout"`

	// Compression wraps the output file: "none" or "snappy".
	// Default: "none"
	Compression string `yaml:"compression"`

	JSON    JSONConfig    `yaml:"json"`
	CSV     CSVConfig     `yaml:"csv"`
	GFM     GFMConfig     `yaml:"gfm"`
	XLSX    XLSXConfig    `yaml:"xlsx"`
	SQL     SQLConfig     `yaml:"sql"`
	Parquet ParquetConfig `yaml:"parquet"`
}

// JSONConfig configures the JSON encoder.
type JSONConfig struct {
	// Pretty indents each object.
	Pretty bool `yaml:"pretty"`
}

// CSVConfig configures the CSV encoder.
type CSVConfig struct {
	// Header writes a header row of column names.
	// Default: true
	Header *bool `yaml:"header"`

	// Delimiter is a single character. Default: ","
	Delimiter string `yaml:"delimiter"`

	// SafeFormulas neutralizes text cells that spreadsheets would evaluate.
	SafeFormulas bool `yaml:"safe_formulas"`
}

// HeaderEnabled reports whether the header row is written.
func (c CSVConfig) HeaderEnabled() bool {
	return c.Header == nil || *c.Header
}

// GFMConfig configures the Markdown table encoder.
type GFMConfig struct {
	// Pad pads cells to their column's width.
	Pad bool `yaml:"pad"`

	// Align maps column names to "left", "center" or "right".
	Align map[string]string `yaml:"align"`
}

// XLSXConfig configures the spreadsheet encoder.
type XLSXConfig struct {
	// SheetName is the worksheet name. Default: "Sheet1"
	SheetName string `yaml:"sheet_name"`

	// MaxRows and MaxColumns lower the worksheet limits. Zero selects the
	// format maximum (1048576 rows including the header, 16384 columns).
	MaxRows    int `yaml:"max_rows"`
	MaxColumns int `yaml:"max_columns"`

	// Number formats for temporal cells.
	// Defaults: "dd/mm/yyyy", "hh:mm:ss", "dd/mm/yyyy hh:mm:ss"
	DateFormat      string `yaml:"date_format"`
	TimeFormat      string `yaml:"time_format"`
	TimestampFormat string `yaml:"timestamp_format"`
}

// SQLConfig configures the SQL statement encoder.
type SQLConfig struct {
	// Table is the target table name. Default: "export"
	Table string `yaml:"table"`

	// Dialect selects quoting: "postgres", "mysql" or "sqlite". When empty
	// the source connection's dialect is used.
	Dialect string `yaml:"dialect"`

	// RowsPerStatement is the number of rows per INSERT. Default: 100
	RowsPerStatement int `yaml:"rows_per_statement"`

	// CreateTable emits a CREATE TABLE statement first.
	CreateTable bool `yaml:"create_table"`
}

// ParquetConfig configures the Parquet encoder.
type ParquetConfig struct {
	// BatchRows is the number of rows written per batch. Default: 1024
	BatchRows int `yaml:"batch_rows"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	// Enabled records the outcome of every export.
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file. Default: "dbxport-history.db"
	Path string `yaml:"path"`

	// Retention drops runs older than this after each recorded run.
	// Zero keeps every run.
	Retention time.Duration `yaml:"retention"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains configuration for structured logging.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn" or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format: "json", "text" or "console".
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`

	// RedactSecrets masks passwords in URLs, DSNs and sensitive fields.
	// Default: true
	RedactSecrets *bool `yaml:"redact_secrets"`

	// RedactPatterns contains additional redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactSecretsEnabled reports whether secrets are masked in logs.
func (c LoggingConfig) RedactSecretsEnabled() bool {
	return c.RedactSecrets == nil || *c.RedactSecrets
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name identifies the pattern.
	Name string `yaml:"name"`

	// Pattern is a regular expression (RE2 syntax).
	Pattern string `yaml:"pattern"`

	// Replacement replaces each match. It may reference groups as $1.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled serves metrics over HTTP in schedule mode.
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the metrics server address. Default: "127.0.0.1:9187"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for metrics. Default: "/metrics"
	Path string `yaml:"path"`

	// Textfile, when set, receives the metrics in Prometheus text format
	// after every export, for node_exporter's textfile collector.
	Textfile string `yaml:"textfile"`
}
