package config

// Default values for configuration fields.
const (
	// Export defaults
	DefaultMaxBufferedRows  = 0
	DefaultCompression      = "none"
	DefaultCSVDelimiter     = ","
	DefaultXLSXSheetName    = "Sheet1"
	DefaultXLSXDateFormat   = "dd/mm/yyyy"
	DefaultXLSXTimeFormat   = "hh:mm:ss"
	DefaultXLSXTSFormat     = "dd/mm/yyyy hh:mm:ss"
	DefaultSQLTable         = "export"
	DefaultRowsPerStatement = 100
	DefaultParquetBatchRows = 1024

	// History defaults
	DefaultHistoryPath = "dbxport-history.db"

	// Telemetry defaults
	DefaultLoggingLevel         = "info"
	DefaultLoggingFormat        = "text"
	DefaultMetricsListenAddress = "127.0.0.1:9187"
	DefaultMetricsPath          = "/metrics"
)

// ApplyDefaults fills zero-valued fields with their defaults. Fields that
// are already set are left alone.
func ApplyDefaults(cfg *Config) {
	if cfg.Connections == nil {
		cfg.Connections = make(map[string]ConnectionConfig)
	}
	if cfg.Jobs == nil {
		cfg.Jobs = make(map[string]JobConfig)
	}

	applyExportDefaults(&cfg.Export)

	// Job compression stays empty so the output suffix can select it at
	// run time.
	for name, job := range cfg.Jobs {
		if job.Timeout == 0 {
			job.Timeout = cfg.Export.Timeout
		}
		cfg.Jobs[name] = job
	}

	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}

func applyExportDefaults(cfg *ExportConfig) {
	if cfg.Compression == "" {
		cfg.Compression = DefaultCompression
	}
	if cfg.CSV.Delimiter == "" {
		cfg.CSV.Delimiter = DefaultCSVDelimiter
	}
	if cfg.XLSX.SheetName == "" {
		cfg.XLSX.SheetName = DefaultXLSXSheetName
	}
	if cfg.XLSX.DateFormat == "" {
		cfg.XLSX.DateFormat = DefaultXLSXDateFormat
	}
	if cfg.XLSX.TimeFormat == "" {
		cfg.XLSX.TimeFormat = DefaultXLSXTimeFormat
	}
	if cfg.XLSX.TimestampFormat == "" {
		cfg.XLSX.TimestampFormat = DefaultXLSXTSFormat
	}
	if cfg.SQL.Table == "" {
		cfg.SQL.Table = DefaultSQLTable
	}
	if cfg.SQL.RowsPerStatement == 0 {
		cfg.SQL.RowsPerStatement = DefaultRowsPerStatement
	}
	if cfg.Parquet.BatchRows == 0 {
		cfg.Parquet.BatchRows = DefaultParquetBatchRows
	}
}
