package config

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"mercator-hq/dbxport/pkg/export/coerce"
	"mercator-hq/dbxport/pkg/export/encoder"
)

// Options converts the XLSX section to encoder options.
func (c XLSXConfig) Options() encoder.XLSXOptions {
	return encoder.XLSXOptions{
		SheetName:       c.SheetName,
		MaxRows:         c.MaxRows,
		MaxColumns:      c.MaxColumns,
		DateFormat:      c.DateFormat,
		TimeFormat:      c.TimeFormat,
		TimestampFormat: c.TimestampFormat,
	}
}

// EncoderOptions converts the export section to encoder options. source is
// the dialect of the connection being exported; it is used for SQL output
// when no dialect is configured.
func (c ExportConfig) EncoderOptions(source coerce.Dialect) (encoder.Options, error) {
	opts := encoder.Options{
		JSON:    encoder.JSONOptions{Pretty: c.JSON.Pretty},
		XLSX:    c.XLSX.Options(),
		Parquet: encoder.ParquetOptions{BatchRows: c.Parquet.BatchRows},
		SQL: encoder.SQLOptions{
			Table:            c.SQL.Table,
			Dialect:          coerce.Dialect(c.SQL.Dialect),
			RowsPerStatement: c.SQL.RowsPerStatement,
			CreateTable:      c.SQL.CreateTable,
		},
		GFM: encoder.GFMOptions{Pad: c.GFM.Pad},
		CSV: encoder.CSVOptions{
			NoHeader:     !c.CSV.HeaderEnabled(),
			SafeFormulas: c.CSV.SafeFormulas,
		},
	}
	if opts.SQL.Dialect == "" {
		opts.SQL.Dialect = source
	}

	if c.CSV.Delimiter != "" {
		r, size := utf8.DecodeRuneInString(c.CSV.Delimiter)
		if size != len(c.CSV.Delimiter) {
			return opts, fmt.Errorf("csv delimiter %q must be a single character", c.CSV.Delimiter)
		}
		opts.CSV.Delimiter = r
	}

	if len(c.GFM.Align) > 0 {
		opts.GFM.Align = make(map[string]encoder.Align, len(c.GFM.Align))
		for col, s := range c.GFM.Align {
			a, err := encoder.ParseAlign(s)
			if err != nil {
				return opts, fmt.Errorf("gfm align %q: %w", col, err)
			}
			opts.GFM.Align[col] = a
		}
	}

	return opts, nil
}

// JobTimeout returns the timeout for job, falling back to the export-wide
// timeout.
func (c *Config) JobTimeout(job JobConfig) time.Duration {
	if job.Timeout > 0 {
		return job.Timeout
	}
	return c.Export.Timeout
}

// ExpandOutput replaces the {job}, {date} and {time} placeholders of an
// output path for a run starting at now.
func ExpandOutput(path, job string, now time.Time) string {
	return strings.NewReplacer(
		"{job}", job,
		"{date}", now.Format("2006-01-02"),
		"{time}", now.Format("150405"),
	).Replace(path)
}
