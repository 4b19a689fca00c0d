package encoder

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"mercator-hq/dbxport/pkg/export"
)

// csvFlushInterval is how many rows are buffered between flushes.
const csvFlushInterval = 100

// CSVOptions configures the CSV encoder.
type CSVOptions struct {
	// NoHeader omits the header row of column names.
	NoHeader bool

	// Delimiter separates fields. Zero selects a comma.
	Delimiter rune

	// SafeFormulas prefixes text cells starting with =, +, - or @ with a
	// single quote so spreadsheet applications do not evaluate them.
	SafeFormulas bool
}

// CSVEncoder writes RFC 4180 CSV.
type CSVEncoder struct {
	opts   CSVOptions
	writer *csv.Writer
	schema *export.Schema
	record []string
	rows   int
}

// NewCSV creates a CSV encoder.
func NewCSV(opts CSVOptions) (*CSVEncoder, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.Delimiter == '"' || opts.Delimiter == '\r' || opts.Delimiter == '\n' {
		return nil, fmt.Errorf("invalid CSV delimiter %q", opts.Delimiter)
	}
	return &CSVEncoder{opts: opts}, nil
}

// Format returns FormatCSV.
func (e *CSVEncoder) Format() Format { return FormatCSV }

// Mode returns Streaming.
func (e *CSVEncoder) Mode() Mode { return Streaming }

// Begin writes the header row unless disabled.
func (e *CSVEncoder) Begin(w io.Writer, schema *export.Schema) error {
	e.writer = csv.NewWriter(w)
	e.writer.Comma = e.opts.Delimiter
	e.schema = schema
	e.record = make([]string, schema.Len())
	e.rows = 0

	if e.opts.NoHeader {
		return nil
	}
	if err := e.writer.Write(schema.Names()); err != nil {
		return export.NewEncodingError(string(FormatCSV), -1, "", err)
	}
	return nil
}

// WriteRow writes one record. Nulls are empty fields.
func (e *CSVEncoder) WriteRow(row export.Row) error {
	if len(row) != len(e.record) {
		return export.NewEncodingError(string(FormatCSV), e.rows, "", export.ErrRowShape)
	}

	for i, v := range row {
		field := v.String()
		if e.opts.SafeFormulas && v.Kind() == export.KindText && isFormula(field) {
			field = "'" + field
		}
		e.record[i] = field
	}

	if err := e.writer.Write(e.record); err != nil {
		return export.NewEncodingError(string(FormatCSV), e.rows, "", err)
	}

	e.rows++
	if e.rows%csvFlushInterval == 0 {
		e.writer.Flush()
		if err := e.writer.Error(); err != nil {
			return export.NewEncodingError(string(FormatCSV), e.rows-1, "", err)
		}
	}
	return nil
}

// Finish flushes buffered records.
func (e *CSVEncoder) Finish() error {
	e.writer.Flush()
	if err := e.writer.Error(); err != nil {
		return export.NewEncodingError(string(FormatCSV), -1, "", err)
	}
	return nil
}

func isFormula(s string) bool {
	return s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0]))
}
