package encoder

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"mercator-hq/dbxport/pkg/export"
)

// Mode is an encoder's buffering requirement.
type Mode int

const (
	// Streaming encoders accept rows one at a time.
	Streaming Mode = iota
	// Materializing encoders need the full Dataset before writing anything.
	Materializing
)

// String returns the mode name.
func (m Mode) String() string {
	if m == Materializing {
		return "materializing"
	}
	return "streaming"
}

// Format identifies an output format.
type Format string

const (
	FormatJSON    Format = "json"
	FormatNDJSON  Format = "ndjson"
	FormatGFM     Format = "gfm"
	FormatXLSX    Format = "xlsx"
	FormatCSV     Format = "csv"
	FormatSQL     Format = "sql"
	FormatParquet Format = "parquet"
)

var formatInfo = map[Format]struct {
	mode       Mode
	extensions []string
	aliases    []string
}{
	FormatJSON:    {Streaming, []string{".json"}, nil},
	FormatNDJSON:  {Streaming, []string{".ndjson", ".jsonl"}, []string{"jsonl"}},
	FormatGFM:     {Materializing, []string{".md", ".markdown"}, []string{"md", "markdown"}},
	FormatXLSX:    {Materializing, []string{".xlsx"}, []string{"excel"}},
	FormatCSV:     {Streaming, []string{".csv", ".tsv"}, nil},
	FormatSQL:     {Streaming, []string{".sql"}, nil},
	FormatParquet: {Streaming, []string{".parquet"}, nil},
}

// Formats returns every supported format in display order.
func Formats() []Format {
	return []Format{FormatJSON, FormatNDJSON, FormatGFM, FormatXLSX, FormatCSV, FormatSQL, FormatParquet}
}

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	_, ok := formatInfo[f]
	return ok
}

// Mode returns the buffering mode of f.
func (f Format) Mode() Mode { return formatInfo[f].mode }

// Extensions returns the file extensions associated with f.
func (f Format) Extensions() []string { return formatInfo[f].extensions }

// ParseFormat parses a format name or alias, case-insensitively.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for f, info := range formatInfo {
		if string(f) == name {
			return f, nil
		}
		for _, alias := range info.aliases {
			if alias == name {
				return f, nil
			}
		}
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// FormatFromPath infers the format from an output path's extension. A
// trailing ".sz" compression suffix is ignored.
func FormatFromPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".sz" {
		ext = strings.ToLower(filepath.Ext(strings.TrimSuffix(path, filepath.Ext(path))))
	}
	for _, f := range Formats() {
		for _, e := range f.Extensions() {
			if e == ext {
				return f, nil
			}
		}
	}
	return "", fmt.Errorf("cannot infer format from %q", path)
}

// Encoder is implemented by every output format. Each value also implements
// exactly one of StreamEncoder or MaterializingEncoder, matching Mode.
type Encoder interface {
	Format() Format
	Mode() Mode
}

// StreamEncoder writes rows incrementally. Begin is called once, then
// WriteRow once per row in order, then Finish.
type StreamEncoder interface {
	Encoder
	Begin(w io.Writer, schema *export.Schema) error
	WriteRow(row export.Row) error
	Finish() error
}

// MaterializingEncoder writes a complete Dataset in one call.
type MaterializingEncoder interface {
	Encoder
	Encode(w io.Writer, ds *export.Dataset) error
}

// RowLimiter is implemented by encoders with a structural row ceiling so the
// pipeline can fail before buffering rows that could never be written.
type RowLimiter interface {
	MaxRows() int
}

// Options holds per-format settings. Zero values select defaults.
type Options struct {
	JSON    JSONOptions
	CSV     CSVOptions
	GFM     GFMOptions
	XLSX    XLSXOptions
	SQL     SQLOptions
	Parquet ParquetOptions
}

// New builds a fresh encoder for one export.
func New(f Format, opts Options) (Encoder, error) {
	switch f {
	case FormatJSON:
		return NewJSON(opts.JSON), nil
	case FormatNDJSON:
		return NewNDJSON(), nil
	case FormatGFM:
		return NewGFM(opts.GFM), nil
	case FormatXLSX:
		enc, err := NewXLSX(opts.XLSX)
		if err != nil {
			return nil, err
		}
		return enc, nil
	case FormatCSV:
		enc, err := NewCSV(opts.CSV)
		if err != nil {
			return nil, err
		}
		return enc, nil
	case FormatSQL:
		return NewSQL(opts.SQL), nil
	case FormatParquet:
		return NewParquet(opts.Parquet), nil
	}
	return nil, fmt.Errorf("unknown format %q", f)
}
