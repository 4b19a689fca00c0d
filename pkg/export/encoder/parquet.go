package encoder

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"mercator-hq/dbxport/pkg/export"
)

const defaultParquetBatch = 1024

var errTimestampRange = errors.New("timestamp outside the nanosecond range of years 1678 to 2261")

// ParquetOptions configures the Parquet encoder.
type ParquetOptions struct {
	// BatchRows is the number of rows handed to the writer at once. Zero
	// selects 1024.
	BatchRows int
}

// ParquetEncoder writes a Parquet file with one optional leaf per column.
// Parquet groups order their fields by name, so the file's column order is
// alphabetical; readers address columns by name.
type ParquetEncoder struct {
	batchRows int

	writer  *parquet.Writer
	schema  *export.Schema
	leaves  []int
	pending []parquet.Row
	rows    int
}

// NewParquet creates a Parquet encoder.
func NewParquet(opts ParquetOptions) *ParquetEncoder {
	if opts.BatchRows <= 0 {
		opts.BatchRows = defaultParquetBatch
	}
	return &ParquetEncoder{batchRows: opts.BatchRows}
}

// Format returns FormatParquet.
func (e *ParquetEncoder) Format() Format { return FormatParquet }

// Mode returns Streaming.
func (e *ParquetEncoder) Mode() Mode { return Streaming }

// Begin derives the Parquet schema and opens the writer.
func (e *ParquetEncoder) Begin(w io.Writer, schema *export.Schema) error {
	group := make(parquet.Group, schema.Len())
	for _, col := range schema.Columns() {
		group[col.Name] = parquet.Optional(parquetNode(col.Kind))
	}
	ps := parquet.NewSchema("export", group)

	e.leaves = make([]int, schema.Len())
	for i, name := range schema.Names() {
		leaf, ok := ps.Lookup(name)
		if !ok {
			return export.NewEncodingError(string(FormatParquet), -1, name, fmt.Errorf("column missing from parquet schema"))
		}
		e.leaves[i] = leaf.ColumnIndex
	}

	e.schema = schema
	e.writer = parquet.NewWriter(w, ps)
	e.pending = e.pending[:0]
	e.rows = 0
	return nil
}

// WriteRow converts one row and writes a batch when full.
func (e *ParquetEncoder) WriteRow(row export.Row) error {
	format := string(FormatParquet)
	if len(row) != len(e.leaves) {
		return export.NewEncodingError(format, e.rows, "", export.ErrRowShape)
	}

	out := make(parquet.Row, len(row))
	for i, v := range row {
		pv, err := parquetValue(v)
		if err != nil {
			return export.NewEncodingError(format, e.rows, e.schema.Column(i).Name, err)
		}
		def := 1
		if v.IsNull() {
			def = 0
		}
		leaf := e.leaves[i]
		out[leaf] = pv.Level(0, def, leaf)
	}
	e.pending = append(e.pending, out)
	e.rows++

	if len(e.pending) >= e.batchRows {
		return e.flush()
	}
	return nil
}

// Finish writes buffered rows and the file footer.
func (e *ParquetEncoder) Finish() error {
	if err := e.flush(); err != nil {
		return err
	}
	if err := e.writer.Close(); err != nil {
		return export.NewEncodingError(string(FormatParquet), -1, "", err)
	}
	return nil
}

func (e *ParquetEncoder) flush() error {
	if len(e.pending) == 0 {
		return nil
	}
	if _, err := e.writer.WriteRows(e.pending); err != nil {
		return export.NewEncodingError(string(FormatParquet), e.rows-len(e.pending), "", err)
	}
	e.pending = e.pending[:0]
	return nil
}

func parquetNode(kind export.Kind) parquet.Node {
	switch kind {
	case export.KindBool:
		return parquet.Leaf(parquet.BooleanType)
	case export.KindInt:
		return parquet.Int(64)
	case export.KindFloat:
		return parquet.Leaf(parquet.DoubleType)
	case export.KindBytes:
		return parquet.Leaf(parquet.ByteArrayType)
	case export.KindDate:
		return parquet.Date()
	case export.KindTime:
		return parquet.Time(parquet.Nanosecond)
	case export.KindTimestamp:
		return parquet.Timestamp(parquet.Nanosecond)
	}
	// Text and decimals, which keep their exact textual form.
	return parquet.String()
}

func parquetValue(v export.Value) (parquet.Value, error) {
	switch v.Kind() {
	case export.KindNull:
		return parquet.NullValue(), nil
	case export.KindBool:
		return parquet.BooleanValue(v.Bool()), nil
	case export.KindInt:
		return parquet.Int64Value(v.Int()), nil
	case export.KindFloat:
		return parquet.DoubleValue(v.Float()), nil
	case export.KindDecimal:
		return parquet.ByteArrayValue([]byte(v.DecimalText())), nil
	case export.KindText:
		return parquet.ByteArrayValue([]byte(v.Text())), nil
	case export.KindBytes:
		return parquet.ByteArrayValue(v.Bytes()), nil
	case export.KindDate:
		days := v.Time().Unix() / int64(24*time.Hour/time.Second)
		return parquet.Int32Value(int32(days)), nil
	case export.KindTime:
		return parquet.Int64Value(int64(v.Clock())), nil
	case export.KindTimestamp:
		t := v.Time()
		if y := t.UTC().Year(); y < 1678 || y > 2261 {
			return parquet.Value{}, errTimestampRange
		}
		return parquet.Int64Value(t.UnixNano()), nil
	}
	return parquet.Value{}, fmt.Errorf("unsupported kind %s", v.Kind())
}
