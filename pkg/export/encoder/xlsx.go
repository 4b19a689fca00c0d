package encoder

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/xuri/excelize/v2"

	"mercator-hq/dbxport/pkg/export"
)

// Structural limits of an XLSX worksheet.
const (
	XLSXMaxRows     = 1_048_576
	XLSXMaxColumns  = 16_384
	XLSXMaxCellText = 32_767

	// Numbers with more significant digits than this lose precision as
	// IEEE-754 doubles and are written as text.
	xlsxMaxDigits = 15

	maxColumnWidth = 80
)

var (
	// ErrSheetLimit is returned when a dataset exceeds the sheet's rows or
	// columns.
	ErrSheetLimit = errors.New("worksheet limit exceeded")
	// ErrCellTooLong is returned for text longer than a cell can hold.
	ErrCellTooLong = errors.New("cell text exceeds 32767 characters")
)

// Excel serial dates count days from 1899-12-30.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// XLSXOptions configures the spreadsheet encoder.
type XLSXOptions struct {
	SheetName string

	// MaxRows and MaxColumns lower the worksheet limits. MaxRows counts the
	// header row. Zero selects the format maximum.
	MaxRows    int
	MaxColumns int

	DateFormat      string
	TimeFormat      string
	TimestampFormat string
}

// XLSXEncoder writes a single-sheet workbook with a bold, frozen header row,
// an autofilter and fitted column widths.
type XLSXEncoder struct {
	opts XLSXOptions
}

// NewXLSX creates a spreadsheet encoder.
func NewXLSX(opts XLSXOptions) (*XLSXEncoder, error) {
	if opts.SheetName == "" {
		opts.SheetName = "Sheet1"
	}
	if utf8.RuneCountInString(opts.SheetName) > 31 || strings.ContainsAny(opts.SheetName, `[]:*?/\`) {
		return nil, fmt.Errorf("invalid sheet name %q", opts.SheetName)
	}
	if opts.MaxRows < 0 || opts.MaxRows > XLSXMaxRows {
		return nil, fmt.Errorf("max rows must be between 1 and %d", XLSXMaxRows)
	}
	if opts.MaxColumns < 0 || opts.MaxColumns > XLSXMaxColumns {
		return nil, fmt.Errorf("max columns must be between 1 and %d", XLSXMaxColumns)
	}
	if opts.MaxRows == 0 {
		opts.MaxRows = XLSXMaxRows
	}
	if opts.MaxColumns == 0 {
		opts.MaxColumns = XLSXMaxColumns
	}
	if opts.DateFormat == "" {
		opts.DateFormat = "dd/mm/yyyy"
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = "hh:mm:ss"
	}
	if opts.TimestampFormat == "" {
		opts.TimestampFormat = "dd/mm/yyyy hh:mm:ss"
	}
	return &XLSXEncoder{opts: opts}, nil
}

// Format returns FormatXLSX.
func (e *XLSXEncoder) Format() Format { return FormatXLSX }

// Mode returns Materializing.
func (e *XLSXEncoder) Mode() Mode { return Materializing }

// MaxRows returns the number of data rows a sheet can hold below the header.
func (e *XLSXEncoder) MaxRows() int { return e.opts.MaxRows - 1 }

// Encode builds the workbook and writes it to w.
func (e *XLSXEncoder) Encode(w io.Writer, ds *export.Dataset) error {
	format := string(FormatXLSX)
	schema := ds.Schema

	if schema.Len() > e.opts.MaxColumns {
		return export.NewEncodingError(format, -1, "",
			fmt.Errorf("%w: %d columns, limit %d", ErrSheetLimit, schema.Len(), e.opts.MaxColumns))
	}
	if len(ds.Rows) > e.MaxRows() {
		return export.NewEncodingError(format, e.MaxRows(), "",
			fmt.Errorf("%w: %d rows plus header, limit %d", ErrSheetLimit, len(ds.Rows), e.opts.MaxRows))
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := e.opts.SheetName
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return export.NewEncodingError(format, -1, "", err)
	}

	styles, err := e.newStyles(f)
	if err != nil {
		return export.NewEncodingError(format, -1, "", err)
	}

	widths := make([]int, schema.Len())
	for c, col := range schema.Columns() {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellValue(sheet, cell, col.Name); err != nil {
			return export.NewEncodingError(format, -1, col.Name, err)
		}
		widths[c] = runewidth.StringWidth(col.Name)
	}

	for r, row := range ds.Rows {
		if len(row) != schema.Len() {
			return export.NewEncodingError(format, r, "", export.ErrRowShape)
		}
		for c, v := range row {
			if v.IsNull() {
				continue
			}
			name := schema.Column(c).Name
			value, text, err := e.cellValue(v)
			if err != nil {
				return export.NewEncodingError(format, r, name, err)
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return export.NewEncodingError(format, r, name, err)
			}
			if width := runewidth.StringWidth(text); width > widths[c] {
				widths[c] = width
			}
		}
	}

	lastRow := len(ds.Rows) + 1
	for c, col := range schema.Columns() {
		name, _ := excelize.ColumnNumberToName(c + 1)
		if style, ok := styles.kinds[col.Kind]; ok && lastRow > 1 {
			if err := f.SetCellStyle(sheet, name+"2", fmt.Sprintf("%s%d", name, lastRow), style); err != nil {
				return export.NewEncodingError(format, -1, col.Name, err)
			}
		}
		if err := f.SetColWidth(sheet, name, name, float64(min(widths[c], maxColumnWidth)+2)); err != nil {
			return export.NewEncodingError(format, -1, col.Name, err)
		}
	}

	if schema.Len() > 0 {
		last, _ := excelize.CoordinatesToCellName(schema.Len(), 1)
		if err := f.SetCellStyle(sheet, "A1", last, styles.header); err != nil {
			return export.NewEncodingError(format, -1, "", err)
		}
		if err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
			Selection:   []excelize.Selection{{SQRef: "A2", ActiveCell: "A2", Pane: "bottomLeft"}},
		}); err != nil {
			return export.NewEncodingError(format, -1, "", err)
		}
		bottomRight, _ := excelize.CoordinatesToCellName(schema.Len(), lastRow)
		if err := f.AutoFilter(sheet, "A1:"+bottomRight, nil); err != nil {
			return export.NewEncodingError(format, -1, "", err)
		}
	}

	if err := f.Write(w); err != nil {
		return export.NewEncodingError(format, -1, "", err)
	}
	return nil
}

type xlsxStyles struct {
	header int
	kinds  map[export.Kind]int
}

func (e *XLSXEncoder) newStyles(f *excelize.File) (xlsxStyles, error) {
	s := xlsxStyles{kinds: make(map[export.Kind]int)}

	var err error
	s.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return s, err
	}

	formats := map[export.Kind]string{
		export.KindInt:       "#,##0",
		export.KindFloat:     "#,##0.00",
		export.KindDate:      e.opts.DateFormat,
		export.KindTime:      e.opts.TimeFormat,
		export.KindTimestamp: e.opts.TimestampFormat,
	}
	for kind, numFmt := range formats {
		id, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
		if err != nil {
			return s, err
		}
		s.kinds[kind] = id
	}
	return s, nil
}

// cellValue maps a Value to the value stored in its cell and the text used
// to size its column.
func (e *XLSXEncoder) cellValue(v export.Value) (any, string, error) {
	switch v.Kind() {
	case export.KindBool:
		return v.Bool(), v.String(), nil
	case export.KindInt:
		i := v.Int()
		if i > -1e15 && i < 1e15 {
			return i, v.String(), nil
		}
		return v.String(), v.String(), nil
	case export.KindFloat:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return v.String(), v.String(), nil
		}
		return f, v.String(), nil
	case export.KindDecimal:
		text := v.DecimalText()
		if significantDigits(text) > xlsxMaxDigits {
			return text, text, nil
		}
		f, _ := v.Decimal().Float64()
		return f, text, nil
	case export.KindText:
		text := v.Text()
		if utf8.RuneCountInString(text) > XLSXMaxCellText {
			return nil, "", ErrCellTooLong
		}
		return text, text, nil
	case export.KindBytes:
		text := base64.StdEncoding.EncodeToString(v.Bytes())
		if len(text) > XLSXMaxCellText {
			return nil, "", ErrCellTooLong
		}
		return text, text, nil
	case export.KindDate, export.KindTimestamp:
		return excelSerial(v.Time()), v.String(), nil
	case export.KindTime:
		return float64(v.Clock()) / float64(24*time.Hour), v.String(), nil
	}
	return nil, "", nil
}

// excelSerial converts the wall clock of t to an Excel serial date.
func excelSerial(t time.Time) float64 {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	wall := time.Date(y, mo, d, h, mi, s, t.Nanosecond(), time.UTC)
	return float64(wall.Sub(excelEpoch)) / float64(24*time.Hour)
}

// significantDigits counts the significant digits of a decimal literal.
func significantDigits(s string) int {
	s = strings.TrimLeft(s, "+-")
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		s = s[:i]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	digits := strings.TrimLeft(intPart+frac, "0")
	digits = strings.TrimRight(digits, "0")
	return len(digits)
}
