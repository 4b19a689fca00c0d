package encoder

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"unicode/utf8"

	"mercator-hq/dbxport/pkg/export"
)

var (
	errNonFinite   = errors.New("non-finite float has no JSON representation")
	errInvalidUTF8 = errors.New("text is not valid UTF-8")
)

// JSONOptions configures the JSON encoder.
type JSONOptions struct {
	// Pretty indents each object on its own lines.
	Pretty bool
}

// JSONEncoder writes rows as JSON objects keyed by column name, either as a
// single array or, in NDJSON mode, one object per line.
type JSONEncoder struct {
	pretty bool
	lines  bool

	w       *bufio.Writer
	schema  *export.Schema
	keys    [][]byte
	buf     []byte
	scratch bytes.Buffer
	quoter  jsonQuoter
	rows    int
}

// NewJSON creates a JSON array encoder.
func NewJSON(opts JSONOptions) *JSONEncoder {
	return &JSONEncoder{pretty: opts.Pretty}
}

// NewNDJSON creates a newline-delimited JSON encoder.
func NewNDJSON() *JSONEncoder {
	return &JSONEncoder{lines: true}
}

// Format returns FormatJSON or FormatNDJSON.
func (e *JSONEncoder) Format() Format {
	if e.lines {
		return FormatNDJSON
	}
	return FormatJSON
}

// Mode returns Streaming.
func (e *JSONEncoder) Mode() Mode { return Streaming }

// Begin writes the opening bracket of the array.
func (e *JSONEncoder) Begin(w io.Writer, schema *export.Schema) error {
	e.w = bufio.NewWriter(w)
	e.schema = schema
	e.rows = 0

	e.keys = make([][]byte, schema.Len())
	for i, name := range schema.Names() {
		e.keys[i] = e.quoter.append(nil, name)
	}

	if e.lines {
		return nil
	}
	if _, err := e.w.WriteString("["); err != nil {
		return export.NewEncodingError(string(e.Format()), -1, "", err)
	}
	return nil
}

// WriteRow appends one object.
func (e *JSONEncoder) WriteRow(row export.Row) error {
	format := string(e.Format())
	if len(row) != e.schema.Len() {
		return export.NewEncodingError(format, e.rows, "", export.ErrRowShape)
	}

	buf := append(e.buf[:0], '{')
	for i, v := range row {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, e.keys[i]...)
		buf = append(buf, ':')

		var err error
		buf, err = e.appendValue(buf, v)
		if err != nil {
			return export.NewEncodingError(format, e.rows, e.schema.Column(i).Name, err)
		}
	}
	buf = append(buf, '}')
	e.buf = buf

	if e.pretty && !e.lines {
		e.scratch.Reset()
		if err := json.Indent(&e.scratch, buf, "  ", "  "); err != nil {
			return export.NewEncodingError(format, e.rows, "", err)
		}
		buf = e.scratch.Bytes()
	}

	var err error
	switch {
	case e.lines:
		_, err = e.w.Write(buf)
		if err == nil {
			err = e.w.WriteByte('\n')
		}
	default:
		if e.rows > 0 {
			err = e.w.WriteByte(',')
		}
		if err == nil && e.pretty {
			_, err = e.w.WriteString("\n  ")
		}
		if err == nil {
			_, err = e.w.Write(buf)
		}
	}
	if err != nil {
		return export.NewEncodingError(format, e.rows, "", err)
	}

	e.rows++
	return nil
}

// Finish closes the array and flushes buffered output.
func (e *JSONEncoder) Finish() error {
	format := string(e.Format())
	if !e.lines {
		closing := "]"
		if e.pretty {
			closing = "]\n"
			if e.rows > 0 {
				closing = "\n]\n"
			}
		}
		if _, err := e.w.WriteString(closing); err != nil {
			return export.NewEncodingError(format, -1, "", err)
		}
	}
	if err := e.w.Flush(); err != nil {
		return export.NewEncodingError(format, -1, "", err)
	}
	return nil
}

// appendValue appends the JSON form of v. Decimals are strings so no
// precision is lost to JSON's number type.
func (e *JSONEncoder) appendValue(buf []byte, v export.Value) ([]byte, error) {
	switch v.Kind() {
	case export.KindNull:
		return append(buf, "null"...), nil
	case export.KindBool:
		return strconv.AppendBool(buf, v.Bool()), nil
	case export.KindInt:
		return strconv.AppendInt(buf, v.Int(), 10), nil
	case export.KindFloat:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return buf, errNonFinite
		}
		b, err := json.Marshal(f)
		if err != nil {
			return buf, err
		}
		return append(buf, b...), nil
	case export.KindBytes:
		buf = append(buf, '"')
		buf = base64.StdEncoding.AppendEncode(buf, v.Bytes())
		return append(buf, '"'), nil
	case export.KindText:
		if !utf8.ValidString(v.Text()) {
			return buf, errInvalidUTF8
		}
	}
	return e.quoter.append(buf, v.String()), nil
}

// jsonQuoter quotes strings without HTML escaping, reusing one encoder.
type jsonQuoter struct {
	b   bytes.Buffer
	enc *json.Encoder
}

func (q *jsonQuoter) append(buf []byte, s string) []byte {
	if q.enc == nil {
		q.enc = json.NewEncoder(&q.b)
		q.enc.SetEscapeHTML(false)
	}
	q.b.Reset()
	if err := q.enc.Encode(s); err != nil {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, bytes.TrimSuffix(q.b.Bytes(), []byte("\n"))...)
}
