package export

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies the canonical type of a Value.
type Kind uint8

const (
	// KindNull is the absence of a value. It is never a column kind.
	KindNull Kind = iota
	// KindBool is a boolean.
	KindBool
	// KindInt is a 64-bit signed integer.
	KindInt
	// KindFloat is a 64-bit IEEE-754 float.
	KindFloat
	// KindDecimal is an exact decimal number kept in its textual form.
	KindDecimal
	// KindText is a UTF-8 string.
	KindText
	// KindBytes is an opaque byte string.
	KindBytes
	// KindDate is a calendar date without time of day.
	KindDate
	// KindTime is a time of day without a date.
	KindTime
	// KindTimestamp is a date and time of day, with or without a zone.
	KindTimestamp
)

var kindNames = [...]string{
	KindNull:      "null",
	KindBool:      "bool",
	KindInt:       "int",
	KindFloat:     "float",
	KindDecimal:   "decimal",
	KindText:      "text",
	KindBytes:     "bytes",
	KindDate:      "date",
	KindTime:      "time",
	KindTimestamp: "timestamp",
}

// String returns the lower-case kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return int(k) < len(kindNames)
}

// Layouts used by Value.String for temporal kinds.
const (
	DateLayout           = "2006-01-02"
	TimeLayout           = "15:04:05.999999999"
	NaiveTimestampLayout = "2006-01-02T15:04:05.999999999"
	ZonedTimestampLayout = time.RFC3339Nano
)

// Value is the canonical, format-agnostic representation of a single cell.
// The zero Value is Null.
type Value struct {
	kind  Kind
	num   int64 // bool, int, time of day (nanoseconds since midnight)
	flt   float64
	str   string // text, decimal
	raw   []byte
	t     time.Time
	zoned bool
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Bool returns a boolean Value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// Int returns an integer Value.
func Int(i int64) Value { return Value{kind: KindInt, num: i} }

// Float returns a floating point Value.
func Float(f float64) Value { return Value{kind: KindFloat, flt: f} }

// Decimal returns an exact decimal Value from its textual form. The text is
// validated but kept verbatim so that scale and trailing zeros survive.
func Decimal(s string) (Value, error) {
	if _, err := decimal.NewFromString(s); err != nil {
		return Value{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return Value{kind: KindDecimal, str: s}, nil
}

// DecimalFrom returns a decimal Value from a shopspring decimal.
func DecimalFrom(d decimal.Decimal) Value {
	return Value{kind: KindDecimal, str: d.String()}
}

// Text returns a text Value.
func Text(s string) Value { return Value{kind: KindText, str: s} }

// Bytes returns a bytes Value. The slice is copied.
func Bytes(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBytes, raw: cp}
}

// Date returns a date Value. Only the calendar date of t in its own location
// is kept.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// TimeOfDay returns a time-of-day Value from the offset since midnight.
// Offsets outside [0, 24h) are wrapped into a single day.
func TimeOfDay(d time.Duration) Value {
	day := 24 * time.Hour
	d %= day
	if d < 0 {
		d += day
	}
	return Value{kind: KindTime, num: int64(d)}
}

// ClockTime returns a time-of-day Value from the wall clock of t.
func ClockTime(t time.Time) Value {
	h, m, s := t.Clock()
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
	return TimeOfDay(d)
}

// Timestamp returns a zoned timestamp Value; t keeps its location.
func Timestamp(t time.Time) Value {
	return Value{kind: KindTimestamp, t: t, zoned: true}
}

// NaiveTimestamp returns a zone-naive timestamp Value. The wall clock of t is
// kept and its location is discarded.
func NaiveTimestamp(t time.Time) Value {
	return Value{kind: KindTimestamp, t: wallClock(t)}
}

func wallClock(t time.Time) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, t.Nanosecond(), time.UTC)
}

// Kind returns the kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean payload. It is false for other kinds.
func (v Value) Bool() bool { return v.kind == KindBool && v.num != 0 }

// Int returns the integer payload. It is 0 for other kinds.
func (v Value) Int() int64 {
	if v.kind != KindInt {
		return 0
	}
	return v.num
}

// Float returns the float payload. It is 0 for other kinds.
func (v Value) Float() float64 {
	if v.kind != KindFloat {
		return 0
	}
	return v.flt
}

// DecimalText returns the verbatim decimal text. It is empty for other kinds.
func (v Value) DecimalText() string {
	if v.kind != KindDecimal {
		return ""
	}
	return v.str
}

// Decimal returns the decimal payload as a shopspring decimal.
func (v Value) Decimal() decimal.Decimal {
	if v.kind != KindDecimal {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v.str)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Text returns the text payload. It is empty for other kinds.
func (v Value) Text() string {
	if v.kind != KindText {
		return ""
	}
	return v.str
}

// Bytes returns the bytes payload. The slice must not be modified.
func (v Value) Bytes() []byte {
	if v.kind != KindBytes {
		return nil
	}
	return v.raw
}

// Time returns the payload of a date or timestamp Value. Dates are at
// midnight UTC and naive timestamps carry their wall clock in UTC.
func (v Value) Time() time.Time {
	if v.kind != KindDate && v.kind != KindTimestamp {
		return time.Time{}
	}
	return v.t
}

// Zoned reports whether a timestamp carries zone information.
func (v Value) Zoned() bool { return v.kind == KindTimestamp && v.zoned }

// Clock returns the time-of-day payload as an offset since midnight.
func (v Value) Clock() time.Duration {
	if v.kind != KindTime {
		return 0
	}
	return time.Duration(v.num)
}

// Equal reports whether v and o have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool, KindInt, KindTime:
		return v.num == o.num
	case KindFloat:
		return v.flt == o.flt || (math.IsNaN(v.flt) && math.IsNaN(o.flt))
	case KindDecimal, KindText:
		return v.str == o.str
	case KindBytes:
		return string(v.raw) == string(o.raw)
	case KindDate:
		return v.t.Equal(o.t)
	case KindTimestamp:
		return v.zoned == o.zoned && v.t.Equal(o.t)
	}
	return false
}

// String renders v as plain text. Null renders as the empty string, bytes as
// standard base64, and temporal kinds as ISO-8601.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.num != 0)
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return FormatFloat(v.flt)
	case KindDecimal, KindText:
		return v.str
	case KindBytes:
		return base64.StdEncoding.EncodeToString(v.raw)
	case KindDate:
		return v.t.Format(DateLayout)
	case KindTime:
		return time.Time{}.Add(time.Duration(v.num)).Format(TimeLayout)
	case KindTimestamp:
		if v.zoned {
			return v.t.Format(ZonedTimestampLayout)
		}
		return v.t.Format(NaiveTimestampLayout)
	}
	return ""
}

// GoString implements fmt.GoStringer for test diagnostics.
func (v Value) GoString() string {
	if v.kind == KindNull {
		return "export.Null()"
	}
	return fmt.Sprintf("export.Value{%s:%q}", v.kind, v.String())
}

// FormatFloat formats f the way encoding/json does: plain notation unless the
// exponent is very small or very large.
func FormatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "+Inf"
	}
	if math.IsInf(f, -1) {
		return "-Inf"
	}
	if math.IsNaN(f) {
		return "NaN"
	}
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	return strconv.FormatFloat(f, format, -1, 64)
}
