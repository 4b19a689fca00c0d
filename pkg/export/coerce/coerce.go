package coerce

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"mercator-hq/dbxport/pkg/export"
)

// ErrUnrepresentable is returned when a native value cannot be represented in
// its column's canonical kind without loss.
var ErrUnrepresentable = errors.New("value not representable")

// Timestamp layouts accepted from textual driver values, most specific first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Coerce converts a native driver value to a canonical Value of the mapped
// kind. nil always maps to Null. It never panics.
func (m Mapping) Coerce(native any) (v export.Value, err error) {
	if native == nil {
		return export.Null(), nil
	}

	defer func() {
		if r := recover(); r != nil {
			v, err = export.Null(), fmt.Errorf("%w: %v", ErrUnrepresentable, r)
		}
	}()

	kind := m.Kind
	if kind == export.KindNull {
		kind = Infer(native).Kind
	}

	switch kind {
	case export.KindBool:
		return toBool(native)
	case export.KindInt:
		return toInt(native)
	case export.KindFloat:
		return toFloat(native)
	case export.KindDecimal:
		return toDecimal(native)
	case export.KindText:
		return toText(native)
	case export.KindBytes:
		return toBytes(native)
	case export.KindDate:
		return toDate(native)
	case export.KindTime:
		return toTime(native)
	case export.KindTimestamp:
		return toTimestamp(native, m.Zoned)
	}
	return export.Null(), fmt.Errorf("%w: no conversion to %s", ErrUnrepresentable, kind)
}

// Infer resolves the mapping of an untyped column from one of its values.
func Infer(native any) Mapping {
	m := Mapping{Dialect: SQLite}
	switch n := native.(type) {
	case bool:
		m.Kind = export.KindBool
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		m.Kind = export.KindInt
	case uint, uint64:
		m.Kind = export.KindDecimal
	case float32, float64:
		m.Kind = export.KindFloat
	case []byte:
		m.Kind = export.KindBytes
	case time.Time:
		m.Kind = export.KindTimestamp
		m.Zoned = n.Location() != time.UTC
	default:
		m.Kind = export.KindText
	}
	return m
}

func unrepresentable(native any, kind export.Kind) error {
	return fmt.Errorf("%w: %T %v as %s", ErrUnrepresentable, native, truncate(native), kind)
}

func truncate(native any) string {
	s := fmt.Sprint(native)
	if b, ok := native.([]byte); ok {
		s = string(b)
	}
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}

// asInt64 widens any signed or small unsigned integer type.
func asInt64(native any) (int64, bool) {
	switch n := native.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), true
		}
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	}
	return 0, false
}

func asString(native any) (string, bool) {
	switch n := native.(type) {
	case string:
		return n, true
	case []byte:
		return string(n), true
	}
	return "", false
}

func toBool(native any) (export.Value, error) {
	if b, ok := native.(bool); ok {
		return export.Bool(b), nil
	}
	if i, ok := asInt64(native); ok {
		return export.Bool(i != 0), nil
	}
	if s, ok := asString(native); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err == nil {
			return export.Bool(b), nil
		}
	}
	return export.Null(), unrepresentable(native, export.KindBool)
}

func toInt(native any) (export.Value, error) {
	if i, ok := asInt64(native); ok {
		return export.Int(i), nil
	}
	switch n := native.(type) {
	case bool:
		if n {
			return export.Int(1), nil
		}
		return export.Int(0), nil
	case float64:
		if n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64 {
			return export.Int(int64(n)), nil
		}
	case float32:
		f := float64(n)
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return export.Int(int64(f)), nil
		}
	}
	if s, ok := asString(native); ok {
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err == nil {
			return export.Int(i), nil
		}
	}
	return export.Null(), unrepresentable(native, export.KindInt)
}

func toFloat(native any) (export.Value, error) {
	switch n := native.(type) {
	case float64:
		return export.Float(n), nil
	case float32:
		// Use the shortest decimal form of the float32 so that 1.1 stays 1.1.
		f, err := strconv.ParseFloat(strconv.FormatFloat(float64(n), 'g', -1, 32), 64)
		if err != nil {
			return export.Float(float64(n)), nil
		}
		return export.Float(f), nil
	}
	if i, ok := asInt64(native); ok {
		return export.Float(float64(i)), nil
	}
	if s, ok := asString(native); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil {
			return export.Float(f), nil
		}
	}
	return export.Null(), unrepresentable(native, export.KindFloat)
}

func toDecimal(native any) (export.Value, error) {
	switch n := native.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return export.Null(), unrepresentable(native, export.KindDecimal)
		}
		return export.Decimal(strconv.FormatFloat(n, 'f', -1, 64))
	case float32:
		f := float64(n)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return export.Null(), unrepresentable(native, export.KindDecimal)
		}
		return export.Decimal(strconv.FormatFloat(f, 'f', -1, 32))
	case uint64:
		return export.Decimal(strconv.FormatUint(n, 10))
	case uint:
		return export.Decimal(strconv.FormatUint(uint64(n), 10))
	}
	if i, ok := asInt64(native); ok {
		return export.Decimal(strconv.FormatInt(i, 10))
	}
	if s, ok := asString(native); ok {
		v, err := export.Decimal(strings.TrimSpace(s))
		if err != nil {
			return export.Null(), fmt.Errorf("%w: %v", ErrUnrepresentable, err)
		}
		return v, nil
	}
	return export.Null(), unrepresentable(native, export.KindDecimal)
}

func toText(native any) (export.Value, error) {
	switch n := native.(type) {
	case string:
		return export.Text(n), nil
	case []byte:
		if !utf8.Valid(n) {
			return export.Null(), fmt.Errorf("%w: invalid UTF-8 in text value", ErrUnrepresentable)
		}
		return export.Text(string(n)), nil
	case bool:
		return export.Text(strconv.FormatBool(n)), nil
	case float64:
		return export.Text(export.FormatFloat(n)), nil
	case float32:
		return export.Text(strconv.FormatFloat(float64(n), 'g', -1, 32)), nil
	case time.Time:
		return export.Text(n.Format(time.RFC3339Nano)), nil
	case uint64:
		return export.Text(strconv.FormatUint(n, 10)), nil
	}
	if i, ok := asInt64(native); ok {
		return export.Text(strconv.FormatInt(i, 10)), nil
	}
	return export.Null(), unrepresentable(native, export.KindText)
}

func toBytes(native any) (export.Value, error) {
	switch n := native.(type) {
	case []byte:
		return export.Bytes(n), nil
	case string:
		return export.Bytes([]byte(n)), nil
	}
	return export.Null(), unrepresentable(native, export.KindBytes)
}

func toDate(native any) (export.Value, error) {
	if t, ok := native.(time.Time); ok {
		return export.Date(t), nil
	}
	if s, ok := asString(native); ok {
		if t, _, err := parseTimestamp(s); err == nil {
			return export.Date(t), nil
		}
	}
	return export.Null(), unrepresentable(native, export.KindDate)
}

func toTime(native any) (export.Value, error) {
	if t, ok := native.(time.Time); ok {
		return export.ClockTime(t), nil
	}
	if s, ok := asString(native); ok {
		d, err := parseClock(s)
		if err != nil {
			return export.Null(), fmt.Errorf("%w: %v", ErrUnrepresentable, err)
		}
		return export.TimeOfDay(d), nil
	}
	if i, ok := asInt64(native); ok && i >= 0 && i < int64(24*time.Hour/time.Second) {
		return export.TimeOfDay(time.Duration(i) * time.Second), nil
	}
	return export.Null(), unrepresentable(native, export.KindTime)
}

func toTimestamp(native any, zoned bool) (export.Value, error) {
	var t time.Time
	switch n := native.(type) {
	case time.Time:
		t = n
	case int64:
		// SQLite stores unix seconds in INTEGER-typed DATETIME columns.
		t = time.Unix(n, 0).UTC()
	default:
		s, ok := asString(native)
		if !ok {
			return export.Null(), unrepresentable(native, export.KindTimestamp)
		}
		parsed, _, err := parseTimestamp(s)
		if err != nil {
			return export.Null(), fmt.Errorf("%w: %v", ErrUnrepresentable, err)
		}
		t = parsed
	}
	if zoned {
		return export.Timestamp(t), nil
	}
	return export.NaiveTimestamp(t), nil
}

// parseTimestamp parses textual timestamps. Values without an offset are
// read as UTC wall clock. It reports whether the text carried a zone.
func parseTimestamp(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, strings.Contains(layout, "07"), nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized timestamp %q", s)
}

// parseClock parses "HH:MM[:SS[.fraction]]". Negative values and values of a
// day or more are rejected: MySQL TIME columns allow them but a time of day
// does not.
func parseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("negative time %q", s)
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("unrecognized time %q", s)
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("unrecognized time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("unrecognized time %q", s)
	}

	var sec time.Duration
	if len(parts) == 3 {
		secText, fracText, _ := strings.Cut(parts[2], ".")
		whole, err := strconv.Atoi(secText)
		if err != nil || whole < 0 || whole > 59 {
			return 0, fmt.Errorf("unrecognized time %q", s)
		}
		sec = time.Duration(whole) * time.Second
		if fracText != "" {
			if len(fracText) > 9 {
				return 0, fmt.Errorf("time %q exceeds nanosecond precision", s)
			}
			frac, err := strconv.Atoi(fracText + strings.Repeat("0", 9-len(fracText)))
			if err != nil {
				return 0, fmt.Errorf("unrecognized time %q", s)
			}
			sec += time.Duration(frac)
		}
	}

	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + sec
	if h < 0 || d >= 24*time.Hour {
		return 0, fmt.Errorf("time %q is outside a single day", s)
	}
	return d, nil
}
