package coerce

import (
	"database/sql/driver"
	"time"

	"mercator-hq/dbxport/pkg/export"
)

// Native converts a canonical Value back into a database/sql driver value.
// Decimals and times of day are returned as text so no precision is lost on
// the way back into a database.
func Native(v export.Value) driver.Value {
	switch v.Kind() {
	case export.KindBool:
		return v.Bool()
	case export.KindInt:
		return v.Int()
	case export.KindFloat:
		return v.Float()
	case export.KindDecimal:
		return v.DecimalText()
	case export.KindText:
		return v.Text()
	case export.KindBytes:
		return v.Bytes()
	case export.KindDate, export.KindTimestamp:
		return v.Time()
	case export.KindTime:
		return time.Time{}.Add(v.Clock()).Format(export.TimeLayout)
	}
	return nil
}
