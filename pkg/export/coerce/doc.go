// Package coerce maps native database column types and driver values to the
// canonical export.Value model.
//
// Resolution happens once per column when a query starts:
//
//	m, err := coerce.Resolve(coerce.Postgres, "NUMERIC")
//	// m.Kind == export.KindDecimal
//
// and conversion once per cell:
//
//	v, err := m.Coerce([]byte("12345678901234567890.01"))
//
// Numeric rules:
//   - decimals are kept as exact decimal text and never pass through float64
//   - 64-bit integers map directly; MySQL BIGINT UNSIGNED maps to Decimal
//   - timestamps keep their zone for TIMESTAMPTZ and MySQL TIMESTAMP columns
//     and are zone-naive otherwise
//   - nil is Null for every kind
//
// Unsupported column types fail with export.TypeCoercionError; values that do
// not fit their column kind fail with ErrUnrepresentable.
package coerce
