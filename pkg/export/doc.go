// Package export holds the canonical data model shared by every database
// driver and output encoder: values, schemas, rows, datasets and the error
// taxonomy.
//
// # Architecture
//
// An export moves through four layers:
//
//  1. Driver Adapter (driver) - runs a query and yields a Schema plus rows
//  2. Type Coercion (coerce) - maps native driver values to canonical Values
//  3. Encoder (encoder) - turns a Schema and rows into a file format
//  4. Pipeline (pipeline) - couples the two and writes the artifact atomically
//
// # Values
//
// A Value is a tagged union over Null, Bool, Int, Float, Decimal, Text, Bytes,
// Date, Time and Timestamp. Decimals are kept as validated text so no precision
// is lost on the way from the database to the file:
//
//	price, err := export.Decimal("12345678901234567890.0001")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(price.String()) // 12345678901234567890.0001
//
// # Schemas and Rows
//
//	schema, err := export.NewSchema(
//	    export.Column{Name: "id", Kind: export.KindInt},
//	    export.Column{Name: "name", Kind: export.KindText, Nullable: true},
//	)
//	row := export.Row{export.Int(1), export.Text("Ann")}
//	if err := schema.Check(row); err != nil {
//	    return err
//	}
//
// # Errors
//
// Failures are reported as ConnectionError, QueryError, TypeCoercionError,
// EncodingError or IOError. All of them unwrap to their cause.
package export
