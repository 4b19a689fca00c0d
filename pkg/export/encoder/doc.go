// Package encoder turns a schema and rows into an output artifact.
//
// Each format declares one buffering mode:
//
//	json     streaming      array of objects keyed by column name
//	ndjson   streaming      one JSON object per line
//	csv      streaming      RFC 4180 with optional header
//	sql      streaming      INSERT statements, optional CREATE TABLE
//	parquet  streaming      one optional column per field
//	gfm      materializing  GitHub-flavored Markdown table
//	xlsx     materializing  single-sheet workbook
//
// Streaming encoders implement StreamEncoder and receive rows one at a time
// between Begin and Finish. Materializing encoders implement
// MaterializingEncoder and receive the complete export.Dataset once. Encoders
// with a structural row ceiling also implement RowLimiter so the pipeline can
// stop buffering as soon as the ceiling is crossed.
//
// Encoders are built per export with New and are not safe for concurrent
// use. Errors are returned as *export.EncodingError with row and column
// context when known.
package encoder
