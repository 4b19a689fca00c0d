// Package pipeline runs a single export from a database query to an output
// file.
//
// # State Machine
//
// Every run moves through
//
//	Idle → Connecting → Querying → Exporting → Finalizing → Done
//
// and ends in Failed if any stage errors. Options.OnTransition observes each
// change.
//
// # Buffering
//
// Streaming formats receive rows as they are pulled. Materializing formats
// (GFM, XLSX) receive a complete Dataset; rows are buffered up to the lower
// of Options.MaxBufferedRows and the format's own row limit, and the run fails
// as soon as that ceiling is crossed rather than after buffering everything.
//
// # Output
//
// Bytes are written to a hidden temporary file in the destination directory,
// optionally through a snappy framed stream. On success the file is synced,
// closed and renamed onto the destination. On failure or cancellation the
// temporary file is removed and the destination is never touched.
//
// # Usage
//
//	d, _ := driver.Open(driver.KindSQLite)
//	p := pipeline.New(pipeline.Options{Metrics: collector})
//	res, err := p.Run(ctx, pipeline.Job{
//		Driver: d,
//		DSN:    "app.db",
//		Query:  "SELECT * FROM users",
//		Format: encoder.FormatJSON,
//		Output: "users.json",
//	})
package pipeline
