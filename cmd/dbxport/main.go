// dbxport exports the result of a SQL query to a file.
//
// It reads from SQLite, PostgreSQL or MySQL and writes JSON, NDJSON, CSV,
// Markdown tables, Excel workbooks, SQL INSERT statements or Parquet. Output
// files are written atomically: a failed or interrupted export never leaves
// a partial file behind.
//
// Usage:
//
//	# Export a query to JSON
//	dbxport export "SELECT * FROM users" --url app.db -o users.json
//
//	# Export a whole table to a spreadsheet
//	dbxport export orders --url postgres://report@db/sales -o orders.xlsx
//
//	# Show the schema a query resolves to
//	dbxport describe "SELECT id, total FROM orders" --url app.db
//
//	# Run configured jobs on their schedules
//	dbxport schedule --config dbxport.yaml
//
// Exit status is 0 on success, 1 for connection failures, 2 for query
// failures, 3 for type coercion or encoding failures, 4 for output write
// failures and 130 when interrupted.
package main

func main() {
	Execute()
}
