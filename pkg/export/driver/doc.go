// Package driver adapts database/sql drivers to the export pipeline.
//
// Four kinds are supported, selected by a closed set of tags:
//
//	sqlite    modernc.org/sqlite (pure Go)
//	sqlite3   github.com/mattn/go-sqlite3 (cgo)
//	postgres  github.com/jackc/pgx/v5 via its database/sql adapter
//	mysql     github.com/go-sql-driver/mysql
//
// A connection is a dedicated database/sql connection. Query resolves column
// types through the coerce package and returns a pull-based RowSequence:
//
//	d, _ := driver.Open(driver.KindSQLite)
//	conn, err := d.Connect(ctx, "data.db")
//	schema, rows, err := conn.Query(ctx, "SELECT id, name FROM users")
//	defer conn.Close()
//	defer rows.Close()
//	for {
//		row, err := rows.Next(ctx)
//		if err == io.EOF {
//			break
//		}
//		...
//	}
//
// Cursors are released on exhaustion, on error, on cancellation and on Close.
package driver
