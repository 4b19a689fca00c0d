// Package history records the outcome of every export run.
//
// A Store keeps Run records; SQLiteStore persists them in a local SQLite
// database and MemoryStore keeps them in memory for tests. Recorder wraps a
// pipeline and stores one record per run, successful or not, then drops
// records older than the configured retention.
//
// # Usage
//
//	store, err := history.NewSQLiteStore(history.SQLiteConfig{Path: "dbxport-history.db"})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	runner := history.NewRecorder(pipeline.New(opts), store, history.RecorderOptions{
//		Retention: 30 * 24 * time.Hour,
//	})
//	res, err := runner.Run(ctx, job)
//
//	runs, err := store.List(ctx, history.Query{Job: "nightly", Limit: 10})
package history
