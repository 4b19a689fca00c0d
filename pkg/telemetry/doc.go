// Package telemetry groups dbxport's observability packages.
//
// # Components
//
//   - logging: slog-based structured logging with credential redaction and
//     run, job, driver and format fields taken from the context
//   - metrics: Prometheus export metrics on a private registry, served over
//     HTTP or written to a node_exporter textfile
//   - health: liveness and readiness probes for "dbxport schedule"
//
// # Usage
//
//	logger, _ := logging.New(logging.Config{Level: "info", Format: "json"})
//	collector := metrics.NewCollector(nil)
//
//	p := pipeline.New(pipeline.Options{Logger: logger, Metrics: collector})
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("scheduler", func(context.Context) error { return nil })
//
// # Credential Redaction
//
// Connection URLs routinely carry passwords. Log arguments and error text are
// masked before they are written:
//
//   - postgres://report:secret@db/sales → postgres://report:***@db/sales
//   - report:secret@tcp(db:3306)/sales → report:***@tcp(db:3306)/sales
//   - password=secret → password=***
package telemetry
