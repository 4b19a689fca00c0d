// Package metrics provides Prometheus metrics for dbxport exports.
//
// # Overview
//
// Every export reports its outcome to a Collector: how many rows were
// pulled, how many bytes reached the destination, how long it took and, on
// failure, which pipeline stage failed. The collector owns its own registry.
//
// # Usage
//
//	collector := metrics.NewCollector(nil)
//
//	collector.ExportStarted()
//	collector.ExportFinished(metrics.Outcome{
//		Driver:   "sqlite",
//		Format:   "csv",
//		Status:   metrics.StatusSuccess,
//		Rows:     10,
//		Bytes:    512,
//		Duration: time.Second,
//	})
//
// # Exposition
//
// Long-running "dbxport schedule" processes serve Handler over HTTP. One-shot
// exports can call WriteTextfile after the run so node_exporter's textfile
// collector picks the metrics up.
package metrics
