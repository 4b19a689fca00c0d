package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dbxport"

// ExportMetrics tracks export outcomes.
//
// Metrics:
//   - dbxport_exports_total: exports by driver, format and status
//   - dbxport_rows_exported_total: rows pulled from the database by format
//   - dbxport_bytes_written_total: bytes committed to destinations by format
//   - dbxport_export_duration_seconds: export duration histogram by format
//   - dbxport_export_failures_total: failures by pipeline stage
//   - dbxport_exports_in_flight: exports currently running
//   - dbxport_last_success_timestamp_seconds: time of the last successful export
//   - dbxport_scheduled_runs_skipped_total: overlapping scheduled runs skipped
type ExportMetrics struct {
	exportsTotal  *prometheus.CounterVec
	rowsTotal     *prometheus.CounterVec
	bytesTotal    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	failuresTotal *prometheus.CounterVec
	inFlight      prometheus.Gauge
	lastSuccess   *prometheus.GaugeVec
	skippedTotal  *prometheus.CounterVec
}

// NewExportMetrics creates and registers export metrics with registry.
func NewExportMetrics(registry *prometheus.Registry) *ExportMetrics {
	em := &ExportMetrics{
		exportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Total number of exports by driver, format and status",
			},
			[]string{"driver", "format", "status"},
		),

		rowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_exported_total",
				Help:      "Total number of rows pulled from the database",
			},
			[]string{"format"},
		),

		bytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_written_total",
				Help:      "Total number of bytes committed to destination files",
			},
			[]string{"format"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "export_duration_seconds",
				Help:      "Duration of exports in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"format"},
		),

		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "export_failures_total",
				Help:      "Total number of failed exports by pipeline stage",
			},
			[]string{"stage"},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "exports_in_flight",
				Help:      "Number of exports currently running",
			},
		),

		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful export",
			},
			[]string{"format"},
		),

		skippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduled_runs_skipped_total",
				Help:      "Scheduled runs skipped because the previous run was still in progress",
			},
			[]string{"job"},
		),
	}

	registry.MustRegister(
		em.exportsTotal,
		em.rowsTotal,
		em.bytesTotal,
		em.duration,
		em.failuresTotal,
		em.inFlight,
		em.lastSuccess,
		em.skippedTotal,
	)

	return em
}
