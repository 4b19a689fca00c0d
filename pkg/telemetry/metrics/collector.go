package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status label values for exports_total.
const (
	StatusSuccess   = "success"
	StatusFailure   = "failure"
	StatusCancelled = "cancelled"
)

// Collector owns the Prometheus registry for dbxport and records the outcome
// of every export. A nil *Collector is valid and records nothing, so callers
// that run without metrics need no special casing.
type Collector struct {
	registry *prometheus.Registry
	export   *ExportMetrics
}

// NewCollector creates a collector on registry. If registry is nil a fresh
// registry is created; the process-wide default registry is never used so
// that independent collectors (e.g. in tests) do not collide.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return &Collector{
		registry: registry,
		export:   NewExportMetrics(registry),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ExportStarted marks an export as in flight. Every call must be paired with
// ExportFinished.
func (c *Collector) ExportStarted() {
	if c == nil {
		return
	}
	c.export.inFlight.Inc()
}

// Outcome describes a finished export.
type Outcome struct {
	Driver   string
	Format   string
	Status   string
	Stage    string // failing stage, empty on success
	Rows     int64
	Bytes    int64
	Duration time.Duration
}

// ExportFinished records the outcome of an export started with
// ExportStarted.
//
// Example:
//
//	collector.ExportFinished(metrics.Outcome{
//		Driver:   "postgres",
//		Format:   "xlsx",
//		Status:   metrics.StatusSuccess,
//		Rows:     1200,
//		Bytes:    48213,
//		Duration: 3 * time.Second,
//	})
func (c *Collector) ExportFinished(o Outcome) {
	if c == nil {
		return
	}
	m := c.export
	m.inFlight.Dec()
	m.exportsTotal.WithLabelValues(o.Driver, o.Format, o.Status).Inc()
	m.duration.WithLabelValues(o.Format).Observe(o.Duration.Seconds())
	m.rowsTotal.WithLabelValues(o.Format).Add(float64(o.Rows))

	if o.Status == StatusSuccess {
		m.bytesTotal.WithLabelValues(o.Format).Add(float64(o.Bytes))
		m.lastSuccess.WithLabelValues(o.Format).SetToCurrentTime()
		return
	}
	if o.Stage != "" {
		m.failuresTotal.WithLabelValues(o.Stage).Inc()
	}
}

// ScheduledRunSkipped records a scheduled run skipped because the previous
// run of the same job was still in progress.
func (c *Collector) ScheduledRunSkipped(job string) {
	if c == nil {
		return
	}
	c.export.skippedTotal.WithLabelValues(job).Inc()
}
