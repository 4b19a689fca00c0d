package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"mercator-hq/dbxport/pkg/cli"
	"mercator-hq/dbxport/pkg/config"
	"mercator-hq/dbxport/pkg/export/driver"
	"mercator-hq/dbxport/pkg/export/encoder"
	"mercator-hq/dbxport/pkg/export/pipeline"
	"mercator-hq/dbxport/pkg/export/schedule"
)

// jobSpec is an export described by flags or by a configured job, before
// any of it has been resolved.
type jobSpec struct {
	Name        string
	URL         string
	Driver      string
	Query       string // SQL text or a bare table name
	Format      string
	Output      string
	Compression string
}

// specFromConfig looks up a configured job and its connection.
func specFromConfig(cfg *config.Config, name string) (jobSpec, error) {
	job, ok := cfg.Jobs[name]
	if !ok {
		return jobSpec{}, cli.NewConfigError("--job", fmt.Sprintf("no job named %q", name))
	}
	conn := cfg.Connections[job.Connection]

	query := job.Query
	if query == "" {
		query = job.Table
	}
	return jobSpec{
		Name:        name,
		URL:         conn.URL,
		Driver:      conn.Driver,
		Query:       query,
		Format:      job.Format,
		Output:      job.Output,
		Compression: job.Compression,
	}, nil
}

// resolveDriver picks the driver and DSN for a connection URL. An explicit
// kind wins over the URL scheme.
func resolveDriver(url, kind string) (*driver.SQLDriver, string, error) {
	if url == "" {
		return nil, "", cli.NewConfigError("--url", "no connection URL (set --url or DATABASE_URL)")
	}

	var (
		k   driver.Kind
		dsn = url
	)
	if kind != "" {
		k = driver.Kind(strings.ToLower(kind))
		if !k.Valid() {
			return nil, "", cli.NewConfigError("--driver", fmt.Sprintf("unknown driver %q", kind))
		}
	} else {
		var err error
		k, dsn, err = driver.ParseURL(url)
		if err != nil {
			return nil, "", cli.NewConfigError("--url", err.Error())
		}
	}

	d, err := driver.Open(k)
	if err != nil {
		return nil, "", err
	}
	return d, dsn, nil
}

// resolveQuery expands a bare table name into a SELECT.
func resolveQuery(kind driver.Kind, q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", cli.NewConfigError("query", "no query or table given")
	}
	if driver.IsTableName(q) {
		return driver.SelectAll(kind, q), nil
	}
	return q, nil
}

// compressionSuffixes select snappy output when no compression is given and
// are stripped before inferring a format from the output extension.
var compressionSuffixes = []string{".sz", ".snappy"}

func hasCompressionSuffix(path string) bool {
	for _, suffix := range compressionSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// resolveJob turns a spec into a runnable pipeline job for a run at now.
func resolveJob(exp config.ExportConfig, spec jobSpec, now time.Time) (pipeline.Job, error) {
	d, dsn, err := resolveDriver(spec.URL, spec.Driver)
	if err != nil {
		return pipeline.Job{}, err
	}

	query, err := resolveQuery(d.Kind(), spec.Query)
	if err != nil {
		return pipeline.Job{}, err
	}

	if spec.Output == "" {
		return pipeline.Job{}, cli.NewConfigError("--output", "no output path")
	}
	output := config.ExpandOutput(spec.Output, spec.Name, now)

	compressionName := spec.Compression
	if compressionName == "" {
		compressionName = exp.Compression
		if hasCompressionSuffix(output) {
			compressionName = string(pipeline.CompressionSnappy)
		}
	}
	compression, err := pipeline.ParseCompression(compressionName)
	if err != nil {
		return pipeline.Job{}, cli.NewConfigError("--compress", err.Error())
	}

	var format encoder.Format
	if spec.Format != "" {
		format, err = encoder.ParseFormat(spec.Format)
	} else {
		path := output
		for _, suffix := range compressionSuffixes {
			path = strings.TrimSuffix(path, suffix)
		}
		format, err = encoder.FormatFromPath(path)
	}
	if err != nil {
		return pipeline.Job{}, cli.NewConfigError("--format", err.Error())
	}

	opts, err := exp.EncoderOptions(d.Kind().Dialect())
	if err != nil {
		return pipeline.Job{}, cli.NewConfigError("export", err.Error())
	}

	return pipeline.Job{
		Name:        spec.Name,
		Driver:      d,
		DSN:         dsn,
		Query:       query,
		Format:      format,
		Encoder:     opts,
		Output:      output,
		Compression: compression,
	}, nil
}

// scheduledJobs returns the configured jobs that carry a schedule.
func scheduledJobs(cfg *config.Config) []schedule.Job {
	var jobs []schedule.Job
	for _, name := range jobNames(cfg) {
		job := cfg.Jobs[name]
		if job.Schedule == "" {
			continue
		}
		spec, err := specFromConfig(cfg, name)
		if err != nil {
			continue
		}
		jobs = append(jobs, schedule.Job{
			Name:     name,
			Schedule: job.Schedule,
			Timeout:  cfg.JobTimeout(job),
			Build: func(now time.Time) (pipeline.Job, error) {
				return resolveJob(cfg.Export, spec, now)
			},
		})
	}
	return jobs
}

func jobNames(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Jobs))
	for name := range cfg.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
