package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/dbxport/pkg/cli"
	"mercator-hq/dbxport/pkg/config"
	"mercator-hq/dbxport/pkg/export/pipeline"
	"mercator-hq/dbxport/pkg/export/schedule"
	"mercator-hq/dbxport/pkg/server"
	"mercator-hq/dbxport/pkg/telemetry/health"
	"mercator-hq/dbxport/pkg/telemetry/logging"
	"mercator-hq/dbxport/pkg/telemetry/metrics"
)

const healthCheckTimeout = 5 * time.Second

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run configured jobs on their cron schedules",
	Long: `Run every job in the config file that has a schedule, until interrupted.

The config file is watched and reloaded on change or on SIGHUP. A job whose
previous run is still in progress is skipped for that tick. When metrics are
enabled they are served over HTTP; a configured textfile is rewritten after
every run.

Example:
  dbxport schedule --config dbxport.yaml`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

// textfileRunner rewrites the metrics textfile after each run.
type textfileRunner struct {
	next      schedule.Runner
	collector *metrics.Collector
	path      func() string
}

func (r *textfileRunner) Run(ctx context.Context, job pipeline.Job) (*pipeline.Result, error) {
	res, err := r.next.Run(ctx, job)
	if path := r.path(); path != "" {
		if werr := r.collector.WriteTextfile(path); werr != nil {
			slog.Warn("failed to write metrics file", "path", path, "error", werr)
		}
	}
	return res, err
}

func runSchedule(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return cli.NewConfigError("--config", "schedule requires a config file")
	}
	cfg := config.GetConfig()

	jobs := scheduledJobs(cfg)
	if len(jobs) == 0 {
		return cli.NewConfigError("jobs", "no job has a schedule")
	}

	logger, err := newLogger(cfg.Telemetry.Logging)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(nil)
	p := pipeline.New(pipeline.Options{
		MaxBufferedRows: cfg.Export.MaxBufferedRows,
		Metrics:         collector,
		Logger:          logger,
	})
	recorded, closeHistory, err := newRunner(cfg, p, logger)
	if err != nil {
		return err
	}
	defer closeHistory()

	runner := &textfileRunner{
		next:      recorded,
		collector: collector,
		path:      func() string { return config.GetConfig().Telemetry.Metrics.Textfile },
	}

	ctx, cancel := cli.SetupSignalHandler(cmd.Context())
	defer cancel()

	sched := schedule.New(runner, collector, logger)
	if err := sched.Start(ctx, jobs); err != nil {
		return cli.NewConfigError("jobs", err.Error())
	}
	defer sched.Stop()

	out := cmd.OutOrStdout()
	for _, name := range sched.Jobs() {
		if next, ok := sched.NextRun(name); ok {
			fmt.Fprintf(out, "✓ %s next runs at %s\n", name, next.Format(time.RFC3339))
		}
	}

	var (
		errChan = make(chan error, 1)
		srvDone chan struct{}
	)
	if m := cfg.Telemetry.Metrics; m.Enabled {
		mux := http.NewServeMux()
		mux.Handle(m.Path, collector.Handler())
		health.Register(mux, newHealthChecker(sched), health.VersionInfo{
			Version:   Version,
			Commit:    GitCommit,
			BuildDate: BuildDate,
		})

		srv := server.New(server.Config{ListenAddress: m.ListenAddress}, mux, logger)
		srvDone = make(chan struct{})
		go func() {
			defer close(srvDone)
			if err := srv.Start(ctx); err != nil {
				errChan <- err
			}
		}()
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", m.ListenAddress, m.Path)
		fmt.Fprintf(out, "✓ Health endpoints: http://%s/health, /ready\n", m.ListenAddress)
	}

	reload := func() error {
		newCfg, err := config.ReloadConfig(cfgFile)
		if err != nil {
			return err
		}
		if err := sched.Reload(scheduledJobs(newCfg)); err != nil {
			return fmt.Errorf("failed to apply reloaded jobs: %w", err)
		}
		return nil
	}

	watcher, err := config.NewFileWatcher(cfgFile, 0)
	if err != nil {
		slog.Warn("config watching disabled", "error", err)
	} else {
		defer watcher.Stop()
		go func() {
			if err := watcher.Watch(ctx, reload); err != nil {
				slog.Warn("config watcher stopped", "error", err)
			}
		}()
	}

	hup := cli.NotifyReload()
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	for {
		select {
		case <-hup:
			slog.Info("reloading configuration", "path", cfgFile, "trigger", "SIGHUP")
			if err := reload(); err != nil {
				slog.Error("configuration reload failed", "error", err)
			}

		case err := <-errChan:
			return cli.NewCommandError("schedule", err)

		case <-ctx.Done():
			fmt.Fprintln(out, "\nShutting down, cancelling running exports...")
			sched.Stop()
			if srvDone != nil {
				<-srvDone
			}
			fmt.Fprintln(out, "✓ Scheduler stopped")
			return nil
		}
	}
}

// newHealthChecker reports the scheduler and, for the current config, every
// connection used by a scheduled job.
func newHealthChecker(sched *schedule.Scheduler) *health.Checker {
	checker := health.New(healthCheckTimeout)
	checker.RegisterCheck("scheduler", func(context.Context) error {
		if !sched.IsRunning() {
			return errors.New("scheduler is not running")
		}
		return nil
	})
	checker.RegisterCheck("connections", func(ctx context.Context) error {
		return checkConnections(ctx, config.GetConfig())
	})
	return checker
}

// checkConnections opens and closes every connection a scheduled job uses.
func checkConnections(ctx context.Context, cfg *config.Config) error {
	seen := make(map[string]bool)
	for _, name := range jobNames(cfg) {
		job := cfg.Jobs[name]
		if job.Schedule == "" || seen[job.Connection] {
			continue
		}
		seen[job.Connection] = true

		conn := cfg.Connections[job.Connection]
		if err := pingConnection(ctx, conn); err != nil {
			// Served over HTTP, so credentials in the cause are masked.
			return fmt.Errorf("connection %q: %s", job.Connection, logging.NewRedactor(nil).RedactString(err.Error()))
		}
	}
	return nil
}

func pingConnection(ctx context.Context, conn config.ConnectionConfig) error {
	d, dsn, err := resolveDriver(conn.URL, conn.Driver)
	if err != nil {
		return err
	}
	c, err := d.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	return c.Close()
}
