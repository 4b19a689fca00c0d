package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/dbxport/pkg/cli"
	"mercator-hq/dbxport/pkg/config"
	"mercator-hq/dbxport/pkg/export/history"
	"mercator-hq/dbxport/pkg/export/pipeline"
	"mercator-hq/dbxport/pkg/export/schedule"
	"mercator-hq/dbxport/pkg/telemetry/logging"
)

var historyFlags struct {
	job    string
	status string
	since  time.Duration
	limit  int
	output string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded export runs",
	Long: `List past export runs recorded in the history database, newest first.

Runs are recorded when history is enabled in the config file or with
DBXPORT_HISTORY_ENABLED=true.

Examples:
  dbxport history --config dbxport.yaml
  dbxport history --job nightly-orders --status failure --since 168h -o json`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	f := historyCmd.Flags()
	f.StringVar(&historyFlags.job, "job", "", "only runs of this job")
	f.StringVar(&historyFlags.status, "status", "", "only runs with this status (success, failure, cancelled)")
	f.DurationVar(&historyFlags.since, "since", 0, "only runs started within this long")
	f.IntVar(&historyFlags.limit, "limit", 20, "maximum number of runs")
	f.StringVarP(&historyFlags.output, "output", "o", "text", "output format (text, json, csv)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(historyFlags.output)
	if err != nil {
		return err
	}
	switch historyFlags.status {
	case "", history.StatusSuccess, history.StatusFailure, history.StatusCancelled:
	default:
		return cli.NewConfigError("--status", fmt.Sprintf("unknown status %q", historyFlags.status))
	}

	cfg := config.GetConfig()
	logger, err := newLogger(cfg.Telemetry.Logging)
	if err != nil {
		return err
	}
	store, err := openHistory(cfg.History, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	q := history.Query{
		Job:    historyFlags.job,
		Status: historyFlags.status,
		Limit:  historyFlags.limit,
	}
	if historyFlags.since > 0 {
		q.Since = time.Now().Add(-historyFlags.since)
	}

	runs, err := store.List(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("history", err)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), runsTable(runs))
}

// openHistory opens the history database named by cfg. It is opened
// whether or not recording is enabled so past runs stay readable.
func openHistory(cfg config.HistoryConfig, logger *logging.Logger) (*history.SQLiteStore, error) {
	store, err := history.NewSQLiteStore(history.SQLiteConfig{Path: cfg.Path, Logger: logger})
	if err != nil {
		return nil, cli.NewCommandError("history", err)
	}
	return store, nil
}

// newRunner wraps p so that every run is recorded when history is enabled.
// The returned func closes the history database.
func newRunner(cfg *config.Config, p *pipeline.Pipeline, logger *logging.Logger) (schedule.Runner, func(), error) {
	if !cfg.History.Enabled {
		return p, func() {}, nil
	}
	store, err := openHistory(cfg.History, logger)
	if err != nil {
		return nil, nil, err
	}
	rec := history.NewRecorder(p, store, history.RecorderOptions{
		Retention: cfg.History.Retention,
		Logger:    logger,
	})
	return rec, func() { store.Close() }, nil
}

func runsTable(runs []*history.Run) *cli.Table {
	t := &cli.Table{Headers: []string{"STARTED", "JOB", "STATUS", "STAGE", "ROWS", "BYTES", "DURATION", "OUTPUT", "ERROR"}}
	for _, r := range runs {
		job := r.Job
		if job == "" {
			job = "-"
		}
		t.Append(
			r.StartedAt.Local().Format(time.RFC3339),
			job,
			r.Status,
			r.Stage,
			strconv.FormatInt(r.Rows, 10),
			strconv.FormatInt(r.Bytes, 10),
			r.Duration.Round(time.Millisecond).String(),
			r.Output,
			r.Error,
		)
	}
	return t
}
