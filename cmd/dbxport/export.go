package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mercator-hq/dbxport/pkg/cli"
	"mercator-hq/dbxport/pkg/config"
	"mercator-hq/dbxport/pkg/export/pipeline"
	"mercator-hq/dbxport/pkg/telemetry/metrics"
)

var exportFlags struct {
	url         string
	driver      string
	format      string
	output      string
	job         string
	compress    string
	metricsFile string
	progress    bool

	timeout         time.Duration
	maxBufferedRows int

	pretty           bool
	pad              bool
	align            []string
	sheet            string
	tableName        string
	rowsPerStatement int
	createTable      bool
	noHeader         bool
	delimiter        string
	safeFormulas     bool
}

var exportCmd = &cobra.Command{
	Use:   "export [QUERY|TABLE]",
	Short: "Export a query result to a file",
	Long: `Run a query, or select every row of a table, and write the result to a file.

The format is taken from --format or inferred from the output extension
(.json, .ndjson, .csv, .md, .xlsx, .sql, .parquet). The file is written to a
temporary name and renamed into place only when the export succeeds.

Examples:
  # Query to JSON
  dbxport export "SELECT id, name FROM users" --url app.db -o users.json

  # Whole table to a spreadsheet, URL from DATABASE_URL
  DATABASE_URL=postgres://report@db/sales dbxport export orders -o orders.xlsx

  # Right-aligned Markdown table
  dbxport export "SELECT name, total FROM totals" -u app.db -o totals.md --align total=right

  # Run a configured job once
  dbxport export --config dbxport.yaml --job nightly-orders`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	f := exportCmd.Flags()
	f.StringVarP(&exportFlags.url, "url", "u", "", "database connection URL (default $DATABASE_URL)")
	f.StringVarP(&exportFlags.driver, "driver", "d", "", "driver: sqlite, sqlite3, postgres, mysql (default inferred from URL)")
	f.StringVarP(&exportFlags.format, "format", "f", "", "output format (default inferred from output extension)")
	f.StringVarP(&exportFlags.output, "output", "o", "", "output file path")
	f.StringVar(&exportFlags.job, "job", "", "run a job from the config file")
	f.StringVar(&exportFlags.compress, "compress", "", "compress output: none, snappy")
	f.StringVar(&exportFlags.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the export")
	f.BoolVar(&exportFlags.progress, "progress", false, "show a row counter on stderr")

	f.DurationVar(&exportFlags.timeout, "timeout", 0, "abort the export after this long")
	f.IntVar(&exportFlags.maxBufferedRows, "max-buffered-rows", 0, "fail materializing formats beyond this many rows (0 = format limit)")

	f.BoolVar(&exportFlags.pretty, "pretty", false, "json: indent output")
	f.BoolVar(&exportFlags.pad, "pad", false, "gfm: pad cells to column width")
	f.StringArrayVar(&exportFlags.align, "align", nil, "gfm: column alignment as column=left|center|right (repeatable)")
	f.StringVar(&exportFlags.sheet, "sheet", "", "xlsx: worksheet name")
	f.StringVar(&exportFlags.tableName, "table-name", "", "sql: target table name")
	f.IntVar(&exportFlags.rowsPerStatement, "rows-per-statement", 0, "sql: rows per INSERT statement")
	f.BoolVar(&exportFlags.createTable, "create-table", false, "sql: emit CREATE TABLE first")
	f.BoolVar(&exportFlags.noHeader, "no-header", false, "csv: omit the header row")
	f.StringVar(&exportFlags.delimiter, "delimiter", "", "csv: field delimiter")
	f.BoolVar(&exportFlags.safeFormulas, "safe-formulas", false, "csv: neutralize cells spreadsheets would evaluate")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()

	exp := cfg.Export
	if err := applyExportFlags(cmd.Flags(), &exp); err != nil {
		return err
	}

	spec, timeout, err := exportSpec(cfg, exp, args)
	if err != nil {
		return err
	}

	job, err := resolveJob(exp, spec, time.Now())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Telemetry.Logging)
	if err != nil {
		return err
	}

	ctx, cancel := cli.SetupSignalHandler(cmd.Context())
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, timeout)
		defer cancelTimeout()
	}

	collector := metrics.NewCollector(nil)
	opts := pipeline.Options{
		MaxBufferedRows: exp.MaxBufferedRows,
		Metrics:         collector,
		Logger:          logger,
	}

	var progress cli.ProgressReporter
	if exportFlags.progress {
		progress = cli.NewProgressReporter(cmd.ErrOrStderr())
		progress.Start(0)
		opts.Progress = progress.Update
	}

	runner, closeHistory, err := newRunner(cfg, pipeline.New(opts), logger)
	if err != nil {
		return err
	}
	defer closeHistory()

	res, err := runner.Run(ctx, job)

	if progress != nil {
		if err != nil {
			progress.Error(err)
		} else {
			progress.Finish()
		}
	}

	metricsFile := exportFlags.metricsFile
	if metricsFile == "" {
		metricsFile = cfg.Telemetry.Metrics.Textfile
	}
	if metricsFile != "" {
		if werr := collector.WriteTextfile(metricsFile); werr != nil {
			slog.Warn("failed to write metrics file", "path", metricsFile, "error", werr)
		}
	}

	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d rows to %s (%s, %d bytes) in %s\n",
		res.Rows, res.Output, job.Format, res.Bytes, res.Duration.Round(time.Millisecond))
	return nil
}

// exportSpec builds the job spec from --job or from the positional query
// and connection flags. Explicit flags override a configured job.
func exportSpec(cfg *config.Config, exp config.ExportConfig, args []string) (jobSpec, time.Duration, error) {
	var (
		spec    jobSpec
		timeout = exp.Timeout
	)

	if exportFlags.job != "" {
		if len(args) > 0 {
			return spec, 0, cli.NewConfigError("--job", "a query argument cannot be combined with --job")
		}
		var err error
		spec, err = specFromConfig(cfg, exportFlags.job)
		if err != nil {
			return spec, 0, err
		}
		timeout = cfg.JobTimeout(cfg.Jobs[exportFlags.job])
	} else {
		if len(args) == 0 {
			return spec, 0, cli.NewConfigError("query", "a query or table name is required")
		}
		spec.Query = args[0]
		spec.URL = os.Getenv("DATABASE_URL")
	}

	if exportFlags.url != "" {
		spec.URL = exportFlags.url
	}
	if exportFlags.driver != "" {
		spec.Driver = exportFlags.driver
	}
	if exportFlags.format != "" {
		spec.Format = exportFlags.format
	}
	if exportFlags.output != "" {
		spec.Output = exportFlags.output
	}
	if exportFlags.compress != "" {
		spec.Compression = exportFlags.compress
	}
	if exportFlags.timeout > 0 {
		timeout = exportFlags.timeout
	}
	return spec, timeout, nil
}

// applyExportFlags overlays the encoder flags that were set explicitly.
func applyExportFlags(flags *pflag.FlagSet, exp *config.ExportConfig) error {
	if flags.Changed("max-buffered-rows") {
		if exportFlags.maxBufferedRows < 0 {
			return cli.NewConfigError("--max-buffered-rows", "must not be negative")
		}
		exp.MaxBufferedRows = exportFlags.maxBufferedRows
	}
	if flags.Changed("pretty") {
		exp.JSON.Pretty = exportFlags.pretty
	}
	if flags.Changed("pad") {
		exp.GFM.Pad = exportFlags.pad
	}
	if len(exportFlags.align) > 0 {
		align, err := parseAlignFlags(exportFlags.align)
		if err != nil {
			return err
		}
		merged := make(map[string]string, len(exp.GFM.Align)+len(align))
		for col, a := range exp.GFM.Align {
			merged[col] = a
		}
		for col, a := range align {
			merged[col] = a
		}
		exp.GFM.Align = merged
	}
	if flags.Changed("sheet") {
		exp.XLSX.SheetName = exportFlags.sheet
	}
	if flags.Changed("table-name") {
		exp.SQL.Table = exportFlags.tableName
	}
	if flags.Changed("rows-per-statement") {
		if exportFlags.rowsPerStatement < 1 {
			return cli.NewConfigError("--rows-per-statement", "must be at least 1")
		}
		exp.SQL.RowsPerStatement = exportFlags.rowsPerStatement
	}
	if flags.Changed("create-table") {
		exp.SQL.CreateTable = exportFlags.createTable
	}
	if flags.Changed("no-header") {
		header := !exportFlags.noHeader
		exp.CSV.Header = &header
	}
	if flags.Changed("delimiter") {
		exp.CSV.Delimiter = exportFlags.delimiter
	}
	if flags.Changed("safe-formulas") {
		exp.CSV.SafeFormulas = exportFlags.safeFormulas
	}
	return nil
}

// parseAlignFlags parses repeated column=alignment values.
func parseAlignFlags(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, v := range values {
		col, align, ok := strings.Cut(v, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, cli.NewConfigError("--align", fmt.Sprintf("%q is not column=alignment", v))
		}
		switch strings.ToLower(strings.TrimSpace(align)) {
		case "left", "center", "right":
		default:
			return nil, cli.NewConfigError("--align", fmt.Sprintf("unknown alignment %q for column %q", align, col))
		}
		out[col] = strings.ToLower(strings.TrimSpace(align))
	}
	return out, nil
}
