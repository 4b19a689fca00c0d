/*
Package cli provides command-line helpers for the dbxport command.

Exit Codes:

ExitCode maps an export error to the process exit status: 1 for connection
failures, 2 for query failures, 3 for type coercion or encoding failures, 4
for output write failures and 130 when the run was interrupted.

	if err := cmd.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}

Output Formatting:

Listings such as "dbxport describe" and "dbxport formats" are built as a Table
and rendered as an aligned terminal table, JSON or CSV:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, table); err != nil {
		return err
	}

Progress Reporting:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(0) // row count not known in advance
	progress.Update(rows)
	progress.Finish()

Signal Handling:

	ctx, cancel := cli.SetupSignalHandler(context.Background())
	defer cancel()
*/
package cli
