package main

import (
	"context"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/dbxport/pkg/cli"
	"mercator-hq/dbxport/pkg/export"
	"mercator-hq/dbxport/pkg/export/driver"
)

var describeFlags struct {
	url    string
	driver string
	output string
}

var describeCmd = &cobra.Command{
	Use:   "describe QUERY|TABLE",
	Short: "Show the schema a query resolves to",
	Long: `Run a query and print each result column with the kind it exports as, whether
it is nullable and the database's own type name. No rows are read beyond what
is needed to resolve untyped SQLite expression columns.

Examples:
  dbxport describe users --url app.db
  dbxport describe "SELECT id, total FROM orders" -u postgres://report@db/sales -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runDescribe,
}

func init() {
	rootCmd.AddCommand(describeCmd)

	describeCmd.Flags().StringVarP(&describeFlags.url, "url", "u", "", "database connection URL (default $DATABASE_URL)")
	describeCmd.Flags().StringVarP(&describeFlags.driver, "driver", "d", "", "driver (default inferred from URL)")
	describeCmd.Flags().StringVarP(&describeFlags.output, "output", "o", "text", "output format (text, json, csv)")
}

func runDescribe(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(describeFlags.output)
	if err != nil {
		return err
	}

	url := describeFlags.url
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	d, dsn, err := resolveDriver(url, describeFlags.driver)
	if err != nil {
		return err
	}
	query, err := resolveQuery(d.Kind(), args[0])
	if err != nil {
		return err
	}

	ctx, cancel := cli.SetupSignalHandler(cmd.Context())
	defer cancel()

	schema, err := describeQuery(ctx, d, dsn, query)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), schemaTable(schema))
}

// describeQuery resolves the schema of query and closes the cursor without
// draining it.
func describeQuery(ctx context.Context, d driver.Driver, dsn, query string) (*export.Schema, error) {
	conn, err := d.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	schema, rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	rows.Close()
	return schema, nil
}

func schemaTable(schema *export.Schema) *cli.Table {
	t := &cli.Table{Headers: []string{"COLUMN", "KIND", "NULLABLE", "NATIVE TYPE"}}
	for _, col := range schema.Columns() {
		t.Append(col.Name, col.Kind.String(), strconv.FormatBool(col.Nullable), col.NativeType)
	}
	return t
}
