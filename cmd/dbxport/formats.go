package main

import (
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/dbxport/pkg/cli"
	"mercator-hq/dbxport/pkg/export/encoder"
)

var formatsOutput string

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List output formats",
	Long: `List the supported output formats with the file extensions they are inferred
from and whether they stream rows or need the whole result in memory.

Materializing formats are bounded by --max-buffered-rows and by the format's
own limits (1,048,576 rows per XLSX sheet).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseOutputFormat(formatsOutput)
		if err != nil {
			return err
		}
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), formatsTable())
	},
}

func init() {
	rootCmd.AddCommand(formatsCmd)
	formatsCmd.Flags().StringVarP(&formatsOutput, "output", "o", "text", "output format (text, json, csv)")
}

func formatsTable() *cli.Table {
	t := &cli.Table{Headers: []string{"FORMAT", "MODE", "EXTENSIONS"}}
	for _, f := range encoder.Formats() {
		t.Append(string(f), f.Mode().String(), strings.Join(f.Extensions(), " "))
	}
	return t
}
