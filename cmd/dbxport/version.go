package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/dbxport/pkg/export/driver"
	"mercator-hq/dbxport/pkg/export/encoder"
)

var (
	// Version is the semantic version (set by build flags)
	Version = "0.1.0"
	// GitCommit is the git commit hash (set by build flags)
	GitCommit = "unknown"
	// BuildDate is the build timestamp (set by build flags)
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print detailed version information including Git commit, build date and supported drivers.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "dbxport %s\n", Version)
		fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
		fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
		fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
		fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(out, "Drivers: %s\n", strings.Join(driverNames(), ", "))
		fmt.Fprintf(out, "Formats: %s\n", strings.Join(formatNames(), ", "))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func driverNames() []string {
	var names []string
	for _, k := range driver.Kinds() {
		names = append(names, string(k))
	}
	return names
}

func formatNames() []string {
	var names []string
	for _, f := range encoder.Formats() {
		names = append(names, string(f))
	}
	return names
}
