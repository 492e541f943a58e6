/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var Version = "dev"

func init() {
	if Version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "(devel)" {
			Version = info.Main.Version
		}
	}
	rootCmd.Version = Version
}

var rootCmd = &cobra.Command{
	Use:          "htscope",
	SilenceUsage: true,
	Short:        "Static SQL analysis for hybrid-table workloads",
	Long: `htscope analyzes SQL statements and execution exports from hybrid
row/KV table workloads, entirely offline.

It parses the statement, scores index coverage against supplied or fetched
table metadata, runs an anti-pattern rule pipeline, classifies execution
regressions, and proposes constrained remediation actions. Inputs are SQL
text or JSON execution exports; nothing is ever executed.`,
	Example: `  # Analyze a single statement
  htscope analyze query.sql

  # Analyze an execution export with runtime counters
  htscope analyze export.json

  # Diagnose a baseline/candidate regression
  htscope compare baseline.json candidate.json

  # Bucket a batch of executions
  htscope batch exports.json`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
