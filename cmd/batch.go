/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/jacobarthurs/htscope/internal/classify"
	"github.com/jacobarthurs/htscope/internal/output"
	"github.com/jacobarthurs/htscope/internal/profile"
	"github.com/jacobarthurs/htscope/internal/telemetry"

	"github.com/spf13/cobra"
)

type batchReport struct {
	Batch classify.BatchResult
	Group *classify.GroupResult
}

var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Classify a batch of executions",
	Long: `Classify every execution in a JSON export array, count the root-cause
buckets, and report the dominant cause.

When the batch contains both fast and slow executions relative to the slow
threshold, the two cohorts are averaged and compared so systematic drift
shows up even when no single execution is conclusive.

Use "-" to read from stdin. If no file is provided, enters interactive mode.`,
	Example: `  # Classify a batch export
  htscope batch exports.json

  # Custom slow threshold
  htscope batch exports.json --slow-ms 500

  # Read from stdin
  cat exports.json | htscope batch -`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		profileName, _ := cmd.Flags().GetString("profile")
		slowMs, _ := cmd.Flags().GetFloat64("slow-ms")

		if format != "text" && format != "json" {
			return fmt.Errorf("invalid output format %q: must be \"text\" or \"json\"", format)
		}

		if slowMs <= 0 {
			active, err := profile.Active(profileName)
			if err != nil {
				return err
			}
			slowMs = active.SlowThresholdMs
		}
		if slowMs <= 0 {
			slowMs = classify.DefaultSlowThresholdMs
		}

		var file string
		if len(args) > 0 {
			file = args[0]
		}

		exports, err := telemetry.ResolveAll(file, "")
		if err != nil {
			return err
		}

		execs := make([]telemetry.Execution, len(exports))
		for i, exp := range exports {
			execs[i] = exp.Execution
		}

		report := batchReport{Batch: classify.ClassifyBatch(execs, slowMs)}

		var fast, slow []telemetry.Execution
		for _, e := range execs {
			if e.TotalMs >= slowMs {
				slow = append(slow, e)
			} else {
				fast = append(fast, e)
			}
		}
		if len(fast) > 0 && len(slow) > 0 {
			group := classify.ClassifyGroup(fast, slow)
			report.Group = &group
		}

		if format == "json" {
			return output.RenderJSON(os.Stdout, report)
		}

		if err := output.RenderBatchText(os.Stdout, report.Batch); err != nil {
			return err
		}
		if report.Group != nil {
			return output.RenderGroupText(os.Stdout, *report.Group)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringP("profile", "p", "", "Use named profile from config")
	batchCmd.Flags().StringP("format", "f", "text", "Output format: text, json")
	batchCmd.Flags().Float64("slow-ms", 0, "Slow threshold in ms separating cohorts")
}
