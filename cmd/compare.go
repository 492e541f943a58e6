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

var compareCmd = &cobra.Command{
	Use:   "compare [baseline] [candidate]",
	Short: "Classify why two executions of the same statement differ",
	Long: `Compare two execution exports of the same statement and classify the
root cause of the delta into a discrete bucket, with every metric delta
reported so the verdict is reproducible.

With a single input, the execution is triaged on its own against fixed
thresholds instead of a baseline.

Inputs are JSON execution exports. Either file (but not both) can be "-"
to read from stdin. If no files are provided, enters interactive mode.`,
	Example: `  # Diagnose a regression
  htscope compare baseline.json candidate.json

  # Triage a single slow execution
  htscope compare slow.json

  # Read the candidate from stdin
  cat candidate.json | htscope compare baseline.json -

  # Interactive mode
  htscope compare`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		profileName, _ := cmd.Flags().GetString("profile")
		slowMs, _ := cmd.Flags().GetFloat64("slow-ms")

		if format != "text" && format != "json" {
			return fmt.Errorf("invalid output format %q: must be \"text\" or \"json\"", format)
		}

		if len(args) == 1 {
			return runSingleClassify(args[0], profileName, slowMs, format)
		}

		var baseFile, candFile string
		if len(args) > 0 {
			baseFile = args[0]
		}
		if len(args) > 1 {
			candFile = args[1]
		}
		if baseFile == "-" && candFile == "-" {
			return fmt.Errorf("only one input can be read from stdin")
		}

		base, err := telemetry.Resolve(baseFile, "baseline ")
		if err != nil {
			return err
		}
		cand, err := telemetry.Resolve(candFile, "candidate ")
		if err != nil {
			return err
		}
		if base.Export == nil || cand.Export == nil {
			return fmt.Errorf("compare needs execution exports with runtime counters, not bare SQL")
		}

		res := classify.ClassifyPair(
			classify.Extract(&base.Export.Execution),
			classify.Extract(&cand.Export.Execution),
		)

		if format == "json" {
			return output.RenderJSON(os.Stdout, res)
		}
		return output.RenderPairText(os.Stdout, res)
	},
}

func runSingleClassify(file string, profileName string, slowMs float64, format string) error {
	in, err := telemetry.Resolve(file, "")
	if err != nil {
		return err
	}
	if in.Export == nil {
		return fmt.Errorf("triage needs an execution export with runtime counters, not bare SQL")
	}

	if slowMs <= 0 {
		active, err := profile.Active(profileName)
		if err != nil {
			return err
		}
		slowMs = active.SlowThresholdMs
	}

	res := classify.ClassifySingle(classify.Extract(&in.Export.Execution), slowMs)

	if format == "json" {
		return output.RenderJSON(os.Stdout, res)
	}
	return output.RenderSingleText(os.Stdout, res)
}

func init() {
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().StringP("profile", "p", "", "Use named profile from config")
	compareCmd.Flags().StringP("format", "f", "text", "Output format: text, json")
	compareCmd.Flags().Float64("slow-ms", 0, "Slow threshold in ms for single-execution triage")
}
