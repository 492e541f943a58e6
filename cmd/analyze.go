/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jacobarthurs/htscope/internal/action"
	"github.com/jacobarthurs/htscope/internal/coverage"
	"github.com/jacobarthurs/htscope/internal/metadata"
	"github.com/jacobarthurs/htscope/internal/output"
	"github.com/jacobarthurs/htscope/internal/profile"
	"github.com/jacobarthurs/htscope/internal/query"
	"github.com/jacobarthurs/htscope/internal/rules"
	"github.com/jacobarthurs/htscope/internal/telemetry"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze a SQL statement or execution export",
	Long: `Analyze a SQL statement against hybrid-table anti-patterns and index
coverage, and propose remediation actions.

Input can be a SQL file, or a JSON execution export carrying the statement,
runtime counters and table metadata. Use "-" to read from stdin. If no file
is provided, enters interactive mode.

Without metadata the analyzer hedges: it reports what it cannot confirm
instead of claiming indexes are absent. A database connection upgrades
table metadata to confirmed via information_schema, it never runs the
analyzed SQL.`,
	Example: `  # Analyze from file
  htscope analyze query.sql

  # Analyze an execution export
  htscope analyze export.json

  # Confirm index metadata from a live schema
  htscope analyze query.sql --profile prod

  # Judge proposed DDL against the statements it should serve
  htscope analyze create_index.sql --workload hot_query.sql

  # Read from stdin
  cat query.sql | htscope analyze -

  # Interactive mode
  htscope analyze`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _ := cmd.Flags().GetString("db")
		profileName, _ := cmd.Flags().GetString("profile")
		format, _ := cmd.Flags().GetString("format")
		workload, _ := cmd.Flags().GetString("workload")
		thresholdsPath, _ := cmd.Flags().GetString("thresholds")

		if format != "text" && format != "json" {
			return fmt.Errorf("invalid output format %q: must be \"text\" or \"json\"", format)
		}

		connStr, err := profile.ResolveConnStr(db, profileName)
		if err != nil {
			return err
		}
		active, err := profile.Active(profileName)
		if err != nil {
			return err
		}
		if thresholdsPath == "" {
			thresholdsPath = active.ThresholdsPath
		}

		var file string
		if len(args) > 0 {
			file = args[0]
		}

		in, err := telemetry.Resolve(file, "")
		if err != nil {
			return err
		}

		pq, err := query.Parse(in.SQL)
		if err != nil {
			return err
		}

		tables := tableNames(pq)
		meta := metadata.Local(tables)
		var exec *telemetry.Execution
		if in.Export != nil {
			exec = &in.Export.Execution
			for name, t := range in.Export.Metadata() {
				meta[name] = t
			}
		}

		cov := coverage.Score(pq, meta)
		if connStr != "" {
			live, err := metadata.Fetch(cmd.Context(), connStr, tables)
			if err != nil {
				return fmt.Errorf("fetching schema metadata: %w", err)
			}
			cov = coverage.Enrich(pq, cov, live)
			for name, t := range live {
				meta[name] = t
			}
		}

		ctx := rules.NewContext(pq, cov, meta, exec)
		if workload != "" {
			eq, err := workloadEqualityColumns(workload)
			if err != nil {
				return err
			}
			ctx.WorkloadEq = eq
		}
		if thresholdsPath != "" {
			th, err := rules.LoadThresholds(thresholdsPath)
			if err != nil {
				return err
			}
			ctx.Thresholds = th
		}

		result := rules.Analyze(ctx)
		actions := action.Build(result, pq, exec)

		switch format {
		case "json":
			return output.RenderJSON(os.Stdout, output.NewAnalysisReport(in.SQL, result, actions))
		case "text":
			return output.RenderAnalysisText(os.Stdout, result, actions)
		}

		return nil
	},
}

func tableNames(pq *query.ParsedQuery) []string {
	var names []string
	seen := make(map[string]bool)
	for _, ref := range pq.Tables {
		fqn := ref.FQN()
		if pq.IsCTE(ref.Name) || seen[strings.ToLower(fqn)] {
			continue
		}
		seen[strings.ToLower(fqn)] = true
		names = append(names, fqn)
	}
	return names
}

// workloadEqualityColumns parses a companion workload statement and returns
// the columns it constrains by equality, for judging proposed CREATE INDEX
// DDL against the queries it should serve.
func workloadEqualityColumns(file string) ([]string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading workload file: %w", err)
	}
	wq, err := query.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing workload statement: %w", err)
	}
	return wq.EqualityColumns(), nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringP("db", "d", "", "PostgreSQL-protocol connection string for schema metadata")
	analyzeCmd.Flags().StringP("profile", "p", "", "Use named profile from config")
	analyzeCmd.Flags().StringP("format", "f", "text", "Output format: text, json")
	analyzeCmd.Flags().StringP("workload", "w", "", "Companion workload SQL file for DDL analysis")
	analyzeCmd.Flags().String("thresholds", "", "YAML file overriding rank scoring weights")
	analyzeCmd.MarkFlagsMutuallyExclusive("db", "profile")
}
