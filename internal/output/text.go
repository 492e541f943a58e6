package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jacobarthurs/htscope/internal/action"
	"github.com/jacobarthurs/htscope/internal/classify"
	"github.com/jacobarthurs/htscope/internal/coverage"
	"github.com/jacobarthurs/htscope/internal/rules"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

type textWriter struct {
	w   io.Writer
	err error
}

func (tw *textWriter) printf(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.w, format, args...)
}

func RenderAnalysisText(w io.Writer, result rules.Result, actions []action.Action) error {
	tw := &textWriter{w: w}

	tw.renderCoverage(result.Coverage)

	if len(result.Findings) == 0 {
		tw.printf("%s%sNo issues found.%s\n", colorBold, colorGreen, colorReset)
		return tw.err
	}

	if result.Primary != nil {
		tw.printf("%s%sPrimary Cause%s\n\n", colorBold, colorCyan, colorReset)
		label, color := severityFormat(result.Primary.Severity)
		tw.printf("  %s%-8s%s %s\n", color, label, colorReset, result.Primary.Message)
		if result.PrimaryReason != "" {
			tw.printf("  %s%s%s\n", colorDim, result.PrimaryReason, colorReset)
		}
		tw.printf("\n")
	}

	tw.printf("%s%sFindings (%d)%s\n\n", colorBold, colorCyan, len(result.Findings), colorReset)
	for i, f := range result.Findings {
		label, color := severityFormat(f.Severity)
		tw.printf("  %s%-8s%s %s%s\n", color, label, colorReset, findingHeadline(f), colorReset)
		if f.Suggestion != "" {
			tw.printf("  %s→ %s%s\n", colorDim, f.Suggestion, colorReset)
		}
		if f.GeneratedSQL != "" {
			tw.printf("  %s%s%s\n", colorGreen, f.GeneratedSQL, colorReset)
		}
		if i < len(result.Findings)-1 {
			tw.printf("\n")
		}
	}

	if len(actions) > 0 {
		tw.printf("\n%s%sActions (%d)%s\n\n", colorBold, colorCyan, len(actions), colorReset)
		for _, a := range actions {
			tw.printf("  %s%s%s [%s, risk %s]\n", colorBold, a.ID, colorReset, a.Kind, a.Risk)
			if a.GeneratedSQL != "" {
				tw.printf("    %s%s%s\n", colorGreen, a.GeneratedSQL, colorReset)
			}
			for _, key := range sortedKeys(a.Preconditions) {
				tw.printf("    %scheck %s: %s%s\n", colorDim, key, a.Preconditions[key], colorReset)
			}
		}
	}

	return tw.err
}

func findingHeadline(f rules.Finding) string {
	if f.Table != "" {
		return fmt.Sprintf("[%s] %s: %s", f.Rule, f.Table, f.Message)
	}
	return fmt.Sprintf("[%s] %s", f.Rule, f.Message)
}

func (tw *textWriter) renderCoverage(cov []coverage.Coverage) {
	shown := false
	for _, c := range cov {
		if len(c.Indexes) == 0 && !c.IsHybrid {
			continue
		}
		if !shown {
			tw.printf("%s%sIndex Coverage%s\n\n", colorBold, colorCyan, colorReset)
			shown = true
		}
		engine := "standard"
		if c.IsHybrid {
			engine = "hybrid"
		}
		tw.printf("  %s%s%s (%s, %s)\n", colorBold, c.Table, colorReset, engine, c.Provenance)
		if c.BestIndex != nil {
			tw.printf("    best index (%s): equality prefix %d", strings.Join(c.BestIndex, ", "), c.BestEqPrefix)
			if c.FirstRangePos >= 0 {
				tw.printf(", range at position %d", c.FirstRangePos)
			}
			tw.printf("\n")
		} else {
			tw.printf("    %sno usable index%s\n", colorYellow, colorReset)
		}
	}
	if shown {
		tw.printf("\n")
	}
}

func severityFormat(s rules.Severity) (string, string) {
	switch s {
	case rules.Critical:
		return "CRITICAL", colorRed
	case rules.High:
		return "HIGH", colorRed
	case rules.Medium:
		return "MEDIUM", colorYellow
	case rules.Low:
		return "LOW", colorCyan
	default:
		return "INFO", colorDim
	}
}

func RenderPairText(w io.Writer, res classify.PairResult) error {
	tw := &textWriter{w: w}

	tw.printf("%s%sVerdict%s\n\n", colorBold, colorCyan, colorReset)
	tw.printf("  %s%s%s", colorBold, res.Primary, colorReset)
	if res.Secondary != "" {
		tw.printf(" (secondary: %s)", res.Secondary)
	}
	tw.printf("\n  %s%s%s\n\n", colorDim, res.Explanation, colorReset)

	tw.renderDeltas(res.Deltas)
	return tw.err
}

func (tw *textWriter) renderDeltas(deltas []classify.MetricDelta) {
	tw.printf("%s%sMetric Deltas%s\n\n", colorBold, colorCyan, colorReset)
	for _, d := range deltas {
		if d.A == 0 && d.B == 0 {
			continue
		}
		color := colorGreen
		arrow := "↓"
		if d.Increased {
			color = colorRed
			arrow = "↑"
		}
		tw.printf("  %-18s %s → %s%s %s (%+.1f%%)%s\n",
			d.Name, formatMetric(d.A), color, formatMetric(d.B), arrow, d.Pct, colorReset)
	}
}

func formatMetric(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

func RenderSingleText(w io.Writer, res classify.SingleResult) error {
	tw := &textWriter{w: w}
	tw.printf("%s%sVerdict%s\n\n", colorBold, colorCyan, colorReset)
	tw.printf("  %s%s%s\n  %s%s%s\n", colorBold, res.Label, colorReset, colorDim, res.Explanation, colorReset)
	return tw.err
}

func RenderGroupText(w io.Writer, res classify.GroupResult) error {
	tw := &textWriter{w: w}

	tw.printf("%s%sCohort Verdict%s\n\n", colorBold, colorCyan, colorReset)
	tw.printf("  %s%s%s across %d fast / %d slow executions\n",
		colorBold, res.Primary, colorReset, res.FastCount, res.SlowCount)
	tw.printf("  %s%s%s\n", colorDim, res.Explanation, colorReset)
	if res.JoinExplosion {
		tw.printf("  %sjoin-row explosion detected: indexing will not fix this%s\n", colorYellow, colorReset)
	}
	tw.printf("\n")

	tw.renderDeltas(res.Deltas)
	return tw.err
}

func RenderBatchText(w io.Writer, res classify.BatchResult) error {
	tw := &textWriter{w: w}

	tw.printf("%s%sBatch Summary%s\n\n", colorBold, colorCyan, colorReset)
	tw.printf("  %d executions, %d slow\n", len(res.Results), res.SlowCount)
	if res.SlowCount > 0 {
		tw.printf("  dominant cause: %s%s%s\n", colorBold, res.Dominant, colorReset)
	}
	tw.printf("\n")

	labels := make([]string, 0, len(res.Counts))
	for label := range res.Counts {
		labels = append(labels, string(label))
	}
	sort.Strings(labels)
	for _, label := range labels {
		tw.printf("  %-24s %d\n", label, res.Counts[classify.Label(label)])
	}
	return tw.err
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
