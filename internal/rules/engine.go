package rules

import (
	"sort"

	"github.com/jacobarthurs/htscope/internal/coverage"
	"github.com/jacobarthurs/htscope/internal/metadata"
	"github.com/jacobarthurs/htscope/internal/query"
	"github.com/jacobarthurs/htscope/internal/telemetry"
)

// Context carries everything a rule may inspect. Rules never mutate it.
type Context struct {
	Query    *query.ParsedQuery
	Coverage []coverage.Coverage
	Meta     metadata.Set
	Exec     *telemetry.Execution

	// MaskedSQL has string literal bodies and comments blanked out, so
	// text heuristics cannot match inside user data.
	MaskedSQL string

	// WorkloadEq lists equality-predicate columns from a companion
	// workload statement, for judging proposed CREATE INDEX DDL.
	WorkloadEq []string

	Thresholds Thresholds
}

func NewContext(pq *query.ParsedQuery, cov []coverage.Coverage, meta metadata.Set, exec *telemetry.Execution) *Context {
	return &Context{
		Query:      pq,
		Coverage:   cov,
		Meta:       meta,
		Exec:       exec,
		MaskedSQL:  query.MaskLiterals(pq.Raw),
		Thresholds: DefaultThresholds(),
	}
}

type Rule func(ctx *Context) []Finding

// defaultRules runs in fixed order; the ranking tie-break depends on it.
var defaultRules = []Rule{
	checkNoFilteringClauses,
	checkJoinWithoutOn,
	checkDistinctUnnecessary,
	checkOrderByNoLimit,
	checkNonSargablePredicates,
	checkFunctionInJoin,
	checkCaseTransforms,
	checkWideSelect,
	checkBindParameters,
	checkTypeMismatch,
	checkPKNotEarly,
	checkIndexCoverage,
	checkIndexMisaligned,
	checkOrderMisaligned,
	checkCompositeIndexes,
	checkMixedTables,
	checkJoinPattern,
	checkPurgePattern,
	checkInsertShape,
	checkWriteAmplification,
	checkDynamicIdentifier,
	checkCreateIndex,
	checkStoredProcedure,
}

// Analyze runs every rule against the statement, collapses per-table
// findings that a statement-level summary replaces, ranks the primary
// cause, and returns findings in severity order.
func Analyze(ctx *Context) Result {
	var findings []Finding
	for _, rule := range defaultRules {
		findings = append(findings, runRule(rule, ctx)...)
	}

	findings = summarize(findings)

	result := Result{
		Findings: findings,
		Coverage: ctx.Coverage,
	}
	result.Primary, result.PrimaryReason = rankPrimary(findings, ctx.Exec, ctx.Thresholds.Rank)

	sort.SliceStable(result.Findings, func(i, j int) bool {
		return result.Findings[i].Severity > result.Findings[j].Severity
	})
	return result
}

// runRule isolates a panicking rule so one bad heuristic cannot take down
// the whole analysis of a statement.
func runRule(rule Rule, ctx *Context) (findings []Finding) {
	defer func() {
		if recover() != nil {
			findings = nil
		}
	}()
	return rule(ctx)
}

// summarize replaces repeated per-table index findings with one aggregate
// when two or more hybrid tables in the same statement lack indexes. The
// aggregate goes first: it is the statement-level story.
func summarize(findings []Finding) []Finding {
	var bare []string
	for _, f := range findings {
		if f.Rule == HtWithoutIndexes {
			bare = append(bare, f.Table)
		}
	}
	if len(bare) < 2 {
		return findings
	}

	kept := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if f.Rule == HtWithoutIndexes {
			continue
		}
		kept = append(kept, f)
	}

	aggregate := Finding{
		Severity:   High,
		Rule:       MultipleHtNoIndexes,
		Message:    "multiple hybrid tables in this statement have no secondary indexes",
		Suggestion: "Index each hybrid table on its equality predicate columns before tuning anything else",
		Evidence:   map[string]any{"tables": bare},
	}
	return append([]Finding{aggregate}, kept...)
}

// hybridCoverage returns coverage rows for hybrid tables only.
func (ctx *Context) hybridCoverage() []coverage.Coverage {
	var out []coverage.Coverage
	for _, c := range ctx.Coverage {
		if c.IsHybrid {
			out = append(out, c)
		}
	}
	return out
}
