package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jacobarthurs/htscope/internal/query"
)

var createIndexRe = regexp.MustCompile(`(?is)CREATE\s+(UNIQUE\s+)?INDEX\s+(?:IF\s+NOT\s+EXISTS\s+)?([^\s(]+)\s+ON\s+([^\s(]+)\s*\(([^)]+)\)`)

type proposedIndex struct {
	Name    string
	Table   string
	Columns []string
}

func parseCreateIndex(sql string) (proposedIndex, bool) {
	m := createIndexRe.FindStringSubmatch(sql)
	if m == nil {
		return proposedIndex{}, false
	}
	idx := proposedIndex{Name: m[2], Table: m[3]}
	for _, col := range strings.Split(m[4], ",") {
		// Strip direction qualifiers from "col ASC" / "col DESC".
		col = strings.Fields(strings.TrimSpace(col))[0]
		idx.Columns = append(idx.Columns, bareColumn(col))
	}
	return idx, true
}

// checkCreateIndex reviews proposed CREATE INDEX DDL against the known
// index inventory, the workload's predicate columns, and runtime counters.
// A clean proposal gets an explicit LOOKS_GOOD so silence is never
// ambiguous.
func checkCreateIndex(ctx *Context) []Finding {
	if ctx.Query.Kind != query.KindCreateIndex {
		return nil
	}
	proposed, ok := parseCreateIndex(ctx.Query.Raw)
	if !ok {
		return nil
	}

	var out []Finding
	add := func(f Finding) {
		f.Table = proposed.Table
		out = append(out, f)
	}

	if info, found := ctx.Meta.Lookup(proposed.Table); found {
		existing := append([][]string{}, info.SecondaryIndexes...)
		if len(info.PrimaryKey) > 0 {
			existing = append(existing, info.PrimaryKey)
		}
		for _, idx := range existing {
			switch {
			case sameColumns(idx, proposed.Columns):
				add(Finding{
					Severity:   Medium,
					Rule:       CreateIndexRedundant,
					Message:    fmt.Sprintf("an identical index on (%s) already exists", strings.Join(proposed.Columns, ", ")),
					Suggestion: "Drop the proposal; the existing index already serves this access path",
				})
			case isLeftPrefix(proposed.Columns, idx):
				add(Finding{
					Severity: Medium,
					Rule:     CreateIndexRedundantPrefix,
					Message: fmt.Sprintf("existing index (%s) already covers the proposed (%s) as a left prefix",
						strings.Join(idx, ", "), strings.Join(proposed.Columns, ", ")),
					Suggestion: "Drop the proposal; any seek it could serve, the wider index serves too",
				})
			}
		}
	}

	switch {
	case len(ctx.WorkloadEq) == 0:
		add(Finding{
			Severity:   Low,
			Rule:       CreateIndexNoPredicateData,
			Message:    "no workload statement was supplied; cannot judge whether the index matches real predicates",
			Suggestion: "Re-run with a representative query so predicate alignment can be checked",
		})
	case len(intersectFold(proposed.Columns, ctx.WorkloadEq)) == 0:
		add(Finding{
			Severity: Medium,
			Rule:     CreateIndexNotUsed,
			Message: fmt.Sprintf("no proposed column appears among the workload's equality predicates (%s)",
				strings.Join(ctx.WorkloadEq, ", ")),
			Suggestion: "Index the columns the workload actually filters on",
		})
	case len(proposed.Columns) > 1 && !containsFold(ctx.WorkloadEq, proposed.Columns[0]):
		add(Finding{
			Severity: Medium,
			Rule:     CreateIndexMisaligned,
			Message: fmt.Sprintf("leading column %s carries no equality predicate in the workload; the composite cannot seek",
				proposed.Columns[0]),
			Suggestion: "Put an equality predicate column first",
		})
	}

	if ctx.Exec != nil {
		if ctx.Exec.KvRowsScanned > AnalyticKvRowsScanned {
			info, found := ctx.Meta.Lookup(proposed.Table)
			if found && info.IsHybrid {
				add(Finding{
					Severity:   Medium,
					Rule:       CreateIndexOnAnalyticHt,
					Message:    "the workload scans at analytic volume; a point-lookup index will not help and taxes every write",
					Suggestion: "Route the analytic workload to a standard table instead of indexing the hybrid one",
				})
			}
		}
		if ctx.Exec.ThrottleMs > 0 || ctx.Exec.RowsChanged() > HtWriteCostRowsChanged {
			add(Finding{
				Severity:   Medium,
				Rule:       CreateIndexHtWriteCost,
				Message:    "the table is already write-throttled or under heavy DML; a new index adds a write per row to maintain",
				Suggestion: "Resolve the write pressure first, or build the index during a quiet window",
			})
		}
	}

	warned := false
	for _, f := range out {
		if f.Severity > Low {
			warned = true
		}
	}
	if !warned {
		add(Finding{
			Severity:   Info,
			Rule:       CreateIndexLooksGood,
			Message:    fmt.Sprintf("proposed index %s on (%s) aligns with the workload and duplicates nothing", proposed.Name, strings.Join(proposed.Columns, ", ")),
			Suggestion: "",
		})
	}
	return out
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(bareColumn(a[i]), bareColumn(b[i])) {
			return false
		}
	}
	return true
}

// isLeftPrefix reports whether proposed is a strict left prefix of
// existing.
func isLeftPrefix(proposed, existing []string) bool {
	if len(proposed) >= len(existing) {
		return false
	}
	for i := range proposed {
		if !strings.EqualFold(bareColumn(proposed[i]), bareColumn(existing[i])) {
			return false
		}
	}
	return true
}

func intersectFold(a, b []string) []string {
	var out []string
	for _, item := range a {
		if containsFold(b, item) {
			out = append(out, item)
		}
	}
	return out
}
