package rules

import (
	"fmt"
	"strings"

	"github.com/jacobarthurs/htscope/internal/coverage"
	"github.com/jacobarthurs/htscope/internal/query"
)

// checkCompositeIndexes judges multi-column indexes on hybrid tables
// against the equality predicates. Single-column indexes are covered by
// the plain coverage rules.
func checkCompositeIndexes(ctx *Context) []Finding {
	eqCols := ctx.Query.EqualityColumns()
	if len(eqCols) == 0 {
		return nil
	}

	var out []Finding
	for _, c := range ctx.hybridCoverage() {
		var composites [][]string
		for _, idx := range c.Indexes {
			if len(idx) > 1 {
				composites = append(composites, idx)
			}
		}
		if len(composites) == 0 {
			continue
		}

		good := false
		var tableFindings []Finding
		for _, idx := range composites {
			eq, _ := coverage.IndexEqPrefix(ctx.Query, idx)
			switch {
			case eq == 0:
				tableFindings = append(tableFindings, Finding{
					Severity: High,
					Rule:     CompositeMisaligned,
					Table:    c.Table,
					Message: fmt.Sprintf("composite index (%s) on %s starts with a column no equality predicate touches",
						strings.Join(idx, ", "), c.Table),
					Suggestion: "Reorder the index so its leading column carries an equality predicate",
				})
			case eq < len(idx) && eq < len(eqCols):
				tableFindings = append(tableFindings, Finding{
					Severity: Medium,
					Rule:     CompositePartial,
					Table:    c.Table,
					Message: fmt.Sprintf("composite index (%s) on %s matches only its first %d column(s); remaining equality predicates filter after the seek",
						strings.Join(idx, ", "), c.Table, eq),
					Suggestion: "Extend or reorder the index to cover every equality predicate column",
				})
			default:
				good = true
			}
		}

		if !good && len(tableFindings) > 0 {
			ddl := GenerateIndexDDL(c.Table, eqCols, firstRangeColumn(ctx.Query), ctx.Query.Projection, execRows(ctx))
			tableFindings[0].GeneratedSQL = ddl
		}
		out = append(out, tableFindings...)
	}
	return out
}

func execRows(ctx *Context) int64 {
	if ctx.Exec == nil {
		return 0
	}
	return ctx.Exec.RowsProduced
}

func firstRangeColumn(pq *query.ParsedQuery) string {
	for _, p := range pq.Predicates {
		if p.Source == query.SourceCTE || p.Op != query.OpRange {
			continue
		}
		if col := p.Column(); col != "" {
			return col
		}
	}
	return ""
}

// GenerateIndexDDL emits a CREATE INDEX for the equality columns in
// appearance order plus the first range column. Small result sets also get
// the projected columns as INCLUDE so the index covers the read entirely.
func GenerateIndexDDL(table string, eqCols []string, rangeCol string, projection []string, rowsProduced int64) string {
	keyCols := append([]string(nil), eqCols...)
	if rangeCol != "" && !containsFold(keyCols, rangeCol) {
		keyCols = append(keyCols, rangeCol)
	}
	if len(keyCols) == 0 {
		return ""
	}

	var include []string
	if rowsProduced > 0 && rowsProduced < IncludeColumnRowCeiling {
		for _, p := range projection {
			if p == "*" || strings.Contains(p, "(") || containsFold(keyCols, p) {
				continue
			}
			include = append(include, bareColumn(p))
			if len(include) == IncludeColumnMax {
				break
			}
		}
	}

	ddl := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", indexName(table, keyCols), table, strings.Join(keyCols, ", "))
	if len(include) > 0 {
		ddl += fmt.Sprintf(" INCLUDE (%s)", strings.Join(include, ", "))
	}
	return ddl + ";"
}

func indexName(table string, cols []string) string {
	parts := []string{"idx", bareColumn(table)}
	for i, col := range cols {
		if i == 3 {
			break
		}
		c := bareColumn(col)
		if len(c) > IndexNameColLen {
			c = c[:IndexNameColLen]
		}
		parts = append(parts, c)
	}
	name := strings.Join(parts, "_")
	if len(name) > IndexNameMaxLen {
		name = name[:IndexNameMaxLen]
	}
	return name
}

func bareColumn(s string) string {
	if idx := strings.LastIndex(s, "."); idx >= 0 {
		s = s[idx+1:]
	}
	return strings.ToLower(strings.Trim(s, `"`))
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(bareColumn(item), bareColumn(s)) {
			return true
		}
	}
	return false
}
