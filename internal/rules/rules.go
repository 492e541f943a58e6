package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jacobarthurs/htscope/internal/metadata"
	"github.com/jacobarthurs/htscope/internal/query"
)

func isFilterable(kind query.StatementKind) bool {
	switch kind {
	case query.KindSelect, query.KindUpdate, query.KindDelete, query.KindMerge:
		return true
	default:
		return false
	}
}

func checkNoFilteringClauses(ctx *Context) []Finding {
	pq := ctx.Query
	if !isFilterable(pq.Kind) || len(pq.Tables) == 0 {
		return nil
	}

	if !pq.HasNarrowing() {
		return []Finding{{
			Severity:   High,
			Rule:       NoFilteringClauses,
			Message:    "statement has no WHERE, IN, EXISTS, HAVING or QUALIFY; every row will be read",
			Suggestion: "Add a WHERE clause on an indexed column, or confirm a full scan is intended",
		}}
	}

	if !pq.HasWhere {
		return []Finding{{
			Severity:   Medium,
			Rule:       NoWhereFilter,
			Message:    "statement narrows rows only through IN/EXISTS/HAVING; no WHERE clause restricts the base scan",
			Suggestion: "Add a WHERE clause so the storage layer can seek instead of scanning",
		}}
	}
	return nil
}

func checkJoinWithoutOn(ctx *Context) []Finding {
	var out []Finding
	for _, j := range ctx.Query.Joins {
		if j.HasOn || strings.Contains(j.Kind, "CROSS") {
			continue
		}
		out = append(out, Finding{
			Severity:   High,
			Rule:       JoinWithoutOn,
			Message:    fmt.Sprintf("%s join has no ON condition; this is a cartesian product", strings.ToLower(j.Kind)),
			Suggestion: "Add an ON condition joining the tables on their key columns",
		})
	}
	return out
}

func checkDistinctUnnecessary(ctx *Context) []Finding {
	pq := ctx.Query
	if !pq.HasDistinct || !pq.HasExists || len(pq.Joins) > 0 {
		return nil
	}
	return []Finding{{
		Severity:   High,
		Rule:       DistinctUnnecessary,
		Message:    "DISTINCT over an EXISTS-filtered query without joins cannot produce duplicates",
		Suggestion: "Drop DISTINCT; it forces a sort or hash over the full result for no effect",
	}}
}

func checkOrderByNoLimit(ctx *Context) []Finding {
	pq := ctx.Query
	if len(pq.OrderBy) == 0 || pq.HasLimit {
		return nil
	}

	severity := High
	if ctx.Exec.HasRuntime() {
		if ctx.Exec.RowsProduced <= OrderByNoLimitSuppressRows {
			return nil
		}
		severity = Medium
		for _, c := range ctx.hybridCoverage() {
			if c.OrderByPrefix > 0 {
				severity = High
			}
		}
	}

	return []Finding{{
		Severity:   severity,
		Rule:       OrderByNoLimit,
		Message:    "ORDER BY without LIMIT sorts and returns the entire result set",
		Suggestion: "Add a LIMIT, or order in the client if the full set is needed",
	}}
}

func checkWideSelect(ctx *Context) []Finding {
	if ctx.Query.Kind != query.KindSelect {
		return nil
	}
	for _, p := range ctx.Query.Projection {
		if p == "*" || strings.HasSuffix(p, ".*") {
			return []Finding{{
				Severity:   Medium,
				Rule:       WideSelect,
				Message:    "SELECT * fetches every column whether or not the caller uses them",
				Suggestion: "Project only the columns the caller reads; narrow projections also enable covering indexes",
			}}
		}
	}
	return nil
}

var boundMarkerRes = []*regexp.Regexp{
	regexp.MustCompile(`=\s*\?`),
	regexp.MustCompile(`\(\s*\?`),
	regexp.MustCompile(`,\s*\?`),
	regexp.MustCompile(`\?\s*\)`),
	regexp.MustCompile(`\?\s*,`),
	regexp.MustCompile(`:\w+`),
	regexp.MustCompile(`:\d+`),
	regexp.MustCompile(`\$\d+`),
}

func usesBoundMarkers(maskedSQL string) bool {
	for _, re := range boundMarkerRes {
		if re.MatchString(maskedSQL) {
			return true
		}
	}
	return false
}

func isLiteral(right string) bool {
	if right == "" {
		return false
	}
	c := right[0]
	return c == '\'' || (c >= '0' && c <= '9') || (c == '-' && len(right) > 1)
}

func checkBindParameters(ctx *Context) []Finding {
	if usesBoundMarkers(ctx.MaskedSQL) {
		return nil
	}
	literals := 0
	for _, p := range ctx.Query.Predicates {
		if p.Source == query.SourceCTE {
			continue
		}
		if isLiteral(p.Right) {
			literals++
		}
	}
	if literals < BindParameterLiteralMin {
		return nil
	}
	return []Finding{{
		Severity:   Medium,
		Rule:       BindParameters,
		Message:    fmt.Sprintf("%d predicates compare against inline literals", literals),
		Suggestion: "Use bound parameters so the compiled plan is reused across invocations",
		Evidence:   map[string]any{"literal_predicates": literals},
	}}
}

func checkTypeMismatch(ctx *Context) []Finding {
	var out []Finding
	for _, p := range ctx.Query.Predicates {
		if p.Source == query.SourceCTE || !isLiteral(p.Right) {
			continue
		}
		col := strings.ToLower(p.Column())
		colType := ctx.columnType(col)
		if colType == "" {
			continue
		}

		var msg string
		switch {
		case isNumericType(colType) && strings.HasPrefix(p.Right, "'"):
			msg = fmt.Sprintf("numeric column %s compared against a string literal", col)
		case isTemporalType(colType) && strings.HasPrefix(p.Right, "'") &&
			!strings.Contains(strings.ToUpper(p.Raw), "TO_DATE") &&
			!strings.Contains(strings.ToUpper(p.Raw), "TO_TIMESTAMP"):
			msg = fmt.Sprintf("temporal column %s compared against a bare string literal", col)
		case isTextType(colType) && !strings.HasPrefix(p.Right, "'"):
			msg = fmt.Sprintf("text column %s compared against a numeric literal", col)
		default:
			continue
		}

		out = append(out, Finding{
			Severity:   Medium,
			Rule:       TypeMismatch,
			Message:    msg + "; the implicit cast can disable index use",
			Suggestion: "Match the literal type to the column, or cast the literal side explicitly",
			Evidence:   map[string]any{"column": col, "column_type": colType, "literal": p.Right},
		})
	}
	return out
}

func (ctx *Context) columnType(col string) string {
	for _, c := range ctx.Coverage {
		info, ok := ctx.Meta.Lookup(c.Table)
		if !ok {
			continue
		}
		for name, typ := range info.Columns {
			if strings.EqualFold(name, col) {
				return strings.ToUpper(typ)
			}
		}
	}
	return ""
}

func isNumericType(t string) bool {
	for _, kw := range []string{"NUMBER", "INT", "DECIMAL", "NUMERIC", "FLOAT", "DOUBLE"} {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

func isTemporalType(t string) bool {
	return strings.Contains(t, "DATE") || strings.Contains(t, "TIMESTAMP")
}

func isTextType(t string) bool {
	for _, kw := range []string{"VARCHAR", "CHAR", "TEXT", "STRING"} {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

func checkPKNotEarly(ctx *Context) []Finding {
	var out []Finding
	for _, c := range ctx.hybridCoverage() {
		if len(c.PrimaryKey) == 0 || c.PKEqPrefix > 0 || len(c.EqualityColumns) == 0 {
			continue
		}
		out = append(out, Finding{
			Severity: High,
			Rule:     PKNotEarly,
			Table:    c.Table,
			Message: fmt.Sprintf("no equality predicate touches the primary key of hybrid table %s (%s)",
				c.Table, strings.Join(c.PrimaryKey, ", ")),
			Suggestion: "Filter on the leading primary key column for a point read, or add a secondary index for this access path",
		})
	}
	return out
}

// checkIndexCoverage is the core hybrid-table verdict: no indexes at all,
// or indexes that the predicates cannot use. Unknown metadata is hedged
// rather than asserted.
func checkIndexCoverage(ctx *Context) []Finding {
	if len(ctx.Query.EqualityColumns()) == 0 {
		return nil
	}

	var out []Finding
	for _, c := range ctx.Coverage {
		// Unknown provenance is hedged for every table the predicates
		// touch; an omitted index list is not evidence of absence.
		if c.Provenance != metadata.ProvenanceConfirmed {
			msg := fmt.Sprintf("cannot determine whether indexes exist on %s; analysis assumes none", c.Table)
			if ctx.Exec != nil && ctx.Exec.AccessKvTable {
				msg = fmt.Sprintf("cannot determine whether indexes exist on %s; the execution touched the hybrid engine, so missing indexes would be costly", c.Table)
			}
			out = append(out, Finding{
				Severity:   Info,
				Rule:       IndexMetadataUnknown,
				Table:      c.Table,
				Message:    msg,
				Suggestion: "Check the table DDL, or supply an execution export with confirmed index metadata",
			})
			continue
		}

		if !c.IsHybrid {
			continue
		}

		secondaries := len(c.Indexes)
		if len(c.PrimaryKey) > 0 && secondaries > 0 {
			secondaries--
		}

		switch {
		case secondaries == 0 && c.PKEqPrefix == 0:
			out = append(out,
				Finding{
					Severity:   High,
					Rule:       HtWithoutIndexes,
					Table:      c.Table,
					Message:    fmt.Sprintf("hybrid table %s has no secondary indexes and the primary key is not usable here", c.Table),
					Suggestion: "Create a secondary index on the equality predicate columns",
				},
				noCoverageFinding(c.Table, ctx.Query.EqualityColumns()),
			)
		case secondaries > 0 && c.BestEqPrefix == 0:
			out = append(out,
				Finding{
					Severity:   High,
					Rule:       HtIndexesNotUsed,
					Table:      c.Table,
					Message:    fmt.Sprintf("hybrid table %s has indexes, but none match the leading predicate columns", c.Table),
					Suggestion: "Reorder the index columns or the predicates so an index left-prefix matches",
				},
				noCoverageFinding(c.Table, ctx.Query.EqualityColumns()),
			)
		}
	}
	return out
}

func noCoverageFinding(table string, eqCols []string) Finding {
	return Finding{
		Severity: High,
		Rule:     NoIndexCoverage,
		Table:    table,
		Message: fmt.Sprintf("no index on %s covers the equality predicates (%s); the scan falls back to the full table",
			table, strings.Join(eqCols, ", ")),
		Suggestion: "Create or realign an index so its leading columns match the equality predicates",
		Evidence:   map[string]any{"predicate_columns": eqCols},
	}
}

func checkIndexMisaligned(ctx *Context) []Finding {
	var out []Finding
	for _, c := range ctx.Coverage {
		if len(c.Indexes) == 0 || c.BestEqPrefix > 0 || len(c.EqualityColumns) == 0 || c.IsHybrid {
			continue
		}
		out = append(out, Finding{
			Severity:   High,
			Rule:       IndexMisaligned,
			Table:      c.Table,
			Message:    fmt.Sprintf("indexes exist on %s but none start with an equality predicate column", c.Table),
			Suggestion: "Align an index's leading column with the most selective equality predicate",
		})
	}
	return out
}

func checkOrderMisaligned(ctx *Context) []Finding {
	if len(ctx.Query.OrderBy) == 0 {
		return nil
	}
	var out []Finding
	for _, c := range ctx.Coverage {
		if len(c.Indexes) == 0 || c.OrderByPrefix > 0 {
			continue
		}
		out = append(out, Finding{
			Severity:   Medium,
			Rule:       OrderMisaligned,
			Table:      c.Table,
			Message:    fmt.Sprintf("ORDER BY columns do not follow any index order on %s; an explicit sort is required", c.Table),
			Suggestion: "Order by the index columns in index order, or extend the index to cover the sort",
		})
	}
	return out
}

func checkMixedTables(ctx *Context) []Finding {
	var hybrid, standard []string
	for _, c := range ctx.Coverage {
		if c.IsHybrid {
			hybrid = append(hybrid, c.Table)
		} else if c.Provenance == metadata.ProvenanceConfirmed {
			standard = append(standard, c.Table)
		}
	}
	if len(hybrid) == 0 || len(standard) == 0 {
		return nil
	}
	return []Finding{{
		Severity: Medium,
		Rule:     MixedHtAndStandard,
		Message: fmt.Sprintf("statement joins hybrid tables (%s) with standard tables (%s); row-engine and column-engine access mix in one plan",
			strings.Join(hybrid, ", "), strings.Join(standard, ", ")),
		Suggestion: "Keep hot OLTP paths on hybrid tables only, or pre-stage the standard-table side",
	}}
}

func checkJoinPattern(ctx *Context) []Finding {
	pq := ctx.Query
	if len(pq.Joins) == 0 || pq.HasExists {
		return nil
	}
	return []Finding{{
		Severity:   Medium,
		Rule:       JoinPattern,
		Message:    "join used where only existence of a matching row may be needed",
		Suggestion: "If the joined table only filters rows, rewrite as EXISTS to stop after the first match",
	}}
}

var dateLiteralRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

func looksTemporal(col, right string) bool {
	lc := strings.ToLower(col)
	for _, word := range []string{"created", "updated", "modified", "deleted", "timestamp", "date", "time"} {
		if strings.Contains(lc, word) {
			return true
		}
	}
	for _, suffix := range []string{"_at", "_dt", "_date", "_time"} {
		if strings.HasSuffix(lc, suffix) {
			return true
		}
	}
	return dateLiteralRe.MatchString(strings.Trim(right, "'"))
}

// checkPurgePattern spots retention deletes: an equality narrowing plus an
// upper time bound. These want batching, not indexing advice.
func checkPurgePattern(ctx *Context) []Finding {
	pq := ctx.Query
	switch pq.Kind {
	case query.KindUpdate, query.KindDelete, query.KindMerge:
	default:
		return nil
	}
	if len(pq.Predicates) < 2 {
		return nil
	}

	hasEquality := false
	hasTimeBound := false
	for _, p := range pq.Predicates {
		if p.Op.IsEquality() {
			hasEquality = true
		}
		if p.Op == query.OpRange && strings.Contains(p.Raw, "<") && !strings.Contains(p.Raw, "<>") &&
			looksTemporal(p.Column(), p.Right) {
			hasTimeBound = true
		}
	}
	if !hasEquality || !hasTimeBound {
		return nil
	}

	return []Finding{{
		Severity:   Info,
		Rule:       PurgePattern,
		Message:    "statement matches a purge pattern: equality narrowing plus an upper time bound",
		Suggestion: "Run purges in bounded batches with a LIMIT to keep transaction size and throttling in check",
	}}
}
