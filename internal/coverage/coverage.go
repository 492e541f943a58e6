package coverage

import (
	"strings"

	"github.com/jacobarthurs/htscope/internal/metadata"
	"github.com/jacobarthurs/htscope/internal/query"
)

// Coverage measures how well one table's indexes align with a query's
// predicates. Built once per analysis run and never mutated; enrichment
// from a plan export produces a new slice (see Enrich).
type Coverage struct {
	Table    string
	IsHybrid bool

	PrimaryKey []string
	Indexes    [][]string // PK first, then secondary indexes in declaration order

	BestIndex     []string // nil when no index exists
	BestEqPrefix  int
	FirstRangePos int // position in BestIndex of the first range predicate, -1 when none
	OrderByPrefix int
	PKEqPrefix    int

	EqualityColumns []string
	Provenance      metadata.Provenance
}

// Score computes per-table coverage. Pure function: unknown tables fall
// back to an empty coverage row rather than failing, and CTE references are
// skipped entirely since synthetic relations cannot carry indexes.
func Score(pq *query.ParsedQuery, meta metadata.Set) []Coverage {
	predOps := normalizePredicates(pq.Predicates)
	eqCols := pq.EqualityColumns()

	var out []Coverage
	seen := make(map[string]bool)
	for _, ref := range pq.Tables {
		fqn := ref.FQN()
		if pq.IsCTE(ref.Name) || seen[strings.ToLower(fqn)] {
			continue
		}
		seen[strings.ToLower(fqn)] = true

		info, _ := meta.Lookup(fqn)
		out = append(out, scoreTable(fqn, info, predOps, pq.OrderBy, eqCols))
	}
	return out
}

func scoreTable(table string, info metadata.Table, predOps map[string]query.Operator, orderBy []query.OrderColumn, eqCols []string) Coverage {
	cov := Coverage{
		Table:           table,
		IsHybrid:        info.IsHybrid,
		PrimaryKey:      info.PrimaryKey,
		FirstRangePos:   -1,
		EqualityColumns: eqCols,
		Provenance:      info.IndexProvenance,
	}

	if len(info.PrimaryKey) > 0 {
		cov.Indexes = append(cov.Indexes, info.PrimaryKey)
	}
	cov.Indexes = append(cov.Indexes, info.SecondaryIndexes...)

	cov.PKEqPrefix, _ = eqPrefix(predOps, info.PrimaryKey)

	// First index encountered wins ties: PK before secondaries, secondaries
	// in declaration order. Stable and documented, not a cost estimate.
	best := -1
	for _, idx := range cov.Indexes {
		eq, firstRange := eqPrefix(predOps, idx)
		if eq > best {
			best = eq
			cov.BestIndex = idx
			cov.BestEqPrefix = eq
			cov.FirstRangePos = firstRange
		}
	}

	cov.OrderByPrefix = orderByPrefix(orderBy, cov.BestIndex)
	return cov
}

// normalizePredicates maps column name to its strongest operator class.
// RANGE wins when a column carries both: once a range predicate appears,
// further equality matches add no prefix credit.
func normalizePredicates(preds []query.Predicate) map[string]query.Operator {
	ops := make(map[string]query.Operator)
	for _, p := range preds {
		if p.Source == query.SourceCTE {
			continue
		}
		col := strings.ToLower(p.Column())
		if col == "" {
			continue
		}
		switch p.Op {
		case query.OpEq, query.OpIn:
			if existing, ok := ops[col]; !ok || existing != query.OpRange {
				ops[col] = query.OpEq
			}
		case query.OpRange:
			ops[col] = query.OpRange
		}
	}
	return ops
}

// eqPrefix counts leading index columns constrained by equality, stopping
// at the first column that is range-constrained or unconstrained. This is
// leftmost-prefix matching: a gap breaks all further credit.
func eqPrefix(predOps map[string]query.Operator, indexCols []string) (eq, firstRange int) {
	firstRange = -1
	for i, col := range indexCols {
		op, ok := predOps[strings.ToLower(strings.Trim(col, `"`))]
		if !ok {
			return eq, firstRange
		}
		if op == query.OpRange {
			return eq, i
		}
		eq++
	}
	return eq, firstRange
}

// IndexEqPrefix scores one candidate index against the query's predicates.
// Used when a caller needs per-index alignment rather than the best index.
func IndexEqPrefix(pq *query.ParsedQuery, indexCols []string) (eq, firstRange int) {
	return eqPrefix(normalizePredicates(pq.Predicates), indexCols)
}

func orderByPrefix(orderBy []query.OrderColumn, bestIndex []string) int {
	if len(orderBy) == 0 || len(bestIndex) == 0 {
		return 0
	}
	prefix := 0
	for i, oc := range orderBy {
		if i >= len(bestIndex) {
			break
		}
		if !sameColumn(oc.Column, bestIndex[i]) {
			break
		}
		prefix++
	}
	return prefix
}

func sameColumn(a, b string) bool {
	norm := func(s string) string {
		if idx := strings.LastIndex(s, "."); idx >= 0 {
			s = s[idx+1:]
		}
		return strings.ToLower(strings.Trim(s, `"`))
	}
	return norm(a) == norm(b)
}

// Enrich re-scores coverage after a plan export or schema lookup supplied
// confirmed index metadata. The input slice is left untouched as an audit
// trail; the returned slice carries the merged view with updated
// provenance.
func Enrich(pq *query.ParsedQuery, cov []Coverage, confirmed metadata.Set) []Coverage {
	merged := make(metadata.Set, len(cov))
	for _, c := range cov {
		info := metadata.Table{
			IsHybrid:        c.IsHybrid,
			PrimaryKey:      c.PrimaryKey,
			IndexProvenance: c.Provenance,
		}
		if len(c.Indexes) > len(c.PrimaryKey) || (len(c.PrimaryKey) == 0 && len(c.Indexes) > 0) {
			info.SecondaryIndexes = secondaryOf(c)
		}
		if conf, ok := confirmed.Lookup(c.Table); ok {
			if conf.PrimaryKey != nil {
				info.PrimaryKey = conf.PrimaryKey
			}
			if conf.SecondaryIndexes != nil {
				info.SecondaryIndexes = conf.SecondaryIndexes
			}
			if conf.IsHybrid {
				info.IsHybrid = true
			}
			info.IndexProvenance = metadata.ProvenanceConfirmed
		}
		merged[c.Table] = info
	}
	return Score(pq, merged)
}

func secondaryOf(c Coverage) [][]string {
	if len(c.PrimaryKey) > 0 && len(c.Indexes) > 0 {
		return c.Indexes[1:]
	}
	return c.Indexes
}

// ByTable returns the coverage row for a table, matching on the qualified
// or bare name.
func ByTable(cov []Coverage, table string) (Coverage, bool) {
	for _, c := range cov {
		if strings.EqualFold(c.Table, table) {
			return c, true
		}
		if idx := strings.LastIndex(c.Table, "."); idx >= 0 && strings.EqualFold(c.Table[idx+1:], table) {
			return c, true
		}
	}
	return Coverage{}, false
}
