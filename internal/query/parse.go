package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// Parse builds the query model for one statement. Statement kinds the AST
// grammar supports (SELECT/INSERT/UPDATE/DELETE) go through a structural
// walk; MERGE, CALL and COPY fall back to lexical extraction. A failure to
// parse a supported kind is fatal to this statement only.
func Parse(sql string) (*ParsedQuery, error) {
	raw := sql
	normalized, hadQualify := Normalize(sql)
	ctes, main := SplitCTEs(normalized)

	pq := &ParsedQuery{
		Raw:        raw,
		Kind:       DetectKind(normalized),
		HasQualify: hadQualify,
	}
	for _, c := range ctes {
		pq.CTENames = append(pq.CTENames, c.Name)
	}

	switch pq.Kind {
	case KindSelect, KindInsert, KindUpdate, KindDelete:
		stmt, err := sqlparser.Parse(main)
		if err != nil {
			return nil, &ParseError{SQL: raw, Err: err}
		}
		walkStatement(stmt, pq)
	case KindMerge:
		parseMerge(main, pq)
	case KindCall:
		pq.ProcName = extractProcName(main)
		pq.HasWhere = hasLexicalWhere(main)
	case KindCopy, KindCreateIndex, KindDDL:
		pq.HasWhere = hasLexicalWhere(main)
	default:
		return nil, &ParseError{SQL: raw, Err: fmt.Errorf("unrecognized statement")}
	}

	// CTE bodies are parsed independently; their predicates are tagged so
	// scoring can exclude them. A body the grammar rejects contributes
	// nothing rather than failing the whole statement.
	for _, c := range ctes {
		body, _ := Normalize(c.Body)
		if stmt, err := sqlparser.Parse(body); err == nil {
			sub := &ParsedQuery{Kind: KindSelect}
			walkStatement(stmt, sub)
			for _, p := range sub.Predicates {
				p.Source = SourceCTE
				pq.Predicates = append(pq.Predicates, p)
			}
		}
	}

	// A WHERE made entirely of placeholders yields no structural predicates.
	// Presence of WHERE, not predicate count, is the filtering signal, so a
	// single placeholder predicate keeps downstream logic honest.
	if len(pq.Predicates) == 0 && hasLexicalWhere(main) {
		pq.HasWhere = true
		pq.Predicates = append(pq.Predicates, Predicate{
			Op:     OpEq,
			Source: SourceWhere,
			Raw:    "<unresolved filter>",
		})
	}

	return pq, nil
}

func walkStatement(stmt sqlparser.Statement, pq *ParsedQuery) {
	switch s := stmt.(type) {
	case *sqlparser.Select:
		walkSelect(s, pq)
	case *sqlparser.Union:
		walkStatement(s.Left, pq)
		walkStatement(s.Right, pq)
		collectOrderBy(s.OrderBy, pq)
		collectLimit(s.Limit, pq)
	case *sqlparser.Insert:
		pq.Tables = append(pq.Tables, tableRef(s.Table, ""))
		for _, col := range s.Columns {
			pq.InsertColumns = append(pq.InsertColumns, col.String())
		}
		switch rows := s.Rows.(type) {
		case sqlparser.Values:
			pq.InsertRows = len(rows)
		case *sqlparser.Select:
			walkSelect(rows, pq)
		case *sqlparser.Union:
			walkStatement(rows, pq)
		}
	case *sqlparser.Update:
		collectTableExprs(s.TableExprs, pq)
		collectWhere(s.Where, pq)
		collectOrderBy(s.OrderBy, pq)
		collectLimit(s.Limit, pq)
	case *sqlparser.Delete:
		collectTableExprs(s.TableExprs, pq)
		collectWhere(s.Where, pq)
		collectOrderBy(s.OrderBy, pq)
		collectLimit(s.Limit, pq)
	}
}

func walkSelect(s *sqlparser.Select, pq *ParsedQuery) {
	if s.Distinct != "" {
		pq.HasDistinct = true
	}
	for _, se := range s.SelectExprs {
		switch e := se.(type) {
		case *sqlparser.StarExpr:
			pq.Projection = append(pq.Projection, "*")
		case *sqlparser.AliasedExpr:
			pq.Projection = append(pq.Projection, sqlparser.String(e.Expr))
		}
	}
	collectTableExprs(s.From, pq)
	collectWhere(s.Where, pq)
	if s.Having != nil {
		pq.HasHaving = true
	}
	collectOrderBy(s.OrderBy, pq)
	collectLimit(s.Limit, pq)
}

func collectWhere(w *sqlparser.Where, pq *ParsedQuery) {
	if w == nil {
		return
	}
	pq.HasWhere = true
	collectPredicates(w.Expr, SourceWhere, pq)
}

func collectOrderBy(order sqlparser.OrderBy, pq *ParsedQuery) {
	for _, o := range order {
		pq.OrderBy = append(pq.OrderBy, OrderColumn{
			Column: sqlparser.String(o.Expr),
			Desc:   o.Direction == sqlparser.DescScr,
		})
	}
}

func collectLimit(l *sqlparser.Limit, pq *ParsedQuery) {
	if l == nil || l.Rowcount == nil {
		return
	}
	if val, ok := l.Rowcount.(*sqlparser.SQLVal); ok && val.Type == sqlparser.IntVal {
		if n, err := strconv.Atoi(string(val.Val)); err == nil {
			pq.Limit = n
			pq.HasLimit = true
			return
		}
	}
	// Placeholder rowcount still counts as a limit.
	pq.HasLimit = true
}

func collectTableExprs(exprs sqlparser.TableExprs, pq *ParsedQuery) {
	for _, te := range exprs {
		collectTableExpr(te, pq)
	}
}

func collectTableExpr(te sqlparser.TableExpr, pq *ParsedQuery) {
	switch t := te.(type) {
	case *sqlparser.AliasedTableExpr:
		switch e := t.Expr.(type) {
		case sqlparser.TableName:
			pq.Tables = append(pq.Tables, tableRef(e, t.As.String()))
		case *sqlparser.Subquery:
			if sel, ok := e.Select.(*sqlparser.Select); ok {
				collectTableExprs(sel.From, pq)
				collectWhere(sel.Where, pq)
			}
		}
	case *sqlparser.ParenTableExpr:
		collectTableExprs(t.Exprs, pq)
	case *sqlparser.JoinTableExpr:
		collectTableExpr(t.LeftExpr, pq)
		collectTableExpr(t.RightExpr, pq)
		join := Join{Kind: strings.ToUpper(t.Join)}
		if t.Condition.On != nil {
			join.HasOn = true
			join.On = sqlparser.String(t.Condition.On)
			collectJoinOn(t.Condition.On, pq)
		} else if len(t.Condition.Using) > 0 {
			join.HasOn = true
			join.On = "USING " + sqlparser.String(t.Condition.Using)
		}
		pq.Joins = append(pq.Joins, join)
	}
}

// collectJoinOn keeps only equality comparisons: non-equality join
// conditions are not index-relevant.
func collectJoinOn(expr sqlparser.Expr, pq *ParsedQuery) {
	switch e := expr.(type) {
	case *sqlparser.AndExpr:
		collectJoinOn(e.Left, pq)
		collectJoinOn(e.Right, pq)
	case *sqlparser.ParenExpr:
		collectJoinOn(e.Expr, pq)
	case *sqlparser.ComparisonExpr:
		if e.Operator != sqlparser.EqualStr {
			return
		}
		pq.Predicates = append(pq.Predicates, Predicate{
			Left:   sqlparser.String(e.Left),
			Right:  sqlparser.String(e.Right),
			Op:     OpEq,
			Source: SourceJoin,
			Raw:    sqlparser.String(e),
		})
	}
}

func collectPredicates(expr sqlparser.Expr, source PredicateSource, pq *ParsedQuery) {
	switch e := expr.(type) {
	case *sqlparser.AndExpr:
		collectPredicates(e.Left, source, pq)
		collectPredicates(e.Right, source, pq)
	case *sqlparser.OrExpr:
		collectPredicates(e.Left, source, pq)
		collectPredicates(e.Right, source, pq)
	case *sqlparser.ParenExpr:
		collectPredicates(e.Expr, source, pq)
	case *sqlparser.NotExpr:
		collectPredicates(e.Expr, source, pq)
	case *sqlparser.ComparisonExpr:
		op := comparisonOp(e.Operator)
		if op == OpIn {
			pq.HasIn = true
		}
		pq.Predicates = append(pq.Predicates, Predicate{
			Left:   sqlparser.String(e.Left),
			Right:  sqlparser.String(e.Right),
			Op:     op,
			Source: source,
			Raw:    sqlparser.String(e),
		})
	case *sqlparser.RangeCond:
		pq.Predicates = append(pq.Predicates, Predicate{
			Left:   sqlparser.String(e.Left),
			Right:  sqlparser.String(e.From) + " AND " + sqlparser.String(e.To),
			Op:     OpRange,
			Source: source,
			Raw:    sqlparser.String(e),
		})
	case *sqlparser.IsExpr:
		pq.Predicates = append(pq.Predicates, Predicate{
			Left:   sqlparser.String(e.Expr),
			Op:     OpIs,
			Source: source,
			Raw:    sqlparser.String(e),
		})
	case *sqlparser.ExistsExpr:
		pq.HasExists = true
		pq.Predicates = append(pq.Predicates, Predicate{
			Op:     OpExists,
			Source: source,
			Raw:    sqlparser.String(e),
		})
	}
}

// IN behaves as equality for prefix purposes; every ordering or inequality
// operator is a range.
func comparisonOp(op string) Operator {
	switch op {
	case sqlparser.EqualStr:
		return OpEq
	case sqlparser.InStr:
		return OpIn
	default:
		return OpRange
	}
}

func tableRef(t sqlparser.TableName, alias string) TableRef {
	return TableRef{
		Schema: t.Qualifier.String(),
		Name:   t.Name.String(),
		Alias:  alias,
	}
}

var (
	mergeTargetRe = regexp.MustCompile(`(?i)\bMERGE\s+INTO\s+([\w".]+)(?:\s+(?:AS\s+)?(\w+))?`)
	mergeUsingRe  = regexp.MustCompile(`(?i)\bUSING\s+([\w".]+)(?:\s+(?:AS\s+)?(\w+))?`)
	mergeOnRe     = regexp.MustCompile(`(?i)\bON\b`)
	callNameRe    = regexp.MustCompile(`(?i)\bCALL\s+([\w".]+)\s*\(`)
)

// parseMerge extracts target/source tables and ON/WHERE predicates from a
// MERGE statement lexically, since the grammar has no MERGE production.
func parseMerge(sql string, pq *ParsedQuery) {
	masked := MaskLiterals(sql)

	if m := mergeTargetRe.FindStringSubmatchIndex(masked); m != nil {
		pq.Tables = append(pq.Tables, splitTableName(sql[m[2]:m[3]], submatchOrEmpty(sql, m, 2)))
	}
	if m := mergeUsingRe.FindStringSubmatchIndex(masked); m != nil {
		name := sql[m[2]:m[3]]
		// USING (SELECT ...) has no table name to record
		if !strings.HasPrefix(name, "(") {
			pq.Tables = append(pq.Tables, splitTableName(name, submatchOrEmpty(sql, m, 2)))
		}
	}
	if loc := mergeOnRe.FindStringIndex(masked); loc != nil {
		for _, p := range scanTextPredicates(sql[loc[1]:], SourceJoin) {
			pq.Predicates = append(pq.Predicates, p)
		}
		pq.Joins = append(pq.Joins, Join{Kind: "MERGE", HasOn: true})
	}
	if hasLexicalWhere(sql) {
		pq.HasWhere = true
	}
}

func submatchOrEmpty(sql string, m []int, group int) string {
	if 2*group+1 < len(m) && m[2*group] >= 0 {
		return sql[m[2*group]:m[2*group+1]]
	}
	return ""
}

func splitTableName(fqn, alias string) TableRef {
	fqn = strings.Trim(fqn, `"`)
	ref := TableRef{Name: fqn, Alias: alias}
	if idx := strings.LastIndex(fqn, "."); idx >= 0 {
		ref.Schema = fqn[:idx]
		ref.Name = fqn[idx+1:]
	}
	return ref
}

func extractProcName(sql string) string {
	if m := callNameRe.FindStringSubmatch(MaskLiterals(sql)); m != nil {
		return strings.Trim(m[1], `"`)
	}
	return ""
}
