package query

import (
	"errors"
	"testing"
)

func mustParse(t *testing.T, sql string) *ParsedQuery {
	t.Helper()
	pq, err := Parse(sql)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", sql, err)
	}
	return pq
}

func predicateColumns(pq *ParsedQuery, source PredicateSource) []string {
	var cols []string
	for _, p := range pq.Predicates {
		if p.Source == source {
			cols = append(cols, p.Column())
		}
	}
	return cols
}

func TestParse_SimpleSelect(t *testing.T) {
	pq := mustParse(t, "SELECT id, name FROM orders o WHERE tenant_id = 1 AND status = 'open'")

	if pq.Kind != KindSelect {
		t.Errorf("kind = %v, want select", pq.Kind)
	}
	if len(pq.Tables) != 1 || pq.Tables[0].Name != "orders" || pq.Tables[0].Alias != "o" {
		t.Errorf("tables = %+v", pq.Tables)
	}
	if !pq.HasWhere {
		t.Error("HasWhere = false")
	}
	if len(pq.Predicates) != 2 {
		t.Fatalf("predicates = %d, want 2", len(pq.Predicates))
	}
	for _, p := range pq.Predicates {
		if p.Op != OpEq {
			t.Errorf("op = %v, want eq", p.Op)
		}
	}
	cols := pq.EqualityColumns()
	if len(cols) != 2 || cols[0] != "tenant_id" || cols[1] != "status" {
		t.Errorf("equality columns = %v", cols)
	}
}

func TestParse_OperatorClasses(t *testing.T) {
	pq := mustParse(t, `SELECT * FROM t WHERE a = 1 AND b > 5 AND c IN (1, 2) AND d BETWEEN 1 AND 9 AND e IS NULL`)

	want := []Operator{OpEq, OpRange, OpIn, OpRange, OpIs}
	if len(pq.Predicates) != len(want) {
		t.Fatalf("predicates = %d, want %d", len(pq.Predicates), len(want))
	}
	for i, p := range pq.Predicates {
		if p.Op != want[i] {
			t.Errorf("predicate %d (%s): op = %v, want %v", i, p.Raw, p.Op, want[i])
		}
	}
	if !pq.HasIn {
		t.Error("HasIn = false")
	}
}

func TestParse_JoinOnEqualityOnly(t *testing.T) {
	pq := mustParse(t, `SELECT * FROM a JOIN b ON a.id = b.a_id AND a.ts > b.ts WHERE a.x = 1`)

	joinCols := predicateColumns(pq, SourceJoin)
	if len(joinCols) != 1 || joinCols[0] != "id" {
		t.Errorf("join predicates = %v, want only the equality", joinCols)
	}
	if len(pq.Joins) != 1 || !pq.Joins[0].HasOn {
		t.Errorf("joins = %+v", pq.Joins)
	}
}

func TestParse_CTEPredicatesTagged(t *testing.T) {
	pq := mustParse(t, `WITH recent AS (SELECT * FROM events WHERE kind = 'click'),
		top AS (SELECT * FROM recent WHERE score > 10)
		SELECT * FROM top t JOIN users u ON t.user_id = u.id WHERE u.active = 1`)

	if len(pq.CTENames) != 2 || pq.CTENames[0] != "recent" || pq.CTENames[1] != "top" {
		t.Fatalf("cte names = %v", pq.CTENames)
	}
	if !pq.IsCTE("top") || pq.IsCTE("users") {
		t.Error("IsCTE misclassified")
	}

	cteCols := predicateColumns(pq, SourceCTE)
	if len(cteCols) != 2 {
		t.Errorf("cte predicates = %v, want kind and score", cteCols)
	}
	whereCols := predicateColumns(pq, SourceWhere)
	if len(whereCols) != 1 || whereCols[0] != "active" {
		t.Errorf("where predicates = %v", whereCols)
	}

	// CTE-local predicates never count toward index targeting.
	for _, col := range pq.EqualityColumns() {
		if col == "kind" {
			t.Error("cte predicate leaked into equality columns")
		}
	}
}

func TestParse_UpdateDelete(t *testing.T) {
	upd := mustParse(t, "UPDATE accounts SET balance = 0 WHERE owner_id = 7")
	if upd.Kind != KindUpdate || !upd.HasWhere {
		t.Errorf("update: kind=%v hasWhere=%v", upd.Kind, upd.HasWhere)
	}
	if cols := upd.EqualityColumns(); len(cols) != 1 || cols[0] != "owner_id" {
		t.Errorf("update equality columns = %v", cols)
	}

	del := mustParse(t, "DELETE FROM sessions WHERE tenant_id = 3 AND created_at < '2026-01-01'")
	if del.Kind != KindDelete || len(del.Predicates) != 2 {
		t.Errorf("delete: kind=%v predicates=%d", del.Kind, len(del.Predicates))
	}
}

func TestParse_InsertShape(t *testing.T) {
	pq := mustParse(t, "INSERT INTO metrics (tenant_id, name, value) VALUES (1, 'cpu', 0.5)")
	if pq.Kind != KindInsert {
		t.Fatalf("kind = %v", pq.Kind)
	}
	if pq.InsertRows != 1 {
		t.Errorf("insert rows = %d, want 1", pq.InsertRows)
	}
	if len(pq.InsertColumns) != 3 || pq.InsertColumns[0] != "tenant_id" {
		t.Errorf("insert columns = %v", pq.InsertColumns)
	}

	multi := mustParse(t, "INSERT INTO metrics (a) VALUES (1), (2), (3)")
	if multi.InsertRows != 3 {
		t.Errorf("multi-row insert rows = %d, want 3", multi.InsertRows)
	}
}

func TestParse_OrderByAndLimit(t *testing.T) {
	pq := mustParse(t, "SELECT * FROM t WHERE a = 1 ORDER BY created_at DESC, id LIMIT 50")
	if len(pq.OrderBy) != 2 {
		t.Fatalf("order by = %+v", pq.OrderBy)
	}
	if !pq.OrderBy[0].Desc || pq.OrderBy[1].Desc {
		t.Errorf("directions = %+v", pq.OrderBy)
	}
	if !pq.HasLimit || pq.Limit != 50 {
		t.Errorf("limit = %d (has=%v), want 50", pq.Limit, pq.HasLimit)
	}
}

func TestParse_FetchFirstBecomesLimit(t *testing.T) {
	pq := mustParse(t, "SELECT * FROM t WHERE a = 1 ORDER BY a FETCH FIRST 10 ROWS ONLY")
	if !pq.HasLimit || pq.Limit != 10 {
		t.Errorf("limit = %d (has=%v), want 10", pq.Limit, pq.HasLimit)
	}
}

func TestParse_QualifyFlag(t *testing.T) {
	pq := mustParse(t, `SELECT * FROM t WHERE a = 1 QUALIFY ROW_NUMBER() OVER (PARTITION BY a ORDER BY b) = 1`)
	if !pq.HasQualify {
		t.Error("HasQualify = false")
	}
	if !pq.HasNarrowing() {
		t.Error("HasNarrowing = false")
	}
}

func TestParse_PlaceholderWhereStillCounts(t *testing.T) {
	pq := mustParse(t, "SELECT * FROM t WHERE id = ?")
	if !pq.HasWhere {
		t.Error("HasWhere = false for placeholder-only WHERE")
	}
	if len(pq.Predicates) == 0 {
		t.Error("expected at least a placeholder predicate")
	}
}

func TestParse_DistinctAndExists(t *testing.T) {
	pq := mustParse(t, `SELECT DISTINCT id FROM a WHERE EXISTS (SELECT 1 FROM b WHERE b.a_id = a.id)`)
	if !pq.HasDistinct || !pq.HasExists {
		t.Errorf("distinct=%v exists=%v", pq.HasDistinct, pq.HasExists)
	}
}

func TestParse_Merge(t *testing.T) {
	pq := mustParse(t, `MERGE INTO target t USING staging s ON t.id = s.id WHEN MATCHED THEN UPDATE SET t.v = s.v`)
	if pq.Kind != KindMerge {
		t.Fatalf("kind = %v", pq.Kind)
	}
	if len(pq.Tables) != 2 || pq.Tables[0].Name != "target" || pq.Tables[1].Name != "staging" {
		t.Errorf("tables = %+v", pq.Tables)
	}
	found := false
	for _, p := range pq.Predicates {
		if p.Source == SourceJoin && p.Column() == "id" && p.Op == OpEq {
			found = true
		}
	}
	if !found {
		t.Errorf("merge ON predicate missing: %+v", pq.Predicates)
	}
}

func TestParse_Call(t *testing.T) {
	pq := mustParse(t, "CALL analytics.proc_ingest_batch('2026-08-01')")
	if pq.Kind != KindCall {
		t.Fatalf("kind = %v", pq.Kind)
	}
	if pq.ProcName != "analytics.proc_ingest_batch" {
		t.Errorf("proc name = %q", pq.ProcName)
	}
}

func TestParse_InvalidSQL(t *testing.T) {
	_, err := Parse("SELECT FROM WHERE !!")
	if err == nil {
		t.Fatal("expected error")
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Errorf("error type = %T, want *ParseError", err)
	}
}

func TestParse_QuotedIdentifiers(t *testing.T) {
	pq := mustParse(t, `SELECT * FROM "Orders" WHERE "TenantId" = 1`)
	if len(pq.Tables) != 1 || pq.Tables[0].Name != "Orders" {
		t.Errorf("tables = %+v", pq.Tables)
	}
	if cols := pq.EqualityColumns(); len(cols) != 1 || cols[0] != "TenantId" {
		t.Errorf("equality columns = %v", cols)
	}
}

func TestParse_NoNarrowing(t *testing.T) {
	pq := mustParse(t, "SELECT * FROM audit_log")
	if pq.HasNarrowing() {
		t.Error("HasNarrowing = true for bare scan")
	}
}

func TestMaskLiterals(t *testing.T) {
	masked := MaskLiterals(`SELECT 'UPPER(x)' -- UPPER(col)
FROM t /* LOWER(y) */ WHERE a = 'it''s'`)
	for _, banned := range []string{"UPPER", "LOWER", "it''s"} {
		if containsFold(masked, banned) {
			t.Errorf("masked text still contains %q: %s", banned, masked)
		}
	}
	if len(masked) == 0 {
		t.Fatal("empty mask")
	}
}

func containsFold(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if equalFoldAt(s, i, sub) {
			return true
		}
	}
	return false
}

func equalFoldAt(s string, i int, sub string) bool {
	for j := 0; j < len(sub); j++ {
		a, b := s[i+j], sub[j]
		if a >= 'a' && a <= 'z' {
			a -= 32
		}
		if b >= 'a' && b <= 'z' {
			b -= 32
		}
		if a != b {
			return false
		}
	}
	return true
}
