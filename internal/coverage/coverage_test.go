package coverage

import (
	"reflect"
	"testing"

	"github.com/jacobarthurs/htscope/internal/metadata"
	"github.com/jacobarthurs/htscope/internal/query"
)

func parse(t *testing.T, sql string) *query.ParsedQuery {
	t.Helper()
	pq, err := query.Parse(sql)
	if err != nil {
		t.Fatalf("Parse(%q): %v", sql, err)
	}
	return pq
}

func hybridTable(pk []string, indexes ...[]string) metadata.Table {
	return metadata.Table{
		IsHybrid:         true,
		PrimaryKey:       pk,
		SecondaryIndexes: indexes,
		IndexProvenance:  metadata.ProvenanceConfirmed,
	}
}

func single(t *testing.T, cov []Coverage) Coverage {
	t.Helper()
	if len(cov) != 1 {
		t.Fatalf("coverage rows = %d, want 1", len(cov))
	}
	return cov[0]
}

func TestScore_PKFullEqualityPrefix(t *testing.T) {
	pq := parse(t, "SELECT * FROM ht WHERE tenant_id = 1 AND id = 2")
	meta := metadata.Set{"ht": hybridTable([]string{"tenant_id", "id"})}

	c := single(t, Score(pq, meta))
	if c.PKEqPrefix != 2 {
		t.Errorf("pk eq prefix = %d, want 2", c.PKEqPrefix)
	}
	if c.BestEqPrefix != 2 {
		t.Errorf("best eq prefix = %d, want 2", c.BestEqPrefix)
	}
	if !reflect.DeepEqual(c.BestIndex, []string{"tenant_id", "id"}) {
		t.Errorf("best index = %v", c.BestIndex)
	}
}

func TestScore_RangeOnOnlyColumnBlocksCredit(t *testing.T) {
	pq := parse(t, "SELECT * FROM ht WHERE order_by_col > 5 ORDER BY order_by_col")
	meta := metadata.Set{"ht": hybridTable([]string{"order_by_col"})}

	c := single(t, Score(pq, meta))
	if c.BestEqPrefix != 0 {
		t.Errorf("best eq prefix = %d, want 0 (range blocks equality credit)", c.BestEqPrefix)
	}
	if c.FirstRangePos != 0 {
		t.Errorf("first range pos = %d, want 0", c.FirstRangePos)
	}
	if c.OrderByPrefix != 1 {
		t.Errorf("order by prefix = %d, want 1", c.OrderByPrefix)
	}
}

func TestScore_RangeWinsOverEquality(t *testing.T) {
	// Both an equality and a range constrain a; the range governs.
	pq := parse(t, "SELECT * FROM t WHERE a = 1 AND a > 0 AND b = 2")
	meta := metadata.Set{"t": hybridTable([]string{"a", "b"})}

	c := single(t, Score(pq, meta))
	if c.BestEqPrefix != 0 {
		t.Errorf("best eq prefix = %d, want 0", c.BestEqPrefix)
	}
	if c.FirstRangePos != 0 {
		t.Errorf("first range pos = %d, want 0", c.FirstRangePos)
	}
}

func TestScore_GapBreaksPrefix(t *testing.T) {
	pq := parse(t, "SELECT * FROM t WHERE a = 1 AND c = 3")
	meta := metadata.Set{"t": hybridTable([]string{"a", "b", "c"})}

	c := single(t, Score(pq, meta))
	if c.BestEqPrefix != 1 {
		t.Errorf("best eq prefix = %d, want 1 (gap on b stops the walk)", c.BestEqPrefix)
	}
}

func TestScore_MonotonicInLeadingEqualities(t *testing.T) {
	meta := metadata.Set{"t": hybridTable([]string{"a", "b", "c"})}
	queries := []string{
		"SELECT * FROM t WHERE c = 3",
		"SELECT * FROM t WHERE a = 1 AND c = 3",
		"SELECT * FROM t WHERE a = 1 AND b = 2 AND c = 3",
	}

	prev := -1
	for _, sql := range queries {
		c := single(t, Score(parse(t, sql), meta))
		if c.BestEqPrefix < prev {
			t.Errorf("prefix decreased from %d to %d for %q", prev, c.BestEqPrefix, sql)
		}
		if c.BestEqPrefix > len(c.BestIndex) {
			t.Errorf("prefix %d exceeds index length %d", c.BestEqPrefix, len(c.BestIndex))
		}
		prev = c.BestEqPrefix
	}
}

func TestScore_Idempotent(t *testing.T) {
	pq := parse(t, "SELECT * FROM t WHERE a = 1 AND b > 2 ORDER BY a")
	meta := metadata.Set{"t": hybridTable([]string{"a", "b"}, []string{"b"})}

	first := Score(pq, meta)
	second := Score(pq, meta)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("scoring is not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestScore_TieBreakKeepsFirstIndex(t *testing.T) {
	// Both secondaries start with a; the one declared first wins the tie.
	pq := parse(t, "SELECT * FROM t WHERE a = 1")
	meta := metadata.Set{"t": {
		IsHybrid:         true,
		SecondaryIndexes: [][]string{{"a", "b"}, {"a", "c"}},
		IndexProvenance:  metadata.ProvenanceConfirmed,
	}}

	c := single(t, Score(pq, meta))
	if !reflect.DeepEqual(c.BestIndex, []string{"a", "b"}) {
		t.Errorf("best index = %v, want first declared", c.BestIndex)
	}
}

func TestScore_NoIndexes(t *testing.T) {
	pq := parse(t, "SELECT * FROM t WHERE a = 1")
	meta := metadata.Set{"t": {IsHybrid: true, IndexProvenance: metadata.ProvenanceConfirmed}}

	c := single(t, Score(pq, meta))
	if c.BestIndex != nil || c.BestEqPrefix != 0 {
		t.Errorf("best = %v prefix = %d, want none", c.BestIndex, c.BestEqPrefix)
	}
}

func TestScore_UnknownTableEmptyCoverage(t *testing.T) {
	pq := parse(t, "SELECT * FROM mystery WHERE a = 1")

	c := single(t, Score(pq, metadata.Set{}))
	if c.Table != "mystery" || c.BestIndex != nil || c.Provenance != metadata.ProvenanceUnknown {
		t.Errorf("unexpected coverage for unknown table: %+v", c)
	}
}

func TestScore_CTESkipped(t *testing.T) {
	pq := parse(t, "WITH x AS (SELECT * FROM real_table WHERE a = 1) SELECT * FROM x WHERE b = 2")
	meta := metadata.Set{}

	cov := Score(pq, meta)
	for _, c := range cov {
		if c.Table == "x" {
			t.Error("CTE appeared in coverage")
		}
	}
}

func TestScore_INCountsAsEquality(t *testing.T) {
	pq := parse(t, "SELECT * FROM t WHERE a IN (1, 2, 3) AND b = 4")
	meta := metadata.Set{"t": hybridTable([]string{"a", "b"})}

	c := single(t, Score(pq, meta))
	if c.BestEqPrefix != 2 {
		t.Errorf("best eq prefix = %d, want 2 (IN is equality-class)", c.BestEqPrefix)
	}
}

func TestScore_OrderByCaseInsensitive(t *testing.T) {
	pq := parse(t, `SELECT * FROM t WHERE A = 1 ORDER BY A, B`)
	meta := metadata.Set{"t": hybridTable([]string{"a", "b"})}

	c := single(t, Score(pq, meta))
	if c.OrderByPrefix != 2 {
		t.Errorf("order by prefix = %d, want 2", c.OrderByPrefix)
	}
}

func TestEnrich_ProducesNewSlice(t *testing.T) {
	pq := parse(t, "SELECT * FROM t WHERE a = 1")
	original := Score(pq, metadata.Set{"t": {IndexProvenance: metadata.ProvenanceUnknown}})
	if original[0].Provenance != metadata.ProvenanceUnknown {
		t.Fatalf("setup: provenance = %v", original[0].Provenance)
	}

	confirmed := metadata.Set{"t": {
		IsHybrid:         true,
		SecondaryIndexes: [][]string{{"a"}},
		IndexProvenance:  metadata.ProvenanceConfirmed,
	}}
	enriched := Enrich(pq, original, confirmed)

	if original[0].Provenance != metadata.ProvenanceUnknown || original[0].BestIndex != nil {
		t.Error("enrichment mutated the original coverage")
	}
	e := single(t, enriched)
	if e.Provenance != metadata.ProvenanceConfirmed {
		t.Errorf("enriched provenance = %v", e.Provenance)
	}
	if e.BestEqPrefix != 1 {
		t.Errorf("enriched best eq prefix = %d, want 1", e.BestEqPrefix)
	}
	if !e.IsHybrid {
		t.Error("enriched IsHybrid = false")
	}
}
