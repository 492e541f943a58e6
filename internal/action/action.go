package action

import (
	"fmt"
	"strings"

	"github.com/jacobarthurs/htscope/internal/coverage"
	"github.com/jacobarthurs/htscope/internal/query"
	"github.com/jacobarthurs/htscope/internal/rules"
	"github.com/jacobarthurs/htscope/internal/telemetry"
)

type Kind string

const (
	KindCreateIndex        Kind = "CREATE_INDEX"
	KindQueryRewrite       Kind = "QUERY_REWRITE"
	KindEngineChoice       Kind = "ENGINE_CHOICE"
	KindArchitectureChange Kind = "ARCHITECTURE_CHANGE"
	KindWorkloadManagement Kind = "WORKLOAD_MANAGEMENT"
)

// Action is a constrained remediation: every action cites the findings
// that justify it and the preconditions a human must verify before
// applying it. Nothing here is invented beyond templates parameterized by
// the findings themselves.
type Action struct {
	ID            string
	Kind          Kind
	Table         string
	Columns       []string
	GeneratedSQL  string
	Risk          string
	Preconditions map[string]string
	EvidenceRules []rules.ID
}

// Build derives actions from an analysis result. One action per distinct
// remediation; an action never appears without at least one corroborating
// finding.
func Build(result rules.Result, pq *query.ParsedQuery, exec *telemetry.Execution) []Action {
	byRule := make(map[rules.ID][]rules.Finding)
	for _, f := range result.Findings {
		byRule[f.Rule] = append(byRule[f.Rule], f)
	}
	has := func(ids ...rules.ID) []rules.ID {
		var present []rules.ID
		for _, id := range ids {
			if len(byRule[id]) > 0 {
				present = append(present, id)
			}
		}
		return present
	}

	var actions []Action

	actions = append(actions, indexActions(result, pq, exec, byRule)...)

	if evidence := has(rules.NoFilteringClauses, rules.NoWhereFilter); len(evidence) > 0 {
		actions = append(actions, Action{
			ID:   "ADD_WHERE_FILTER",
			Kind: KindQueryRewrite,
			Risk: "low",
			Preconditions: map[string]string{
				"full_scan_not_intended": "confirm the caller does not actually need every row",
			},
			EvidenceRules: evidence,
		})
	}

	if evidence := has(rules.OrderByNoLimit); len(evidence) > 0 {
		actions = append(actions, Action{
			ID:   "ADD_LIMIT_ON_ORDER_BY",
			Kind: KindQueryRewrite,
			Risk: "low",
			Preconditions: map[string]string{
				"caller_pagination": "confirm the caller reads only a bounded prefix of the ordered result",
			},
			EvidenceRules: evidence,
		})
	}

	if evidence := has(rules.BindParameters); len(evidence) > 0 {
		actions = append(actions, Action{
			ID:            "USE_BOUND_VARIABLES",
			Kind:          KindQueryRewrite,
			Risk:          "low",
			Preconditions: map[string]string{"client_support": "client driver must support parameterized statements"},
			EvidenceRules: evidence,
		})
	}

	if evidence := has(rules.CreateIndexOnAnalyticHt, rules.MixedHtAndStandard); len(evidence) > 0 {
		actions = append(actions, Action{
			ID:   "ROUTE_ANALYTIC_TO_STANDARD_TABLE",
			Kind: KindEngineChoice,
			Risk: "medium",
			Preconditions: map[string]string{
				"freshness_tolerance": "the analytic reader must tolerate replicated-copy staleness",
			},
			EvidenceRules: evidence,
		})
	}

	if evidence := has(rules.StoredProcedureDetected, rules.SlowStoredProc); len(evidence) > 0 {
		actions = append(actions, Action{
			ID:   "REFACTOR_STORED_PROCEDURE",
			Kind: KindArchitectureChange,
			Risk: "high",
			Preconditions: map[string]string{
				"transaction_semantics": "unbundling must preserve the procedure's transactional boundaries",
			},
			EvidenceRules: evidence,
		})
	}

	if evidence := throttleEvidence(byRule, exec); len(evidence) > 0 {
		actions = append(actions, Action{
			ID:   "MITIGATE_HT_THROTTLING",
			Kind: KindWorkloadManagement,
			Risk: "medium",
			Preconditions: map[string]string{
				"write_pattern": "confirm the throttling source is this workload and not a cotenant",
			},
			EvidenceRules: evidence,
		})
	}

	if evidence := has(rules.PurgePattern); len(evidence) > 0 {
		actions = append(actions, Action{
			ID:   "BATCH_PURGE_OPERATIONS",
			Kind: KindWorkloadManagement,
			Risk: "low",
			Preconditions: map[string]string{
				"idempotent_batches": "the purge must tolerate partial completion between batches",
			},
			EvidenceRules: evidence,
		})
	}

	return actions
}

// indexActions emits one CREATE_INDEX action per table whose coverage
// findings justify it, numbered for stable IDs.
func indexActions(result rules.Result, pq *query.ParsedQuery, exec *telemetry.Execution, byRule map[rules.ID][]rules.Finding) []Action {
	indexRules := []rules.ID{
		rules.HtWithoutIndexes,
		rules.HtIndexesNotUsed,
		rules.MultipleHtNoIndexes,
		rules.CompositeMisaligned,
		rules.IndexMisaligned,
	}

	evidenceByTable := make(map[string][]rules.ID)
	var tableOrder []string
	record := func(table string, id rules.ID) {
		if table == "" {
			return
		}
		if _, seen := evidenceByTable[table]; !seen {
			tableOrder = append(tableOrder, table)
		}
		evidenceByTable[table] = append(evidenceByTable[table], id)
	}
	for _, id := range indexRules {
		for _, f := range byRule[id] {
			if f.Rule == rules.MultipleHtNoIndexes {
				if tables, ok := f.Evidence["tables"].([]string); ok {
					for _, tbl := range tables {
						record(tbl, id)
					}
				}
				continue
			}
			record(f.Table, id)
		}
	}

	var rowsProduced int64
	if exec != nil {
		rowsProduced = exec.RowsProduced
	}

	var actions []Action
	for n, table := range tableOrder {
		eqCols := pq.EqualityColumns()
		cov, _ := coverage.ByTable(result.Coverage, table)
		if len(cov.EqualityColumns) > 0 {
			eqCols = cov.EqualityColumns
		}
		ddl := rules.GenerateIndexDDL(table, eqCols, firstRange(pq), pq.Projection, rowsProduced)
		if ddl == "" {
			continue
		}
		actions = append(actions, Action{
			ID:           fmt.Sprintf("ADD_INDEX_%s_%d", strings.ToUpper(sanitize(table)), n+1),
			Kind:         KindCreateIndex,
			Table:        table,
			Columns:      eqCols,
			GeneratedSQL: ddl,
			Risk:         "medium",
			Preconditions: map[string]string{
				"no_equivalent_index": "verify no existing index already covers these columns",
				"write_headroom":      "the table must absorb one extra index write per row",
			},
			EvidenceRules: dedupe(evidenceByTable[table]),
		})
	}
	return actions
}

func throttleEvidence(byRule map[rules.ID][]rules.Finding, exec *telemetry.Execution) []rules.ID {
	for _, f := range byRule[rules.ProcChildBottleneck] {
		if f.Evidence["bottleneck"] == "STORAGE_THROTTLING" {
			return []rules.ID{rules.ProcChildBottleneck}
		}
	}
	if exec != nil && exec.ThrottleMs > 0 && len(byRule[rules.HtWriteAmplification]) > 0 {
		return []rules.ID{rules.HtWriteAmplification}
	}
	return nil
}

func firstRange(pq *query.ParsedQuery) string {
	for _, p := range pq.Predicates {
		if p.Source != query.SourceCTE && p.Op == query.OpRange {
			if col := p.Column(); col != "" {
				return col
			}
		}
	}
	return ""
}

func sanitize(table string) string {
	table = strings.Trim(table, `"`)
	return strings.NewReplacer(".", "_", `"`, "").Replace(table)
}

func dedupe(ids []rules.ID) []rules.ID {
	seen := make(map[rules.ID]bool)
	var out []rules.ID
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
