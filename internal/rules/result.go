package rules

import (
	"github.com/jacobarthurs/htscope/internal/coverage"
)

type Severity int

const (
	Info     Severity = 0
	Low      Severity = 1
	Medium   Severity = 2
	High     Severity = 3
	Critical Severity = 4
)

func (s Severity) String() string {
	switch s {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "info"
	}
}

// ID identifies one rule. Stable across releases; downstream tooling keys
// suppressions and dashboards on these strings.
type ID string

const (
	NoFilteringClauses     ID = "NO_FILTERING_CLAUSES"
	NoWhereFilter          ID = "NO_WHERE_FILTER"
	JoinWithoutOn          ID = "JOIN_WITHOUT_ON"
	DistinctUnnecessary    ID = "DISTINCT_UNNECESSARY"
	OrderByNoLimit         ID = "ORDER_BY_NO_LIMIT"
	NonSargablePredicates  ID = "NON_SARGABLE_PREDICATES"
	FunctionInJoin         ID = "FUNCTION_IN_JOIN_PREDICATE"
	ExcessiveCaseTransform ID = "EXCESSIVE_CASE_TRANSFORMS"
	WideSelect             ID = "WIDE_SELECT"
	BindParameters         ID = "BIND_PARAMETERS"
	TypeMismatch           ID = "TYPE_MISMATCH"
	PKNotEarly             ID = "PK_NOT_EARLY_IN_PREDICATES"
	IndexMisaligned        ID = "INDEX_MISALIGNED"
	OrderMisaligned        ID = "ORDER_MISALIGNED"
	JoinPattern            ID = "JOIN_PATTERN"
	PurgePattern           ID = "HT_PURGE_PATTERN_DETECTED"

	NoIndexCoverage       ID = "NO_INDEX_COVERAGE_ON_PREDICATES"
	IndexMetadataUnknown  ID = "INDEX_METADATA_UNKNOWN"
	HtWithoutIndexes      ID = "HT_WITHOUT_INDEXES"
	HtIndexesNotUsed      ID = "HT_INDEXES_NOT_USED"
	MultipleHtNoIndexes   ID = "MULTIPLE_HT_TABLES_NO_INDEXES"
	MixedHtAndStandard    ID = "MIXED_HT_AND_STANDARD_TABLES"
	CompositeMisaligned   ID = "COMPOSITE_INDEX_MISALIGNED"
	CompositePartial      ID = "COMPOSITE_INDEX_PARTIAL_PREFIX"

	SingleRowValuesInsert   ID = "SINGLE_ROW_VALUES_INSERT"
	HtPKNotInInsert         ID = "HT_PK_NOT_IN_INSERT"
	HtWriteAmplification    ID = "HT_WRITE_AMPLIFICATION"
	DynamicIdentifierTarget ID = "DYNAMIC_IDENTIFIER_TARGET"

	CreateIndexRedundant       ID = "CREATE_INDEX_REDUNDANT"
	CreateIndexRedundantPrefix ID = "CREATE_INDEX_REDUNDANT_PREFIX"
	CreateIndexNotUsed         ID = "CREATE_INDEX_NOT_USED_BY_PREDICATES"
	CreateIndexNoPredicateData ID = "CREATE_INDEX_NO_PREDICATE_DATA"
	CreateIndexMisaligned      ID = "CREATE_INDEX_MISALIGNED_COMPOSITE"
	CreateIndexOnAnalyticHt    ID = "CREATE_INDEX_ON_ANALYTIC_WORKLOAD_HT"
	CreateIndexHtWriteCost     ID = "CREATE_INDEX_HT_WRITE_COST"
	CreateIndexLooksGood       ID = "CREATE_INDEX_LOOKS_GOOD"

	StoredProcedureDetected ID = "STORED_PROCEDURE_DETECTED"
	SlowStoredProc          ID = "SLOW_STORED_PROC"
	ProcChildBottleneck     ID = "STORED_PROC_CHILD_BOTTLENECK"
)

type Finding struct {
	Severity     Severity
	Rule         ID
	Table        string
	Message      string
	Suggestion   string
	GeneratedSQL string
	Evidence     map[string]any
}

// Result is everything one analysis run produced: the finding list in
// severity order, the coverage it was derived from, and the single
// highest-ranked finding with its causal explanation.
type Result struct {
	Findings      []Finding
	Coverage      []coverage.Coverage
	Primary       *Finding
	PrimaryReason string
}
