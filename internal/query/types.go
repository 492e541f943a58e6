package query

import (
	"fmt"
	"strings"
)

// StatementKind is the lexical class of a statement. It is detected before
// AST parsing so that statements the AST grammar cannot represent (MERGE,
// CALL, COPY) still get a usable model.
type StatementKind int

const (
	KindUnknown StatementKind = iota
	KindSelect
	KindInsert
	KindUpdate
	KindDelete
	KindMerge
	KindCall
	KindCopy
	KindCreateIndex
	KindDDL
)

func (k StatementKind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindMerge:
		return "merge"
	case KindCall:
		return "call"
	case KindCopy:
		return "copy"
	case KindCreateIndex:
		return "create_index"
	case KindDDL:
		return "ddl"
	default:
		return "unknown"
	}
}

// IsDML reports whether the statement modifies rows.
func (k StatementKind) IsDML() bool {
	switch k {
	case KindInsert, KindUpdate, KindDelete, KindMerge, KindCopy:
		return true
	}
	return false
}

type Operator int

const (
	OpEq Operator = iota
	OpRange
	OpIn
	OpIs
	OpExists
)

func (o Operator) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpRange:
		return "range"
	case OpIn:
		return "in"
	case OpIs:
		return "is"
	case OpExists:
		return "exists"
	default:
		return "unknown"
	}
}

// IsEquality reports whether the operator constrains a column to discrete
// values. IN behaves like equality for index-prefix purposes.
func (o Operator) IsEquality() bool {
	return o == OpEq || o == OpIn
}

// PredicateSource records which clause a predicate came from, so consumers
// can exclude CTE-local or join-only predicates from index targeting.
type PredicateSource int

const (
	SourceWhere PredicateSource = iota
	SourceJoin
	SourceCTE
)

func (s PredicateSource) String() string {
	switch s {
	case SourceJoin:
		return "join_on"
	case SourceCTE:
		return "cte"
	default:
		return "where"
	}
}

type Predicate struct {
	Left   string
	Right  string
	Op     Operator
	Source PredicateSource
	Raw    string
}

// Column returns the unqualified, unquoted column name of the left operand.
func (p Predicate) Column() string {
	col := p.Left
	if idx := strings.LastIndex(col, "."); idx >= 0 {
		col = col[idx+1:]
	}
	return strings.Trim(col, `"`)
}

type TableRef struct {
	Schema string
	Name   string
	Alias  string
}

func (t TableRef) FQN() string {
	if t.Schema != "" {
		return t.Schema + "." + t.Name
	}
	return t.Name
}

type Join struct {
	Kind  string
	On    string
	HasOn bool
}

type OrderColumn struct {
	Column string
	Desc   bool
}

// ParsedQuery is the structured model of one statement. It is built once by
// Parse and never mutated afterwards.
type ParsedQuery struct {
	Raw  string
	Kind StatementKind

	Tables     []TableRef
	Predicates []Predicate
	Joins      []Join
	OrderBy    []OrderColumn
	Projection []string
	CTENames   []string

	Limit    int
	HasLimit bool

	// Insert shape
	InsertColumns []string
	InsertRows    int

	// CALL target, when Kind is KindCall
	ProcName string

	HasWhere    bool
	HasDistinct bool
	HasExists   bool
	HasIn       bool
	HasHaving   bool
	HasQualify  bool
}

// IsCTE reports whether name refers to a CTE rather than a real table.
func (pq *ParsedQuery) IsCTE(name string) bool {
	short := name
	if idx := strings.LastIndex(short, "."); idx >= 0 {
		short = short[idx+1:]
	}
	short = strings.Trim(short, `"`)
	for _, cte := range pq.CTENames {
		if strings.EqualFold(cte, short) {
			return true
		}
	}
	return false
}

// EqualityColumns returns the unqualified columns constrained by equality in
// WHERE or JOIN ON clauses, in appearance order. CTE-local predicates are
// excluded.
func (pq *ParsedQuery) EqualityColumns() []string {
	var cols []string
	seen := make(map[string]bool)
	for _, p := range pq.Predicates {
		if p.Source == SourceCTE || !p.Op.IsEquality() {
			continue
		}
		col := p.Column()
		if col == "" || seen[strings.ToLower(col)] {
			continue
		}
		seen[strings.ToLower(col)] = true
		cols = append(cols, col)
	}
	return cols
}

// HasNarrowing reports whether anything constrains the result set: a WHERE
// with predicates, IN/EXISTS, HAVING, or QUALIFY.
func (pq *ParsedQuery) HasNarrowing() bool {
	if pq.HasWhere && len(pq.Predicates) > 0 {
		return true
	}
	return pq.HasExists || pq.HasIn || pq.HasHaving || pq.HasQualify
}

// ParseError marks a statement whose SQL could not be parsed. It is scoped
// to the single statement; batch callers skip and continue.
type ParseError struct {
	SQL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing statement: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
