package metadata

import "strings"

// Provenance records how index/PK metadata was obtained. Claiming "no
// indexes exist" is only allowed when a source confirmed it; an omission is
// not a confirmation.
type Provenance int

const (
	ProvenanceUnknown Provenance = iota
	ProvenanceConfirmed
)

func (p Provenance) String() string {
	if p == ProvenanceConfirmed {
		return "confirmed"
	}
	return "unknown"
}

// Table describes one table's physical layout as supplied by the caller.
// Read-only input to the analysis.
type Table struct {
	IsHybrid         bool
	PrimaryKey       []string
	SecondaryIndexes [][]string
	Columns          map[string]string
	IndexProvenance  Provenance
}

// Set is keyed by the table name used in the query (case-insensitive
// lookup, schema-qualified names tried longest first).
type Set map[string]Table

func (s Set) Lookup(name string) (Table, bool) {
	if t, ok := s[name]; ok {
		return t, true
	}
	for k, t := range s {
		if strings.EqualFold(k, name) {
			return t, true
		}
		// match on unqualified name
		if idx := strings.LastIndex(k, "."); idx >= 0 && strings.EqualFold(k[idx+1:], name) {
			return t, true
		}
	}
	return Table{}, false
}

// Local returns conservative defaults for tables with no metadata source:
// not hybrid, no confirmed PK or indexes, provenance unknown. Downstream
// rules must hedge rather than claim absence.
func Local(tables []string) Set {
	s := make(Set, len(tables))
	for _, t := range tables {
		s[t] = Table{IndexProvenance: ProvenanceUnknown}
	}
	return s
}
