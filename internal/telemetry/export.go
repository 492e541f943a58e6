package telemetry

import (
	"encoding/json"
	"fmt"

	"github.com/jacobarthurs/htscope/internal/metadata"
)

// Export is the offline capture format: one statement plus its runtime
// counters and whatever schema metadata the capturing side could confirm.
// Produced by a monitoring pipeline or assembled by hand; the analyzer
// never talks to the warehouse itself.
type Export struct {
	SQL       string        `json:"sql,omitempty"`
	Execution Execution     `json:"execution"`
	Tables    []ExportTable `json:"tables,omitempty"`
}

type ExportTable struct {
	Name       string            `json:"name"`
	IsHybrid   bool              `json:"is_hybrid,omitempty"`
	PrimaryKey []string          `json:"primary_key,omitempty"`
	Indexes    [][]string        `json:"indexes,omitempty"`
	Columns    map[string]string `json:"columns,omitempty"`
}

// ParseExports accepts either a single export object or an array of them.
func ParseExports(data []byte) ([]Export, error) {
	var exports []Export
	if err := json.Unmarshal(data, &exports); err == nil {
		if len(exports) == 0 {
			return nil, fmt.Errorf("empty export array")
		}
		return exports, nil
	}

	var single Export
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("invalid export JSON: %w", err)
	}
	return []Export{single}, nil
}

// Metadata converts the export's confirmed table descriptions into a
// metadata set. Tables listed in an export were observed by the capturing
// side, so their index inventory is authoritative even when empty.
func (e *Export) Metadata() metadata.Set {
	if len(e.Tables) == 0 {
		return nil
	}
	set := make(metadata.Set, len(e.Tables))
	for _, t := range e.Tables {
		set[t.Name] = metadata.Table{
			IsHybrid:         t.IsHybrid,
			PrimaryKey:       t.PrimaryKey,
			SecondaryIndexes: t.Indexes,
			Columns:          t.Columns,
			IndexProvenance:  metadata.ProvenanceConfirmed,
		}
	}
	return set
}
