package output

import (
	"encoding/json"
	"io"

	"github.com/jacobarthurs/htscope/internal/action"
	"github.com/jacobarthurs/htscope/internal/rules"
)

// AnalysisReport is the machine-readable envelope for one analysis run.
type AnalysisReport struct {
	SQL           string          `json:"sql"`
	Findings      []jsonFinding   `json:"findings"`
	PrimaryCause  *jsonFinding    `json:"primary_cause,omitempty"`
	PrimaryReason string          `json:"primary_reason,omitempty"`
	Actions       []action.Action `json:"actions,omitempty"`
}

type jsonFinding struct {
	Severity     string         `json:"severity"`
	Rule         rules.ID       `json:"rule"`
	Table        string         `json:"table,omitempty"`
	Message      string         `json:"message"`
	Suggestion   string         `json:"suggestion,omitempty"`
	GeneratedSQL string         `json:"generated_sql,omitempty"`
	Evidence     map[string]any `json:"evidence,omitempty"`
}

func NewAnalysisReport(sql string, result rules.Result, actions []action.Action) AnalysisReport {
	report := AnalysisReport{
		SQL:           sql,
		Findings:      make([]jsonFinding, 0, len(result.Findings)),
		PrimaryReason: result.PrimaryReason,
		Actions:       actions,
	}
	for _, f := range result.Findings {
		report.Findings = append(report.Findings, toJSONFinding(f))
	}
	if result.Primary != nil {
		primary := toJSONFinding(*result.Primary)
		report.PrimaryCause = &primary
	}
	return report
}

func toJSONFinding(f rules.Finding) jsonFinding {
	return jsonFinding{
		Severity:     f.Severity.String(),
		Rule:         f.Rule,
		Table:        f.Table,
		Message:      f.Message,
		Suggestion:   f.Suggestion,
		GeneratedSQL: f.GeneratedSQL,
		Evidence:     f.Evidence,
	}
}

func RenderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
