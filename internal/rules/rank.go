package rules

import (
	"fmt"

	"github.com/jacobarthurs/htscope/internal/telemetry"
)

// rankPrimary picks the single finding most likely to explain the
// statement's cost: severity base points plus fixed bonuses for the
// patterns that dominate real incidents. Ties keep the earliest finding,
// so the verdict is stable across runs.
func rankPrimary(findings []Finding, exec *telemetry.Execution, w RankWeights) (*Finding, string) {
	if len(findings) == 0 {
		return nil, ""
	}

	best := -1
	bestIdx := 0
	var bestReason string
	for i := range findings {
		score, reason := scoreFinding(&findings[i], exec, w)
		if score > best {
			best = score
			bestIdx = i
			bestReason = reason
		}
	}

	primary := findings[bestIdx]
	return &primary, bestReason
}

func scoreFinding(f *Finding, exec *telemetry.Execution, w RankWeights) (int, string) {
	score := severityBase(f.Severity, w)
	reason := fmt.Sprintf("%s severity", f.Severity)

	switch f.Rule {
	case HtWithoutIndexes, MultipleHtNoIndexes:
		score += w.HtWithoutIndexes
		reason = "hybrid table with zero index coverage; every read is a full scan"
	case HtIndexesNotUsed:
		score += w.HtIndexesNotUsed
		reason = "indexes exist but the predicates cannot use them"
	}

	if !exec.HasRuntime() {
		return score, reason
	}

	if f.Rule == NoIndexCoverage && exec.AccessKvTable {
		score += w.KvScanNoCoverage
		reason = "the row/KV engine was accessed with no usable index"
	}
	if exec.SpillRemoteBytes > 0 {
		score += w.SpillRemote
		reason = "confirmed spill to remote storage"
	} else if exec.SpillLocalBytes > 0 {
		score += w.SpillLocal
	}
	if exec.ThrottleMs > 5000 && exec.RowsProduced < 100 {
		score += w.ThrottledTinyResult
		reason = "heavily throttled for a tiny result"
	}
	if exec.BytesScanned > 1_000_000_000 && exec.RowsProduced < 1000 &&
		exec.RowsProduced > 0 && exec.BytesScanned/exec.RowsProduced > 1_000_000 {
		score += w.LargeScanTinyResult
		reason = "gigabytes scanned per returned row"
	}
	if f.Rule == OrderByNoLimit && exec.RowsProduced > OrderByNoLimitBigResult {
		score += w.UnboundedSort
	}
	return score, reason
}

func severityBase(s Severity, w RankWeights) int {
	switch s {
	case Critical:
		return w.SeverityCritical
	case High:
		return w.SeverityHigh
	case Medium:
		return w.SeverityMedium
	case Low:
		return w.SeverityLow
	default:
		return 0
	}
}
