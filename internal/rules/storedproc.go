package rules

import (
	"fmt"
	"strings"

	"github.com/jacobarthurs/htscope/internal/query"
	"github.com/jacobarthurs/htscope/internal/telemetry"
)

// checkStoredProcedure always flags a CALL as an architecture concern: a
// procedure hides its statements from plan caching, static analysis and
// per-statement monitoring. Runtime telemetry upgrades the verdict and,
// when child executions are supplied, names the dominant bottleneck.
func checkStoredProcedure(ctx *Context) []Finding {
	if ctx.Query.Kind != query.KindCall {
		return nil
	}

	out := []Finding{{
		Severity: High,
		Rule:     StoredProcedureDetected,
		Message:  fmt.Sprintf("stored procedure call (%s); the contained statements bypass statement-level analysis and plan reuse", ctx.Query.ProcName),
		Suggestion: "Unbundle the procedure into direct statements, or capture its child executions for analysis",
	}}

	if ctx.Exec == nil {
		return out
	}

	totalSec := ctx.Exec.TotalMs / 1000
	if totalSec >= SlowProcFloorSec {
		severity := Medium
		switch {
		case totalSec >= SlowProcCriticalSec:
			severity = Critical
		case totalSec >= SlowProcHighSec:
			severity = High
		}
		out = append(out, Finding{
			Severity:   severity,
			Rule:       SlowStoredProc,
			Message:    fmt.Sprintf("procedure ran for %.0f seconds", totalSec),
			Suggestion: "Profile the child statements; one of them carries most of the wall time",
			Evidence:   map[string]any{"total_sec": totalSec},
		})
	}

	if len(ctx.Exec.Children) > 0 {
		out = append(out, classifyChildren(totalSec, ctx.Exec.Children)...)
	}
	return out
}

// classifyChildren buckets child wall time and flags each bucket that
// dominates the parent. Fixed shares, not statistical tests.
func classifyChildren(parentSec float64, children []telemetry.ChildExecution) []Finding {
	if parentSec <= 0 {
		return nil
	}

	var copySec, htDmlSec, queuedSec float64
	var maxThrottle float64
	var spillRemote, spillLocal int64
	for _, c := range children {
		desc := strings.ToLower(c.Description)
		switch {
		case strings.Contains(desc, "copy into"):
			copySec += c.TotalSec
		case c.AccessKvTable && containsAny(desc, "merge", "update", "delete", "insert"):
			htDmlSec += c.TotalSec
		}
		queuedSec += c.QueuedSec
		if c.ThrottleRatio > maxThrottle {
			maxThrottle = c.ThrottleRatio
		}
		spillRemote += c.SpillRemoteBytes
		spillLocal += c.SpillLocalBytes
	}

	var out []Finding
	bottleneck := func(name, msg, suggestion string, severity Severity, evidence map[string]any) {
		evidence["bottleneck"] = name
		out = append(out, Finding{
			Severity:   severity,
			Rule:       ProcChildBottleneck,
			Message:    msg,
			Suggestion: suggestion,
			Evidence:   evidence,
		})
	}

	if copySec >= ChildBucketShare*parentSec {
		bottleneck("COPY",
			fmt.Sprintf("COPY statements account for %.0f of %.0f seconds", copySec, parentSec),
			"Move the loads out of the procedure onto a bulk ingestion path",
			High, map[string]any{"copy_sec": copySec})
	}
	if htDmlSec >= ChildBucketShare*parentSec {
		bottleneck("HT_DML",
			fmt.Sprintf("row-engine DML accounts for %.0f of %.0f seconds", htDmlSec, parentSec),
			"Batch the DML and check index write amplification on the target tables",
			High, map[string]any{"ht_dml_sec": htDmlSec})
	}
	if queuedSec >= ChildQueueShare*parentSec {
		bottleneck("QUEUING",
			fmt.Sprintf("children spent %.0f seconds queued for resources", queuedSec),
			"Spread the procedure's statements across warehouses or off the contended window",
			Medium, map[string]any{"queued_sec": queuedSec})
	}
	if maxThrottle >= ThrottleRatioWarn {
		severity := Medium
		if maxThrottle >= ThrottleRatioHigh {
			severity = High
		}
		bottleneck("STORAGE_THROTTLING",
			fmt.Sprintf("a child spent %.0f%% of its time storage-throttled", maxThrottle*100),
			"Reduce write concurrency against the hybrid tables, or spread writes across the key space",
			severity, map[string]any{"max_throttle_ratio": maxThrottle})
	}
	if spillRemote >= SpillRemoteBudget || spillLocal >= SpillLocalBudget {
		bottleneck("SPILL",
			fmt.Sprintf("children spilled %d bytes locally and %d bytes to remote storage", spillLocal, spillRemote),
			"Shrink the working set per statement or size the warehouse for the sort and join memory",
			High, map[string]any{"spill_local_bytes": spillLocal, "spill_remote_bytes": spillRemote})
	}
	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
