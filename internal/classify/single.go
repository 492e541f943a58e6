package classify

// Single-execution thresholds. These bucket one run without a baseline.
const (
	DefaultSlowThresholdMs = 1000

	oltpFastMs        = 100
	oltpFastKvRows    = 1000
	compileHeavyShare = 0.50
	analyticKvRows    = 100000
	analyticRows      = 10000
	fdbExecRatio      = 0.50
	fdbFloorMs        = 100
	indexScanFloor    = 1000
	indexRowFraction  = 0.10
	oltpSlowKvRows    = 10000
	oltpSlowRows      = 1000
)

// SingleResult is the verdict for one execution in isolation.
type SingleResult struct {
	Label       Label
	Explanation string
	Features    FeatureVector
}

// ClassifySingle buckets one execution by fixed thresholds, top to bottom,
// first match wins. slowThresholdMs ≤ 0 uses the default.
func ClassifySingle(f FeatureVector, slowThresholdMs float64) SingleResult {
	if slowThresholdMs <= 0 {
		slowThresholdMs = DefaultSlowThresholdMs
	}
	res := SingleResult{Features: f}

	// A failed execution's counters describe the failure, not the query.
	if f.ErrorCode != "" {
		res.Label = LabelUnknown
		res.Explanation = "execution failed with error " + f.ErrorCode + "; counters are not comparable"
		return res
	}

	switch {
	case f.TotalMs < oltpFastMs && f.KvRowsScanned < oltpFastKvRows:
		res.Label = LabelOltpOptimal
		res.Explanation = "fast point lookup; nothing to tune"
	case f.TotalMs > 0 && f.CompileMs/f.TotalMs > compileHeavyShare:
		res.Label = LabelCompilationHeavy
		res.Explanation = "compilation dominates total duration"
	case f.KvRowsScanned > analyticKvRows || f.RowsProduced > analyticRows:
		res.Label = LabelHybridAnalytic
		res.Explanation = "analytic-scale scan running against the row/KV engine"
	case f.ExecMs > 0 && f.FdbMs/f.ExecMs > fdbExecRatio && f.FdbMs > fdbFloorMs:
		res.Label = LabelFdbBottleneck
		res.Explanation = "storage-layer latency dominates the execute phase"
	case f.KvRowsScanned > indexScanFloor &&
		float64(f.KvIndexRowsScanned) < indexRowFraction*float64(f.KvRowsScanned):
		res.Label = LabelMissingIndex
		res.Explanation = "most scanned rows bypassed index access"
	case f.hotOperatorTime("HashJoin") > 0:
		res.Label = LabelJoinHeavy
		res.Explanation = "a join operator appears in the hot profile"
	case f.TotalMs >= slowThresholdMs && f.KvRowsScanned < oltpSlowKvRows && f.RowsProduced < oltpSlowRows:
		res.Label = LabelOltpSlow
		res.Explanation = "slow despite a small scan and result; investigate waits and environment"
	default:
		res.Label = LabelUnknown
		res.Explanation = "no threshold matched"
	}
	return res
}
