package classify

import "math"

// Label is a discrete root-cause bucket. The sets for pair, single and
// group classification overlap but are not identical.
type Label string

const (
	LabelQueryChange          Label = "QUERY_CHANGE"
	LabelNoRegression         Label = "NO_REGRESSION"
	LabelCompilation          Label = "COMPILATION"
	LabelPlanCache            Label = "PLAN_CACHE"
	LabelDataVolume           Label = "DATA_VOLUME"
	LabelFdbLatency           Label = "FDB_LATENCY"
	LabelExecutionEnvironment Label = "EXECUTION_ENVIRONMENT"
	LabelJoinSkewOrExplosion  Label = "JOIN_SKEW_OR_EXPLOSION"
	LabelExecutionGeneric     Label = "EXECUTION_GENERIC"
	LabelUnknown              Label = "UNKNOWN"

	LabelOltpOptimal      Label = "OLTP_OPTIMAL"
	LabelCompilationHeavy Label = "COMPILATION_HEAVY"
	LabelHybridAnalytic   Label = "HYBRID_ANALYTIC"
	LabelFdbBottleneck    Label = "FDB_BOTTLENECK"
	LabelMissingIndex     Label = "MISSING_INDEX"
	LabelJoinHeavy        Label = "JOIN_HEAVY"
	LabelOltpSlow         Label = "OLTP_SLOW"
)

// Fixed pair-classification thresholds. Ratios compare the candidate run
// (b) against the baseline run (a).
const (
	noRegressionBand     = 0.20 // total delta within ±20% of baseline
	compileDeltaShare    = 0.50 // compile delta vs baseline total
	execShareSignificant = 0.50
	scanVolumeRatio      = 2.0 // candidate scanned >2x the baseline rows
	scanVolumeEqualLow   = 0.5
	scanVolumeEqualHigh  = 2.0
	fdbGrowthRatio       = 3.0
	fdbExecShare         = 0.30
	execGrowthRatio      = 2.0
	joinHotShare         = 0.50
	execDeltaShare       = 0.50
)

// MetricDelta records one counter's change between two runs. Reported for
// every tracked counter regardless of which label fired, so the verdict is
// always reproducible from the raw numbers.
type MetricDelta struct {
	Name      string
	A         float64
	B         float64
	Delta     float64
	Pct       float64
	Increased bool
}

// PairResult is the verdict for a baseline/candidate execution pair.
type PairResult struct {
	Primary     Label
	Secondary   Label
	Explanation string
	Deltas      []MetricDelta
}

// ClassifyPair diagnoses why the candidate run differs from the baseline.
// An ordered decision list evaluated top to bottom, first match wins; pure
// function of the two feature vectors.
func ClassifyPair(a, b FeatureVector) PairResult {
	res := PairResult{
		Primary: LabelUnknown,
		Deltas:  deltas(a, b),
	}
	if a.SQLHash != "" && b.SQLHash != "" && a.SQLHash != b.SQLHash {
		res.Primary = LabelQueryChange
		res.Explanation = "statement text changed between the two runs; the executions are not comparable"
		return res
	}

	totalDelta := b.TotalMs - a.TotalMs
	if math.Abs(totalDelta) <= noRegressionBand*a.TotalMs {
		res.Primary = LabelNoRegression
		res.Explanation = "total duration is within the noise band of the baseline"
		return res
	}

	compileDelta := b.CompileMs - a.CompileMs
	if compileDelta > compileDeltaShare*math.Max(a.TotalMs, 1) {
		res.Primary = LabelCompilation
		res.Explanation = "compile-phase growth alone accounts for the regression"
		return res
	}

	// From here on a lost plan-cache hit is worth reporting alongside
	// whichever volume or latency verdict fires.
	if a.PlanCacheHit && !b.PlanCacheHit {
		res.Secondary = LabelPlanCache
	}

	if a.ExecShare() > execShareSignificant || b.ExecShare() > execShareSignificant {
		kvRatio := volumeRatio(float64(a.KvRowsScanned), float64(b.KvRowsScanned))
		txnRatio := volumeRatio(float64(a.KvTxn), float64(b.KvTxn))

		if kvRatio > scanVolumeRatio {
			res.Primary = LabelDataVolume
			res.Explanation = "the candidate run scanned substantially more storage rows than the baseline"
			return res
		}

		if equalVolume(kvRatio) && equalVolume(txnRatio) {
			if b.FdbMs > fdbGrowthRatio*math.Max(a.FdbMs, 1) &&
				b.FdbMs > fdbExecShare*math.Max(b.ExecMs, 1) {
				res.Primary = LabelFdbLatency
				res.Explanation = "scan volume is unchanged but storage-layer latency grew and dominates the execute phase"
				return res
			}
			if b.ExecMs > execGrowthRatio*math.Max(a.ExecMs, 1) {
				res.Primary = LabelExecutionEnvironment
				res.Explanation = "same work took longer to execute; likely contention or a slower execution environment"
				return res
			}
		}

		if t := b.hotOperatorTime("HashJoin"); t > joinHotShare*b.ExecMs && b.ExecMs > 0 {
			res.Primary = LabelJoinSkewOrExplosion
			res.Explanation = "a single join operator consumes most of the execute phase"
			return res
		}
	}

	if b.ExecMs-a.ExecMs > execDeltaShare*math.Max(a.TotalMs, 1) {
		res.Primary = LabelExecutionGeneric
		res.Explanation = "execute phase regressed without a distinguishing pattern"
		return res
	}

	res.Explanation = "no tracked counter explains the difference"
	return res
}

// volumeRatio compares candidate volume against baseline volume. Two runs
// that both touched zero storage count as equal volume, not as a shrink.
func volumeRatio(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 1.0
	}
	if a == 0 {
		return math.Inf(1)
	}
	return b / a
}

func equalVolume(ratio float64) bool {
	return ratio >= scanVolumeEqualLow && ratio <= scanVolumeEqualHigh
}

func deltas(a, b FeatureVector) []MetricDelta {
	pairs := []struct {
		name string
		a, b float64
	}{
		{"total_ms", a.TotalMs, b.TotalMs},
		{"exec_ms", a.ExecMs, b.ExecMs},
		{"compile_ms", a.CompileMs, b.CompileMs},
		{"queued_ms", a.QueuedMs, b.QueuedMs},
		{"fdb_total_ms", a.FdbMs, b.FdbMs},
		{"fdb_txn", float64(a.FdbTxn), float64(b.FdbTxn)},
		{"kv_rows_scanned", float64(a.KvRowsScanned), float64(b.KvRowsScanned)},
		{"kv_txn", float64(a.KvTxn), float64(b.KvTxn)},
		{"rows_produced", float64(a.RowsProduced), float64(b.RowsProduced)},
		{"bytes_scanned", float64(a.BytesScanned), float64(b.BytesScanned)},
	}

	out := make([]MetricDelta, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, MetricDelta{
			Name:      p.name,
			A:         p.a,
			B:         p.b,
			Delta:     p.b - p.a,
			Pct:       pctChange(p.a, p.b),
			Increased: p.b > p.a,
		})
	}
	return out
}

func pctChange(a, b float64) float64 {
	if a == 0 {
		if b == 0 {
			return 0
		}
		return 100
	}
	return (b - a) / a * 100
}
