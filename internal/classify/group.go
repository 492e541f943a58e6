package classify

import "github.com/jacobarthurs/htscope/internal/telemetry"

// Join-row explosion: the slow cohort produces far more rows than it
// scans, which no index can fix.
const joinExplosionRatio = 10.0

// GroupResult diagnoses a fast cohort against a slow cohort of executions
// of the same statement, using averaged feature vectors.
type GroupResult struct {
	Primary       Label
	Secondary     Label
	Explanation   string
	Deltas        []MetricDelta
	FastAvg       FeatureVector
	SlowAvg       FeatureVector
	FastCount     int
	SlowCount     int
	JoinExplosion bool
}

// ClassifyGroup averages each cohort and runs the pair decision list on
// the two averages. Join-row explosion in the slow cohort overrides the
// pair verdict since it carries its own remediation constraints.
func ClassifyGroup(fast, slow []telemetry.Execution) GroupResult {
	fastAvg := average(fast)
	slowAvg := average(slow)

	pair := ClassifyPair(fastAvg, slowAvg)
	res := GroupResult{
		Primary:     pair.Primary,
		Secondary:   pair.Secondary,
		Explanation: pair.Explanation,
		Deltas:      pair.Deltas,
		FastAvg:     fastAvg,
		SlowAvg:     slowAvg,
		FastCount:   len(fast),
		SlowCount:   len(slow),
	}

	if slowAvg.KvRowsScanned > 0 &&
		float64(slowAvg.RowsProduced) > joinExplosionRatio*float64(slowAvg.KvRowsScanned) {
		res.JoinExplosion = true
		res.Primary = LabelJoinSkewOrExplosion
		res.Explanation = "the slow cohort produces an order of magnitude more rows than it scans; a join is multiplying rows"
	}
	return res
}

// Batch buckets many unrelated executions individually and reports the
// dominant cause among the slow ones.
type BatchResult struct {
	Results   []SingleResult
	Counts    map[Label]int
	Dominant  Label
	SlowCount int
}

func ClassifyBatch(execs []telemetry.Execution, slowThresholdMs float64) BatchResult {
	if slowThresholdMs <= 0 {
		slowThresholdMs = DefaultSlowThresholdMs
	}
	res := BatchResult{
		Counts:   make(map[Label]int),
		Dominant: LabelUnknown,
	}

	best := 0
	for i := range execs {
		single := ClassifySingle(Extract(&execs[i]), slowThresholdMs)
		res.Results = append(res.Results, single)
		if execs[i].TotalMs < slowThresholdMs {
			continue
		}
		res.SlowCount++
		res.Counts[single.Label]++
		// Ties keep the earlier winner so the verdict is order-stable.
		if res.Counts[single.Label] > best {
			best = res.Counts[single.Label]
			res.Dominant = single.Label
		}
	}
	return res
}

func average(execs []telemetry.Execution) FeatureVector {
	if len(execs) == 0 {
		return FeatureVector{}
	}

	var avg FeatureVector
	var rows, bytes, kvRows, kvIndexRows, kvTxn, fdbTxn float64
	hot := make(map[string]float64)
	var hotOrder []string
	for i := range execs {
		f := Extract(&execs[i])
		avg.TotalMs += f.TotalMs
		avg.CompileMs += f.CompileMs
		avg.ExecMs += f.ExecMs
		avg.QueuedMs += f.QueuedMs
		avg.FdbMs += f.FdbMs
		rows += float64(f.RowsProduced)
		bytes += float64(f.BytesScanned)
		kvRows += float64(f.KvRowsScanned)
		kvIndexRows += float64(f.KvIndexRowsScanned)
		kvTxn += float64(f.KvTxn)
		fdbTxn += float64(f.FdbTxn)
		for _, op := range f.HotOperators {
			if _, seen := hot[op.Name]; !seen {
				hotOrder = append(hotOrder, op.Name)
			}
			hot[op.Name] += op.TimeMs
		}
	}

	n := float64(len(execs))
	avg.TotalMs /= n
	avg.CompileMs /= n
	avg.ExecMs /= n
	avg.QueuedMs /= n
	avg.FdbMs /= n
	avg.RowsProduced = int64(rows / n)
	avg.BytesScanned = int64(bytes / n)
	avg.KvRowsScanned = int64(kvRows / n)
	avg.KvIndexRowsScanned = int64(kvIndexRows / n)
	avg.KvTxn = int64(kvTxn / n)
	avg.FdbTxn = int64(fdbTxn / n)
	for _, name := range hotOrder {
		avg.HotOperators = append(avg.HotOperators, telemetry.HotOperator{Name: name, TimeMs: hot[name] / n})
	}
	avg.SQLHash = execs[0].SQLHash
	avg.PlanCacheHit = execs[0].PlanCacheHit
	return avg
}
