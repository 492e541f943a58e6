package classify

import "github.com/jacobarthurs/htscope/internal/telemetry"

// FeatureVector is the flattened numeric summary of one execution that the
// classifiers consume. Extraction is total: missing counters become zero,
// so every vector is comparable to every other.
type FeatureVector struct {
	SQLHash      string
	PlanCacheHit bool
	ErrorCode    string

	TotalMs   float64
	CompileMs float64
	ExecMs    float64
	QueuedMs  float64
	FdbMs     float64

	RowsProduced       int64
	BytesScanned       int64
	KvRowsScanned      int64
	KvIndexRowsScanned int64
	KvTxn              int64
	FdbTxn             int64

	HotOperators []telemetry.HotOperator
}

func Extract(e *telemetry.Execution) FeatureVector {
	if e == nil {
		return FeatureVector{}
	}
	return FeatureVector{
		SQLHash:            e.SQLHash,
		PlanCacheHit:       e.PlanCacheHit,
		ErrorCode:          e.ErrorCode,
		TotalMs:            e.TotalMs,
		CompileMs:          e.CompileMs,
		ExecMs:             e.ExecMs,
		QueuedMs:           e.QueuedMs,
		FdbMs:              e.FdbTotalMs,
		RowsProduced:       e.RowsProduced,
		BytesScanned:       e.BytesScanned,
		KvRowsScanned:      e.KvRowsScanned,
		KvIndexRowsScanned: e.KvIndexRowsScanned,
		KvTxn:              e.KvTxn,
		FdbTxn:             e.FdbTxn,
		HotOperators:       e.HotOperators,
	}
}

// ExecShare is the execute-phase fraction of total wall time.
func (f FeatureVector) ExecShare() float64 {
	if f.TotalMs <= 0 {
		return 0
	}
	return f.ExecMs / f.TotalMs
}

// hotOperatorTime returns the profile time of the named operator, 0 when
// the operator does not appear in the hot list.
func (f FeatureVector) hotOperatorTime(name string) float64 {
	for _, op := range f.HotOperators {
		if op.Name == name {
			return op.TimeMs
		}
	}
	return 0
}
