package telemetry

// Execution captures the runtime counters recorded for one statement
// execution. All fields are optional in the capture format; absent counters
// unmarshal to zero and downstream consumers treat zero as "not recorded".
type Execution struct {
	// Identity
	SQLHash      string `json:"sql_hash,omitempty"`
	PlanCacheHit bool   `json:"plan_cache_hit,omitempty"`

	// Failure outcome, when the execution did not complete
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	// Wall-clock phases, milliseconds
	TotalMs    float64 `json:"total_ms,omitempty"`
	CompileMs  float64 `json:"compile_ms,omitempty"`
	ExecMs     float64 `json:"exec_ms,omitempty"`
	TransferMs float64 `json:"transfer_ms,omitempty"`
	QueuedMs   float64 `json:"queued_ms,omitempty"`

	// Volume
	RowsProduced int64 `json:"rows_produced,omitempty"`
	BytesScanned int64 `json:"bytes_scanned,omitempty"`

	// Row/KV storage layer
	KvRowsScanned      int64   `json:"kv_rows_scanned,omitempty"`
	KvIndexRowsScanned int64   `json:"kv_index_rows_scanned,omitempty"`
	KvTxn              int64   `json:"kv_txn,omitempty"`
	FdbTotalMs         float64 `json:"fdb_total_ms,omitempty"`
	FdbTxn             int64   `json:"fdb_txn,omitempty"`
	ThrottleMs         float64 `json:"throttle_ms,omitempty"`
	AccessKvTable      bool    `json:"access_kv_table,omitempty"`

	// Spill
	SpillLocalBytes  int64 `json:"spill_local_bytes,omitempty"`
	SpillRemoteBytes int64 `json:"spill_remote_bytes,omitempty"`

	// DML effect
	RowsInserted int64 `json:"rows_inserted,omitempty"`
	RowsUpdated  int64 `json:"rows_updated,omitempty"`
	RowsDeleted  int64 `json:"rows_deleted,omitempty"`

	// Most expensive operators in the execution profile, largest first.
	HotOperators []HotOperator `json:"hot_operators,omitempty"`

	// Child statements spawned by a stored procedure call.
	Children []ChildExecution `json:"children,omitempty"`
}

type HotOperator struct {
	Name   string  `json:"name"`
	TimeMs float64 `json:"time_ms"`
}

// ChildExecution summarizes one statement run inside a stored procedure.
type ChildExecution struct {
	Description      string  `json:"description,omitempty"`
	TotalSec         float64 `json:"total_sec,omitempty"`
	QueuedSec        float64 `json:"queued_sec,omitempty"`
	ThrottleRatio    float64 `json:"throttle_ratio,omitempty"`
	SpillLocalBytes  int64   `json:"spill_local_bytes,omitempty"`
	SpillRemoteBytes int64   `json:"spill_remote_bytes,omitempty"`
	AccessKvTable    bool    `json:"access_kv_table,omitempty"`
	RowsChanged      int64   `json:"rows_changed,omitempty"`
}

// HasRuntime reports whether any runtime counter was recorded at all.
// Rules hedge differently when a statement was never actually executed.
func (e *Execution) HasRuntime() bool {
	if e == nil {
		return false
	}
	return e.TotalMs > 0 || e.RowsProduced > 0 || e.BytesScanned > 0 ||
		e.KvRowsScanned > 0 || e.ExecMs > 0
}

// RowsChanged is the total DML effect across insert, update and delete.
func (e *Execution) RowsChanged() int64 {
	if e == nil {
		return 0
	}
	return e.RowsInserted + e.RowsUpdated + e.RowsDeleted
}
