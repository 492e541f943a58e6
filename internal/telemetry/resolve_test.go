package telemetry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectType_JSONExtension(t *testing.T) {
	result := detectType([]byte("anything"), "capture.json")
	if result != "export" {
		t.Errorf("got %q, want export", result)
	}
}

func TestDetectType_SQLExtension(t *testing.T) {
	result := detectType([]byte("anything"), "query.sql")
	if result != "sql" {
		t.Errorf("got %q, want sql", result)
	}
}

func TestDetectType_JSONContent(t *testing.T) {
	data := []byte(`{"sql": "SELECT 1", "execution": {}}`)
	result := detectType(data, "")
	if result != "export" {
		t.Errorf("got %q, want export", result)
	}
}

func TestDetectType_SQLContent(t *testing.T) {
	data := []byte("SELECT * FROM orders WHERE id = 1")
	result := detectType(data, "")
	if result != "sql" {
		t.Errorf("got %q, want sql", result)
	}
}

func TestDetectType_ExtensionOverridesContent(t *testing.T) {
	data := []byte(`{"sql": "SELECT 1"}`)
	result := detectType(data, "queries.sql")
	if result != "sql" {
		t.Errorf("got %q, want sql (extension takes priority)", result)
	}
}

func TestDetectType_MergeAndCall(t *testing.T) {
	for _, sql := range []string{"MERGE INTO t USING s ON t.id = s.id", "CALL proc(1)"} {
		if got := detectType([]byte(sql), ""); got != "sql" {
			t.Errorf("detectType(%q) = %q, want sql", sql, got)
		}
	}
}

func TestResolve_ExportFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "capture.json")
	content := []byte(`{
		"sql": "SELECT * FROM orders WHERE customer_id = 42",
		"execution": {
			"total_ms": 1250.5,
			"compile_ms": 40,
			"exec_ms": 1100,
			"rows_produced": 17,
			"kv_rows_scanned": 250000
		},
		"tables": [{
			"name": "orders",
			"is_hybrid": true,
			"primary_key": ["id"],
			"indexes": [["customer_id"]]
		}]
	}`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	in, err := Resolve(path, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Export == nil {
		t.Fatal("expected an export")
	}
	if in.SQL != "SELECT * FROM orders WHERE customer_id = 42" {
		t.Errorf("SQL = %q", in.SQL)
	}
	if in.Export.Execution.KvRowsScanned != 250000 {
		t.Errorf("KvRowsScanned = %d", in.Export.Execution.KvRowsScanned)
	}

	meta := in.Export.Metadata()
	info, ok := meta.Lookup("orders")
	if !ok || !info.IsHybrid || len(info.SecondaryIndexes) != 1 {
		t.Errorf("metadata = %+v, ok = %v", info, ok)
	}
}

func TestResolve_SQLFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "query.sql")
	if err := os.WriteFile(path, []byte("SELECT 1\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	in, err := Resolve(path, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Export != nil {
		t.Error("bare SQL should not produce an export")
	}
	if in.SQL != "SELECT 1" {
		t.Errorf("SQL = %q", in.SQL)
	}
}

func TestResolve_MissingFile(t *testing.T) {
	_, err := Resolve("/nonexistent/capture.json", "")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestResolve_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := Resolve(path, "")
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseExports_Array(t *testing.T) {
	data := []byte(`[
		{"sql": "SELECT 1", "execution": {"total_ms": 10}},
		{"sql": "SELECT 2", "execution": {"total_ms": 20}}
	]`)
	exports, err := ParseExports(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exports) != 2 {
		t.Fatalf("got %d exports, want 2", len(exports))
	}
	if exports[1].Execution.TotalMs != 20 {
		t.Errorf("second TotalMs = %v", exports[1].Execution.TotalMs)
	}
}

func TestParseExports_EmptyArray(t *testing.T) {
	_, err := ParseExports([]byte("[]"))
	if err == nil {
		t.Fatal("expected error for empty array")
	}
}

func TestExecution_HasRuntime(t *testing.T) {
	var none *Execution
	if none.HasRuntime() {
		t.Error("nil execution reported runtime")
	}
	if (&Execution{}).HasRuntime() {
		t.Error("zero execution reported runtime")
	}
	if !(&Execution{TotalMs: 5}).HasRuntime() {
		t.Error("execution with counters reported no runtime")
	}
}
