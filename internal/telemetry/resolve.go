package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Input is a resolved analysis input: either a bare SQL statement, or a
// full export carrying the statement plus runtime counters and metadata.
type Input struct {
	SQL    string
	Export *Export
}

// Resolve reads an input argument ("" for interactive, "-" for stdin,
// anything else a file path) and decides whether it is raw SQL or an
// execution export. label prefixes prompts and errors when resolving more
// than one input, e.g. "baseline " / "candidate ".
func Resolve(input string, label string) (Input, error) {
	data, err := readInput(input, label)
	if err != nil {
		return Input{}, err
	}

	switch detectType(data, input) {
	case "export":
		exports, err := ParseExports(data)
		if err != nil {
			return Input{}, err
		}
		exp := exports[0]
		return Input{SQL: exp.SQL, Export: &exp}, nil
	case "sql":
		return Input{SQL: strings.TrimSpace(string(data))}, nil
	default:
		return Input{}, fmt.Errorf("unable to detect %sinput type: expected an execution export (JSON) or a SQL statement", label)
	}
}

// ResolveAll reads an input that may hold many exports, for batch analysis.
func ResolveAll(input string, label string) ([]Export, error) {
	data, err := readInput(input, label)
	if err != nil {
		return nil, err
	}
	if detectType(data, input) != "export" {
		return nil, fmt.Errorf("%sinput is not an execution export: batch analysis needs a JSON export array", label)
	}
	return ParseExports(data)
}

func readInput(input string, label string) ([]byte, error) {
	switch input {
	case "":
		return readInteractive(label)
	case "-":
		return io.ReadAll(os.Stdin)
	default:
		return os.ReadFile(input)
	}
}

func readInteractive(label string) ([]byte, error) {
	fmt.Printf("Paste %sexecution export JSON or SQL statement", label)
	if runtime.GOOS == "windows" {
		fmt.Print(" (Ctrl+Z, Enter to submit)\n")
	} else {
		fmt.Print(" (Ctrl+D to submit)\n")
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(data))

	if (strings.HasPrefix(trimmed, "[") ||
		strings.HasPrefix(trimmed, "{")) &&
		!json.Valid(data) {
		return nil, fmt.Errorf("input appears truncated; for large inputs use: htscope analyze <file>")
	}

	return data, nil
}

func detectType(data []byte, filename string) string {
	if strings.HasSuffix(filename, ".json") {
		return "export"
	}
	if strings.HasSuffix(filename, ".sql") {
		return "sql"
	}

	trimmed := strings.TrimSpace(string(data))

	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		return "export"
	}

	upper := strings.ToUpper(trimmed)
	for _, kw := range []string{"SELECT", "WITH", "INSERT", "UPDATE", "DELETE", "MERGE", "CALL", "COPY", "CREATE"} {
		if strings.HasPrefix(upper, kw) {
			return "sql"
		}
	}

	return "unknown"
}
