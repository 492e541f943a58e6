package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// Text heuristics over the masked statement. These catch shapes the
// structured walk cannot see, and masking guarantees they never match
// inside string literals or comments.

const scalarFuncNames = `UPPER|LOWER|DATE|CAST|CONVERT|COALESCE|NVL|IFNULL|SUBSTR|SUBSTRING|TO_CHAR|TO_VARCHAR|TO_DATE|TO_TIMESTAMP|TRIM|LTRIM|RTRIM`

var (
	// Function wrapping the column side of a comparison. Only the left
	// side matters: a function over the literal side is still sargable.
	// The argument is captured so the match can be confirmed to wrap a
	// column rather than a literal.
	funcLeftRe = regexp.MustCompile(`(?i)\b(` + scalarFuncNames + `)\s*\(([^()]*)\)\s*(=|<>|!=|>=|<=|>|<|\bLIKE\b|\bIN\b)`)

	leadingWildcardRe = regexp.MustCompile(`(?i)\bLIKE\s+'%`)

	// Arithmetic on the column side of a comparison.
	arithmeticLeftRe = regexp.MustCompile(`(?i)\b[a-z_][\w.]*\s*[+\-*/]\s*[\w.']+\s*(=|<>|!=|>=|<=|>|<)`)

	caseTransformRe = regexp.MustCompile(`(?i)\b(UPPER|LOWER)\s*\(`)
)

func checkNonSargablePredicates(ctx *Context) []Finding {
	var out []Finding

	for _, m := range funcLeftRe.FindAllStringSubmatch(ctx.MaskedSQL, -1) {
		if !wrapsColumn(m[2]) {
			continue
		}
		out = append(out, Finding{
			Severity:   High,
			Rule:       NonSargablePredicates,
			Message:    fmt.Sprintf("predicate wraps the column in a function (%s); no index can satisfy it", strings.TrimSpace(m[0])),
			Suggestion: "Move the transformation to the literal side, or store a computed column and index that",
		})
		break
	}

	// Wildcard check runs on the raw text: masking blanks literal bodies.
	if leadingWildcardRe.MatchString(ctx.Query.Raw) {
		out = append(out, Finding{
			Severity:   High,
			Rule:       NonSargablePredicates,
			Message:    "LIKE pattern starts with a wildcard; the scan cannot seek",
			Suggestion: "Anchor the pattern with a literal prefix, or use a dedicated search index",
		})
	}

	if m := arithmeticLeftRe.FindString(ctx.MaskedSQL); m != "" {
		out = append(out, Finding{
			Severity:   High,
			Rule:       NonSargablePredicates,
			Message:    fmt.Sprintf("arithmetic on the column side of a comparison (%s) defeats index use", strings.TrimSpace(m)),
			Suggestion: "Apply the arithmetic to the literal side so the column is compared bare",
		})
	}
	return out
}

// wrapsColumn reports whether a function argument from the masked text
// starts with a column reference. Masking empties literal bodies, so an
// argument opening with a quote or a digit wraps a literal, not a column;
// UPPER('x') = col stays sargable while UPPER(col) = 'x' does not.
func wrapsColumn(arg string) bool {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return false
	}
	c := arg[0]
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

var joinOnClauseRe = regexp.MustCompile(`(?is)\bON\b(.*?)(\bWHERE\b|\bJOIN\b|\bGROUP\b|\bORDER\b|\bLIMIT\b|\bHAVING\b|$)`)
var funcCallRe = regexp.MustCompile(`(?i)\b(` + scalarFuncNames + `)\s*\(`)

// checkFunctionInJoin flags function calls inside join conditions. A
// per-row transformation in the ON clause runs for every candidate pair.
func checkFunctionInJoin(ctx *Context) []Finding {
	if len(ctx.Query.Joins) == 0 {
		return nil
	}
	for _, m := range joinOnClauseRe.FindAllStringSubmatch(ctx.MaskedSQL, -1) {
		if funcCallRe.MatchString(m[1]) {
			return []Finding{{
				Severity:   Critical,
				Rule:       FunctionInJoin,
				Message:    "join condition applies a function per row; the join cannot use indexes and re-computes for every pair",
				Suggestion: "Normalize the joined columns at write time so the join compares stored values",
			}}
		}
	}
	return nil
}

// checkCaseTransforms counts UPPER/LOWER calls. A handful suggests
// case-insensitive matching bolted on; a pile suggests a data-quality
// problem upstream.
func checkCaseTransforms(ctx *Context) []Finding {
	n := len(caseTransformRe.FindAllString(ctx.MaskedSQL, -1))
	if n < CaseTransformWarnCount {
		return nil
	}
	severity := Medium
	if n >= CaseTransformHighCount {
		severity = High
	}
	return []Finding{{
		Severity:   severity,
		Rule:       ExcessiveCaseTransform,
		Message:    fmt.Sprintf("%d case transformations in one statement; the data arrives in inconsistent case", n),
		Suggestion: "Normalize case at ingestion and drop the per-query transforms",
		Evidence:   map[string]any{"transform_count": n},
	}}
}
