package query

import (
	"regexp"
	"strings"
)

// MaskLiterals replaces string-literal bodies and comments with spaces so
// lexical scans cannot match inside them. Output length equals input length,
// which keeps byte offsets stable for callers that slice the original.
func MaskLiterals(sql string) string {
	out := []byte(sql)
	n := len(out)
	i := 0
	for i < n {
		switch {
		case out[i] == '\'':
			i++
			for i < n {
				if out[i] == '\'' {
					if i+1 < n && out[i+1] == '\'' {
						out[i], out[i+1] = ' ', ' '
						i += 2
						continue
					}
					break
				}
				out[i] = ' '
				i++
			}
			i++
		case out[i] == '-' && i+1 < n && out[i+1] == '-':
			for i < n && out[i] != '\n' {
				out[i] = ' '
				i++
			}
		case out[i] == '/' && i+1 < n && out[i+1] == '*':
			for i < n {
				if out[i] == '*' && i+1 < n && out[i+1] == '/' {
					out[i], out[i+1] = ' ', ' '
					i += 2
					break
				}
				out[i] = ' '
				i++
			}
		default:
			i++
		}
	}
	return string(out)
}

var (
	fetchFirstRe = regexp.MustCompile(`(?i)\bFETCH\s+(?:FIRST|NEXT)\s+(\d+)\s+ROWS?\s+ONLY\b`)
	qualifyRe    = regexp.MustCompile(`(?i)\bQUALIFY\b`)
	whereWordRe  = regexp.MustCompile(`(?i)\bWHERE\b`)
	compareOpRe  = regexp.MustCompile(`=|<|>|\bIN\b|\bLIKE\b|\bBETWEEN\b|\bIS\b`)
)

// Normalize rewrites dialect constructs the AST grammar does not accept:
// FETCH FIRST becomes LIMIT, QUALIFY clauses are cut out (the flag is
// reported to the caller), and double-quoted identifiers lose their quotes.
// Masking drives the edits so quoted string content is never touched.
func Normalize(sql string) (normalized string, hadQualify bool) {
	masked := MaskLiterals(sql)

	// FETCH FIRST n ROWS ONLY -> LIMIT n
	for {
		loc := fetchFirstRe.FindStringSubmatchIndex(masked)
		if loc == nil {
			break
		}
		count := masked[loc[2]:loc[3]]
		sql = sql[:loc[0]] + "LIMIT " + count + sql[loc[1]:]
		masked = MaskLiterals(sql)
	}

	// QUALIFY <expr> runs to the next top-level clause keyword.
	if loc := qualifyRe.FindStringIndex(masked); loc != nil {
		hadQualify = true
		end := len(sql)
		rest := masked[loc[1]:]
		if m := regexp.MustCompile(`(?i)\b(ORDER\s+BY|LIMIT|FETCH)\b`).FindStringIndex(rest); m != nil {
			end = loc[1] + m[0]
		}
		sql = sql[:loc[0]] + sql[end:]
		masked = MaskLiterals(sql)
	}

	// Drop identifier quotes. Single-quote content is already masked, so a
	// double quote in `masked` is always an identifier quote in `sql`.
	var b strings.Builder
	b.Grow(len(sql))
	for i := 0; i < len(sql); i++ {
		if masked[i] == '"' {
			continue
		}
		b.WriteByte(sql[i])
	}
	return b.String(), hadQualify
}

// DetectKind classifies a statement by its first keyword. WITH unwinds to
// the main statement behind the CTE list.
func DetectKind(sql string) StatementKind {
	masked := strings.TrimSpace(MaskLiterals(sql))
	upper := strings.ToUpper(masked)
	if strings.HasPrefix(upper, "WITH") {
		if _, main := SplitCTEs(sql); main != sql {
			return DetectKind(main)
		}
	}
	switch {
	case strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "("):
		return KindSelect
	case strings.HasPrefix(upper, "INSERT"):
		return KindInsert
	case strings.HasPrefix(upper, "UPDATE"):
		return KindUpdate
	case strings.HasPrefix(upper, "DELETE"):
		return KindDelete
	case strings.HasPrefix(upper, "MERGE"):
		return KindMerge
	case strings.HasPrefix(upper, "CALL"):
		return KindCall
	case strings.HasPrefix(upper, "COPY"):
		return KindCopy
	case createIndexRe.MatchString(masked):
		return KindCreateIndex
	case strings.HasPrefix(upper, "CREATE") || strings.HasPrefix(upper, "ALTER") || strings.HasPrefix(upper, "DROP") || strings.HasPrefix(upper, "TRUNCATE"):
		return KindDDL
	default:
		return KindUnknown
	}
}

var createIndexRe = regexp.MustCompile(`(?i)^\s*CREATE\s+(?:UNIQUE\s+)?INDEX\b`)

type cte struct {
	Name string
	Body string
}

// SplitCTEs separates a WITH prologue from the main statement. The AST
// grammar has no CTE support, so each body is parsed independently and the
// main statement is parsed with the prologue removed. Returns the input
// unchanged as main when there is no WITH clause.
func SplitCTEs(sql string) ([]cte, string) {
	masked := MaskLiterals(sql)
	trimmed := strings.TrimLeft(masked, " \t\r\n")
	offset := len(masked) - len(trimmed)
	if !strings.HasPrefix(strings.ToUpper(trimmed), "WITH") || (len(trimmed) > 4 && isWordByte(trimmed[4])) {
		return nil, sql
	}

	var ctes []cte
	i := offset + 4
	for {
		// name
		for i < len(sql) && isSpaceByte(masked[i]) {
			i++
		}
		start := i
		for i < len(sql) && isWordByte(masked[i]) {
			i++
		}
		name := sql[start:i]
		if name == "" {
			return nil, sql
		}

		// optional column list, then AS
		for i < len(sql) && isSpaceByte(masked[i]) {
			i++
		}
		if i < len(sql) && masked[i] == '(' {
			i = skipParens(masked, i)
			for i < len(sql) && isSpaceByte(masked[i]) {
				i++
			}
		}
		if i+2 > len(sql) || !strings.EqualFold(sql[i:i+2], "AS") {
			return nil, sql
		}
		i += 2
		for i < len(sql) && isSpaceByte(masked[i]) {
			i++
		}
		if i >= len(sql) || masked[i] != '(' {
			return nil, sql
		}
		bodyStart := i + 1
		i = skipParens(masked, i)
		ctes = append(ctes, cte{Name: name, Body: strings.TrimSpace(sql[bodyStart : i-1])})

		for i < len(sql) && isSpaceByte(masked[i]) {
			i++
		}
		if i < len(sql) && masked[i] == ',' {
			i++
			continue
		}
		break
	}
	return ctes, strings.TrimSpace(sql[i:])
}

// skipParens advances past a balanced parenthesis group starting at s[i]=='('.
func skipParens(s string, i int) int {
	depth := 0
	for ; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return i
}

func isWordByte(b byte) bool {
	return b == '_' || b == '$' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

var textPredicateRe = regexp.MustCompile(`(?i)([\w".]+)\s*(=|<>|!=|>=|<=|>|<|\bLIKE\b|\bIN\b)\s*([\w'".$:?%-]+)`)

// scanTextPredicates pulls comparison-shaped fragments out of raw SQL. Used
// for statement kinds the AST grammar cannot parse (MERGE ON/WHERE). The
// text is masked first so literals and comments cannot produce matches.
func scanTextPredicates(sql string, source PredicateSource) []Predicate {
	masked := MaskLiterals(sql)
	var preds []Predicate
	for _, m := range textPredicateRe.FindAllStringSubmatchIndex(masked, -1) {
		left := sql[m[2]:m[3]]
		opText := strings.ToUpper(strings.TrimSpace(sql[m[4]:m[5]]))
		right := strings.TrimSpace(sql[m[6]:m[7]])
		if isKeywordToken(left) {
			continue
		}
		op := OpRange
		switch opText {
		case "=":
			op = OpEq
		case "IN":
			op = OpIn
		}
		preds = append(preds, Predicate{
			Left:   left,
			Right:  right,
			Op:     op,
			Source: source,
			Raw:    strings.TrimSpace(sql[m[0]:m[1]]),
		})
	}
	return preds
}

var keywordTokens = map[string]bool{
	"AND": true, "OR": true, "ON": true, "WHEN": true, "THEN": true,
	"SET": true, "VALUES": true, "SELECT": true, "WHERE": true, "NOT": true,
}

func isKeywordToken(s string) bool {
	return keywordTokens[strings.ToUpper(strings.Trim(s, `"`))]
}

// hasLexicalWhere reports whether a WHERE clause containing at least one
// comparison is present in the text, regardless of whether the AST walk
// extracted anything from it.
func hasLexicalWhere(sql string) bool {
	masked := MaskLiterals(sql)
	loc := whereWordRe.FindStringIndex(masked)
	if loc == nil {
		return false
	}
	return compareOpRe.MatchString(strings.ToUpper(masked[loc[1]:]))
}
