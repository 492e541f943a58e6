package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jacobarthurs/htscope/internal/query"
)

func checkInsertShape(ctx *Context) []Finding {
	pq := ctx.Query
	if pq.Kind != query.KindInsert {
		return nil
	}

	var out []Finding
	if pq.InsertRows == 1 {
		out = append(out, Finding{
			Severity:   Medium,
			Rule:       SingleRowValuesInsert,
			Message:    "single-row VALUES insert; per-statement overhead dominates at volume",
			Suggestion: "Batch rows into multi-row VALUES or a bulk load path",
		})
	}

	for _, ref := range pq.Tables {
		info, ok := ctx.Meta.Lookup(ref.FQN())
		if !ok || !info.IsHybrid || len(info.PrimaryKey) == 0 || len(pq.InsertColumns) == 0 {
			continue
		}
		var missing []string
		for _, pk := range info.PrimaryKey {
			found := false
			for _, col := range pq.InsertColumns {
				if strings.EqualFold(col, pk) {
					found = true
					break
				}
			}
			if !found {
				missing = append(missing, pk)
			}
		}
		if len(missing) > 0 {
			out = append(out, Finding{
				Severity: High,
				Rule:     HtPKNotInInsert,
				Table:    ref.FQN(),
				Message: fmt.Sprintf("insert into hybrid table %s omits primary key column(s) %s",
					ref.FQN(), strings.Join(missing, ", ")),
				Suggestion: "Supply every primary key column explicitly; relying on defaults hides hot-spotting key patterns",
				Evidence:   map[string]any{"missing_pk_columns": missing},
			})
		}
	}
	return out
}

// checkWriteAmplification flags DML against hybrid tables carrying many
// secondary indexes: every write fans out to each index.
func checkWriteAmplification(ctx *Context) []Finding {
	if !ctx.Query.Kind.IsDML() {
		return nil
	}
	var out []Finding
	for _, ref := range ctx.Query.Tables {
		if ctx.Query.IsCTE(ref.Name) {
			continue
		}
		info, ok := ctx.Meta.Lookup(ref.FQN())
		if !ok || !info.IsHybrid || len(info.SecondaryIndexes) < WriteAmplificationIndexes {
			continue
		}
		out = append(out, Finding{
			Severity: Medium,
			Rule:     HtWriteAmplification,
			Table:    ref.FQN(),
			Message: fmt.Sprintf("hybrid table %s carries %d secondary indexes; each write is amplified across all of them",
				ref.FQN(), len(info.SecondaryIndexes)),
			Suggestion: "Drop indexes no read path uses before adding more write volume",
			Evidence:   map[string]any{"secondary_indexes": len(info.SecondaryIndexes)},
		})
	}
	return out
}

var dynamicIdentifierRe = regexp.MustCompile(`(?i)\bIDENTIFIER\s*\(`)

func checkDynamicIdentifier(ctx *Context) []Finding {
	if !ctx.Query.Kind.IsDML() && ctx.Query.Kind != query.KindSelect {
		return nil
	}
	dynamic := dynamicIdentifierRe.MatchString(ctx.MaskedSQL)
	if !dynamic {
		for _, ref := range ctx.Query.Tables {
			if strings.ContainsAny(ref.Name, "?$:") {
				dynamic = true
				break
			}
		}
	}
	if !dynamic {
		return nil
	}
	return []Finding{{
		Severity:   Medium,
		Rule:       DynamicIdentifierTarget,
		Message:    "statement resolves its target table dynamically; plans cannot be cached per table and static analysis is blind to the target",
		Suggestion: "Prefer static table names, or constrain the dynamic set so each target can be reviewed",
	}}
}
