package metadata

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Fetch loads column, primary-key and secondary-index metadata for the
// given tables from a Postgres-compatible endpoint. The result carries
// confirmed provenance: a table the catalog knows with no index rows really
// has no indexes. Tables the catalog does not know fall back to Local
// defaults so analysis can still proceed.
func Fetch(ctx context.Context, dbConn string, tables []string) (Set, error) {
	conn, err := pgx.Connect(ctx, dbConn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	defer conn.Close(ctx)

	set := make(Set, len(tables))
	for _, table := range tables {
		t, found, err := fetchTable(ctx, conn, table)
		if err != nil {
			return nil, fmt.Errorf("fetching metadata for %s: %w", table, err)
		}
		if !found {
			set[table] = Table{IndexProvenance: ProvenanceUnknown}
			continue
		}
		set[table] = t
	}
	return set, nil
}

func fetchTable(ctx context.Context, conn *pgx.Conn, table string) (Table, bool, error) {
	schema, name := splitQualified(table)

	cols, err := fetchColumns(ctx, conn, schema, name)
	if err != nil {
		return Table{}, false, err
	}
	if len(cols) == 0 {
		return Table{}, false, nil
	}

	pk, err := fetchPrimaryKey(ctx, conn, schema, name)
	if err != nil {
		return Table{}, false, err
	}

	indexes, err := fetchSecondaryIndexes(ctx, conn, schema, name)
	if err != nil {
		return Table{}, false, err
	}

	return Table{
		Columns:          cols,
		PrimaryKey:       pk,
		SecondaryIndexes: indexes,
		IndexProvenance:  ProvenanceConfirmed,
	}, true, nil
}

func fetchColumns(ctx context.Context, conn *pgx.Conn, schema, name string) (map[string]string, error) {
	rows, err := conn.Query(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema())
		  AND table_name = $2
		ORDER BY ordinal_position`, schema, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]string)
	for rows.Next() {
		var col, typ string
		if err := rows.Scan(&col, &typ); err != nil {
			return nil, err
		}
		cols[col] = typ
	}
	return cols, rows.Err()
}

func fetchPrimaryKey(ctx context.Context, conn *pgx.Conn, schema, name string) ([]string, error) {
	rows, err := conn.Query(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name
		 AND kcu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = COALESCE(NULLIF($1, ''), current_schema())
		  AND tc.table_name = $2
		ORDER BY kcu.ordinal_position`, schema, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		pk = append(pk, col)
	}
	return pk, rows.Err()
}

func fetchSecondaryIndexes(ctx context.Context, conn *pgx.Conn, schema, name string) ([][]string, error) {
	rows, err := conn.Query(ctx, `
		SELECT i.relname,
		       array_agg(a.attname ORDER BY k.ord)
		FROM pg_index ix
		JOIN pg_class c ON c.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = k.attnum
		WHERE n.nspname = COALESCE(NULLIF($1, ''), current_schema())
		  AND c.relname = $2
		  AND NOT ix.indisprimary
		GROUP BY i.relname
		ORDER BY i.relname`, schema, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes [][]string
	for rows.Next() {
		var idxName string
		var cols []string
		if err := rows.Scan(&idxName, &cols); err != nil {
			return nil, err
		}
		indexes = append(indexes, cols)
	}
	return indexes, rows.Err()
}

func splitQualified(table string) (schema, name string) {
	name = strings.Trim(table, `"`)
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[:idx], name[idx+1:]
	}
	return "", name
}
