package sqlite

import (
	"fmt"
	"strings"

	"datamove/internal/schema"
	"datamove/internal/typemap"
)

// Pure statement builders, mirrored from the Postgres backend but with `?`
// placeholders and per-action ALTER statements.

// buildCreateSQL renders CREATE TABLE DDL. The declared type names match the
// Postgres ones so PRAGMA table_info round-trips through
// typemap.SemanticFromStore.
func buildCreateSQL(table string, sch schema.Table) (string, error) {
	if strings.TrimSpace(table) == "" {
		return "", fmt.Errorf("table name is empty")
	}
	if len(sch.Columns) == 0 {
		return "", fmt.Errorf("table %s: no columns", table)
	}

	defs := make([]string, 0, len(sch.Columns)+1)
	for _, c := range sch.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("table %s: column name is empty", table)
		}
		var b strings.Builder
		b.WriteString(quoteIdent(c.Name))
		b.WriteString(" ")
		b.WriteString(typemap.StoreType(c.Type))
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
		defs = append(defs, b.String())
	}

	if len(sch.PrimaryKeys) > 0 {
		keys := make([]string, len(sch.PrimaryKeys))
		for i, k := range sch.PrimaryKeys {
			if _, ok := sch.Column(k); !ok {
				return "", fmt.Errorf("table %s: primary key column %q not in schema", table, k)
			}
			keys[i] = quoteIdent(k)
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	}

	return fmt.Sprintf("CREATE TABLE %s (%s);", quoteIdent(table), strings.Join(defs, ", ")), nil
}

// buildEvolveSQL renders the evolution plan. SQLite's ALTER TABLE takes one
// action per statement, so the caller wraps the list in a transaction.
func buildEvolveSQL(table string, diff schema.Diff) []string {
	if diff.Empty() {
		return nil
	}
	stmts := make([]string, 0, len(diff.Add)+len(diff.Remove))
	for _, c := range diff.Add {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s;",
			quoteIdent(table), quoteIdent(c.Name), typemap.StoreType(c.Type)))
	}
	for _, name := range diff.Remove {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;",
			quoteIdent(table), quoteIdent(name)))
	}
	return stmts
}

// buildInsertSQL constructs a single multi-row INSERT statement and its
// args. Values are normalized for SQLite on the way through.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any, error) {
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("no columns")
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(quoteIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(c))
	}
	b.WriteString(") VALUES ")

	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tuple)
		for _, v := range row {
			args = append(args, normalizeValue(v))
		}
	}
	b.WriteString(";")

	return b.String(), args, nil
}
