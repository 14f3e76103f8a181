package postgres

import (
	"fmt"
	"strings"

	"datamove/internal/schema"
	"datamove/internal/typemap"
)

// The SQL builders in this file are pure and deterministic so that
// correctness (placeholder numbering, quoting, DDL shape) can be unit
// tested without a database.

// pgIdent quotes an identifier for Postgres.
func pgIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// buildCreateSQL renders CREATE TABLE DDL for a full schema, including an
// optional table-level PRIMARY KEY constraint.
//
// Nullable semantics: nullable columns carry no clause, everything else is
// NOT NULL. Vector columns render as the pgvector vector(N) type, so the
// dimension must be resolved before DDL generation.
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
		b.WriteString(pgIdent(c.Name))
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
			keys[i] = pgIdent(k)
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	}

	return fmt.Sprintf("CREATE TABLE %s (%s);", pgIdent(table), strings.Join(defs, ", ")), nil
}

// buildEvolveSQL renders the evolution plan as a single ALTER TABLE
// statement, so additions and removals apply as one unit even outside an
// explicit transaction.
func buildEvolveSQL(table string, diff schema.Diff) (string, error) {
	if strings.TrimSpace(table) == "" {
		return "", fmt.Errorf("table name is empty")
	}
	if diff.Empty() {
		return "", nil
	}

	actions := make([]string, 0, len(diff.Add)+len(diff.Remove))
	for _, c := range diff.Add {
		// Evolved columns are always added nullable: the rows present
		// before the replace have no value for them.
		actions = append(actions, fmt.Sprintf("ADD COLUMN %s %s", pgIdent(c.Name), typemap.StoreType(c.Type)))
	}
	for _, name := range diff.Remove {
		actions = append(actions, fmt.Sprintf("DROP COLUMN %s", pgIdent(name)))
	}

	return fmt.Sprintf("ALTER TABLE %s %s;", pgIdent(table), strings.Join(actions, ", ")), nil
}

// buildInsertSQL constructs a single multi-row INSERT statement and its args.
//
// Constraints:
//   - columns must be non-empty.
//   - every row must have exactly len(columns) values.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any, error) {
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("no columns")
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	b.WriteString(";")

	return b.String(), args, nil
}

// hasVectorColumn reports whether DDL for this schema needs the pgvector
// extension available.
func hasVectorColumn(sch schema.Table) bool {
	for _, c := range sch.Columns {
		if c.Type.Kind == schema.KindVector {
			return true
		}
	}
	return false
}
