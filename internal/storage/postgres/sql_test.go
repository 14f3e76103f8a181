package postgres

import (
	"testing"

	"datamove/internal/schema"
)

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	sch := schema.Table{
		Name: "items",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Integer},
			{Name: "name", Type: schema.Text, Nullable: true},
			{Name: "embedding", Type: schema.Vector(3), Nullable: true},
		},
		PrimaryKeys: []string{"id"},
	}

	got, err := buildCreateSQL("items", sch)
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	want := `CREATE TABLE "items" ("id" bigint NOT NULL, "name" text, "embedding" vector(3), PRIMARY KEY ("id"));`
	if got != want {
		t.Errorf("ddl=\n%s\nwant\n%s", got, want)
	}
}

func TestBuildCreateSQLErrors(t *testing.T) {
	t.Parallel()

	if _, err := buildCreateSQL("", schema.Table{Columns: []schema.Column{{Name: "a"}}}); err == nil {
		t.Errorf("empty table name should fail")
	}
	if _, err := buildCreateSQL("t", schema.Table{}); err == nil {
		t.Errorf("no columns should fail")
	}
	badPK := schema.Table{
		Columns:     []schema.Column{{Name: "a", Type: schema.Text}},
		PrimaryKeys: []string{"missing"},
	}
	if _, err := buildCreateSQL("t", badPK); err == nil {
		t.Errorf("primary key outside the schema should fail")
	}
}

func TestBuildEvolveSQL(t *testing.T) {
	t.Parallel()

	diff := schema.Diff{
		Add: []schema.Column{
			{Name: "email", Type: schema.Text, Nullable: true},
			{Name: "embedding", Type: schema.Vector(4), Nullable: true},
		},
		Remove: []string{"legacy"},
	}

	got, err := buildEvolveSQL("items", diff)
	if err != nil {
		t.Fatalf("buildEvolveSQL: %v", err)
	}
	// One statement: additions and removals must apply as a unit.
	want := `ALTER TABLE "items" ADD COLUMN "email" text, ADD COLUMN "embedding" vector(4), DROP COLUMN "legacy";`
	if got != want {
		t.Errorf("ddl=\n%s\nwant\n%s", got, want)
	}
}

func TestBuildEvolveSQLEmptyDiff(t *testing.T) {
	t.Parallel()

	got, err := buildEvolveSQL("items", schema.Diff{Unchanged: []string{"id"}})
	if err != nil {
		t.Fatalf("buildEvolveSQL: %v", err)
	}
	if got != "" {
		t.Errorf("empty diff produced %q", got)
	}
}

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	sql, args, err := buildInsertSQL("items", []string{"id", "name"}, [][]any{
		{int64(1), "a"},
		{int64(2), "b"},
	})
	if err != nil {
		t.Fatalf("buildInsertSQL: %v", err)
	}
	want := `INSERT INTO "items" ("id", "name") VALUES ($1, $2), ($3, $4);`
	if sql != want {
		t.Errorf("sql=\n%s\nwant\n%s", sql, want)
	}
	if len(args) != 4 {
		t.Fatalf("args=%d, want 4", len(args))
	}
	if args[0] != int64(1) || args[3] != "b" {
		t.Errorf("args out of order: %v", args)
	}
}

func TestBuildInsertSQLRowWidthMismatch(t *testing.T) {
	t.Parallel()

	if _, _, err := buildInsertSQL("t", []string{"a", "b"}, [][]any{{1}}); err == nil {
		t.Errorf("short row should fail")
	}
	if _, _, err := buildInsertSQL("t", nil, nil); err == nil {
		t.Errorf("no columns should fail")
	}
}

func TestPgIdentQuoting(t *testing.T) {
	t.Parallel()

	if got := pgIdent(`we"ird`); got != `"we""ird"` {
		t.Errorf("pgIdent=%s", got)
	}
}

func TestSplitQualifiedName(t *testing.T) {
	t.Parallel()

	nsp, rel := splitQualifiedName("analytics.items")
	if nsp != "analytics" || rel != "items" {
		t.Errorf("got (%q,%q)", nsp, rel)
	}
	nsp, rel = splitQualifiedName("items")
	if nsp != "public" || rel != "items" {
		t.Errorf("got (%q,%q)", nsp, rel)
	}
}

func TestHasVectorColumn(t *testing.T) {
	t.Parallel()

	with := schema.Table{Columns: []schema.Column{{Name: "e", Type: schema.Vector(2)}}}
	without := schema.Table{Columns: []schema.Column{{Name: "n", Type: schema.Text}}}
	if !hasVectorColumn(with) {
		t.Errorf("vector column not detected")
	}
	if hasVectorColumn(without) {
		t.Errorf("false positive")
	}
}
