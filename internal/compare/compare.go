// Package compare implements the two schema-reconciliation policies.
//
// Both policies are pure functions (Table, Table) -> *Report. Every check
// runs to completion and files its findings into the report; Valid is
// evaluated only after all checks are done, so the caller always receives
// the full diagnostic rather than the first error.
package compare

import (
	"fmt"

	"datamove/internal/schema"
)

// Compare validates the incoming dataset schema against the target table's
// current schema under the given policy and returns a fully populated
// report. It never touches the store.
func Compare(current, incoming schema.Table, policy schema.Policy) *schema.Report {
	switch policy {
	case schema.PolicyNewSchema:
		return compareNewSchema(current, incoming)
	default:
		return compareExistingSchema(current, incoming)
	}
}

// compareExistingSchema demands structural equality: exactly equal
// case-sensitive name sets, exact semantic types, and no column that is
// NOT NULL in the target fed from a nullable source.
func compareExistingSchema(current, incoming schema.Table) *schema.Report {
	r := &schema.Report{Policy: schema.PolicyExistingSchema}

	for _, c := range current.Columns {
		if _, ok := incoming.Column(c.Name); !ok {
			r.MissingColumns = append(r.MissingColumns, c.Name)
		}
	}
	for _, c := range incoming.Columns {
		if _, ok := current.Column(c.Name); !ok {
			r.ExtraColumns = append(r.ExtraColumns, c.Name)
		}
	}

	for _, cur := range current.Columns {
		in, ok := incoming.Column(cur.Name)
		if !ok {
			continue
		}
		if cur.Type != in.Type || (!cur.Nullable && in.Nullable) {
			r.TypeMismatches = append(r.TypeMismatches, schema.TypeMismatch{
				Column:           cur.Name,
				Expected:         cur.Type,
				Actual:           in.Type,
				ExpectedNullable: cur.Nullable,
				ActualNullable:   in.Nullable,
				Blocking:         true,
			})
		}
	}

	if len(r.MissingColumns) > 0 {
		r.Recommendations = append(r.Recommendations, fmt.Sprintf(
			"%d table column(s) are absent from the dataset %v; supply them or move with the new_schema policy",
			len(r.MissingColumns), r.MissingColumns))
	}
	if len(r.ExtraColumns) > 0 {
		r.Recommendations = append(r.Recommendations, fmt.Sprintf(
			"%d dataset column(s) do not exist in the table %v; drop them or move with the new_schema policy",
			len(r.ExtraColumns), r.ExtraColumns))
	}
	for _, m := range r.TypeMismatches {
		r.Recommendations = append(r.Recommendations, describeMismatch(m))
	}

	r.Valid = len(r.MissingColumns) == 0 &&
		len(r.ExtraColumns) == 0 &&
		len(r.TypeMismatches) == 0
	return r
}

// compareNewSchema permits additive/subtractive evolution. Case conflicts
// are a hard stop regardless of anything else. Shared-column mismatches
// block only when they change semantic family (irreversible narrowing);
// same-family drift is advisory.
func compareNewSchema(current, incoming schema.Table) *schema.Report {
	r := &schema.Report{Policy: schema.PolicyNewSchema}

	r.CaseConflicts = DetectCaseConflicts(current.Names(), incoming.Names())

	diff := &schema.Diff{}
	for _, c := range incoming.Columns {
		if _, ok := current.Column(c.Name); !ok {
			add := c
			// Evolved columns are added nullable: existing rows have no
			// value for them until the replace completes.
			add.Nullable = true
			diff.Add = append(diff.Add, add)
		} else {
			diff.Unchanged = append(diff.Unchanged, c.Name)
		}
	}
	for _, c := range current.Columns {
		if _, ok := incoming.Column(c.Name); !ok {
			diff.Remove = append(diff.Remove, c.Name)
		}
	}
	r.Diff = diff

	// Dropping a declared key column would leave the table without its
	// identity; evolution never does that implicitly.
	pkRemoved := false
	for _, name := range diff.Remove {
		if current.IsPrimaryKey(name) {
			pkRemoved = true
			r.Recommendations = append(r.Recommendations, fmt.Sprintf(
				"primary key column %q is absent from the dataset; primary keys cannot be removed by evolution", name))
		}
	}

	for _, cur := range current.Columns {
		in, ok := incoming.Column(cur.Name)
		if !ok {
			continue
		}
		if cur.Type == in.Type && (cur.Nullable || !in.Nullable) {
			continue
		}
		m := schema.TypeMismatch{
			Column:           cur.Name,
			Expected:         cur.Type,
			Actual:           in.Type,
			ExpectedNullable: cur.Nullable,
			ActualNullable:   in.Nullable,
			Blocking:         crossFamily(cur.Type, in.Type),
		}
		// A nullable source feeding a NOT NULL key column blocks; for
		// ordinary columns it is advisory, the load itself will fail on the
		// first actual NULL.
		if !cur.Nullable && in.Nullable && current.IsPrimaryKey(cur.Name) {
			m.Blocking = true
		}
		r.TypeMismatches = append(r.TypeMismatches, m)
		r.Recommendations = append(r.Recommendations, describeMismatch(m))
	}

	for _, c := range diff.Add {
		r.Recommendations = append(r.Recommendations, fmt.Sprintf(
			"column %q (%s) will be added to the table", c.Name, c.Type))
	}
	for _, name := range diff.Remove {
		r.Recommendations = append(r.Recommendations, fmt.Sprintf(
			"column %q will be dropped from the table", name))
	}
	for _, cc := range r.CaseConflicts {
		r.Recommendations = append(r.Recommendations, fmt.Sprintf(
			"dataset column %q collides with table column %q when case is ignored; rename one of them", cc.Incoming, cc.Existing))
	}

	blocked := pkRemoved
	for _, m := range r.TypeMismatches {
		if m.Blocking {
			blocked = true
		}
	}

	r.Valid = len(r.CaseConflicts) == 0 && !blocked
	return r
}

// family buckets semantic kinds for the narrowing rule: changing family
// (text<->vector, boolean<->json, ...) is irreversible and blocks; drift
// within a family (integer<->float) is advisory.
type family int

const (
	familyText family = iota
	familyNumeric
	familyBool
	familyTime
	familyJSON
	familyVector
)

func familyOf(t schema.Type) family {
	switch t.Kind {
	case schema.KindInteger, schema.KindFloat:
		return familyNumeric
	case schema.KindBool:
		return familyBool
	case schema.KindTimestamp:
		return familyTime
	case schema.KindJSON:
		return familyJSON
	case schema.KindVector:
		return familyVector
	default:
		return familyText
	}
}

func crossFamily(a, b schema.Type) bool {
	if familyOf(a) != familyOf(b) {
		return true
	}
	// pgvector cannot re-dimension a column in place, so a dimension change
	// is as blocking as a family change.
	if a.Kind == schema.KindVector && b.Kind == schema.KindVector && a.Dim != b.Dim {
		return true
	}
	return false
}

func describeMismatch(m schema.TypeMismatch) string {
	if m.Expected != m.Actual {
		severity := "advisory"
		if m.Blocking {
			severity = "blocking"
		}
		return fmt.Sprintf("column %q: table expects %s, dataset provides %s (%s)",
			m.Column, m.Expected, m.Actual, severity)
	}
	return fmt.Sprintf("column %q: table forbids NULL but the dataset contains empty values", m.Column)
}
