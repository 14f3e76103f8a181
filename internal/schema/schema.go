// To keep the engine generic, the schema types need to live in a place the
// comparator, the type mapper, and the storage backends can all import
// without circular deps.
package schema

import (
	"fmt"
	"time"
)

// Kind is the semantic data kind of a column, independent of any storage
// engine's concrete type name.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindFloat
	KindBool
	KindTimestamp
	KindJSON
	KindVector
)

// Type is a semantic column type. Dim is meaningful only for KindVector,
// where it carries the fixed vector dimension.
type Type struct {
	Kind Kind
	Dim  int
}

// Convenience constructors for the common (non-vector) types.
var (
	Text      = Type{Kind: KindText}
	Integer   = Type{Kind: KindInteger}
	Float     = Type{Kind: KindFloat}
	Bool      = Type{Kind: KindBool}
	Timestamp = Type{Kind: KindTimestamp}
	JSON      = Type{Kind: KindJSON}
)

// Vector returns the semantic type for a fixed-dimension vector column.
func Vector(dim int) Type {
	return Type{Kind: KindVector, Dim: dim}
}

func (t Type) String() string {
	switch t.Kind {
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBool:
		return "boolean"
	case KindTimestamp:
		return "timestamp"
	case KindJSON:
		return "json"
	case KindVector:
		return fmt.Sprintf("vector(%d)", t.Dim)
	default:
		return fmt.Sprintf("kind(%d)", int(t.Kind))
	}
}

// Column describes one table column. Identity within a table is the
// case-sensitive name.
type Column struct {
	Name     string
	Type     Type
	Nullable bool
}

// Table is an ordered set of columns plus optional primary-key column names.
//
// Invariant: column names are unique (case-sensitive) within a table. The
// engine never caches Table values across operations; the store is the
// source of truth and is re-inspected per call.
type Table struct {
	Name        string
	Columns     []Column
	PrimaryKeys []string
}

// Column returns the column with the given (case-sensitive) name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Names returns the column names in physical order.
func (t Table) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// IsPrimaryKey reports whether name is one of the declared key columns.
func (t Table) IsPrimaryKey(name string) bool {
	for _, k := range t.PrimaryKeys {
		if k == name {
			return true
		}
	}
	return false
}

// Policy selects the reconciliation rule set applied when the target table
// already exists.
type Policy int

const (
	// PolicyUnset is the zero value; moving into an existing table with an
	// unset policy fails fast before any store access.
	PolicyUnset Policy = iota

	// PolicyExistingSchema demands structural equality between the incoming
	// dataset and the target table.
	PolicyExistingSchema

	// PolicyNewSchema permits additive/subtractive evolution but forbids
	// case-only column-name collisions.
	PolicyNewSchema
)

func (p Policy) String() string {
	switch p {
	case PolicyExistingSchema:
		return "existing_schema"
	case PolicyNewSchema:
		return "new_schema"
	default:
		return "unset"
	}
}

// ParsePolicy parses the textual policy names used by the CLI and config.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "existing_schema":
		return PolicyExistingSchema, nil
	case "new_schema":
		return PolicyNewSchema, nil
	case "":
		return PolicyUnset, nil
	default:
		return PolicyUnset, fmt.Errorf("unknown policy %q (want existing_schema or new_schema)", s)
	}
}

// CaseConflict records two column names that differ only by letter case:
// Existing comes from the target table, Incoming from the dataset.
type CaseConflict struct {
	Existing string
	Incoming string
}

// TypeMismatch records a column present on both sides whose semantic type or
// nullability disagrees. Blocking marks mismatches that invalidate the move
// on their own; non-blocking mismatches surface as recommendations.
type TypeMismatch struct {
	Column           string
	Expected         Type
	Actual           Type
	ExpectedNullable bool
	ActualNullable   bool
	Blocking         bool
}

// Diff is the evolution plan produced under PolicyNewSchema. Add preserves
// the incoming column order; Remove and Unchanged are name sets.
type Diff struct {
	Add       []Column
	Remove    []string
	Unchanged []string
}

// Empty reports whether applying the diff would change nothing.
func (d *Diff) Empty() bool {
	return d == nil || (len(d.Add) == 0 && len(d.Remove) == 0)
}

// Report is the full validation result for one move operation. It is built
// once, with every check's findings collected before Valid is evaluated, so
// callers always see the complete diagnostic rather than the first error.
type Report struct {
	Policy          Policy
	CaseConflicts   []CaseConflict
	TypeMismatches  []TypeMismatch
	MissingColumns  []string
	ExtraColumns    []string
	Diff            *Diff
	Valid           bool
	Recommendations []string
}

// Outcome summarizes one completed (or dry-run) move. The engine retains no
// state after returning it.
type Outcome struct {
	OperationID   string
	Rows          int64
	Batches       int
	Elapsed       time.Duration
	Report        *Report
	Committed     bool
	TableCreated  bool
	SchemaEvolved bool
}
