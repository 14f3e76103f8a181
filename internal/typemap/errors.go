package typemap

import (
	"fmt"

	"datamove/internal/schema"
)

// AmbiguousVectorDimensionError reports a column whose values are numeric
// sequences of inconsistent length, so no fixed vector dimension can be
// declared for it.
type AmbiguousVectorDimensionError struct {
	Column string
}

func (e *AmbiguousVectorDimensionError) Error() string {
	return fmt.Sprintf("column %q: numeric sequences have inconsistent lengths, vector dimension is ambiguous", e.Column)
}

// ConversionError reports a single cell that cannot be coerced to the target
// semantic type. The bulk loader aborts and rolls back on the first one; bad
// rows are never silently skipped.
type ConversionError struct {
	Column string
	Row    int
	Raw    string
	Target schema.Type
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("row %d column %q: cannot convert %q to %s: %v",
		e.Row, e.Column, truncateForError(e.Raw), e.Target, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }
