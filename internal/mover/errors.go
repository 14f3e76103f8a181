package mover

import (
	"errors"
	"fmt"

	"datamove/internal/schema"
)

// ErrPolicyRequired is returned when the target table already exists and the
// request carries no reconciliation policy. Nothing has been written when it
// is returned.
var ErrPolicyRequired = errors.New("target table exists: a reconciliation policy is required")

// ValidationFailedError carries the complete validation report for a move
// rejected by the comparator. The call had zero side effects; retrying
// without changing the input cannot succeed.
type ValidationFailedError struct {
	Report *schema.Report
}

func (e *ValidationFailedError) Error() string {
	r := e.Report
	return fmt.Sprintf("schema validation failed under %s: %d case conflicts, %d type mismatches, %d missing, %d extra columns",
		r.Policy, len(r.CaseConflicts), len(r.TypeMismatches), len(r.MissingColumns), len(r.ExtraColumns))
}
