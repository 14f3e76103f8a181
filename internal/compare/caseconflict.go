package compare

import (
	"golang.org/x/text/cases"

	"datamove/internal/schema"
)

// DetectCaseConflicts returns every (existing, incoming) name pair that is
// equal under Unicode case folding but not byte-equal. Case-insensitive
// engines cannot tell such columns apart, so under the new_schema policy any
// conflict is a hard stop.
//
// Folding uses x/text case folding rather than ASCII lowercasing so that
// non-ASCII headers ("Straße" vs "STRASSE") collide the same way they would
// inside the store.
func DetectCaseConflicts(existing, incoming []string) []schema.CaseConflict {
	if len(existing) == 0 || len(incoming) == 0 {
		return nil
	}

	// cases.Caser is not safe for concurrent use; build one per call.
	fold := cases.Fold()

	folded := make(map[string][]string, len(existing))
	for _, e := range existing {
		k := fold.String(e)
		folded[k] = append(folded[k], e)
	}

	var out []schema.CaseConflict
	for _, in := range incoming {
		for _, e := range folded[fold.String(in)] {
			if e != in {
				out = append(out, schema.CaseConflict{Existing: e, Incoming: in})
			}
		}
	}
	return out
}
