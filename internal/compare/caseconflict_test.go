package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"datamove/internal/schema"
)

func TestDetectCaseConflicts(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		incoming []string
		want     []schema.CaseConflict
	}{
		{
			name:     "simple_conflict",
			existing: []string{"item"},
			incoming: []string{"Item"},
			want:     []schema.CaseConflict{{Existing: "item", Incoming: "Item"}},
		},
		{
			name:     "exact_match_is_not_a_conflict",
			existing: []string{"item"},
			incoming: []string{"item"},
			want:     nil,
		},
		{
			name:     "unrelated_names",
			existing: []string{"id", "name"},
			incoming: []string{"email"},
			want:     nil,
		},
		{
			name:     "multiple_conflicts",
			existing: []string{"id", "name", "EMAIL"},
			incoming: []string{"ID", "email"},
			want: []schema.CaseConflict{
				{Existing: "id", Incoming: "ID"},
				{Existing: "EMAIL", Incoming: "email"},
			},
		},
		{
			name:     "unicode_folding",
			existing: []string{"straße"},
			incoming: []string{"STRASSE"},
			want:     []schema.CaseConflict{{Existing: "straße", Incoming: "STRASSE"}},
		},
		{
			name:     "empty_inputs",
			existing: nil,
			incoming: []string{"a"},
			want:     nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectCaseConflicts(tc.existing, tc.incoming)
			assert.Equal(t, tc.want, got)
		})
	}
}
