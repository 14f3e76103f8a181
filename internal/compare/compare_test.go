package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datamove/internal/schema"
)

func table(cols ...schema.Column) schema.Table {
	return schema.Table{Name: "items", Columns: cols}
}

func col(name string, typ schema.Type) schema.Column {
	return schema.Column{Name: name, Type: typ}
}

func nullableCol(name string, typ schema.Type) schema.Column {
	return schema.Column{Name: name, Type: typ, Nullable: true}
}

func TestExistingSchemaEqualSetsValid(t *testing.T) {
	current := table(col("id", schema.Integer), nullableCol("name", schema.Text))
	incoming := table(col("id", schema.Integer), nullableCol("name", schema.Text))

	r := Compare(current, incoming, schema.PolicyExistingSchema)
	require.True(t, r.Valid)
	assert.Empty(t, r.MissingColumns)
	assert.Empty(t, r.ExtraColumns)
	assert.Empty(t, r.TypeMismatches)
}

func TestExistingSchemaMissingAndExtra(t *testing.T) {
	// Existing {id not null, name nullable} vs incoming {id, email}.
	current := table(col("id", schema.Integer), nullableCol("name", schema.Text))
	incoming := table(col("id", schema.Integer), col("email", schema.Text))

	r := Compare(current, incoming, schema.PolicyExistingSchema)
	require.False(t, r.Valid)
	assert.Equal(t, []string{"name"}, r.MissingColumns)
	assert.Equal(t, []string{"email"}, r.ExtraColumns)
	assert.NotEmpty(t, r.Recommendations)
}

func TestExistingSchemaCaseDifferenceIsMissingPlusExtra(t *testing.T) {
	current := table(col("item", schema.Text))
	incoming := table(col("Item", schema.Text))

	r := Compare(current, incoming, schema.PolicyExistingSchema)
	require.False(t, r.Valid)
	assert.Equal(t, []string{"item"}, r.MissingColumns)
	assert.Equal(t, []string{"Item"}, r.ExtraColumns)
	// Under the strict policy case differences are ordinary mismatches.
	assert.Empty(t, r.CaseConflicts)
}

func TestExistingSchemaTypeMismatchBlocks(t *testing.T) {
	current := table(col("id", schema.Integer))
	incoming := table(col("id", schema.Text))

	r := Compare(current, incoming, schema.PolicyExistingSchema)
	require.False(t, r.Valid)
	require.Len(t, r.TypeMismatches, 1)
	assert.True(t, r.TypeMismatches[0].Blocking)
}

func TestExistingSchemaNullabilityRule(t *testing.T) {
	t.Run("not_null_target_rejects_nullable_source", func(t *testing.T) {
		current := table(col("id", schema.Integer))
		incoming := table(nullableCol("id", schema.Integer))

		r := Compare(current, incoming, schema.PolicyExistingSchema)
		require.False(t, r.Valid)
		require.Len(t, r.TypeMismatches, 1)
	})

	t.Run("nullable_target_accepts_non_null_source", func(t *testing.T) {
		current := table(nullableCol("id", schema.Integer))
		incoming := table(col("id", schema.Integer))

		r := Compare(current, incoming, schema.PolicyExistingSchema)
		require.True(t, r.Valid)
	})
}

func TestExistingSchemaCollectsAllFindings(t *testing.T) {
	current := table(col("id", schema.Integer), col("n", schema.Integer), nullableCol("gone", schema.Text))
	incoming := table(col("id", schema.Text), col("n", schema.Float), col("new", schema.Text))

	r := Compare(current, incoming, schema.PolicyExistingSchema)
	require.False(t, r.Valid)
	// Every independent check filed its findings; nothing short-circuited.
	assert.Len(t, r.TypeMismatches, 2)
	assert.Equal(t, []string{"gone"}, r.MissingColumns)
	assert.Equal(t, []string{"new"}, r.ExtraColumns)
}

func TestNewSchemaCaseConflictHardStop(t *testing.T) {
	// Existing {id, item} vs incoming {id, Item}: one conflict, invalid,
	// even though Item would otherwise be a legal add.
	current := table(col("id", schema.Integer), col("item", schema.Text))
	incoming := table(col("id", schema.Integer), col("Item", schema.Text))

	r := Compare(current, incoming, schema.PolicyNewSchema)
	require.False(t, r.Valid)
	require.Len(t, r.CaseConflicts, 1)
	assert.Equal(t, schema.CaseConflict{Existing: "item", Incoming: "Item"}, r.CaseConflicts[0])
}

func TestNewSchemaAdditiveEvolutionValid(t *testing.T) {
	current := table(col("id", schema.Integer))
	incoming := table(col("id", schema.Integer), col("email", schema.Text))

	r := Compare(current, incoming, schema.PolicyNewSchema)
	require.True(t, r.Valid)
	require.NotNil(t, r.Diff)
	require.Len(t, r.Diff.Add, 1)
	assert.Equal(t, "email", r.Diff.Add[0].Name)
	// Added columns are always nullable: pre-existing rows have no value.
	assert.True(t, r.Diff.Add[0].Nullable)
	assert.Empty(t, r.Diff.Remove)
	assert.Equal(t, []string{"id"}, r.Diff.Unchanged)
}

func TestNewSchemaSubtractiveEvolution(t *testing.T) {
	current := table(col("id", schema.Integer), nullableCol("legacy", schema.Text))
	incoming := table(col("id", schema.Integer))

	r := Compare(current, incoming, schema.PolicyNewSchema)
	require.True(t, r.Valid)
	assert.Equal(t, []string{"legacy"}, r.Diff.Remove)
}

func TestNewSchemaSameFamilyDriftIsAdvisory(t *testing.T) {
	current := table(col("score", schema.Integer))
	incoming := table(col("score", schema.Float))

	r := Compare(current, incoming, schema.PolicyNewSchema)
	require.True(t, r.Valid)
	require.Len(t, r.TypeMismatches, 1)
	assert.False(t, r.TypeMismatches[0].Blocking)
	assert.NotEmpty(t, r.Recommendations)
}

func TestNewSchemaCrossFamilyBlocks(t *testing.T) {
	tests := []struct {
		name     string
		current  schema.Type
		incoming schema.Type
	}{
		{name: "text_to_vector", current: schema.Text, incoming: schema.Vector(3)},
		{name: "bool_to_json", current: schema.Bool, incoming: schema.JSON},
		{name: "vector_dimension_change", current: schema.Vector(3), incoming: schema.Vector(4)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := Compare(table(col("c", tc.current)), table(col("c", tc.incoming)), schema.PolicyNewSchema)
			require.False(t, r.Valid)
			require.Len(t, r.TypeMismatches, 1)
			assert.True(t, r.TypeMismatches[0].Blocking)
		})
	}
}

func TestNewSchemaPrimaryKeyRemovalBlocks(t *testing.T) {
	current := schema.Table{
		Name:        "items",
		Columns:     []schema.Column{col("id", schema.Integer), nullableCol("name", schema.Text)},
		PrimaryKeys: []string{"id"},
	}
	incoming := table(nullableCol("name", schema.Text))

	r := Compare(current, incoming, schema.PolicyNewSchema)
	require.False(t, r.Valid)
	assert.Contains(t, r.Diff.Remove, "id")
}

func TestPolicyDispatch(t *testing.T) {
	current := table(col("a", schema.Text))
	incoming := table(col("b", schema.Text))

	assert.Equal(t, schema.PolicyExistingSchema, Compare(current, incoming, schema.PolicyExistingSchema).Policy)
	assert.Equal(t, schema.PolicyNewSchema, Compare(current, incoming, schema.PolicyNewSchema).Policy)
}
