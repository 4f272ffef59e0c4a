package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KaramelBytes/tabschema-cli/internal/schema"
)

func TestColumnAccumulator_FlagsNeverReenable(t *testing.T) {
	acc := NewColumnAccumulator("score")
	acc.Observe("1")
	assert.True(t, acc.Candidates().Integer)

	acc.Observe("x")
	for _, v := range []string{"2", "3", "4", "true"} {
		acc.Observe(v)
		c := acc.Candidates()
		assert.False(t, c.Integer, "integer re-enabled after %q", v)
		assert.False(t, c.Float, "float re-enabled after %q", v)
		assert.False(t, c.Boolean, "boolean re-enabled after %q", v)
	}
}

func TestColumnAccumulator_BlankCellsCountOnlyTowardTotal(t *testing.T) {
	acc := NewColumnAccumulator("qty")
	for _, v := range []string{" 3 ", "", "  ", "3", "4"} {
		acc.Observe(v)
	}
	st := acc.Finalize()
	assert.Equal(t, 5, st.Total)
	assert.Equal(t, 3, st.NonEmpty)
	assert.True(t, st.Nullable())
	assert.Equal(t, []string{"3", "4"}, st.Distinct)
	assert.Equal(t, map[string]int{"3": 2, "4": 1}, st.Frequencies)
	assert.True(t, st.Candidates.Integer)
}

func TestColumnAccumulator_ParseRules(t *testing.T) {
	cases := []struct {
		value                   string
		integer, float, boolean bool
	}{
		{"42", true, true, false},
		{"-7", true, true, false},
		{"+5", false, true, false},
		{"1,000", false, false, false},
		{"1e3", false, true, false},
		{"10.50", false, true, false},
		{"0x1F", false, false, false},
		{"1_000", false, false, false},
		{"1", true, true, true},
		{"0", true, true, true},
		{"YES", false, false, true},
		{"n", false, false, true},
		{"False", false, false, true},
		{"maybe", false, false, false},
		{"9223372036854775808", false, true, false},
	}
	for _, tc := range cases {
		acc := NewColumnAccumulator("c")
		acc.Observe(tc.value)
		c := acc.Candidates()
		assert.Equal(t, tc.integer, c.Integer, "integer(%q)", tc.value)
		assert.Equal(t, tc.float, c.Float, "float(%q)", tc.value)
		assert.Equal(t, tc.boolean, c.Boolean, "boolean(%q)", tc.value)
		assert.True(t, c.Enum, "enum is decided after accumulation")
	}
}

func TestResolve_Priority(t *testing.T) {
	all := TypeCandidates{Integer: true, Float: true, Boolean: true, Enum: true}

	assert.Equal(t, schema.Text, Resolve(all, 0))
	assert.Equal(t, schema.Boolean, Resolve(all, 2))
	assert.Equal(t, schema.Integer, Resolve(all, 3))
	assert.Equal(t, schema.Float, Resolve(TypeCandidates{Float: true, Enum: true}, 4))
	assert.Equal(t, schema.Enum, Resolve(TypeCandidates{Enum: true}, 4))
	assert.Equal(t, schema.Text, Resolve(TypeCandidates{}, 4))
}

func TestResolveColumn_StructuralTypesBeatCategorical(t *testing.T) {
	cfg := DefaultDistributionConfig()
	fold := func(values ...string) (ColumnState, DistributionAnalysis) {
		acc := NewColumnAccumulator("c")
		for _, v := range values {
			acc.Observe(v)
		}
		st := acc.Finalize()
		return st, AnalyzeDistribution(st.Frequencies, cfg)
	}

	st, v := fold("true", "false", "true", "false", "true", "false", "true", "false", "true", "false")
	assert.True(t, v.IsCategorical)
	assert.Equal(t, schema.Boolean, resolveColumn(st, v))

	st, v = fold("1", "2", "3", "1", "2", "3", "1", "2", "3", "1", "2", "3")
	assert.True(t, v.IsCategorical)
	assert.Equal(t, schema.Integer, resolveColumn(st, v))

	st, v = fold("Fire", "Water", "Grass", "Fire", "Water", "Grass", "Fire", "Water", "Grass", "Fire")
	assert.Equal(t, schema.Enum, resolveColumn(st, v))

	st, v = fold("Fire", "Water", "Grass")
	assert.False(t, v.IsCategorical)
	assert.Equal(t, schema.Text, resolveColumn(st, v))
}
