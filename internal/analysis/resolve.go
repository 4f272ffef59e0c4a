package analysis

import "github.com/KaramelBytes/tabschema-cli/internal/schema"

// Resolve picks a single data type from the candidate flags. distinct is the
// number of distinct non-empty values. Structural types win over the
// categorical verdict carried in c.Enum.
func Resolve(c TypeCandidates, distinct int) schema.DataType {
	switch {
	case distinct == 0:
		return schema.Text
	case c.Boolean && distinct <= 2:
		return schema.Boolean
	case c.Integer:
		return schema.Integer
	case c.Float:
		return schema.Float
	case c.Enum:
		return schema.Enum
	default:
		return schema.Text
	}
}

// resolveColumn applies the categorical verdict to state and resolves its type.
func resolveColumn(state ColumnState, verdict DistributionAnalysis) schema.DataType {
	c := state.Candidates
	c.Enum = c.Enum && verdict.IsCategorical
	return Resolve(c, len(state.Distinct))
}
