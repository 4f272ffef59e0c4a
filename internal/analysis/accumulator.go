package analysis

import (
	"strconv"
	"strings"
)

// TypeCandidates are the per-column type flags. Each flag starts true and can
// only be cleared.
type TypeCandidates struct {
	Integer bool
	Float   bool
	Boolean bool
	Enum    bool
}

var booleanLiterals = map[string]struct{}{
	"true": {}, "false": {},
	"1": {}, "0": {},
	"yes": {}, "no": {},
	"t": {}, "f": {},
	"y": {}, "n": {},
}

// ColumnAccumulator folds the values of one column into type flags and a
// value frequency map.
type ColumnAccumulator struct {
	name     string
	cand     TypeCandidates
	freq     map[string]int
	seen     []string
	total    int
	nonEmpty int
}

// NewColumnAccumulator returns an accumulator with every candidate enabled.
func NewColumnAccumulator(name string) *ColumnAccumulator {
	return &ColumnAccumulator{
		name: name,
		cand: TypeCandidates{Integer: true, Float: true, Boolean: true, Enum: true},
		freq: make(map[string]int),
	}
}

// Observe folds a single cell. Blank cells only count toward the total.
func (a *ColumnAccumulator) Observe(value string) {
	a.total++
	v := strings.TrimSpace(value)
	if v == "" {
		return
	}
	a.nonEmpty++
	if a.freq[v] == 0 {
		a.seen = append(a.seen, v)
	}
	a.freq[v]++

	if a.cand.Integer && !isInteger(v) {
		a.cand.Integer = false
	}
	if a.cand.Float && !isFloat(v) {
		a.cand.Float = false
	}
	if a.cand.Boolean && !isBoolean(v) {
		a.cand.Boolean = false
	}
}

// Candidates returns the current flags.
func (a *ColumnAccumulator) Candidates() TypeCandidates { return a.cand }

// ColumnState is the finalized accumulator contents.
type ColumnState struct {
	Name       string
	Candidates TypeCandidates
	// Frequencies counts each distinct non-empty value.
	Frequencies map[string]int
	// Distinct lists distinct non-empty values in first-seen order.
	Distinct []string
	Total    int
	NonEmpty int
}

// Nullable reports whether any observed cell was blank.
func (s ColumnState) Nullable() bool { return s.NonEmpty < s.Total }

// Finalize returns the accumulated state. It does not modify the accumulator.
func (a *ColumnAccumulator) Finalize() ColumnState {
	return ColumnState{
		Name:        a.name,
		Candidates:  a.cand,
		Frequencies: a.freq,
		Distinct:    a.seen,
		Total:       a.total,
		NonEmpty:    a.nonEmpty,
	}
}

func isInteger(v string) bool {
	if v[0] == '+' {
		return false
	}
	_, err := strconv.ParseInt(v, 10, 64)
	return err == nil
}

func isFloat(v string) bool {
	// ParseFloat also takes hex mantissas and digit underscores; plain
	// decimal and exponent forms only.
	if strings.ContainsAny(v, "xX_") {
		return false
	}
	_, err := strconv.ParseFloat(v, 64)
	return err == nil
}

func isBoolean(v string) bool {
	_, ok := booleanLiterals[strings.ToLower(v)]
	return ok
}
