package analysis

import (
	"math"
	"strings"
)

// DistributionConfig holds the thresholds used to decide whether a column is
// categorical.
type DistributionConfig struct {
	// MinTotalValues is the fewest non-empty values a column needs before it
	// can be judged categorical.
	MinTotalValues int
	// MinCategoryRatio sets the minimum category size as a share of the total.
	MinCategoryRatio float64
	// MaxCategories is the largest distinct-value count still considered an enum.
	MaxCategories int
	// ConfidenceThreshold must be exceeded for a categorical verdict.
	ConfidenceThreshold float64
	// SmallSetMaxCategories bounds the balanced small-set shortcut.
	SmallSetMaxCategories int
}

// DefaultDistributionConfig returns the stock thresholds.
func DefaultDistributionConfig() DistributionConfig {
	return DistributionConfig{
		MinTotalValues:        10,
		MinCategoryRatio:      0.02,
		MaxCategories:         20,
		ConfidenceThreshold:   0.7,
		SmallSetMaxCategories: 8,
	}
}

// QuickCheckResult is the outcome of the cheap rejection filter.
type QuickCheckResult struct {
	ShouldAnalyze   bool
	Reason          string
	Frequencies     map[string]int
	Total           int
	MinCategorySize int
}

// DistributionAnalysis is the categorical verdict for one column.
type DistributionAnalysis struct {
	IsCategorical   bool      `json:"is_categorical" yaml:"is_categorical"`
	CategoryCount   int       `json:"category_count" yaml:"category_count"`
	ConfidenceScore float64   `json:"confidence_score" yaml:"confidence_score"`
	Debug           DebugInfo `json:"debug_info" yaml:"debug_info"`
}

// DebugInfo carries the intermediate statistics behind a verdict.
type DebugInfo struct {
	UniqueRatio       float64        `json:"unique_ratio" yaml:"unique_ratio"`
	RepeatRatio       float64        `json:"repeat_ratio" yaml:"repeat_ratio"`
	DistributionScore float64        `json:"distribution_score" yaml:"distribution_score"`
	Entropy           float64        `json:"entropy" yaml:"entropy"`
	ValueFrequencies  map[string]int `json:"value_frequencies" yaml:"value_frequencies"`
	Rejected          string         `json:"rejected,omitempty" yaml:"rejected,omitempty"`
}

// QuickCheck runs the stage-one filter over a value frequency map.
func QuickCheck(freq map[string]int, cfg DistributionConfig) QuickCheckResult {
	total := 0
	maxCount := 0
	for _, c := range freq {
		total += c
		if c > maxCount {
			maxCount = c
		}
	}
	res := QuickCheckResult{Frequencies: freq, Total: total}
	if total < cfg.MinTotalValues {
		res.Reason = "too few values"
		return res
	}
	if len(freq) == total {
		res.Reason = "all values unique"
		return res
	}
	if len(freq) > cfg.MaxCategories {
		res.Reason = "too many categories"
		return res
	}
	res.MinCategorySize = int(math.Floor(float64(total) * cfg.MinCategoryRatio))
	if maxCount < res.MinCategorySize {
		res.Reason = "no category reaches minimum size"
		return res
	}
	res.ShouldAnalyze = true
	return res
}

// AnalyzeDistribution decides whether the values counted in freq form a
// categorical set. freq maps each distinct non-empty value to its count.
func AnalyzeDistribution(freq map[string]int, cfg DistributionConfig) DistributionAnalysis {
	qc := QuickCheck(freq, cfg)
	out := DistributionAnalysis{
		CategoryCount: len(freq),
		Debug: DebugInfo{
			ValueFrequencies: freq,
			Rejected:         qc.Reason,
		},
	}
	if qc.Total > 0 {
		out.Debug.UniqueRatio = float64(len(freq)) / float64(qc.Total)
	}
	if !qc.ShouldAnalyze {
		return out
	}

	k := len(freq)
	n := qc.Total
	out.Debug.RepeatRatio = repeatRatio(freq, n)
	out.Debug.DistributionScore = distributionScore(freq, n)
	out.Debug.Entropy = entropy(freq, n)

	if k <= cfg.SmallSetMaxCategories && n >= cfg.MinTotalValues && allAtLeast(freq, qc.MinCategorySize) {
		out.IsCategorical = true
		out.ConfidenceScore = 1.0
		return out
	}

	out.ConfidenceScore = confidence(k, n, out.Debug.RepeatRatio, out.Debug.Entropy)
	out.IsCategorical = out.ConfidenceScore > cfg.ConfidenceThreshold
	return out
}

// AnalyzeValues counts the trimmed non-empty entries of values and runs
// AnalyzeDistribution over them.
func AnalyzeValues(values []string, cfg DistributionConfig) DistributionAnalysis {
	freq := make(map[string]int)
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		freq[v]++
	}
	return AnalyzeDistribution(freq, cfg)
}

func allAtLeast(freq map[string]int, size int) bool {
	for _, c := range freq {
		if c < size {
			return false
		}
	}
	return true
}

func repeatRatio(freq map[string]int, total int) float64 {
	if total == 0 {
		return 0
	}
	repeated := 0
	for _, c := range freq {
		if c > 1 {
			repeated += c
		}
	}
	return float64(repeated) / float64(total)
}

// distributionScore is 1 for perfectly even categories and decays toward 0
// as the normalized chi-square spread grows.
func distributionScore(freq map[string]int, total int) float64 {
	if len(freq) == 0 || total == 0 {
		return 0
	}
	expected := float64(total) / float64(len(freq))
	var chi float64
	for _, c := range freq {
		d := float64(c) - expected
		chi += d * d / expected
	}
	v := chi / float64(len(freq))
	return 2 / (1 + math.Exp(v))
}

func entropy(freq map[string]int, total int) float64 {
	if total == 0 {
		return 0
	}
	var h float64
	for _, c := range freq {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log(p)
	}
	return h
}

func confidence(k, n int, repeat, ent float64) float64 {
	compactness := 1 / (1 + float64(k)/math.Sqrt(float64(n)))
	utilization := math.Min(ent/float64(k), 1)
	score := 0.4*compactness + 0.4*repeat + 0.2*utilization
	if k >= 5 && k <= 25 && repeat > 0.5 {
		score += 0.1
	}
	return math.Max(0, math.Min(1, score))
}
