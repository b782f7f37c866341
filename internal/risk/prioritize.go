package risk

import (
	"cmp"
	"slices"
)

// Category buckets a score.
type Category string

const (
	High   Category = "high"
	Medium Category = "medium"
	Low    Category = "low"
)

// Default thresholds.
const (
	DefaultHigh   = 0.6
	DefaultMedium = 0.3
)

// Prioritized is an assessment with its rank, 1 being the riskiest.
type Prioritized struct {
	Assessment
	Rank     int      `json:"rank"`
	Category Category `json:"category"`
}

// Prioritizer ranks assessments. Zero thresholds use the defaults.
type Prioritizer struct {
	High   float64
	Medium float64
}

// Categorize buckets score.
func (p Prioritizer) Categorize(score float64) Category {
	high, medium := p.High, p.Medium
	if high == 0 {
		high = DefaultHigh
	}
	if medium == 0 {
		medium = DefaultMedium
	}
	switch {
	case score >= high:
		return High
	case score >= medium:
		return Medium
	default:
		return Low
	}
}

// Prioritize sorts assessments by descending score, keeping input order for
// ties, and assigns ranks from 1.
func (p Prioritizer) Prioritize(assessments []Assessment) []Prioritized {
	out := make([]Prioritized, len(assessments))
	for i, a := range assessments {
		out[i] = Prioritized{Assessment: a, Category: p.Categorize(a.Score)}
	}
	slices.SortStableFunc(out, func(a, b Prioritized) int {
		return cmp.Compare(b.Score, a.Score)
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// ByCategory groups prioritized tests, preserving rank order.
func ByCategory(tests []Prioritized) map[Category][]Prioritized {
	groups := map[Category][]Prioritized{High: {}, Medium: {}, Low: {}}
	for _, t := range tests {
		groups[t.Category] = append(groups[t.Category], t)
	}
	return groups
}

// HighRisk returns only the high category.
func HighRisk(tests []Prioritized) []Prioritized {
	return ByCategory(tests)[High]
}

// ExecutionOrder lists test names in rank order, at most limit when limit
// is positive.
func ExecutionOrder(tests []Prioritized, limit int) []string {
	names := make([]string, 0, len(tests))
	for _, t := range tests {
		if limit > 0 && len(names) == limit {
			break
		}
		names = append(names, t.Name)
	}
	return names
}
