// Package risk scores how likely each test is to be the one worth looking at
// first, combining ledger history, change proximity and the interpreter's
// confidence in its failure analysis.
package risk

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/bgricker/testlens/internal/changes"
	"github.com/bgricker/testlens/internal/ledger"
	"github.com/bgricker/testlens/internal/report"
)

// Weights scale each factor in Score.
type Weights struct {
	HistoricalFailureRate float64
	RecentlyFailed        float64
	AffectedByChanges     float64
	InterpreterScore      float64
	FileChangeProximity   float64
}

// DefaultWeights sum to one.
var DefaultWeights = Weights{
	HistoricalFailureRate: 0.25,
	RecentlyFailed:        0.20,
	AffectedByChanges:     0.15,
	InterpreterScore:      0.25,
	FileChangeProximity:   0.15,
}

// Factors are the inputs to a risk score.
type Factors struct {
	HistoricalFailureRate float64 `json:"historical_failure_rate"`
	RecentlyFailed        bool    `json:"recently_failed"`
	AffectedByChanges     bool    `json:"affected_by_changes"`
	InterpreterScore      float64 `json:"interpreter_score"`
	FileChangeProximity   float64 `json:"file_change_proximity"`
}

// Score is the weighted sum of f, clamped to [0,1].
func (f Factors) Score(w Weights) float64 {
	score := f.HistoricalFailureRate*w.HistoricalFailureRate +
		flag(f.RecentlyFailed)*w.RecentlyFailed +
		flag(f.AffectedByChanges)*w.AffectedByChanges +
		f.InterpreterScore*w.InterpreterScore +
		f.FileChangeProximity*w.FileChangeProximity
	return min(1, max(0, score))
}

// Map flattens f for storage.
func (f Factors) Map() map[string]float64 {
	return map[string]float64{
		"historical_failure_rate": f.HistoricalFailureRate,
		"recently_failed":         flag(f.RecentlyFailed),
		"affected_by_changes":     flag(f.AffectedByChanges),
		"interpreter_score":       f.InterpreterScore,
		"file_change_proximity":   f.FileChangeProximity,
	}
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// PathProximity is 1 for identical paths, otherwise the number of shared
// leading segments over the longer path's segment count.
func PathProximity(a, b string) float64 {
	a, b = clean(a), clean(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	pa, pb := strings.Split(a, "/"), strings.Split(b, "/")
	common := 0
	for common < len(pa) && common < len(pb) && pa[common] == pb[common] {
		common++
	}
	return float64(common) / float64(max(len(pa), len(pb)))
}

func clean(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean(p), "./")
}

// Store is the slice of the ledger the scorer reads and writes.
type Store interface {
	GetTestHistory(ctx context.Context, name string) (ledger.History, bool, error)
	GetRecentlyFailedTests(ctx context.Context, days int) ([]ledger.History, error)
	SaveRiskAnalysis(ctx context.Context, rec ledger.RiskRecord) error
}

// Assessment is the scored risk of one outcome.
type Assessment struct {
	Index   int     `json:"index"`
	Name    string  `json:"name"`
	File    string  `json:"file"`
	Factors Factors `json:"factors"`
	Score   float64 `json:"score"`
}

// Scorer computes assessments. History may be nil, in which case only
// change proximity and analysis confidence contribute.
type Scorer struct {
	History    Store
	Weights    Weights
	RecentDays int
}

// NewScorer returns a Scorer with default weights and a seven day window.
func NewScorer(store Store) *Scorer {
	return &Scorer{History: store, Weights: DefaultWeights, RecentDays: 7}
}

// Assess scores every outcome. It must run before the current results are
// stored so history reflects previous runs only.
func (s *Scorer) Assess(ctx context.Context, outcomes []report.TestOutcome, cc *changes.Context, analyses []report.FailureAnalysis) ([]Assessment, error) {
	recent := map[string]bool{}
	if s.History != nil {
		failed, err := s.History.GetRecentlyFailedTests(ctx, s.RecentDays)
		if err != nil {
			return nil, fmt.Errorf("risk: recent failures: %w", err)
		}
		for _, h := range failed {
			recent[h.TestName] = true
		}
	}
	changed := cc.ChangedPaths()

	out := make([]Assessment, 0, len(outcomes))
	for _, o := range outcomes {
		var f Factors
		if s.History != nil {
			h, ok, err := s.History.GetTestHistory(ctx, o.Name)
			if err != nil {
				return nil, fmt.Errorf("risk: history %q: %w", o.Name, err)
			}
			if ok {
				f.HistoricalFailureRate = h.FailureRate()
				f.RecentlyFailed = h.LastFailedAt != nil
			}
		}
		f.RecentlyFailed = f.RecentlyFailed || recent[o.Name]
		for _, p := range changed {
			f.FileChangeProximity = max(f.FileChangeProximity, PathProximity(o.File, p))
		}
		f.AffectedByChanges = f.FileChangeProximity > 0
		if a, ok := report.AnalysisFor(analyses, o.Index); ok {
			f.InterpreterScore = a.Confidence
		}
		out = append(out, Assessment{Index: o.Index, Name: o.Name, File: o.File, Factors: f, Score: f.Score(s.Weights)})
	}
	return out, nil
}

// Save records each assessment as the test's latest risk.
func (s *Scorer) Save(ctx context.Context, assessments []Assessment) error {
	if s.History == nil {
		return nil
	}
	for _, a := range assessments {
		rec := ledger.RiskRecord{
			TestName:          a.Name,
			RiskScore:         a.Score,
			Factors:           a.Factors.Map(),
			AffectedByChanges: a.Factors.AffectedByChanges,
		}
		if err := s.History.SaveRiskAnalysis(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// ScoreByIndex maps outcome index to score.
func ScoreByIndex(assessments []Assessment) map[int]float64 {
	scores := make(map[int]float64, len(assessments))
	for _, a := range assessments {
		scores[a.Index] = a.Score
	}
	return scores
}
