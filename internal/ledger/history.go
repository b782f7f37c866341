package ledger

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bgricker/testlens/internal/report"
)

// History aggregates every stored result of one test.
type History struct {
	TestName      string     `json:"test_name"`
	LastFailedAt  *time.Time `json:"last_failed_at"`
	FailureCount  int        `json:"failure_count"`
	TotalRuns     int        `json:"total_runs"`
	AvgDurationMS float64    `json:"avg_duration_ms"`
}

// FailureRate is FailureCount over TotalRuns, zero for an unseen test.
func (h History) FailureRate() float64 {
	if h.TotalRuns == 0 {
		return 0
	}
	return float64(h.FailureCount) / float64(h.TotalRuns)
}

// RiskRecord is the latest risk assessment of a test.
type RiskRecord struct {
	TestName          string             `json:"test_name"`
	RiskScore         float64            `json:"risk_score"`
	Factors           map[string]float64 `json:"risk_factors"`
	AffectedByChanges bool               `json:"affected_by_changes"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

const historyColumns = `test_name, last_failed_at, failure_count, total_runs, avg_duration_ms`

func scanHistory(s scanner) (History, error) {
	var h History
	var last sql.NullString
	if err := s.Scan(&h.TestName, &last, &h.FailureCount, &h.TotalRuns, &h.AvgDurationMS); err != nil {
		return History{}, err
	}
	h.LastFailedAt = parseNullTime(last)
	return h, nil
}

func (l *Ledger) queryHistory(ctx context.Context, query string, args ...any) ([]History, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: history: %w", err)
	}
	defer rows.Close()
	out := []History{}
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// GetTestHistory returns the history of name; ok is false for an unseen test.
func (l *Ledger) GetTestHistory(ctx context.Context, name string) (History, bool, error) {
	h, err := scanHistory(l.db.QueryRowContext(ctx, `SELECT `+historyColumns+` FROM test_history WHERE test_name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return History{}, false, nil
	}
	if err != nil {
		return History{}, false, fmt.Errorf("ledger: history %q: %w", name, err)
	}
	return h, true, nil
}

// GetAllTestHistory returns every test, most failures first.
func (l *Ledger) GetAllTestHistory(ctx context.Context) ([]History, error) {
	return l.queryHistory(ctx, `SELECT `+historyColumns+` FROM test_history ORDER BY failure_count DESC, test_name ASC`)
}

// GetFlakyTests returns tests seen more than once whose failure rate is at
// least minRate, highest rate first.
func (l *Ledger) GetFlakyTests(ctx context.Context, minRate float64) ([]History, error) {
	return l.queryHistory(ctx, `
		SELECT `+historyColumns+` FROM test_history
		WHERE total_runs > 1 AND CAST(failure_count AS REAL) / total_runs >= ?
		ORDER BY CAST(failure_count AS REAL) / total_runs DESC, test_name ASC`, minRate)
}

// GetRecentlyFailedTests returns tests that failed within the last days,
// most recent first.
func (l *Ledger) GetRecentlyFailedTests(ctx context.Context, days int) ([]History, error) {
	since := formatTime(l.Now().Add(-time.Duration(days) * 24 * time.Hour))
	return l.queryHistory(ctx, `
		SELECT `+historyColumns+` FROM test_history
		WHERE last_failed_at IS NOT NULL AND last_failed_at >= ?
		ORDER BY last_failed_at DESC`, since)
}

// SaveRiskAnalysis upserts the latest risk assessment of a test.
func (l *Ledger) SaveRiskAnalysis(ctx context.Context, rec RiskRecord) error {
	factors, err := json.Marshal(rec.Factors)
	if err != nil {
		return fmt.Errorf("ledger: encode risk factors: %w", err)
	}
	affected := 0
	if rec.AffectedByChanges {
		affected = 1
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO risk_analysis (test_name, risk_score, risk_factors, affected_by_changes, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(test_name) DO UPDATE SET
			risk_score = excluded.risk_score,
			risk_factors = excluded.risk_factors,
			affected_by_changes = excluded.affected_by_changes,
			updated_at = excluded.updated_at`,
		rec.TestName, rec.RiskScore, string(factors), affected, l.stamp())
	if err != nil {
		return fmt.Errorf("ledger: save risk %q: %w", rec.TestName, err)
	}
	return nil
}

// GetRiskAnalysis returns the stored risk of name; ok is false when none.
func (l *Ledger) GetRiskAnalysis(ctx context.Context, name string) (RiskRecord, bool, error) {
	var (
		rec      RiskRecord
		factors  string
		affected int
		updated  string
	)
	err := l.db.QueryRowContext(ctx, `
		SELECT test_name, risk_score, risk_factors, affected_by_changes, updated_at
		FROM risk_analysis WHERE test_name = ?`, name).Scan(&rec.TestName, &rec.RiskScore, &factors, &affected, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return RiskRecord{}, false, nil
	}
	if err != nil {
		return RiskRecord{}, false, fmt.Errorf("ledger: risk %q: %w", name, err)
	}
	if err := json.Unmarshal([]byte(factors), &rec.Factors); err != nil {
		return RiskRecord{}, false, fmt.Errorf("ledger: decode risk factors %q: %w", name, err)
	}
	rec.AffectedByChanges = affected != 0
	rec.UpdatedAt = parseTime(updated)
	return rec, true, nil
}

// GetRiskAnalyses returns every stored risk record, riskiest first.
func (l *Ledger) GetRiskAnalyses(ctx context.Context) ([]RiskRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT test_name, risk_score, risk_factors, affected_by_changes, updated_at
		FROM risk_analysis ORDER BY risk_score DESC, test_name`)
	if err != nil {
		return nil, fmt.Errorf("ledger: risk analyses: %w", err)
	}
	defer rows.Close()
	out := []RiskRecord{}
	for rows.Next() {
		var (
			rec      RiskRecord
			factors  string
			affected int
			updated  string
		)
		if err := rows.Scan(&rec.TestName, &rec.RiskScore, &factors, &affected, &updated); err != nil {
			return nil, fmt.Errorf("ledger: scan risk: %w", err)
		}
		if err := json.Unmarshal([]byte(factors), &rec.Factors); err != nil {
			return nil, fmt.Errorf("ledger: decode risk factors %q: %w", rec.TestName, err)
		}
		rec.AffectedByChanges = affected != 0
		rec.UpdatedAt = parseTime(updated)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: risk analyses: %w", err)
	}
	return out, nil
}

func sortOutcomes(outcomes []report.TestOutcome) {
	slices.SortStableFunc(outcomes, func(a, b report.TestOutcome) int {
		return cmp.Compare(a.Index, b.Index)
	})
}
