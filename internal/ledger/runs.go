package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bgricker/testlens/internal/report"
)

// Run is one invocation of the test command.
type Run struct {
	ID         int64      `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	CommitHash string     `json:"commit_hash"`
	Branch     string     `json:"branch"`
	Total      int        `json:"total_tests"`
	Passed     int        `json:"passed"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
	DurationMS int64      `json:"duration_ms"`
	Confidence float64    `json:"confidence"`
	Command    string     `json:"command"`
	RawOutput  string     `json:"-"`
}

// Apply copies the counts of a classified run onto r.
func (r *Run) Apply(parsed report.ParsedRun) {
	r.Total = parsed.Total
	r.Passed = parsed.Passed
	r.Failed = parsed.Failed
	r.Skipped = parsed.Skipped
	r.DurationMS = parsed.DurationMS
	r.Confidence = parsed.Confidence
	r.RawOutput = parsed.RawOutput
}

// Result is one stored test outcome.
type Result struct {
	ID           int64             `json:"id"`
	RunID        int64             `json:"run_id"`
	TestIndex    int               `json:"test_index"`
	TestName     string            `json:"test_name"`
	TestFile     string            `json:"test_file"`
	Status       report.TestStatus `json:"status"`
	DurationMS   int64             `json:"duration_ms"`
	Output       string            `json:"output"`
	ErrorMessage string            `json:"error_message"`
	RiskScore    float64           `json:"risk_score"`
}

// ResultFrom converts a classified outcome into a Result for runID.
func ResultFrom(runID int64, o report.TestOutcome, riskScore float64) Result {
	return Result{
		RunID:        runID,
		TestIndex:    o.Index,
		TestName:     o.Name,
		TestFile:     o.File,
		Status:       o.Status,
		DurationMS:   o.DurationMS,
		ErrorMessage: o.ErrorMessage,
		RiskScore:    riskScore,
	}
}

// Outcome converts r back into a TestOutcome.
func (r Result) Outcome() report.TestOutcome {
	return report.NewOutcome(r.TestIndex, r.TestName, r.TestFile, r.Status, r.DurationMS, r.ErrorMessage)
}

// RunResults is a run with its stored results and analyses.
type RunResults struct {
	Run      Run                      `json:"run"`
	Results  []Result                 `json:"results"`
	Analyses []report.FailureAnalysis `json:"analyses"`
}

// Failed returns the results with a failed or error status.
func (rr *RunResults) Failed() []Result {
	return rr.filter(func(s report.TestStatus) bool { return s.IsFailure() })
}

// Passed returns the passing results.
func (rr *RunResults) Passed() []Result {
	return rr.filter(func(s report.TestStatus) bool { return s == report.StatusPassed })
}

func (rr *RunResults) filter(keep func(report.TestStatus) bool) []Result {
	var out []Result
	for _, r := range rr.Results {
		if keep(r.Status) {
			out = append(out, r)
		}
	}
	return out
}

// Parsed rebuilds the classified run from stored rows, in test order.
func (rr *RunResults) Parsed() report.ParsedRun {
	outcomes := make([]report.TestOutcome, len(rr.Results))
	for i, r := range rr.Results {
		outcomes[i] = r.Outcome()
	}
	sortOutcomes(outcomes)
	return report.ParsedRun{
		Outcomes:   outcomes,
		Total:      rr.Run.Total,
		Passed:     rr.Run.Passed,
		Failed:     rr.Run.Failed,
		Skipped:    rr.Run.Skipped,
		DurationMS: rr.Run.DurationMS,
		RawOutput:  rr.Run.RawOutput,
		Confidence: rr.Run.Confidence,
	}
}

// CreateRun starts a run for the given commit and branch.
func (l *Ledger) CreateRun(ctx context.Context, commit, branch string) (*Run, error) {
	now := l.Now()
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO test_runs (started_at, commit_hash, branch) VALUES (?, ?, ?)`,
		formatTime(now), commit, branch)
	if err != nil {
		return nil, fmt.Errorf("ledger: create run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("ledger: create run: %w", err)
	}
	started := parseTime(formatTime(now))
	return &Run{ID: id, StartedAt: started, CommitHash: commit, Branch: branch, Confidence: report.Interpreted}, nil
}

// FinishRun stamps the finish time and stores the run's counts.
func (l *Ledger) FinishRun(ctx context.Context, run *Run) error {
	now := l.Now()
	res, err := l.db.ExecContext(ctx, `
		UPDATE test_runs
		SET finished_at = ?, total_tests = ?, passed = ?, failed = ?, skipped = ?,
			duration_ms = ?, confidence = ?, command = ?, raw_output = ?
		WHERE id = ?`,
		formatTime(now), run.Total, run.Passed, run.Failed, run.Skipped,
		run.DurationMS, run.Confidence, run.Command, run.RawOutput, run.ID)
	if err != nil {
		return fmt.Errorf("ledger: finish run %d: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("ledger: finish run %d: %w", run.ID, ErrNotFound)
	}
	finished := parseTime(formatTime(now))
	run.FinishedAt = &finished
	return nil
}

// AddResult stores one result and folds it into the test's history.
func (l *Ledger) AddResult(ctx context.Context, result *Result) error {
	return l.AddResults(ctx, []*Result{result})
}

// AddResults stores results in one transaction, updating history for each.
// IDs are filled in on success.
func (l *Ledger) AddResults(ctx context.Context, results []*Result) error {
	stamp := l.stamp()
	return l.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range results {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO test_results
				(run_id, test_index, test_name, test_file, status, duration_ms, output, error_message, risk_score)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.RunID, r.TestIndex, r.TestName, r.TestFile, string(r.Status), r.DurationMS, r.Output, r.ErrorMessage, r.RiskScore)
			if err != nil {
				return fmt.Errorf("ledger: add result %q: %w", r.TestName, err)
			}
			if r.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("ledger: add result %q: %w", r.TestName, err)
			}
			if err := updateHistory(ctx, tx, r, stamp); err != nil {
				return err
			}
		}
		return nil
	})
}

func updateHistory(ctx context.Context, tx *sql.Tx, r *Result, stamp string) error {
	failed := 0
	var lastFailed any
	if r.Status.IsFailure() {
		failed = 1
		lastFailed = stamp
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO test_history (test_name, last_failed_at, failure_count, total_runs, avg_duration_ms)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(test_name) DO UPDATE SET
			last_failed_at = COALESCE(excluded.last_failed_at, test_history.last_failed_at),
			failure_count = test_history.failure_count + excluded.failure_count,
			avg_duration_ms = (test_history.avg_duration_ms * test_history.total_runs + excluded.avg_duration_ms)
				/ (test_history.total_runs + 1),
			total_runs = test_history.total_runs + 1`,
		r.TestName, lastFailed, failed, float64(r.DurationMS))
	if err != nil {
		return fmt.Errorf("ledger: update history %q: %w", r.TestName, err)
	}
	return nil
}

// AddAnalyses stores the failure analyses of a run.
func (l *Ledger) AddAnalyses(ctx context.Context, runID int64, analyses []report.FailureAnalysis) error {
	return l.withTx(ctx, func(tx *sql.Tx) error {
		for _, a := range analyses {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO failure_analyses
				(run_id, test_index, test_name, likely_cause, suspected_file, suspected_commit, confidence, explanation, suggested_fix)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, a.TestIndex, a.TestName, a.LikelyCause, nullable(a.SuspectedFile), nullable(a.SuspectedCommit),
				a.Confidence, a.Explanation, a.SuggestedFix)
			if err != nil {
				return fmt.Errorf("ledger: add analysis %q: %w", a.TestName, err)
			}
		}
		return nil
	})
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func optional(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

const runColumns = `id, started_at, finished_at, commit_hash, branch, total_tests, passed, failed, skipped,
	duration_ms, confidence, command, raw_output`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r        Run
		started  string
		finished sql.NullString
	)
	err := s.Scan(&r.ID, &started, &finished, &r.CommitHash, &r.Branch, &r.Total, &r.Passed, &r.Failed, &r.Skipped,
		&r.DurationMS, &r.Confidence, &r.Command, &r.RawOutput)
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseNullTime(finished)
	return r, nil
}

// GetRun returns the run with id, or ErrNotFound.
func (l *Ledger) GetRun(ctx context.Context, id int64) (*Run, error) {
	r, err := scanRun(l.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM test_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ledger: run %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: get run %d: %w", id, err)
	}
	return &r, nil
}

// GetRecentRuns returns up to limit runs, newest first.
func (l *Ledger) GetRecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.db.QueryContext(ctx, `SELECT `+runColumns+` FROM test_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: recent runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRunResults returns run id with its results (highest risk first) and
// its failure analyses.
func (l *Ledger) GetRunResults(ctx context.Context, id int64) (*RunResults, error) {
	run, err := l.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &RunResults{Run: *run, Results: []Result{}, Analyses: []report.FailureAnalysis{}}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, run_id, test_index, test_name, test_file, status, duration_ms, output, error_message, risk_score
		FROM test_results WHERE run_id = ? ORDER BY risk_score DESC, test_index ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("ledger: results for run %d: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var r Result
		var status string
		if err := rows.Scan(&r.ID, &r.RunID, &r.TestIndex, &r.TestName, &r.TestFile, &status,
			&r.DurationMS, &r.Output, &r.ErrorMessage, &r.RiskScore); err != nil {
			return nil, fmt.Errorf("ledger: scan result: %w", err)
		}
		r.Status = report.ParseStatus(status)
		out.Results = append(out.Results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: results for run %d: %w", id, err)
	}

	arows, err := l.db.QueryContext(ctx, `
		SELECT test_index, test_name, likely_cause, suspected_file, suspected_commit, confidence, explanation, suggested_fix
		FROM failure_analyses WHERE run_id = ? ORDER BY test_index ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("ledger: analyses for run %d: %w", id, err)
	}
	defer arows.Close()
	for arows.Next() {
		var a report.FailureAnalysis
		var file, commit sql.NullString
		if err := arows.Scan(&a.TestIndex, &a.TestName, &a.LikelyCause, &file, &commit,
			&a.Confidence, &a.Explanation, &a.SuggestedFix); err != nil {
			return nil, fmt.Errorf("ledger: scan analysis: %w", err)
		}
		a.SuspectedFile, a.SuspectedCommit = optional(file), optional(commit)
		out.Analyses = append(out.Analyses, a)
	}
	return out, arows.Err()
}

// GetLatestRunResults returns the most recent run, or ErrNotFound when the
// ledger is empty.
func (l *Ledger) GetLatestRunResults(ctx context.Context) (*RunResults, error) {
	var id int64
	err := l.db.QueryRowContext(ctx, `SELECT id FROM test_runs ORDER BY started_at DESC, id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ledger: latest run: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: latest run: %w", err)
	}
	return l.GetRunResults(ctx, id)
}
