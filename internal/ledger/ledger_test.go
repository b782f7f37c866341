package ledger

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bgricker/testlens/internal/report"
)

func tempLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

// clock returns a Now func that advances by step on every call.
func clock(start time.Time, step time.Duration) func() time.Time {
	current := start
	return func() time.Time {
		now := current
		current = current.Add(step)
		return now
	}
}

func strPtr(s string) *string { return &s }

func recordRun(t *testing.T, l *Ledger, commit string, outcomes ...report.TestOutcome) *Run {
	t.Helper()
	ctx := context.Background()
	run, err := l.CreateRun(ctx, commit, "main")
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	results := make([]*Result, 0, len(outcomes))
	parsed := report.ParsedRun{Outcomes: outcomes, Total: len(outcomes), Confidence: report.Interpreted}
	for _, o := range outcomes {
		r := ResultFrom(run.ID, o, 0)
		results = append(results, &r)
		switch {
		case o.Status == report.StatusPassed:
			parsed.Passed++
		case o.Status == report.StatusSkipped:
			parsed.Skipped++
		default:
			parsed.Failed++
		}
	}
	if err := l.AddResults(ctx, results); err != nil {
		t.Fatalf("AddResults: %v", err)
	}
	run.Apply(parsed)
	run.Command = "pytest"
	if err := l.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	return run
}

func TestRunLifecycle(t *testing.T) {
	l := tempLedger(t)
	l.Now = clock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), time.Second)
	ctx := context.Background()

	run := recordRun(t, l,
		"abc123",
		report.NewOutcome(0, "test_ok", "t.py", report.StatusPassed, 10, ""),
		report.NewOutcome(1, "test_bad", "t.py", report.StatusFailed, 30, "AssertionError"),
	)
	if run.FinishedAt == nil {
		t.Fatalf("FinishRun must stamp finish time")
	}

	if err := l.AddAnalyses(ctx, run.ID, []report.FailureAnalysis{{
		TestIndex: 1, TestName: "test_bad", LikelyCause: "guard", SuspectedFile: strPtr("src/calc.py"), Confidence: 0.9,
	}}); err != nil {
		t.Fatalf("AddAnalyses: %v", err)
	}

	got, err := l.GetRunResults(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRunResults: %v", err)
	}
	if got.Run.Total != 2 || got.Run.Passed != 1 || got.Run.Failed != 1 || got.Run.Command != "pytest" || got.Run.CommitHash != "abc123" {
		t.Fatalf("unexpected run %+v", got.Run)
	}
	if !got.Run.StartedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("started_at = %v", got.Run.StartedAt)
	}
	if len(got.Results) != 2 || len(got.Failed()) != 1 || len(got.Passed()) != 1 {
		t.Fatalf("unexpected results %+v", got.Results)
	}
	if len(got.Analyses) != 1 || *got.Analyses[0].SuspectedFile != "src/calc.py" || got.Analyses[0].SuspectedCommit != nil {
		t.Fatalf("unexpected analyses %+v", got.Analyses)
	}

	parsed := got.Parsed()
	if parsed.Outcomes[0].Name != "test_ok" || parsed.Outcomes[1].ErrorMessage != "AssertionError" {
		t.Fatalf("outcomes not rebuilt in order: %+v", parsed.Outcomes)
	}
}

func TestResultsOrderedByRisk(t *testing.T) {
	l := tempLedger(t)
	ctx := context.Background()
	run, err := l.CreateRun(ctx, "", "")
	if err != nil {
		t.Fatal(err)
	}
	low := ResultFrom(run.ID, report.NewOutcome(0, "low", "", report.StatusPassed, 0, ""), 0.1)
	high := ResultFrom(run.ID, report.NewOutcome(1, "high", "", report.StatusPassed, 0, ""), 0.8)
	if err := l.AddResults(ctx, []*Result{&low, &high}); err != nil {
		t.Fatal(err)
	}
	if low.ID == 0 || high.ID == 0 {
		t.Fatalf("ids not assigned")
	}
	got, err := l.GetRunResults(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Results[0].TestName != "high" {
		t.Fatalf("expected highest risk first, got %+v", got.Results)
	}
}

func TestHistoryAggregation(t *testing.T) {
	l := tempLedger(t)
	l.Now = clock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Hour)
	ctx := context.Background()

	recordRun(t, l, "c1", report.NewOutcome(0, "test_flaky", "", report.StatusFailed, 100, "boom"))
	recordRun(t, l, "c2", report.NewOutcome(0, "test_flaky", "", report.StatusPassed, 200, ""))
	recordRun(t, l, "c3", report.NewOutcome(0, "test_flaky", "", report.StatusError, 300, "crash"),
		report.NewOutcome(1, "test_stable", "", report.StatusPassed, 5, ""))

	h, ok, err := l.GetTestHistory(ctx, "test_flaky")
	if err != nil || !ok {
		t.Fatalf("GetTestHistory: %v %v", ok, err)
	}
	if h.TotalRuns != 3 || h.FailureCount != 2 || h.AvgDurationMS != 200 {
		t.Fatalf("unexpected history %+v", h)
	}
	if h.LastFailedAt == nil {
		t.Fatalf("last_failed_at not set")
	}
	if rate := h.FailureRate(); rate < 0.66 || rate > 0.67 {
		t.Fatalf("failure rate = %v", rate)
	}

	if _, ok, err := l.GetTestHistory(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected unseen test, got %v %v", ok, err)
	}

	flaky, err := l.GetFlakyTests(ctx, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if len(flaky) != 1 || flaky[0].TestName != "test_flaky" {
		t.Fatalf("flaky = %+v", flaky)
	}

	all, err := l.GetAllTestHistory(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].TestName != "test_flaky" {
		t.Fatalf("all = %+v", all)
	}

	recent, err := l.GetRecentlyFailedTests(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 {
		t.Fatalf("recent = %+v", recent)
	}
	l.Now = func() time.Time { return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) }
	if recent, _ := l.GetRecentlyFailedTests(ctx, 7); len(recent) != 0 {
		t.Fatalf("expected no recent failures a month later, got %+v", recent)
	}
}

func TestRecentAndLatestRuns(t *testing.T) {
	l := tempLedger(t)
	l.Now = clock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Minute)
	ctx := context.Background()

	if _, err := l.GetLatestRunResults(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty ledger, got %v", err)
	}
	recordRun(t, l, "first")
	recordRun(t, l, "second")

	latest, err := l.GetLatestRunResults(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if latest.Run.CommitHash != "second" {
		t.Fatalf("latest = %+v", latest.Run)
	}
	runs, err := l.GetRecentRuns(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].CommitHash != "second" {
		t.Fatalf("recent = %+v", runs)
	}
	if _, err := l.GetRun(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := l.FinishRun(ctx, &Run{ID: 999}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound finishing unknown run, got %v", err)
	}
}

func TestRiskAnalysisUpsert(t *testing.T) {
	l := tempLedger(t)
	ctx := context.Background()
	rec := RiskRecord{TestName: "test_x", RiskScore: 0.4, Factors: map[string]float64{"historical_failure_rate": 0.5}}
	if err := l.SaveRiskAnalysis(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.RiskScore, rec.AffectedByChanges = 0.7, true
	if err := l.SaveRiskAnalysis(ctx, rec); err != nil {
		t.Fatal(err)
	}
	got, ok, err := l.GetRiskAnalysis(ctx, "test_x")
	if err != nil || !ok {
		t.Fatalf("GetRiskAnalysis: %v %v", ok, err)
	}
	if got.RiskScore != 0.7 || !got.AffectedByChanges || got.Factors["historical_failure_rate"] != 0.5 {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestRiskAnalysesOrderedByScore(t *testing.T) {
	l := tempLedger(t)
	ctx := context.Background()
	if all, err := l.GetRiskAnalyses(ctx); err != nil || len(all) != 0 {
		t.Fatalf("expected no records, got %v %v", all, err)
	}
	for _, rec := range []RiskRecord{
		{TestName: "test_low", RiskScore: 0.1},
		{TestName: "test_high", RiskScore: 0.9, AffectedByChanges: true},
		{TestName: "test_mid", RiskScore: 0.5, Factors: map[string]float64{"recent_failure": 1}},
	} {
		if err := l.SaveRiskAnalysis(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	all, err := l.GetRiskAnalyses(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, rec := range all {
		names = append(names, rec.TestName)
	}
	if strings.Join(names, ",") != "test_high,test_mid,test_low" {
		t.Fatalf("unexpected order %v", names)
	}
	if !all[0].AffectedByChanges || all[1].Factors["recent_failure"] != 1 {
		t.Fatalf("unexpected records %+v", all)
	}
}

func TestClearHistory(t *testing.T) {
	l := tempLedger(t)
	ctx := context.Background()
	recordRun(t, l, "c", report.NewOutcome(0, "t", "", report.StatusFailed, 1, "x"))
	if err := l.ClearHistory(ctx); err != nil {
		t.Fatal(err)
	}
	if runs, _ := l.GetRecentRuns(ctx, 10); len(runs) != 0 {
		t.Fatalf("runs not cleared: %+v", runs)
	}
	if all, _ := l.GetAllTestHistory(ctx); len(all) != 0 {
		t.Fatalf("history not cleared: %+v", all)
	}
}

func TestMigrateAddsMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.Exec(`
		CREATE TABLE test_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT, started_at TEXT NOT NULL, finished_at TEXT,
			commit_hash TEXT NOT NULL DEFAULT '', branch TEXT NOT NULL DEFAULT '',
			total_tests INTEGER NOT NULL DEFAULT 0, passed INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0, skipped INTEGER NOT NULL DEFAULT 0);
		CREATE TABLE test_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT, run_id INTEGER NOT NULL, test_name TEXT NOT NULL,
			test_file TEXT NOT NULL DEFAULT '', status TEXT NOT NULL, duration_ms INTEGER NOT NULL DEFAULT 0,
			output TEXT NOT NULL DEFAULT '', error_message TEXT NOT NULL DEFAULT '', risk_score REAL NOT NULL DEFAULT 0);`)
	if err != nil {
		t.Fatalf("create old schema: %v", err)
	}
	db.Close()

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open old database: %v", err)
	}
	defer l.Close()
	recordRun(t, l, "c", report.NewOutcome(4, "t", "", report.StatusPassed, 1, ""))
	got, err := l.GetLatestRunResults(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.Run.Command != "pytest" || got.Results[0].TestIndex != 4 {
		t.Fatalf("migrated columns not usable: %+v", got)
	}
}
