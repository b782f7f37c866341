package output

import (
	"cmp"
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bgricker/testlens/internal/changes"
	"github.com/bgricker/testlens/internal/report"
	"github.com/bgricker/testlens/internal/risk"
)

// Display limits for the change context sections.
const (
	MaxReportFiles   = 20
	MaxReportCommits = 10
)

//go:embed templates/report.html
var templateFS embed.FS

var reportTemplate = template.Must(template.New("report.html").Funcs(template.FuncMap{
	"duration":   formatDuration,
	"percentage": percentage,
	"datetime":   formatTime,
	"title":      func(s string) string { return cases.Title(language.English).String(s) },
	"glyph":      statusGlyph,
	"ratio":      func(f float64) string { return percentage(f * 100) },
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}).ParseFS(templateFS, "templates/report.html"))

// HTMLData is everything a report can show. Only Run is required.
type HTMLData struct {
	Title       string
	Project     string
	GeneratedAt time.Time
	RunID       int64
	Commit      string
	Branch      string
	Command     string
	Run         report.ParsedRun
	Analyses    []report.FailureAnalysis
	Changes     *changes.Context
	Risk        []risk.Prioritized
	Summary     string
}

type failureView struct {
	report.TestOutcome
	Analysis *report.FailureAnalysis
}

type htmlView struct {
	HTMLData
	PassRate       float64
	Failures       []failureView
	Passed         []report.TestOutcome
	Skipped        []report.TestOutcome
	Files          []changes.ChangedFile
	HiddenFiles    int
	Commits        []changes.Commit
	HiddenCommits  int
	AnalysisCount  int
	HighRiskCount  int
	HasChangeInfo  bool
	AdvisoryCounts bool
}

func newView(d HTMLData) htmlView {
	if d.Title == "" {
		d.Title = "Test Results"
	}
	if d.GeneratedAt.IsZero() {
		d.GeneratedAt = time.Now()
	}
	v := htmlView{HTMLData: d, AnalysisCount: len(d.Analyses), AdvisoryCounts: d.Run.Advisory()}
	if d.Run.Total > 0 {
		v.PassRate = float64(d.Run.Passed) / float64(d.Run.Total) * 100
	}
	for _, o := range d.Run.Outcomes {
		switch {
		case o.Status.IsFailure():
			fv := failureView{TestOutcome: o}
			if a, ok := report.AnalysisFor(d.Analyses, o.Index); ok {
				fv.Analysis = &a
			}
			v.Failures = append(v.Failures, fv)
		case o.Status == report.StatusPassed:
			v.Passed = append(v.Passed, o)
		default:
			v.Skipped = append(v.Skipped, o)
		}
	}
	slowest := func(a, b report.TestOutcome) int { return cmp.Compare(b.DurationMS, a.DurationMS) }
	slices.SortStableFunc(v.Failures, func(a, b failureView) int { return slowest(a.TestOutcome, b.TestOutcome) })
	slices.SortStableFunc(v.Passed, slowest)
	slices.SortStableFunc(v.Skipped, slowest)

	for _, p := range d.Risk {
		if p.Category == risk.High {
			v.HighRiskCount++
		}
	}
	if d.Changes != nil {
		v.HasChangeInfo = true
		v.Files, v.HiddenFiles = head(d.Changes.Files, MaxReportFiles)
		v.Commits, v.HiddenCommits = head(d.Changes.Commits, MaxReportCommits)
	}
	return v
}

func head[T any](items []T, n int) ([]T, int) {
	if len(items) <= n {
		return items, 0
	}
	return items[:n], len(items) - n
}

// RenderHTML writes the report document to w.
func RenderHTML(w io.Writer, d HTMLData) error {
	if err := reportTemplate.Execute(w, newView(d)); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}

// WriteHTML renders the report into path, creating parent directories.
func WriteHTML(path string, d HTMLData) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %q: %w", path, err)
	}
	if err := RenderHTML(f, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
