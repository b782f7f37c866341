package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bgricker/testlens/internal/classify"
	"github.com/bgricker/testlens/internal/clip"
	"github.com/bgricker/testlens/internal/ledger"
	"github.com/bgricker/testlens/internal/report"
	"github.com/bgricker/testlens/internal/risk"
)

// maxErrorLines bounds the error excerpt printed under a failing test.
const maxErrorLines = 8

// PrettyRenderer renders results in a human-friendly format.
type PrettyRenderer struct {
	out     io.Writer
	noColor bool
	title   cases.Caser
}

// NewPretty creates a PrettyRenderer writing to the provided writer. When
// noColor is false, fatih/color still drops escapes for non-terminals.
func NewPretty(out io.Writer, noColor bool) *PrettyRenderer {
	return &PrettyRenderer{out: out, noColor: noColor, title: cases.Title(language.English)}
}

func (p *PrettyRenderer) paint(attrs ...color.Attribute) func(a ...any) string {
	c := color.New(attrs...)
	if p.noColor {
		c.DisableColor()
	}
	return c.SprintFunc()
}

// RenderRun shows each outcome, its analysis if any, and the summary line.
func (p *PrettyRenderer) RenderRun(run report.ParsedRun, analyses []report.FailureAnalysis) error {
	red := p.paint(color.FgRed)
	green := p.paint(color.FgGreen)
	yellow := p.paint(color.FgYellow)
	faint := p.paint(color.Faint)

	var b strings.Builder
	for _, o := range run.Outcomes {
		glyph := statusGlyph(o.Status)
		switch {
		case o.Status == report.StatusPassed:
			glyph = green(glyph)
		case o.Status.IsFailure():
			glyph = red(glyph)
		default:
			glyph = yellow(glyph)
		}
		label := o.Name
		if o.File != "" {
			label += faint(" (" + o.File + ")")
		}
		fmt.Fprintf(&b, "%s %s %s\n", glyph, label, faint(formatDuration(o.DurationMS)))
		if o.Status.IsFailure() && o.ErrorMessage != "" {
			fmt.Fprintf(&b, "%s\n", indent(excerpt(o.ErrorMessage), "    "))
		}
		if a, ok := report.AnalysisFor(analyses, o.Index); ok {
			p.writeAnalysis(&b, a)
		}
	}
	if len(run.Outcomes) > 0 {
		b.WriteString("\n")
	}

	summary := fmt.Sprintf("SUMMARY: %d passed, %d failed, %d skipped (%s)", run.Passed, run.Failed, run.Skipped, formatDuration(run.DurationMS))
	if run.Failed > 0 {
		summary = red(summary)
	} else {
		summary = green(summary)
	}
	fmt.Fprintln(&b, summary)
	if run.Advisory() {
		fmt.Fprintln(&b, yellow(fmt.Sprintf("note: heuristic fallback, counts are advisory (confidence %.1f)", run.Confidence)))
	}
	_, err := io.WriteString(p.out, b.String())
	return err
}

func (p *PrettyRenderer) writeAnalysis(b *strings.Builder, a report.FailureAnalysis) {
	cyan := p.paint(color.FgCyan)
	bold := p.paint(color.Bold)
	fmt.Fprintf(b, "    %s %s %s\n", cyan("analysis:"), bold(a.LikelyCause), cyan(fmt.Sprintf("[%s]", percentage(a.Confidence*100))))
	if a.SuspectedFile != nil {
		fmt.Fprintf(b, "      file: %s\n", *a.SuspectedFile)
	}
	if a.SuspectedCommit != nil {
		fmt.Fprintf(b, "      commit: %s\n", *a.SuspectedCommit)
	}
	if a.Explanation != "" {
		fmt.Fprintf(b, "%s\n", indent(a.Explanation, "      "))
	}
	if a.SuggestedFix != "" {
		fmt.Fprintf(b, "      fix: %s\n", a.SuggestedFix)
	}
}

// RenderCrossCheck prints the framework parser's counts when they disagree
// with the run or the run is only advisory.
func (p *PrettyRenderer) RenderCrossCheck(run report.ParsedRun, check *classify.CrossCheck) error {
	if check == nil || (check.Agrees && !run.Advisory()) {
		return nil
	}
	yellow := p.paint(color.FgYellow)
	c := check.Counts
	line := fmt.Sprintf("%s summary: %d passed, %d failed, %d skipped", check.Parser, c.Passed, c.Failed, c.Skipped)
	if !check.Agrees {
		line += " (differs from the counts above)"
	}
	var b strings.Builder
	fmt.Fprintln(&b, yellow(line))
	for _, f := range c.FailedTests {
		label := f.Name
		if f.File != "" {
			label += " (" + f.File + ")"
		}
		if f.Reason != "" {
			label += ": " + f.Reason
		}
		fmt.Fprintf(&b, "  %s %s\n", statusGlyph(report.StatusFailed), label)
	}
	_, err := io.WriteString(p.out, b.String())
	return err
}

// RenderRisk prints the prioritized tests as a table.
func (p *PrettyRenderer) RenderRisk(tests []risk.Prioritized) error {
	if len(tests) == 0 {
		return nil
	}
	bold := p.paint(color.Bold)
	colors := map[risk.Category]func(a ...any) string{
		risk.High:   p.paint(color.FgRed),
		risk.Medium: p.paint(color.FgYellow),
		risk.Low:    p.paint(color.FgGreen),
	}

	var b strings.Builder
	fmt.Fprintln(&b, bold("RISK"))
	for _, t := range tests {
		label := fmt.Sprintf("%-6s", p.title.String(string(t.Category)))
		if paint, ok := colors[t.Category]; ok {
			label = paint(label)
		}
		fmt.Fprintf(&b, "  %3d. %s %5.2f  %s\n", t.Rank, label, t.Score, t.Name)
	}
	_, err := io.WriteString(p.out, b.String())
	return err
}

// RenderSummary prints the interpreter's free-text summary.
func (p *PrettyRenderer) RenderSummary(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	bold := p.paint(color.Bold)
	_, err := fmt.Fprintf(p.out, "%s\n%s\n", bold("SUMMARY OF FAILURES"), indent(text, "  "))
	return err
}

// RenderHistory prints per-test aggregates.
func (p *PrettyRenderer) RenderHistory(history []ledger.History) error {
	if len(history) == 0 {
		_, err := fmt.Fprintln(p.out, "No test history recorded.")
		return err
	}
	bold := p.paint(color.Bold)
	red := p.paint(color.FgRed)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", bold(fmt.Sprintf("%-8s %-6s %-10s %-20s %s", "FAILURES", "RUNS", "AVG", "LAST FAILED", "TEST")))
	for _, h := range history {
		rate := fmt.Sprintf("%-8s", fmt.Sprintf("%d/%d", h.FailureCount, h.TotalRuns))
		if h.FailureCount > 0 {
			rate = red(rate)
		}
		last := "-"
		if h.LastFailedAt != nil {
			last = formatTime(*h.LastFailedAt)
		}
		fmt.Fprintf(&b, "%s %-6s %-10s %-20s %s\n", rate, percentage(h.FailureRate()*100), formatDuration(int64(h.AvgDurationMS)), last, h.TestName)
	}
	_, err := io.WriteString(p.out, b.String())
	return err
}

// RenderRuns lists stored runs, newest first.
func (p *PrettyRenderer) RenderRuns(runs []ledger.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(p.out, "No runs recorded.")
		return err
	}
	red := p.paint(color.FgRed)
	green := p.paint(color.FgGreen)

	var b strings.Builder
	for _, r := range runs {
		counts := fmt.Sprintf("%d passed, %d failed, %d skipped", r.Passed, r.Failed, r.Skipped)
		if r.Failed > 0 {
			counts = red(counts)
		} else {
			counts = green(counts)
		}
		ref := r.Branch
		if r.CommitHash != "" {
			ref = strings.TrimSpace(ref + " " + clip.TextWith(r.CommitHash, 8, ""))
		}
		fmt.Fprintf(&b, "#%-4d %s  %s (%s) %s\n", r.ID, formatTime(r.StartedAt), counts, formatDuration(r.DurationMS), ref)
	}
	_, err := io.WriteString(p.out, b.String())
	return err
}

func excerpt(msg string) string {
	lines := strings.Split(strings.TrimSpace(msg), "\n")
	if len(lines) <= maxErrorLines {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:maxErrorLines], "\n") + fmt.Sprintf("\n... %d more lines", len(lines)-maxErrorLines)
}

func statusGlyph(status report.TestStatus) string {
	switch status {
	case report.StatusPassed:
		return "✓"
	case report.StatusFailed:
		return "✗"
	case report.StatusError:
		return "!"
	case report.StatusSkipped:
		return "-"
	default:
		return "?"
	}
}

func indent(s, pad string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = pad + lines[i]
	}
	return strings.Join(lines, "\n")
}

// formatDuration renders milliseconds as 850ms, 1.50s or 2m 5.0s.
func formatDuration(ms int64) string {
	switch {
	case ms < 0:
		return "0ms"
	case ms < 1000:
		return fmt.Sprintf("%dms", ms)
	case ms < 60000:
		return fmt.Sprintf("%.2fs", float64(ms)/1000)
	default:
		return fmt.Sprintf("%dm %.1fs", ms/60000, float64(ms%60000)/1000)
	}
}

func percentage(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
