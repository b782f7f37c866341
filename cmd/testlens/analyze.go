package main

import (
	"context"
	"fmt"

	"github.com/bgricker/testlens/internal/changes"
	"github.com/bgricker/testlens/internal/classify"
	"github.com/bgricker/testlens/internal/correlate"
	"github.com/bgricker/testlens/internal/filter"
	"github.com/bgricker/testlens/internal/interpreter"
	"github.com/bgricker/testlens/internal/output"
	"github.com/bgricker/testlens/internal/report"
	"github.com/bgricker/testlens/internal/risk"
	"github.com/bgricker/testlens/internal/version"
)

// classify reads raw through the interpreter and cross-checks the result
// with a framework parser when one recognizes the output.
func (a *app) classify(ctx context.Context, gw interpreter.Gateway, raw report.RawExecution, tr *interpreter.Transcript) (report.ParsedRun, *classify.CrossCheck) {
	hints := classify.Hints{
		Command:  raw.Command,
		Language: version.Hint(ctx, a.root, a.cfg.Project.Language),
		Project:  a.hints(),
	}
	c := classify.New(gw, a.logger)
	run := c.Classify(ctx, raw, hints, tr)
	check, ok := c.Verify(raw, hints, run)
	if !ok {
		return run, nil
	}
	return run, &check
}

// correlateFailures analyzes the failures selected by patterns. A bar
// tracks progress on stderr in pretty mode.
func (a *app) correlateFailures(ctx context.Context, gw interpreter.Gateway, run report.ParsedRun, cc *changes.Context, patterns []filter.Pattern, tr *interpreter.Transcript) []report.FailureAnalysis {
	targets := filter.Select(correlate.Targets(run.Outcomes), patterns, func(o report.TestOutcome) []string {
		return []string{o.Name, o.File}
	})
	if len(targets) == 0 || !gw.IsAvailable(ctx) {
		return []report.FailureAnalysis{}
	}
	var progress *output.Progress
	if a.pretty() {
		progress = output.NewProgress(a.stderr, len(targets), "Analyzing failures")
	}
	analyses := correlate.New(gw, a.logger, a.cfg.LLM.MaxParallel).CorrelateAll(ctx, targets, cc, a.hints(), tr, progress.Step)
	progress.Finish()
	return analyses
}

func (a *app) summarize(ctx context.Context, gw interpreter.Gateway, run report.ParsedRun, ranked []risk.Prioritized, tr *interpreter.Transcript) string {
	var notes []correlate.RiskNote
	for _, p := range risk.HighRisk(ranked) {
		notes = append(notes, correlate.RiskNote{Name: p.Name, Score: p.Score})
	}
	return correlate.New(gw, a.logger, a.cfg.LLM.MaxParallel).Summarize(ctx, run, notes, tr)
}

func (a *app) prioritizer() risk.Prioritizer {
	return risk.Prioritizer{High: a.cfg.Risk.HighThreshold, Medium: a.cfg.Risk.MediumThreshold}
}

// render writes the run to stdout in the configured format.
func (a *app) render(rep output.Report) error {
	if !a.pretty() {
		return output.NewJSON(a.stdout).Render(rep)
	}
	p := a.prettyRenderer()
	if err := p.RenderRun(rep.Run, rep.Analyses); err != nil {
		return err
	}
	if err := p.RenderCrossCheck(rep.Run, rep.CrossCheck); err != nil {
		return err
	}
	if high := risk.HighRisk(rep.Risk); len(high) > 0 {
		if err := p.RenderRisk(high); err != nil {
			return err
		}
	}
	if err := p.RenderSummary(rep.Summary); err != nil {
		return err
	}
	if rep.ReportPath != "" {
		if _, err := fmt.Fprintf(a.stdout, "Report: %s\n", rep.ReportPath); err != nil {
			return err
		}
	}
	return nil
}

// verdict turns a failed run into the command's error.
func verdict(run report.ParsedRun, raw report.RawExecution) error {
	if run.Failed > 0 {
		return fmt.Errorf("tests failed: %d failed", run.Failed)
	}
	if raw.ExitCode != 0 {
		return fmt.Errorf("test command exited with code %d", raw.ExitCode)
	}
	return nil
}
