// Package correlate explains failing tests against recent changes by asking
// the interpreter for a likely cause, suspect file and commit, and a fix.
package correlate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/bgricker/testlens/internal/changes"
	"github.com/bgricker/testlens/internal/interpreter"
	"github.com/bgricker/testlens/internal/report"
)

// DefaultParallel is the number of concurrent correlations in CorrelateAll.
const DefaultParallel = 4

// DefaultConfidence is used when the interpreter omits or garbles confidence.
const DefaultConfidence = 0.5

// Correlator produces FailureAnalysis records through a Gateway.
type Correlator struct {
	gw       interpreter.Gateway
	logger   *slog.Logger
	parallel int
}

// New returns a Correlator. A nil logger discards; parallel below one uses
// DefaultParallel.
func New(gw interpreter.Gateway, logger *slog.Logger, parallel int) *Correlator {
	if gw == nil {
		gw = interpreter.Disabled()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if parallel < 1 {
		parallel = DefaultParallel
	}
	return &Correlator{gw: gw, logger: logger, parallel: parallel}
}

// Correlate analyzes one failing outcome. It returns nil when the interpreter
// is unavailable, the outcome has no error message, or no structured reply
// could be recovered.
func (c *Correlator) Correlate(ctx context.Context, outcome report.TestOutcome, cc *changes.Context, hints string, tr *interpreter.Transcript) *report.FailureAnalysis {
	if strings.TrimSpace(outcome.ErrorMessage) == "" {
		return nil
	}
	if !c.gw.IsAvailable(ctx) {
		return nil
	}

	req := interpreter.Request{
		Prompt:      BuildPrompt(outcome, cc, hints),
		System:      SystemPrompt,
		Temperature: Temperature,
	}
	obj, in := interpreter.GenerateStructured(ctx, c.gw, req, interpreter.Structured{
		Purpose: "correlate:" + outcome.Name,
		Schema:  interpreter.AnalysisSchema,
		Log:     tr,
	})
	if obj == nil {
		c.logger.Warn("no analysis for failing test", "test", outcome.Name, "error", in.Error)
		return nil
	}
	if len(in.SchemaErrors) > 0 {
		c.logger.Debug("analysis does not match schema", "test", outcome.Name, "problems", in.SchemaErrors)
	}
	analysis := Normalize(outcome, obj)
	return &analysis
}

// CorrelateAll analyzes every failing outcome that carries an error message.
// Calls run concurrently, bounded by the configured parallelism; results keep
// input order and outcomes without an analysis are omitted. onDone, when
// non-nil, is called once per analyzed outcome and must be safe for
// concurrent use.
func (c *Correlator) CorrelateAll(ctx context.Context, outcomes []report.TestOutcome, cc *changes.Context, hints string, tr *interpreter.Transcript, onDone func()) []report.FailureAnalysis {
	targets := Targets(outcomes)
	if len(targets) == 0 {
		return []report.FailureAnalysis{}
	}

	results := make([]*report.FailureAnalysis, len(targets))
	var g errgroup.Group
	g.SetLimit(c.parallel)
	for i, outcome := range targets {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("correlation panicked", "test", outcome.Name, "panic", fmt.Sprint(r))
					results[i] = nil
				}
				if onDone != nil {
					onDone()
				}
			}()
			results[i] = c.Correlate(ctx, outcome, cc, hints, tr)
			return nil
		})
	}
	_ = g.Wait()

	analyses := make([]report.FailureAnalysis, 0, len(results))
	for _, a := range results {
		if a != nil {
			analyses = append(analyses, *a)
		}
	}
	return analyses
}

// Targets returns the outcomes CorrelateAll would analyze.
func Targets(outcomes []report.TestOutcome) []report.TestOutcome {
	var out []report.TestOutcome
	for _, o := range outcomes {
		if o.Status.IsFailure() && strings.TrimSpace(o.ErrorMessage) != "" {
			out = append(out, o)
		}
	}
	return out
}

// Normalize converts an interpreter reply into a FailureAnalysis for outcome.
func Normalize(outcome report.TestOutcome, obj map[string]any) report.FailureAnalysis {
	cause := text(obj["likely_cause"])
	if cause == "" {
		cause = "Unknown"
	}
	return report.FailureAnalysis{
		TestIndex:       outcome.Index,
		TestName:        outcome.Name,
		LikelyCause:     cause,
		SuspectedFile:   optional(obj["suspected_file"]),
		SuspectedCommit: optional(obj["suspected_commit"]),
		Confidence:      confidence(obj["confidence"]),
		Explanation:     text(obj["explanation"]),
		SuggestedFix:    text(obj["suggested_fix"]),
	}
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func optional(v any) *string {
	s := text(v)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return nil
	}
	return &s
}

func confidence(v any) float64 {
	if v == nil {
		return DefaultConfidence
	}
	f, ok := report.AsFloat(v)
	if !ok {
		return DefaultConfidence
	}
	return math.Max(0, math.Min(1, f))
}
