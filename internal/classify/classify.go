// Package classify turns raw test command output into a ParsedRun. The
// interpreter does the reading; when it is unavailable or replies with
// something unusable, a token-counting fallback produces coarse counts.
// Framework parsers can then cross-check either result.
package classify

import (
	"context"
	"io"
	"log/slog"

	"github.com/bgricker/testlens/internal/interpreter"
	"github.com/bgricker/testlens/internal/report"
	"github.com/bgricker/testlens/internal/testparser"
)

// Classifier reads test output through a Gateway.
type Classifier struct {
	gw      interpreter.Gateway
	logger  *slog.Logger
	parsers *testparser.Registry
}

// New returns a Classifier. A nil logger discards.
func New(gw interpreter.Gateway, logger *slog.Logger) *Classifier {
	if gw == nil {
		gw = interpreter.Disabled()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Classifier{gw: gw, logger: logger, parsers: testparser.NewRegistry()}
}

// Classify never fails; Confidence on the result tells how it was built.
// Interactions are recorded on log when it is non-nil.
func (c *Classifier) Classify(ctx context.Context, raw report.RawExecution, hints Hints, log *interpreter.Transcript) report.ParsedRun {
	if !c.gw.IsAvailable(ctx) {
		c.logger.Info("interpreter unavailable, counting status tokens", "provider", c.gw.Name())
		return Fallback(raw)
	}

	req := interpreter.Request{
		Prompt:      BuildPrompt(raw, hints),
		System:      SystemPrompt,
		Temperature: Temperature,
	}
	obj, in := interpreter.GenerateStructured(ctx, c.gw, req, interpreter.Structured{
		Purpose: "classify",
		Schema:  interpreter.OutcomesSchema,
		Log:     log,
	})
	if obj == nil {
		c.logger.Warn("no structured result from interpreter, counting status tokens", "error", in.Error)
		return Fallback(raw)
	}
	if len(in.SchemaErrors) > 0 {
		c.logger.Warn("interpreter reply does not match schema", "problems", in.SchemaErrors)
	}

	run, ok := Convert(obj, raw)
	if !ok {
		c.logger.Warn("interpreter reply has no tests or summary, counting status tokens")
		return Fallback(raw)
	}
	if len(run.Outcomes) > 0 && !run.Consistent() {
		c.logger.Warn("interpreter summary disagrees with itself",
			"total", run.Total, "passed", run.Passed, "failed", run.Failed, "skipped", run.Skipped)
	}
	return run
}
