package correlate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bgricker/testlens/internal/clip"
	"github.com/bgricker/testlens/internal/interpreter"
	"github.com/bgricker/testlens/internal/report"
)

// SummarySystemPrompt frames the free-text run summary.
const SummarySystemPrompt = `You are an expert software testing assistant. Your role is to:
1. Analyze code changes and predict which tests are likely to be affected
2. Identify potential causes of test failures
3. Provide actionable insights for debugging

Be concise and technical. Focus on practical, specific recommendations.
When providing JSON responses, ensure they are valid and parseable.`

// SummaryTemperature leaves room for prose.
const SummaryTemperature = 0.5

// RiskNote is a risk prediction included in the summary prompt.
type RiskNote struct {
	Name  string
	Score float64
}

// BuildSummaryPrompt renders the results summary prompt.
func BuildSummaryPrompt(run report.ParsedRun, risks []RiskNote) string {
	lines := []string{
		"Summarize the following test results and provide insights.",
		"",
		"## Results",
		fmt.Sprintf("- Passed: %d", run.Passed),
		fmt.Sprintf("- Failed: %d", run.Failed),
		fmt.Sprintf("- Skipped: %d", run.Skipped),
	}

	if failures := run.Failures(); len(failures) > 0 {
		lines = append(lines, "", "## Failed Tests")
		for i, f := range failures {
			if i == 10 {
				break
			}
			lines = append(lines, "- "+f.Name)
			if f.ErrorMessage != "" {
				lines = append(lines, "  Error: "+clip.TextWith(f.ErrorMessage, 200, "..."))
			}
		}
	}

	if len(risks) > 0 {
		lines = append(lines, "", "## Risk Predictions")
		for i, r := range risks {
			if i == 10 {
				break
			}
			lines = append(lines, fmt.Sprintf("- %s (predicted risk: %.1f%%)", r.Name, r.Score*100))
		}
	}

	lines = append(lines,
		"",
		"## Task",
		"Provide a brief summary of the test results, including:",
		"- Overall health assessment",
		"- Patterns in failures (if any)",
		"- Accuracy of risk predictions (if available)",
		"- Recommended next steps",
	)
	return strings.Join(lines, "\n")
}

// Summarize asks the interpreter for a short prose summary of run. It
// returns "" when the interpreter is unavailable or the call fails.
func (c *Correlator) Summarize(ctx context.Context, run report.ParsedRun, risks []RiskNote, tr *interpreter.Transcript) string {
	if !c.gw.IsAvailable(ctx) {
		return ""
	}
	req := interpreter.Request{
		Prompt:      BuildSummaryPrompt(run, risks),
		System:      SummarySystemPrompt,
		Temperature: SummaryTemperature,
	}
	started := time.Now()
	resp := c.gw.Generate(ctx, req)
	elapsed := time.Since(started)

	model := resp.Model
	if model == "" {
		model = c.gw.Model()
	}
	tr.Add(interpreter.Interaction{
		Purpose:    "summarize",
		Provider:   c.gw.Name(),
		Model:      model,
		System:     req.System,
		Prompt:     req.Prompt,
		Content:    resp.Content,
		Usage:      resp.Usage,
		Error:      resp.Err(),
		StartedAt:  started,
		Duration:   elapsed,
		DurationMS: elapsed.Milliseconds(),
	})
	if !resp.OK() {
		c.logger.Warn("summary unavailable", "error", resp.Err())
		return ""
	}
	return strings.TrimSpace(resp.Content)
}
