package correlate

import (
	"fmt"
	"strings"

	"github.com/bgricker/testlens/internal/changes"
	"github.com/bgricker/testlens/internal/clip"
	"github.com/bgricker/testlens/internal/report"
)

const (
	// MaxErrorChars bounds the error message placed in the prompt.
	MaxErrorChars = 5000
	// MaxHintChars bounds the project hints block.
	MaxHintChars = 5000
	// MaxFiles and MaxCommits bound the change context listing.
	MaxFiles   = 15
	MaxCommits = 10
	// Temperature keeps the analysis focused.
	Temperature = 0.3
)

// SystemPrompt frames the interpreter as a failure analyst.
const SystemPrompt = `You are a software testing expert who analyzes test failures to identify root causes.

Your job is to:
1. Analyze test failure error messages
2. Consider recent code changes from git
3. Identify the most likely cause of the failure
4. Suggest specific fixes

Be specific and actionable in your analysis. Focus on:
- What likely broke
- Which file or commit is suspicious
- Concrete steps to fix the issue

Return ONLY valid JSON matching the schema provided.`

const task = `## Task

Identify the most likely cause of this test failure. Consider:
1. The error message and stack trace
2. Recently changed files that might be related
3. Recent commits that might have introduced the issue

Provide a specific, actionable analysis.

Respond with valid JSON matching this exact schema:
` + "```json" + `
{
  "likely_cause": "Brief description of what likely caused the failure",
  "suspected_file": "path/to/file.py or null if unknown",
  "suspected_commit": "commit_hash or null if unknown",
  "confidence": 0.75,
  "explanation": "Detailed explanation of why you think this is the cause",
  "suggested_fix": "Specific steps or code changes to fix the issue"
}
` + "```" + `

Important: Return ONLY the JSON, no additional text.`

// BuildPrompt renders the analysis prompt for one failing outcome. cc and
// hints may be empty.
func BuildPrompt(outcome report.TestOutcome, cc *changes.Context, hints string) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	file := outcome.File
	if file == "" {
		file = "unknown"
	}
	line("Analyze the following test failure and identify the root cause.")
	line("")
	line("## Failing Test")
	line("Test: %s", outcome.Name)
	line("File: %s", file)
	line("")
	line("## Error Message")
	line("```")
	line("%s", clip.Text(outcome.ErrorMessage, MaxErrorChars))
	line("```")
	line("")

	if cc != nil {
		if len(cc.Files) > 0 {
			entries := make([]string, 0, len(cc.Files))
			for _, f := range cc.Files {
				entries = append(entries, fmt.Sprintf("- %s (%s)", f.Path, f.ChangeType))
			}
			line("## Recently Changed Files")
			line("")
			for _, e := range clip.Head(entries, MaxFiles, "- ... and %d more") {
				line("%s", e)
			}
			line("")
		}
		if len(cc.Commits) > 0 {
			entries := make([]string, 0, len(cc.Commits))
			for _, c := range cc.Commits {
				entries = append(entries, fmt.Sprintf("- [%s] %s", c.ShortHash, subject(c.Message)))
			}
			line("## Recent Commits")
			line("")
			for _, e := range clip.Head(entries, MaxCommits, "") {
				line("%s", e)
			}
			line("")
		}
	}

	if strings.TrimSpace(hints) != "" {
		line("## Project Hints")
		line("%s", clip.TextWith(hints, MaxHintChars, "\n... (hints truncated)"))
		line("")
	}
	b.WriteString(task)
	return b.String()
}

// subject returns the first line of a commit message, at most 80 runes.
func subject(message string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	return clip.TextWith(first, 80, "...")
}
