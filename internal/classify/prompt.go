package classify

import (
	"fmt"
	"strings"

	"github.com/bgricker/testlens/internal/clip"
	"github.com/bgricker/testlens/internal/report"
)

const (
	// MaxOutputChars bounds stdout and stderr separately.
	MaxOutputChars = 15000
	// MaxHintChars bounds the project hints block.
	MaxHintChars = 5000
	// Temperature favors repeatable extraction.
	Temperature = 0.1
)

// SystemPrompt frames the interpreter as a framework-agnostic parser.
const SystemPrompt = `You are a test output parser. Your job is to analyze test framework output from ANY language or framework and extract structured test results.

You understand many testing frameworks:
- Python: pytest, unittest, nose
- JavaScript/TypeScript: Jest, Mocha, Jasmine, Vitest
- Go: go test
- Java: JUnit, TestNG
- Rust: cargo test
- Ruby: RSpec, Minitest
- And many others

Be accurate and thorough in extracting:
1. Individual test names/identifiers
2. Test status (passed/failed/skipped/error)
3. Test file paths
4. Duration if available
5. Error messages for failures

Return ONLY valid JSON matching the exact schema provided.`

const instructions = `Extract ALL individual test results. For each test, provide:
- name: The full test identifier/name
- file: The test file path (if identifiable)
- status: One of 'passed', 'failed', 'skipped', or 'error'
- duration_ms: Test duration in milliseconds (0 if not available)
- error_message: Full error message if failed (null otherwise)

Also provide summary statistics:
- total: Total number of tests
- passed: Number of passed tests
- failed: Number of failed tests
- skipped: Number of skipped tests
- duration_ms: Total test run duration

Respond with valid JSON matching this exact schema:
` + "```json" + `
{
  "tests": [
    {
      "name": "test_name_or_identifier",
      "file": "path/to/test/file",
      "status": "passed|failed|skipped|error",
      "duration_ms": 0,
      "error_message": "error details or null"
    }
  ],
  "summary": {
    "total": 10,
    "passed": 8,
    "failed": 1,
    "skipped": 1,
    "duration_ms": 1234
  }
}
` + "```" + `

Important: Return ONLY the JSON, no additional text or explanations.`

// Hints steer the interpreter toward the right framework.
type Hints struct {
	// Command overrides RawExecution.Command in the prompt.
	Command  string
	Language string
	// Project is free text, usually the contents of the hints file.
	Project string
}

// BuildPrompt renders the parse prompt for raw.
func BuildPrompt(raw report.RawExecution, hints Hints) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("Parse the following test output and extract structured results.")
	line("")
	line("Context:")
	command := hints.Command
	if command == "" {
		command = raw.Command
	}
	if command != "" {
		line("- Test command: `%s`", command)
	}
	if hints.Language != "" {
		line("- Language/Framework: %s", hints.Language)
	}
	if strings.TrimSpace(hints.Project) != "" {
		line("")
		line("## Project Hints")
		line("%s", clip.TextWith(hints.Project, MaxHintChars, "\n... (hints truncated)"))
		line("")
	}
	line("- Exit code: %d", raw.ExitCode)
	line("")
	line("STDOUT:")
	line("```")
	line("%s", clip.Text(raw.Stdout, MaxOutputChars))
	line("```")
	line("")
	if strings.TrimSpace(raw.Stderr) != "" {
		line("STDERR:")
		line("```")
		line("%s", clip.Text(raw.Stderr, MaxOutputChars))
		line("```")
		line("")
	}
	b.WriteString(instructions)
	return b.String()
}
