package testparser

import (
	"regexp"
	"strings"
)

var (
	goPass      = regexp.MustCompile(`(?m)^\s*---\s+PASS:\s+`)
	goFail      = regexp.MustCompile(`(?m)^\s*---\s+FAIL:\s+(\S+)`)
	goSkip      = regexp.MustCompile(`(?m)^\s*---\s+SKIP:\s+`)
	goErrorLine = regexp.MustCompile(`^\s+(\S+\.go):\d+:\s*(.*)$`)
)

// maxReasonLen keeps failure reasons to one terminal line.
const maxReasonLen = 80

// GoParser reads verbose go test output:
//
//	--- PASS: TestFoo (0.00s)
//	--- FAIL: TestBar (0.01s)
//	--- SKIP: TestBaz (0.00s)
//
// Subtests are counted like top-level tests.
type GoParser struct{}

// Name returns the parser name.
func (p *GoParser) Name() string {
	return "go"
}

// Parse extracts counts from go test output. Output without per-test
// lines, as printed without -v, is reported as not parsed.
func (p *GoParser) Parse(output string) Counts {
	counts := Counts{
		Passed:  len(goPass.FindAllString(output, -1)),
		Skipped: len(goSkip.FindAllString(output, -1)),
	}
	fails := goFail.FindAllStringSubmatch(output, -1)
	counts.Failed = len(fails)
	if counts.Passed+counts.Failed+counts.Skipped == 0 {
		return Counts{}
	}
	counts.Parsed = true
	counts.tally()

	lines := strings.Split(output, "\n")
	for _, m := range fails {
		file, reason := goFailureReason(lines, m[1])
		counts.FailedTests = append(counts.FailedTests, FailedTest{Name: m[1], File: file, Reason: reason})
	}
	return counts
}

func isGoBoundary(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range []string{"=== RUN", "=== CONT", "=== PAUSE", "--- PASS:", "--- FAIL:", "--- SKIP:"} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// goFailureReason walks back from the FAIL line of name to the first
// file:line message logged by that test.
func goFailureReason(lines []string, name string) (string, string) {
	failAt := -1
	for i, line := range lines {
		if m := goFail.FindStringSubmatch(line); m != nil && m[1] == name {
			failAt = i
			break
		}
	}
	if failAt == -1 {
		return "", ""
	}
	var file, reason string
	for i := failAt - 1; i >= 0; i-- {
		if isGoBoundary(lines[i]) {
			break
		}
		if m := goErrorLine.FindStringSubmatch(lines[i]); m != nil {
			file, reason = m[1], strings.TrimSpace(m[2])
		}
	}
	if len(reason) > maxReasonLen {
		reason = reason[:maxReasonLen-3] + "..."
	}
	return file, reason
}
