package testparser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	pytestSummary = regexp.MustCompile(`(?m)^=+\s*(\d[^=\n]*?)\s+in\s+([\d.]+)s\b.*=+\s*$`)
	pytestCount   = regexp.MustCompile(`(\d+)\s+(\w+)`)
	pytestVerbose = regexp.MustCompile(`(?m)^([\w/\\.-]+\.py)((?:::[^\s]+)+)\s+(FAILED|ERROR)\b`)
	pytestShort   = regexp.MustCompile(`(?m)^(?:FAILED|ERROR)\s+([\w/\\.-]+\.py)((?:::[^\s]+)+)(?:\s+-\s+(.+))?$`)
)

// PytestParser reads the closing summary line of pytest:
//
//	===== 5 passed, 2 failed, 1 skipped, 1 error in 0.23s =====
//
// Errors count as failures. Failed test names come from verbose result
// lines and the short test summary.
type PytestParser struct{}

// Name returns the parser name.
func (p *PytestParser) Name() string {
	return "pytest"
}

// Parse extracts counts from pytest output.
func (p *PytestParser) Parse(output string) Counts {
	counts := Counts{}
	matches := pytestSummary.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return counts
	}
	last := matches[len(matches)-1]
	for _, m := range pytestCount.FindAllStringSubmatch(last[1], -1) {
		n, _ := strconv.Atoi(m[1])
		kind := strings.ToLower(m[2])
		switch {
		case strings.HasPrefix(kind, "pass"), kind == "xpassed":
			counts.Passed += n
		case strings.HasPrefix(kind, "fail"), strings.HasPrefix(kind, "error"):
			counts.Failed += n
		case strings.HasPrefix(kind, "skip"), kind == "xfailed":
			counts.Skipped += n
		}
	}
	if secs, err := strconv.ParseFloat(last[2], 64); err == nil {
		counts.DurationMS = int64(math.Round(secs * 1000))
	}
	counts.Parsed = true
	counts.tally()
	counts.FailedTests = pytestFailures(output)
	return counts
}

func pytestFailures(output string) []FailedTest {
	var failed []FailedTest
	seen := map[string]int{}
	add := func(file, node, reason string) {
		parts := strings.Split(strings.TrimPrefix(node, "::"), "::")
		name := parts[len(parts)-1]
		key := file + node
		if i, ok := seen[key]; ok {
			if failed[i].Reason == "" {
				failed[i].Reason = reason
			}
			return
		}
		seen[key] = len(failed)
		failed = append(failed, FailedTest{Name: name, File: file, Reason: reason})
	}
	for _, m := range pytestVerbose.FindAllStringSubmatch(output, -1) {
		add(m[1], m[2], "")
	}
	for _, m := range pytestShort.FindAllStringSubmatch(output, -1) {
		add(m[1], m[2], strings.TrimSpace(m[3]))
	}
	return failed
}
