package testparser

import (
	"math"
	"regexp"
	"strconv"
)

var (
	jestTests    = regexp.MustCompile(`(?m)^\s*Tests:?\s+(.*\d.*)$`)
	jestCount    = regexp.MustCompile(`(\d+)\s+(passed|failed|skipped|todo|pending)`)
	jestDuration = regexp.MustCompile(`(?m)^\s*(?:Time:|Duration)\s+([\d.]+)\s*(ms|s)\b`)
	jestFailed   = regexp.MustCompile(`(?m)^\s*(?:●|×|✗)\s+(.+?)\s*$`)
)

// JestParser reads the Tests line printed by jest and vitest:
//
//	Tests:       1 failed, 2 skipped, 5 passed, 8 total
//	Tests  1 failed | 5 passed (6)
//
// todo and pending tests count as skipped.
type JestParser struct{}

// Name returns the parser name.
func (p *JestParser) Name() string {
	return "jest"
}

// Parse extracts counts from jest or vitest output.
func (p *JestParser) Parse(output string) Counts {
	counts := Counts{}
	matches := jestTests.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return counts
	}
	line := matches[len(matches)-1][1]
	for _, m := range jestCount.FindAllStringSubmatch(line, -1) {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "passed":
			counts.Passed += n
		case "failed":
			counts.Failed += n
		default:
			counts.Skipped += n
		}
		counts.Parsed = true
	}
	if !counts.Parsed {
		return Counts{}
	}
	counts.tally()
	if m := jestDuration.FindStringSubmatch(output); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			if m[2] == "s" {
				v *= 1000
			}
			counts.DurationMS = int64(math.Round(v))
		}
	}
	if counts.Failed > 0 {
		seen := map[string]bool{}
		for _, m := range jestFailed.FindAllStringSubmatch(output, -1) {
			name := m[1]
			if seen[name] {
				continue
			}
			seen[name] = true
			counts.FailedTests = append(counts.FailedTests, FailedTest{Name: name})
		}
	}
	return counts
}
