package classify

import (
	"github.com/bgricker/testlens/internal/report"
	"github.com/bgricker/testlens/internal/testparser"
)

// CrossCheck compares a classified run with the counts a framework parser
// read from the same output.
type CrossCheck struct {
	Parser string            `json:"parser"`
	Counts testparser.Counts `json:"counts"`
	Agrees bool              `json:"agrees"`
}

// Verify runs the framework parser matching the command or language hint
// over raw. ok is false when no parser applies or it recognized nothing.
// The run itself is never changed.
func (c *Classifier) Verify(raw report.RawExecution, hints Hints, run report.ParsedRun) (CrossCheck, bool) {
	command := hints.Command
	if command == "" {
		command = raw.Command
	}
	parser := c.parsers.ForCommand(command, hints.Language)
	if parser == nil {
		return CrossCheck{}, false
	}
	counts := parser.Parse(raw.Combined())
	if !counts.Parsed {
		c.logger.Debug("framework parser found no summary", "parser", parser.Name())
		return CrossCheck{}, false
	}
	check := CrossCheck{
		Parser: parser.Name(),
		Counts: counts,
		Agrees: counts.Passed == run.Passed && counts.Failed == run.Failed && counts.Skipped == run.Skipped,
	}
	if !check.Agrees {
		c.logger.Warn("framework parser disagrees with classified counts",
			"parser", check.Parser,
			"parsed_passed", counts.Passed, "parsed_failed", counts.Failed, "parsed_skipped", counts.Skipped,
			"passed", run.Passed, "failed", run.Failed, "skipped", run.Skipped,
			"confidence", run.Confidence)
	}
	return check, true
}
