package main

import (
	"context"
	"regexp"
	"strings"

	"github.com/bgricker/testlens/internal/ledger"
	"github.com/bgricker/testlens/internal/risk"
)

// defaultPriorityLimit is how many of the riskiest stored tests
// --priority-only passes to the test command.
const defaultPriorityLimit = 10

var shellSafe = regexp.MustCompile(`^[A-Za-z0-9_./:=@%+,-]+$`)

// priorityCommand appends the riskiest stored test names to command. The
// full command is returned when nothing has been scored yet.
func (a *app) priorityCommand(ctx context.Context, led *ledger.Ledger, command string, limit int) string {
	records, err := led.GetRiskAnalyses(ctx)
	if err != nil {
		a.warn("stored risk unavailable, running all tests: %v", err)
		return command
	}
	assessments := make([]risk.Assessment, 0, len(records))
	for i, rec := range records {
		assessments = append(assessments, risk.Assessment{Index: i, Name: rec.TestName, Score: rec.RiskScore})
	}
	names := risk.ExecutionOrder(a.prioritizer().Prioritize(assessments), limit)
	if len(names) == 0 {
		a.warn("no stored risk scores, running all tests")
		return command
	}
	a.logger.Info("running highest-risk tests", "count", len(names), "first", names[0])
	return appendArgs(command, names)
}

func appendArgs(command string, args []string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(command))
	for _, arg := range args {
		b.WriteByte(' ')
		b.WriteString(shellQuote(arg))
	}
	return b.String()
}

// shellQuote single-quotes s for a POSIX shell unless it is plainly safe.
func shellQuote(s string) string {
	if shellSafe.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
