// Package report defines the records that flow through a test run: the raw
// execution snapshot, classified outcomes, the aggregate run and the failure
// analyses attached to it.
package report

import "strings"

// TestStatus is the closed set of outcome labels.
type TestStatus string

const (
	// StatusPassed marks a test that succeeded.
	StatusPassed TestStatus = "passed"
	// StatusFailed marks an assertion failure.
	StatusFailed TestStatus = "failed"
	// StatusSkipped marks a test that did not run.
	StatusSkipped TestStatus = "skipped"
	// StatusError marks a test that could not complete, or a label nobody recognized.
	StatusError TestStatus = "error"
)

var statusLabels = map[string]TestStatus{
	"passed":  StatusPassed,
	"failed":  StatusFailed,
	"skipped": StatusSkipped,
	"error":   StatusError,
}

// ParseStatus maps an interpreter label onto a TestStatus. Unknown labels
// become StatusError so that a test is never silently dropped.
func ParseStatus(label string) TestStatus {
	if status, ok := statusLabels[strings.ToLower(strings.TrimSpace(label))]; ok {
		return status
	}
	return StatusError
}

// Valid reports whether s is one of the four canonical statuses.
func (s TestStatus) Valid() bool {
	_, ok := statusLabels[string(s)]
	return ok
}

// IsFailure reports whether s carries an error message.
func (s TestStatus) IsFailure() bool {
	return s == StatusFailed || s == StatusError
}

// RawExecution is one invocation of the test command.
type RawExecution struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"duration_ms"`
	Command    string `json:"command"`
}

// Combined joins stdout and stderr the way the raw output is stored.
func (r RawExecution) Combined() string {
	return r.Stdout + "\n" + r.Stderr
}

// TestOutcome is a single classified test.
type TestOutcome struct {
	Index        int        `json:"index"`
	Name         string     `json:"name"`
	File         string     `json:"file"`
	Status       TestStatus `json:"status"`
	DurationMS   int64      `json:"duration_ms"`
	ErrorMessage string     `json:"error_message"`
}

// NewOutcome builds an outcome that satisfies the record invariants: the
// name is never blank, duration is never negative, unknown statuses become
// StatusError and an error message is only kept for failures.
func NewOutcome(index int, name, file string, status TestStatus, durationMS int64, errorMessage string) TestOutcome {
	if strings.TrimSpace(name) == "" {
		name = "unknown"
	}
	if !status.Valid() {
		status = StatusError
	}
	if durationMS < 0 {
		durationMS = 0
	}
	if !status.IsFailure() {
		errorMessage = ""
	}
	return TestOutcome{
		Index:        index,
		Name:         name,
		File:         file,
		Status:       status,
		DurationMS:   durationMS,
		ErrorMessage: errorMessage,
	}
}

// ParsedRun aggregates the outcomes of one run. The counts are authoritative
// even when Outcomes is empty.
type ParsedRun struct {
	Outcomes   []TestOutcome `json:"outcomes"`
	Total      int           `json:"total"`
	Passed     int           `json:"passed"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	DurationMS int64         `json:"duration_ms"`
	RawOutput  string        `json:"raw_output"`
	Confidence float64       `json:"confidence"`
}

// Interpreted is the confidence of a run built from interpreter output.
const Interpreted = 1.0

// Heuristic is the confidence of a run built by the token-counting fallback.
const Heuristic = 0.3

// Failures returns the outcomes with a failed or error status, in order.
func (r ParsedRun) Failures() []TestOutcome {
	var out []TestOutcome
	for _, o := range r.Outcomes {
		if o.Status.IsFailure() {
			out = append(out, o)
		}
	}
	return out
}

// Advisory reports whether the counts came from heuristics rather than
// an interpreted result.
func (r ParsedRun) Advisory() bool {
	return r.Confidence < Interpreted
}

// Consistent reports whether Total matches the per-status counts.
func (r ParsedRun) Consistent() bool {
	return r.Total == r.Passed+r.Failed+r.Skipped
}

// FailureAnalysis is the interpreter's explanation of one failing test.
// TestIndex refers back to TestOutcome.Index.
type FailureAnalysis struct {
	TestIndex       int     `json:"test_index"`
	TestName        string  `json:"test_name"`
	LikelyCause     string  `json:"likely_cause"`
	SuspectedFile   *string `json:"suspected_file"`
	SuspectedCommit *string `json:"suspected_commit"`
	Confidence      float64 `json:"confidence"`
	Explanation     string  `json:"explanation"`
	SuggestedFix    string  `json:"suggested_fix"`
}

// AnalysisFor returns the analysis attached to the outcome at index.
func AnalysisFor(analyses []FailureAnalysis, index int) (FailureAnalysis, bool) {
	for _, a := range analyses {
		if a.TestIndex == index {
			return a, true
		}
	}
	return FailureAnalysis{}, false
}
