// Package testparser reads summary counts from the output of well known
// test frameworks. It is deterministic and only understands the formats it
// registers; the interpreter remains the primary reader of test output.
package testparser

import (
	"strings"
)

// FailedTest names one failing test and, when found, its reason.
type FailedTest struct {
	Name   string `json:"name"`
	File   string `json:"file,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Counts holds what a parser extracted. Parsed is false when the output
// carried nothing the parser recognized.
type Counts struct {
	Passed      int          `json:"passed"`
	Failed      int          `json:"failed"`
	Skipped     int          `json:"skipped"`
	Total       int          `json:"total"`
	DurationMS  int64        `json:"duration_ms,omitempty"`
	Parsed      bool         `json:"-"`
	FailedTests []FailedTest `json:"failed_tests,omitempty"`
}

func (c *Counts) tally() {
	c.Total = c.Passed + c.Failed + c.Skipped
}

// Parser extracts counts from one framework's output.
type Parser interface {
	Parse(output string) Counts
	Name() string
}

// Registry maps command tokens and language names to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry returns a registry with the built-in parsers.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}

	pytest := &PytestParser{}
	gotest := &GoParser{}
	jest := &JestParser{}

	for _, id := range []string{"pytest", "python", "py"} {
		r.parsers[id] = pytest
	}
	r.parsers["go"] = gotest
	for _, id := range []string{"jest", "vitest", "javascript", "typescript", "node"} {
		r.parsers[id] = jest
	}
	return r
}

// Get returns the parser registered for id, or nil.
func (r *Registry) Get(id string) Parser {
	return r.parsers[strings.ToLower(strings.TrimSpace(id))]
}

// Register adds or replaces the parser for id.
func (r *Registry) Register(id string, p Parser) {
	r.parsers[strings.ToLower(strings.TrimSpace(id))] = p
}

// ForCommand picks a parser from the runner named in command, falling back
// to the first word of the language hint ("python 3.12.1" selects pytest).
func (r *Registry) ForCommand(command, language string) Parser {
	fields := strings.Fields(strings.ToLower(command))
	for i, f := range fields {
		f = strings.TrimPrefix(f, "./")
		switch {
		case f == "go" && i+1 < len(fields) && fields[i+1] == "test":
			return r.parsers["go"]
		case f == "pytest" || strings.HasSuffix(f, "/pytest"):
			return r.parsers["pytest"]
		case f == "jest" || f == "vitest" || strings.HasSuffix(f, "/jest") || strings.HasSuffix(f, "/vitest"):
			return r.parsers["jest"]
		}
	}
	if lang := strings.Fields(language); len(lang) > 0 {
		return r.Get(lang[0])
	}
	return nil
}
