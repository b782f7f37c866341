package output

import (
	"encoding/json"
	"io"

	"github.com/bgricker/testlens/internal/changes"
	"github.com/bgricker/testlens/internal/classify"
	"github.com/bgricker/testlens/internal/interpreter"
	"github.com/bgricker/testlens/internal/report"
	"github.com/bgricker/testlens/internal/risk"
)

// JSONRenderer emits structured run data.
type JSONRenderer struct {
	out io.Writer
}

// NewJSON creates a JSON renderer writing to out.
func NewJSON(out io.Writer) *JSONRenderer {
	return &JSONRenderer{out: out}
}

// Report captures the JSON output schema.
type Report struct {
	RunID      int64                     `json:"run_id,omitempty"`
	Run        report.ParsedRun          `json:"run"`
	CrossCheck *classify.CrossCheck      `json:"cross_check,omitempty"`
	Analyses   []report.FailureAnalysis  `json:"analyses"`
	Changes    *changes.Context          `json:"changes,omitempty"`
	Risk       []risk.Prioritized        `json:"risk,omitempty"`
	Summary    string                    `json:"summary,omitempty"`
	ReportPath string                    `json:"report_path,omitempty"`
	Transcript []interpreter.Interaction `json:"transcript,omitempty"`
	Warnings   []string                  `json:"warnings,omitempty"`
}

// Render encodes the report as JSON.
func (j *JSONRenderer) Render(rep Report) error {
	if rep.Analyses == nil {
		rep.Analyses = []report.FailureAnalysis{}
	}
	return j.Encode(rep)
}

// Encode writes any value with the renderer's indentation.
func (j *JSONRenderer) Encode(v any) error {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
