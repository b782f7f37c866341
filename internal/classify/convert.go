package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bgricker/testlens/internal/report"
)

// Convert turns an interpreter reply into a run. It reports false when the
// reply has neither a tests list nor a summary, so the caller can fall back.
func Convert(obj map[string]any, raw report.RawExecution) (report.ParsedRun, bool) {
	items, hasTests := obj["tests"].([]any)
	summary, hasSummary := obj["summary"].(map[string]any)
	if !hasTests && !hasSummary {
		return report.ParsedRun{}, false
	}

	outcomes := make([]report.TestOutcome, 0, len(items))
	for _, item := range items {
		if o, ok := toOutcome(len(outcomes), item); ok {
			outcomes = append(outcomes, o)
		}
	}

	run := report.ParsedRun{
		Outcomes:   outcomes,
		RawOutput:  rawOutput(raw),
		Confidence: report.Interpreted,
	}
	if hasSummary {
		run.Total = count(summary, "total", len(outcomes))
		run.Passed = count(summary, "passed", 0)
		run.Failed = count(summary, "failed", 0)
		run.Skipped = count(summary, "skipped", 0)
		run.DurationMS = duration(summary["duration_ms"], raw.DurationMS)
	} else {
		tally(&run)
		run.DurationMS = raw.DurationMS
	}
	return run, true
}

func toOutcome(index int, item any) (report.TestOutcome, bool) {
	switch v := item.(type) {
	case map[string]any:
		status := report.StatusError
		if label, ok := v["status"].(string); ok {
			status = report.ParseStatus(label)
		}
		return report.NewOutcome(
			index,
			text(v["name"]),
			text(v["file"]),
			status,
			duration(v["duration_ms"], 0),
			text(v["error_message"]),
		), true
	case string:
		return report.NewOutcome(index, v, "", report.StatusError, 0, ""), true
	default:
		return report.TestOutcome{}, false
	}
}

// text renders a loosely typed field; null becomes "".
func text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case map[string]any, []any:
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprint(s)
		}
		return string(data)
	default:
		return fmt.Sprint(s)
	}
}

func count(summary map[string]any, key string, missing int) int {
	v, ok := summary[key]
	if !ok || v == nil {
		return missing
	}
	n, ok := report.AsInt(v)
	if !ok {
		if key == "total" {
			return missing
		}
		return 0
	}
	if n < 0 {
		return 0
	}
	return int(n)
}

func duration(v any, missing int64) int64 {
	if v == nil {
		return missing
	}
	n, ok := report.AsInt(v)
	if !ok || n < 0 {
		return 0
	}
	return n
}

func tally(run *report.ParsedRun) {
	for _, o := range run.Outcomes {
		switch o.Status {
		case report.StatusPassed:
			run.Passed++
		case report.StatusSkipped:
			run.Skipped++
		default:
			run.Failed++
		}
	}
	run.Total = len(run.Outcomes)
}

func rawOutput(raw report.RawExecution) string {
	if strings.TrimSpace(raw.Stderr) == "" {
		return raw.Stdout
	}
	return raw.Combined()
}
