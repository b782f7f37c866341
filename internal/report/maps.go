package report

import "fmt"

// ToMap renders the run as nested maps, slices and primitives.
func (r ParsedRun) ToMap() map[string]any {
	outcomes := make([]any, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		outcomes = append(outcomes, o.ToMap())
	}
	return map[string]any{
		"outcomes":    outcomes,
		"total":       r.Total,
		"passed":      r.Passed,
		"failed":      r.Failed,
		"skipped":     r.Skipped,
		"duration_ms": r.DurationMS,
		"raw_output":  r.RawOutput,
		"confidence":  r.Confidence,
	}
}

// ToMap renders the outcome as a plain map.
func (o TestOutcome) ToMap() map[string]any {
	return map[string]any{
		"index":         o.Index,
		"name":          o.Name,
		"file":          o.File,
		"status":        string(o.Status),
		"duration_ms":   o.DurationMS,
		"error_message": o.ErrorMessage,
	}
}

// ToMap renders the analysis as a plain map. Absent suspects are nil.
func (a FailureAnalysis) ToMap() map[string]any {
	return map[string]any{
		"test_index":       a.TestIndex,
		"test_name":        a.TestName,
		"likely_cause":     a.LikelyCause,
		"suspected_file":   optional(a.SuspectedFile),
		"suspected_commit": optional(a.SuspectedCommit),
		"confidence":       a.Confidence,
		"explanation":      a.Explanation,
		"suggested_fix":    a.SuggestedFix,
	}
}

// ParsedRunFromMap rebuilds a run from the output of ToMap or from the same
// structure after a JSON round trip.
func ParsedRunFromMap(m map[string]any) (ParsedRun, error) {
	var r ParsedRun
	fields := mapReader{m: m}
	r.Total = int(fields.intField("total"))
	r.Passed = int(fields.intField("passed"))
	r.Failed = int(fields.intField("failed"))
	r.Skipped = int(fields.intField("skipped"))
	r.DurationMS = fields.intField("duration_ms")
	r.RawOutput = fields.stringField("raw_output")
	r.Confidence = fields.floatField("confidence")
	if fields.err != nil {
		return ParsedRun{}, fmt.Errorf("parsed run: %w", fields.err)
	}

	var items []any
	switch v := m["outcomes"].(type) {
	case nil:
	case []any:
		items = v
	case []map[string]any:
		for _, item := range v {
			items = append(items, item)
		}
	default:
		return ParsedRun{}, fmt.Errorf("parsed run: outcomes: unexpected %T", v)
	}
	for i, item := range items {
		om, ok := item.(map[string]any)
		if !ok {
			return ParsedRun{}, fmt.Errorf("parsed run: outcome %d: unexpected %T", i, item)
		}
		o, oerr := TestOutcomeFromMap(om)
		if oerr != nil {
			return ParsedRun{}, fmt.Errorf("parsed run: outcome %d: %w", i, oerr)
		}
		r.Outcomes = append(r.Outcomes, o)
	}
	return r, nil
}

// TestOutcomeFromMap rebuilds an outcome from its plain map.
func TestOutcomeFromMap(m map[string]any) (TestOutcome, error) {
	fields := mapReader{m: m}
	o := TestOutcome{
		Index:        int(fields.intField("index")),
		Name:         fields.stringField("name"),
		File:         fields.stringField("file"),
		Status:       TestStatus(fields.stringField("status")),
		DurationMS:   fields.intField("duration_ms"),
		ErrorMessage: fields.stringField("error_message"),
	}
	if fields.err != nil {
		return TestOutcome{}, fields.err
	}
	if !o.Status.Valid() {
		return TestOutcome{}, fmt.Errorf("status %q is not a test status", o.Status)
	}
	return o, nil
}

// FailureAnalysisFromMap rebuilds an analysis from its plain map.
func FailureAnalysisFromMap(m map[string]any) (FailureAnalysis, error) {
	fields := mapReader{m: m}
	a := FailureAnalysis{
		TestIndex:       int(fields.intField("test_index")),
		TestName:        fields.stringField("test_name"),
		LikelyCause:     fields.stringField("likely_cause"),
		SuspectedFile:   fields.optionalString("suspected_file"),
		SuspectedCommit: fields.optionalString("suspected_commit"),
		Confidence:      fields.floatField("confidence"),
		Explanation:     fields.stringField("explanation"),
		SuggestedFix:    fields.stringField("suggested_fix"),
	}
	if fields.err != nil {
		return FailureAnalysis{}, fmt.Errorf("failure analysis: %w", fields.err)
	}
	return a, nil
}

func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// mapReader reads typed fields and keeps the first mismatch.
type mapReader struct {
	m   map[string]any
	err error
}

func (r *mapReader) fail(key string, v any) {
	if r.err == nil {
		r.err = fmt.Errorf("field %q: unexpected %T", key, v)
	}
}

func (r *mapReader) intField(key string) int64 {
	v, ok := r.m[key]
	if !ok {
		return 0
	}
	n, ok := AsInt(v)
	if !ok {
		r.fail(key, v)
	}
	return n
}

func (r *mapReader) floatField(key string) float64 {
	v, ok := r.m[key]
	if !ok {
		return 0
	}
	f, ok := AsFloat(v)
	if !ok {
		r.fail(key, v)
	}
	return f
}

func (r *mapReader) stringField(key string) string {
	v, ok := r.m[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(key, v)
	}
	return s
}

func (r *mapReader) optionalString(key string) *string {
	v, ok := r.m[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		r.fail(key, v)
		return nil
	}
	return &s
}
