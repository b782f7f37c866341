package interpreter

import (
	"context"
	"time"
)

// JSONInstruction is appended to every structured prompt.
const JSONInstruction = "\n\nRespond with valid JSON only, no additional text."

// Structured describes a JSON-producing call.
type Structured struct {
	// Purpose labels the interaction, e.g. "classify".
	Purpose string
	// Schema is checked against the extracted object. Violations are
	// recorded on the interaction; they do not reject the object.
	Schema *Schema
	// Log receives the interaction when non-nil.
	Log *Transcript
	// Now is used for timestamps; defaults to time.Now.
	Now func() time.Time
}

// GenerateStructured asks gw for JSON and extracts an object from the reply.
// It returns nil when the call failed or no object could be recovered.
func GenerateStructured(ctx context.Context, gw Gateway, req Request, opts Structured) (map[string]any, Interaction) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	req.Prompt += JSONInstruction

	started := now()
	resp := gw.Generate(ctx, req)
	elapsed := now().Sub(started)

	in := Interaction{
		Purpose:    opts.Purpose,
		Provider:   gw.Name(),
		Model:      resp.Model,
		System:     req.System,
		Prompt:     req.Prompt,
		Content:    resp.Content,
		Usage:      resp.Usage,
		Error:      resp.Err(),
		StartedAt:  started,
		Duration:   elapsed,
		DurationMS: elapsed.Milliseconds(),
	}
	if in.Model == "" {
		in.Model = gw.Model()
	}

	var obj map[string]any
	if resp.OK() {
		var ok bool
		obj, ok = ExtractJSON(resp.Content)
		if ok {
			in.Structured = true
			in.SchemaErrors = opts.Schema.Check(obj)
		} else if in.Error == "" {
			in.Error = "no JSON object in response"
		}
	} else if in.Error == "" {
		in.Error = "empty response"
	}
	opts.Log.Add(in)
	return obj, in
}
