package classify

import (
	"context"
	"strings"
	"testing"

	"github.com/bgricker/testlens/internal/interpreter"
	"github.com/bgricker/testlens/internal/report"
)

type fakeGateway struct {
	available bool
	content   string
	prompts   []interpreter.Request
}

func (f *fakeGateway) Name() string  { return "fake" }
func (f *fakeGateway) Model() string { return "fake-model" }

func (f *fakeGateway) IsAvailable(context.Context) bool { return f.available }

func (f *fakeGateway) Generate(_ context.Context, req interpreter.Request) interpreter.Response {
	f.prompts = append(f.prompts, req)
	if f.content == "" {
		return interpreter.Response{Raw: map[string]any{"error": "Request timed out"}}
	}
	return interpreter.Response{Content: f.content, Model: "fake-model"}
}

func TestFallbackWhenUnavailable(t *testing.T) {
	raw := report.RawExecution{
		Stdout:   "test_one PASSED\ntest_two PASSED\ntest_three PASSED\n",
		ExitCode: 0,
		Command:  "pytest -v",
	}
	gw := &fakeGateway{}
	run := New(gw, nil).Classify(context.Background(), raw, Hints{}, nil)

	if run.Total != 3 || run.Passed != 3 || run.Failed != 0 || run.Skipped != 0 {
		t.Fatalf("unexpected counts %+v", run)
	}
	if run.Confidence != report.Heuristic || len(run.Outcomes) != 0 {
		t.Fatalf("expected heuristic run without outcomes, got %+v", run)
	}
	if len(gw.prompts) != 0 {
		t.Fatalf("unavailable gateway must not be called")
	}
}

func TestFallbackForcesFailureOnNonZeroExit(t *testing.T) {
	raw := report.RawExecution{Stdout: "segmentation violation\n", ExitCode: 1}
	run := Fallback(raw)
	if run.Failed != 1 || run.Confidence != 0.3 {
		t.Fatalf("expected forced failure, got %+v", run)
	}
	if run.Total != 1 {
		t.Fatalf("total = %d", run.Total)
	}
}

func TestFallbackTokens(t *testing.T) {
	cases := []struct {
		name                    string
		stdout, stderr          string
		exit                    int
		passed, failed, skipped int
	}{
		{name: "go test", stdout: "--- FAIL: TestA (0.00s)\nok  \tpkg/b\t0.01s\nFAIL\n", exit: 1, passed: 1, failed: 2},
		{name: "glyphs", stdout: "✓ adds\n✓ subtracts\n✗ divides\n○ skipped multiply\n", exit: 1, passed: 2, failed: 1, skipped: 2},
		{name: "case insensitive", stdout: "test_x passed\ntest_y Skipped\n", passed: 1, skipped: 1},
		{name: "word boundaries", stdout: "PASSING tokens and ERRORS and OKAY are not counted\n", exit: 0},
		{name: "stderr counted", stdout: "", stderr: "ERROR: could not import\n", exit: 2, failed: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := report.RawExecution{Stdout: tc.stdout, Stderr: tc.stderr, ExitCode: tc.exit}
			run := Fallback(raw)
			if run.Passed != tc.passed || run.Failed != tc.failed || run.Skipped != tc.skipped {
				t.Fatalf("got %d/%d/%d, want %d/%d/%d", run.Passed, run.Failed, run.Skipped, tc.passed, tc.failed, tc.skipped)
			}
			if run.Total != run.Passed+run.Failed+run.Skipped {
				t.Fatalf("total %d is not the sum", run.Total)
			}
			if run.RawOutput != tc.stdout+"\n"+tc.stderr {
				t.Fatalf("raw output = %q", run.RawOutput)
			}
			again := Fallback(raw)
			if again.Passed != run.Passed || again.Failed != run.Failed || again.Skipped != run.Skipped || again.Confidence != run.Confidence {
				t.Fatalf("fallback is not deterministic")
			}
		})
	}
}

func TestClassifyInterpreted(t *testing.T) {
	gw := &fakeGateway{available: true, content: "```json\n" + `{
  "tests": [
    {"name": "test_add", "file": "tests/test_calc.py", "status": "passed", "duration_ms": 3, "error_message": null},
    {"name": "test_divide", "file": "tests/test_calc.py", "status": "failed", "duration_ms": 5, "error_message": "ZeroDivisionError: division by zero"}
  ],
  "summary": {"total": 2, "passed": 1, "failed": 1, "skipped": 0, "duration_ms": 40}
}` + "\n```"}
	log := interpreter.NewTranscript()
	raw := report.RawExecution{Stdout: "....F", ExitCode: 1, Command: "pytest -v", DurationMS: 900}
	run := New(gw, nil).Classify(context.Background(), raw, Hints{Language: "python"}, log)

	if run.Total != 2 || run.Passed != 1 || run.Failed != 1 || run.Confidence != 1.0 {
		t.Fatalf("unexpected run %+v", run)
	}
	if len(run.Outcomes) != 2 || !strings.Contains(run.Outcomes[1].ErrorMessage, "ZeroDivisionError") {
		t.Fatalf("unexpected outcomes %+v", run.Outcomes)
	}
	if run.Outcomes[0].ErrorMessage != "" || run.Outcomes[1].Index != 1 {
		t.Fatalf("unexpected outcome fields %+v", run.Outcomes)
	}
	if run.DurationMS != 40 {
		t.Fatalf("duration = %d", run.DurationMS)
	}
	if log.Len() != 1 || log.Interactions()[0].Purpose != "classify" {
		t.Fatalf("expected one classify interaction, got %+v", log.Interactions())
	}
	req := gw.prompts[0]
	if req.Temperature != Temperature || req.System != SystemPrompt {
		t.Fatalf("unexpected request settings %+v", req)
	}
	if !strings.Contains(req.Prompt, "- Test command: `pytest -v`") || !strings.Contains(req.Prompt, "- Language/Framework: python") {
		t.Fatalf("prompt missing hints:\n%s", req.Prompt)
	}
}

func TestClassifyFallsBackOnProse(t *testing.T) {
	gw := &fakeGateway{available: true, content: "All tests look fine to me!"}
	run := New(gw, nil).Classify(context.Background(), report.RawExecution{Stdout: "ok", ExitCode: 0}, Hints{}, nil)
	if run.Confidence != report.Heuristic || run.Passed != 1 {
		t.Fatalf("expected fallback, got %+v", run)
	}
}

func TestClassifyFallsBackOnTransportFailure(t *testing.T) {
	gw := &fakeGateway{available: true}
	run := New(gw, nil).Classify(context.Background(), report.RawExecution{ExitCode: 3}, Hints{}, nil)
	if run.Confidence != report.Heuristic || run.Failed != 1 {
		t.Fatalf("expected fallback with forced failure, got %+v", run)
	}
}

func TestConvertCoercesGarbledFields(t *testing.T) {
	obj := map[string]any{
		"tests": []any{
			map[string]any{"name": "a", "status": "PASSED", "duration_ms": "fast", "error_message": "stale"},
			map[string]any{"status": "xpass", "duration_ms": -4, "error_message": map[string]any{"type": "Boom"}},
			map[string]any{"name": "c", "file": nil, "status": "Skipped", "duration_ms": 12.7},
			"test_loose_string",
			42.0,
		},
		"summary": map[string]any{"passed": "1", "failed": nil, "skipped": true},
	}
	run, ok := Convert(obj, report.RawExecution{DurationMS: 77})
	if !ok {
		t.Fatalf("Convert rejected reply")
	}
	if len(run.Outcomes) != 4 {
		t.Fatalf("expected 4 outcomes, got %+v", run.Outcomes)
	}
	a, b, c, d := run.Outcomes[0], run.Outcomes[1], run.Outcomes[2], run.Outcomes[3]
	if a.Status != report.StatusPassed || a.DurationMS != 0 || a.ErrorMessage != "" {
		t.Fatalf("outcome a = %+v", a)
	}
	if b.Name != "unknown" || b.Status != report.StatusError || b.DurationMS != 0 || b.ErrorMessage != `{"type":"Boom"}` {
		t.Fatalf("outcome b = %+v", b)
	}
	if c.File != "" || c.Status != report.StatusSkipped || c.DurationMS != 12 {
		t.Fatalf("outcome c = %+v", c)
	}
	if d.Name != "test_loose_string" || d.Status != report.StatusError || d.Index != 3 {
		t.Fatalf("outcome d = %+v", d)
	}
	if run.Total != 4 || run.Passed != 1 || run.Failed != 0 || run.Skipped != 0 {
		t.Fatalf("counts = %d/%d/%d/%d", run.Total, run.Passed, run.Failed, run.Skipped)
	}
	if run.DurationMS != 77 {
		t.Fatalf("expected raw duration when summary omits it, got %d", run.DurationMS)
	}
	for _, o := range run.Outcomes {
		if !o.Status.Valid() {
			t.Fatalf("non canonical status %q", o.Status)
		}
		if o.ErrorMessage != "" && !o.Status.IsFailure() {
			t.Fatalf("error message on %s outcome", o.Status)
		}
	}
}

func TestConvertWithoutSummaryTallies(t *testing.T) {
	obj := map[string]any{"tests": []any{
		map[string]any{"name": "a", "status": "passed"},
		map[string]any{"name": "b", "status": "error", "error_message": "panic"},
	}}
	run, ok := Convert(obj, report.RawExecution{})
	if !ok || run.Total != 2 || run.Passed != 1 || run.Failed != 1 || !run.Consistent() {
		t.Fatalf("unexpected run %+v", run)
	}
}

func TestConvertRejectsUnrelatedObject(t *testing.T) {
	if _, ok := Convert(map[string]any{"answer": 42}, report.RawExecution{}); ok {
		t.Fatalf("expected rejection")
	}
}

func TestBuildPromptTruncates(t *testing.T) {
	raw := report.RawExecution{
		Stdout:   strings.Repeat("o", MaxOutputChars+500),
		Stderr:   strings.Repeat("e", MaxOutputChars+1),
		ExitCode: 1,
		Command:  "npm test",
	}
	hints := Hints{Project: strings.Repeat("h", MaxHintChars*2)}
	prompt := BuildPrompt(raw, hints)

	if strings.Contains(prompt, strings.Repeat("o", MaxOutputChars)) {
		t.Fatalf("stdout not truncated")
	}
	if strings.Count(prompt, "(output truncated)") != 2 {
		t.Fatalf("expected truncation marker for stdout and stderr")
	}
	if !strings.Contains(prompt, "(hints truncated)") || strings.Contains(prompt, strings.Repeat("h", MaxHintChars)) {
		t.Fatalf("hints not bounded")
	}
	if !strings.Contains(prompt, "- Test command: `npm test`") || !strings.Contains(prompt, "- Exit code: 1") {
		t.Fatalf("missing context lines")
	}
}

func TestBuildPromptOmitsBlankStderr(t *testing.T) {
	prompt := BuildPrompt(report.RawExecution{Stdout: "ok", Stderr: "  \n"}, Hints{Command: "go test ./..."})
	if strings.Contains(prompt, "STDERR:") {
		t.Fatalf("blank stderr must be omitted")
	}
	if !strings.Contains(prompt, "`go test ./...`") {
		t.Fatalf("command hint missing")
	}
}

func TestVerifyAgainstFrameworkSummary(t *testing.T) {
	raw := report.RawExecution{
		Stdout:  "tests/test_calc.py::test_div FAILED\n==== 1 failed, 2 passed in 0.05s ====\n",
		Command: "pytest -v",
	}
	c := New(&fakeGateway{}, nil)

	run := c.Classify(context.Background(), raw, Hints{}, nil)
	check, ok := c.Verify(raw, Hints{}, run)
	if !ok {
		t.Fatalf("expected pytest cross-check")
	}
	if check.Parser != "pytest" || check.Counts.Passed != 2 || check.Counts.Failed != 1 {
		t.Fatalf("unexpected cross-check %+v", check)
	}
	if check.Agrees {
		t.Fatalf("token counts should disagree with the summary: run %+v", run)
	}
	if run.Confidence != report.Heuristic {
		t.Fatalf("fallback must stay heuristic, got %v", run.Confidence)
	}
	if len(check.Counts.FailedTests) != 1 || check.Counts.FailedTests[0].Name != "test_div" {
		t.Fatalf("unexpected failed tests %+v", check.Counts.FailedTests)
	}

	agreeing := report.ParsedRun{Total: 3, Passed: 2, Failed: 1}
	if check, _ := c.Verify(raw, Hints{}, agreeing); !check.Agrees {
		t.Fatalf("matching counts should agree: %+v", check)
	}
}

func TestVerifyWithoutParser(t *testing.T) {
	c := New(&fakeGateway{}, nil)
	raw := report.RawExecution{Stdout: "==== 3 passed in 0.01s ====\n", Command: "make test"}
	if _, ok := c.Verify(raw, Hints{}, Fallback(raw)); ok {
		t.Fatalf("unknown runner should not be cross-checked")
	}
	if check, ok := c.Verify(raw, Hints{Language: "python 3.12.1"}, Fallback(raw)); !ok || check.Parser != "pytest" {
		t.Fatalf("language hint should select pytest, got %+v %v", check, ok)
	}
	raw.Command = "go test ./..."
	if _, ok := c.Verify(raw, Hints{}, Fallback(raw)); ok {
		t.Fatalf("output without go test lines should not be cross-checked")
	}
}
