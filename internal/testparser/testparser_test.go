package testparser

import (
	"reflect"
	"testing"
)

func TestPytestParser(t *testing.T) {
	t.Parallel()
	parser := &PytestParser{}

	tests := []struct {
		name   string
		output string
		want   Counts
	}{
		{
			name:   "all passed",
			output: "======= 47 passed in 0.12s =======",
			want:   Counts{Passed: 47, Total: 47, DurationMS: 120, Parsed: true},
		},
		{
			name:   "failures and skips",
			output: "==== 30 passed, 2 failed, 3 skipped, 4 warnings in 1.50s ====",
			want:   Counts{Passed: 30, Failed: 2, Skipped: 3, Total: 35, DurationMS: 1500, Parsed: true},
		},
		{
			name:   "errors count as failures",
			output: "======= 10 passed, 2 errors in 0.10s =======",
			want:   Counts{Passed: 10, Failed: 2, Total: 12, DurationMS: 100, Parsed: true},
		},
		{
			name:   "xfail and xpass",
			output: "== 1 passed, 1 xfailed, 1 xpassed in 0.01s ==",
			want:   Counts{Passed: 2, Skipped: 1, Total: 3, DurationMS: 10, Parsed: true},
		},
		{
			name:   "no summary",
			output: "collecting ...\ncollected 0 items\n",
			want:   Counts{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := parser.Parse(tt.output)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPytestParserNamesFailures(t *testing.T) {
	t.Parallel()
	output := `tests/test_calc.py::test_add PASSED                  [ 50%]
tests/test_calc.py::test_div FAILED                  [100%]

=========================== short test summary info ===========================
FAILED tests/test_calc.py::test_div - ZeroDivisionError: division by zero
ERROR tests/test_db.py::TestPool::test_connect
========================= 1 failed, 1 passed, 1 error in 0.05s =========================
`
	got := (&PytestParser{}).Parse(output)
	if got.Passed != 1 || got.Failed != 2 || got.Total != 3 {
		t.Fatalf("unexpected counts %+v", got)
	}
	want := []FailedTest{
		{Name: "test_div", File: "tests/test_calc.py", Reason: "ZeroDivisionError: division by zero"},
		{Name: "test_connect", File: "tests/test_db.py"},
	}
	if !reflect.DeepEqual(got.FailedTests, want) {
		t.Fatalf("FailedTests = %+v, want %+v", got.FailedTests, want)
	}
}

func TestGoParser(t *testing.T) {
	t.Parallel()
	output := `=== RUN   TestAdd
--- PASS: TestAdd (0.00s)
=== RUN   TestDiv
    calc_test.go:15: expected 2, got 0
--- FAIL: TestDiv (0.01s)
=== RUN   TestSlow
    calc_test.go:30: short mode
--- SKIP: TestSlow (0.00s)
=== RUN   TestTable
=== RUN   TestTable/zero
    --- PASS: TestTable/zero (0.00s)
--- PASS: TestTable (0.00s)
FAIL
FAIL	example.com/calc	0.012s
`
	got := (&GoParser{}).Parse(output)
	if got.Passed != 3 || got.Failed != 1 || got.Skipped != 1 || got.Total != 5 || !got.Parsed {
		t.Fatalf("unexpected counts %+v", got)
	}
	want := []FailedTest{{Name: "TestDiv", File: "calc_test.go", Reason: "expected 2, got 0"}}
	if !reflect.DeepEqual(got.FailedTests, want) {
		t.Fatalf("FailedTests = %+v, want %+v", got.FailedTests, want)
	}
}

func TestGoParserWithoutVerboseLines(t *testing.T) {
	t.Parallel()
	got := (&GoParser{}).Parse("ok  \texample.com/calc\t0.012s\n")
	if got.Parsed || got.Total != 0 {
		t.Fatalf("expected unparsed counts, got %+v", got)
	}
}

func TestJestParser(t *testing.T) {
	t.Parallel()
	parser := &JestParser{}

	tests := []struct {
		name   string
		output string
		want   Counts
	}{
		{
			name: "jest summary",
			output: `  ● Calculator › divides by zero

Test Suites: 1 failed, 1 total
Tests:       1 failed, 2 skipped, 5 passed, 8 total
Time:        1.25 s`,
			want: Counts{
				Passed:      5,
				Failed:      1,
				Skipped:     2,
				Total:       8,
				DurationMS:  1250,
				Parsed:      true,
				FailedTests: []FailedTest{{Name: "Calculator › divides by zero"}},
			},
		},
		{
			name: "vitest summary",
			output: ` Test Files  1 passed (1)
      Tests  4 passed | 1 todo (5)
   Duration  312ms`,
			want: Counts{Passed: 4, Skipped: 1, Total: 5, DurationMS: 312, Parsed: true},
		},
		{
			name:   "no summary",
			output: "compiling...\n",
			want:   Counts{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := parser.Parse(tt.output)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRegistryForCommand(t *testing.T) {
	t.Parallel()
	registry := NewRegistry()

	tests := []struct {
		command  string
		language string
		want     string
	}{
		{"pytest -v --tb=short", "", "pytest"},
		{"python -m pytest tests/", "", "pytest"},
		{".venv/bin/pytest", "", "pytest"},
		{"go test ./...", "", "go"},
		{"npx jest --ci", "", "jest"},
		{"npx vitest run", "", "jest"},
		{"make test", "python 3.12.1", "pytest"},
		{"make test", "Go 1.25.1", "go"},
		{"make test", "typescript", "jest"},
	}
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.language, func(t *testing.T) {
			t.Parallel()
			parser := registry.ForCommand(tt.command, tt.language)
			if parser == nil {
				t.Fatalf("ForCommand(%q, %q) = nil, want %s", tt.command, tt.language, tt.want)
			}
			if parser.Name() != tt.want {
				t.Errorf("ForCommand(%q, %q).Name() = %s, want %s", tt.command, tt.language, parser.Name(), tt.want)
			}
		})
	}
}

func TestRegistryUnknown(t *testing.T) {
	t.Parallel()
	registry := NewRegistry()
	if p := registry.ForCommand("make test", ""); p != nil {
		t.Fatalf("expected no parser, got %s", p.Name())
	}
	if p := registry.Get("cobol"); p != nil {
		t.Fatalf("expected no parser, got %s", p.Name())
	}
	registry.Register("Bun", &JestParser{})
	if p := registry.Get("bun"); p == nil || p.Name() != "jest" {
		t.Fatalf("registered parser not found")
	}
}
